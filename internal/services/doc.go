// Package services provides the shared error taxonomy and context carriers
// used by stage executors and the workflow manager.
package services
