// Package daemon composes the long-running services: the durable queue, the
// embedding store and similarity index, the workflow manager, and the upload
// event consumer. A file lock enforces single-instance execution.
package daemon
