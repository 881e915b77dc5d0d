// Package notifications publishes pipeline lifecycle events to an ntfy
// topic. When no topic is configured every publish is a silent no-op, so
// callers never need to guard notification calls.
package notifications
