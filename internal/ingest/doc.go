// Package ingest consumes upload-completion events from the message broker
// and enqueues the referenced videos for processing. Consumption is
// idempotent: a redelivered event for an already-known video acknowledges
// without creating a second queue record.
package ingest
