// Package queue persists video pipeline state in SQLite: the processing
// status machine, durable retry bookkeeping, per-video leases, and the
// operator-facing queue statistics.
package queue
