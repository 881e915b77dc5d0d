// Command clipstream is the operator CLI for the processing pipeline. It
// reads and mutates the daemon's SQLite databases directly: queue inspection,
// manual retry and cancellation, relationship lookups, and configuration
// utilities.
package main
