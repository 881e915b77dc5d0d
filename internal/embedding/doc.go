// Package embedding persists whole-clip and per-window embedding vectors
// together with the relationship edges derived from them. It is the only
// writer of both: stage executors hand it vectors and verdicts, and readers
// (similarity queries, the CLI) only ever observe committed rows.
package embedding
