// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns a parsed Result
//
// Helper methods on Result expose container duration, size, and the primary
// video stream's dimensions without callers touching raw JSON.
package ffprobe
