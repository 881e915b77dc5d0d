// Package transcribe runs the transcribe stage: it invokes the configured
// speech-to-text tool against the source audio and uploads the resulting
// transcript document.
package transcribe
