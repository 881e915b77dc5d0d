// Package analysis runs the analyze stage: it obtains embedding vectors
// from the external embedding service, persists them, and derives similar,
// pov, and trimmed-from relationships via the similarity index and the
// alignment engine.
package analysis
