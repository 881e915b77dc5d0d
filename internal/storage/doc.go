// Package storage wraps the S3-compatible object store holding raw uploads
// and every processed artifact. Object key layout is centralized here so
// stage executors never build paths by hand.
package storage
