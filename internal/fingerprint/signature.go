package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// sampleSize is the number of bytes hashed from each sampled region.
const sampleSize = 256 * 1024

// RangeReader is the subset of object storage the signature needs: byte
// ranges and total size, never the whole object.
type RangeReader interface {
	Size(ctx context.Context, key string) (int64, error)
	ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error)
}

// Compute derives a deterministic content signature for the object under
// key. The signature covers the object size plus three sampled regions
// (head, middle, tail); objects small enough to fit in the samples are
// hashed whole.
func Compute(ctx context.Context, reader RangeReader, key string) (string, error) {
	size, err := reader.Size(ctx, key)
	if err != nil {
		return "", fmt.Errorf("object size: %w", err)
	}
	if size <= 0 {
		return "", fmt.Errorf("object %s is empty", key)
	}

	hasher := sha256.New()
	var sizeBytes [8]byte
	binary.LittleEndian.PutUint64(sizeBytes[:], uint64(size))
	hasher.Write(sizeBytes[:])

	for _, region := range sampleRegions(size) {
		chunk, err := reader.ReadRange(ctx, key, region.offset, region.length)
		if err != nil {
			return "", fmt.Errorf("sample at %d: %w", region.offset, err)
		}
		hasher.Write(chunk)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

type sampleRegion struct {
	offset, length int64
}

// sampleRegions returns the non-overlapping regions hashed for a given object
// size. Objects no larger than three samples are hashed whole; anything
// bigger gets fixed-size head, middle, and tail windows.
func sampleRegions(size int64) []sampleRegion {
	if size <= 3*sampleSize {
		return []sampleRegion{{offset: 0, length: size}}
	}
	middle := (size / 2) - (sampleSize / 2)
	tail := size - sampleSize
	return []sampleRegion{
		{offset: 0, length: sampleSize},
		{offset: middle, length: sampleSize},
		{offset: tail, length: sampleSize},
	}
}
