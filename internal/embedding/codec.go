package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeVector packs a float32 vector into a little-endian blob.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, value := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(value))
	}
	return buf
}

// decodeVector unpacks a little-endian blob into a float32 vector of the
// expected dimensionality.
func decodeVector(blob []byte, dim int) ([]float32, error) {
	if len(blob) != 4*dim {
		return nil, fmt.Errorf("vector blob is %d bytes, expected %d for dim %d", len(blob), 4*dim, dim)
	}
	vector := make([]float32, dim)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector, nil
}
