package similarity

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Neighbor is a single nearest-neighbor result.
type Neighbor struct {
	VideoID  string
	Distance float64
}

// Index is the nearest-neighbor surface the analyze stage queries. Inserts
// must be visible to queries immediately.
type Index interface {
	Insert(videoID string, vector []float32, createdAt time.Time) error
	Nearest(query []float32, k int) []Neighbor
	Remove(videoID string)
	Len() int
}

type entry struct {
	videoID   string
	vector    []float32
	createdAt time.Time
}

// LinearIndex is an exact brute-force index. Queries scan every stored
// vector, which is adequate at self-hosted corpus sizes.
type LinearIndex struct {
	mu       sync.RWMutex
	dim      int
	distance DistanceFunc
	entries  []entry
	byID     map[string]int
}

// NewLinearIndex builds an empty index for vectors of the given dimension.
func NewLinearIndex(dim int, distance DistanceFunc) *LinearIndex {
	if distance == nil {
		distance = Euclidean
	}
	return &LinearIndex{
		dim:      dim,
		distance: distance,
		byID:     make(map[string]int),
	}
}

// Insert adds or replaces a video's vector. The vector is copied, so the
// caller may reuse its slice.
func (x *LinearIndex) Insert(videoID string, vector []float32, createdAt time.Time) error {
	if len(vector) != x.dim {
		return fmt.Errorf("vector has dim %d, index expects %d", len(vector), x.dim)
	}
	copied := make([]float32, len(vector))
	copy(copied, vector)

	x.mu.Lock()
	defer x.mu.Unlock()
	if i, ok := x.byID[videoID]; ok {
		x.entries[i].vector = copied
		x.entries[i].createdAt = createdAt
		return nil
	}
	x.byID[videoID] = len(x.entries)
	x.entries = append(x.entries, entry{videoID: videoID, vector: copied, createdAt: createdAt})
	return nil
}

// Nearest returns up to k neighbors sorted ascending by distance, ties
// broken by earliest-created video first.
func (x *LinearIndex) Nearest(query []float32, k int) []Neighbor {
	if k <= 0 || len(query) != x.dim {
		return nil
	}

	x.mu.RLock()
	type scored struct {
		Neighbor
		createdAt time.Time
	}
	results := make([]scored, 0, len(x.entries))
	for _, e := range x.entries {
		results = append(results, scored{
			Neighbor:  Neighbor{VideoID: e.videoID, Distance: x.distance(query, e.vector)},
			createdAt: e.createdAt,
		})
	}
	x.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		if !results[i].createdAt.Equal(results[j].createdAt) {
			return results[i].createdAt.Before(results[j].createdAt)
		}
		return results[i].VideoID < results[j].VideoID
	})

	if len(results) > k {
		results = results[:k]
	}
	neighbors := make([]Neighbor, len(results))
	for i, r := range results {
		neighbors[i] = r.Neighbor
	}
	return neighbors
}

// Remove drops a video from the index. Removing an absent video is a no-op.
func (x *LinearIndex) Remove(videoID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	i, ok := x.byID[videoID]
	if !ok {
		return
	}
	last := len(x.entries) - 1
	if i != last {
		x.entries[i] = x.entries[last]
		x.byID[x.entries[i].videoID] = i
	}
	x.entries = x.entries[:last]
	delete(x.byID, videoID)
}

// Len returns the number of indexed videos.
func (x *LinearIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}
