package embedding

import "time"

// Relation kinds. Duplicate and trimmed-from edges are directed (video_a is
// the duplicate or the trimmed clip); similar and pov edges are undirected
// and stored once with video_a < video_b.
const (
	KindDuplicate   = "duplicate"
	KindSimilar     = "similar"
	KindPOV         = "pov"
	KindTrimmedFrom = "trimmed_from"
)

// Relation is a persisted relationship edge between two videos.
type Relation struct {
	VideoA string
	VideoB string
	Kind   string
	Score  float64
	// OffsetWindows is the window index in video B where video A's content
	// begins. Only meaningful for trimmed-from edges.
	OffsetWindows *int
	CreatedAt     time.Time
}

// ClipVector pairs a video with its whole-clip embedding, in insertion order.
type ClipVector struct {
	VideoID   string
	Vector    []float32
	CreatedAt time.Time
}

// Directed reports whether the relation kind distinguishes its endpoints.
func Directed(kind string) bool {
	return kind == KindDuplicate || kind == KindTrimmedFrom
}

// normalizeEndpoints orders the endpoints of undirected edges so each pair
// is stored exactly once.
func normalizeEndpoints(kind, a, b string) (string, string) {
	if !Directed(kind) && b < a {
		return b, a
	}
	return a, b
}
