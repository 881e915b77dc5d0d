package similarity

import (
	"math"
	"testing"
	"time"
)

func TestMetricFor(t *testing.T) {
	if _, err := MetricFor("euclidean"); err != nil {
		t.Fatalf("euclidean: %v", err)
	}
	if _, err := MetricFor(" Cosine "); err != nil {
		t.Fatalf("cosine with whitespace: %v", err)
	}
	if _, err := MetricFor(""); err != nil {
		t.Fatalf("empty metric should default: %v", err)
	}
	if _, err := MetricFor("manhattan"); err == nil {
		t.Fatal("unknown metric must error")
	}
}

func TestEuclidean(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{3, 4, 0}
	if got := Euclidean(a, b); math.Abs(got-5) > 1e-9 {
		t.Fatalf("got %v, want 5", got)
	}
	if got := Euclidean(b, b); got != 0 {
		t.Fatalf("self distance should be 0, got %v", got)
	}
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if got := Cosine(a, b); math.Abs(got-1) > 1e-9 {
		t.Fatalf("orthogonal vectors: got %v, want 1", got)
	}
	if got := Cosine(a, []float32{2, 0}); math.Abs(got) > 1e-9 {
		t.Fatalf("parallel vectors: got %v, want 0", got)
	}
	if got := Cosine(a, []float32{0, 0}); got != 1 {
		t.Fatalf("zero vector: got %v, want 1", got)
	}
}

func TestLinearIndexNearestOrdering(t *testing.T) {
	index := NewLinearIndex(2, Euclidean)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	must := func(id string, vec []float32, at time.Time) {
		t.Helper()
		if err := index.Insert(id, vec, at); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	must("far", []float32{10, 10}, base)
	must("near", []float32{1, 0}, base.Add(time.Hour))
	must("nearest", []float32{0.5, 0}, base.Add(2*time.Hour))

	got := index.Nearest([]float32{0, 0}, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(got))
	}
	if got[0].VideoID != "nearest" || got[1].VideoID != "near" {
		t.Fatalf("wrong order: %+v", got)
	}
	if got[0].Distance >= got[1].Distance {
		t.Fatalf("distances not ascending: %+v", got)
	}
}

func TestLinearIndexTieBreaksByEarliestCreated(t *testing.T) {
	index := NewLinearIndex(2, Euclidean)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := index.Insert("younger", []float32{1, 0}, base.Add(time.Hour)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := index.Insert("older", []float32{0, 1}, base); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got := index.Nearest([]float32{0, 0}, 2)
	if got[0].VideoID != "older" {
		t.Fatalf("equidistant tie must favor earliest created, got %+v", got)
	}
}

func TestLinearIndexInsertReplacesAndRemoves(t *testing.T) {
	index := NewLinearIndex(1, Euclidean)
	now := time.Now()

	if err := index.Insert("vid", []float32{5}, now); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := index.Insert("vid", []float32{1}, now); err != nil {
		t.Fatalf("re-Insert: %v", err)
	}
	if index.Len() != 1 {
		t.Fatalf("re-insert must replace, len=%d", index.Len())
	}

	got := index.Nearest([]float32{0}, 1)
	if math.Abs(got[0].Distance-1) > 1e-9 {
		t.Fatalf("replaced vector not used: %+v", got)
	}

	index.Remove("vid")
	index.Remove("vid")
	if index.Len() != 0 {
		t.Fatalf("expected empty index after removal, len=%d", index.Len())
	}
	if got := index.Nearest([]float32{0}, 1); len(got) != 0 {
		t.Fatalf("removed vector still queryable: %+v", got)
	}
}

func TestLinearIndexRejectsWrongDimension(t *testing.T) {
	index := NewLinearIndex(3, Euclidean)
	if err := index.Insert("vid", []float32{1, 2}, time.Now()); err == nil {
		t.Fatal("expected dimension error")
	}
	if got := index.Nearest([]float32{1, 2}, 5); got != nil {
		t.Fatalf("wrong-dimension query must return nil, got %+v", got)
	}
}
