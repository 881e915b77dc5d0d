package embedding_test

import (
	"context"
	"testing"

	"clipstream/internal/embedding"
	"clipstream/internal/testsupport"
)

func TestSaveVectorsRoundTrip(t *testing.T) {
	store := testsupport.MustOpenEmbeddingStore(t, testsupport.NewConfig(t, testsupport.WithEmbeddingDim(4)))
	ctx := context.Background()

	clip := []float32{0.1, -0.2, 0.3, 0.4}
	segments := testsupport.RampSequence(0, 3, 4)

	if err := store.SaveVectors(ctx, "vid-1", clip, segments); err != nil {
		t.Fatalf("SaveVectors: %v", err)
	}

	gotClip, err := store.ClipVector(ctx, "vid-1")
	if err != nil {
		t.Fatalf("ClipVector: %v", err)
	}
	for i, v := range clip {
		if gotClip[i] != v {
			t.Fatalf("clip[%d]: got %v, want %v", i, gotClip[i], v)
		}
	}

	gotSegments, err := store.SegmentVectors(ctx, "vid-1")
	if err != nil {
		t.Fatalf("SegmentVectors: %v", err)
	}
	if len(gotSegments) != len(segments) {
		t.Fatalf("got %d segments, want %d", len(gotSegments), len(segments))
	}
	for i := range segments {
		for d := range segments[i] {
			if gotSegments[i][d] != segments[i][d] {
				t.Fatalf("segment[%d][%d]: got %v, want %v", i, d, gotSegments[i][d], segments[i][d])
			}
		}
	}
}

func TestSaveVectorsReplacesOnReanalysis(t *testing.T) {
	store := testsupport.MustOpenEmbeddingStore(t, testsupport.NewConfig(t, testsupport.WithEmbeddingDim(2)))
	ctx := context.Background()

	if err := store.SaveVectors(ctx, "vid-1", []float32{1, 1}, testsupport.ConstantSequence(5, 2, 1)); err != nil {
		t.Fatalf("first SaveVectors: %v", err)
	}
	if err := store.SaveVectors(ctx, "vid-1", []float32{2, 2}, testsupport.ConstantSequence(2, 2, 2)); err != nil {
		t.Fatalf("second SaveVectors: %v", err)
	}

	segments, err := store.SegmentVectors(ctx, "vid-1")
	if err != nil {
		t.Fatalf("SegmentVectors: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("stale segments survived re-analysis: got %d, want 2", len(segments))
	}
	clip, err := store.ClipVector(ctx, "vid-1")
	if err != nil {
		t.Fatalf("ClipVector: %v", err)
	}
	if clip[0] != 2 {
		t.Fatalf("clip vector not replaced: got %v", clip[0])
	}
}

func TestSaveVectorsRejectsDimensionMismatch(t *testing.T) {
	store := testsupport.MustOpenEmbeddingStore(t, testsupport.NewConfig(t, testsupport.WithEmbeddingDim(4)))

	err := store.SaveVectors(context.Background(), "vid-1", []float32{1, 2}, nil)
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestClipVectorMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenEmbeddingStore(t, testsupport.NewConfig(t, testsupport.WithEmbeddingDim(4)))

	vector, err := store.ClipVector(context.Background(), "vid-missing")
	if err != nil {
		t.Fatalf("ClipVector: %v", err)
	}
	if vector != nil {
		t.Fatalf("expected nil for missing vector, got %v", vector)
	}
}

func TestRecordDuplicateKeepsSingleEdge(t *testing.T) {
	store := testsupport.MustOpenEmbeddingStore(t, testsupport.NewConfig(t, testsupport.WithEmbeddingDim(2)))
	ctx := context.Background()

	if err := store.RecordDuplicate(ctx, "vid-dup", "vid-orig-1"); err != nil {
		t.Fatalf("RecordDuplicate: %v", err)
	}
	if err := store.RecordDuplicate(ctx, "vid-dup", "vid-orig-2"); err != nil {
		t.Fatalf("RecordDuplicate replace: %v", err)
	}

	relations, err := store.RelationsFor(ctx, "vid-dup")
	if err != nil {
		t.Fatalf("RelationsFor: %v", err)
	}
	if len(relations) != 1 {
		t.Fatalf("expected exactly one duplicate edge, got %d", len(relations))
	}
	if relations[0].Kind != embedding.KindDuplicate || relations[0].VideoB != "vid-orig-2" {
		t.Fatalf("unexpected edge: %+v", relations[0])
	}

	if err := store.RecordDuplicate(ctx, "vid-dup", "vid-dup"); err == nil {
		t.Fatal("self-duplicate must be rejected")
	}
}

func TestReplaceAnalysisRelations(t *testing.T) {
	store := testsupport.MustOpenEmbeddingStore(t, testsupport.NewConfig(t, testsupport.WithEmbeddingDim(2)))
	ctx := context.Background()

	offset := 100
	first := []embedding.Relation{
		{VideoA: "vid-new", VideoB: "vid-ref", Kind: embedding.KindTrimmedFrom, Score: 0.05, OffsetWindows: &offset},
		{VideoA: "vid-ref", VideoB: "vid-new", Kind: embedding.KindSimilar, Score: 0.2},
	}
	if err := store.ReplaceAnalysisRelations(ctx, "vid-new", first); err != nil {
		t.Fatalf("ReplaceAnalysisRelations: %v", err)
	}

	relations, err := store.RelationsFor(ctx, "vid-new")
	if err != nil {
		t.Fatalf("RelationsFor: %v", err)
	}
	if len(relations) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(relations))
	}

	// Undirected edges must be reachable from either endpoint.
	fromRef, err := store.RelationsFor(ctx, "vid-ref")
	if err != nil {
		t.Fatalf("RelationsFor ref: %v", err)
	}
	if len(fromRef) != 2 {
		t.Fatalf("expected 2 edges from reference side, got %d", len(fromRef))
	}

	// Re-analysis replaces the edge set wholesale.
	second := []embedding.Relation{
		{VideoA: "vid-new", VideoB: "vid-other", Kind: embedding.KindPOV, Score: 0.1},
	}
	if err := store.ReplaceAnalysisRelations(ctx, "vid-new", second); err != nil {
		t.Fatalf("second ReplaceAnalysisRelations: %v", err)
	}
	relations, err = store.RelationsFor(ctx, "vid-new")
	if err != nil {
		t.Fatalf("RelationsFor after replace: %v", err)
	}
	if len(relations) != 1 || relations[0].Kind != embedding.KindPOV {
		t.Fatalf("stale analysis edges survived: %+v", relations)
	}

	// Duplicate edges go through RecordDuplicate only.
	err = store.ReplaceAnalysisRelations(ctx, "vid-new", []embedding.Relation{
		{VideoA: "vid-new", VideoB: "vid-x", Kind: embedding.KindDuplicate},
	})
	if err == nil {
		t.Fatal("duplicate kind must be rejected")
	}
}

func TestTrimmedFromOffsetRoundTrip(t *testing.T) {
	store := testsupport.MustOpenEmbeddingStore(t, testsupport.NewConfig(t, testsupport.WithEmbeddingDim(2)))
	ctx := context.Background()

	offset := 42
	edges := []embedding.Relation{
		{VideoA: "vid-clip", VideoB: "vid-full", Kind: embedding.KindTrimmedFrom, Score: 0.08, OffsetWindows: &offset},
	}
	if err := store.ReplaceAnalysisRelations(ctx, "vid-clip", edges); err != nil {
		t.Fatalf("ReplaceAnalysisRelations: %v", err)
	}

	relations, err := store.RelationsFor(ctx, "vid-clip")
	if err != nil {
		t.Fatalf("RelationsFor: %v", err)
	}
	if len(relations) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(relations))
	}
	if relations[0].OffsetWindows == nil || *relations[0].OffsetWindows != 42 {
		t.Fatalf("offset lost in round trip: %+v", relations[0])
	}
	if relations[0].VideoA != "vid-clip" || relations[0].VideoB != "vid-full" {
		t.Fatalf("directed edge endpoints must be preserved: %+v", relations[0])
	}
}
