package alignment

import (
	"testing"

	"clipstream/internal/similarity"
	"clipstream/internal/testsupport"
)

func testThresholds() Thresholds {
	return Thresholds{
		TrimmedMaxCost:       0.12,
		PovMaxCost:           0.18,
		PovDurationTolerance: 0.08,
		PovMaxDeviation:      0.15,
	}
}

func TestRelateDetectsTrimmedClip(t *testing.T) {
	reference := testsupport.RampSequence(0, 300, 8)
	candidate := reference[100:130]

	verdict, ok, err := Relate(candidate, reference, similarity.Euclidean, testThresholds())
	if err != nil {
		t.Fatalf("Relate: %v", err)
	}
	if !ok {
		t.Fatal("expected a trimmed-from verdict")
	}
	if verdict.Kind != KindTrimmedFrom {
		t.Fatalf("expected trimmed_from, got %s", verdict.Kind)
	}
	if verdict.OffsetB != 100 {
		t.Fatalf("expected offset 100, got %d", verdict.OffsetB)
	}
}

func TestRelateDetectsPOV(t *testing.T) {
	// Two recordings of the same event: same temporal structure, small
	// per-window differences from the different camera angle.
	a := testsupport.RampSequence(0, 120, 8)
	b := testsupport.NoisySequence(a, 0.02)

	verdict, ok, err := Relate(a, b, similarity.Euclidean, testThresholds())
	if err != nil {
		t.Fatalf("Relate: %v", err)
	}
	if !ok {
		t.Fatal("expected a pov verdict")
	}
	if verdict.Kind != KindPOV {
		t.Fatalf("expected pov, got %s", verdict.Kind)
	}
}

func TestRelateRejectsUnrelatedContent(t *testing.T) {
	a := testsupport.RampSequence(0, 100, 8)
	b := testsupport.RampSequence(5000, 100, 8)

	_, ok, err := Relate(a, b, similarity.Euclidean, testThresholds())
	if err != nil {
		t.Fatalf("Relate: %v", err)
	}
	if ok {
		t.Fatal("unrelated sequences must not relate")
	}
}

func TestRelateRejectsLargeDurationGapForPOV(t *testing.T) {
	// Candidate longer than reference: trimmed path is unavailable (m > n)
	// and the duration gap exceeds the pov tolerance.
	a := testsupport.RampSequence(0, 200, 8)
	b := testsupport.RampSequence(0, 100, 8)

	_, ok, err := Relate(a, b, similarity.Euclidean, testThresholds())
	if err != nil {
		t.Fatalf("Relate: %v", err)
	}
	if ok {
		t.Fatal("pov must not match across a large duration gap")
	}
}

func TestRelateRequiresReferenceCoverage(t *testing.T) {
	// A candidate whose windows all resemble one reference window would
	// collapse onto it; the coverage check must reject that.
	reference := testsupport.RampSequence(0, 100, 8)
	candidate := make([][]float32, 30)
	for i := range candidate {
		candidate[i] = reference[50]
	}

	verdict, ok, err := Relate(candidate, reference, similarity.Euclidean, testThresholds())
	if err != nil {
		t.Fatalf("Relate: %v", err)
	}
	if ok && verdict.Kind == KindTrimmedFrom {
		t.Fatalf("collapsed path must not produce trimmed-from, got %+v", verdict)
	}
}

func TestRelateEmptyInput(t *testing.T) {
	if _, _, err := Relate(nil, testsupport.RampSequence(0, 10, 4), similarity.Euclidean, testThresholds()); err == nil {
		t.Fatal("expected error for empty candidate")
	}
}
