package alignment

import (
	"math"
	"testing"

	"clipstream/internal/similarity"
	"clipstream/internal/testsupport"
)

func TestAlignIdenticalSequencesHasZeroCost(t *testing.T) {
	seq := testsupport.RampSequence(0, 50, 8)

	result, err := Align(seq, seq, similarity.Euclidean)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if result.NormalizedCost != 0 {
		t.Fatalf("self-alignment cost must be 0, got %v", result.NormalizedCost)
	}
	if result.Deviation != 0 {
		t.Fatalf("self-alignment must be purely diagonal, got deviation %v", result.Deviation)
	}
	if result.PathLength != 50 {
		t.Fatalf("diagonal path length should equal sequence length, got %d", result.PathLength)
	}
}

func TestAlignRejectsEmptySequences(t *testing.T) {
	seq := testsupport.RampSequence(0, 5, 4)
	if _, err := Align(nil, seq, similarity.Euclidean); err == nil {
		t.Fatal("expected error for empty candidate")
	}
	if _, err := AlignSubsequence(seq, nil, similarity.Euclidean); err == nil {
		t.Fatal("expected error for empty reference")
	}
}

func TestAlignSubsequenceFindsTrimOffset(t *testing.T) {
	reference := testsupport.RampSequence(0, 300, 8)
	candidate := reference[100:130]

	result, err := AlignSubsequence(candidate, reference, similarity.Euclidean)
	if err != nil {
		t.Fatalf("AlignSubsequence: %v", err)
	}
	if result.NormalizedCost != 0 {
		t.Fatalf("exact sub-clip cost must be 0, got %v", result.NormalizedCost)
	}
	if result.StartB != 100 {
		t.Fatalf("expected offset 100, got %d", result.StartB)
	}
	if result.EndB != 129 {
		t.Fatalf("expected path to end at window 129, got %d", result.EndB)
	}
}

func TestAlignSubsequenceToleratesNoise(t *testing.T) {
	reference := testsupport.RampSequence(0, 200, 8)
	candidate := testsupport.NoisySequence(reference[40:80], 0.01)

	result, err := AlignSubsequence(candidate, reference, similarity.Euclidean)
	if err != nil {
		t.Fatalf("AlignSubsequence: %v", err)
	}
	if result.StartB < 38 || result.StartB > 42 {
		t.Fatalf("noisy sub-clip should align near window 40, got %d", result.StartB)
	}
	if result.NormalizedCost > 0.1 {
		t.Fatalf("noisy sub-clip cost should stay small, got %v", result.NormalizedCost)
	}
}

func TestAlignCostIsSymmetricForComparableSequences(t *testing.T) {
	a := testsupport.RampSequence(0, 60, 8)
	b := testsupport.NoisySequence(a, 0.005)

	forward, err := Align(a, b, similarity.Euclidean)
	if err != nil {
		t.Fatalf("Align forward: %v", err)
	}
	backward, err := Align(b, a, similarity.Euclidean)
	if err != nil {
		t.Fatalf("Align backward: %v", err)
	}
	if math.Abs(forward.NormalizedCost-backward.NormalizedCost) > 1e-6 {
		t.Fatalf("costs differ: %v vs %v", forward.NormalizedCost, backward.NormalizedCost)
	}
}

func TestAlignHandlesTimescaleStretch(t *testing.T) {
	// The same content sampled at double rate: each window duplicated.
	base := testsupport.RampSequence(0, 40, 8)
	stretched := make([][]float32, 0, 80)
	for _, vec := range base {
		stretched = append(stretched, vec, vec)
	}

	result, err := Align(base, stretched, similarity.Euclidean)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if result.NormalizedCost > 1e-9 {
		t.Fatalf("stretched replay should align at zero cost, got %v", result.NormalizedCost)
	}
}
