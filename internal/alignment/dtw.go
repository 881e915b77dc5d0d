package alignment

import (
	"errors"

	"clipstream/internal/similarity"
)

// Result summarizes the optimal warping path between a candidate sequence A
// and a reference sequence B.
type Result struct {
	// NormalizedCost is the total path cost divided by the path length,
	// which removes the bias toward short sequences.
	NormalizedCost float64
	// PathLength is the number of cells on the optimal path.
	PathLength int
	// StartB and EndB are the first and last reference indices the path
	// touches. For a trimmed clip, StartB is where the clip begins inside
	// the reference.
	StartB int
	EndB   int
	// Deviation is the fraction of non-diagonal steps on the path. A near
	// zero value means the two sequences advance in lockstep.
	Deviation float64
}

// step directions recorded during the forward pass, one byte per cell.
const (
	stepDiagonal = byte(0)
	stepUp       = byte(1)
	stepLeft     = byte(2)
)

// ErrEmptySequence is returned when either input has no windows.
var ErrEmptySequence = errors.New("alignment requires non-empty sequences")

// Align computes the classic DTW alignment of a against b with both path
// endpoints anchored: the path runs from (0,0) to (m-1,n-1). Used for pov
// detection between videos of comparable length.
func Align(a, b [][]float32, distance similarity.DistanceFunc) (Result, error) {
	return align(a, b, distance, true)
}

// AlignSubsequence computes an open-begin, open-end DTW alignment: the
// candidate a may match any contiguous span of the reference b. The first
// row carries no accumulated cost and the total cost is the minimum over
// the last row, so a clip cut from the middle of b aligns at its true
// offset instead of being dragged to the origin. Used for trimmed-from
// detection.
func AlignSubsequence(a, b [][]float32, distance similarity.DistanceFunc) (Result, error) {
	return align(a, b, distance, false)
}

// align runs the shared forward pass. The cost recurrence keeps only two
// rows of accumulated cost; the byte-per-cell direction matrix is retained
// so the optimal path can be reconstructed afterwards.
func align(a, b [][]float32, distance similarity.DistanceFunc, anchored bool) (Result, error) {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return Result{}, ErrEmptySequence
	}
	if distance == nil {
		distance = similarity.Euclidean
	}

	directions := make([]byte, m*n)
	previous := make([]float64, n)
	current := make([]float64, n)

	previous[0] = distance(a[0], b[0])
	for j := 1; j < n; j++ {
		if anchored {
			previous[j] = previous[j-1] + distance(a[0], b[j])
			directions[j] = stepLeft
		} else {
			previous[j] = distance(a[0], b[j])
		}
	}

	for i := 1; i < m; i++ {
		current[0] = previous[0] + distance(a[i], b[0])
		directions[i*n] = stepUp
		for j := 1; j < n; j++ {
			cost := distance(a[i], b[j])
			best := previous[j-1]
			dir := stepDiagonal
			if previous[j] < best {
				best = previous[j]
				dir = stepUp
			}
			if current[j-1] < best {
				best = current[j-1]
				dir = stepLeft
			}
			current[j] = best + cost
			directions[i*n+j] = dir
		}
		previous, current = current, previous
	}

	endB := n - 1
	if !anchored {
		for j := 0; j < n; j++ {
			if previous[j] < previous[endB] {
				endB = j
			}
		}
	}

	return backtrack(directions, m, n, endB, previous[endB], anchored), nil
}

// backtrack walks the direction matrix from (m-1, endB) toward row zero and
// derives the path statistics the classifiers need.
func backtrack(directions []byte, m, n, endB int, totalCost float64, anchored bool) Result {
	i, j := m-1, endB
	pathLength := 1
	offDiagonal := 0

	for i > 0 || (anchored && j > 0) {
		switch directions[i*n+j] {
		case stepDiagonal:
			i--
			j--
		case stepUp:
			i--
			offDiagonal++
		default:
			j--
			offDiagonal++
		}
		pathLength++
	}

	return Result{
		NormalizedCost: totalCost / float64(pathLength),
		PathLength:     pathLength,
		StartB:         j,
		EndB:           endB,
		Deviation:      float64(offDiagonal) / float64(pathLength),
	}
}
