package domain

import "math"

// IsSolved reports whether every cell holds the tile matching its own
// position. The same equality semantics back PercentCorrect and the
// engine's win checks.
func IsSolved(board []int) bool {
	for i, v := range board {
		if v != i {
			return false
		}
	}
	return true
}

// PercentCorrect returns the round-to-nearest percentage of cells whose
// tile matches its position, 0..100. An empty board is trivially solved.
func PercentCorrect(board []int) int {
	if len(board) == 0 {
		return 100
	}
	correct := 0
	for i, v := range board {
		if v == i {
			correct++
		}
	}
	return int(math.Round(float64(correct) * 100 / float64(len(board))))
}

// IsPermutation reports whether board is exactly a permutation of
// [0, size). Scoring and solved checks are only defined over permutations.
func IsPermutation(board []int, size int) bool {
	if len(board) != size {
		return false
	}
	seen := make([]bool, size)
	for _, v := range board {
		if v < 0 || v >= size || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
