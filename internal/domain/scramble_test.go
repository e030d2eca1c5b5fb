package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrambleDeterministic(t *testing.T) {
	first := Scramble("abc123", 5, 5, 512)
	second := Scramble("abc123", 5, 5, 512)
	assert.Equal(t, first, second, "same inputs must produce the same board")
}

func TestScrambleDivergesBySeed(t *testing.T) {
	a := Scramble("seed-a", 5, 5, 512)
	b := Scramble("seed-b", 5, 5, 512)
	assert.NotEqual(t, a, b)
}

func TestScrambleDivergesByParams(t *testing.T) {
	a := Scramble("shared", 5, 5, 512)
	b := Scramble("shared", 5, 5, 256)

	require.Len(t, a, 25)
	require.Len(t, b, 25)
	assert.NotEqual(t, a, b, "swap count is folded into the rng stream")
}

func TestScrambleIsPermutation(t *testing.T) {
	cases := []struct {
		name       string
		rows, cols int
		k          int
	}{
		{"square", 5, 5, 512},
		{"rectangular", 3, 7, 100},
		{"two cells", 1, 2, 9},
		{"heavy scramble", 4, 4, 10000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			board := Scramble("perm-check", tc.rows, tc.cols, tc.k)
			require.Len(t, board, tc.rows*tc.cols)
			assert.True(t, IsPermutation(board, tc.rows*tc.cols))
		})
	}
}

func TestScrambleZeroSwapsIsIdentity(t *testing.T) {
	board := Scramble("whatever", 5, 5, 0)
	assert.True(t, IsSolved(board))
}

func TestScrambleSingleCellBoard(t *testing.T) {
	// A 1x1 board has no adjacent pair to swap; the scramble is a no-op.
	board := Scramble("tiny", 1, 1, 512)
	assert.Equal(t, []int{0}, board)
}

func TestScrambleActuallyShuffles(t *testing.T) {
	board := Scramble("abc123", 5, 5, 512)
	assert.False(t, IsSolved(board), "512 swaps on 25 cells should not land on identity")
}

func TestAdjacentPositionsCorners(t *testing.T) {
	// Top-left of a 3x3 grid: only right and down.
	assert.ElementsMatch(t, []int{1, 3}, adjacentPositions(0, 3, 3))
	// Bottom-right: only left and up.
	assert.ElementsMatch(t, []int{5, 7}, adjacentPositions(8, 3, 3))
	// Center: all four.
	assert.ElementsMatch(t, []int{1, 3, 5, 7}, adjacentPositions(4, 3, 3))
}
