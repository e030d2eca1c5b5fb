package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSolved(t *testing.T) {
	assert.True(t, IsSolved([]int{0, 1, 2, 3}))
	assert.False(t, IsSolved([]int{1, 0, 2, 3}))
	assert.True(t, IsSolved(nil))
}

func TestPercentCorrect(t *testing.T) {
	assert.Equal(t, 100, PercentCorrect([]int{0, 1, 2, 3}))
	assert.Equal(t, 0, PercentCorrect([]int{1, 0, 3, 2}))
	assert.Equal(t, 50, PercentCorrect([]int{0, 1, 3, 2}))
	// 1 of 3 correct rounds 33.33 down.
	assert.Equal(t, 33, PercentCorrect([]int{0, 2, 1}))
	// 2 of 3 correct rounds 66.67 up.
	assert.Equal(t, 67, PercentCorrect([]int{0, 1, 0}))
	assert.Equal(t, 100, PercentCorrect(nil))
}

func TestIsPermutation(t *testing.T) {
	assert.True(t, IsPermutation([]int{2, 0, 1}, 3))
	assert.False(t, IsPermutation([]int{0, 0, 1}, 3), "duplicate value")
	assert.False(t, IsPermutation([]int{0, 1, 3}, 3), "value out of range")
	assert.False(t, IsPermutation([]int{0, 1, -1}, 3), "negative value")
	assert.False(t, IsPermutation([]int{0, 1}, 3), "wrong length")
}
