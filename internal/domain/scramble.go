package domain

import "fmt"

// seededRand is a linear congruential generator seeded from a string hash.
// The stream is reproducible bit-for-bit on any platform, which is what
// lets clients rebuild the exact same scrambled board from the public seed.
type seededRand struct {
	state uint32
}

func newSeededRand(seed string) *seededRand {
	var h int32
	for _, c := range seed {
		h = (h << 5) - h + int32(c)
	}
	return &seededRand{state: uint32(h)}
}

func (r *seededRand) next() uint32 {
	r.state = r.state*1664525 + 1013904223
	return r.state
}

// intn returns a value in [0, n). n must be positive.
func (r *seededRand) intn(n int) int {
	return int(r.next() % uint32(n))
}

// adjacentPositions returns the orthogonal neighbors of pos on a rows x cols
// grid: up, down, left, right, bounds-checked, no wraparound.
func adjacentPositions(pos, rows, cols int) []int {
	row := pos / cols
	col := pos % cols
	adjacent := make([]int, 0, 4)

	if row > 0 {
		adjacent = append(adjacent, pos-cols)
	}
	if row < rows-1 {
		adjacent = append(adjacent, pos+cols)
	}
	if col > 0 {
		adjacent = append(adjacent, pos-1)
	}
	if col < cols-1 {
		adjacent = append(adjacent, pos+1)
	}
	return adjacent
}

// Scramble deterministically derives a shuffled board from a seed: starting
// from the identity permutation [0 .. rows*cols-1], it performs exactly k
// seeded adjacent swaps. A swap that would exactly undo the previous one is
// excluded so the scramble doesn't waste iterations oscillating in place,
// falling back to the full neighbor set if the exclusion empties it.
//
// Same inputs always produce the same permutation.
func Scramble(seed string, rows, cols, k int) []int {
	size := rows * cols
	board := make([]int, size)
	for i := range board {
		board[i] = i
	}
	if size < 2 {
		return board
	}

	// rows/cols/k are folded into the stream so boards with the same seed
	// but different parameters don't correlate.
	rng := newSeededRand(fmt.Sprintf("%s-%d-%d-%d", seed, rows, cols, k))
	lastA, lastB := -1, -1

	for i := 0; i < k; i++ {
		pos1 := rng.intn(size)
		adjacent := adjacentPositions(pos1, rows, cols)
		if len(adjacent) == 0 {
			continue
		}

		valid := adjacent
		if lastA >= 0 {
			valid = make([]int, 0, len(adjacent))
			for _, pos := range adjacent {
				if (pos1 == lastA && pos == lastB) || (pos1 == lastB && pos == lastA) {
					continue
				}
				valid = append(valid, pos)
			}
			if len(valid) == 0 {
				valid = adjacent
			}
		}

		pos2 := valid[rng.intn(len(valid))]
		board[pos1], board[pos2] = board[pos2], board[pos1]
		lastA, lastB = pos1, pos2
	}

	return board
}
