// Package shuffle produces uniformly random traversal orders for queue positions.
package shuffle

import (
	"math/rand"
	"time"
)

// Generate returns a permutation of [0, n) using a Fisher-Yates shuffle.
// A nil rng falls back to a time-seeded source.
func Generate(n int, rng *rand.Rand) []int {
	if n <= 0 {
		return []int{}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if n == 1 {
		return order
	}

	if rng == nil {
		rng = NewSource(time.Now().UnixNano())
	}

	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// NewSource returns a deterministic random source for the given seed.
func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed)) //nolint:gosec // shuffle order is not security sensitive
}
