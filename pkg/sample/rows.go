package sample

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var ErrInsufficientRows = errors.New("sample: more rows requested than available")

// Rows draws n distinct rows from x uniformly at random without
// replacement, returned in the order drawn. rnd is caller-supplied so
// tests can seed it.
func Rows(rnd *rand.Rand, x [][2]int, n int) ([][2]int, error) {
	if n > len(x) {
		return nil, fmt.Errorf("%w: requested %d of %d", ErrInsufficientRows, n, len(x))
	}
	out := make([][2]int, n)
	for i, j := range rnd.Perm(len(x))[:n] {
		out[i] = x[j]
	}
	return out, nil
}
