package main

import (
	"math/rand/v2"
	"slices"
)

// newTalkOrder returns a fresh uniform random speaking order over the given
// living players. Callers pass the already-filtered living set; a new order
// is drawn at the start of every talk phase, including post-tie replays.
func newTalkOrder(living []string) []string {
	order := slices.Clone(living)
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}
