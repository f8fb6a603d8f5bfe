package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTalkOrderIsPermutation(t *testing.T) {
	living := []string{"Ana", "Beto", "Caro", "Dani"}

	order := newTalkOrder(living)

	assert.ElementsMatch(t, living, order)
}

func TestNewTalkOrderDoesNotShareBacking(t *testing.T) {
	living := []string{"Ana", "Beto", "Caro"}

	order := newTalkOrder(living)
	order[0] = "mutated"

	assert.Equal(t, []string{"Ana", "Beto", "Caro"}, living)
}

func TestNewTalkOrderIsFreshEachCall(t *testing.T) {
	living := []string{"Ana", "Beto", "Caro", "Dani", "Eli", "Fede"}

	seen := make(map[string]bool)
	for i := 0; i < 60; i++ {
		seen[strings.Join(newTalkOrder(living), ",")] = true
	}

	assert.Greater(t, len(seen), 1, "repeated calls over the same living set should not always produce the same order")
}

func TestNewTalkOrderEmpty(t *testing.T) {
	assert.Empty(t, newTalkOrder(nil))
}
