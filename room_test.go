package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateOrGetIsIdempotent(t *testing.T) {
	cfg := testConfig()
	reg := newRegistry()

	room := reg.createOrGet(cfg, "ABCDE")
	require.NotNil(t, room)

	again := reg.createOrGet(cfg, "ABCDE")
	assert.Same(t, room, again)

	other := reg.createOrGet(cfg, "FGHIJ")
	assert.NotSame(t, room, other)
}

func TestRegistryLookupAndRemove(t *testing.T) {
	cfg := testConfig()
	reg := newRegistry()

	_, ok := reg.get("ABCDE")
	assert.False(t, ok)

	room := reg.createOrGet(cfg, "ABCDE")
	found, ok := reg.get("ABCDE")
	require.True(t, ok)
	assert.Same(t, room, found)

	reg.remove("ABCDE")
	_, ok = reg.get("ABCDE")
	assert.False(t, ok)
}

func TestLivingExcludesEliminated(t *testing.T) {
	r := newRoom("ABCDE")
	r.players = namedPlayers("Ana", "Beto", "Caro")
	r.eliminated = []string{"Beto"}

	assert.Equal(t, []string{"Ana", "Caro"}, r.livingLocked())
	assert.True(t, r.isEliminatedLocked("Beto"))
	assert.False(t, r.isEliminatedLocked("Ana"))
}

func TestClampImpostors(t *testing.T) {
	assert.Equal(t, 1, clampImpostors(-2))
	assert.Equal(t, 1, clampImpostors(0))
	assert.Equal(t, 2, clampImpostors(2))
	assert.Equal(t, 3, clampImpostors(9))
}
