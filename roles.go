package main

import (
	"math/rand/v2"
	"strings"
)

// assignRoles picks impostors from the player list via an unbiased random
// permutation and chooses the round's secret word from the submitted
// suggestions. With innocentsOnly set, only suggestions made by players who
// ended up innocent are candidates, so an impostor can never plant a word
// they already know. Returns an empty secret when no candidate exists.
func assignRoles(players []Player, impostorCount int, suggestions map[string]string, innocentsOnly bool) (map[string]string, string) {
	count := max(1, min(impostorCount, len(players)-1))

	indices := rand.Perm(len(players))
	impostors := make(map[int]bool, count)
	for _, i := range indices[:count] {
		impostors[i] = true
	}

	roles := make(map[string]string, len(players))
	for i, p := range players {
		if impostors[i] {
			roles[p.Name] = roleImpostor
		} else {
			roles[p.Name] = roleInnocent
		}
	}

	candidates := make([]string, 0, len(suggestions))
	for _, p := range players {
		if innocentsOnly && roles[p.Name] != roleInnocent {
			continue
		}
		if s := strings.TrimSpace(suggestions[p.Name]); s != "" {
			candidates = append(candidates, s)
		}
	}

	secret := ""
	if len(candidates) > 0 {
		secret = candidates[rand.IntN(len(candidates))]
	}

	return roles, secret
}
