package main

import (
	"slices"
	"sort"
)

// tallyVotes counts votes per target and returns the maximum count together
// with every target that reached it, sorted by name. More than one leader
// means the round is a tie.
func tallyVotes(votes map[string]string) (int, []string) {
	counts := make(map[string]int, len(votes))
	for _, target := range votes {
		counts[target]++
	}

	top := 0
	for _, n := range counts {
		if n > top {
			top = n
		}
	}

	leaders := make([]string, 0, 1)
	for target, n := range counts {
		if n == top {
			leaders = append(leaders, target)
		}
	}
	sort.Strings(leaders)

	return top, leaders
}

// countLivingRoles returns how many living players currently hold each role.
// Players who left the room mid-round no longer count toward either side.
func countLivingRoles(players []Player, roles map[string]string, eliminated []string) (int, int) {
	impostors, innocents := 0, 0
	for _, p := range players {
		if slices.Contains(eliminated, p.Name) {
			continue
		}
		switch roles[p.Name] {
		case roleImpostor:
			impostors++
		case roleInnocent:
			innocents++
		}
	}
	return impostors, innocents
}

// eliminatedImpostors lists, in elimination order, the eliminated players
// whose role this round was impostor. Used for the innocents' win message.
func eliminatedImpostors(roles map[string]string, eliminated []string) []string {
	names := make([]string, 0, 1)
	for _, name := range eliminated {
		if roles[name] == roleImpostor {
			names = append(names, name)
		}
	}
	return names
}
