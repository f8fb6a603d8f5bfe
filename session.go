package main

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// run processes every event for this room to completion before the next one,
// so room state never races with itself. The loop exits when the last player
// leaves and the room tears itself down.
func (r *Room) run(cfg *Config, reg *Registry) {
	for {
		select {
		case ev := <-r.events:
			switch ev.msg.Type {
			case "join_room":
				r.handleJoin(cfg, ev.client, ev.msg)
			case "set_impostors":
				r.handleSetImpostors(ev.client, ev.msg)
			case "suggest_secret":
				r.handleSuggestSecret(ev.client, ev.msg)
			case "start_game":
				r.handleStartGame(cfg, ev.client)
			case "done_talk":
				r.handleDoneTalk(ev.client)
			case "vote":
				r.handleVote(cfg, ev.client, ev.msg)
			case "restart":
				r.handleRestart(cfg, ev.client)
			}

		case c := <-r.parts:
			r.handleLeave(cfg, reg, c)

		case gen := <-r.retries:
			r.handleTieRetry(gen)

		case <-r.done:
			return
		}
	}
}

// handleJoin adds a player, or treats a join with an already-present name as
// a rejoin that adopts the new connection. A name held by another live
// connection is rejected back to the joining client only.
func (r *Room) handleJoin(cfg *Config, c *Client, msg ClientMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActive = time.Now()

	if i := r.playerIndexByNameLocked(msg.Name); i >= 0 {
		owner := r.players[i].ConnectionID
		if owner != c.id && r.clientByConnLocked(owner) != nil {
			c.trySend(ErrorMessage{
				Type:    "error",
				Message: "Ese nombre ya está en uso en esta sala.",
			})
			return
		}

		r.players[i].ConnectionID = c.id
		if r.hostName == msg.Name {
			r.hostID = c.id
		}
	} else {
		r.players = append(r.players, Player{
			Name:         msg.Name,
			ConnectionID: c.id,
		})
		logf(cfg, "GAMES: Player %q joined %s", msg.Name, r.code)
	}

	// First player in becomes host and may set the impostor count up front.
	if r.hostID == "" {
		r.hostID = c.id
		r.hostName = msg.Name
		if msg.Impostors > 0 {
			r.impostorCount = clampImpostors(msg.Impostors)
		}
	}

	r.clients[c] = true

	r.broadcastLobbyLocked()
}

func (r *Room) handleSetImpostors(c *Client, msg ClientMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActive = time.Now()

	if c.id != r.hostID {
		return
	}

	r.impostorCount = clampImpostors(msg.Impostors)
	r.broadcastLobbyLocked()
}

func (r *Room) handleSuggestSecret(c *Client, msg ClientMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActive = time.Now()

	i := r.playerIndexByConnLocked(c.id)
	if i < 0 {
		return
	}

	r.suggestions[r.players[i].Name] = strings.TrimSpace(msg.Suggestion)
	r.broadcastLobbyLocked()
}

func (r *Room) handleStartGame(cfg *Config, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActive = time.Now()

	if c.id != r.hostID {
		return
	}
	if r.phase != phaseLobby {
		return
	}
	if len(r.players) < 2 {
		return
	}

	roles, secret := assignRoles(r.players, r.impostorCount, r.suggestions, true)
	r.roles = roles
	r.secretWord = secret
	r.eliminated = nil
	r.votes = make(map[string]string)

	for _, p := range r.players {
		pc := r.clientByConnLocked(p.ConnectionID)
		if pc == nil {
			continue
		}
		if roles[p.Name] == roleImpostor {
			pc.trySend(RoleAssignedMessage{
				Type: "role_assigned",
				Role: roleImpostor,
			})
		} else {
			s := secret
			pc.trySend(RoleAssignedMessage{
				Type:   "role_assigned",
				Role:   roleInnocent,
				Secret: &s,
			})
		}
	}

	logf(cfg, "GAMES: Started round in %s with %d players", r.code, len(r.players))

	r.beginTalkLocked()
}

// beginTalkLocked draws a fresh speaking order over the living set and moves
// the room into the talk phase.
func (r *Room) beginTalkLocked() {
	r.talkOrder = newTalkOrder(r.livingLocked())
	r.talkIndex = 0
	r.phase = phaseTalking

	r.broadcastLocked(StartTalkMessage{
		Type:  "start_talk",
		Order: slices.Clone(r.talkOrder),
	})
}

// handleDoneTalk advances the shared speaker index. The sender is not checked
// against the current speaker; clients are trusted here.
func (r *Room) handleDoneTalk(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActive = time.Now()

	if r.phase != phaseTalking || len(r.talkOrder) == 0 {
		return
	}
	if !r.clients[c] {
		return
	}

	r.talkIndex++
	if r.talkIndex < len(r.talkOrder) {
		r.broadcastLocked(NextTalkMessage{
			Type:  "next_talk",
			Index: r.talkIndex,
		})
		return
	}

	r.phase = phaseVoting
	r.votes = make(map[string]string)
	r.talkOrder = nil

	living := r.livingLocked()
	r.broadcastLocked(ToVoteMessage{
		Type:       "to_vote",
		Players:    living,
		Eliminated: slices.Clone(r.eliminated),
	})
	r.broadcastVotesLocked(len(living))
}

func (r *Room) handleVote(cfg *Config, c *Client, msg ClientMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActive = time.Now()

	if r.phase != phaseVoting {
		return
	}

	i := r.playerIndexByConnLocked(c.id)
	if i < 0 {
		return
	}
	voter := r.players[i].Name

	// Stale clients may still vote after being voted out; ignore quietly.
	if r.isEliminatedLocked(voter) {
		return
	}

	r.votes[voter] = msg.Target

	living := r.livingLocked()
	r.broadcastVotesLocked(len(living))

	if len(r.votes) >= len(living) {
		r.resolveVotesLocked(cfg)
	}
}

func (r *Room) broadcastVotesLocked(livingCount int) {
	r.broadcastLocked(VotesUpdateMessage{
		Type:             "votes_update",
		Votes:            maps.Clone(r.votes),
		TotalLivingCount: livingCount,
		Eliminated:       slices.Clone(r.eliminated),
		Roles:            maps.Clone(r.roles),
	})
}

func (r *Room) resolveVotesLocked(cfg *Config) {
	_, leaders := tallyVotes(r.votes)
	r.votes = make(map[string]string)

	if len(leaders) > 1 {
		logf(cfg, "GAMES: Vote tied between %s in %s", strings.Join(leaders, ", "), r.code)

		r.broadcastLocked(VoteTieMessage{
			Type:      "vote_tie",
			TiedNames: leaders,
		})

		// Give everyone a moment to read the tie notice, then replay the
		// talk phase over the unchanged living set. The generation stamp
		// discards the timer if the room restarts or dies first.
		r.phase = phaseTalking
		r.talkOrder = nil
		gen := r.generation
		time.AfterFunc(cfg.tieDelay, func() {
			select {
			case r.retries <- gen:
			case <-r.done:
			}
		})
		return
	}

	if len(leaders) == 0 {
		return
	}

	name := leaders[0]
	r.eliminated = append(r.eliminated, name)
	logf(cfg, "GAMES: Player %q eliminated in %s", name, r.code)

	r.broadcastLocked(PlayerEliminatedMessage{
		Type: "player_eliminated",
		Name: name,
	})

	impostors, innocents := countLivingRoles(r.players, r.roles, r.eliminated)

	switch {
	case impostors == 0:
		r.phase = phaseResolved
		r.talkOrder = nil
		r.broadcastLocked(ShowResultsMessage{
			Type:  "show_results",
			Title: "¡Inocentes ganan!",
			Info:  innocentsWinInfo(eliminatedImpostors(r.roles, r.eliminated)),
			Image: "/assets/impostor/innocents-win.svg",
		})

	case innocents <= 1:
		r.phase = phaseResolved
		r.talkOrder = nil
		r.broadcastLocked(ShowResultsMessage{
			Type:  "show_results",
			Title: "¡Impostores ganan!",
			Info:  "Sobrevivieron los impostores.",
			Image: "/assets/impostor/impostors-win.svg",
		})

	default:
		r.beginTalkLocked()
	}
}

// innocentsWinInfo names every eliminated impostor, so the message stays
// accurate when more than one impostor was in play.
func innocentsWinInfo(impostors []string) string {
	switch len(impostors) {
	case 0:
		return "No quedan impostores."
	case 1:
		return "El impostor era " + impostors[0] + "."
	default:
		last := impostors[len(impostors)-1]
		return "Los impostores eran " + strings.Join(impostors[:len(impostors)-1], ", ") + " y " + last + "."
	}
}

// handleTieRetry fires after the tie-notice delay. A stale generation means
// the room was restarted in the meantime; a populated talk order means some
// other transition already happened. Both are discarded.
func (r *Room) handleTieRetry(gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation {
		return
	}
	if r.phase != phaseTalking || len(r.talkOrder) != 0 {
		return
	}

	r.beginTalkLocked()
}

func (r *Room) handleRestart(cfg *Config, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActive = time.Now()

	if !r.clients[c] {
		return
	}

	r.suggestions = make(map[string]string)
	r.roles = nil
	r.secretWord = ""
	r.eliminated = nil
	r.votes = make(map[string]string)
	r.talkOrder = nil
	r.talkIndex = 0
	r.phase = phaseLobby
	r.generation++

	logf(cfg, "GAMES: Room %s restarted", r.code)

	r.broadcastLocked(RestartMessage{Type: "restart"})
	r.broadcastLobbyLocked()
}

// handleLeave removes the departing connection. A player entry is only
// removed when it still belongs to this connection, so a rejoin that already
// adopted a new connection survives the old one's teardown. The last player
// leaving destroys the room on the spot.
func (r *Room) handleLeave(cfg *Config, reg *Registry, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActive = time.Now()

	if _, ok := r.clients[c]; ok {
		delete(r.clients, c)
		close(c.send)
	}

	i := r.playerIndexByConnLocked(c.id)
	if i < 0 {
		return
	}

	wasHost := r.players[i].ConnectionID == r.hostID
	name := r.players[i].Name
	r.players = slices.Delete(r.players, i, i+1)
	logf(cfg, "GAMES: Player %q left %s", name, r.code)

	if len(r.players) == 0 {
		r.generation++
		reg.remove(r.code)
		close(r.done)
		logf(cfg, "ROOMS: Destroyed empty room %s", r.code)
		return
	}

	if wasHost {
		r.hostID = r.players[0].ConnectionID
		r.hostName = r.players[0].Name
	}

	r.broadcastLobbyLocked()
}

func (r *Room) broadcastLobbyLocked() {
	names := make([]string, 0, len(r.players))
	for _, p := range r.players {
		names = append(names, p.Name)
	}

	r.broadcastLocked(LobbyUpdateMessage{
		Type:        "lobby_update",
		Room:        r.code,
		Players:     names,
		HostName:    r.hostName,
		Impostors:   r.impostorCount,
		Suggestions: maps.Clone(r.suggestions),
	})
}

// broadcastLocked queues a message for every connected client. Clients whose
// send buffer is full are dropped, the same policy used for direct sends.
func (r *Room) broadcastLocked(msg any) {
	for c := range r.clients {
		if !c.trySend(msg) {
			delete(r.clients, c)
			close(c.send)
		}
	}
}
