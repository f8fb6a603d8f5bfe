package main

import (
	"slices"
	"sync"
	"time"
)

type gamePhase int

const (
	phaseLobby gamePhase = iota
	phaseTalking
	phaseVoting
	phaseResolved
)

const (
	roleImpostor = "impostor"
	roleInnocent = "innocent"
)

const (
	minNameLength = 2
	minRoomLength = 3
	maxImpostors  = 3
)

// Player is one member of a room. The connection id changes when the same
// name rejoins after a restart.
type Player struct {
	Name         string
	ConnectionID string
}

type clientEvent struct {
	client *Client
	msg    ClientMessage
}

// Room is an isolated game session identified by a short uppercase code.
// All game state is owned by the room's run loop; the mutex exists so the
// registry reaper and tests can read state from outside it.
type Room struct {
	code string

	hostID   string
	hostName string

	impostorCount int
	players       []Player
	suggestions   map[string]string
	roles         map[string]string
	secretWord    string
	eliminated    []string
	votes         map[string]string

	talkOrder []string
	talkIndex int

	phase gamePhase

	// generation invalidates scheduled tie retries across restarts
	generation int

	clients map[*Client]bool

	events  chan clientEvent
	parts   chan *Client
	retries chan int
	done    chan struct{}

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time
}

func newRoom(code string) *Room {
	now := time.Now()
	return &Room{
		code:          code,
		impostorCount: 1,
		suggestions:   make(map[string]string),
		votes:         make(map[string]string),
		clients:       make(map[*Client]bool),
		events:        make(chan clientEvent, 64),
		parts:         make(chan *Client, 16),
		retries:       make(chan int, 4),
		done:          make(chan struct{}),
		createdAt:     now,
		lastActive:    now,
	}
}

// deliver hands an inbound event to the room's run loop, dropping it if the
// room has already been torn down.
func (r *Room) deliver(ev clientEvent) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

func (r *Room) part(c *Client) {
	select {
	case r.parts <- c:
	case <-r.done:
	}
}

func (r *Room) livingLocked() []string {
	living := make([]string, 0, len(r.players))
	for _, p := range r.players {
		if slices.Contains(r.eliminated, p.Name) {
			continue
		}
		living = append(living, p.Name)
	}
	return living
}

func (r *Room) isEliminatedLocked(name string) bool {
	return slices.Contains(r.eliminated, name)
}

func (r *Room) playerIndexByConnLocked(connID string) int {
	for i, p := range r.players {
		if p.ConnectionID == connID {
			return i
		}
	}
	return -1
}

func (r *Room) playerIndexByNameLocked(name string) int {
	for i, p := range r.players {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (r *Room) clientByConnLocked(connID string) *Client {
	for c := range r.clients {
		if c.id == connID {
			return c
		}
	}
	return nil
}

func clampImpostors(n int) int {
	return max(1, min(maxImpostors, n))
}

// Registry owns the mapping from room code to live rooms. Rooms are created
// on first join and removed when their last player leaves.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func newRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

func (reg *Registry) createOrGet(cfg *Config, code string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if room, ok := reg.rooms[code]; ok {
		return room
	}

	room := newRoom(code)
	reg.rooms[code] = room
	go room.run(cfg, reg)
	logf(cfg, "ROOMS: Created room %s", code)
	return room
}

func (reg *Registry) get(code string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[code]
	return room, ok
}

func (reg *Registry) remove(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	delete(reg.rooms, code)
}

// reaperLoop periodically disconnects rooms that have been idle longer than
// idleTimeout; emptying a room destroys it through the normal leave path.
func (reg *Registry) reaperLoop(cfg *Config, idleTimeout time.Duration) {
	ticker := time.NewTicker(idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-idleTimeout)

		reg.mu.Lock()
		stale := make([]*Room, 0)
		for _, room := range reg.rooms {
			room.mu.RLock()
			last := room.lastActive
			room.mu.RUnlock()

			if last.Before(cutoff) {
				stale = append(stale, room)
			}
		}
		reg.mu.Unlock()

		for _, room := range stale {
			logf(cfg, "ROOMS: Reaping idle room %s", room.code)
			room.closeAll()
		}
	}
}

// closeAll disconnects every client of this room. Each closed connection
// delivers its own leave event, so the room empties and tears itself down.
func (r *Room) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.clients {
		_ = c.conn.Close()
	}
}
