package main

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// ClientMessage is the single envelope for everything a client sends.
type ClientMessage struct {
	Type       string `json:"type"`                 // "join_room", "set_impostors", "suggest_secret", "start_game", "done_talk", "vote", "restart"
	Name       string `json:"name,omitempty"`       // join_room
	Room       string `json:"room,omitempty"`       // all
	Impostors  int    `json:"impostors,omitempty"`  // join_room / set_impostors
	Suggestion string `json:"suggestion,omitempty"` // suggest_secret
	Target     string `json:"target,omitempty"`     // vote
}

// LobbyUpdateMessage is broadcast on any lobby change so every client sees
// the current player, host, and suggestion state.
type LobbyUpdateMessage struct {
	Type        string            `json:"type"` // "lobby_update"
	Room        string            `json:"room"`
	Players     []string          `json:"players"`
	HostName    string            `json:"hostName"`
	Impostors   int               `json:"impostors"`
	Suggestions map[string]string `json:"suggestions"`
}

// RoleAssignedMessage is private to one connection. Secret is set only for
// innocents; an empty string means nobody suggested a usable word.
type RoleAssignedMessage struct {
	Type   string  `json:"type"` // "role_assigned"
	Role   string  `json:"role"`
	Secret *string `json:"secret,omitempty"`
}

type StartTalkMessage struct {
	Type  string   `json:"type"` // "start_talk"
	Order []string `json:"order"`
}

type NextTalkMessage struct {
	Type  string `json:"type"` // "next_talk"
	Index int    `json:"index"`
}

type ToVoteMessage struct {
	Type       string   `json:"type"` // "to_vote"
	Players    []string `json:"players"`
	Eliminated []string `json:"eliminated"`
}

// VotesUpdateMessage is broadcast after every accepted vote, not only on
// round resolution.
type VotesUpdateMessage struct {
	Type             string            `json:"type"` // "votes_update"
	Votes            map[string]string `json:"votes"`
	TotalLivingCount int               `json:"totalLivingCount"`
	Eliminated       []string          `json:"eliminated"`
	Roles            map[string]string `json:"roles"`
}

type PlayerEliminatedMessage struct {
	Type string `json:"type"` // "player_eliminated"
	Name string `json:"name"`
}

type VoteTieMessage struct {
	Type      string   `json:"type"` // "vote_tie"
	TiedNames []string `json:"tiedNames"`
}

type ShowResultsMessage struct {
	Type  string `json:"type"` // "show_results"
	Title string `json:"title"`
	Info  string `json:"info"`
	Image string `json:"image,omitempty"`
}

type RestartMessage struct {
	Type string `json:"type"` // "restart"
}

// ErrorMessage is sent only to the offending client.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type Client struct {
	conn *websocket.Conn
	send chan any
	id   string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
			id:   uuid.NewString(),
		}

		go client.writePump()
		client.readPump(cfg, reg)
	}
}

// readPump parses inbound events and routes them to the room this connection
// has joined. The room binding lives in this goroutine only, mirroring the
// one-event-at-a-time processing model: a connection belongs to at most one
// room, chosen by its last join_room.
func (c *Client) readPump(cfg *Config, reg *Registry) {
	var room *Room

	defer func() {
		if room != nil {
			room.part(c)
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		msg.Room = strings.ToUpper(strings.TrimSpace(msg.Room))

		switch msg.Type {
		case "join_room":
			msg.Name = strings.TrimSpace(msg.Name)
			if len(msg.Name) < minNameLength || len(msg.Room) < minRoomLength {
				c.trySend(ErrorMessage{
					Type:    "error",
					Message: "Nombre o código de sala inválido.",
				})
				continue
			}

			next := reg.createOrGet(cfg, msg.Room)
			if room != nil && room != next {
				room.part(c)
			}
			room = next
			room.deliver(clientEvent{client: c, msg: msg})

		case "set_impostors", "suggest_secret", "start_game", "done_talk", "vote", "restart":
			if room == nil || room.code != msg.Room {
				continue
			}
			room.deliver(clientEvent{client: c, msg: msg})

		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// trySend queues a message for this client without blocking.
func (c *Client) trySend(msg any) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func servePlayPage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/impostor/index.html")
		if err != nil {
			http.Error(w, "page unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, err = w.Write(data)
		if err != nil {
			errs <- err

			return
		}
	}
}

// qrHandler generates a PNG QR code linking straight into a room's lobby.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := ps.ByName("room")
	if code == "" {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../qr/:room; strip the trailing "/qr/:room" to get
	// back to the game page.
	path := strings.TrimSuffix(r.URL.Path, "/qr/"+code)

	url := scheme + "://" + r.Host + path + "?room=" + strings.ToUpper(code)

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// registerImpostorGame sets up routes so that:
//   - $path            → HTML client (rooms are joined by code over the socket)
//   - $path/ws         → shared WebSocket endpoint
//   - $path/qr/:room   → PNG QR code for joining a room
func registerImpostorGame(cfg *Config, path string, mux *httprouter.Router) {
	reg := newRegistry()

	if cfg.sessionTimeout > 0 {
		go reg.reaperLoop(cfg, cfg.sessionTimeout)
	}

	errs := make(chan error, 64)

	mux.GET(cfg.prefix+path, servePlayPage(cfg, errs))

	mux.GET(cfg.prefix+path+"/ws", serveWS(cfg, reg))

	mux.GET(cfg.prefix+path+"/qr/:room", qrHandler)
}
