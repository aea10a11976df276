// YART retro boards
//
// Each board ("retro") is one collaborative session: an ordered set of
// columns, cards published by anonymous participants, card groups, and
// votes, moving through a Setup → Collect → Group → Vote → Discuss →
// Review workflow driven by the board owner.
//
// Features:
// - WebSockets per board ID: /retro/:retroid and /retro/:retroid/ws
// - Whoever presents the owner secret (handed out once at creation) is
//   the owner for that connection
// - Participants identified by cookie; reconnecting with an unbound
//   cookie restores the same identity and display name
// - Anonymous two-word display names, self-service rename
// - Vote ceilings (total and per-column), toggle-style voting
// - Same-column card grouping with automatic dissolution below 2 members
// - Every accepted mutation is persisted to SQLite before broadcast
// - Idle boards are evicted from memory and rehydrated on next connect
// - In-browser QR button to share the current board, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Identity is a participant's connection-independent id and display name.
// The owner flag lives on the connection, never on the identity.
type Identity struct {
	ID   string
	Name string
}

type Client struct {
	conn *websocket.Conn

	// send carries frames already encoded on the hub goroutine, so the
	// write pump never reads live room state.
	send chan []byte

	// requestedID and token come from request metadata at connect time.
	requestedID string
	token       string

	// identity and isOwner are bound by the hub on register and only
	// touched on the hub goroutine afterwards.
	identity Identity
	isOwner  bool
}

type inboundMessage struct {
	client *Client
	msg    ClientMessage
}

// Hub is the actor owning one board. All state mutation happens on the
// run goroutine, so the RetroState needs no locking of its own; the
// mutex only covers fields the reaper reads from outside.
type Hub struct {
	id     string
	cfg    *Config
	store  *RetroStore
	state  *RetroState
	secret string

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	inbound  chan inboundMessage
	done     chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	lastActive time.Time
}

func newHub(cfg *Config, store *RetroStore, state *RetroState, secret string) *Hub {
	return &Hub{
		id:         state.ID,
		cfg:        cfg,
		store:      store,
		state:      state,
		secret:     secret,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		inbound:    make(chan inboundMessage),
		done:       make(chan struct{}),
		lastActive: time.Now(),
	}
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.touch()
			h.handleRegister(c)

		case c := <-h.unreg:
			h.touch()
			if _, ok := h.clients[c]; !ok {
				continue
			}
			delete(h.clients, c)
			close(c.send)
			h.broadcast(&ParticipantMessage{
				Type: "participant_left",
				ID:   c.identity.ID,
				Name: c.identity.Name,
			}, nil)

		case in := <-h.inbound:
			h.touch()
			h.dispatch(in.client, in.msg)

		case <-h.done:
			// Eviction: drop every client here, on the run goroutine, so
			// h.clients is never touched from anywhere else. Write pumps
			// close their own connections once the send channels close.
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		}
	}
}

// stop signals the run goroutine to drain its clients and exit. Safe to
// call more than once.
func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

// isBound reports whether an identity id is currently attached to a live
// connection.
func (h *Hub) isBound(id string) bool {
	for c := range h.clients {
		if c.identity.ID == id {
			return true
		}
	}
	return false
}

// resolveIdentity implements the identity registry: restore the requested
// identity when it is free, otherwise mint a fresh one. Never fails.
func (h *Hub) resolveIdentity(requestedID string) Identity {
	if requestedID == "" || h.isBound(requestedID) {
		return Identity{ID: newParticipantID(), Name: randomDisplayName()}
	}

	ident := Identity{ID: requestedID}
	if name, ok := h.state.DisplayNames[requestedID]; ok {
		ident.Name = name
		return ident
	}
	// Fall back to authored-card history from before the name map existed.
	for _, card := range h.state.Cards {
		if card.AuthorID == requestedID {
			ident.Name = card.AuthorName
			return ident
		}
	}
	ident.Name = randomDisplayName()
	return ident
}

func (h *Hub) handleRegister(c *Client) {
	c.identity = h.resolveIdentity(c.requestedID)
	c.isOwner = h.secret != "" &&
		subtle.ConstantTimeCompare([]byte(c.token), []byte(h.secret)) == 1

	// Remember the resolved name for future restoration. A failed write
	// must not block the join, but only persisted names may stay in the
	// map, so the entry is rolled back on failure.
	if h.state.DisplayNames[c.identity.ID] != c.identity.Name {
		prev, had := h.state.DisplayNames[c.identity.ID]
		h.state.DisplayNames[c.identity.ID] = c.identity.Name
		if err := h.store.SaveRetro(context.Background(), h.state); err != nil {
			logf(h.cfg, "RETRO: saving name map for %s failed: %v", h.id, err)
			if had {
				h.state.DisplayNames[c.identity.ID] = prev
			} else {
				delete(h.state.DisplayNames, c.identity.ID)
			}
		}
	}

	h.clients[c] = true

	h.state.refreshVoteCounts()
	roster := make([]ParticipantInfo, 0, len(h.clients))
	for cl := range h.clients {
		roster = append(roster, ParticipantInfo{ID: cl.identity.ID, Name: cl.identity.Name})
	}
	yourVotes := append([]string{}, h.state.Votes[c.identity.ID]...)

	h.sendTo(c, &SnapshotMessage{
		Type:         "snapshot",
		Retro:        h.state,
		You:          ParticipantInfo{ID: c.identity.ID, Name: c.identity.Name},
		IsOwner:      c.isOwner,
		YourVotes:    yourVotes,
		Participants: roster,
	})

	h.broadcast(&ParticipantMessage{
		Type: "participant_joined",
		ID:   c.identity.ID,
		Name: c.identity.Name,
	}, c)

	logf(h.cfg, "RETRO: %q joined %s (owner: %t)", c.identity.Name, h.id, c.isOwner)
}

// ownerOnly marks the message types gated on the owner capability.
var ownerOnly = map[string]bool{
	msgSetPhase:       true,
	msgAddColumn:      true,
	msgRenameColumn:   true,
	msgDeleteColumn:   true,
	msgReorderColumns: true,
	msgVoteSettings:   true,
	msgSetFocus:       true,
	msgAddActionItem:  true,
}

// dispatch routes one inbound message: authorization gate, then the
// store operation, then persist-and-broadcast. Unknown types are ignored.
func (h *Hub) dispatch(c *Client, msg ClientMessage) {
	if ownerOnly[msg.Type] && !c.isOwner {
		h.sendTo(c, &ErrorMessage{
			Type:    "error",
			Code:    codeUnauthorized,
			Message: "this action requires the owner secret",
		})
		return
	}

	var event any
	var opErr *opError

	switch msg.Type {
	case msgSetPhase:
		event, opErr = h.state.setPhase(Phase(msg.Phase))
	case msgAddColumn:
		event, opErr = h.state.addColumn(msg.Name)
	case msgRenameColumn:
		event, opErr = h.state.renameColumn(msg.ColumnID, msg.Name, msg.Description)
	case msgDeleteColumn:
		event, opErr = h.state.deleteColumn(msg.ColumnID)
	case msgReorderColumns:
		event, opErr = h.state.reorderColumns(msg.ColumnIDs)
	case msgAddCard:
		event, opErr = h.state.publishCard(msg.ColumnID, msg.Content, c.identity)
	case msgEditCard:
		event, opErr = h.state.editCard(msg.CardID, msg.Content, c.identity)
	case msgDeleteCard:
		event, opErr = h.state.deleteCard(msg.CardID, c.identity)
	case msgGroupCards:
		event, opErr = h.state.groupCards(msg.CardIDs)
	case msgUngroupCard:
		event, opErr = h.state.ungroupCard(msg.CardID)
	case msgToggleVote:
		event, opErr = h.state.toggleVote(msg.TargetID, msg.TargetType, c.identity.ID)
	case msgVoteSettings:
		event, opErr = h.state.setVoteSettings(msg.MaxVotes, msg.MaxPerCol)
	case msgRename:
		event, opErr = h.state.renameParticipant(c.identity.ID, msg.Name)
	case msgSetFocus:
		event, opErr = h.state.setFocus(msg.CardID)
	case msgAddActionItem:
		event, opErr = h.state.addActionItem(msg.CardID, msg.Content)
	default:
		return
	}

	if opErr != nil {
		h.sendTo(c, &ErrorMessage{Type: "error", Code: opErr.Code, Message: opErr.Message})
		return
	}
	if event == nil {
		// Silent no-op: nothing changed, nothing to persist or broadcast.
		return
	}

	// A mutation is not committed until its write succeeds. On failure
	// the in-memory state is rolled back to the persisted snapshot and
	// only the requester hears about it.
	if err := h.store.SaveRetro(context.Background(), h.state); err != nil {
		logf(h.cfg, "RETRO: saving %s failed: %v", h.id, err)
		if reloaded, _, loadErr := h.store.LoadRetro(context.Background(), h.id); loadErr == nil && reloaded != nil {
			h.state = reloaded
		}
		rej := errStorage()
		h.sendTo(c, &ErrorMessage{Type: "error", Code: rej.Code, Message: rej.Message})
		return
	}

	if msg.Type == msgRename {
		// The rename also lands on the client's bound identity so later
		// roster events carry the new name.
		c.identity.Name = h.state.DisplayNames[c.identity.ID]
	}

	h.broadcast(event, nil)

	if msg.Type == msgToggleVote {
		h.sendTo(c, &YourVotesMessage{
			Type:    "your_votes",
			Targets: append([]string{}, h.state.Votes[c.identity.ID]...),
		})
	}
}

// encodeFrame marshals an outbound message on the hub goroutine, before
// any concurrent write pump can see it.
func encodeFrame(msg any) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		// Outbound messages are plain structs; this cannot fail at runtime.
		panic("encode outbound message: " + err.Error())
	}
	return data
}

// sendTo delivers to a single client, dropping it if its buffer is full.
func (h *Hub) sendTo(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- encodeFrame(msg):
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast fans a message out to every client except the excluded one.
// A slow or dead connection is dropped, never waited on.
func (h *Hub) broadcast(msg any, exclude *Client) {
	frame := encodeFrame(msg)
	for client := range h.clients {
		if client == exclude {
			continue
		}
		select {
		case client.send <- frame:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const participantCookieName = "yart_id"

func getOrSetParticipantID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(participantCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     participantCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// RetroManager holds the live hubs keyed by board ID. Boards are loaded
// from the store on first connection and evicted again when idle.
type RetroManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	cfg         *Config
	store       *RetroStore
	idleTimeout time.Duration
}

func newRetroManager(cfg *Config, store *RetroStore) *RetroManager {
	rm := &RetroManager{
		hubs:        make(map[string]*Hub),
		cfg:         cfg,
		store:       store,
		idleTimeout: cfg.sessionTimeout,
	}
	if rm.idleTimeout > 0 {
		go rm.reaperLoop()
	}
	return rm
}

// getHub returns the live hub for a board, rehydrating it from the store
// if needed. Returns nil when the board was never created.
func (rm *RetroManager) getHub(ctx context.Context, retroID string) (*Hub, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if hub, ok := rm.hubs[retroID]; ok {
		return hub, nil
	}

	state, secret, err := rm.store.LoadRetro(ctx, retroID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	hub := newHub(rm.cfg, rm.store, state, secret)
	rm.hubs[retroID] = hub
	go hub.run()
	return hub, nil
}

// attach registers a client with the room's hub. The reaper may evict a
// hub between lookup and registration, in which case the lookup is
// retried so the client never lands on a dead hub.
func (rm *RetroManager) attach(ctx context.Context, retroID string, c *Client) (*Hub, error) {
	for {
		hub, err := rm.getHub(ctx, retroID)
		if err != nil || hub == nil {
			return nil, err
		}
		select {
		case hub.register <- c:
			return hub, nil
		case <-hub.done:
		}
	}
}

// reaperLoop periodically evicts hubs idle longer than idleTimeout. The
// board itself survives in the store and is rehydrated on next connect.
func (rm *RetroManager) reaperLoop() {
	ticker := time.NewTicker(rm.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-rm.idleTimeout)

		rm.mu.Lock()
		for id, hub := range rm.hubs {
			hub.mu.RLock()
			last := hub.lastActive
			hub.mu.RUnlock()

			if last.Before(cutoff) {
				delete(rm.hubs, id)
				logf(rm.cfg, "RETRO: Evicted idle board %s", id)
				hub.stop()
			}
		}
		rm.mu.Unlock()
	}
}

// serveRetroWS upgrades a connection and attaches it to the board's hub.
func serveRetroWS(cfg *Config, rm *RetroManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		retroID := ps.ByName("retroid")
		if retroID == "" {
			http.Error(w, "missing retro id", http.StatusBadRequest)
			return
		}

		participantID := getOrSetParticipantID(w, r)

		hub, err := rm.getHub(r.Context(), retroID)
		if err != nil {
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		if hub == nil {
			http.Error(w, "no such retro", http.StatusNotFound)
			return
		}

		token := r.URL.Query().Get("secret")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:        conn,
			send:        make(chan []byte, 8),
			requestedID: participantID,
			token:       token,
		}

		hub, err = rm.attach(r.Context(), retroID, client)
		if err != nil || hub == nil {
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case h.inbound <- inboundMessage{client: c, msg: msg}:
		case <-h.done:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for frame := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}
