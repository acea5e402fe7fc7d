// Package hub is the single authority over connected sessions and room
// membership. It routes text to every member of a room except the sender and
// never touches the network itself: sessions are reached only through the
// Recipient they hand over at connect time.
package hub

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/go-logr/logr"

	"github.com/Tyrowin/roomhub/internal/metrics"
)

// DefaultRoom exists before any session connects and is never removed.
const DefaultRoom = "Main"

// Notices pushed to room members on membership changes.
const (
	JoinedNotice       = "Someone Joined!!"
	ConnectedNotice    = "Someone connected"
	DisconnectedNotice = "Some disconnected"
)

const maxIDAttempts = 64

// SessionID identifies a live session. Zero is never issued.
type SessionID uint64

func (id SessionID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Recipient is the delivery capability of a session. Deliver must not block;
// an error means the text was dropped for that session only.
type Recipient interface {
	Deliver(text string) error
}

// RecipientFunc adapts a plain function to Recipient.
type RecipientFunc func(text string) error

// Deliver calls f(text).
func (f RecipientFunc) Deliver(text string) error {
	return f(text)
}

// IDSource yields candidate session ids.
type IDSource func() uint64

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger used for drop and routing diagnostics.
func WithLogger(logger logr.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithIDSource replaces the cryptographic id source.
func WithIDSource(src IDSource) Option {
	return func(h *Hub) {
		h.nextID = src
	}
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Sessions int            `json:"sessions"`
	Rooms    map[string]int `json:"rooms"`
}

// Hub owns the session registry and room membership. A single mutex covers
// both maps so every operation observes a consistent pair.
type Hub struct {
	mu       sync.Mutex
	sessions map[SessionID]Recipient
	rooms    map[string]map[SessionID]struct{}

	nextID IDSource
	logger logr.Logger
}

// delivery is a single pending push, collected under the lock and performed
// after it is released.
type delivery struct {
	id   SessionID
	to   Recipient
	text string
}

// New creates a Hub holding only the empty default room.
func New(opts ...Option) *Hub {
	h := &Hub{
		sessions: make(map[SessionID]Recipient),
		rooms: map[string]map[SessionID]struct{}{
			DefaultRoom: {},
		},
		nextID: randomID,
		logger: logr.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	metrics.Rooms.Set(1)
	return h
}

func randomID() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("hub: read random session id: %v", err))
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Connect registers r under a fresh id, places it in the default room and
// tells the room's existing members that someone joined.
func (h *Hub) Connect(r Recipient) SessionID {
	id, notices, sessions := h.register(r)

	metrics.Sessions.Set(float64(sessions))
	h.logger.V(1).Info("session connected", "session", id, "sessions", sessions)
	h.deliver(notices)
	return id
}

func (h *Hub) register(r Recipient) (SessionID, []delivery, int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	notices := h.collect(DefaultRoom, JoinedNotice, 0)
	id := h.newIDLocked()
	h.sessions[id] = r
	h.roomLocked(DefaultRoom)[id] = struct{}{}
	return id, notices, len(h.sessions)
}

// newIDLocked draws ids until one is non-zero and not live. Stale room
// entries are not consulted.
func (h *Hub) newIDLocked() SessionID {
	for i := 0; i < maxIDAttempts; i++ {
		id := SessionID(h.nextID())
		if id == 0 {
			continue
		}
		if _, taken := h.sessions[id]; taken {
			h.logger.V(1).Info("session id collision, redrawing", "session", id)
			continue
		}
		return id
	}
	panic(fmt.Sprintf("hub: no free session id after %d attempts", maxIDAttempts))
}

// Disconnect removes id from the registry and from every room, then notifies
// the remaining members of those rooms. Unknown ids are ignored.
func (h *Hub) Disconnect(id SessionID) {
	h.mu.Lock()
	if _, ok := h.sessions[id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, id)
	left := h.leaveAllLocked(id)

	var notices []delivery
	for _, name := range left {
		notices = append(notices, h.collect(name, DisconnectedNotice, 0)...)
	}
	sessions := len(h.sessions)
	h.mu.Unlock()

	metrics.Sessions.Set(float64(sessions))
	h.logger.V(1).Info("session disconnected", "session", id, "rooms", left, "sessions", sessions)
	h.deliver(notices)
}

// Join moves id out of every room it is in and into room, creating room on
// first use. The other members of room are notified; the joiner is not.
// The id is not checked against the registry.
func (h *Hub) Join(id SessionID, room string) {
	h.mu.Lock()
	h.leaveAllLocked(id)
	h.roomLocked(room)[id] = struct{}{}
	notices := h.collect(room, ConnectedNotice, id)
	rooms := len(h.rooms)
	h.mu.Unlock()

	metrics.Rooms.Set(float64(rooms))
	h.logger.V(1).Info("session joined room", "session", id, "room", room)
	h.deliver(notices)
}

// Broadcast pushes text to every member of room except sender. Unknown rooms
// and members no longer registered are skipped without error.
func (h *Hub) Broadcast(sender SessionID, room, text string) {
	h.mu.Lock()
	_, known := h.rooms[room]
	out := h.collect(room, text, sender)
	h.mu.Unlock()

	if !known {
		metrics.UnknownRoomBroadcasts.Inc()
		h.logger.V(1).Info("broadcast to unknown room ignored", "session", sender, "room", room)
		return
	}
	h.deliver(out)
}

// ListRooms returns every known room, empty ones included, sorted by name.
func (h *Hub) ListRooms() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.rooms))
	for name := range h.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RoomsOf returns the rooms id is currently a member of, sorted by name.
func (h *Hub) RoomsOf(id SessionID) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var names []string
	for name, members := range h.rooms {
		if _, ok := members[id]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Members returns the sorted member ids of room and whether the room exists.
func (h *Hub) Members(room string) ([]SessionID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return nil, false
	}
	ids := make([]SessionID, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, true
}

// Stats reports the session count and the member count of every room.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms := make(map[string]int, len(h.rooms))
	for name, members := range h.rooms {
		rooms[name] = len(members)
	}
	return Stats{Sessions: len(h.sessions), Rooms: rooms}
}

func (h *Hub) roomLocked(name string) map[SessionID]struct{} {
	members, ok := h.rooms[name]
	if !ok {
		members = make(map[SessionID]struct{})
		h.rooms[name] = members
	}
	return members
}

// leaveAllLocked removes id from every room and returns the rooms it left.
func (h *Hub) leaveAllLocked(id SessionID) []string {
	var left []string
	for name, members := range h.rooms {
		if _, ok := members[id]; ok {
			delete(members, id)
			left = append(left, name)
		}
	}
	return left
}

// collect resolves the recipients of text in room, skipping skip and any
// member that is no longer registered.
func (h *Hub) collect(room, text string, skip SessionID) []delivery {
	members, ok := h.rooms[room]
	if !ok {
		return nil
	}
	out := make([]delivery, 0, len(members))
	for id := range members {
		if id == skip {
			continue
		}
		r, ok := h.sessions[id]
		if !ok {
			metrics.Deliveries.WithLabelValues(metrics.ResultStale).Inc()
			h.logger.V(1).Info("skipping stale room member", "room", room, "session", id)
			continue
		}
		out = append(out, delivery{id: id, to: r, text: text})
	}
	return out
}

// deliver performs the pushes. A failing recipient never stops the others.
func (h *Hub) deliver(out []delivery) {
	for _, d := range out {
		if err := h.safeDeliver(d); err != nil {
			metrics.Deliveries.WithLabelValues(metrics.ResultDropped).Inc()
			h.logger.V(1).Info("delivery dropped", "session", d.id, "reason", err.Error())
			continue
		}
		metrics.Deliveries.WithLabelValues(metrics.ResultDelivered).Inc()
	}
}

func (h *Hub) safeDeliver(d delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recipient panicked: %v", r)
		}
	}()
	return d.to.Deliver(d.text)
}
