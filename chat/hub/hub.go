package hub

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/chathub/chat/protocol"
)

// ErrStopped is returned by queries issued after Run has returned.
var ErrStopped = errors.New("hub stopped")

// DefaultQueueSize is the capacity of the command channel.
const DefaultQueueSize = 1024

// Outbox is the handle through which the hub reaches one session.
type Outbox interface {
	// Deliver hands an encoded frame to the session without blocking.
	// It returns false when the session is gone or its buffer is full.
	Deliver(payload []byte) bool

	// Close asks the session to terminate. The session reports back with
	// Disconnect as usual.
	Close()
}

// member is the hub's record of one registered session. Fields never change
// after Connect.
type member struct {
	id          string
	userID      string
	out         Outbox
	connectedAt time.Time
}

// Hub maintains the set of sessions and rooms and broadcasts to rooms.
type Hub struct {
	// Registered sessions by session ID
	sessions map[string]*member

	// Room ID → set of session IDs
	rooms map[string]map[string]struct{}

	// User ID → most recently connected session ID
	users map[string]string

	// Commands from sessions and the admin surface
	commands chan command

	// Closed when Run returns
	done chan struct{}

	pruneEmptyRooms bool
	delivered       uint64
	dropped         uint64

	log zerolog.Logger
	now func() time.Time
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Hub) {
		h.log = logger.With().Str("component", "hub").Logger()
	}
}

// WithQueueSize sets the command channel capacity.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.commands = make(chan command, n)
		}
	}
}

// WithRoomPruning removes a room entry as soon as its last member leaves.
func WithRoomPruning(enabled bool) Option {
	return func(h *Hub) {
		h.pruneEmptyRooms = enabled
	}
}

// New creates a hub. It does nothing until Run is started.
func New(opts ...Option) *Hub {
	h := &Hub{
		sessions: make(map[string]*member),
		rooms:    make(map[string]map[string]struct{}),
		users:    make(map[string]string),
		commands: make(chan command, DefaultQueueSize),
		done:     make(chan struct{}),
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes commands until ctx is cancelled. It must be called once.
func (h *Hub) Run(ctx context.Context) error {
	h.log.Info().Msg("hub started")
	defer close(h.done)

	for {
		select {
		case cmd := <-h.commands:
			cmd.apply(h)

		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Connect registers a session and acknowledges it with a connected event.
func (h *Hub) Connect(sessionID, userID string, out Outbox) {
	h.enqueue(connectCmd{sessionID: sessionID, userID: userID, out: out})
}

// Disconnect removes a session from every room and from the registry.
func (h *Hub) Disconnect(sessionID string) {
	h.enqueue(disconnectCmd{sessionID: sessionID})
}

// JoinRoom adds a session to a room, creating the room if needed.
func (h *Hub) JoinRoom(sessionID, roomID string) {
	h.enqueue(joinCmd{sessionID: sessionID, roomID: roomID})
}

// LeaveRoom removes a session from a room.
func (h *Hub) LeaveRoom(sessionID, roomID string) {
	h.enqueue(leaveCmd{sessionID: sessionID, roomID: roomID})
}

// RoomMessage broadcasts an event to every member of a room, sender included.
func (h *Hub) RoomMessage(roomID, senderSessionID string, event protocol.Event) {
	h.enqueue(roomMessageCmd{roomID: roomID, senderSessionID: senderSessionID, event: event})
}

// Kick asks a session to terminate. Unknown IDs are ignored.
func (h *Hub) Kick(sessionID string) {
	h.enqueue(kickCmd{sessionID: sessionID})
}

// Snapshot returns a copy of the hub tables, taken in command order.
func (h *Hub) Snapshot(ctx context.Context) (*Snapshot, error) {
	reply := make(chan *Snapshot, 1)
	select {
	case h.commands <- snapshotCmd{reply: reply}:
	case <-h.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-h.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) enqueue(cmd command) {
	select {
	case h.commands <- cmd:
	case <-h.done:
		h.log.Debug().Str("command", cmd.name()).Msg("hub stopped, command dropped")
	}
}

// shutdown closes every outbox so sessions stop on their own.
func (h *Hub) shutdown() {
	for _, m := range h.sessions {
		m.out.Close()
	}
	h.log.Info().Int("sessions", len(h.sessions)).Msg("hub stopped")
}

func (h *Hub) userOf(sessionID string) string {
	if m, ok := h.sessions[sessionID]; ok {
		return m.userID
	}
	return ""
}

// sendToSession encodes and delivers an event to one session.
func (h *Hub) sendToSession(sessionID string, event protocol.Event) {
	m, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	data, err := protocol.Encode(event)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to encode event")
		return
	}
	h.deliver(m, data)
}

// sendToRoom encodes an event once and delivers it to every member of the
// room except skip.
func (h *Hub) sendToRoom(roomID string, event protocol.Event, skip string) {
	members, ok := h.rooms[roomID]
	if !ok || len(members) == 0 {
		return
	}
	data, err := protocol.Encode(event)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to encode broadcast")
		return
	}
	for sessionID := range members {
		if sessionID == skip {
			continue
		}
		if m, ok := h.sessions[sessionID]; ok {
			h.deliver(m, data)
		}
	}
}

func (h *Hub) deliver(m *member, data []byte) {
	if m.out.Deliver(data) {
		h.delivered++
		return
	}
	h.dropped++
	h.log.Debug().Str("session_id", m.id).Msg("delivery dropped")
}

// removeFromRoom deletes a session from one room and reports whether it was
// a member. Empty rooms are pruned when enabled.
func (h *Hub) removeFromRoom(roomID, sessionID string) bool {
	members, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := members[sessionID]; !ok {
		return false
	}
	delete(members, sessionID)
	if h.pruneEmptyRooms && len(members) == 0 {
		delete(h.rooms, roomID)
	}
	return true
}

// roomsOf lists the rooms a session belongs to, sorted.
func (h *Hub) roomsOf(sessionID string) []string {
	var rooms []string
	for roomID, members := range h.rooms {
		if _, ok := members[sessionID]; ok {
			rooms = append(rooms, roomID)
		}
	}
	sort.Strings(rooms)
	return rooms
}
