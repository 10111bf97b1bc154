package hub

import (
	"sort"

	"github.com/wricardo/chathub/chat/protocol"
)

// command is one unit of work for the hub loop.
type command interface {
	name() string
	apply(h *Hub)
}

type connectCmd struct {
	sessionID string
	userID    string
	out       Outbox
}

func (connectCmd) name() string { return "connect" }

func (c connectCmd) apply(h *Hub) {
	if _, exists := h.sessions[c.sessionID]; exists {
		h.log.Warn().Str("session_id", c.sessionID).Msg("session id registered twice, replacing")
	}

	h.sessions[c.sessionID] = &member{
		id:          c.sessionID,
		userID:      c.userID,
		out:         c.out,
		connectedAt: h.now(),
	}

	// Latest session wins; an earlier session of the same user is neither
	// notified nor disconnected.
	h.users[c.userID] = c.sessionID

	h.log.Info().
		Str("session_id", c.sessionID).
		Str("user_id", c.userID).
		Int("sessions", len(h.sessions)).
		Msg("session connected")

	h.sendToSession(c.sessionID, protocol.Connected{UserID: c.userID, SessionID: c.sessionID})
}

type disconnectCmd struct {
	sessionID string
}

func (disconnectCmd) name() string { return "disconnect" }

func (c disconnectCmd) apply(h *Hub) {
	m, ok := h.sessions[c.sessionID]
	if !ok {
		return
	}

	delete(h.users, m.userID)

	for _, roomID := range h.roomsOf(c.sessionID) {
		// Membership is removed first so the leaver never receives its own
		// user_left.
		h.removeFromRoom(roomID, c.sessionID)
		h.sendToRoom(roomID, protocol.UserLeft{RoomID: roomID, UserID: m.userID}, "")
	}

	delete(h.sessions, c.sessionID)

	h.log.Info().
		Str("session_id", c.sessionID).
		Str("user_id", m.userID).
		Int("sessions", len(h.sessions)).
		Msg("session disconnected")
}

type joinCmd struct {
	sessionID string
	roomID    string
}

func (joinCmd) name() string { return "join_room" }

func (c joinCmd) apply(h *Hub) {
	members, ok := h.rooms[c.roomID]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[c.roomID] = members
	}
	members[c.sessionID] = struct{}{}

	userID := h.userOf(c.sessionID)

	h.log.Debug().
		Str("session_id", c.sessionID).
		Str("room_id", c.roomID).
		Int("members", len(members)).
		Msg("joined room")

	h.sendToRoom(c.roomID, protocol.UserJoined{RoomID: c.roomID, UserID: userID}, c.sessionID)
	h.sendToSession(c.sessionID, protocol.Joined{RoomID: c.roomID})
}

type leaveCmd struct {
	sessionID string
	roomID    string
}

func (leaveCmd) name() string { return "leave_room" }

func (c leaveCmd) apply(h *Hub) {
	userID := h.userOf(c.sessionID)

	if h.removeFromRoom(c.roomID, c.sessionID) {
		h.log.Debug().
			Str("session_id", c.sessionID).
			Str("room_id", c.roomID).
			Msg("left room")
		h.sendToRoom(c.roomID, protocol.UserLeft{RoomID: c.roomID, UserID: userID}, "")
	}

	h.sendToSession(c.sessionID, protocol.Left{RoomID: c.roomID})
}

type roomMessageCmd struct {
	roomID          string
	senderSessionID string
	event           protocol.Event
}

func (roomMessageCmd) name() string { return "room_message" }

func (c roomMessageCmd) apply(h *Hub) {
	h.sendToRoom(c.roomID, c.event, "")
}

type kickCmd struct {
	sessionID string
}

func (kickCmd) name() string { return "kick" }

func (c kickCmd) apply(h *Hub) {
	m, ok := h.sessions[c.sessionID]
	if !ok {
		return
	}
	h.log.Info().Str("session_id", c.sessionID).Str("user_id", m.userID).Msg("kicking session")
	m.out.Close()
}

type snapshotCmd struct {
	reply chan<- *Snapshot
}

func (snapshotCmd) name() string { return "snapshot" }

func (c snapshotCmd) apply(h *Hub) {
	snap := &Snapshot{
		Sessions:  make([]SessionInfo, 0, len(h.sessions)),
		Rooms:     make([]RoomInfo, 0, len(h.rooms)),
		Users:     make(map[string]string, len(h.users)),
		Delivered: h.delivered,
		Dropped:   h.dropped,
		TakenAt:   h.now(),
	}

	for _, m := range h.sessions {
		snap.Sessions = append(snap.Sessions, SessionInfo{
			ID:          m.id,
			UserID:      m.userID,
			Rooms:       h.roomsOf(m.id),
			ConnectedAt: m.connectedAt,
		})
	}
	sort.Slice(snap.Sessions, func(i, j int) bool {
		return snap.Sessions[i].ID < snap.Sessions[j].ID
	})

	for roomID, members := range h.rooms {
		info := RoomInfo{
			ID:      roomID,
			Members: make([]string, 0, len(members)),
			Users:   make([]string, 0, len(members)),
		}
		for sessionID := range members {
			info.Members = append(info.Members, sessionID)
			info.Users = append(info.Users, h.userOf(sessionID))
		}
		sort.Strings(info.Members)
		sort.Strings(info.Users)
		snap.Rooms = append(snap.Rooms, info)
	}
	sort.Slice(snap.Rooms, func(i, j int) bool {
		return snap.Rooms[i].ID < snap.Rooms[j].ID
	})

	for userID, sessionID := range h.users {
		snap.Users[userID] = sessionID
	}

	c.reply <- snap
}
