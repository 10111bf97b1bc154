package service

import "time"

// Stats summarizes the hub.
type Stats struct {
	Sessions  int       `json:"sessions"`
	Rooms     int       `json:"rooms"`
	Users     int       `json:"users"`
	Delivered uint64    `json:"delivered"`
	Dropped   uint64    `json:"dropped"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

// RoomSummary is one entry of the room list.
type RoomSummary struct {
	ID      string `json:"id"`
	Members int    `json:"members"`
}

// RoomDetail lists who is in a room.
type RoomDetail struct {
	ID      string       `json:"id"`
	Members []MemberInfo `json:"members"`
}

// MemberInfo is one session in a room.
type MemberInfo struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// SessionInfo provides information about a connected session
type SessionInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Rooms       []string  `json:"rooms"`
	ConnectedAt time.Time `json:"connected_at"`
}

// AnnounceResult reports a system message broadcast.
type AnnounceResult struct {
	RoomID     string    `json:"room_id"`
	Recipients int       `json:"recipients"`
	Timestamp  time.Time `json:"timestamp"`
}
