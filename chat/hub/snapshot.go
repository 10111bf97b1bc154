package hub

import "time"

// SessionInfo describes one registered session.
type SessionInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Rooms       []string  `json:"rooms"`
	ConnectedAt time.Time `json:"connected_at"`
}

// RoomInfo describes one room and its members.
type RoomInfo struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
	Users   []string `json:"users"`
}

// Snapshot is a point-in-time copy of the hub tables and counters.
type Snapshot struct {
	Sessions  []SessionInfo     `json:"sessions"`
	Rooms     []RoomInfo        `json:"rooms"`
	Users     map[string]string `json:"users"`
	Delivered uint64            `json:"delivered"`
	Dropped   uint64            `json:"dropped"`
	TakenAt   time.Time         `json:"taken_at"`
}

// Session returns the session with the given ID.
func (s *Snapshot) Session(id string) (SessionInfo, bool) {
	for _, info := range s.Sessions {
		if info.ID == id {
			return info, true
		}
	}
	return SessionInfo{}, false
}

// Room returns the room with the given ID.
func (s *Snapshot) Room(id string) (RoomInfo, bool) {
	for _, info := range s.Rooms {
		if info.ID == id {
			return info, true
		}
	}
	return RoomInfo{}, false
}
