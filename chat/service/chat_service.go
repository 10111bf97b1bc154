package service

import (
	"context"
	"errors"

	"github.com/wricardo/chathub/chat/hub"
	"github.com/wricardo/chathub/chat/protocol"
)

// SystemSender is the sender_id of announcements.
const SystemSender = "system"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyContent    = errors.New("content must not be empty")
)

// ChatService defines the administrative operations on a running hub
type ChatService interface {
	// Inspection
	Stats(ctx context.Context) (*Stats, error)
	ListRooms(ctx context.Context) ([]RoomSummary, error)
	GetRoom(ctx context.Context, roomID string) (*RoomDetail, error)
	ListSessions(ctx context.Context) ([]SessionInfo, error)

	// Intervention
	Announce(ctx context.Context, roomID, content string) (*AnnounceResult, error)
	Kick(ctx context.Context, sessionID string) error
}

// Registry is the part of the hub the service drives.
type Registry interface {
	Snapshot(ctx context.Context) (*hub.Snapshot, error)
	RoomMessage(roomID, senderSessionID string, event protocol.Event)
	Kick(sessionID string)
}
