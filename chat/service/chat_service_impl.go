package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/chathub/chat/protocol"
)

// chatServiceImpl implements the ChatService interface
type chatServiceImpl struct {
	registry   Registry
	maxContent int
	startedAt  time.Time
	log        zerolog.Logger
	now        func() time.Time
}

// Option configures the chat service.
type Option func(*chatServiceImpl)

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *chatServiceImpl) {
		s.log = logger.With().Str("component", "service").Logger()
	}
}

// WithMaxContentLength bounds announcement length; 0 disables the check.
func WithMaxContentLength(n int) Option {
	return func(s *chatServiceImpl) {
		s.maxContent = n
	}
}

// NewChatService creates a new chat service over a running hub
func NewChatService(registry Registry, opts ...Option) ChatService {
	s := &chatServiceImpl{
		registry:  registry,
		log:       zerolog.Nop(),
		now:       time.Now,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns hub-wide counters
func (s *chatServiceImpl) Stats(ctx context.Context) (*Stats, error) {
	snap, err := s.registry.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read hub state: %w", err)
	}
	return &Stats{
		Sessions:  len(snap.Sessions),
		Rooms:     len(snap.Rooms),
		Users:     len(snap.Users),
		Delivered: snap.Delivered,
		Dropped:   snap.Dropped,
		StartedAt: s.startedAt,
		Uptime:    s.now().Sub(s.startedAt).Round(time.Second).String(),
	}, nil
}

// ListRooms returns every room with its member count, sorted by ID
func (s *chatServiceImpl) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	snap, err := s.registry.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read hub state: %w", err)
	}
	rooms := make([]RoomSummary, 0, len(snap.Rooms))
	for _, room := range snap.Rooms {
		rooms = append(rooms, RoomSummary{ID: room.ID, Members: len(room.Members)})
	}
	return rooms, nil
}

// GetRoom returns the members of one room
func (s *chatServiceImpl) GetRoom(ctx context.Context, roomID string) (*RoomDetail, error) {
	snap, err := s.registry.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read hub state: %w", err)
	}
	room, ok := snap.Room(roomID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}

	detail := &RoomDetail{ID: room.ID, Members: make([]MemberInfo, 0, len(room.Members))}
	for _, sessionID := range room.Members {
		member := MemberInfo{SessionID: sessionID}
		if info, ok := snap.Session(sessionID); ok {
			member.UserID = info.UserID
		}
		detail.Members = append(detail.Members, member)
	}
	return detail, nil
}

// ListSessions returns every connected session, sorted by ID
func (s *chatServiceImpl) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	snap, err := s.registry.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read hub state: %w", err)
	}
	sessions := make([]SessionInfo, 0, len(snap.Sessions))
	for _, info := range snap.Sessions {
		rooms := info.Rooms
		if rooms == nil {
			rooms = []string{}
		}
		sessions = append(sessions, SessionInfo{
			ID:          info.ID,
			UserID:      info.UserID,
			Rooms:       rooms,
			ConnectedAt: info.ConnectedAt,
		})
	}
	return sessions, nil
}

// Announce broadcasts a system message to an existing room
func (s *chatServiceImpl) Announce(ctx context.Context, roomID, content string) (*AnnounceResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	msg := protocol.ClientMessage{Type: protocol.TypeMessage, RoomID: roomID, Content: content}
	if err := msg.Validate(s.maxContent); err != nil {
		return nil, err
	}

	snap, err := s.registry.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read hub state: %w", err)
	}
	room, ok := snap.Room(roomID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}

	at := s.now()
	s.registry.RoomMessage(roomID, "", protocol.NewMessage(roomID, SystemSender, content, at))

	s.log.Info().Str("room_id", roomID).Int("recipients", len(room.Members)).Msg("announcement sent")

	return &AnnounceResult{
		RoomID:     roomID,
		Recipients: len(room.Members),
		Timestamp:  at.UTC(),
	}, nil
}

// Kick disconnects one session
func (s *chatServiceImpl) Kick(ctx context.Context, sessionID string) error {
	snap, err := s.registry.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read hub state: %w", err)
	}
	if _, ok := snap.Session(sessionID); !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.registry.Kick(sessionID)
	s.log.Info().Str("session_id", sessionID).Msg("session kicked")
	return nil
}
