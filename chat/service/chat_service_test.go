package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/chathub/chat/hub"
	"github.com/wricardo/chathub/chat/protocol"
	"github.com/wricardo/chathub/chat/service"
)

// MockRegistry implements service.Registry for testing
type MockRegistry struct {
	snapshot    *hub.Snapshot
	snapshotErr error
	kicked      []string
	messages    []protocol.Event
	rooms       []string
}

func (m *MockRegistry) Snapshot(ctx context.Context) (*hub.Snapshot, error) {
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	return m.snapshot, nil
}

func (m *MockRegistry) RoomMessage(roomID, senderSessionID string, event protocol.Event) {
	m.rooms = append(m.rooms, roomID)
	m.messages = append(m.messages, event)
}

func (m *MockRegistry) Kick(sessionID string) {
	m.kicked = append(m.kicked, sessionID)
}

func newMockRegistry() *MockRegistry {
	connectedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return &MockRegistry{
		snapshot: &hub.Snapshot{
			Sessions: []hub.SessionInfo{
				{ID: "s1", UserID: "alice", Rooms: []string{"lobby"}, ConnectedAt: connectedAt},
				{ID: "s2", UserID: "bob", Rooms: []string{"lobby", "ops"}, ConnectedAt: connectedAt},
				{ID: "s3", UserID: "carol", ConnectedAt: connectedAt},
			},
			Rooms: []hub.RoomInfo{
				{ID: "lobby", Members: []string{"s1", "s2"}, Users: []string{"alice", "bob"}},
				{ID: "ops", Members: []string{"s2"}, Users: []string{"bob"}},
			},
			Users:     map[string]string{"alice": "s1", "bob": "s2", "carol": "s3"},
			Delivered: 42,
			Dropped:   1,
		},
	}
}

func TestChatService_Stats(t *testing.T) {
	svc := service.NewChatService(newMockRegistry())

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Sessions != 3 || stats.Rooms != 2 || stats.Users != 3 {
		t.Errorf("Unexpected counts %+v", stats)
	}
	if stats.Delivered != 42 || stats.Dropped != 1 {
		t.Errorf("Unexpected delivery counters %+v", stats)
	}
	if stats.StartedAt.IsZero() || stats.Uptime == "" {
		t.Errorf("Expected start time and uptime, got %+v", stats)
	}
}

func TestChatService_ListRooms(t *testing.T) {
	svc := service.NewChatService(newMockRegistry())

	rooms, err := svc.ListRooms(context.Background())
	if err != nil {
		t.Fatalf("ListRooms() error = %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("Expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0].ID != "lobby" || rooms[0].Members != 2 {
		t.Errorf("Unexpected first room %+v", rooms[0])
	}
	if rooms[1].ID != "ops" || rooms[1].Members != 1 {
		t.Errorf("Unexpected second room %+v", rooms[1])
	}
}

func TestChatService_GetRoom(t *testing.T) {
	ctx := context.Background()
	svc := service.NewChatService(newMockRegistry())

	tests := []struct {
		name        string
		roomID      string
		wantErr     error
		wantMembers int
	}{
		{name: "existing room", roomID: "lobby", wantMembers: 2},
		{name: "single member", roomID: "ops", wantMembers: 1},
		{name: "unknown room", roomID: "nope", wantErr: service.ErrRoomNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := svc.GetRoom(ctx, tt.roomID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetRoom() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if len(room.Members) != tt.wantMembers {
				t.Errorf("Expected %d members, got %d", tt.wantMembers, len(room.Members))
			}
			for _, m := range room.Members {
				if m.UserID == "" {
					t.Errorf("Member %s has no user id", m.SessionID)
				}
			}
		})
	}
}

func TestChatService_ListSessions(t *testing.T) {
	svc := service.NewChatService(newMockRegistry())

	sessions, err := svc.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(sessions))
	}
	if sessions[2].Rooms == nil {
		t.Error("Expected an empty, non-nil room list for a session in no rooms")
	}
	if sessions[1].UserID != "bob" || len(sessions[1].Rooms) != 2 {
		t.Errorf("Unexpected session %+v", sessions[1])
	}
}

func TestChatService_Announce(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		roomID  string
		content string
		wantErr error
	}{
		{name: "existing room", roomID: "lobby", content: "maintenance at noon"},
		{name: "empty content", roomID: "lobby", content: "   ", wantErr: service.ErrEmptyContent},
		{name: "unknown room", roomID: "nope", content: "hello", wantErr: service.ErrRoomNotFound},
		{name: "empty room id", roomID: "", content: "hello", wantErr: protocol.ErrEmptyRoomID},
		{name: "content too long", roomID: "lobby", content: "this announcement is far too long to send", wantErr: protocol.ErrContentTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := newMockRegistry()
			svc := service.NewChatService(registry, service.WithMaxContentLength(32))

			result, err := svc.Announce(ctx, tt.roomID, tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Announce() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if len(registry.messages) != 0 {
					t.Error("Nothing should be broadcast on error")
				}
				return
			}

			if result.Recipients != 2 {
				t.Errorf("Expected 2 recipients, got %d", result.Recipients)
			}
			if len(registry.messages) != 1 || registry.rooms[0] != tt.roomID {
				t.Fatalf("Expected one broadcast to %s, got %v", tt.roomID, registry.rooms)
			}
			msg, ok := registry.messages[0].(protocol.Message)
			if !ok {
				t.Fatalf("Expected a message event, got %T", registry.messages[0])
			}
			if msg.SenderID != service.SystemSender || msg.Content != tt.content {
				t.Errorf("Unexpected announcement %+v", msg)
			}
		})
	}
}

func TestChatService_Kick(t *testing.T) {
	ctx := context.Background()
	registry := newMockRegistry()
	svc := service.NewChatService(registry)

	if err := svc.Kick(ctx, "s2"); err != nil {
		t.Fatalf("Kick() error = %v", err)
	}
	if len(registry.kicked) != 1 || registry.kicked[0] != "s2" {
		t.Errorf("Expected s2 kicked, got %v", registry.kicked)
	}

	if err := svc.Kick(ctx, "missing"); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("Kick() error = %v, want ErrSessionNotFound", err)
	}
}

func TestChatService_SnapshotError(t *testing.T) {
	registry := &MockRegistry{snapshotErr: hub.ErrStopped}
	svc := service.NewChatService(registry)

	if _, err := svc.Stats(context.Background()); !errors.Is(err, hub.ErrStopped) {
		t.Errorf("Stats() error = %v, want ErrStopped", err)
	}
	if _, err := svc.ListRooms(context.Background()); !errors.Is(err, hub.ErrStopped) {
		t.Errorf("ListRooms() error = %v, want ErrStopped", err)
	}
}

// captureOutbox records frames delivered by a real hub.
type captureOutbox struct {
	mu     sync.Mutex
	frames []protocol.Frame
}

func (o *captureOutbox) Deliver(payload []byte) bool {
	frame, err := protocol.DecodeFrame(payload)
	if err != nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames = append(o.frames, frame)
	return true
}

func (o *captureOutbox) Close() {}

func (o *captureOutbox) last() protocol.Frame {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.frames) == 0 {
		return protocol.Frame{}
	}
	return o.frames[len(o.frames)-1]
}

func TestChatService_AnnounceThroughHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := hub.New()
	go h.Run(ctx)

	out := &captureOutbox{}
	h.Connect("s1", "alice", out)
	h.JoinRoom("s1", "lobby")

	svc := service.NewChatService(h)
	if _, err := svc.Announce(ctx, "lobby", "hello everyone"); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}

	// Snapshot is processed after the broadcast.
	if _, err := h.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	frame := out.last()
	if frame.Type != protocol.EventMessage || frame.SenderID != service.SystemSender || frame.Content != "hello everyone" {
		t.Errorf("Unexpected frame %+v", frame)
	}
}
