package websocket

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/chathub/chat/hub"
	"github.com/wricardo/chathub/chat/protocol"
)

// Hub is the part of the registry a session talks to.
type Hub interface {
	Connect(sessionID, userID string, out hub.Outbox)
	Disconnect(sessionID string)
	JoinRoom(sessionID, roomID string)
	LeaveRoom(sessionID, roomID string)
	RoomMessage(roomID, senderSessionID string, event protocol.Event)
}

// Settings control heartbeat and buffering of a session.
type Settings struct {
	// How often liveness is checked and a ping is sent.
	HeartbeatInterval time.Duration

	// Silence longer than this terminates the session.
	ClientTimeout time.Duration

	// Time allowed to write a frame to the peer.
	WriteWait time.Duration

	// Maximum inbound frame size.
	MaxMessageSize int64

	// Maximum chat content length; 0 disables the check.
	MaxContentLength int

	// Outbound frames buffered per session.
	SendBuffer int
}

// DefaultSettings mirror the server defaults.
func DefaultSettings() Settings {
	return Settings{
		HeartbeatInterval: 5 * time.Second,
		ClientTimeout:     10 * time.Second,
		WriteWait:         10 * time.Second,
		MaxMessageSize:    64 * 1024,
		MaxContentLength:  4096,
		SendBuffer:        256,
	}
}

// Session bridges one WebSocket connection to the hub.
type Session struct {
	id       string
	userID   string
	hub      Hub
	conn     *websocket.Conn
	settings Settings

	// Outbound frames, already encoded
	send chan []byte

	// Closed when the session stops
	done     chan struct{}
	stopOnce sync.Once

	// Unix nanoseconds of the last liveness signal
	lastHeartbeat atomic.Int64

	log zerolog.Logger
	now func() time.Time
}

// NewSession creates a session for an upgraded connection.
func NewSession(conn *websocket.Conn, userID string, h Hub, settings Settings, logger zerolog.Logger) *Session {
	defaults := DefaultSettings()
	if settings.HeartbeatInterval <= 0 {
		settings.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if settings.ClientTimeout <= 0 {
		settings.ClientTimeout = 2 * settings.HeartbeatInterval
	}
	if settings.WriteWait <= 0 {
		settings.WriteWait = defaults.WriteWait
	}
	if settings.SendBuffer <= 0 {
		settings.SendBuffer = defaults.SendBuffer
	}
	id := uuid.NewString()
	s := &Session{
		id:       id,
		userID:   userID,
		hub:      h,
		conn:     conn,
		settings: settings,
		send:     make(chan []byte, settings.SendBuffer),
		done:     make(chan struct{}),
		log: logger.With().
			Str("component", "session").
			Str("session_id", id).
			Str("user_id", userID).
			Logger(),
		now: time.Now,
	}
	s.touch()
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// UserID returns the user the session was opened for.
func (s *Session) UserID() string { return s.userID }

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start registers the session and starts its pumps.
func (s *Session) Start() {
	s.hub.Connect(s.id, s.userID, s)
	go s.writePump()
	go s.readPump()
}

// Deliver queues an encoded frame. It never blocks.
func (s *Session) Deliver(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- payload:
		return true
	default:
		s.log.Warn().Msg("send buffer full, dropping frame")
		return false
	}
}

// Close terminates the session from outside, e.g. when kicked.
func (s *Session) Close() {
	go s.stop()
}

// stop unregisters from the hub, then tears down the connection. Runs once.
func (s *Session) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.hub.Disconnect(s.id)
		s.conn.Close()
		s.log.Info().Msg("session stopped")
	})
}

func (s *Session) touch() {
	s.lastHeartbeat.Store(s.now().UnixNano())
}

func (s *Session) idle() time.Duration {
	return s.now().Sub(time.Unix(0, s.lastHeartbeat.Load()))
}

// reply encodes and queues a frame for this session only.
func (s *Session) reply(event protocol.Event) {
	data, err := protocol.Encode(event)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode reply")
		return
	}
	s.Deliver(data)
}

// readPump pumps frames from the connection to the hub.
func (s *Session) readPump() {
	defer s.stop()

	if s.settings.MaxMessageSize > 0 {
		s.conn.SetReadLimit(s.settings.MaxMessageSize)
	}
	s.conn.SetPingHandler(func(appData string) error {
		s.touch()
		err := s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(s.settings.WriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.log.Warn().Err(err).Msg("websocket read error")
			} else {
				s.log.Debug().Err(err).Msg("websocket closed")
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			s.touch()
			s.handleFrame(data)
		case websocket.BinaryMessage:
			s.log.Warn().Int("bytes", len(data)).Msg("binary frames not supported, ignoring")
		}
	}
}

// handleFrame decodes one text frame and acts on it.
func (s *Session) handleFrame(data []byte) {
	// Nothing may reach the hub after Disconnect was sent.
	select {
	case <-s.done:
		return
	default:
	}

	msg, err := protocol.DecodeClientMessage(data)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to parse client message")
		s.reply(protocol.NewDecodeError(err))
		return
	}
	if err := msg.Validate(s.settings.MaxContentLength); err != nil {
		s.reply(protocol.Error{Message: err.Error()})
		return
	}

	switch msg.Type {
	case protocol.TypeJoin:
		s.hub.JoinRoom(s.id, msg.RoomID)

	case protocol.TypeLeave:
		s.hub.LeaveRoom(s.id, msg.RoomID)

	case protocol.TypeMessage:
		event := protocol.NewMessage(msg.RoomID, s.userID, msg.Content, s.now())
		s.hub.RoomMessage(msg.RoomID, s.id, event)

	case protocol.TypeTyping:
		s.hub.RoomMessage(msg.RoomID, s.id, protocol.UserTyping{RoomID: msg.RoomID, UserID: s.userID})

	case protocol.TypeStopTyping:
		s.hub.RoomMessage(msg.RoomID, s.id, protocol.UserStopTyping{RoomID: msg.RoomID, UserID: s.userID})

	case protocol.TypePing:
		s.reply(protocol.Pong{})
	}
}

// writePump pumps frames from the send buffer to the connection and runs
// the heartbeat.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.settings.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		s.stop()
	}()

	for {
		select {
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.settings.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			if idle := s.idle(); idle > s.settings.ClientTimeout {
				s.log.Warn().Dur("idle", idle).Msg("heartbeat timeout, disconnecting")
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(s.settings.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Debug().Err(err).Msg("ping failed")
				return
			}

		case <-s.done:
			return
		}
	}
}
