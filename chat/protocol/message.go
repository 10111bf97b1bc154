package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrMissingField   = errors.New("missing field")
	ErrNilEvent       = errors.New("nil event")
	ErrEmptyRoomID    = errors.New("room_id must not be empty")
	ErrRoomIDTooLong  = errors.New("room_id too long")
	ErrContentTooLong = errors.New("content too long")
)

var errNotAnObject = errors.New("event does not encode to a JSON object")

// MaxRoomIDLength bounds the room identifiers accepted from clients.
const MaxRoomIDLength = 128

// ClientMessageType is the "type" tag of a client → server frame.
type ClientMessageType string

const (
	TypeJoin       ClientMessageType = "join"
	TypeLeave      ClientMessageType = "leave"
	TypeMessage    ClientMessageType = "message"
	TypeTyping     ClientMessageType = "typing"
	TypeStopTyping ClientMessageType = "stop_typing"
	TypePing       ClientMessageType = "ping"
)

// ClientMessage is a decoded client → server frame.
type ClientMessage struct {
	Type    ClientMessageType
	RoomID  string
	Content string
}

type rawClientMessage struct {
	Type    *string `json:"type"`
	RoomID  *string `json:"room_id"`
	Content *string `json:"content"`
}

// DecodeClientMessage parses one inbound frame. Unknown fields are ignored;
// a missing or unknown type and missing required fields are errors.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var raw rawClientMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ClientMessage{}, err
	}
	if raw.Type == nil {
		return ClientMessage{}, fmt.Errorf("%w `type`", ErrMissingField)
	}

	msgType := ClientMessageType(*raw.Type)
	switch msgType {
	case TypePing:
		return ClientMessage{Type: TypePing}, nil
	case TypeJoin, TypeLeave, TypeMessage, TypeTyping, TypeStopTyping:
	default:
		return ClientMessage{}, fmt.Errorf("%w %q", ErrUnknownType, *raw.Type)
	}

	if raw.RoomID == nil {
		return ClientMessage{}, fmt.Errorf("%w `room_id`", ErrMissingField)
	}
	msg := ClientMessage{Type: msgType, RoomID: *raw.RoomID}

	if msgType == TypeMessage {
		if raw.Content == nil {
			return ClientMessage{}, fmt.Errorf("%w `content`", ErrMissingField)
		}
		msg.Content = *raw.Content
	}
	return msg, nil
}

// Validate applies size limits to a decoded message. maxContent <= 0
// disables the content check.
func (m ClientMessage) Validate(maxContent int) error {
	if m.Type == TypePing {
		return nil
	}
	if m.RoomID == "" {
		return ErrEmptyRoomID
	}
	if len(m.RoomID) > MaxRoomIDLength {
		return fmt.Errorf("%w: %d > %d bytes", ErrRoomIDTooLong, len(m.RoomID), MaxRoomIDLength)
	}
	if maxContent > 0 && len(m.Content) > maxContent {
		return fmt.Errorf("%w: %d > %d bytes", ErrContentTooLong, len(m.Content), maxContent)
	}
	return nil
}

// Encode renders the message as a client frame.
func (m ClientMessage) Encode() ([]byte, error) {
	frame := map[string]string{"type": string(m.Type)}
	if m.Type != TypePing {
		frame["room_id"] = m.RoomID
	}
	if m.Type == TypeMessage {
		frame["content"] = m.Content
	}
	return json.Marshal(frame)
}

// Server → client event tags.
const (
	EventConnected      = "connected"
	EventJoined         = "joined"
	EventLeft           = "left"
	EventMessage        = "message"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventError          = "error"
	EventPong           = "pong"
)

// Event is a server → client message.
type Event interface {
	EventType() string
}

type Connected struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

type Joined struct {
	RoomID string `json:"room_id"`
}

type Left struct {
	RoomID string `json:"room_id"`
}

// Message is a chat line as relayed to room members. SenderUsername is
// always present on the wire and null when unknown.
type Message struct {
	RoomID         string  `json:"room_id"`
	SenderID       string  `json:"sender_id"`
	SenderUsername *string `json:"sender_username"`
	Content        string  `json:"content"`
	Timestamp      string  `json:"timestamp"`
}

type UserTyping struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

type UserStopTyping struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

type UserJoined struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

type UserLeft struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

type Error struct {
	Message string `json:"message"`
}

type Pong struct{}

func (Connected) EventType() string      { return EventConnected }
func (Joined) EventType() string         { return EventJoined }
func (Left) EventType() string           { return EventLeft }
func (Message) EventType() string        { return EventMessage }
func (UserTyping) EventType() string     { return EventUserTyping }
func (UserStopTyping) EventType() string { return EventUserStopTyping }
func (UserJoined) EventType() string     { return EventUserJoined }
func (UserLeft) EventType() string       { return EventUserLeft }
func (Error) EventType() string          { return EventError }
func (Pong) EventType() string           { return EventPong }

// NewMessage stamps a chat message with the server time, in UTC as RFC 3339
// with nanoseconds and a "Z" suffix (not "+00:00").
func NewMessage(roomID, senderID, content string, at time.Time) Message {
	return Message{
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
}

// NewDecodeError builds the error event sent back for an undecodable frame.
func NewDecodeError(err error) Error {
	return Error{Message: fmt.Sprintf("Invalid message format: %v", err)}
}

// Encode renders an event as {"type":"<tag>", ...fields}.
func Encode(e Event) ([]byte, error) {
	if e == nil {
		return nil, ErrNilEvent
	}

	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EventType(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s: %w", e.EventType(), errNotAnObject)
	}
	tag, err := json.Marshal(e.EventType())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EventType(), err)
	}

	out := make([]byte, 0, len(body)+len(tag)+9)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	if len(body) > 2 {
		out = append(out, ',')
	}
	out = append(out, body[1:]...)
	return out, nil
}

// Frame is a flat view of any server event, for clients that only need to
// read the wire.
type Frame struct {
	Type           string  `json:"type"`
	RoomID         string  `json:"room_id,omitempty"`
	UserID         string  `json:"user_id,omitempty"`
	SessionID      string  `json:"session_id,omitempty"`
	SenderID       string  `json:"sender_id,omitempty"`
	SenderUsername *string `json:"sender_username,omitempty"`
	Content        string  `json:"content,omitempty"`
	Timestamp      string  `json:"timestamp,omitempty"`
	Message        string  `json:"message,omitempty"`
}

// DecodeFrame parses a server → client frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("%w `type`", ErrMissingField)
	}
	return f, nil
}
