// Package protocol defines the JSON wire vocabulary of the chat hub.
//
// Every frame is a single JSON object discriminated by a "type" field, with
// snake_case field names.
//
// Client → server:
//   - join{room_id}
//   - leave{room_id}
//   - message{room_id, content}
//   - typing{room_id}
//   - stop_typing{room_id}
//   - ping
//
// Server → client:
//   - connected{user_id, session_id}
//   - joined{room_id}, left{room_id}
//   - message{room_id, sender_id, sender_username, content, timestamp}
//   - user_typing{room_id, user_id}, user_stop_typing{room_id, user_id}
//   - user_joined{room_id, user_id}, user_left{room_id, user_id}
//   - error{message}
//   - pong
//
// Server events are Go values implementing Event. Encode turns one into
// its wire bytes; the hub encodes a broadcast once and hands the same bytes
// to every recipient.
//
// Usage:
//
//	msg, err := protocol.DecodeClientMessage(frame)
//	if err != nil {
//		reply, _ := protocol.Encode(protocol.NewDecodeError(err))
//		...
//	}
//
//	data, err := protocol.Encode(protocol.UserJoined{RoomID: "lobby", UserID: "u2"})
package protocol
