// Package websocket provides the WebSocket transport for the chat hub.
//
// The websocket package implements:
//   - Upgrading HTTP requests and resolving the caller's identity
//   - One Session per connection, bridging frames to the hub
//   - Heartbeat supervision with transport-level pings
//   - Non-blocking outbound delivery through a bounded buffer
//
// Architecture:
//
// Each Session runs two goroutines. The read pump decodes text frames into
// client messages and turns them into hub commands. The write pump drains the
// send buffer, and on every heartbeat tick checks how long the peer has been
// silent. A peer silent for longer than the client timeout is disconnected.
//
// Any inbound frame, ping or pong counts as a liveness signal. Binary frames
// are logged and ignored. Malformed text frames are answered with an error
// event and the connection stays open.
//
// Usage:
//
//	h := hub.New(hub.WithLogger(logger))
//	go h.Run(ctx)
//
//	handler := websocket.NewHandler(h, verifier,
//		websocket.WithSettings(settings),
//		websocket.WithLogger(logger),
//	)
//	router.Handle("/ws/chat", handler)
//
// Connection Lifecycle:
//
// 1. Client connects, optionally presenting a token
// 2. Session registered with the hub, which replies with connected
// 3. Client joins rooms and exchanges messages
// 4. Close, read error or heartbeat timeout stops the session
// 5. The hub is told exactly once and notifies the session's rooms
package websocket
