// Package api provides the HTTP surface of the chat server.
//
// The api package implements:
//   - WebSocket endpoints for chat clients
//   - Read-only inspection of the hub (stats, rooms, sessions)
//   - Administrative actions (announcements, kicking sessions)
//
// Endpoints:
//
// Chat:
//   - GET /ws/chat - WebSocket upgrade; token via Authorization header or ?token=
//   - GET /ws/chat/token - Same endpoint, conventionally used with ?token=
//
// Inspection:
//   - GET /api/health - Liveness probe
//   - GET /api/stats - Session, room and delivery counters
//   - GET /api/rooms - List rooms with member counts
//   - GET /api/rooms/{id} - List members of one room
//   - GET /api/sessions - List sessions; supports ?user= and ?limit=
//
// Administration:
//   - POST /api/rooms/{id}/announce - Broadcast a system message
//     Body: {"content": "text"}
//   - DELETE /api/sessions/{id} - Disconnect a session
//
// Usage:
//
//	chatService := service.NewChatService(h)
//	wsHandler := websocket.NewHandler(h, verifier)
//	apiServer := api.NewServer(chatService, wsHandler, logger)
//	http.ListenAndServe(":8080", apiServer)
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status matching the failure:
// 400 for invalid input, 404 for unknown rooms or sessions, 503 once the
// hub has stopped.
//
//	{
//	  "error": "room not found: lobby"
//	}
package api
