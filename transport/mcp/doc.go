// Package mcp provides a Model Context Protocol interface for administering
// the chat hub.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions for hub inspection and moderation
//   - Proxying every tool call to the REST API
//
// MCP Tools:
//
//   - chat_stats: Session, room and delivery counters
//   - list_rooms: All rooms with member counts
//   - get_room: Members of one room
//   - list_sessions: Connected sessions, optionally filtered by user
//   - announce: Broadcast a system message to a room
//   - kick_session: Disconnect a session
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: The /mcp endpoint mounted by the chat server
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//
//	// Stdio mode
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	response := client.GetMCPServer().HandleMessage(ctx, body)
package mcp
