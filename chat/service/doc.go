// Package service provides the administrative layer over a running chat hub.
//
// The service package implements:
//   - Hub statistics and room/session listings
//   - System announcements into a room
//   - Kicking a session
//
// Core Interfaces:
//
// ChatService is the interface consumed by the REST API and, through it, by
// the MCP adapter. Registry is the slice of the hub the service drives; the
// hub satisfies it directly.
//
// Architecture:
//
// Every read goes through Snapshot, so the service never touches hub state
// outside the hub's own goroutine. Writes are enqueued as ordinary hub
// commands. Announcements are regular message events with sender_id
// "system" and are delivered like any other room message.
//
// Usage:
//
//	h := hub.New()
//	go h.Run(ctx)
//
//	chatService := service.NewChatService(h, service.WithMaxContentLength(4096))
//	rooms, err := chatService.ListRooms(ctx)
package service
