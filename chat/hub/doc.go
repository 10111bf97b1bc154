// Package hub provides the in-process registry and fan-out engine of the
// chat server.
//
// The hub package implements:
//   - Session registration and removal
//   - Room membership (rooms are created on first join)
//   - Room broadcasts with one encoding per broadcast
//   - A user → session index (latest session wins)
//   - Read-only snapshots for the admin surface
//
// Architecture:
//
// A Hub owns three tables (sessions, rooms, users) and exactly one goroutine
// touches them: the loop started by Run. Every public method only enqueues a
// command on a buffered channel and returns; the loop applies commands one
// at a time in arrival order. This is what makes JoinRoom's
// add-then-broadcast atomic: nothing can interleave between the membership
// update and the recipient snapshot.
//
// Delivery:
//
// Each registered session hands the hub an Outbox. The hub pushes encoded
// frames into it without blocking. A stale or full outbox rejects the frame;
// the hub counts the drop and moves on to the next recipient.
//
// Usage:
//
//	h := hub.New(hub.WithLogger(logger))
//	go h.Run(ctx)
//
//	h.Connect(sessionID, userID, outbox)
//	h.JoinRoom(sessionID, "lobby")
//	h.RoomMessage("lobby", sessionID, protocol.NewMessage("lobby", userID, "hi", time.Now()))
//	h.Disconnect(sessionID)
//
// Lifecycle:
//
// Run returns when its context is cancelled. Before returning it closes every
// registered Outbox so the owning sessions shut down. Commands enqueued after
// that are dropped.
package hub
