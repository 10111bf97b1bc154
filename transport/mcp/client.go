package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/chathub/chat/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"chathub",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`chathub - MCP Admin Interface

This is a thin client that proxies all requests to the chat server's REST API.
Chat traffic itself flows over WebSocket; these tools observe and moderate it.

AVAILABLE TOOLS:
- chat_stats: Session, room and delivery counters
- list_rooms: All rooms with member counts
- get_room: Members of one room
- list_sessions: Connected sessions, optionally filtered by user
- announce: Send a system message to a room
- kick_session: Disconnect a session

Note: announce fails for a room that does not exist.`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Inspection
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "chat_stats",
		Description: "Get hub statistics: sessions, rooms, users and delivery counters",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List all rooms with their member counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "List the sessions and users in a room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Room ID",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleGetRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List connected sessions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "Only sessions of this user (optional)",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of sessions to return (optional)",
				},
			},
		},
	}, c.handleListSessions)

	// Moderation
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "announce",
		Description: "Broadcast a system message to every member of a room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Room ID",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Message text",
				},
			},
			Required: []string{"room_id", "content"},
		},
	}, c.handleAnnounce)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "kick_session",
		Description: "Disconnect a session; its rooms are told the user left",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleKickSession)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// Tool handlers

func (c *Client) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats service.Stats
	if err := c.apiCall(ctx, "GET", "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStats(&stats)), nil
}

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Rooms []service.RoomSummary `json:"rooms"`
	}
	if err := c.apiCall(ctx, "GET", "/api/rooms", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRooms(resp.Rooms)), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, _ := args["room_id"].(string)
	if roomID == "" {
		return mcp.NewToolResultError("room_id is required"), nil
	}

	var room service.RoomDetail
	if err := c.apiCall(ctx, "GET", "/api/rooms/"+url.PathEscape(roomID), nil, &room); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoom(&room)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	query := url.Values{}
	if userID, _ := args["user_id"].(string); userID != "" {
		query.Set("user", userID)
	}
	if limit, ok := args["limit"].(float64); ok && limit > 0 {
		query.Set("limit", strconv.Itoa(int(limit)))
	}

	path := "/api/sessions"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp struct {
		Total    int                   `json:"total"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessions(resp.Sessions, resp.Total)), nil
}

func (c *Client) handleAnnounce(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, _ := args["room_id"].(string)
	content, _ := args["content"].(string)
	if roomID == "" {
		return mcp.NewToolResultError("room_id is required"), nil
	}

	var result service.AnnounceResult
	body := map[string]string{"content": content}
	if err := c.apiCall(ctx, "POST", "/api/rooms/"+url.PathEscape(roomID)+"/announce", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Announced to %s (%d recipients)", result.RoomID, result.Recipients)), nil
}

func (c *Client) handleKickSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var resp map[string]string
	if err := c.apiCall(ctx, "DELETE", "/api/sessions/"+url.PathEscape(sessionID), nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(resp["message"]), nil
}

// Formatting helpers

func formatStats(stats *service.Stats) string {
	var b strings.Builder
	b.WriteString("📊 Chat Hub\n")
	fmt.Fprintf(&b, "Sessions: %d\n", stats.Sessions)
	fmt.Fprintf(&b, "Users: %d\n", stats.Users)
	fmt.Fprintf(&b, "Rooms: %d\n", stats.Rooms)
	fmt.Fprintf(&b, "Delivered: %d\n", stats.Delivered)
	fmt.Fprintf(&b, "Dropped: %d\n", stats.Dropped)
	if stats.Uptime != "" {
		fmt.Fprintf(&b, "Uptime: %s\n", stats.Uptime)
	}
	return b.String()
}

func formatRooms(rooms []service.RoomSummary) string {
	if len(rooms) == 0 {
		return "No rooms"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d rooms:\n", len(rooms))
	for _, room := range rooms {
		fmt.Fprintf(&b, "- %s (%d members)\n", room.ID, room.Members)
	}
	return b.String()
}

func formatRoom(room *service.RoomDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s, %d members\n", room.ID, len(room.Members))
	for _, m := range room.Members {
		fmt.Fprintf(&b, "- %s (session %s)\n", m.UserID, m.SessionID)
	}
	return b.String()
}

func formatSessions(sessions []service.SessionInfo, total int) string {
	if len(sessions) == 0 {
		return "No sessions"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Showing %d of %d sessions:\n", len(sessions), total)
	for _, s := range sessions {
		rooms := "no rooms"
		if len(s.Rooms) > 0 {
			rooms = strings.Join(s.Rooms, ", ")
		}
		fmt.Fprintf(&b, "- %s user=%s rooms=[%s] since %s\n",
			s.ID, s.UserID, rooms, s.ConnectedAt.Format(time.RFC3339))
	}
	return b.String()
}
