// Command chatcli is an interactive terminal client for a chathub server.
//
// Lines starting with a slash are commands:
//
//	/join <room>    join a room and make it current
//	/leave [room]   leave a room (default: current)
//	/typing         send a typing indicator to the current room
//	/stop           send stop_typing to the current room
//	/ping           application-level ping
//	/quit           close the connection
//
// Any other line is sent as a message to the current room. Incoming events
// are printed one per line.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/chathub/chat/protocol"
)

var (
	errQuit      = errors.New("quit")
	errNoRoom    = errors.New("no current room, use /join <room> first")
	errNeedsRoom = errors.New("usage: /join <room>")
)

func main() {
	cmd := &cli.Command{
		Name:  "chatcli",
		Usage: "Interactive chathub client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "WebSocket endpoint of the chat server",
				Value:   "ws://localhost:8080/ws/chat",
				Sources: cli.EnvVars("CHATHUB_WS_URL"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Signed token; empty connects anonymously",
				Sources: cli.EnvVars("CHATHUB_TOKEN"),
			},
			&cli.StringFlag{
				Name:  "room",
				Usage: "Room to join right after connecting",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd.String("url"), cmd.String("token"), cmd.String("room"), os.Stdin, cmd.Root().Writer)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "chatcli: %v\n", err)
		os.Exit(1)
	}
}

// client tracks the room plain lines are sent to.
type client struct {
	room string
}

// parseLine turns one input line into a frame to send. It returns a nil
// message for blank lines and errQuit for /quit.
func (c *client) parseLine(line string) (*protocol.ClientMessage, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}

	if !strings.HasPrefix(line, "/") {
		if c.room == "" {
			return nil, errNoRoom
		}
		return &protocol.ClientMessage{Type: protocol.TypeMessage, RoomID: c.room, Content: line}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/join":
		if len(fields) < 2 {
			return nil, errNeedsRoom
		}
		c.room = fields[1]
		return &protocol.ClientMessage{Type: protocol.TypeJoin, RoomID: c.room}, nil
	case "/leave":
		room := c.room
		if len(fields) > 1 {
			room = fields[1]
		}
		if room == "" {
			return nil, errNoRoom
		}
		if room == c.room {
			c.room = ""
		}
		return &protocol.ClientMessage{Type: protocol.TypeLeave, RoomID: room}, nil
	case "/typing", "/stop":
		if c.room == "" {
			return nil, errNoRoom
		}
		kind := protocol.TypeTyping
		if fields[0] == "/stop" {
			kind = protocol.TypeStopTyping
		}
		return &protocol.ClientMessage{Type: kind, RoomID: c.room}, nil
	case "/ping":
		return &protocol.ClientMessage{Type: protocol.TypePing}, nil
	case "/quit":
		return nil, errQuit
	default:
		return nil, fmt.Errorf("unknown command %s", fields[0])
	}
}

// formatFrame renders a server event as one line.
func formatFrame(f protocol.Frame) string {
	switch f.Type {
	case protocol.EventConnected:
		return fmt.Sprintf("* connected as %s (session %s)", f.UserID, f.SessionID)
	case protocol.EventJoined:
		return fmt.Sprintf("* joined %s", f.RoomID)
	case protocol.EventLeft:
		return fmt.Sprintf("* left %s", f.RoomID)
	case protocol.EventMessage:
		return fmt.Sprintf("[%s] %s %s: %s", f.RoomID, shortTime(f.Timestamp), f.SenderID, f.Content)
	case protocol.EventUserJoined:
		return fmt.Sprintf("[%s] %s joined", f.RoomID, f.UserID)
	case protocol.EventUserLeft:
		return fmt.Sprintf("[%s] %s left", f.RoomID, f.UserID)
	case protocol.EventUserTyping:
		return fmt.Sprintf("[%s] %s is typing...", f.RoomID, f.UserID)
	case protocol.EventUserStopTyping:
		return fmt.Sprintf("[%s] %s stopped typing", f.RoomID, f.UserID)
	case protocol.EventError:
		return fmt.Sprintf("! error: %s", f.Message)
	case protocol.EventPong:
		return "* pong"
	default:
		return fmt.Sprintf("? %s", f.Type)
	}
}

func shortTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("15:04:05")
}

// dialURL adds the token as a query parameter when one is given.
func dialURL(endpoint, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", endpoint, err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// run connects and pumps in and out until /quit, end of input or the server
// closes the connection.
func run(ctx context.Context, endpoint, token, room string, in io.Reader, out io.Writer) error {
	target, err := dialURL(endpoint, token)
	if err != nil {
		return err
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					fmt.Fprintf(out, "* disconnected: %v\n", err)
				}
				return
			}
			frame, err := protocol.DecodeFrame(data)
			if err != nil {
				fmt.Fprintf(out, "! undecodable frame: %s\n", data)
				continue
			}
			fmt.Fprintln(out, formatFrame(frame))
		}
	}()

	c := &client{}
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	if room != "" {
		if err := send(conn, c, "/join "+room, out); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return closeConn(conn, closed)
		case <-closed:
			return nil
		case line, ok := <-lines:
			if !ok {
				return closeConn(conn, closed)
			}
			if err := send(conn, c, line, out); err != nil {
				if errors.Is(err, errQuit) {
					return closeConn(conn, closed)
				}
				return err
			}
		}
	}
}

// send parses line and writes the resulting frame. Input mistakes are
// printed and swallowed; only write failures and /quit are returned.
func send(conn *websocket.Conn, c *client, line string, out io.Writer) error {
	msg, err := c.parseLine(line)
	if err != nil {
		if errors.Is(err, errQuit) {
			return err
		}
		fmt.Fprintf(out, "! %v\n", err)
		return nil
	}
	if msg == nil {
		return nil
	}

	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	return nil
}

func closeConn(conn *websocket.Conn, closed <-chan struct{}) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	select {
	case <-closed:
	case <-time.After(time.Second):
	}
	return nil
}
