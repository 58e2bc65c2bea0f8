// Package ipc is the control socket between lily-ctl and the daemon: one
// JSON request and one JSON reply per connection.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"
)

const SocketPath = "/tmp/lily.sock"

type ControlMessage struct {
	Cmd  string   `json:"cmd"`
	Args []string `json:"args,omitempty"`
}

type Reply struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

func Ok(text string) Reply { return Reply{OK: true, Text: text} }

func Fail(err error) Reply { return Reply{Error: err.Error()} }

type Handler func(ctx context.Context, msg ControlMessage) Reply

type Server struct {
	ln   net.Listener
	path string
}

// Listen binds the socket at path, replacing a stale one.
func Listen(path string) (*Server, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Server{ln: ln, path: path}, nil
}

// Serve accepts connections until ctx ends or the server is closed.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn("Failed to accept control connection", "err", err)
			continue
		}
		go handleConn(ctx, conn, h)
	}
}

func (s *Server) Close() error {
	err := s.ln.Close()
	os.Remove(s.path)
	return err
}

func handleConn(ctx context.Context, conn net.Conn, h Handler) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(30 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Warn("Bad control message", "err", err)
		return
	}
	log.Debug("Control", "cmd", msg.Cmd, "args", msg.Args)

	reply := h(ctx, msg)
	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		log.Warn("Failed to write control reply", "err", err)
	}
}

// Send delivers msg to the daemon listening at path and waits for its reply.
func Send(ctx context.Context, path string, msg ControlMessage) (Reply, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return Reply{}, fmt.Errorf("send: %w", err)
	}

	var r Reply
	if err := json.NewDecoder(conn).Decode(&r); err != nil {
		return Reply{}, fmt.Errorf("read reply: %w", err)
	}
	return r, nil
}
