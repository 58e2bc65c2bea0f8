package ipc

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lily.sock")
	srv, err := Listen(path)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, func(_ context.Context, msg ControlMessage) Reply {
		switch msg.Cmd {
		case "say":
			return Ok(strings.Join(msg.Args, " "))
		default:
			return Fail(errors.New("unknown command " + msg.Cmd))
		}
	})

	tests := []struct {
		msg  ControlMessage
		want Reply
	}{
		{ControlMessage{Cmd: "say", Args: []string{"hello", "there"}}, Reply{OK: true, Text: "hello there"}},
		{ControlMessage{Cmd: "dance"}, Reply{Error: "unknown command dance"}},
	}

	for _, tt := range tests {
		rctx, rcancel := context.WithTimeout(ctx, 2*time.Second)
		got, err := Send(rctx, path, tt.msg)
		rcancel()
		if err != nil {
			t.Fatalf("Send(%s): %v", tt.msg.Cmd, err)
		}
		if got != tt.want {
			t.Errorf("Send(%s) = %+v, want %+v", tt.msg.Cmd, got, tt.want)
		}
	}
}

func TestSendWithoutDaemon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sock")
	if _, err := Send(context.Background(), path, ControlMessage{Cmd: "state"}); err == nil {
		t.Fatal("expected dial error")
	}
}
