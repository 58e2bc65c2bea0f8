package protocol

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line    string
		want    string
		wantErr bool
	}{
		{line: "PORTAL:SET:FILTER:scholarship:LILY", want: "PORTAL:SET:FILTER:scholarship:LILY"},
		{line: "lily:ok:filter:portal", want: "LILY:OK:FILTER:PORTAL"},
		{line: "  ALL:OPEN:SETTINGS:LILY\n", want: "ALL:OPEN:SETTINGS:LILY"},
		{line: "", wantErr: true},
		{line: "A:B:C", wantErr: true},
		{line: "A:B C:D:E", wantErr: true},
		{line: "A:B:C:bad/arg:E", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			msg, err := Parse(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("Parse(%q) error = %v, want ErrMalformed", tt.line, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.line, err)
			}
			if got := msg.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// hub answers every request addressed to PORTAL with OK, or ERR when the
// first argument is "fail".
func hub(t *testing.T, seen chan<- string) *httptest.Server {
	t.Helper()

	up := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			seen <- string(data)

			req, err := Parse(string(data))
			if err != nil {
				continue
			}
			verb := "OK"
			if len(req.Args) > 0 && req.Args[0] == "fail" {
				verb = "ERR"
			}
			reply := Message{To: req.From, Verb: verb, Noun: req.Noun, From: "PORTAL"}
			if err := conn.WriteMessage(ws.TextMessage, []byte(reply.String())); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRequestRoundTrip(t *testing.T) {
	seen := make(chan string, 4)
	srv := hub(t, seen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ptcl, err := NewProtocol(ctx, PtclConfig{
		Shard:   "lily",
		Url:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		cancel()
		ptcl.Close()
	}()
	go ptcl.Run(ctx)

	resp, err := ptcl.Request(ctx, Message{To: "PORTAL", Verb: "SET", Noun: "FILTER", Args: []string{"scheme"}})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp.Verb != "OK" || resp.Noun != "FILTER" {
		t.Errorf("reply = %s", resp.String())
	}
	if got := <-seen; got != "PORTAL:SET:FILTER:scheme:LILY" {
		t.Errorf("hub saw %q", got)
	}

	_, err = ptcl.Request(ctx, Message{To: "PORTAL", Verb: "SET", Noun: "FILTER", Args: []string{"fail"}})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Request error = %v, want ErrRejected", err)
	}
}

func TestRequestTimesOut(t *testing.T) {
	up := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ptcl, err := NewProtocol(ctx, PtclConfig{
		Shard:   "LILY",
		Url:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		cancel()
		ptcl.Close()
	}()
	go ptcl.Run(ctx)

	_, err = ptcl.Request(ctx, Message{To: "PORTAL", Verb: "OPEN", Noun: "SETTINGS"})
	if !errors.Is(err, ErrNoReply) {
		t.Fatalf("error = %v, want ErrNoReply", err)
	}
}

// TestRequestIgnoresUnrelatedFrames has the portal push its own frames to the
// shard between a request and its reply. They must reach EmitOut and leave
// the request waiting for the matching OK.
func TestRequestIgnoresUnrelatedFrames(t *testing.T) {
	up := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			req, err := Parse(string(data))
			if err != nil {
				continue
			}
			frames := []string{
				"LILY:SET:FILTER:all:PORTAL",
				"LILY:OK:LOGOUT:PORTAL",
				"LILY:ERR:FILTER:DASHBOARD",
				(&Message{To: req.From, Verb: "OK", Noun: req.Noun, From: req.To}).String(),
			}
			for _, f := range frames {
				if err := conn.WriteMessage(ws.TextMessage, []byte(f)); err != nil {
					return
				}
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan string, 8)
	ptcl, err := NewProtocol(ctx, PtclConfig{
		Shard:   "LILY",
		Url:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		Timeout: 2 * time.Second,
		EmitOut: func(m *Message) { out <- m.String() },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		cancel()
		ptcl.Close()
	}()
	go ptcl.Run(ctx)

	resp, err := ptcl.Request(ctx, Message{To: "PORTAL", Verb: "SET", Noun: "FILTER", Args: []string{"scheme"}})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got := resp.String(); got != "LILY:OK:FILTER:PORTAL" {
		t.Errorf("reply = %q", got)
	}

	want := []string{
		"LILY:SET:FILTER:all:PORTAL",
		"LILY:OK:LOGOUT:PORTAL",
		"LILY:ERR:FILTER:DASHBOARD",
	}
	for _, w := range want {
		select {
		case got := <-out:
			if got != w {
				t.Errorf("EmitOut got %q, want %q", got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("EmitOut never got %q", w)
		}
	}
	select {
	case got := <-out:
		t.Errorf("reply leaked to EmitOut: %q", got)
	default:
	}
}
