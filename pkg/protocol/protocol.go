// Package protocol speaks the hub's line protocol:
//
//	TO:VERB:NOUN[:ARG...]:FROM
//
// Every frame is a single websocket text message without whitespace.
package protocol

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	ErrNoReply   = errors.New("no reply from hub")
	ErrRejected  = errors.New("hub rejected request")
	ErrMalformed = errors.New("malformed message")
)

type PtclConfig struct {
	Shard   string
	Url     string
	Backoff time.Duration
	Timeout time.Duration
	EmitOut func(*Message)
}

// Protocol sends requests to the hub and routes replies back to the waiting
// caller. Only one request is in flight at a time.
type Protocol struct {
	ws *WebSocket

	shard   string
	timeout time.Duration

	reqMu    sync.Mutex
	waiterMu sync.Mutex
	waiter   *waiter

	emitOut func(*Message)
}

func NewProtocol(ctx context.Context, cfg PtclConfig) (*Protocol, error) {
	if !isToken(cfg.Shard) {
		return nil, fmt.Errorf("invalid shard name %q", cfg.Shard)
	}

	ws, err := DialWebSocket(ctx, cfg.Url, cfg.Backoff)
	if err != nil {
		return nil, fmt.Errorf("dial hub: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Protocol{
		ws:      ws,
		shard:   strings.ToUpper(cfg.Shard),
		timeout: timeout,
		emitOut: cfg.EmitOut,
	}, nil
}

func (ptcl *Protocol) Shard() string { return ptcl.shard }

// Transmit sends m with FROM set to this shard.
func (ptcl *Protocol) Transmit(m Message) error {
	m.From = ptcl.shard
	if err := m.Validate(); err != nil {
		return err
	}

	line := m.String()
	if err := ptcl.ws.Write([]byte(line)); err != nil {
		log.Error("Failed to transmit", "msg", line, "err", err)
		return fmt.Errorf("transmit: %w", err)
	}
	return nil
}

// Request sends m and waits for the hub's reply: an OK or ERR frame with the
// same NOUN, sent by the addressee of m. An ERR reply is returned together
// with ErrRejected. Frames that do not answer m go to EmitOut.
func (ptcl *Protocol) Request(ctx context.Context, m Message) (*Message, error) {
	ptcl.reqMu.Lock()
	defer ptcl.reqMu.Unlock()

	w := ptcl.installWaiter(m)
	defer ptcl.clearWaiter()

	if err := ptcl.Transmit(m); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ptcl.timeout)
	defer cancel()

	select {
	case resp := <-w.reply:
		if resp.Verb == "ERR" {
			return resp, fmt.Errorf("%w: %s", ErrRejected, resp.Noun)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNoReply, ctx.Err())
	}
}

// Run reads frames until ctx ends, reconnecting when the hub goes away.
func (ptcl *Protocol) Run(ctx context.Context) {
	for ctx.Err() == nil {
		in := ptcl.ws.read()
		switch in.kind {
		case connClosed, readFailed:
			if ctx.Err() != nil {
				return
			}
			log.Warn("Hub connection lost, reconnecting", "url", ptcl.ws.url, "err", in.err)
			if err := ptcl.ws.reconnect(ctx); err != nil {
				return
			}
			log.Info("Reconnected to hub")

		case readOK:
			msg, err := Parse(string(in.msg))
			if err != nil {
				log.Warn("Failed to parse", "msg", string(in.msg), "err", err)
				continue
			}
			if msg.To != ptcl.shard && msg.To != "ALL" {
				continue
			}

			if w := ptcl.currentWaiter(); w != nil && w.answers(msg) {
				select {
				case w.reply <- msg:
					continue
				default:
				}
			}
			if ptcl.emitOut != nil {
				ptcl.emitOut(msg)
			}
		}
	}
}

func (ptcl *Protocol) Close() error {
	return ptcl.ws.Close()
}

// waiter is the pending request's slot for its reply.
type waiter struct {
	noun  string
	to    string
	reply chan *Message
}

func (w *waiter) answers(m *Message) bool {
	if m.Verb != "OK" && m.Verb != "ERR" {
		return false
	}
	if m.Noun != w.noun {
		return false
	}
	return w.to == "ALL" || m.From == w.to
}

func (ptcl *Protocol) installWaiter(req Message) *waiter {
	ptcl.waiterMu.Lock()
	defer ptcl.waiterMu.Unlock()
	ptcl.waiter = &waiter{
		noun:  strings.ToUpper(req.Noun),
		to:    strings.ToUpper(req.To),
		reply: make(chan *Message, 1),
	}
	return ptcl.waiter
}

func (ptcl *Protocol) clearWaiter() {
	ptcl.waiterMu.Lock()
	defer ptcl.waiterMu.Unlock()
	ptcl.waiter = nil
}

func (ptcl *Protocol) currentWaiter() *waiter {
	ptcl.waiterMu.Lock()
	defer ptcl.waiterMu.Unlock()
	return ptcl.waiter
}

// Parse decodes one frame.
func Parse(line string) (*Message, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return nil, fmt.Errorf("%w: whitespace present", ErrMalformed)
	}

	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return nil, fmt.Errorf("%w: got %d fields, want >= 4", ErrMalformed, len(parts))
	}

	msg := &Message{
		To:   strings.ToUpper(parts[0]),
		Verb: strings.ToUpper(parts[1]),
		Noun: strings.ToUpper(parts[2]),
		Args: append([]string(nil), parts[3:len(parts)-1]...),
		From: strings.ToUpper(parts[len(parts)-1]),
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

var tokenRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func isToken(s string) bool {
	return tokenRe.MatchString(s)
}

type Message struct {
	To   string
	Verb string
	Noun string
	Args []string
	From string
}

func (m *Message) Validate() error {
	if !isToken(m.To) || !isToken(m.From) {
		return fmt.Errorf("%w: invalid TO/FROM %q %q", ErrMalformed, m.To, m.From)
	}
	if !isToken(m.Verb) || !isToken(m.Noun) {
		return fmt.Errorf("%w: invalid VERB/NOUN %q %q", ErrMalformed, m.Verb, m.Noun)
	}
	for i, a := range m.Args {
		if !isToken(a) {
			return fmt.Errorf("%w: invalid ARG[%d] %q", ErrMalformed, i, a)
		}
	}
	return nil
}

func (m *Message) String() string {
	parts := make([]string, 0, 4+len(m.Args))
	parts = append(parts, m.To, m.Verb, m.Noun)
	parts = append(parts, m.Args...)
	parts = append(parts, m.From)
	return strings.Join(parts, ":")
}
