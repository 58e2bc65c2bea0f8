package protocol

import (
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

// WebSocket is a reconnecting text-frame connection to the hub.
type WebSocket struct {
	url     string
	backoff time.Duration
	dialer  *ws.Dialer

	mu   sync.Mutex
	conn *ws.Conn
}

func DialWebSocket(ctx context.Context, url string, backoff time.Duration) (*WebSocket, error) {
	log.Debug("Dialing hub", "url", url)

	if backoff <= 0 {
		backoff = time.Second
	}

	web := &WebSocket{
		url:     url,
		backoff: backoff,
		dialer:  ws.DefaultDialer,
	}

	conn, _, err := web.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	web.conn = conn

	return web, nil
}

func (web *WebSocket) Write(payload []byte) error {
	web.mu.Lock()
	defer web.mu.Unlock()

	if web.conn == nil {
		return errors.New("not connected")
	}
	log.Debug("Write ws", "msg", string(payload))
	return web.conn.WriteMessage(ws.TextMessage, payload)
}

type incomeKind uint

const (
	connClosed incomeKind = iota
	readFailed
	readOK
)

type income struct {
	kind incomeKind
	msg  []byte
	err  error
}

func (web *WebSocket) read() income {
	web.mu.Lock()
	conn := web.conn
	web.mu.Unlock()

	if conn == nil {
		return income{kind: connClosed, err: errors.New("not connected")}
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		if isClosed(err) {
			return income{kind: connClosed, err: err}
		}
		return income{kind: readFailed, err: err}
	}

	log.Debug("Read ws", "msg", string(msg))
	return income{kind: readOK, msg: msg}
}

// reconnect dials until it succeeds or ctx ends.
func (web *WebSocket) reconnect(ctx context.Context) error {
	web.mu.Lock()
	if web.conn != nil {
		web.conn.Close()
		web.conn = nil
	}
	web.mu.Unlock()

	for {
		conn, _, err := web.dialer.DialContext(ctx, web.url, nil)
		if err == nil {
			web.mu.Lock()
			web.conn = conn
			web.mu.Unlock()
			return nil
		}
		log.Debug("Reconnect failed", "url", web.url, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(web.backoff):
		}
	}
}

func (web *WebSocket) Close() error {
	web.mu.Lock()
	defer web.mu.Unlock()

	if web.conn == nil {
		return nil
	}
	_ = web.conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := web.conn.Close()
	web.conn = nil
	return err
}

func isClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure) || errors.Is(err, ws.ErrCloseSent)
}
