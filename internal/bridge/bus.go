package bridge

import (
	"context"

	"lily/internal/intent"
	"lily/pkg/protocol"
)

// Requester is satisfied by *protocol.Protocol.
type Requester interface {
	Request(ctx context.Context, m protocol.Message) (*protocol.Message, error)
}

// BusApp drives the portal over the hub. Every command waits for the
// portal's OK/ERR reply.
type BusApp struct {
	ptcl   Requester
	portal string
}

func NewBusApp(ptcl Requester, portal string) *BusApp {
	if portal == "" {
		portal = "PORTAL"
	}
	return &BusApp{ptcl: ptcl, portal: portal}
}

func (b *BusApp) SetFilter(ctx context.Context, f intent.Filter) error {
	return b.send(ctx, "SET", "FILTER", string(f))
}

func (b *BusApp) OpenSettings(ctx context.Context) error {
	return b.send(ctx, "OPEN", "SETTINGS")
}

func (b *BusApp) Logout(ctx context.Context) error {
	return b.send(ctx, "LOGOUT", "SESSION")
}

func (b *BusApp) send(ctx context.Context, verb, noun string, args ...string) error {
	_, err := b.ptcl.Request(ctx, protocol.Message{
		To:   b.portal,
		Verb: verb,
		Noun: noun,
		Args: args,
	})
	return err
}
