package events

import (
	"context"

	"github.com/stellar/go-stellar-sdk/support/log"
)

// EventHandler handles the messages of the topics it's registered on. Name must be stable across releases, it's
// recorded in the message when the handler succeeds so redeliveries skip it.
type EventHandler interface {
	Name() string
	CanHandleMessage(ctx context.Context, message *Message) bool
	Handle(ctx context.Context, message *Message) error
}

// ShouldHandleMessage reports whether handler accepts msg and hasn't already succeeded on a previous delivery.
func ShouldHandleMessage(ctx context.Context, handler EventHandler, msg *Message) bool {
	switch {
	case !handler.CanHandleMessage(ctx, msg):
		return false
	case msg.HasSucceeded(handler.Name()):
		log.Ctx(ctx).Debugf("skipping %s for message %s, it already succeeded", handler.Name(), msg.Key)
		return false
	default:
		return true
	}
}
