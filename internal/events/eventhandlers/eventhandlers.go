// Package eventhandlers consumes the tenant provisioning topics and drives the workflow one step per event.
package eventhandlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellar/stellar-tenant-control-plane/internal/events"
	"github.com/stellar/stellar-tenant-control-plane/internal/events/schemas"
)

var (
	ErrUnsupportedMessageType = errors.New("unsupported message type")
	ErrTenantMismatch         = errors.New("payload tenant does not match the envelope")
)

type tenantPayload interface {
	Ref() schemas.TenantRef
}

// openMessage decrypts the payload of msg into a T. The tenant named in the payload must be the one in the envelope
// headers, the payload is never trusted to pick the tenant on its own.
func openMessage[T tenantPayload](ctx context.Context, codec *events.Codec, msg *events.Message) (context.Context, T, error) {
	var data T
	msgCtx, err := codec.Open(ctx, msg, &data)
	if err != nil {
		return ctx, data, fmt.Errorf("opening %s message: %w", msg.Type(), err)
	}

	ref := data.Ref()
	if ref.TenantID != msg.TenantID() || ref.Realm != msg.Realm() {
		return ctx, data, fmt.Errorf("message %s refers to tenant %s/%s: %w", msg, ref.Realm, ref.TenantID, ErrTenantMismatch)
	}
	return msgCtx, data, nil
}

func unsupported(handlerName string, msg *events.Message) error {
	return fmt.Errorf("%s can't handle %q messages: %w", handlerName, msg.Type(), ErrUnsupportedMessageType)
}
