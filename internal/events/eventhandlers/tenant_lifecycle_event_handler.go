package eventhandlers

import (
	"context"
	"fmt"

	"github.com/stellar/stellar-tenant-control-plane/internal/events"
	"github.com/stellar/stellar-tenant-control-plane/internal/events/schemas"
	"github.com/stellar/stellar-tenant-control-plane/internal/provisioning"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
)

type TenantLifecycleEventHandlerOptions struct {
	Codec   *events.Codec
	Service provisioning.ServiceInterface
}

// TenantLifecycleEventHandler provisions the database of new tenants and tears down the tenants being shut down.
type TenantLifecycleEventHandler struct {
	codec   *events.Codec
	service provisioning.ServiceInterface
}

var _ events.EventHandler = new(TenantLifecycleEventHandler)

func NewTenantLifecycleEventHandler(options TenantLifecycleEventHandlerOptions) *TenantLifecycleEventHandler {
	return &TenantLifecycleEventHandler{codec: options.Codec, service: options.Service}
}

func (h *TenantLifecycleEventHandler) Name() string {
	return utils.TypeName(h)
}

func (h *TenantLifecycleEventHandler) CanHandleMessage(ctx context.Context, message *events.Message) bool {
	return message.Topic == events.TenantLifecycleTopic
}

func (h *TenantLifecycleEventHandler) Handle(ctx context.Context, message *events.Message) error {
	switch message.Type() {
	case events.TenantCreateType:
		msgCtx, data, err := openMessage[schemas.EventTenantCreateData](ctx, h.codec, message)
		if err != nil {
			return err
		}
		if err = h.service.ProvisionDatabase(msgCtx, data.TenantRef); err != nil {
			return fmt.Errorf("provisioning tenant %s: %w", data.Realm, err)
		}
		return nil

	case events.TenantShutdownType:
		msgCtx, data, err := openMessage[schemas.EventTenantShutdownData](ctx, h.codec, message)
		if err != nil {
			return err
		}
		if err = h.service.ShutdownTenant(msgCtx, data.TenantRef); err != nil {
			return fmt.Errorf("shutting down tenant %s: %w", data.Realm, err)
		}
		return nil

	default:
		return unsupported(h.Name(), message)
	}
}
