package eventhandlers

import (
	"context"
	"fmt"

	"github.com/stellar/stellar-tenant-control-plane/internal/events"
	"github.com/stellar/stellar-tenant-control-plane/internal/events/schemas"
	"github.com/stellar/stellar-tenant-control-plane/internal/provisioning"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
)

type RealmProvisionedEventHandlerOptions struct {
	Codec   *events.Codec
	Service provisioning.ServiceInterface
}

// RealmProvisionedEventHandler activates a tenant once its identity realm exists.
type RealmProvisionedEventHandler struct {
	codec   *events.Codec
	service provisioning.ServiceInterface
}

var _ events.EventHandler = new(RealmProvisionedEventHandler)

func NewRealmProvisionedEventHandler(options RealmProvisionedEventHandlerOptions) *RealmProvisionedEventHandler {
	return &RealmProvisionedEventHandler{codec: options.Codec, service: options.Service}
}

func (h *RealmProvisionedEventHandler) Name() string {
	return utils.TypeName(h)
}

func (h *RealmProvisionedEventHandler) CanHandleMessage(ctx context.Context, message *events.Message) bool {
	return message.Topic == events.TenantRealmProvisionedTopic
}

func (h *RealmProvisionedEventHandler) Handle(ctx context.Context, message *events.Message) error {
	if message.Type() != events.TenantRealmProvisionedType {
		return unsupported(h.Name(), message)
	}

	msgCtx, data, err := openMessage[schemas.EventTenantRealmProvisionedData](ctx, h.codec, message)
	if err != nil {
		return err
	}

	if err = h.service.ActivateTenant(msgCtx, data.TenantRef); err != nil {
		return fmt.Errorf("activating tenant %s: %w", data.Realm, err)
	}
	return nil
}
