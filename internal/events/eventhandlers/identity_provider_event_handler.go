package eventhandlers

import (
	"context"
	"fmt"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/internal/events"
	"github.com/stellar/stellar-tenant-control-plane/internal/events/schemas"
	"github.com/stellar/stellar-tenant-control-plane/internal/provisioning"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
)

type IdentityProviderEventHandlerOptions struct {
	Codec   *events.Codec
	Service provisioning.ServiceInterface
}

// IdentityProviderEventHandler forwards identity provider changes to the tenant's realm.
type IdentityProviderEventHandler struct {
	codec   *events.Codec
	service provisioning.ServiceInterface
}

var _ events.EventHandler = new(IdentityProviderEventHandler)

func NewIdentityProviderEventHandler(options IdentityProviderEventHandlerOptions) *IdentityProviderEventHandler {
	return &IdentityProviderEventHandler{codec: options.Codec, service: options.Service}
}

func (h *IdentityProviderEventHandler) Name() string {
	return utils.TypeName(h)
}

func (h *IdentityProviderEventHandler) CanHandleMessage(ctx context.Context, message *events.Message) bool {
	return message.Topic == events.TenantIdentityProviderTopic
}

func (h *IdentityProviderEventHandler) Handle(ctx context.Context, message *events.Message) error {
	var remove bool
	switch message.Type() {
	case events.IdentityProviderUpsertType:
	case events.IdentityProviderDeleteType:
		remove = true
	default:
		return unsupported(h.Name(), message)
	}

	msgCtx, data, err := openMessage[schemas.EventIdentityProviderData](ctx, h.codec, message)
	if err != nil {
		return err
	}

	log.Ctx(msgCtx).Infof("applying %s of identity provider %s", message.Type(), data.Alias)
	idp := provisioning.IdentityProvider{
		Alias:        data.Alias,
		ProviderType: data.ProviderType,
		Enabled:      data.Enabled,
		Config:       data.Config,
	}
	if err = h.service.ApplyIdentityProvider(msgCtx, data.TenantRef, idp, remove); err != nil {
		return fmt.Errorf("applying identity provider %s of tenant %s: %w", data.Alias, data.Realm, err)
	}
	return nil
}
