package eventhandlers

import (
	"context"
	"fmt"

	"github.com/stellar/stellar-tenant-control-plane/internal/events"
	"github.com/stellar/stellar-tenant-control-plane/internal/events/schemas"
	"github.com/stellar/stellar-tenant-control-plane/internal/provisioning"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
)

type DatabaseProvisionedEventHandlerOptions struct {
	Codec   *events.Codec
	Service provisioning.ServiceInterface
}

// DatabaseProvisionedEventHandler makes a freshly provisioned tenant routable and runs its post provisioning
// actions.
type DatabaseProvisionedEventHandler struct {
	codec   *events.Codec
	service provisioning.ServiceInterface
}

var _ events.EventHandler = new(DatabaseProvisionedEventHandler)

func NewDatabaseProvisionedEventHandler(options DatabaseProvisionedEventHandlerOptions) *DatabaseProvisionedEventHandler {
	return &DatabaseProvisionedEventHandler{codec: options.Codec, service: options.Service}
}

func (h *DatabaseProvisionedEventHandler) Name() string {
	return utils.TypeName(h)
}

func (h *DatabaseProvisionedEventHandler) CanHandleMessage(ctx context.Context, message *events.Message) bool {
	return message.Topic == events.TenantDatabaseProvisionedTopic
}

func (h *DatabaseProvisionedEventHandler) Handle(ctx context.Context, message *events.Message) error {
	if message.Type() != events.TenantDatabaseProvisionedType {
		return unsupported(h.Name(), message)
	}

	msgCtx, data, err := openMessage[schemas.EventTenantDatabaseProvisionedData](ctx, h.codec, message)
	if err != nil {
		return err
	}

	if err = h.service.CompletePostProvisioning(msgCtx, data.TenantRef); err != nil {
		return fmt.Errorf("completing post provisioning of tenant %s: %w", data.Realm, err)
	}
	return nil
}
