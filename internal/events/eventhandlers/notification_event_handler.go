package eventhandlers

import (
	"context"
	"fmt"

	"github.com/stellar/stellar-tenant-control-plane/internal/events"
	"github.com/stellar/stellar-tenant-control-plane/internal/events/schemas"
	"github.com/stellar/stellar-tenant-control-plane/internal/notification"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
)

type NotificationEventHandlerOptions struct {
	Codec    *events.Codec
	Notifier notification.Notifier
}

// NotificationEventHandler delivers tenant notifications through the configured notifier.
type NotificationEventHandler struct {
	codec    *events.Codec
	notifier notification.Notifier
}

var _ events.EventHandler = new(NotificationEventHandler)

func NewNotificationEventHandler(options NotificationEventHandlerOptions) *NotificationEventHandler {
	return &NotificationEventHandler{codec: options.Codec, notifier: options.Notifier}
}

func (h *NotificationEventHandler) Name() string {
	return utils.TypeName(h)
}

func (h *NotificationEventHandler) CanHandleMessage(ctx context.Context, message *events.Message) bool {
	return message.Topic == events.TenantNotificationTopic
}

func (h *NotificationEventHandler) Handle(ctx context.Context, message *events.Message) error {
	if message.Type() != events.TenantNotificationType {
		return unsupported(h.Name(), message)
	}

	msgCtx, data, err := openMessage[schemas.EventTenantNotificationData](ctx, h.codec, message)
	if err != nil {
		return err
	}

	err = h.notifier.Notify(msgCtx, notification.Notification{
		TenantID:   data.TenantID,
		Realm:      data.Realm,
		Subject:    data.Subject,
		Message:    data.Message,
		Attributes: data.Attributes,
	})
	if err != nil {
		return fmt.Errorf("notifying tenant %s with %s notifier: %w", data.Realm, h.notifier.NotifierType(), err)
	}
	return nil
}
