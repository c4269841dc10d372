package notification

import (
	"context"
	"fmt"

	"github.com/stellar/go-stellar-sdk/support/log"
)

type dryRunNotifier struct{}

var _ Notifier = (*dryRunNotifier)(nil)

func NewDryRunNotifier() Notifier {
	return &dryRunNotifier{}
}

func (d *dryRunNotifier) Notify(ctx context.Context, n Notification) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("validating notification: %w", err)
	}

	log.Ctx(ctx).
		WithFields(log.F{"subject": n.Subject, "attributes": n.Attributes}).
		Infof("[DRY_RUN Notifier] notification for tenant %s: %s", n.Realm, n.Message)
	return nil
}

func (d *dryRunNotifier) NotifierType() NotifierType {
	return NotifierTypeDryRun
}
