package dependencyinjection

import (
	"context"
	"fmt"

	"github.com/stellar/stellar-tenant-control-plane/internal/notification"
)

const NotifierInstanceName = "notifier_instance"

func NewNotifier(ctx context.Context, opts notification.NotifierOptions) (notification.Notifier, error) {
	return getOrCreate(fmt.Sprintf("%s-%s", NotifierInstanceName, opts.NotifierType), func() (notification.Notifier, error) {
		notifier, err := notification.GetNotifier(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("creating notifier: %w", err)
		}
		return notifier, nil
	})
}
