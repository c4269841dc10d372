package crashtracker

import (
	"context"
	"fmt"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"
)

const dryRunPrefix = "[crash tracker dry run]"

// dryRunClient logs what the Sentry client would report. The context logger already carries the tenant fields.
type dryRunClient struct{}

var _ CrashTrackerClient = (*dryRunClient)(nil)

func NewDryRunClient() *dryRunClient {
	return &dryRunClient{}
}

func (*dryRunClient) LogAndReportErrors(ctx context.Context, err error, msg string) {
	if msg != "" {
		err = fmt.Errorf("%s: %w", msg, err)
	}
	log.Ctx(ctx).Errorf("%s %+v", dryRunPrefix, err)
}

func (*dryRunClient) LogAndReportMessages(ctx context.Context, msg string) {
	log.Ctx(ctx).Infof("%s %s", dryRunPrefix, msg)
}

// FlushEvents reports false, nothing is ever buffered.
func (*dryRunClient) FlushEvents(time.Duration) bool {
	return false
}

func (*dryRunClient) Recover(ctx context.Context) {
	if r := recover(); r != nil {
		log.Ctx(ctx).Errorf("%s recovered from panic: %v", dryRunPrefix, r)
	}
}
