package crashtracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stellar/go-stellar-sdk/support/log"
)

type hubSentryInterface interface {
	CaptureException(exception error) *sentry.EventID
	CaptureMessage(message string) *sentry.EventID
	Flush(timeout time.Duration) bool
	Recover(err interface{}) *sentry.EventID
	WithScope(f func(scope *sentry.Scope))
}

var _ hubSentryInterface = (*sentry.Hub)(nil)

type sentryClient struct {
	hub hubSentryInterface
}

// LogAndReportErrors logs err and captures it in Sentry, tagged with the tenant of ctx. Cancellations are only
// logged.
func (s *sentryClient) LogAndReportErrors(ctx context.Context, err error, msg string) {
	if errors.Is(err, context.Canceled) {
		log.Ctx(ctx).Warn("context canceled, not reporting error to sentry")
		return
	}

	if msg != "" {
		err = fmt.Errorf("%s: %w", msg, err)
	}
	log.Ctx(ctx).WithStack(err).Errorf("%+v", err)
	s.withTenantScope(ctx, func() { s.hub.CaptureException(err) })
}

func (s *sentryClient) LogAndReportMessages(ctx context.Context, msg string) {
	log.Ctx(ctx).Info(msg)
	s.withTenantScope(ctx, func() { s.hub.CaptureMessage(msg) })
}

// FlushEvents waits up to waitTime for buffered events to be sent.
func (s *sentryClient) FlushEvents(waitTime time.Duration) bool {
	return s.hub.Flush(waitTime)
}

func (s *sentryClient) Recover(ctx context.Context) {
	if r := recover(); r != nil {
		log.Ctx(ctx).Errorf("recovered from panic: %v", r)
		s.withTenantScope(ctx, func() { s.hub.Recover(r) })
	}
}

func (s *sentryClient) withTenantScope(ctx context.Context, capture func()) {
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tenantTags(ctx))
		capture()
	})
}

func NewSentryClient(opts CrashTrackerOptions) (*sentryClient, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.SentryDSN,
		Release:     opts.Release,
		Environment: opts.Environment,
		ServerName:  opts.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up Sentry: %w", err)
	}

	return &sentryClient{hub: sentry.CurrentHub()}, nil
}

var _ CrashTrackerClient = (*sentryClient)(nil)
