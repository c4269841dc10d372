package events

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/internal/crashtracker"
	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
)

const replayTimeout = 10 * time.Second

type EventConsumer struct {
	consumer       Consumer
	producer       Producer
	crashTracker   crashtracker.CrashTrackerClient
	monitorService monitor.MonitorServiceInterface
	maxBackoff     int
	backoffUnit    time.Duration
}

type EventConsumerOption func(*EventConsumer)

// WithMaxBackoff sets how many times a message is retried before it's sent to the dead letter topic.
func WithMaxBackoff(maxBackoff int) EventConsumerOption {
	return func(ec *EventConsumer) {
		ec.maxBackoff = maxBackoff
	}
}

// WithBackoffUnit sets the unit of the exponential backoff.
func WithBackoffUnit(unit time.Duration) EventConsumerOption {
	return func(ec *EventConsumer) {
		ec.backoffUnit = unit
	}
}

func WithConsumerMonitor(monitorService monitor.MonitorServiceInterface) EventConsumerOption {
	return func(ec *EventConsumer) {
		ec.monitorService = monitorService
	}
}

func NewEventConsumer(consumer Consumer, producer Producer, crashTracker crashtracker.CrashTrackerClient, opts ...EventConsumerOption) *EventConsumer {
	ec := &EventConsumer{
		consumer:       consumer,
		producer:       producer,
		crashTracker:   crashTracker,
		monitorService: monitor.NoopMonitorService{},
		maxBackoff:     DefaultMaxBackoffExponent,
		backoffUnit:    DefaultBackoffUnit,
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// Consume reads and handles messages until ctx is cancelled or the process receives a termination signal. A message
// whose handlers fail is retried with exponential backoff, and sent to the dead letter topic once the maximum
// backoff is reached.
func (ec *EventConsumer) Consume(ctx context.Context) {
	topic := ec.consumer.Topic()
	log.Ctx(ctx).Infof("Starting consuming messages for topic %s...", topic)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(signalChan)

	backoffChan := make(chan struct{}, 1)
	defer close(backoffChan)
	backoffManager := NewBackoffManager(backoffChan, ec.maxBackoff, ec.backoffUnit)

	for {
		select {
		case <-ctx.Done():
			log.Ctx(ctx).Infof("Stopping consuming messages for topic %s due to context cancellation...", topic)
			ec.finalizeConsumer(ctx, backoffManager.GetMessage())
			return

		case sig := <-signalChan:
			log.Ctx(ctx).Infof("Stopping consuming messages for topic %s due to OS signal '%+v'", topic, sig)
			ec.finalizeConsumer(ctx, backoffManager.GetMessage())
			return

		case <-backoffChan:
			backoff := backoffManager.GetBackoffDuration()
			if msg := backoffManager.GetMessage(); msg != nil {
				log.Ctx(ctx).Warnf("Waiting %s before retrying handling message with key %s", backoff, msg.Key)
			} else {
				log.Ctx(ctx).Warnf("Waiting %s before retrying reading new messages", backoff)
			}
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}

		default:
			// 1. A message kept by the backoff manager is retried before reading new ones.
			msg := backoffManager.GetMessage()

			// 2. Once the max backoff is reached the message goes to the DLQ.
			if backoffManager.IsMaxBackoffReached() {
				log.Ctx(ctx).Warnf("Max backoff reached for topic %s.", topic)
				if msg != nil {
					ec.deadLetter(ctx, *msg)
				}
				backoffManager.ResetBackoff()
				continue
			}

			// 3. Read a new message.
			if msg == nil {
				var readErr error
				log.Ctx(ctx).Debugf("Reading message from topic %s...", topic)
				msg, readErr = ec.consumer.ReadMessage(ctx)
				if readErr != nil {
					if ctx.Err() != nil {
						continue
					}
					var malformed *MalformedMessageError
					if errors.As(readErr, &malformed) && malformed.Message != nil {
						malformed.Message.RecordError("decode", malformed.Err)
						ec.crashTracker.LogAndReportErrors(ctx, readErr, fmt.Sprintf("malformed message on topic %s", topic))
						ec.deadLetter(ctx, *malformed.Message)
						backoffManager.ResetBackoff()
						continue
					}
					ec.crashTracker.LogAndReportErrors(ctx, readErr, fmt.Sprintf("consuming messages for topic %s", topic))
					backoffManager.TriggerBackoff()
					continue
				}
			} else {
				log.Ctx(ctx).Warnf("Retrying handling message with key %s", msg.Key)
			}

			// 4. Messages without a valid envelope will never succeed, they go straight to the DLQ.
			msgCtx, envelopeErr := TenantContext(tenantcontext.Clear(ctx), msg)
			if envelopeErr != nil {
				msg.RecordError("envelope", envelopeErr)
				ec.crashTracker.LogAndReportErrors(ctx, envelopeErr, fmt.Sprintf("invalid envelope for message with key %s on topic %s", msg.Key, topic))
				ec.deadLetter(ctx, *msg)
				backoffManager.ResetBackoff()
				continue
			}

			// 5. Run the message through the handler chain.
			if handledOk := ec.handleMessage(msgCtx, msg); !handledOk {
				backoffManager.TriggerBackoffWithMessage(msg)
				continue
			}

			backoffManager.ResetBackoff()
		}
	}
}

// finalizeConsumer writes the message being retried back to its topic so it isn't lost on shutdown.
func (ec *EventConsumer) finalizeConsumer(ctx context.Context, msg *Message) {
	if msg == nil {
		log.Ctx(ctx).Infof("No message to finalize for topic %s", ec.consumer.Topic())
		return
	}
	log.Ctx(ctx).Warnf("Replaying message with key %s to topic %s", msg.Key, msg.Topic)

	replayCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replayTimeout)
	defer cancel()
	if err := ec.producer.WriteMessages(replayCtx, *msg); err != nil {
		ec.crashTracker.LogAndReportErrors(ctx, err, fmt.Sprintf("replaying message to topic %s", msg.Topic))
	}
}

func (ec *EventConsumer) deadLetter(ctx context.Context, msg Message) {
	if err := ec.sendMessageToDLQ(ctx, msg); err != nil {
		ec.crashTracker.LogAndReportErrors(ctx, err, fmt.Sprintf("sending message to DLQ for topic %s", ec.consumer.Topic()))
		return
	}

	labels := monitor.EventLabels{Topic: msg.Topic, Status: monitor.EventStatusError}
	if lastErr := msg.LastError(); lastErr != nil {
		labels.Handler = lastErr.HandlerName
	}
	if err := ec.monitorService.MonitorCounters(monitor.EventsDeadLetteredCounterTag, labels.ToMap()); err != nil {
		log.Ctx(ctx).Debugf("recording dead letter metric: %v", err)
	}
}

func (ec *EventConsumer) sendMessageToDLQ(ctx context.Context, msg Message) error {
	log.Ctx(ctx).Errorf("Sending message with key %s to DLQ for topic %s", msg.Key, msg.Topic)

	dlqMsg := msg.Clone()
	dlqMsg.Topic = DeadLetterTopic(msg.Topic)
	if dlqMsg.Headers == nil {
		dlqMsg.Headers = map[string]string{}
	}
	if lastErr := msg.LastError(); lastErr != nil {
		dlqMsg.Headers[HeaderDeadLetterReason] = fmt.Sprintf("%s: %s", lastErr.HandlerName, lastErr.ErrorMessage)
	}

	if err := ec.producer.WriteMessages(ctx, dlqMsg); err != nil {
		return fmt.Errorf("sending message %s to DLQ for topic %s: %w", msg, msg.Topic, err)
	}
	return nil
}

// handleMessage runs msg through the handler chain of the consumer. Handlers that already succeeded for msg are
// skipped on retries.
func (ec *EventConsumer) handleMessage(ctx context.Context, msg *Message) bool {
	allHandlersSuccessful := true
	for _, handler := range ec.consumer.Handlers() {
		if !ShouldHandleMessage(ctx, handler, msg) {
			continue
		}

		startedAt := time.Now()
		handleErr := handler.Handle(ctx, msg)
		status := monitor.EventStatusSuccess
		if handleErr != nil {
			status = monitor.EventStatusError
			ec.crashTracker.LogAndReportErrors(ctx, handleErr, fmt.Sprintf("handling message for topic %s", ec.consumer.Topic()))
			msg.RecordError(handler.Name(), handleErr)
			allHandlersSuccessful = false
		} else {
			msg.RecordSuccess(handler.Name())
		}
		ec.recordHandling(ctx, msg.Topic, handler.Name(), status, time.Since(startedAt))
	}
	return allHandlersSuccessful
}

func (ec *EventConsumer) recordHandling(ctx context.Context, topic, handlerName, status string, duration time.Duration) {
	labels := monitor.EventLabels{Topic: topic, Handler: handlerName, Status: status}.ToMap()
	if err := ec.monitorService.MonitorCounters(monitor.EventsConsumedCounterTag, labels); err != nil {
		log.Ctx(ctx).Debugf("recording consumed metric: %v", err)
	}
	if err := ec.monitorService.MonitorDuration(duration, monitor.EventHandlingDurationTag, labels); err != nil {
		log.Ctx(ctx).Debugf("recording handling duration metric: %v", err)
	}
}
