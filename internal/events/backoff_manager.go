package events

import (
	"time"

	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
)

const (
	DefaultMaxBackoffExponent = 8
	DefaultBackoffUnit        = time.Second
)

// ConsumerBackoffManager keeps the exponential backoff of a consumer and the message being retried, if any.
type ConsumerBackoffManager struct {
	backoffCounter int
	maxBackoff     int
	backoffUnit    time.Duration
	backoff        time.Duration
	backoffChan    chan<- struct{}
	message        *Message
}

func NewBackoffManager(backoffChan chan<- struct{}, maxBackoff int, backoffUnit time.Duration) *ConsumerBackoffManager {
	return &ConsumerBackoffManager{
		backoffChan: backoffChan,
		maxBackoff:  maxBackoff,
		backoffUnit: backoffUnit,
	}
}

func (bm *ConsumerBackoffManager) TriggerBackoff() {
	bm.backoffCounter++
	if bm.backoffCounter > bm.maxBackoff {
		bm.backoffCounter = bm.maxBackoff
	}
	backoff, err := utils.ExponentialBackoff(bm.backoffCounter, bm.backoffUnit)
	if err != nil {
		// the exponent is capped by maxBackoff, so this only happens with a misconfigured consumer
		backoff = bm.backoffUnit
	}
	bm.backoff = backoff
	bm.backoffChan <- struct{}{}
}

// TriggerBackoffWithMessage triggers a backoff and keeps msg to be retried after it.
func (bm *ConsumerBackoffManager) TriggerBackoffWithMessage(msg *Message) {
	bm.message = msg
	bm.TriggerBackoff()
}

func (bm *ConsumerBackoffManager) GetBackoffDuration() time.Duration {
	return bm.backoff
}

func (bm *ConsumerBackoffManager) GetMessage() *Message {
	return bm.message
}

func (bm *ConsumerBackoffManager) IsMaxBackoffReached() bool {
	return bm.backoffCounter >= bm.maxBackoff
}

func (bm *ConsumerBackoffManager) ResetBackoff() {
	bm.backoffCounter = 0
	bm.backoff = 0
	bm.message = nil
}
