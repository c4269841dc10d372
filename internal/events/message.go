package events

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

// Envelope headers carried by every message.
const (
	HeaderTenantID      = "tenantId"
	HeaderRealm         = "realm"
	HeaderServiceName   = "serviceName"
	HeaderCorrelationID = "correlationId"
	HeaderMessageType   = "messageType"

	// HeaderDeadLetterReason is added to messages sent to a dead letter topic.
	HeaderDeadLetterReason = "deadLetterReason"
	// HeaderHandlerHistory carries the handler executions of a message that is written back to a broker.
	HeaderHandlerHistory = "handlerHistory"
)

var (
	ErrTopicRequired   = errors.New("message topic is required")
	ErrKeyRequired     = errors.New("message key is required")
	ErrTypeRequired    = errors.New("message type is required")
	ErrPayloadRequired = errors.New("message payload is required")
)

// Message is the unit exchanged through a broker. Payload is sealed with the key of the tenant named in the
// headers, see Codec.
type Message struct {
	Topic   string            `json:"topic"`
	Key     string            `json:"key"`
	Headers map[string]string `json:"headers"`
	Payload []byte            `json:"payload"`

	Errors               []*HandlerError   `json:"errors,omitempty"`
	SuccessfulExecutions []*HandlerSuccess `json:"successful_executions,omitempty"`
}

type HandlerError struct {
	FailedAt     time.Time `json:"failed_at"`
	ErrorMessage string    `json:"error_message"`
	HandlerName  string    `json:"handler_name"`
	// Err is only available in the process where the handler failed.
	Err error `json:"-"`
}

type HandlerSuccess struct {
	ExecutedAt  time.Time `json:"executed_at"`
	HandlerName string    `json:"handler_name"`
}

func (m Message) Header(name string) string {
	return m.Headers[name]
}

func (m Message) Type() string {
	return m.Header(HeaderMessageType)
}

func (m Message) TenantID() string {
	return m.Header(HeaderTenantID)
}

func (m Message) Realm() string {
	return m.Header(HeaderRealm)
}

func (m Message) CorrelationID() string {
	return m.Header(HeaderCorrelationID)
}

// String never prints the payload.
func (m Message) String() string {
	return fmt.Sprintf("Message{Topic: %s, Key: %s, Type: %s, Realm: %s, TenantID: %s, CorrelationID: %s}",
		m.Topic, m.Key, m.Type(), m.Realm(), m.TenantID(), m.CorrelationID())
}

// Validate checks the transport fields. The envelope headers are checked when the message is opened.
func (m Message) Validate() error {
	if m.Topic == "" {
		return ErrTopicRequired
	}
	if m.Key == "" {
		return ErrKeyRequired
	}
	if m.Type() == "" {
		return ErrTypeRequired
	}
	if len(m.Payload) == 0 {
		return ErrPayloadRequired
	}
	return nil
}

// Clone returns a copy that doesn't share headers, payload or handler history with m.
func (m Message) Clone() Message {
	clone := m
	clone.Headers = maps.Clone(m.Headers)
	clone.Payload = append([]byte(nil), m.Payload...)
	clone.Errors = append([]*HandlerError(nil), m.Errors...)
	clone.SuccessfulExecutions = append([]*HandlerSuccess(nil), m.SuccessfulExecutions...)
	return clone
}

func (m *Message) RecordError(handlerName string, err error) {
	m.Errors = append(m.Errors, &HandlerError{
		FailedAt:     time.Now(),
		ErrorMessage: err.Error(),
		HandlerName:  handlerName,
		Err:          err,
	})
}

func (m *Message) RecordSuccess(handlerName string) {
	m.SuccessfulExecutions = append(m.SuccessfulExecutions, &HandlerSuccess{
		ExecutedAt:  time.Now(),
		HandlerName: handlerName,
	})
}

// HasSucceeded reports whether handlerName already handled m.
func (m Message) HasSucceeded(handlerName string) bool {
	for _, execution := range m.SuccessfulExecutions {
		if execution.HandlerName == handlerName {
			return true
		}
	}
	return false
}

// LastError returns the most recent handler error, or nil.
func (m Message) LastError() *HandlerError {
	if len(m.Errors) == 0 {
		return nil
	}
	return m.Errors[len(m.Errors)-1]
}
