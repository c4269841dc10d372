package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
)

const defaultKeyCacheSize = 1024

var (
	ErrMissingTenantIDOrRealm = errors.New("message tenant ID or realm is missing")
	ErrInvalidTenantID        = errors.New("message tenant ID is not a valid UUID")
	ErrMissingCorrelationID   = errors.New("message correlation ID is missing")
	ErrDecryptingPayload      = errors.New("decrypting message payload")
	ErrDecodingPayload        = errors.New("decoding message payload")
	ErrDataRequired           = errors.New("message data is required")
)

// Codec seals message payloads with a key derived from the master key and the tenant that publishes them, so a
// payload can only be opened with the key of the tenant named in its headers.
type Codec struct {
	masterKey              []byte
	serviceName            string
	propagateCorrelationID bool
	keys                   *lru.Cache[string, []byte]
}

type CodecOption func(*Codec)

// WithCorrelationPropagation makes Seal reuse the correlation ID found in the context, so the messages published
// while handling a message share its correlation ID. By default every published message gets a new one.
func WithCorrelationPropagation() CodecOption {
	return func(c *Codec) {
		c.propagateCorrelationID = true
	}
}

func NewCodec(masterKey []byte, serviceName string, opts ...CodecOption) (*Codec, error) {
	if len(masterKey) == 0 {
		return nil, errors.New("master key cannot be empty")
	}
	if serviceName == "" {
		return nil, errors.New("service name cannot be empty")
	}

	keys, err := lru.New[string, []byte](defaultKeyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating key cache: %w", err)
	}

	c := &Codec{
		masterKey:   append([]byte(nil), masterKey...),
		serviceName: serviceName,
		keys:        keys,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type sealOptions struct {
	correlationID string
	headers       []map[string]string
}

type SealOption func(*sealOptions)

// WithCorrelationID sets the correlation ID of the sealed message.
func WithCorrelationID(correlationID string) SealOption {
	return func(o *sealOptions) {
		o.correlationID = correlationID
	}
}

// WithHeaders adds filter headers to the sealed message. A header is only added when no header with the same name
// was set before, so the envelope headers can't be overridden.
func WithHeaders(headers map[string]string) SealOption {
	return func(o *sealOptions) {
		o.headers = append(o.headers, headers)
	}
}

// Seal builds a message for the tenant in ctx with data encoded as JSON and encrypted.
func (c *Codec) Seal(ctx context.Context, topic, key, messageType string, data any, opts ...SealOption) (*Message, error) {
	tr, ok := tenantcontext.Get(ctx)
	if !ok || tr.Realm == "" || !tr.HasTenantID() {
		return nil, ErrMissingTenantIDOrRealm
	}
	if data == nil {
		return nil, ErrDataRequired
	}

	o := sealOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.correlationID == "" && c.propagateCorrelationID {
		o.correlationID = tenantcontext.CorrelationID(ctx)
	}
	if o.correlationID == "" {
		o.correlationID = uuid.NewString()
	}

	headers := map[string]string{
		HeaderTenantID:      tr.TenantID.String(),
		HeaderRealm:         tr.Realm,
		HeaderServiceName:   c.serviceName,
		HeaderCorrelationID: o.correlationID,
		HeaderMessageType:   messageType,
	}
	for _, filterHeaders := range o.headers {
		for name, value := range filterHeaders {
			if _, exists := headers[name]; !exists {
				headers[name] = value
			}
		}
	}

	plaintext, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding message data: %w", err)
	}

	tenantKey, err := c.tenantKey(headers[HeaderTenantID], tr.Realm)
	if err != nil {
		return nil, err
	}

	payload, err := utils.Encrypt(plaintext, tenantKey, additionalData(headers))
	if err != nil {
		return nil, fmt.Errorf("encrypting message data: %w", err)
	}

	msg := &Message{Topic: topic, Key: key, Headers: headers, Payload: payload}
	if err = msg.Validate(); err != nil {
		return nil, fmt.Errorf("validating message: %w", err)
	}
	return msg, nil
}

// Open decrypts the payload of msg into dest and returns a context that carries the tenant and correlation ID of
// the message. When dest has a Validate method, a payload that doesn't pass it is rejected.
func (c *Codec) Open(ctx context.Context, msg *Message, dest any) (context.Context, error) {
	ctx, err := TenantContext(ctx, msg)
	if err != nil {
		return ctx, err
	}

	tenantKey, err := c.tenantKey(msg.TenantID(), msg.Realm())
	if err != nil {
		return ctx, err
	}

	plaintext, err := utils.Decrypt(msg.Payload, tenantKey, additionalData(msg.Headers))
	if err != nil {
		return ctx, fmt.Errorf("%w: %w", ErrDecryptingPayload, err)
	}

	if err = json.Unmarshal(plaintext, dest); err != nil {
		return ctx, fmt.Errorf("%w: %w", ErrDecodingPayload, err)
	}
	if validator, ok := dest.(interface{ Validate() error }); ok {
		if err = validator.Validate(); err != nil {
			return ctx, fmt.Errorf("%w: %w", ErrDecodingPayload, err)
		}
	}

	log.Ctx(ctx).Debugf("opened message %s", msg)
	return ctx, nil
}

func (c *Codec) tenantKey(tenantID, realm string) ([]byte, error) {
	salt, err := utils.GenerateTenantSalt(tenantID, realm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingTenantIDOrRealm, err)
	}

	if key, ok := c.keys.Get(salt); ok {
		return key, nil
	}

	key, err := utils.DeriveTenantKey(c.masterKey, salt)
	if err != nil {
		return nil, fmt.Errorf("deriving tenant key: %w", err)
	}
	c.keys.Add(salt, key)
	return key, nil
}

// additionalData binds a payload to the tenant and message type it was sealed for.
func additionalData(headers map[string]string) []byte {
	return []byte(headers[HeaderTenantID] + "|" + headers[HeaderRealm] + "|" + headers[HeaderMessageType])
}

// TenantContext starts a tenant scope on ctx from the envelope headers of msg. It doesn't decrypt the payload.
func TenantContext(ctx context.Context, msg *Message) (context.Context, error) {
	tenantIDStr, realm := msg.TenantID(), msg.Realm()
	if tenantIDStr == "" || realm == "" {
		return ctx, ErrMissingTenantIDOrRealm
	}

	tenantID, err := uuid.Parse(tenantIDStr)
	if err != nil {
		return ctx, fmt.Errorf("%w: %w", ErrInvalidTenantID, err)
	}

	correlationID := msg.CorrelationID()
	if correlationID == "" {
		return ctx, ErrMissingCorrelationID
	}

	ctx = tenantcontext.Set(ctx, realm, tenantID)
	return tenantcontext.WithCorrelationID(ctx, correlationID), nil
}
