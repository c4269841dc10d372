package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/stellar-tenant-control-plane/internal/events/schemas"
	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

var testMasterKey = []byte("a-master-key-used-only-in-tests!")

func newTestCodec(t *testing.T, opts ...CodecOption) *Codec {
	t.Helper()
	codec, err := NewCodec(testMasterKey, "tenant-service", opts...)
	require.NoError(t, err)
	return codec
}

func tenantCtx(realm string, tenantID uuid.UUID) context.Context {
	return tenantcontext.Set(context.Background(), realm, tenantID)
}

func Test_NewCodec(t *testing.T) {
	_, err := NewCodec(nil, "svc")
	assert.EqualError(t, err, "master key cannot be empty")

	_, err = NewCodec(testMasterKey, "")
	assert.EqualError(t, err, "service name cannot be empty")
}

func Test_Codec_SealAndOpen(t *testing.T) {
	codec := newTestCodec(t)
	tenantID := uuid.New()
	data := schemas.EventTenantRealmProvisionedData{
		TenantRef: schemas.TenantRef{TenantID: tenantID.String(), Realm: "acme"},
	}

	msg, err := codec.Seal(tenantCtx("acme", tenantID), TenantRealmProvisionedTopic, "acme", TenantRealmProvisionedType, data)
	require.NoError(t, err)

	assert.Equal(t, TenantRealmProvisionedTopic, msg.Topic)
	assert.Equal(t, "acme", msg.Key)
	assert.Equal(t, tenantID.String(), msg.Header(HeaderTenantID))
	assert.Equal(t, "acme", msg.Header(HeaderRealm))
	assert.Equal(t, "tenant-service", msg.Header(HeaderServiceName))
	assert.Equal(t, TenantRealmProvisionedType, msg.Type())
	_, err = uuid.Parse(msg.CorrelationID())
	require.NoError(t, err, "correlation ID must be a UUID")
	assert.NotContains(t, string(msg.Payload), "acme", "payload must be encrypted")

	var opened schemas.EventTenantRealmProvisionedData
	ctx, err := codec.Open(context.Background(), msg, &opened)
	require.NoError(t, err)
	assert.Equal(t, data, opened)

	tr, ok := tenantcontext.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, tenantcontext.TenantRealm{Realm: "acme", TenantID: tenantID}, tr)
	assert.Equal(t, msg.CorrelationID(), tenantcontext.CorrelationID(ctx))
}

func Test_Codec_tenantCreatePayloadFields(t *testing.T) {
	codec := newTestCodec(t)
	tenantID := uuid.New()
	data := schemas.EventTenantCreateData{
		TenantRef: schemas.TenantRef{TenantID: tenantID.String(), Realm: "acme"},
		Name:      "Acme",
		Secret:    []byte("s3cr3t"),
		TenantConfiguration: tenant.TenantConfiguration{
			PasswordPolicy: tenant.PasswordPolicy{MinLength: 10},
		},
	}

	msg, err := codec.Seal(tenantCtx("acme", tenantID), TenantLifecycleTopic, "acme", TenantCreateType, data)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	_, err = codec.Open(context.Background(), msg, &fields)
	require.NoError(t, err)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"tenantId", "realm", "name", "secret", "tenantConfiguration"}, keys)
	assert.JSONEq(t, `"`+tenantID.String()+`"`, string(fields["tenantId"]))
	assert.JSONEq(t, `"czNjcjN0"`, string(fields["secret"]))
	assert.Contains(t, string(fields["tenantConfiguration"]), `"minLength":10`)

	var opened schemas.EventTenantCreateData
	_, err = codec.Open(context.Background(), msg, &opened)
	require.NoError(t, err)
	assert.Equal(t, data, opened)
}

func Test_Codec_Seal_requiresTenant(t *testing.T) {
	codec := newTestCodec(t)
	data := map[string]string{"k": "v"}

	testCases := []struct {
		name string
		ctx  context.Context
	}{
		{name: "no tenant", ctx: context.Background()},
		{name: "realm without tenant ID", ctx: tenantCtx("acme", uuid.Nil)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := codec.Seal(tc.ctx, "topic", "key", "type", data)
			assert.ErrorIs(t, err, ErrMissingTenantIDOrRealm)
			assert.Nil(t, msg)
		})
	}
}

func Test_Codec_Seal_validation(t *testing.T) {
	codec := newTestCodec(t)
	ctx := tenantCtx("acme", uuid.New())

	_, err := codec.Seal(ctx, "topic", "key", "type", nil)
	assert.ErrorIs(t, err, ErrDataRequired)

	_, err = codec.Seal(ctx, "", "key", "type", "data")
	assert.ErrorIs(t, err, ErrTopicRequired)

	_, err = codec.Seal(ctx, "topic", "", "type", "data")
	assert.ErrorIs(t, err, ErrKeyRequired)

	_, err = codec.Seal(ctx, "topic", "key", "", "data")
	assert.ErrorIs(t, err, ErrTypeRequired)

	_, err = codec.Seal(ctx, "topic", "key", "type", make(chan int))
	assert.ErrorContains(t, err, "encoding message data")
}

func Test_Codec_Seal_headers(t *testing.T) {
	codec := newTestCodec(t)
	tenantID := uuid.New()
	ctx := tenantCtx("acme", tenantID)

	msg, err := codec.Seal(ctx, "topic", "key", "type", "data",
		WithHeaders(map[string]string{"region": "eu", HeaderRealm: "globex", HeaderTenantID: "spoofed"}),
		WithHeaders(map[string]string{"region": "us", "plan": "enterprise"}),
	)
	require.NoError(t, err)

	assert.Equal(t, "acme", msg.Realm(), "envelope headers can't be overridden")
	assert.Equal(t, tenantID.String(), msg.TenantID())
	assert.Equal(t, "eu", msg.Header("region"), "the first writer wins")
	assert.Equal(t, "enterprise", msg.Header("plan"))
}

func Test_Codec_correlationID(t *testing.T) {
	tenantID := uuid.New()
	ctx := tenantcontext.WithCorrelationID(tenantCtx("acme", tenantID), "corr-parent")

	t.Run("fresh per publish by default", func(t *testing.T) {
		codec := newTestCodec(t)
		first, err := codec.Seal(ctx, "topic", "key", "type", "data")
		require.NoError(t, err)
		second, err := codec.Seal(ctx, "topic", "key", "type", "data")
		require.NoError(t, err)

		assert.NotEqual(t, "corr-parent", first.CorrelationID())
		assert.NotEqual(t, first.CorrelationID(), second.CorrelationID())
	})

	t.Run("propagated from the context", func(t *testing.T) {
		codec := newTestCodec(t, WithCorrelationPropagation())
		msg, err := codec.Seal(ctx, "topic", "key", "type", "data")
		require.NoError(t, err)
		assert.Equal(t, "corr-parent", msg.CorrelationID())

		msg, err = codec.Seal(tenantCtx("acme", tenantID), "topic", "key", "type", "data")
		require.NoError(t, err)
		assert.NotEmpty(t, msg.CorrelationID(), "a new one is created when the context has none")
	})

	t.Run("explicit", func(t *testing.T) {
		codec := newTestCodec(t, WithCorrelationPropagation())
		msg, err := codec.Seal(ctx, "topic", "key", "type", "data", WithCorrelationID("corr-explicit"))
		require.NoError(t, err)
		assert.Equal(t, "corr-explicit", msg.CorrelationID())
	})
}

func Test_Codec_Open_headerErrors(t *testing.T) {
	codec := newTestCodec(t)
	sealed, err := codec.Seal(tenantCtx("acme", uuid.New()), "topic", "key", "type", "data")
	require.NoError(t, err)

	testCases := []struct {
		name    string
		mutate  func(msg *Message)
		wantErr error
	}{
		{name: "missing tenant ID", mutate: func(msg *Message) { delete(msg.Headers, HeaderTenantID) }, wantErr: ErrMissingTenantIDOrRealm},
		{name: "missing realm", mutate: func(msg *Message) { delete(msg.Headers, HeaderRealm) }, wantErr: ErrMissingTenantIDOrRealm},
		{name: "invalid tenant ID", mutate: func(msg *Message) { msg.Headers[HeaderTenantID] = "not-a-uuid" }, wantErr: ErrInvalidTenantID},
		{name: "missing correlation ID", mutate: func(msg *Message) { delete(msg.Headers, HeaderCorrelationID) }, wantErr: ErrMissingCorrelationID},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := sealed.Clone()
			tc.mutate(&msg)

			var dest string
			ctx, err := codec.Open(context.Background(), &msg, &dest)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, dest)

			_, ok := tenantcontext.Get(ctx)
			assert.False(t, ok, "no tenant is set when the envelope is invalid")
		})
	}
}

func Test_Codec_Open_wrongTenant(t *testing.T) {
	codec := newTestCodec(t)
	acmeID, globexID := uuid.New(), uuid.New()

	msg, err := codec.Seal(tenantCtx("acme", acmeID), "topic", "key", "type", "acme secret")
	require.NoError(t, err)

	t.Run("headers rewritten to another tenant", func(t *testing.T) {
		forged := msg.Clone()
		forged.Headers[HeaderTenantID] = globexID.String()
		forged.Headers[HeaderRealm] = "globex"

		var dest string
		_, err := codec.Open(context.Background(), &forged, &dest)
		assert.ErrorIs(t, err, ErrDecryptingPayload)
		assert.Empty(t, dest)
	})

	t.Run("payload moved to another tenant's message", func(t *testing.T) {
		globexMsg, err := codec.Seal(tenantCtx("globex", globexID), "topic", "key", "type", "globex data")
		require.NoError(t, err)
		globexMsg.Payload = msg.Payload

		var dest string
		_, err = codec.Open(context.Background(), globexMsg, &dest)
		assert.ErrorIs(t, err, ErrDecryptingPayload)
	})

	t.Run("message type changed", func(t *testing.T) {
		forged := msg.Clone()
		forged.Headers[HeaderMessageType] = "other-type"

		var dest string
		_, err := codec.Open(context.Background(), &forged, &dest)
		assert.ErrorIs(t, err, ErrDecryptingPayload)
	})

	t.Run("different master key", func(t *testing.T) {
		other, err := NewCodec([]byte("another-master-key-for-the-tests"), "tenant-service")
		require.NoError(t, err)

		var dest string
		_, err = other.Open(context.Background(), msg, &dest)
		assert.ErrorIs(t, err, ErrDecryptingPayload)
	})

	t.Run("tampered payload", func(t *testing.T) {
		forged := msg.Clone()
		forged.Payload[len(forged.Payload)-1] ^= 0xff

		var dest string
		_, err := codec.Open(context.Background(), &forged, &dest)
		assert.ErrorIs(t, err, ErrDecryptingPayload)
	})
}

func Test_Codec_Open_decodingErrors(t *testing.T) {
	codec := newTestCodec(t)
	tenantID := uuid.New()
	ctx := tenantCtx("acme", tenantID)

	t.Run("wrong shape", func(t *testing.T) {
		msg, err := codec.Seal(ctx, "topic", "key", "type", []string{"a", "b"})
		require.NoError(t, err)

		var dest schemas.EventTenantCreateData
		_, err = codec.Open(context.Background(), msg, &dest)
		assert.ErrorIs(t, err, ErrDecodingPayload)
	})

	t.Run("fails validation", func(t *testing.T) {
		msg, err := codec.Seal(ctx, "topic", "key", "type", schemas.EventTenantCreateData{
			TenantRef: schemas.TenantRef{TenantID: tenantID.String(), Realm: "acme"},
		})
		require.NoError(t, err)

		var dest schemas.EventTenantCreateData
		_, err = codec.Open(context.Background(), msg, &dest)
		assert.ErrorIs(t, err, ErrDecodingPayload)
		assert.ErrorContains(t, err, "name is required")
	})
}

func Test_Codec_keyCache(t *testing.T) {
	codec := newTestCodec(t)
	tenantID := uuid.New()

	_, err := codec.Seal(tenantCtx("acme", tenantID), "topic", "key", "type", "data")
	require.NoError(t, err)
	_, err = codec.Seal(tenantCtx("acme", tenantID), "topic", "key", "type", "data")
	require.NoError(t, err)
	assert.Equal(t, 1, codec.keys.Len())

	_, err = codec.Seal(tenantCtx("globex", uuid.New()), "topic", "key", "type", "data")
	require.NoError(t, err)
	assert.Equal(t, 2, codec.keys.Len())
}

func Test_TenantContext_clearsPreviousTenant(t *testing.T) {
	codec := newTestCodec(t)
	tenantID := uuid.New()
	msg, err := codec.Seal(tenantCtx("acme", tenantID), "topic", "key", "type", "data")
	require.NoError(t, err)

	ctx, err := TenantContext(tenantCtx("globex", uuid.New()), msg)
	require.NoError(t, err)

	tr, ok := tenantcontext.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "acme", tr.Realm)
	assert.Equal(t, tenantID, tr.TenantID)
}
