package utils

import (
	"encoding/base64"
	"go/types"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/stellar-tenant-control-plane/internal/cache"
	"github.com/stellar/stellar-tenant-control-plane/internal/crashtracker"
	"github.com/stellar/stellar-tenant-control-plane/internal/events"
	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
	"github.com/stellar/stellar-tenant-control-plane/internal/notification"
)

// setterCase describes one run of a CustomSetValue function. The value comes from args when set, from the
// option's environment variable otherwise.
type setterCase[T any] struct {
	name    string
	args    []string
	env     string
	wantErr string
	want    T
}

// runSetter binds the option to a throwaway command, parses the case's input and runs the option's setter.
func runSetter[T any](t *testing.T, co config.ConfigOption, tc setterCase[T]) {
	t.Helper()

	ClearTestEnvironment(t)
	if tc.env != "" {
		t.Setenv(strings.ToUpper(strings.ReplaceAll(co.Name, "-", "_")), tc.env)
	}

	var dest T
	co.ConfigKey = &dest
	cmd := &cobra.Command{Use: "test"}
	require.NoError(t, co.Init(cmd))
	require.NoError(t, cmd.ParseFlags(tc.args))

	err := co.SetValue()
	if tc.wantErr != "" {
		assert.ErrorContains(t, err, tc.wantErr)
		return
	}
	require.NoError(t, err)
	assert.Equal(t, tc.want, dest)
}

func stringOption(name string, setter func(*config.ConfigOption) error) config.ConfigOption {
	return config.ConfigOption{Name: name, OptType: types.String, CustomSetValue: setter}
}

func Test_enumSetters(t *testing.T) {
	t.Run("notifier type", func(t *testing.T) {
		co := stringOption("notifier-type", SetConfigOptionNotifierType)
		for _, tc := range []setterCase[notification.NotifierType]{
			{name: "empty", wantErr: `couldn't parse notifier type: invalid notifier type ""`},
			{name: "unknown", args: []string{"--notifier-type", "pager"}, wantErr: `invalid notifier type "pager"`},
			{name: "flag", args: []string{"--notifier-type", "aws_sns"}, want: notification.NotifierTypeAWSSNS},
			{name: "env", env: "DRY_RUN", want: notification.NotifierTypeDryRun},
		} {
			t.Run(tc.name, func(t *testing.T) { runSetter(t, co, tc) })
		}
	})

	t.Run("metric type", func(t *testing.T) {
		co := stringOption("metrics-type", SetConfigOptionMetricType)
		for _, tc := range []setterCase[monitor.MetricType]{
			{name: "empty", wantErr: `couldn't parse metric type: invalid metric type ""`},
			{name: "unknown", args: []string{"--metrics-type", "statsd"}, wantErr: `invalid metric type "STATSD"`},
			{name: "env", env: "prometheus", want: monitor.MetricTypePrometheus},
		} {
			t.Run(tc.name, func(t *testing.T) { runSetter(t, co, tc) })
		}
	})

	t.Run("crash tracker type", func(t *testing.T) {
		co := stringOption("crash-tracker-type", SetConfigOptionCrashTrackerType)
		for _, tc := range []setterCase[crashtracker.CrashTrackerType]{
			{name: "unknown", args: []string{"--crash-tracker-type", "rollbar"}, wantErr: `couldn't parse crash tracker type: invalid crash tracker type "ROLLBAR"`},
			{name: "flag", args: []string{"--crash-tracker-type", "SeNtRy"}, want: crashtracker.CrashTrackerTypeSentry},
			{name: "env", env: "DRY_RUN", want: crashtracker.CrashTrackerTypeDryRun},
		} {
			t.Run(tc.name, func(t *testing.T) { runSetter(t, co, tc) })
		}
	})

	t.Run("event broker type", func(t *testing.T) {
		co := stringOption("event-broker-type", SetConfigOptionEventBrokerType)
		for _, tc := range []setterCase[events.EventBrokerType]{
			{name: "unknown", args: []string{"--event-broker-type", "sqs"}, wantErr: `couldn't parse event broker type: invalid event broker type "sqs"`},
			{name: "kafka", args: []string{"--event-broker-type", "kafka"}, want: events.KafkaEventBrokerType},
			{name: "rabbitmq", env: "RABBITMQ", want: events.RabbitMQEventBrokerType},
			{name: "in memory", args: []string{"--event-broker-type", "IN_MEMORY"}, want: events.InMemoryEventBrokerType},
		} {
			t.Run(tc.name, func(t *testing.T) { runSetter(t, co, tc) })
		}
	})

	t.Run("cache store type", func(t *testing.T) {
		co := stringOption("cache-type", SetConfigOptionCacheStoreType)
		for _, tc := range []setterCase[cache.StoreType]{
			{name: "unknown", args: []string{"--cache-type", "memcached"}, wantErr: `couldn't parse cache store type: invalid cache store type "memcached"`},
			{name: "redis", args: []string{"--cache-type", "redis"}, want: cache.StoreTypeRedis},
			{name: "memory", env: "MEMORY", want: cache.StoreTypeMemory},
		} {
			t.Run(tc.name, func(t *testing.T) { runSetter(t, co, tc) })
		}
	})
}

func Test_setParsedValue_wrongConfigKey(t *testing.T) {
	var wrong int
	co := config.ConfigOption{Name: "notifier-type", ConfigKey: &wrong}
	err := SetConfigOptionNotifierType(&co)
	assert.EqualError(t, err, "config key of notifier-type has type *int, expected *notification.NotifierType")
}

func Test_SetConfigOptionLogLevel(t *testing.T) {
	co := stringOption("log-level", SetConfigOptionLogLevel)
	t.Cleanup(func() { log.DefaultLogger.SetLevel(logrus.InfoLevel) })

	for _, tc := range []setterCase[logrus.Level]{
		{name: "empty", wantErr: `couldn't parse log level: not a valid logrus Level: ""`},
		{name: "unknown", args: []string{"--log-level", "chatty"}, wantErr: `not a valid logrus Level: "chatty"`},
		{name: "flag is case insensitive", args: []string{"--log-level", "iNfO"}, want: logrus.InfoLevel},
		{name: "env", env: "TRACE", want: logrus.TraceLevel},
	} {
		t.Run(tc.name, func(t *testing.T) { runSetter(t, co, tc) })
	}

	t.Run("an explicit level is applied to the default logger", func(t *testing.T) {
		runSetter(t, co, setterCase[logrus.Level]{args: []string{"--log-level", "warn"}, want: logrus.WarnLevel})
		assert.Equal(t, logrus.WarnLevel, log.DefaultLogger.GetLevel())
	})
}

func Test_SetConfigOptionMasterKey(t *testing.T) {
	co := stringOption("envelope-master-key", SetConfigOptionMasterKey)
	validKey := []byte(strings.Repeat("k", MinMasterKeyLength))
	encoded := base64.StdEncoding.EncodeToString(validKey)

	for _, tc := range []setterCase[[]byte]{
		{name: "empty", wantErr: "master key cannot be empty"},
		{name: "not base64", args: []string{"--envelope-master-key", "not base64!"}, wantErr: "decoding master key"},
		{
			name:    "too short",
			args:    []string{"--envelope-master-key", base64.StdEncoding.EncodeToString([]byte("short"))},
			wantErr: "master key must have at least 32 bytes, got 5",
		},
		{name: "flag", args: []string{"--envelope-master-key", encoded}, want: validKey},
		{name: "env", env: encoded, want: validKey},
	} {
		t.Run(tc.name, func(t *testing.T) { runSetter(t, co, tc) })
	}
}

func Test_SetConfigOptionStringList(t *testing.T) {
	co := stringOption("brokers", SetConfigOptionStringList)
	for _, tc := range []setterCase[[]string]{
		{name: "empty", want: []string{}},
		{name: "single value", args: []string{"--brokers", "kafka:9092"}, want: []string{"kafka:9092"}},
		{name: "trims and drops empty entries", env: " kafka-0:9092, ,kafka-1:9092,", want: []string{"kafka-0:9092", "kafka-1:9092"}},
	} {
		t.Run(tc.name, func(t *testing.T) { runSetter(t, co, tc) })
	}
}

func Test_SetCorsAllowedOrigins(t *testing.T) {
	co := stringOption("cors-allowed-origins", SetCorsAllowedOrigins)

	getEntries := log.DefaultLogger.StartTest(log.WarnLevel)
	for _, tc := range []setterCase[[]string]{
		{name: "empty", args: []string{"--cors-allowed-origins", ""}, wantErr: "cors allowed origins cannot be empty"},
		{name: "empty entry", args: []string{"--cors-allowed-origins", ","}, wantErr: `invalid cors origin ""`},
		{name: "relative origin", args: []string{"--cors-allowed-origins", "console.example.com"}, wantErr: `invalid cors origin "console.example.com"`},
		{name: "origin without scheme", args: []string{"--cors-allowed-origins", "/console"}, wantErr: `invalid cors origin "/console"`},
		{name: "one origin", args: []string{"--cors-allowed-origins", "https://console.example.com"}, want: []string{"https://console.example.com"}},
		{
			name: "two origins from env",
			env:  "https://console.example.com,https://ops.example.com",
			want: []string{"https://console.example.com", "https://ops.example.com"},
		},
		{name: "wildcard", env: "*", want: []string{"*"}},
	} {
		t.Run(tc.name, func(t *testing.T) { runSetter(t, co, tc) })
	}

	entries := getEntries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, `CORS allows every origin ("*")`)
}

func Test_SetConfigOptionURLString(t *testing.T) {
	co := stringOption("redis-url", SetConfigOptionURLString)
	co.FlagDefault = "redis://localhost:6379/0"

	for _, tc := range []setterCase[string]{
		{name: "default", want: "redis://localhost:6379/0"},
		{name: "optional and empty", args: []string{"--redis-url", ""}, want: ""},
		{name: "invalid", args: []string{"--redis-url", "not a url"}, wantErr: "invalid url in redis-url"},
		{name: "relative path", args: []string{"--redis-url", "/cache/0"}, wantErr: `invalid url in redis-url: "/cache/0" is not a valid absolute url`},
		{name: "flag", args: []string{"--redis-url", "redis://cache:6379/2"}, want: "redis://cache:6379/2"},
	} {
		t.Run(tc.name, func(t *testing.T) { runSetter(t, co, tc) })
	}

	t.Run("required and empty", func(t *testing.T) {
		required := co
		required.Required = true
		runSetter(t, required, setterCase[string]{args: []string{"--redis-url", ""}, wantErr: "redis-url cannot be empty"})
	})
}
