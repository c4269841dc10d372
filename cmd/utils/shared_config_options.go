package utils

import (
	"fmt"
	"go/types"
	"time"

	"github.com/stellar/go-stellar-sdk/support/config"

	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/internal/cache"
	"github.com/stellar/stellar-tenant-control-plane/internal/crashtracker"
	"github.com/stellar/stellar-tenant-control-plane/internal/events"
	"github.com/stellar/stellar-tenant-control-plane/internal/notification"
)

// DBPoolOptions contains tunables for the PostgreSQL connection pool.
type DBPoolOptions struct {
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxIdleTimeSeconds int
	DBConnMaxLifetimeSeconds int
}

// PoolConfig converts the options to the config every tenant pool is opened with.
func (o DBPoolOptions) PoolConfig() db.DBPoolConfig {
	return db.DBPoolConfig{
		MaxOpenConns:    o.DBMaxOpenConns,
		MaxIdleConns:    o.DBMaxIdleConns,
		ConnMaxIdleTime: time.Duration(o.DBConnMaxIdleTimeSeconds) * time.Second,
		ConnMaxLifetime: time.Duration(o.DBConnMaxLifetimeSeconds) * time.Second,
	}
}

// DBPoolConfigOptions returns config options for tuning the DB connection pool.
func DBPoolConfigOptions(opts *DBPoolOptions) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:        "db-max-open-conns",
			Usage:       "Maximum number of open DB connections per pool",
			OptType:     types.Int,
			ConfigKey:   &opts.DBMaxOpenConns,
			FlagDefault: db.DefaultDBPoolConfig.MaxOpenConns,
		},
		{
			Name:        "db-max-idle-conns",
			Usage:       "Maximum number of idle DB connections retained per pool",
			OptType:     types.Int,
			ConfigKey:   &opts.DBMaxIdleConns,
			FlagDefault: db.DefaultDBPoolConfig.MaxIdleConns,
		},
		{
			Name:        "db-conn-max-idle-time-seconds",
			Usage:       "Maximum idle time in seconds before a connection is closed",
			OptType:     types.Int,
			ConfigKey:   &opts.DBConnMaxIdleTimeSeconds,
			FlagDefault: int(db.DefaultDBPoolConfig.ConnMaxIdleTime / time.Second),
		},
		{
			Name:        "db-conn-max-lifetime-seconds",
			Usage:       "Maximum lifetime in seconds for a single connection",
			OptType:     types.Int,
			ConfigKey:   &opts.DBConnMaxLifetimeSeconds,
			FlagDefault: int(db.DefaultDBPoolConfig.ConnMaxLifetime / time.Second),
		},
	}
}

// AWSConfigOptions returns the config options for AWS. Relevant for the notifier type `AWS_SNS`.
func AWSConfigOptions(opts *notification.NotifierOptions) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:      "aws-access-key-id",
			Usage:     "The AWS access key ID",
			OptType:   types.String,
			ConfigKey: &opts.AWSAccessKeyID,
		},
		{
			Name:      "aws-secret-access-key",
			Usage:     "The AWS secret access key",
			OptType:   types.String,
			ConfigKey: &opts.AWSSecretAccessKey,
		},
		{
			Name:      "aws-region",
			Usage:     "The AWS region",
			OptType:   types.String,
			ConfigKey: &opts.AWSRegion,
		},
		{
			Name:      "aws-sns-topic-arn",
			Usage:     "The ARN of the SNS topic the tenant notifications are published to. Uses AWS SNS.",
			OptType:   types.String,
			ConfigKey: &opts.AWSSNSTopicARN,
		},
	}
}

func NotifierTypeConfigOption(targetPointer interface{}) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "notifier-type",
		Usage:          fmt.Sprintf("Notifier type used to deliver tenant notifications. Options: %+v", notification.NotifierType("").All()),
		OptType:        types.String,
		CustomSetValue: SetConfigOptionNotifierType,
		ConfigKey:      targetPointer,
		FlagDefault:    string(notification.NotifierTypeDryRun),
		Required:       true,
	}
}

func CrashTrackerTypeConfigOption(targetPointer interface{}) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "crash-tracker-type",
		Usage:          `Crash tracker type. Options: "SENTRY", "DRY_RUN"`,
		OptType:        types.String,
		CustomSetValue: SetConfigOptionCrashTrackerType,
		ConfigKey:      targetPointer,
		FlagDefault:    string(crashtracker.CrashTrackerTypeDryRun),
		Required:       true,
	}
}

type EventBrokerOptions struct {
	EventBrokerType events.EventBrokerType
	// Kafka
	Brokers         []string
	ConsumerGroupID string
	// RabbitMQ
	RabbitMQURL string
	// Consumers
	MaxBackoff int
}

func (o EventBrokerOptions) Validate() error {
	switch o.EventBrokerType {
	case events.KafkaEventBrokerType:
		if err := KafkaConfig(o).Validate(); err != nil {
			return fmt.Errorf("validating kafka config: %w", err)
		}
		if o.ConsumerGroupID == "" {
			return fmt.Errorf("consumer group ID is required for the %s event broker", o.EventBrokerType)
		}
	case events.RabbitMQEventBrokerType:
		if err := RabbitMQConfig(o).Validate(); err != nil {
			return fmt.Errorf("validating rabbitmq config: %w", err)
		}
	}
	return nil
}

func KafkaConfig(opts EventBrokerOptions) events.KafkaConfig {
	return events.KafkaConfig{Brokers: opts.Brokers}
}

func RabbitMQConfig(opts EventBrokerOptions) events.RabbitMQConfig {
	return events.RabbitMQConfig{URL: opts.RabbitMQURL}
}

func EventBrokerConfigOptions(opts *EventBrokerOptions) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:           "event-broker-type",
			Usage:          `Event broker type. Options: "KAFKA", "RABBITMQ", "IN_MEMORY"`,
			OptType:        types.String,
			CustomSetValue: SetConfigOptionEventBrokerType,
			ConfigKey:      &opts.EventBrokerType,
			FlagDefault:    string(events.InMemoryEventBrokerType),
			Required:       true,
		},
		{
			Name:           "brokers",
			Usage:          "List of Kafka brokers, separated by comma. Required when the event broker type is KAFKA.",
			OptType:        types.String,
			CustomSetValue: SetConfigOptionStringList,
			ConfigKey:      &opts.Brokers,
			FlagDefault:    "localhost:9092",
		},
		{
			Name:        "consumer-group-id",
			Usage:       "Kafka consumer group ID shared by every replica of this service.",
			OptType:     types.String,
			ConfigKey:   &opts.ConsumerGroupID,
			FlagDefault: "tenant-control-plane",
		},
		{
			Name:      "rabbitmq-url",
			Usage:     "The AMQP URL of the RabbitMQ server. Required when the event broker type is RABBITMQ.",
			OptType:   types.String,
			ConfigKey: &opts.RabbitMQURL,
		},
		{
			Name:        "max-backoff",
			Usage:       "How many times a message is retried before it's sent to the dead letter topic.",
			OptType:     types.Int,
			ConfigKey:   &opts.MaxBackoff,
			FlagDefault: events.DefaultMaxBackoffExponent,
		},
	}
}

func CacheConfigOptions(opts *cache.StoreOptions) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:           "cache-type",
			Usage:          `The store backing the idempotency locks and the revoked tokens. Options: "MEMORY", "REDIS". MEMORY is only safe with a single replica.`,
			OptType:        types.String,
			CustomSetValue: SetConfigOptionCacheStoreType,
			ConfigKey:      &opts.Type,
			FlagDefault:    string(cache.StoreTypeMemory),
			Required:       true,
		},
		{
			Name:           "redis-url",
			Usage:          "The URL of the Redis server. Required when the cache type is REDIS.",
			OptType:        types.String,
			CustomSetValue: SetConfigOptionURLString,
			ConfigKey:      &opts.RedisURL,
		},
	}
}

type TenantRoutingOptions struct {
	All   bool
	Realm string
}

func (o *TenantRoutingOptions) ValidateFlags() error {
	if !o.All && o.Realm == "" {
		return fmt.Errorf(
			"invalid config. Please specify --all to run the migrations for all tenants " +
				"or specify --realm to run the migrations to a specific tenant",
		)
	}
	return nil
}

// TenantRoutingConfigOptions returns the config options for commands that apply to all tenants or a specific tenant.
func TenantRoutingConfigOptions(opts *TenantRoutingOptions) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:        "all",
			Usage:       "Apply the command to all tenants. Either --realm or --all must be set, but the --all option will be ignored if --realm is set.",
			OptType:     types.Bool,
			FlagDefault: false,
			ConfigKey:   &opts.All,
		},
		{
			Name:      "realm",
			Usage:     "The realm of the tenant where the command will be applied.",
			OptType:   types.String,
			ConfigKey: &opts.Realm,
		},
	}
}
