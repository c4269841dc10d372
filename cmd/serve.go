package cmd

import (
	"context"
	"fmt"
	"go/types"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	cmdUtils "github.com/stellar/stellar-tenant-control-plane/cmd/utils"
	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/internal/cache"
	"github.com/stellar/stellar-tenant-control-plane/internal/crashtracker"
	di "github.com/stellar/stellar-tenant-control-plane/internal/dependencyinjection"
	"github.com/stellar/stellar-tenant-control-plane/internal/events"
	"github.com/stellar/stellar-tenant-control-plane/internal/events/eventhandlers"
	"github.com/stellar/stellar-tenant-control-plane/internal/idempotency"
	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
	"github.com/stellar/stellar-tenant-control-plane/internal/notification"
	"github.com/stellar/stellar-tenant-control-plane/internal/provisioning"
	"github.com/stellar/stellar-tenant-control-plane/internal/revocation"
	"github.com/stellar/stellar-tenant-control-plane/internal/serve"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

type TearDownFunc func()

type ServeCommand struct{}

// ConsumersOptions holds what the event handlers of the provisioning workflow need.
type ConsumersOptions struct {
	EventBrokerOptions  cmdUtils.EventBrokerOptions
	Codec               *events.Codec
	ProvisioningService provisioning.ServiceInterface
	Notifier            notification.Notifier
	CrashTrackerClient  crashtracker.CrashTrackerClient
	MonitorService      monitor.MonitorServiceInterface
}

type ServerServiceInterface interface {
	StartServe(opts serve.ServeOptions, httpServer serve.HTTPServerInterface)
	SetupConsumers(ctx context.Context, opts ConsumersOptions) (TearDownFunc, error)
}

type ServerService struct{}

// Making sure that ServerService implements ServerServiceInterface
var _ ServerServiceInterface = (*ServerService)(nil)

func (s *ServerService) StartServe(opts serve.ServeOptions, httpServer serve.HTTPServerInterface) {
	err := serve.Serve(opts, httpServer)
	if err != nil {
		log.Fatalf("Error starting server: %s", err.Error())
	}
}

// diEventBrokerOptions maps the CLI broker options to the ones the dependency injection package expects.
func diEventBrokerOptions(opts cmdUtils.EventBrokerOptions) di.EventBrokerOptions {
	return di.EventBrokerOptions{
		EventBrokerType: opts.EventBrokerType,
		Kafka:           cmdUtils.KafkaConfig(opts),
		RabbitMQ:        cmdUtils.RabbitMQConfig(opts),
		ConsumerGroupID: opts.ConsumerGroupID,
	}
}

// SetupConsumers starts one consumer per topic of the provisioning workflow. The returned TearDownFunc stops them
// and closes their broker connections.
func (s *ServerService) SetupConsumers(ctx context.Context, opts ConsumersOptions) (TearDownFunc, error) {
	brokerOpts := diEventBrokerOptions(opts.EventBrokerOptions)
	producer, err := di.NewEventProducer(ctx, brokerOpts)
	if err != nil {
		return nil, fmt.Errorf("getting event producer: %w", err)
	}

	handlersByTopic := []struct {
		topic   string
		handler events.EventHandler
	}{
		{
			topic: events.TenantLifecycleTopic,
			handler: eventhandlers.NewTenantLifecycleEventHandler(eventhandlers.TenantLifecycleEventHandlerOptions{
				Codec:   opts.Codec,
				Service: opts.ProvisioningService,
			}),
		},
		{
			topic: events.TenantDatabaseProvisionedTopic,
			handler: eventhandlers.NewDatabaseProvisionedEventHandler(eventhandlers.DatabaseProvisionedEventHandlerOptions{
				Codec:   opts.Codec,
				Service: opts.ProvisioningService,
			}),
		},
		{
			topic: events.TenantRealmProvisionedTopic,
			handler: eventhandlers.NewRealmProvisionedEventHandler(eventhandlers.RealmProvisionedEventHandlerOptions{
				Codec:   opts.Codec,
				Service: opts.ProvisioningService,
			}),
		},
		{
			topic: events.TenantIdentityProviderTopic,
			handler: eventhandlers.NewIdentityProviderEventHandler(eventhandlers.IdentityProviderEventHandlerOptions{
				Codec:   opts.Codec,
				Service: opts.ProvisioningService,
			}),
		},
		{
			topic: events.TenantNotificationTopic,
			handler: eventhandlers.NewNotificationEventHandler(eventhandlers.NotificationEventHandlerOptions{
				Codec:    opts.Codec,
				Notifier: opts.Notifier,
			}),
		},
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	consumers := make([]events.Consumer, 0, len(handlersByTopic))
	tearDown := func() {
		cancel()
		for _, consumer := range consumers {
			if closeErr := consumer.Close(); closeErr != nil {
				log.Ctx(ctx).Errorf("closing consumer of topic %s: %v", consumer.Topic(), closeErr)
			}
		}
	}

	for _, h := range handlersByTopic {
		consumer, consumerErr := di.NewEventConsumer(ctx, brokerOpts, h.topic, h.handler)
		if consumerErr != nil {
			tearDown()
			return nil, fmt.Errorf("creating consumer of topic %s: %w", h.topic, consumerErr)
		}
		consumers = append(consumers, consumer)
	}

	consumerOpts := []events.EventConsumerOption{events.WithConsumerMonitor(opts.MonitorService)}
	if opts.EventBrokerOptions.MaxBackoff > 0 {
		consumerOpts = append(consumerOpts, events.WithMaxBackoff(opts.EventBrokerOptions.MaxBackoff))
	}
	for _, consumer := range consumers {
		ec := events.NewEventConsumer(consumer, producer, opts.CrashTrackerClient, consumerOpts...)
		go ec.Consume(consumeCtx)
	}

	return tearDown, nil
}

type provisioningOptions struct {
	MasterKey                 []byte
	PropagateCorrelationID    bool
	RealmRetryAttempts        int
	RealmRetryDelaySeconds    int
	IdempotencyLockSeconds    int
	IdempotencyTimeoutSeconds int
}

func (c *ServeCommand) Command(serverService ServerServiceInterface, monitorService monitor.MonitorServiceInterface) *cobra.Command {
	serveOpts := serve.ServeOptions{}
	provisioningOpts := provisioningOptions{}

	configOpts := config.ConfigOptions{
		{
			Name:        "port",
			Usage:       "Port where the server will be listening on",
			OptType:     types.Int,
			ConfigKey:   &serveOpts.Port,
			FlagDefault: 8000,
			Required:    true,
		},
		{
			Name:           "cors-allowed-origins",
			Usage:          `Cors URLs that are allowed to access the endpoints, separated by ","`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetCorsAllowedOrigins,
			ConfigKey:      &serveOpts.CorsAllowedOrigins,
			FlagDefault:    "*",
			Required:       true,
		},
		{
			Name:      "admin-account",
			Usage:     "The account used in the basic auth of the tenant administration endpoints",
			OptType:   types.String,
			ConfigKey: &serveOpts.AdminAccount,
			Required:  true,
		},
		{
			Name:      "admin-api-key",
			Usage:     "The API key used in the basic auth of the tenant administration endpoints",
			OptType:   types.String,
			ConfigKey: &serveOpts.AdminAPIKey,
			Required:  true,
		},
		{
			Name:           "envelope-master-key",
			Usage:          "Base64 encoded master key the per-tenant message encryption keys are derived from",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionMasterKey,
			ConfigKey:      &provisioningOpts.MasterKey,
			Required:       true,
		},
		{
			Name:        "propagate-correlation-id",
			Usage:       "Keep the correlation ID of the message being handled on the messages published while handling it, instead of generating a new one",
			OptType:     types.Bool,
			ConfigKey:   &provisioningOpts.PropagateCorrelationID,
			FlagDefault: false,
			Required:    false,
		},
		{
			Name:        "realm-retry-attempts",
			Usage:       "How many times a failed identity realm operation is attempted",
			OptType:     types.Int,
			ConfigKey:   &provisioningOpts.RealmRetryAttempts,
			FlagDefault: 3,
			Required:    true,
		},
		{
			Name:        "realm-retry-delay-seconds",
			Usage:       "The delay between identity realm attempts, doubled on every attempt",
			OptType:     types.Int,
			ConfigKey:   &provisioningOpts.RealmRetryDelaySeconds,
			FlagDefault: 1,
			Required:    true,
		},
		{
			Name:        "idempotency-lock-seconds",
			Usage:       "How long a post provisioning run holds the lock of its tenant",
			OptType:     types.Int,
			ConfigKey:   &provisioningOpts.IdempotencyLockSeconds,
			FlagDefault: 300,
			Required:    true,
		},
		{
			Name:        "idempotency-timeout-seconds",
			Usage:       "Upper bound for a post provisioning run. Keep it below idempotency-lock-seconds so the lock doesn't expire mid-run",
			OptType:     types.Int,
			ConfigKey:   &provisioningOpts.IdempotencyTimeoutSeconds,
			FlagDefault: 120,
			Required:    true,
		},
	}

	// crash tracker options
	crashTrackerOptions := crashtracker.CrashTrackerOptions{}
	configOpts = append(configOpts, cmdUtils.CrashTrackerTypeConfigOption(&crashTrackerOptions.CrashTrackerType))

	// metrics options
	metricOptions := monitor.MetricOptions{}
	configOpts = append(configOpts,
		&config.ConfigOption{
			Name:           "metrics-type",
			Usage:          `Metric monitor type. Options: "PROMETHEUS"`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionMetricType,
			ConfigKey:      &metricOptions.MetricType,
			FlagDefault:    "PROMETHEUS",
			Required:       true,
		})

	// notifier options
	notifierOptions := notification.NotifierOptions{}
	configOpts = append(configOpts, cmdUtils.NotifierTypeConfigOption(&notifierOptions.NotifierType))
	configOpts = append(configOpts, cmdUtils.AWSConfigOptions(&notifierOptions)...)

	// event broker options
	eventBrokerOptions := cmdUtils.EventBrokerOptions{}
	configOpts = append(configOpts, cmdUtils.EventBrokerConfigOptions(&eventBrokerOptions)...)

	// cache store options
	cacheOptions := cache.StoreOptions{}
	configOpts = append(configOpts, cmdUtils.CacheConfigOptions(&cacheOptions)...)

	// database pool options
	dbPoolOptions := cmdUtils.DBPoolOptions{}
	configOpts = append(configOpts, cmdUtils.DBPoolConfigOptions(&dbPoolOptions)...)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tenant control plane API and run the provisioning workflow",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmdUtils.PropagatePersistentPreRun(cmd, args)

			// Validate & ingest input parameters
			configOpts.Require()
			err := configOpts.SetValues()
			if err != nil {
				log.Fatalf("Error setting values of config options: %s", err.Error())
			}
			if err = eventBrokerOptions.Validate(); err != nil {
				log.Fatalf("Error validating event broker options: %s", err.Error())
			}

			// Initializing monitor service
			metricOptions.Environment = globalOptions.Environment
			metricOptions.ServiceName = globalOptions.ServiceName
			err = monitorService.Start(metricOptions)
			if err != nil {
				log.Fatalf("Error creating monitor service: %s", err.Error())
			}

			// Inject crash tracker options dependencies
			globalOptions.PopulateCrashTrackerOptions(&crashTrackerOptions)

			// Inject server dependencies
			serveOpts.Environment = globalOptions.Environment
			serveOpts.GitCommit = globalOptions.GitCommit
			serveOpts.Version = globalOptions.Version
			serveOpts.MonitorService = monitorService
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()

			// Setup the Crash Tracker client
			crashTrackerClient, err := di.NewCrashTracker(ctx, crashTrackerOptions)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating crash tracker client: %s", err.Error())
			}
			serveOpts.CrashTrackerClient = crashTrackerClient

			// Setup the tenants registry
			poolConfig := dbPoolOptions.PoolConfig()
			adminDBConnectionPool, err := di.NewAdminDBConnectionPool(ctx, di.DBConnectionPoolOptions{
				DatabaseURL: globalOptions.DatabaseURL,
				PoolConfig:  poolConfig,
			})
			if err != nil {
				log.Ctx(ctx).Fatalf("error getting admin DB connection pool: %v", err)
			}
			defer di.DeleteAndCloseInstanceByKey(ctx, di.AdminDBConnectionPoolInstanceName)
			serveOpts.AdminDBPool = adminDBConnectionPool

			tenantManager := tenant.NewManager(tenant.WithDatabase(adminDBConnectionPool))
			serveOpts.TenantManager = tenantManager

			// Setup the connection router with the tenants that are already routable
			opener := db.NewOpenerWithMetrics(poolConfig, monitorService)
			router := tenant.NewConnectionRouter(
				tenant.WithDefaultDataSource(adminDBConnectionPool),
				tenant.WithRouterMonitor(monitorService),
			)
			loaded, err := tenant.LoadRoutes(ctx, router, tenantManager, opener)
			if err != nil {
				log.Ctx(ctx).Fatalf("error loading tenant routes: %v", err)
			}
			log.Ctx(ctx).Infof("Loaded %d tenant routes", loaded)
			defer closeTenantPools(ctx, router)
			serveOpts.Router = router

			// Setup the event producer and the envelope codec
			codecOpts := []events.CodecOption{}
			if provisioningOpts.PropagateCorrelationID {
				codecOpts = append(codecOpts, events.WithCorrelationPropagation())
			}
			codec, err := events.NewCodec(provisioningOpts.MasterKey, globalOptions.ServiceName, codecOpts...)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating envelope codec: %v", err)
			}

			producer, err := di.NewEventProducer(ctx, diEventBrokerOptions(eventBrokerOptions))
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating event producer: %v", err)
			}
			defer producer.Close(ctx)
			serveOpts.Producer = producer

			publisher, err := events.NewPublisher(codec, producer)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating event publisher: %v", err)
			}

			// Setup the idempotency guard and the revocation cache
			store, err := di.NewCacheStore(ctx, cacheOptions)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating cache store: %v", err)
			}
			defer di.DeleteAndCloseInstanceByKey(ctx, di.CacheStoreInstanceName)
			serveOpts.Cache = store

			guard, err := idempotency.NewGuard(store,
				idempotency.WithLockTTL(time.Duration(provisioningOpts.IdempotencyLockSeconds)*time.Second),
				idempotency.WithTimeout(time.Duration(provisioningOpts.IdempotencyTimeoutSeconds)*time.Second),
				idempotency.WithMonitor(monitorService),
			)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating idempotency guard: %v", err)
			}

			serveOpts.Revocations, err = revocation.NewCache(store, revocation.WithMonitor(monitorService))
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating revocation cache: %v", err)
			}

			// Setup the provisioning workflow
			databaseProvisioner, err := provisioning.NewSchemaProvisioner(adminDBConnectionPool, tenantManager)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating database provisioner: %v", err)
			}
			realmProvisioner, err := provisioning.NewRetryingRealmProvisioner(provisioning.DryRunRealmProvisioner{},
				provisioning.WithRetryAttempts(uint(provisioningOpts.RealmRetryAttempts)),
				provisioning.WithRetryDelay(time.Duration(provisioningOpts.RealmRetryDelaySeconds)*time.Second),
			)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating realm provisioner: %v", err)
			}
			transitioner, err := provisioning.NewStatusTransitioner(tenantManager, provisioning.WithTransitionMonitor(monitorService))
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating status transitioner: %v", err)
			}
			provisioningService, err := provisioning.NewService(provisioning.ServiceOptions{
				TenantManager:       tenantManager,
				Transitioner:        transitioner,
				DatabaseProvisioner: databaseProvisioner,
				RealmProvisioner:    realmProvisioner,
				Publisher:           publisher,
				Router:              router,
				Opener:              opener,
				Guard:               guard,
			})
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating provisioning service: %v", err)
			}
			serveOpts.ProvisioningService = provisioningService

			notifier, err := di.NewNotifier(ctx, notifierOptions)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating notifier: %v", err)
			}

			// Event consumers (background)
			tearDownFunc, err := serverService.SetupConsumers(ctx, ConsumersOptions{
				EventBrokerOptions:  eventBrokerOptions,
				Codec:               codec,
				ProvisioningService: provisioningService,
				Notifier:            notifier,
				CrashTrackerClient:  crashTrackerClient,
				MonitorService:      monitorService,
			})
			if err != nil {
				log.Ctx(ctx).Fatalf("error setting up consumers: %v", err)
			}
			defer tearDownFunc()

			// Starting Application Server
			log.Ctx(ctx).Info("Starting Application Server...")
			serverService.StartServe(serveOpts, &serve.HTTPServer{})
		},
	}
	err := configOpts.Init(cmd)
	if err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}

// closeTenantPools deregisters every tenant route and closes its pool. The default data source is the admin pool,
// which is closed by its owner.
func closeTenantPools(ctx context.Context, router *tenant.ConnectionRouter) {
	for _, realm := range router.Realms() {
		pool, err := router.Deregister(realm)
		if err != nil {
			log.Ctx(ctx).Errorf("deregistering tenant %s: %v", realm, err)
			continue
		}
		if err = db.ClosePool(ctx, pool); err != nil {
			log.Ctx(ctx).Errorf("closing connection pool of tenant %s: %v", realm, err)
		}
	}
}
