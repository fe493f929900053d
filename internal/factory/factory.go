// Package factory manages the lifecycle of all application dependencies.
// Every backend has an in-process fallback so a development setup runs
// with nothing but the binary.
package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"telemetry-service/internal/agent"
	"telemetry-service/internal/client"
	"telemetry-service/internal/config"
	"telemetry-service/internal/correlation"
	"telemetry-service/internal/hashing"
	"telemetry-service/internal/ingest"
	"telemetry-service/internal/notify"
	"telemetry-service/internal/ratelimit"
	"telemetry-service/internal/repository"
	chrepo "telemetry-service/internal/repository/clickhouse"
	"telemetry-service/internal/repository/memory"
	redisrepo "telemetry-service/internal/repository/redis"
	"telemetry-service/internal/repository/scylla"
	"telemetry-service/internal/reputation"
	"telemetry-service/internal/score"
	"telemetry-service/internal/search"
	"telemetry-service/internal/secrets"
	"telemetry-service/internal/tenant"
	"telemetry-service/internal/util"
)

// Factory creates and owns all application dependencies
type Factory struct {
	config *config.Config

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Repositories
	events        repository.EventRepository
	incidents     repository.IncidentRepository
	batches       repository.BatchRepository
	tenants       repository.TenantRepository
	agents        repository.AgentRepository
	notifications repository.NotificationRepository
	reputationOps repository.ReputationRepository

	// Services
	limiter       ratelimit.Limiter
	resolver      *reputation.Resolver
	engine        *correlation.Engine
	dispatcher    *notify.Dispatcher
	ingestService *ingest.Service
	scoreService  *score.Service
	tenantService *tenant.Service
	agentService  *agent.Service
	hasher        *hashing.Hasher

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory loads configuration and initializes all dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	factory.initializeRepositories()
	if err := factory.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)

	return factory, nil
}

// initializeClients connects the configured backends with health
// checks. In development a missing backend is a warning; its consumers
// fall back to in-process implementations.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	if f.config.Redis.URL != "" {
		if c, err := client.NewRedisClient(f.config, util.Get()); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
		} else {
			f.redisClient = c
			if err := f.redisClient.HealthCheck(ctx); err != nil {
				initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
			} else {
				util.Info("Redis client initialized and healthy")
			}
		}
	}

	if len(f.config.Scylla.Nodes) > 0 {
		if c, err := scylla.NewScyllaClient(f.config, util.Get()); err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
		} else {
			f.scyllaClient = c
			if err := f.scyllaClient.HealthCheck(); err != nil {
				initErrors = append(initErrors, fmt.Errorf("scylla health check: %w", err))
			} else {
				util.Info("ScyllaDB client initialized and healthy")
			}
		}
	}

	if len(f.config.Kafka.Brokers) > 0 {
		if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
			util.Warn("Kafka producer initialization failed - notifications fall back to logging", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}

	if f.config.Elastic.URL != "" {
		if c, err := client.NewElasticsearchClient(f.config, util.Get()); err != nil {
			initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
		} else {
			f.esClient = c
		}
	}

	if f.config.Clickhouse.URL != "" {
		if c, err := client.NewClickHouseClient(f.config, util.Get()); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
		} else {
			f.clickhouseClient = c
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

func (f *Factory) initializeRepositories() {
	if f.clickhouseClient != nil {
		f.events = chrepo.NewEventRepository(f.clickhouseClient, f.config.Clickhouse.Table, util.Get())
	} else {
		util.Warn("ClickHouse unavailable - using in-memory event store")
		f.events = memory.NewEventStore()
	}

	if f.scyllaClient != nil {
		f.incidents = scylla.NewIncidentRepository(f.scyllaClient, util.Get())
		f.batches = scylla.NewBatchRepository(f.scyllaClient, util.Get())
		f.tenants = scylla.NewTenantRepository(f.scyllaClient, util.Get())
		f.agents = scylla.NewAgentRepository(f.scyllaClient, util.Get())
		f.notifications = scylla.NewNotificationRepository(f.scyllaClient, util.Get())
	} else {
		util.Warn("ScyllaDB unavailable - using in-memory row stores")
		f.incidents = memory.NewIncidentStore()
		f.batches = memory.NewBatchStore()
		f.tenants = memory.NewTenantStore()
		f.agents = memory.NewAgentStore()
		f.notifications = memory.NewNotificationStore()
	}

	if f.esClient != nil {
		indexer := search.NewIndexer(f.esClient, f.config.Elastic.IncidentIndex, util.Get())
		f.incidents = search.NewIndexingRepository(f.incidents, indexer, util.Get())
	}

	if f.redisClient != nil {
		f.reputationOps = redisrepo.NewReputationCache(f.redisClient)
		f.limiter = ratelimit.NewRedisLimiter(f.redisClient)
	} else {
		f.reputationOps = memory.NewReputationStore()
		f.limiter = ratelimit.NewMemoryLimiter()
	}
}

func (f *Factory) initializeServices() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	f.hasher = hashing.NewHasher(hashing.DefaultParams())

	secretResolver, err := secrets.NewResolver(ctx, &f.config.KMS, util.Get())
	if err != nil {
		return fmt.Errorf("failed to initialize secret resolver: %w", err)
	}

	sources := []reputation.Source{
		reputation.NewAbuseIPDBSource(secretResolver.ResolveOrWarn(ctx, "abuseipdb", f.config.Reputation.AbuseIPDBKey)),
		reputation.NewIPInfoSource(secretResolver.ResolveOrWarn(ctx, "ipinfo", f.config.Reputation.IPInfoKey)),
		reputation.NewShodanSource(secretResolver.ResolveOrWarn(ctx, "shodan", f.config.Reputation.ShodanKey)),
	}
	f.resolver = reputation.NewResolver(f.reputationOps, sources, f.config.Reputation.TTL, util.Get())

	window := time.Duration(f.config.Correlation.WindowMinutes) * time.Minute
	f.engine = correlation.NewEngine(f.events, f.incidents, window, util.Get())

	var sink notify.Sink
	if f.kafkaProducer != nil {
		sink = notify.NewKafkaSink(f.kafkaProducer, f.config.Kafka.NotificationsTopic)
	} else {
		sink = notify.NewLogSink(util.Get())
	}
	f.dispatcher = notify.NewDispatcher(sink, f.notifications, util.Get())

	f.ingestService = ingest.NewService(
		f.limiter,
		f.batches,
		f.events,
		f.engine,
		f.resolver,
		f.dispatcher,
		f.config.Ingest.RateLimitPerMin,
		f.config.Ingest.MaxBatchEvents,
		util.Get(),
	)

	f.scoreService = score.NewService(f.incidents, f.config.Score.WindowDays)
	f.tenantService = tenant.NewService(f.tenants, f.hasher, util.Get())
	f.agentService = agent.NewService(f.agents, util.Get())

	return nil
}

// HealthCheck reports per-backend health for the configured clients
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	}
	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}
	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}
	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}
		if f.esClient != nil {
			f.esClient.Close()
		}
		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}
		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}
		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) IngestService() *ingest.Service {
	return f.ingestService
}

func (f *Factory) ScoreService() *score.Service {
	return f.scoreService
}

func (f *Factory) TenantService() *tenant.Service {
	return f.tenantService
}

func (f *Factory) AgentService() *agent.Service {
	return f.agentService
}

func (f *Factory) IncidentRepository() repository.IncidentRepository {
	return f.incidents
}
