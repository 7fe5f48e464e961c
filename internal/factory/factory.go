package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gomate-auth/internal/audit"
	"gomate-auth/internal/client"
	"gomate-auth/internal/clock"
	"gomate-auth/internal/config"
	"gomate-auth/internal/notification"
	"gomate-auth/internal/otp"
	redisrepo "gomate-auth/internal/repository/redis"
	"gomate-auth/internal/service"
	"gomate-auth/internal/tls"
	"gomate-auth/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager
	clock      clock.Clocker
	logger     *zap.Logger

	// Clients
	redisClient      *client.RedisClient
	kafkaProducer    *client.KafkaProducer
	clickhouseClient *client.ClickHouseClient

	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory loads configuration from the environment and builds everything.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return New(cfg)
}

// New builds the dependencies described by cfg. Outside production a backend
// that fails to come up is replaced by its in-process fallback.
func New(cfg *config.Config) (*Factory, error) {
	factory := &Factory{
		config: cfg,
		clock:  clock.New(),
		logger: util.Named("factory"),
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		factory.tlsManager = tls.NewTLSManager(cfg.Server)
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	factory.serviceFactory = service.NewServiceFactory(cfg, factory.dependencies(), util.Named("service"))

	factory.logger.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("redis", factory.redisClient != nil),
		util.Bool("kafka", factory.kafkaProducer != nil),
		util.Bool("clickhouse", factory.clickhouseClient != nil),
	)

	return factory, nil
}

// initializeClients connects the enabled backends concurrently.
func (f *Factory) initializeClients() error {
	var (
		g          errgroup.Group
		mu         sync.Mutex
		initErrors []error
	)

	record := func(err error) {
		mu.Lock()
		initErrors = append(initErrors, err)
		mu.Unlock()
	}

	if f.config.Redis.Enabled {
		g.Go(func() error {
			c, err := client.NewRedisClient(f.config, util.Named("redis"))
			if err != nil {
				record(fmt.Errorf("redis: %w", err))
				return nil
			}
			f.redisClient = c
			return nil
		})
	}

	if f.config.Kafka.Enabled {
		g.Go(func() error {
			p, err := client.NewKafkaProducer(f.config, util.Named("kafka"))
			if err != nil {
				record(fmt.Errorf("kafka: %w", err))
				return nil
			}
			f.kafkaProducer = p
			return nil
		})
	}

	if f.config.Clickhouse.Enabled {
		g.Go(func() error {
			c, err := client.NewClickHouseClient(f.config, util.Named("clickhouse"))
			if err != nil {
				record(fmt.Errorf("clickhouse: %w", err))
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := c.EnsureAuditTable(ctx); err != nil {
				_ = c.Close()
				record(fmt.Errorf("clickhouse: %w", err))
				return nil
			}
			f.clickhouseClient = c
			return nil
		})
	}

	_ = g.Wait()

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			f.closeClients()
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			f.logger.Warn("Service initialization warning, using in-process fallback", util.ErrorField(err))
		}
	}

	return nil
}

// dependencies picks a concrete implementation for every ledger and verifier
// collaborator from the clients that came up.
func (f *Factory) dependencies() service.Dependencies {
	deps := service.Dependencies{Clock: f.clock, Events: otp.NopSink}

	if f.redisClient != nil {
		deps.OTPStore = redisrepo.NewOTPStore(f.redisClient, f.clock, f.config.Redis.Retention)
		deps.Tokens = redisrepo.NewEmailTokenStore(f.redisClient, f.clock)
	} else {
		deps.OTPStore = otp.NewMemoryStore(f.config.OTP.Shards)
		deps.Tokens = service.NewMemoryTokenStore()
	}

	var channels notification.Multi
	if f.kafkaProducer != nil {
		channels = append(channels, notification.NewKafkaNotifier(
			f.kafkaProducer, f.config.Kafka.OTPTopic, f.config.Kafka.EmailTopic, f.clock))
	}
	// The log channel prints codes, so production only uses it when nothing
	// else can deliver.
	if len(channels) == 0 || !f.config.IsProduction() {
		channels = append(channels, notification.NewLogNotifier(util.Named("mailer")))
	}
	deps.Notifier = channels
	deps.Links = channels

	if f.clickhouseClient != nil {
		deps.Events = audit.NewClickHouseSink(
			f.clickhouseClient,
			f.config.Clickhouse.Table,
			f.config.Clickhouse.BatchSize,
			f.config.Clickhouse.FlushInterval,
			util.Named("audit"),
		)
	}

	return deps
}

// ==============================
// Health Checks
// ==============================

// HealthCheck reports every enabled backend that is missing or failing.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.config.Redis.Enabled {
		if f.redisClient == nil {
			healthErrors["redis"] = fmt.Errorf("redis client not initialized")
		} else if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}

	if f.config.Kafka.Enabled {
		if f.kafkaProducer == nil {
			healthErrors["kafka"] = fmt.Errorf("kafka producer not initialized")
		} else if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	if f.config.Clickhouse.Enabled {
		if f.clickhouseClient == nil {
			healthErrors["clickhouse"] = fmt.Errorf("clickhouse client not initialized")
		} else if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	return len(f.HealthCheck(ctx)) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		f.logger.Info("Shutting down factory...")

		// Flush buffered audit events before the ClickHouse connection goes.
		if f.serviceFactory != nil {
			f.serviceFactory.Cleanup()
		}

		f.closeClients()

		util.Sync()
		f.logger.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) closeClients() {
	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.Close(); err != nil {
			f.logger.Error("Failed to close ClickHouse client", util.ErrorField(err))
		}
	}

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.Close(); err != nil {
			f.logger.Error("Failed to close Kafka producer", util.ErrorField(err))
		}
	}

	if f.redisClient != nil {
		if err := f.redisClient.Close(); err != nil {
			f.logger.Error("Failed to close Redis client", util.ErrorField(err))
		}
	}
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	return f.serviceFactory
}
