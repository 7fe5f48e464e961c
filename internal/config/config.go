package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	ServiceName string

	Server            ServerConfig
	Logging           LoggingConfig
	Redis             RedisConfig
	Kafka             KafkaConfig
	Clickhouse        ClickhouseConfig
	OTP               OTPConfig
	EmailVerification EmailVerificationConfig
}

type ServerConfig struct {
	Port            int
	TLSPort         int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	EnableTLS       bool
	AutoCert        bool
	Domain          string
	CertFile        string
	KeyFile         string
	AutoCertDir     string
	Email           string
	AllowedOrigins  []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// RedisConfig controls the shared record store. When disabled the service keeps
// codes and tokens in process memory.
type RedisConfig struct {
	Enabled   bool
	URL       string
	Password  string
	DB        int
	PoolSize  int
	Retention time.Duration

	TLSCAFile   string
	TLSCertFile string
	TLSKeyFile  string
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	OTPTopic   string
	EmailTopic string
	TLS        bool
}

type ClickhouseConfig struct {
	Enabled       bool
	URL           string
	Username      string
	Password      string
	Database      string
	Table         string
	BatchSize     int
	FlushInterval time.Duration
	CAFile        string
}

type OTPConfig struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int
	// ExposeCode returns the generated code in API responses. Demo builds only.
	ExposeCode bool
	Shards     int
}

type EmailVerificationConfig struct {
	TokenTTL time.Duration
	BaseURL  string
}

var (
	ErrInvalidCodeLength  = errors.New("otp code length must be between 4 and 10")
	ErrInvalidTTL         = errors.New("ttl must be positive")
	ErrInvalidMaxAttempts = errors.New("otp max attempts must be at least 1")
	ErrMissingBrokers     = errors.New("kafka enabled without brokers")
)

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "development")

	return &Config{
		Environment: env,
		ServiceName: getEnv("SERVICE_NAME", "gomate-auth"),
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 8080),
			TLSPort:         getEnvInt("SERVER_TLS_PORT", 8443),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			EnableTLS:       getEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:        getEnvBool("SERVER_AUTO_CERT", false),
			Domain:          getEnv("SERVER_DOMAIN", "localhost"),
			CertFile:        getEnv("SERVER_CERT_FILE", ""),
			KeyFile:         getEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:     getEnv("SERVER_AUTO_CERT_DIR", "./certs"),
			Email:           getEnv("SERVER_ACME_EMAIL", ""),
			AllowedOrigins:  getEnvSlice("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", defaultLogFormat(env)),
		},
		Redis: RedisConfig{
			Enabled:   getEnvBool("REDIS_ENABLED", false),
			URL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			PoolSize:  getEnvInt("REDIS_POOL_SIZE", 20),
			Retention: getEnvDuration("REDIS_RECORD_RETENTION", 10*time.Minute),

			TLSCAFile:   getEnv("REDIS_TLS_CA_FILE", "/app/certs/ca.crt"),
			TLSCertFile: getEnv("REDIS_TLS_CERT_FILE", "/app/certs/redis.crt"),
			TLSKeyFile:  getEnv("REDIS_TLS_KEY_FILE", "/app/certs/redis.key"),
		},
		Kafka: KafkaConfig{
			Enabled:    getEnvBool("KAFKA_ENABLED", false),
			Brokers:    getEnvSlice("KAFKA_BROKERS", nil),
			OTPTopic:   getEnv("KAFKA_OTP_TOPIC", "gomate.otp.requested"),
			EmailTopic: getEnv("KAFKA_EMAIL_TOPIC", "gomate.email.verification_requested"),
			TLS:        getEnvBool("KAFKA_TLS", false),
		},
		Clickhouse: ClickhouseConfig{
			Enabled:       getEnvBool("CLICKHOUSE_ENABLED", false),
			URL:           getEnv("CLICKHOUSE_URL", "localhost:9000"),
			Username:      getEnv("CLICKHOUSE_USERNAME", "default"),
			Password:      getEnv("CLICKHOUSE_PASSWORD", ""),
			Database:      getEnv("CLICKHOUSE_DATABASE", "gomate"),
			Table:         getEnv("CLICKHOUSE_AUDIT_TABLE", "otp_events"),
			BatchSize:     getEnvInt("CLICKHOUSE_BATCH_SIZE", 500),
			FlushInterval: getEnvDuration("CLICKHOUSE_FLUSH_INTERVAL", 2*time.Second),
			CAFile:        getEnv("CLICKHOUSE_CA_FILE", ""),
		},
		OTP: OTPConfig{
			CodeLength:  getEnvInt("OTP_CODE_LENGTH", 6),
			TTL:         getEnvDuration("OTP_TTL", 5*time.Minute),
			MaxAttempts: getEnvInt("OTP_MAX_ATTEMPTS", 3),
			ExposeCode:  getEnvBool("OTP_EXPOSE_CODE", env != "production"),
			Shards:      getEnvInt("OTP_MEMORY_SHARDS", 32),
		},
		EmailVerification: EmailVerificationConfig{
			TokenTTL: getEnvDuration("EMAIL_VERIFICATION_TTL", 24*time.Hour),
			BaseURL:  getEnv("EMAIL_VERIFICATION_BASE_URL", "http://localhost:8086/verify-email"),
		},
	}
}

// Validate reports the first setting the service cannot run with.
func (c *Config) Validate() error {
	if c.OTP.CodeLength < 4 || c.OTP.CodeLength > 10 {
		return fmt.Errorf("%w: got %d", ErrInvalidCodeLength, c.OTP.CodeLength)
	}
	if c.OTP.TTL <= 0 {
		return fmt.Errorf("otp: %w", ErrInvalidTTL)
	}
	if c.OTP.MaxAttempts < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxAttempts, c.OTP.MaxAttempts)
	}
	if c.EmailVerification.TokenTTL <= 0 {
		return fmt.Errorf("email verification: %w", ErrInvalidTTL)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return ErrMissingBrokers
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func defaultLogFormat(env string) string {
	if env == "production" {
		return "json"
	}
	return "console"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvSlice(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
