package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Env         string            `mapstructure:"env"`
	Port        int               `mapstructure:"port"`
	ServiceName string            `mapstructure:"service_name"`
	Currency    string            `mapstructure:"currency"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Events      EventsConfig      `mapstructure:"events"`
	Loki        LokiConfig        `mapstructure:"loki"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Client      ClientConfig      `mapstructure:"client"`
}

type RateLimitConfig struct {
	Limit         int           `mapstructure:"limit"`
	Period        time.Duration `mapstructure:"period"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type IdempotencyConfig struct {
	Backend       string        `mapstructure:"backend"`
	// Retention is the replay window. A committed reference is rejected as a
	// duplicate for this long; a replay arriving later is treated as a new
	// payment and debits again. Zero keeps references for the life of the
	// process (memory) or forever (Redis).
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	RedisAddr     string        `mapstructure:"redis_addr"`
}

type AuthConfig struct {
	JWTSecret string            `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration     `mapstructure:"token_ttl"`
	Clients   map[string]string `mapstructure:"clients"`
}

type EventsConfig struct {
	Buffer          int      `mapstructure:"buffer"`
	KafkaBrokers    []string `mapstructure:"kafka_brokers"`
	KafkaTopic      string   `mapstructure:"kafka_topic"`
	MongoURI        string   `mapstructure:"mongo_uri"`
	MongoDatabase   string   `mapstructure:"mongo_database"`
	MongoCollection string   `mapstructure:"mongo_collection"`
}

type LokiConfig struct {
	URL string `mapstructure:"url"`
}

type TracingConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// ClientConfig drives the paygate client commands.
type ClientConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("port", 3000)
	v.SetDefault("service_name", "payments-api")
	v.SetDefault("currency", "ZAR")

	v.SetDefault("rate_limit.limit", 100)
	v.SetDefault("rate_limit.period", 15*time.Minute)
	v.SetDefault("rate_limit.sweep_interval", 30*time.Second)

	v.SetDefault("idempotency.backend", BackendMemory)
	v.SetDefault("idempotency.retention", 24*time.Hour)
	v.SetDefault("idempotency.sweep_interval", time.Minute)
	v.SetDefault("idempotency.redis_addr", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("events.buffer", 256)
	v.SetDefault("events.kafka_brokers", []string{})
	v.SetDefault("events.kafka_topic", "payments.completed")
	v.SetDefault("events.mongo_uri", "")
	v.SetDefault("events.mongo_database", "payments")
	v.SetDefault("events.mongo_collection", "completed_payments")

	v.SetDefault("loki.url", "")
	v.SetDefault("tracing.endpoint", "")

	v.SetDefault("client.base_url", "http://localhost:3000")
	v.SetDefault("client.client_id", "")
	v.SetDefault("client.client_secret", "")
	v.SetDefault("client.timeout", 10*time.Second)
}

// Load reads defaults, then the optional YAML file at path, then environment
// variables prefixed with PAYGATE_ (e.g. PAYGATE_RATE_LIMIT_LIMIT). PORT and
// OTEL_EXPORTER_OTLP_ENDPOINT are honoured unprefixed.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("PAYGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("port", "PAYGATE_PORT", "PORT")
	_ = v.BindEnv("tracing.endpoint", "PAYGATE_TRACING_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("auth.clients", "PAYGATE_AUTH_CLIENTS")

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToClientsHookFunc(),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stringToClientsHookFunc decodes "id:secret,id2:secret2" into a client map,
// so the registry can come from a single environment variable.
func stringToClientsHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(map[string]string{}) {
			return data, nil
		}
		clients := map[string]string{}
		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return clients, nil
		}
		for _, pair := range strings.Split(raw, ",") {
			id, secret, ok := strings.Cut(strings.TrimSpace(pair), ":")
			if !ok || id == "" || secret == "" {
				return nil, fmt.Errorf("invalid client entry %q, expected id:secret", pair)
			}
			clients[id] = secret
		}
		return clients, nil
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.RateLimit.Limit < 0 {
		errs = append(errs, errors.New("rate_limit.limit must not be negative"))
	}
	if c.RateLimit.Period <= 0 {
		errs = append(errs, errors.New("rate_limit.period must be positive"))
	}
	if c.Idempotency.Retention < 0 {
		errs = append(errs, errors.New("idempotency.retention must not be negative"))
	}
	switch c.Idempotency.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Idempotency.RedisAddr == "" {
			errs = append(errs, errors.New("idempotency.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown idempotency backend %q", c.Idempotency.Backend))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Env == EnvProduction && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required in production"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
