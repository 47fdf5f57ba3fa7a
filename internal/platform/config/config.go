package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"

	pstrings "markers/pkg/platform/strings"
)

// Store backends for marker records.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	LogLevel        string
	Store           string
	ProgramID       string
	ShutdownTimeout time.Duration
	TxTimeout       time.Duration
	Postgres        PostgresConfig
	Redis           RedisConfig
	Kafka           KafkaConfig
	Signer          SignerConfig
	RateLimit       RateLimitConfig
	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers name the client. Empty means the connecting peer is the client.
	TrustedProxies []netip.Prefix
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the Kafka audit sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// SignerConfig bounds the signature assertions accepted on mutating routes.
type SignerConfig struct {
	Audience string
	MaxAge   time.Duration
}

// RateLimitConfig caps mutating requests per client IP. Requests <= 0 disables it.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// defaultProgramID namespaces derived addresses when none is configured.
const defaultProgramID = "7GAzi1mmd9CT3kgV8vL1RbvQJyTNYRjYfuJ7rV42vVoi"

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("store", StoreMemory)
	v.SetDefault("program_id", defaultProgramID)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("tx_timeout", 5*time.Second)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "marker-events")

	v.SetDefault("signer.audience", "markers")
	v.SetDefault("signer.max_age", 5*time.Minute)

	v.SetDefault("rate_limit.requests", 60)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("trusted_proxies", "")
}

// FromEnv builds a Server config from MARKER_* environment variables and an
// optional YAML file named by MARKER_CONFIG_FILE. Nested keys map to
// underscores, e.g. postgres.dsn is MARKER_POSTGRES_DSN.
func FromEnv() (Server, error) {
	v := viper.New()
	v.SetEnvPrefix("MARKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Server{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Server{
		Addr:            v.GetString("addr"),
		LogLevel:        v.GetString("log_level"),
		Store:           strings.ToLower(v.GetString("store")),
		ProgramID:       v.GetString("program_id"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		TxTimeout:       v.GetDuration("tx_timeout"),
		Postgres: PostgresConfig{
			DSN:             v.GetString("postgres.dsn"),
			MaxOpenConns:    v.GetInt("postgres.max_open_conns"),
			MaxIdleConns:    v.GetInt("postgres.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("postgres.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
		},
		Kafka: KafkaConfig{
			Brokers: pstrings.SplitList(v.GetString("kafka.brokers"), ","),
			Topic:   v.GetString("kafka.topic"),
		},
		Signer: SignerConfig{
			Audience: v.GetString("signer.audience"),
			MaxAge:   v.GetDuration("signer.max_age"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("rate_limit.requests"),
			Window:   v.GetDuration("rate_limit.window"),
		},
	}
	proxies, err := ParseTrustedProxies(pstrings.SplitList(v.GetString("trusted_proxies"), ","))
	if err != nil {
		return Server{}, err
	}
	cfg.TrustedProxies = proxies
	return cfg, cfg.Validate()
}

// ParseTrustedProxies reads CIDR prefixes. A bare address is a single-host prefix.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, e := range entries {
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Validate checks cross-field requirements.
func (c Server) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("store %q requires MARKER_POSTGRES_DSN", c.Store)
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("store %q requires MARKER_REDIS_URL", c.Store)
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Signer.Audience == "" {
		return fmt.Errorf("signer audience is required")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	return nil
}
