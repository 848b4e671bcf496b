package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	Ollama    OllamaConfig
	Retrieval RetrievalConfig
	Memory    MemoryConfig
	NATS      NATSConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	SegmentsTable  string
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// RedisConfig configures the conversation-memory backend. An empty Host
// means Redis is not used and memory falls back to the in-process store.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type OllamaConfig struct {
	URL          string
	Model        string
	EmbedModel   string
	Timeout      time.Duration // generation first-byte deadline
	EmbedTimeout time.Duration // independent embedding deadline
}

type RetrievalConfig struct {
	ContextResults  int      // breadth for context injection
	EvidenceResults int      // breadth for plain evidence listing
	MinScore        float64  // score floor for context injection
	MetadataKeys    []string // evidence metadata whitelist
}

type MemoryConfig struct {
	MaxMessages int
	TTL         time.Duration
}

// NATSConfig configures exchange-event publishing. An empty URL disables it.
type NATSConfig struct {
	URL string
}

func (c NATSConfig) Enabled() bool {
	return c.URL != ""
}

type RateLimitConfig struct {
	MaxRequests int
	WindowSec   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			SegmentsTable:  k.String("db.segments.table"),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		Ollama: OllamaConfig{
			URL:        k.String("ollama.url"),
			Model:      k.String("ollama.model"),
			EmbedModel: k.String("ollama.embed.model"),
		},
		Retrieval: RetrievalConfig{
			ContextResults:  k.Int("retrieval.context.results"),
			EvidenceResults: k.Int("retrieval.evidence.results"),
			MinScore:        k.Float64("retrieval.min.score"),
			MetadataKeys:    k.Strings("retrieval.metadata.keys"),
		},
		Memory: MemoryConfig{
			MaxMessages: k.Int("memory.max.messages"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: k.Int("ratelimit.max.requests"),
			WindowSec:   k.Int("ratelimit.window.sec"),
		},
		CORS: CORSConfig{
			AllowedOrigins: k.Strings("cors.allowed.origins"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "claire"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "claire"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.SegmentsTable == "" {
		cfg.DB.SegmentsTable = "segments"
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "db/migrations"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = "http://localhost:11434"
	}
	if cfg.Ollama.Model == "" {
		cfg.Ollama.Model = "llama3.2"
	}
	if cfg.Ollama.EmbedModel == "" {
		cfg.Ollama.EmbedModel = "nomic-embed-text"
	}
	if cfg.Retrieval.ContextResults == 0 {
		cfg.Retrieval.ContextResults = 3
	}
	if cfg.Retrieval.EvidenceResults == 0 {
		cfg.Retrieval.EvidenceResults = 10
	}
	if cfg.Retrieval.MinScore == 0 {
		cfg.Retrieval.MinScore = 0.55
	}
	if len(cfg.Retrieval.MetadataKeys) == 0 {
		cfg.Retrieval.MetadataKeys = []string{"title", "index", "url"}
	}
	if cfg.Memory.MaxMessages == 0 {
		cfg.Memory.MaxMessages = 10
	}
	if cfg.RateLimit.MaxRequests == 0 {
		cfg.RateLimit.MaxRequests = 30
	}
	if cfg.RateLimit.WindowSec == 0 {
		cfg.RateLimit.WindowSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.Ollama.Timeout, err = parseDuration(k.String("ollama.timeout"), "120s")
	if err != nil {
		return nil, fmt.Errorf("parsing ollama timeout: %w", err)
	}
	cfg.Ollama.EmbedTimeout, err = parseDuration(k.String("ollama.embed.timeout"), "30s")
	if err != nil {
		return nil, fmt.Errorf("parsing ollama embed timeout: %w", err)
	}
	cfg.Memory.TTL, err = parseDuration(k.String("memory.ttl"), "1h")
	if err != nil {
		return nil, fmt.Errorf("parsing memory ttl: %w", err)
	}

	return cfg, nil
}

func parseDuration(s, fallback string) (time.Duration, error) {
	if s == "" {
		s = fallback
	}
	return time.ParseDuration(s)
}
