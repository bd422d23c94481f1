// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Corpus, Index, Search, Scoring, Cache, Redis, Kafka, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Cache    CacheConfig    `yaml:"cache"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
	Watch    WatchConfig    `yaml:"watch"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the number of requests per minute each client address
	// may make. Zero disables limiting.
	RateLimit   int      `yaml:"rateLimit"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// CorpusConfig selects where raw documents come from.
type CorpusConfig struct {
	// Backend is "dir" or "postgres".
	Backend    string   `yaml:"backend"`
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
	Table      string   `yaml:"table"`
}

// IndexConfig controls snapshot lifetime and per-document limits.
type IndexConfig struct {
	// TTL is the maximum snapshot age before a query triggers a rebuild.
	// Zero or negative disables expiry.
	TTL                 time.Duration `yaml:"ttl"`
	MaxTokens           int           `yaml:"maxTokens"`
	EmbeddingDimensions int           `yaml:"embeddingDimensions"`
}

// SearchConfig controls query validation, result limits and timeouts.
type SearchConfig struct {
	MinQueryLength      int           `yaml:"minQueryLength"`
	MaxQueryLength      int           `yaml:"maxQueryLength"`
	DefaultLimit        int           `yaml:"defaultLimit"`
	MaxResults          int           `yaml:"maxResults"`
	MaxBodyChars        int           `yaml:"maxBodyChars"`
	ConfidenceThreshold int           `yaml:"confidenceThreshold"`
	Timeout             time.Duration `yaml:"timeout"`
}

// ScoringConfig holds every tuning constant of the relevance scorer. Raw
// scores are the weighted sum of all rules; the normalized score is
// raw / Scale * 100 clamped to [0, 100].
type ScoringConfig struct {
	BM25K1 float64 `yaml:"bm25K1"`
	BM25B  float64 `yaml:"bm25B"`

	OriginalTermBoost  float64 `yaml:"originalTermBoost"`
	ExpansionTermBoost float64 `yaml:"expansionTermBoost"`

	BM25Weight           float64 `yaml:"bm25Weight"`
	CosineWeight         float64 `yaml:"cosineWeight"`
	EmbeddingWeight      float64 `yaml:"embeddingWeight"`
	TitleExactWeight     float64 `yaml:"titleExactWeight"`
	BodyExactWeight      float64 `yaml:"bodyExactWeight"`
	TitlePhraseWeight    float64 `yaml:"titlePhraseWeight"`
	BodyPhraseWeight     float64 `yaml:"bodyPhraseWeight"`
	TagExactWeight       float64 `yaml:"tagExactWeight"`
	TagPartialWeight     float64 `yaml:"tagPartialWeight"`
	HeaderWeight         float64 `yaml:"headerWeight"`
	CodeWeight           float64 `yaml:"codeWeight"`
	ListWeight           float64 `yaml:"listWeight"`
	SourceWeight         float64 `yaml:"sourceWeight"`
	CoverageWeight       float64 `yaml:"coverageWeight"`
	ProximityWeight      float64 `yaml:"proximityWeight"`
	ProximityWindow      int     `yaml:"proximityWindow"`
	DensityWeight        float64 `yaml:"densityWeight"`
	PriorWeight          float64 `yaml:"priorWeight"`
	IntentWeight         float64 `yaml:"intentWeight"`
	TemporalWeight       float64 `yaml:"temporalWeight"`
	TemporalCap          float64 `yaml:"temporalCap"`
	CrossReferenceWeight float64 `yaml:"crossReferenceWeight"`
	CrossReferenceCap    float64 `yaml:"crossReferenceCap"`
	HeaderMatchCap       int     `yaml:"headerMatchCap"`
	// LengthTiers award a body-length bonus to the quality rule. Ordered
	// longest first; the first tier a body reaches applies.
	LengthTiers []LengthTier `yaml:"lengthTiers"`
	MinScore    float64      `yaml:"minScore"`
	Scale       float64      `yaml:"scale"`
}

// LengthTier is a quality bonus for bodies of at least MinChars runes.
type LengthTier struct {
	MinChars int     `yaml:"minChars"`
	Bonus    float64 `yaml:"bonus"`
}

// CacheConfig controls the search result cache in front of the engine.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// Backend is "memory" or "redis".
	Backend string        `yaml:"backend"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexInvalidate string `yaml:"indexInvalidate"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// WatchConfig controls the optional corpus directory watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Corpus: CorpusConfig{
			Backend:    "dir",
			Dir:        "docs",
			Extensions: []string{".md", ".markdown", ".txt"},
			Table:      "documents",
		},
		Index: IndexConfig{
			TTL:                 5 * time.Minute,
			MaxTokens:           1000,
			EmbeddingDimensions: 50,
		},
		Search: SearchConfig{
			MinQueryLength:      2,
			MaxQueryLength:      500,
			DefaultLimit:        5,
			MaxResults:          20,
			MaxBodyChars:        600,
			ConfidenceThreshold: 30,
			Timeout:             2 * time.Second,
		},
		Scoring: DefaultScoring(),
		Cache: CacheConfig{
			Enabled: true,
			Backend: "memory",
			Size:    512,
			TTL:     60 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docrank-searcher",
			Topics: KafkaTopics{
				IndexInvalidate: "index-invalidate",
				AnalyticsEvents: "analytics-events",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docrank",
			User:            "docrank",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// DefaultScoring returns the scorer weights the rankings were tuned with.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		BM25K1:               1.5,
		BM25B:                0.75,
		OriginalTermBoost:    1.5,
		ExpansionTermBoost:   0.7,
		BM25Weight:           5,
		CosineWeight:         20,
		EmbeddingWeight:      10,
		TitleExactWeight:     50,
		BodyExactWeight:      20,
		TitlePhraseWeight:    8,
		BodyPhraseWeight:     4,
		TagExactWeight:       6,
		TagPartialWeight:     3,
		HeaderWeight:         3,
		CodeWeight:           3,
		ListWeight:           2,
		SourceWeight:         5,
		CoverageWeight:       15,
		ProximityWeight:      3,
		ProximityWindow:      50,
		DensityWeight:        2,
		PriorWeight:          2,
		IntentWeight:         5,
		TemporalWeight:       2,
		TemporalCap:          6,
		CrossReferenceWeight: 1,
		CrossReferenceCap:    5,
		HeaderMatchCap:       3,
		LengthTiers: []LengthTier{
			{MinChars: 2000, Bonus: 1.5},
			{MinChars: 800, Bonus: 1.0},
			{MinChars: 200, Bonus: 0.5},
		},
		MinScore:             8,
		Scale:                150,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Search.MinQueryLength < 1 {
		errs = append(errs, errors.New("search.minQueryLength must be at least 1"))
	}
	if c.Search.MaxQueryLength < c.Search.MinQueryLength {
		errs = append(errs, errors.New("search.maxQueryLength must not be below search.minQueryLength"))
	}
	if c.Search.DefaultLimit < 1 {
		errs = append(errs, errors.New("search.defaultLimit must be positive"))
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		errs = append(errs, errors.New("search.maxResults must not be below search.defaultLimit"))
	}
	if c.Index.MaxTokens < 1 {
		errs = append(errs, errors.New("index.maxTokens must be positive"))
	}
	if c.Index.EmbeddingDimensions < 0 || c.Index.EmbeddingDimensions > 50 {
		errs = append(errs, errors.New("index.embeddingDimensions must be within 0..50"))
	}
	if c.Scoring.Scale <= 0 {
		errs = append(errs, errors.New("scoring.scale must be positive"))
	}
	for i, tier := range c.Scoring.LengthTiers {
		if tier.MinChars < 0 {
			errs = append(errs, fmt.Errorf("scoring.lengthTiers[%d].minChars must not be negative", i))
		}
		if i > 0 && tier.MinChars >= c.Scoring.LengthTiers[i-1].MinChars {
			errs = append(errs, errors.New("scoring.lengthTiers must be ordered longest first"))
			break
		}
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rateLimit must not be negative"))
	}
	switch c.Corpus.Backend {
	case "dir", "postgres":
	default:
		errs = append(errs, fmt.Errorf("corpus.backend %q is not one of dir, postgres", c.Corpus.Backend))
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, redis", c.Cache.Backend))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides reads DOCRANK_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCRANK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DOCRANK_CORPUS_BACKEND"); v != "" {
		cfg.Corpus.Backend = v
	}
	if v := os.Getenv("DOCRANK_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("DOCRANK_INDEX_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Index.TTL = ttl
		}
	}
	if v := os.Getenv("DOCRANK_SEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxResults = n
		}
	}
	if v := os.Getenv("DOCRANK_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("DOCRANK_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DOCRANK_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DOCRANK_KAFKA_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = enabled
		}
	}
	if v := os.Getenv("DOCRANK_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("DOCRANK_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("DOCRANK_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("DOCRANK_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("DOCRANK_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("DOCRANK_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("DOCRANK_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DOCRANK_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
