// Package config loads service settings from .env, an optional YAML file and
// the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"helprag/types"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendPgvector = "pgvector"
	BackendSQLite   = "sqlite"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
)

type Config struct {
	AppEnv     string `yaml:"app_env"`
	LogLevel   string `yaml:"log_level"`
	ServerAddr string `yaml:"server_addr"`

	Index     IndexConfig     `yaml:"index"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Loader    LoaderConfig    `yaml:"loader"`

	OpenAIKey string `yaml:"-"`
}

type IndexConfig struct {
	Name    string       `yaml:"name"`
	Backend string       `yaml:"backend"`
	Metric  types.Metric `yaml:"metric"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
	DBName   string `yaml:"db_name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString returns a keyword/value DSN accepted by pgxpool.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type EmbeddingConfig struct {
	Provider  string  `yaml:"provider"`
	Model     string  `yaml:"model"`
	Dimension int     `yaml:"dimension"`
	BatchSize int     `yaml:"batch_size"`
	RPS       float64 `yaml:"rps"`
	OllamaURL string  `yaml:"ollama_url"`
	ModelDir  string  `yaml:"model_dir"`
	CacheSize int     `yaml:"cache_size"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	URL         string  `yaml:"url"`
	Temperature float64 `yaml:"temperature"`
}

type LoaderConfig struct {
	SourceDir    string        `yaml:"source_dir"`
	ChunkSize    int           `yaml:"chunk_size"`
	ChunkOverlap int           `yaml:"chunk_overlap"`
	Debounce     time.Duration `yaml:"debounce"`
}

func Default() *Config {
	return &Config{
		AppEnv:     "local",
		LogLevel:   "info",
		ServerAddr: ":8000",
		Index: IndexConfig{
			Name:    "typeform-helpcenter",
			Backend: BackendPgvector,
			Metric:  types.MetricCosine,
		},
		Postgres: PostgresConfig{
			Port:    5432,
			SSLMode: "disable",
		},
		SQLite: SQLiteConfig{
			Path: "data/index.db",
		},
		Embedding: EmbeddingConfig{
			Provider:  ProviderOpenAI,
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			BatchSize: 100,
			ModelDir:  "./models",
			CacheSize: 256,
		},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
		},
		Loader: LoaderConfig{
			SourceDir:    "data/raw",
			ChunkSize:    1200,
			ChunkOverlap: 200,
			Debounce:     2 * time.Second,
		},
	}
}

// Load reads .env (if present), the YAML file named by CONFIG_FILE (default
// config.yaml, optional) and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	str("APP_ENV", &c.AppEnv)
	str("LOG_LEVEL", &c.LogLevel)
	str("SERVER_ADDR", &c.ServerAddr)

	str("INDEX_NAME", &c.Index.Name)
	str("INDEX_BACKEND", &c.Index.Backend)
	metric := string(c.Index.Metric)
	str("INDEX_METRIC", &metric)
	c.Index.Metric = types.Metric(strings.ToLower(metric))

	str("PG_HOST", &c.Postgres.Host)
	num("PG_PORT", &c.Postgres.Port)
	str("PG_USER", &c.Postgres.User)
	str("PG_PASS", &c.Postgres.Password)
	str("PG_DB_NAME", &c.Postgres.DBName)
	str("PG_SSLMODE", &c.Postgres.SSLMode)
	str("SQLITE_PATH", &c.SQLite.Path)

	str("OPENAI_API_KEY", &c.OpenAIKey)
	str("EMBEDDING_PROVIDER", &c.Embedding.Provider)
	str("EMBEDDING_MODEL", &c.Embedding.Model)
	num("EMBEDDING_DIMENSION", &c.Embedding.Dimension)
	num("EMBEDDING_BATCH_SIZE", &c.Embedding.BatchSize)
	float("EMBEDDING_RPS", &c.Embedding.RPS)
	str("OLLAMA_EMBEDDING_URL", &c.Embedding.OllamaURL)
	str("LOCAL_MODEL_DIR", &c.Embedding.ModelDir)
	num("QUERY_CACHE_SIZE", &c.Embedding.CacheSize)

	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_MODEL", &c.LLM.Model)
	str("LLM_URL", &c.LLM.URL)
	float("LLM_TEMPERATURE", &c.LLM.Temperature)

	str("LOADER_SOURCE_DIR", &c.Loader.SourceDir)
	num("CHUNK_SIZE", &c.Loader.ChunkSize)
	num("CHUNK_OVERLAP", &c.Loader.ChunkOverlap)
	if v, ok := lookup("LOADER_DEBOUNCE"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOADER_DEBOUNCE: %w", err))
		} else {
			c.Loader.Debounce = d
		}
	}

	if len(errs) > 0 {
		return types.Wrap(types.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// MissingError names every required variable that was not set.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Vars, ", ")
}

func (e *MissingError) Unwrap() error {
	return types.ErrConfiguration
}

// Validate checks that the credentials needed by the selected providers and
// backend are present. It reports all missing variables at once.
func (c *Config) Validate() error {
	var missing []string
	need := func(name, value string) {
		if value == "" {
			for _, m := range missing {
				if m == name {
					return
				}
			}
			missing = append(missing, name)
		}
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI:
		need("OPENAI_API_KEY", c.OpenAIKey)
	case ProviderOllama:
		need("OLLAMA_EMBEDDING_URL", c.Embedding.OllamaURL)
	case ProviderLocal:
	default:
		return types.Wrap(types.ErrConfiguration, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}

	switch c.LLM.Provider {
	case ProviderOpenAI:
		need("OPENAI_API_KEY", c.OpenAIKey)
	case ProviderOllama:
		need("LLM_URL", c.LLM.URL)
	default:
		return types.Wrap(types.ErrConfiguration, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}

	switch c.Index.Backend {
	case BackendPgvector:
		need("PG_HOST", c.Postgres.Host)
		need("PG_USER", c.Postgres.User)
		need("PG_PASS", c.Postgres.Password)
		need("PG_DB_NAME", c.Postgres.DBName)
	case BackendSQLite:
		need("SQLITE_PATH", c.SQLite.Path)
	default:
		return types.Wrap(types.ErrConfiguration, fmt.Errorf("unknown index backend %q", c.Index.Backend))
	}

	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}

	if c.Index.Name == "" {
		return types.Wrap(types.ErrConfiguration, errors.New("index name is empty"))
	}
	if !c.Index.Metric.Valid() {
		return types.Wrap(types.ErrConfiguration, fmt.Errorf("unknown index metric %q", c.Index.Metric))
	}
	if c.Embedding.Dimension <= 0 {
		return types.Wrap(types.ErrConfiguration, fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension))
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 100
	}
	return nil
}

// SlogLevel maps the configured level name to slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger installs a text slog handler on stderr as the default logger.
func (c *Config) NewLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}
