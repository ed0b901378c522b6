package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	RAG       RAGConfig       `yaml:"rag"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Addr               string `yaml:"addr"`
	ReadTimeoutSec     int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec    int    `yaml:"write_timeout_sec"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
	MaxUploadMB        int    `yaml:"max_upload_mb"`
	UploadDir          string `yaml:"upload_dir"`
	UploadMaxAgeMin    int    `yaml:"upload_max_age_min"`
}

// CorpusConfig locates the two document directories and the vector store.
type CorpusConfig struct {
	InternalPath string `yaml:"internal_path"`
	GlobalPath   string `yaml:"global_path"`
	StorePath    string `yaml:"store_path"`
	Backend      string `yaml:"backend"` // chromem, pgvector
	InMemory     bool   `yaml:"in_memory"`
	Compress     bool   `yaml:"compress"`
}

type RAGConfig struct {
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	Splitter      string `yaml:"splitter"` // window, recursive
	TopK          int    `yaml:"top_k"`
	CompareTopK   int    `yaml:"compare_top_k"`
	EncryptionKey string `yaml:"encryption_key"`
}

type EmbeddingConfig struct {
	Provider   string      `yaml:"provider"` // hash, ollama, openai
	BaseURL    string      `yaml:"base_url"`
	Key        string      `yaml:"key"`
	Model      string      `yaml:"model"`
	Dimensions int         `yaml:"dimensions"`
	Cache      CacheConfig `yaml:"cache"`
}

// CacheConfig enables the Redis embedding cache when Addrs is non-empty.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLSec   int      `yaml:"ttl_sec"`
}

type LLMConfig struct {
	BaseURL       string  `yaml:"base_url"`
	Key           string  `yaml:"key"`
	Model         string  `yaml:"model"`
	Referer       string  `yaml:"referer"`
	Title         string  `yaml:"title"`
	TimeoutSec    int     `yaml:"timeout_sec"`
	MaxConcurrent int     `yaml:"max_concurrent"`
	RatePerSec    float64 `yaml:"rate_per_sec"` // 0 = unlimited
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // pgdriver, pq
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console, json
}

const (
	BackendChromem  = "chromem"
	BackendPgvector = "pgvector"

	defaultLLMBaseURL = "https://openrouter.ai/api/v1"
	defaultLLMModel   = "mistralai/mistral-7b-instruct"
	defaultReferer    = "https://localhost:5000"

	// all-minilm is all-MiniLM-L6-v2 as served by Ollama, 384 dimensions.
	defaultEmbeddingModel = "all-minilm"
	defaultOllamaURL      = "http://localhost:11434"

	// KeyEnv is consulted when llm.key is empty.
	KeyEnv = "OPENROUTER_API_KEY"
)

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		data = expandEnvVars(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if cfg.LLM.Key == "" {
		cfg.LLM.Key = os.Getenv(KeyEnv)
	}
	cfg.LLM.Key = NormalizeKey(cfg.LLM.Key)

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = 30
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = 120
	}
	if c.Server.ShutdownTimeoutSec <= 0 {
		c.Server.ShutdownTimeoutSec = 10
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 16
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "uploads"
	}
	if c.Server.UploadMaxAgeMin <= 0 {
		c.Server.UploadMaxAgeMin = 60
	}

	if c.Corpus.InternalPath == "" {
		c.Corpus.InternalPath = "data/internal"
	}
	if c.Corpus.GlobalPath == "" {
		c.Corpus.GlobalPath = "data/global"
	}
	if c.Corpus.StorePath == "" {
		c.Corpus.StorePath = "vectorstores"
	}
	if c.Corpus.Backend == "" {
		c.Corpus.Backend = BackendChromem
	}

	// overlap only defaults together with the size; an explicit size keeps overlap 0
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = 700
		if c.RAG.ChunkOverlap == 0 {
			c.RAG.ChunkOverlap = 100
		}
	}
	if c.RAG.Splitter == "" {
		c.RAG.Splitter = "window"
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = 5
	}
	if c.RAG.CompareTopK <= 0 {
		c.RAG.CompareTopK = 100
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.Provider == "ollama" {
		if c.Embedding.Model == "" {
			c.Embedding.Model = defaultEmbeddingModel
		}
		if c.Embedding.BaseURL == "" {
			c.Embedding.BaseURL = defaultOllamaURL
		}
	}
	if c.Embedding.Dimensions <= 0 && c.Embedding.Provider != "openai" {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.Cache.TTLSec <= 0 {
		c.Embedding.Cache.TTLSec = 7 * 24 * 3600
	}

	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultReferer
	}
	if c.LLM.Title == "" {
		c.LLM.Title = "Policy Analyzer"
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 60
	}
	if c.LLM.MaxConcurrent <= 0 {
		c.LLM.MaxConcurrent = 4
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "pgdriver"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be >= 0 and < rag.chunk_size, got %d (size %d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	switch c.RAG.Splitter {
	case "window", "recursive":
	default:
		return fmt.Errorf("rag.splitter must be \"window\" or \"recursive\", got %q", c.RAG.Splitter)
	}
	switch c.Corpus.Backend {
	case BackendChromem:
	case BackendPgvector:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the %s backend", BackendPgvector)
		}
	default:
		return fmt.Errorf("corpus.backend must be %q or %q, got %q", BackendChromem, BackendPgvector, c.Corpus.Backend)
	}
	switch c.Embedding.Provider {
	case "hash":
	case "ollama", "openai":
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required for provider %q", c.Embedding.Provider)
		}
	default:
		return fmt.Errorf("embedding.provider must be hash, ollama or openai, got %q", c.Embedding.Provider)
	}
	switch c.Database.Driver {
	case "pgdriver", "pq":
	default:
		return fmt.Errorf("database.driver must be \"pgdriver\" or \"pq\", got %q", c.Database.Driver)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	if c.LLM.RatePerSec < 0 {
		return fmt.Errorf("llm.rate_per_sec must be >= 0, got %v", c.LLM.RatePerSec)
	}
	return nil
}

// NormalizeKey trims key and drops a leading "Bearer" scheme, so "Bearer "
// alone normalizes to the empty string.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	rest, ok := strings.CutPrefix(key, "Bearer")
	if ok && (rest == "" || rest[0] == ' ' || rest[0] == '\t') {
		return strings.TrimSpace(rest)
	}
	return key
}

func (c LLMConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSec) * time.Second }

func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSec) * time.Second }

func (c ServerConfig) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }

func (c ServerConfig) UploadMaxAge() time.Duration {
	return time.Duration(c.UploadMaxAgeMin) * time.Minute
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
