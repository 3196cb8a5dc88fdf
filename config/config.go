package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research pipeline
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Mission   MissionConfig   `mapstructure:"mission"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	History   HistoryConfig   `mapstructure:"history"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string   `mapstructure:"address"`
	UploadDir    string   `mapstructure:"upload_dir"`
	AllowOrigins []string `mapstructure:"allow_origins"`
	MaxUploadMB  int64    `mapstructure:"max_upload_mb"`
}

// LLMConfig configures the OpenAI-compatible chat completion endpoint used by every agent.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai, groq
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Normalize fills provider specific defaults.
func (c LLMConfig) Normalize() LLMConfig {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "groq"
	}
	if c.BaseURL == "" {
		switch c.Provider {
		case "groq":
			c.BaseURL = "https://api.groq.com/openai/v1"
		case "openai":
			c.BaseURL = "https://api.openai.com/v1"
		}
	}
	if c.Model == "" {
		if c.Provider == "groq" {
			c.Model = "llama-3.1-8b-instant"
		} else {
			c.Model = "gpt-4o-mini"
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.APIKey == "" {
		switch c.Provider {
		case "groq":
			c.APIKey = os.Getenv("GROQ_API_KEY")
		case "openai":
			c.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	return c
}

// Validate checks the llm section.
func (c LLMConfig) Validate() error {
	switch c.Provider {
	case "openai", "groq":
	default:
		return fmt.Errorf("llm.provider %q unsupported", c.Provider)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("llm.model required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0,2]")
	}
	return nil
}

// SearchConfig contains web search settings
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"` // tavily, serper
	APIKey     string        `mapstructure:"api_key"`
	Endpoint   string        `mapstructure:"endpoint"`
	Depth      string        `mapstructure:"depth"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
}

// Normalize applies defaults for unset search values.
func (c SearchConfig) Normalize() SearchConfig {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "tavily"
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.Depth == "" {
		c.Depth = "advanced"
	}
	if c.APIKey == "" {
		switch c.Provider {
		case "tavily":
			c.APIKey = os.Getenv("TAVILY_API_KEY")
		case "serper":
			c.APIKey = os.Getenv("SERPER_API_KEY")
		}
	}
	return c
}

// Validate checks the search section.
func (c SearchConfig) Validate() error {
	switch c.Provider {
	case "tavily", "serper":
	default:
		return fmt.Errorf("search.provider %q unsupported", c.Provider)
	}
	return nil
}

// MemoryConfig selects and configures the retrieval memory backend.
type MemoryConfig struct {
	Backend   string          `mapstructure:"backend"` // keyword, vector
	Index     string          `mapstructure:"index"`   // flat, sqlitevec
	SQLite    SQLiteVecConfig `mapstructure:"sqlite"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// SQLiteVecConfig configures the sqlite-vec index.
type SQLiteVecConfig struct {
	Path string `mapstructure:"path"`
}

// EmbeddingConfig configures the embedder feeding the vector backend.
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"` // openai, ollama, hash
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Normalize applies defaults for unset memory values.
func (c MemoryConfig) Normalize() MemoryConfig {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = "keyword"
	}
	c.Index = strings.ToLower(strings.TrimSpace(c.Index))
	if c.Index == "" {
		c.Index = "flat"
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = ":memory:"
	}
	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hash"
	}
	if c.Embedding.Timeout <= 0 {
		c.Embedding.Timeout = 30 * time.Second
	}
	if c.Embedding.Provider == "hash" && c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return c
}

// Validate checks the memory section.
func (c MemoryConfig) Validate() error {
	switch c.Backend {
	case "keyword", "vector":
	default:
		return fmt.Errorf("memory.backend %q unsupported (keyword|vector)", c.Backend)
	}
	if c.Backend == "keyword" {
		return nil
	}
	switch c.Index {
	case "flat", "sqlitevec":
	default:
		return fmt.Errorf("memory.index %q unsupported (flat|sqlitevec)", c.Index)
	}
	switch c.Embedding.Provider {
	case "openai", "ollama", "hash":
	default:
		return fmt.Errorf("memory.embedding.provider %q unsupported", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("memory.embedding.dimensions cannot be negative")
	}
	return nil
}

// MissionConfig tunes the orchestrator.
type MissionConfig struct {
	StageDelay            time.Duration `mapstructure:"stage_delay"`
	MemoryFileBound       int           `mapstructure:"memory_file_bound"`
	PromptFileBound       int           `mapstructure:"prompt_file_bound"`
	HypothesisK           int           `mapstructure:"hypothesis_k"`
	MaxConcurrentMissions int           `mapstructure:"max_concurrent_missions"`
	MemoryScope           string        `mapstructure:"memory_scope"` // shared, mission
}

// Normalize applies defaults for unset mission values.
func (c MissionConfig) Normalize() MissionConfig {
	if c.MemoryFileBound <= 0 {
		c.MemoryFileBound = 5000
	}
	if c.PromptFileBound <= 0 {
		c.PromptFileBound = 3000
	}
	if c.HypothesisK <= 0 {
		c.HypothesisK = 3
	}
	if c.StageDelay < 0 {
		c.StageDelay = 0
	}
	c.MemoryScope = strings.ToLower(strings.TrimSpace(c.MemoryScope))
	if c.MemoryScope == "" {
		c.MemoryScope = "shared"
	}
	return c
}

// Validate checks the mission section.
func (c MissionConfig) Validate() error {
	if c.MemoryScope != "shared" && c.MemoryScope != "mission" {
		return fmt.Errorf("mission.memory_scope %q unsupported (shared|mission)", c.MemoryScope)
	}
	if c.MaxConcurrentMissions < 0 {
		return fmt.Errorf("mission.max_concurrent_missions cannot be negative")
	}
	return nil
}

// IngestConfig controls attachment extraction.
type IngestConfig struct {
	MaxBytes    int64  `mapstructure:"max_bytes"`
	OCREnabled  bool   `mapstructure:"ocr_enabled"`
	OCRLanguage string `mapstructure:"ocr_language"`
}

// Normalize applies defaults for unset ingest values.
func (c IngestConfig) Normalize() IngestConfig {
	if c.MaxBytes <= 0 {
		c.MaxBytes = 32 << 20
	}
	if c.OCRLanguage == "" {
		c.OCRLanguage = "eng"
	}
	return c
}

// HistoryConfig selects where finished missions are recorded.
type HistoryConfig struct {
	Backend string      `mapstructure:"backend"` // memory, redis
	Redis   RedisConfig `mapstructure:"redis"`
	Search  bool        `mapstructure:"search"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host      string        `mapstructure:"host"`
	Port      string        `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("history.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("history.redis.port required")
	}
	return nil
}

// Normalize applies defaults for unset history values.
func (c HistoryConfig) Normalize() HistoryConfig {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "researchpilot:"
	}
	if c.Redis.Timeout <= 0 {
		c.Redis.Timeout = 5 * time.Second
	}
	return c
}

// Validate checks the history section.
func (c HistoryConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "redis":
		return c.Redis.Validate()
	default:
		return fmt.Errorf("history.backend %q unsupported (memory|redis)", c.Backend)
	}
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Load reads configuration from path (or the default search paths when empty),
// applies RESEARCHPILOT_* environment overrides, normalizes and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("RESEARCHPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// running purely from defaults and env is allowed when no explicit path was given
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize applies defaults to every section.
func (c Config) Normalize() Config {
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8000"
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "uploads"
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 25
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "researchpilot"
	}
	c.LLM = c.LLM.Normalize()
	c.Search = c.Search.Normalize()
	c.Memory = c.Memory.Normalize()
	c.Mission = c.Mission.Normalize()
	c.Ingest = c.Ingest.Normalize()
	c.History = c.History.Normalize()
	return c
}

// Validate checks every section.
func (c Config) Validate() error {
	validators := []func() error{
		c.LLM.Validate,
		c.Search.Validate,
		c.Memory.Validate,
		c.Mission.Validate,
		c.History.Validate,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("server.allow_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("search.provider", "tavily")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.retries", 2)
	v.SetDefault("memory.backend", "keyword")
	v.SetDefault("memory.index", "flat")
	v.SetDefault("mission.stage_delay", "0s")
	v.SetDefault("mission.max_concurrent_missions", 0)
	v.SetDefault("mission.memory_file_bound", 5000)
	v.SetDefault("mission.prompt_file_bound", 3000)
	v.SetDefault("mission.hypothesis_k", 3)
	v.SetDefault("mission.memory_scope", "shared")
	v.SetDefault("ingest.ocr_enabled", true)
	v.SetDefault("history.backend", "memory")
	v.SetDefault("history.search", true)
}
