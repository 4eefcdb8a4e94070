package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the bookrec API configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
	Catalog CatalogConfig `yaml:"catalog"`
	Filter  FilterConfig  `yaml:"filter"`
	LLM     LLMConfig     `yaml:"llm"`
	Cache   CacheConfig   `yaml:"cache"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CatalogConfig holds input file locations and id schemes.
type CatalogConfig struct {
	DataDir      string `yaml:"data_dir"`
	BooksFile    string `yaml:"books_file"`
	TagsFile     string `yaml:"tags_file"`
	BookTagsFile string `yaml:"book_tags_file"`
	TopNFile     string `yaml:"top_n_file"`
	UniverseFile string `yaml:"universe_file"`
	TopNIDs      string `yaml:"top_n_ids"`     // catalog | external (default: catalog)
	UniverseIDs  string `yaml:"universe_ids"`  // catalog | external (default: external)
	TopNDefault  int    `yaml:"top_n_default"` // default: 10
	TopNMax      int    `yaml:"top_n_max"`     // default: 100
}

// FilterConfig holds candidate filter settings.
type FilterConfig struct {
	MatchMode string `yaml:"match_mode"` // literal (default) | pattern
}

// LLMConfig holds chat completion provider and resilience settings.
type LLMConfig struct {
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"` // 0 = provider default
	ExtractTimeout  int     `yaml:"extract_timeout_sec"`
	RerankTimeout   int     `yaml:"rerank_timeout_sec"`
	MaxRetries      int     `yaml:"max_retries"`
	BaseBackoffMs   int     `yaml:"base_backoff_ms"`
	MaxBackoffMs    int     `yaml:"max_backoff_ms"`
	RateLimitRPS    float64 `yaml:"rate_limit_rps"` // 0 = unlimited
	RateBurst       int     `yaml:"rate_burst"`
	BreakerFailures uint32  `yaml:"breaker_failures"`
	BreakerOpenSec  int     `yaml:"breaker_open_sec"`
}

// CacheConfig holds the optional completion reply cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Catalog.DataDir == "" {
		c.Catalog.DataDir = "data"
	}
	if c.Catalog.BooksFile == "" {
		c.Catalog.BooksFile = "goodreads_raw/books.csv"
	}
	if c.Catalog.TagsFile == "" {
		c.Catalog.TagsFile = "goodreads_raw/tags.csv"
	}
	if c.Catalog.BookTagsFile == "" {
		c.Catalog.BookTagsFile = "goodreads_raw/book_tags.csv"
	}
	if c.Catalog.TopNFile == "" {
		c.Catalog.TopNFile = "predictions/top_n_recommendations.csv"
	}
	if c.Catalog.UniverseFile == "" {
		c.Catalog.UniverseFile = "predictions/sorted_smaller_predictions.csv"
	}
	if c.Catalog.TopNIDs == "" {
		c.Catalog.TopNIDs = "catalog"
	}
	if c.Catalog.UniverseIDs == "" {
		c.Catalog.UniverseIDs = "external"
	}
	if c.Catalog.TopNDefault <= 0 {
		c.Catalog.TopNDefault = 10
	}
	if c.Catalog.TopNMax <= 0 {
		c.Catalog.TopNMax = 100
	}

	if c.Filter.MatchMode == "" {
		c.Filter.MatchMode = "literal"
	}

	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4-1106-preview"
	}
	if c.LLM.ExtractTimeout <= 0 {
		c.LLM.ExtractTimeout = 30
	}
	if c.LLM.RerankTimeout <= 0 {
		c.LLM.RerankTimeout = 60
	}
	if c.LLM.MaxRetries < 0 {
		c.LLM.MaxRetries = 0
	}
	if c.LLM.BaseBackoffMs <= 0 {
		c.LLM.BaseBackoffMs = 500
	}
	if c.LLM.MaxBackoffMs <= 0 {
		c.LLM.MaxBackoffMs = 8000
	}
	if c.LLM.RateBurst <= 0 {
		c.LLM.RateBurst = 1
	}
	if c.LLM.BreakerFailures == 0 {
		c.LLM.BreakerFailures = 5
	}
	if c.LLM.BreakerOpenSec <= 0 {
		c.LLM.BreakerOpenSec = 30
	}

	// Refinement makes two sequential model calls; the write must outlive both.
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = int(math.Ceil((c.LLM.RefineBudget() + RefineResponseMargin).Seconds()))
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "valkey"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 86400
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if write, need := time.Duration(c.HTTP.WriteTimeoutSec)*time.Second,
		c.LLM.RefineBudget()+RefineResponseMargin; write < need {
		return fmt.Errorf("http.write_timeout_sec (%d) must cover the refine budget %s plus %s response margin",
			c.HTTP.WriteTimeoutSec, c.LLM.RefineBudget(), RefineResponseMargin)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", c.LLM.Temperature)
	}
	for name, v := range map[string]string{
		"catalog.top_n_ids":    c.Catalog.TopNIDs,
		"catalog.universe_ids": c.Catalog.UniverseIDs,
	} {
		if v != "catalog" && v != "external" {
			return fmt.Errorf("%s must be \"catalog\" or \"external\", got %q", name, v)
		}
	}
	if c.Catalog.TopNDefault > c.Catalog.TopNMax {
		return fmt.Errorf("catalog.top_n_default (%d) exceeds catalog.top_n_max (%d)",
			c.Catalog.TopNDefault, c.Catalog.TopNMax)
	}
	switch c.Filter.MatchMode {
	case "literal", "pattern":
		// ok
	default:
		return fmt.Errorf("filter.match_mode must be \"literal\" or \"pattern\", got %q", c.Filter.MatchMode)
	}
	if c.Cache.Enabled {
		switch c.Cache.Driver {
		case "valkey", "redis":
			// ok
		default:
			return fmt.Errorf("cache.driver must be \"valkey\" or \"redis\", got %q", c.Cache.Driver)
		}
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required when cache is enabled")
		}
	}
	return nil
}

// RefineResponseMargin is reserved at the end of the write timeout for sending
// the refine response after the model calls have been cut off.
const RefineResponseMargin = 5 * time.Second

// StageBudget is the worst-case wall time of one model stage with the given
// attempt timeout: every attempt timing out plus the capped exponential backoff between them.
func (c LLMConfig) StageBudget(timeoutSec int) time.Duration {
	attempt := time.Duration(timeoutSec) * time.Second
	base := time.Duration(c.BaseBackoffMs) * time.Millisecond
	capped := time.Duration(c.MaxBackoffMs) * time.Millisecond

	total := time.Duration(c.MaxRetries+1) * attempt
	backoff := base
	for i := 1; i <= c.MaxRetries; i++ {
		total += min(backoff, capped)
		backoff *= 2
	}
	return total
}

// RefineBudget is the worst-case wall time of extraction followed by reranking.
func (c LLMConfig) RefineBudget() time.Duration {
	return c.StageBudget(c.ExtractTimeout) + c.StageBudget(c.RerankTimeout)
}

// RefineTimeout is the deadline given to one refine request: the write timeout
// minus the response margin.
func (c *Config) RefineTimeout() time.Duration {
	return time.Duration(c.HTTP.WriteTimeoutSec)*time.Second - RefineResponseMargin
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
