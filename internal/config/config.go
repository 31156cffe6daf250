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

// Provider names accepted in Config.Provider.
const (
	CoinGecko     = "coingecko"
	CoinCap       = "coincap"
	CryptoCompare = "cryptocompare"
	Mock          = "mock"
)

// Recommender backends.
const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
	BackendMock   = "mock"
	BackendNone   = "none"
)

type Server struct {
	Port           string        `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Source configures one market-data provider. MinInterval spaces out
// fetches from any caller, manual refreshes included.
type Source struct {
	BaseURL              string        `yaml:"base_url"`
	IDs                  []string      `yaml:"ids"`
	RefreshInterval      time.Duration `yaml:"refresh_interval"`
	MinInterval          time.Duration `yaml:"min_interval"`
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute"`
	Burst                int           `yaml:"burst"`
	APIKey               string        `yaml:"api_key"`
}

type Providers struct {
	CoinGecko     Source `yaml:"coingecko"`
	CoinCap       Source `yaml:"coincap"`
	CryptoCompare Source `yaml:"cryptocompare"`
	Mock          Source `yaml:"mock"`
}

type Breaker struct {
	Enabled             bool          `yaml:"enabled"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
}

type Recommender struct {
	Backend         string        `yaml:"backend"`
	Model           string        `yaml:"model"`
	Endpoint        string        `yaml:"endpoint"`
	CredentialsFile string        `yaml:"credentials_file"`
	PromptFile      string        `yaml:"prompt_file"`
	Timeout         time.Duration `yaml:"timeout"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	CacheMaxItems   int           `yaml:"cache_max_items"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Tracing struct {
	Enabled bool `yaml:"enabled"`
}

// NATS is optional; an empty URL disables the snapshot sink.
type NATS struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type Config struct {
	Provider    string      `yaml:"provider"`
	Server      Server      `yaml:"server"`
	Providers   Providers   `yaml:"providers"`
	Breaker     Breaker     `yaml:"breaker"`
	Recommender Recommender `yaml:"recommender"`
	Logging     Logging     `yaml:"logging"`
	Tracing     Tracing     `yaml:"tracing"`
	NATS        NATS        `yaml:"nats"`
}

func Default() Config {
	return Config{
		Provider: CryptoCompare,
		Server:   Server{Port: "8080", RequestTimeout: 10 * time.Second},
		Providers: Providers{
			CoinGecko: Source{
				BaseURL:              "https://api.coingecko.com/api/v3",
				RefreshInterval:      10 * time.Second,
				MinInterval:          2 * time.Second,
				MaxRequestsPerMinute: 10,
				Burst:                1,
			},
			CoinCap: Source{
				BaseURL:              "https://api.coincap.io/v2",
				RefreshInterval:      30 * time.Second,
				MinInterval:          2 * time.Second,
				MaxRequestsPerMinute: 10,
				Burst:                1,
			},
			CryptoCompare: Source{
				BaseURL:              "https://min-api.cryptocompare.com/data",
				RefreshInterval:      30 * time.Second,
				MinInterval:          2 * time.Second,
				MaxRequestsPerMinute: 10,
				Burst:                1,
			},
			Mock: Source{RefreshInterval: 30 * time.Second},
		},
		Breaker: Breaker{Enabled: true, ConsecutiveFailures: 3, OpenTimeout: time.Minute},
		Recommender: Recommender{
			Backend:         BackendOpenAI,
			Model:           "gpt-4o-mini",
			Endpoint:        "https://api.openai.com/v1",
			CredentialsFile: "config.properties",
			Timeout:         30 * time.Second,
			CacheTTL:        5 * time.Minute,
			CacheMaxItems:   100,
		},
		Logging: Logging{Level: "info", Format: "json"},
		NATS:    NATS{Subject: "coinpulse.snapshot"},
	}
}

// Load reads YAML config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Recommender.Backend = strings.ToLower(strings.TrimSpace(cfg.Recommender.Backend))
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the service can't start with.
func (c Config) Validate() error {
	src, ok := c.Source(c.Provider)
	if !ok {
		return fmt.Errorf("config: unknown provider %q", c.Provider)
	}
	if src.RefreshInterval <= 0 {
		return fmt.Errorf("config: %s refresh_interval must be positive", c.Provider)
	}
	switch c.Recommender.Backend {
	case BackendOpenAI, BackendGemini, BackendMock, BackendNone:
	default:
		return fmt.Errorf("config: unknown recommender backend %q", c.Recommender.Backend)
	}
	if c.Server.Port == "" {
		return errors.New("config: server port is empty")
	}
	return nil
}

// Source returns the settings for the named provider.
func (c Config) Source(name string) (Source, bool) {
	switch name {
	case CoinGecko:
		return c.Providers.CoinGecko, true
	case CoinCap:
		return c.Providers.CoinCap, true
	case CryptoCompare:
		return c.Providers.CryptoCompare, true
	case Mock:
		return c.Providers.Mock, true
	}
	return Source{}, false
}

// Active returns the settings of the configured provider.
func (c Config) Active() Source {
	s, _ := c.Source(c.Provider)
	return s
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("COINPULSE_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if d, ok := envDuration("REQUEST_TIMEOUT"); ok {
		cfg.Server.RequestTimeout = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if b, ok := envBool("TRACING_ENABLED"); ok {
		cfg.Tracing.Enabled = b
	}
	if b, ok := envBool("BREAKER_ENABLED"); ok {
		cfg.Breaker.Enabled = b
	}
	if v := os.Getenv("RECOMMENDER_BACKEND"); v != "" {
		cfg.Recommender.Backend = v
	}
	if v := os.Getenv("RECOMMENDER_MODEL"); v != "" {
		cfg.Recommender.Model = v
	}
	if v := os.Getenv("RECOMMENDER_ENDPOINT"); v != "" {
		cfg.Recommender.Endpoint = v
	}
	if v := os.Getenv("CREDENTIALS_FILE"); v != "" {
		cfg.Recommender.CredentialsFile = v
	}
	if v := os.Getenv("PROMPT_FILE"); v != "" {
		cfg.Recommender.PromptFile = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("NATS_SUBJECT"); v != "" {
		cfg.NATS.Subject = v
	}
	applySourceEnv("COINGECKO", &cfg.Providers.CoinGecko)
	applySourceEnv("COINCAP", &cfg.Providers.CoinCap)
	applySourceEnv("CRYPTOCOMPARE", &cfg.Providers.CryptoCompare)
}

func applySourceEnv(prefix string, s *Source) {
	if v := os.Getenv(prefix + "_BASE_URL"); v != "" {
		s.BaseURL = v
	}
	if v := os.Getenv(prefix + "_IDS"); v != "" {
		s.IDs = splitCSV(v)
	}
	if d, ok := envDuration(prefix + "_REFRESH_INTERVAL"); ok {
		s.RefreshInterval = d
	}
	if d, ok := envDuration(prefix + "_MIN_INTERVAL"); ok {
		s.MinInterval = d
	}
	if v := os.Getenv(prefix + "_MAX_RPM"); v != "" {
		if x, err := strconv.Atoi(v); err == nil && x >= 0 {
			s.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv(prefix + "_API_KEY"); v != "" {
		s.APIKey = v
	}
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true, true
	case "0", "false", "no", "n":
		return false, true
	}
	return false, false
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
