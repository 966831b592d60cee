package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/conf"

	"marketfeed/pkg/confkit"
	marketpkg "marketfeed/pkg/market"
)

// CacheTTL holds the config-driven TTL buckets, in seconds.
type CacheTTL struct {
	Short  int `json:",default=15"`
	Medium int `json:",default=30"`
	Long   int `json:",default=300"`
}

// FetchConf tunes the shared cache-and-backoff fetcher.
type FetchConf struct {
	MaxConcurrent int `json:",default=3"`
	DispatchGapMs int `json:",default=150"`
	BaseDelayMs   int `json:",default=800"`
	MaxRetries    int `json:",default=3"`
}

// QuotesConf tunes the deduplicating quote request manager.
type QuotesConf struct {
	SpacingMs       int `json:",default=1000"`
	CacheTTLSeconds int `json:",default=30"`
	MaxRetries      int `json:",default=3"`
}

// Config is the main application configuration.
type Config struct {
	// Env indicates the running environment: test | dev | prod.
	Env    string     `json:",default=test"`
	TTL    CacheTTL   `json:",optional"`
	Fetch  FetchConf  `json:",optional"`
	Quotes QuotesConf `json:",optional"`

	Market confkit.Section[marketpkg.Config] `json:",optional"`

	mainPath string
	baseDir  string
}

func (c *Config) IsTestEnv() bool {
	return c.Env == "test" || c.Env == ""
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	var cfg Config
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}

	cfg.mainPath = absPath
	cfg.baseDir = filepath.Dir(absPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.hydrateSections(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "", "test", "dev", "prod":
		if strings.TrimSpace(c.Env) == "" {
			c.Env = "test"
		}
	default:
		return errors.New("config: env must be one of test|dev|prod")
	}
	return c.validateTTL()
}

func (c *Config) validateTTL() error {
	if c.TTL.Short <= 0 {
		return errors.New("config: ttl.short must be positive")
	}
	if c.TTL.Medium <= 0 {
		return errors.New("config: ttl.medium must be positive")
	}
	if c.TTL.Long <= 0 {
		return errors.New("config: ttl.long must be positive")
	}
	return nil
}

func (c *Config) hydrateSections() error {
	if err := c.Market.Hydrate(c.baseDir, marketpkg.LoadConfig); err != nil {
		return fmt.Errorf("load market config: %w", err)
	}
	return nil
}

func (c *Config) MainPath() string {
	return c.mainPath
}

func (c *Config) BaseDir() string {
	return c.baseDir
}
