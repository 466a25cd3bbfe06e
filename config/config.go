package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/go-ozzo/ozzo-validation/v3"
	"github.com/go-ozzo/ozzo-validation/v3/is"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/elmanelman/sql-judge/engine"
	"github.com/elmanelman/sql-judge/rewrite"
)

type EngineConfig struct {
	Engine string `json:"engine"`
	engine.Params
	// Dedicated engines give every challenge and user their own namespace.
	Dedicated bool `json:"dedicated"`
}

func (c *EngineConfig) Validate() error {
	e, err := engine.Parse(c.Engine)
	if err != nil {
		return err
	}
	p := &c.Params
	if e == engine.SQLite {
		return validation.ValidateStruct(
			p,
			validation.Field(&p.Database, validation.Required),
		)
	}
	return validation.ValidateStruct(
		p,
		validation.Field(&p.User, validation.Required),
		validation.Field(&p.Host, validation.Required, is.Host),
		validation.Field(&p.Port, is.Port),
	)
}

// Kind is the parsed engine identifier. Only valid after Validate.
func (c *EngineConfig) Kind() engine.Engine {
	e, _ := engine.Parse(c.Engine)
	return e
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`

	LockTTL   int `json:"lock_ttl"`
	LockRetry int `json:"lock_retry"`
}

func (c *RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

const (
	minLockTTL   = 1000
	minLockRetry = 10
)

func (c *RedisConfig) Validate() error {
	return validation.ValidateStruct(
		c,
		validation.Field(&c.Host, validation.Required, is.Host),
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.DB, validation.Min(0)),
		validation.Field(&c.LockTTL, validation.Required, validation.Min(minLockTTL)),
		validation.Field(&c.LockRetry, validation.Required, validation.Min(minLockRetry)),
	)
}

const (
	minFetchPeriod   = 100
	minReviewerCount = 0
	minBatchSize     = 1
)

type PollerConfig struct {
	FetchPeriod   int `json:"fetch_period"`
	ReviewerCount int `json:"reviewer_count"`
	BatchSize     int `json:"batch_size"`
}

func (c *PollerConfig) Validate() error {
	return validation.ValidateStruct(
		c,
		validation.Field(&c.FetchPeriod, validation.Required, validation.Min(minFetchPeriod)),
		validation.Field(&c.ReviewerCount, validation.Min(minReviewerCount)),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(minBatchSize)),
	)
}

type HTTPConfig struct {
	Host string `json:"host"`
	Port string `json:"port"`
}

func (c *HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(
		c,
		validation.Field(&c.Host, is.Host),
		validation.Field(&c.Port, validation.Required, is.Port),
	)
}

const (
	StrategyPredicate = "predicate"
	StrategySubSelect = "subselect"
)

type JudgeConfig struct {
	LoggerConfig zap.Config `json:"logger"`

	MainDBConfig EngineConfig   `json:"main_db"`
	Engines      []EngineConfig `json:"engines"`
	Strategy     string         `json:"strategy"`
	Redis        *RedisConfig   `json:"redis,omitempty"`

	PollerConfig PollerConfig `json:"poller"`
	HTTPConfig   HTTPConfig   `json:"http"`
}

func (c *JudgeConfig) Validate() error {
	if err := c.MainDBConfig.Validate(); err != nil {
		return fmt.Errorf("main_db: %w", err)
	}
	if len(c.Engines) == 0 {
		return errors.New("engines: at least one engine is required")
	}
	seen := map[engine.Engine]bool{}
	for i := range c.Engines {
		if err := c.Engines[i].Validate(); err != nil {
			return fmt.Errorf("engines[%d]: %w", i, err)
		}
		e := c.Engines[i].Kind()
		if seen[e] {
			return fmt.Errorf("engines[%d]: %s is configured twice", i, e)
		}
		seen[e] = true
	}
	if c.Redis != nil {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if err := c.PollerConfig.Validate(); err != nil {
		return fmt.Errorf("poller: %w", err)
	}
	if err := c.HTTPConfig.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return validation.ValidateStruct(
		c,
		validation.Field(&c.Strategy, validation.In(StrategyPredicate, StrategySubSelect)),
	)
}

func (c *JudgeConfig) RewriteStrategy() rewrite.Strategy {
	if c.Strategy == StrategySubSelect {
		return rewrite.SubSelect
	}
	return rewrite.Predicate
}

// BuildLogger falls back to the zap production logger when no logger is
// configured.
func (c *JudgeConfig) BuildLogger() (*zap.Logger, error) {
	if c.LoggerConfig.Encoding == "" {
		return zap.NewProduction()
	}
	return c.LoggerConfig.Build()
}

// LoadFromFile reads a JSON configuration. ${VAR} references are expanded
// from the environment, after .env of the working directory is loaded when
// present.
func (c *JudgeConfig) LoadFromFile(path string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch ext := filepath.Ext(path); ext {
	case ".json":
		if err := c.loadFromJSON([]byte(os.ExpandEnv(string(data)))); err != nil {
			return err
		}
		return c.Validate()
	default:
		return fmt.Errorf("unknown configuration file extension: %s", ext)
	}
}

func (c *JudgeConfig) loadFromJSON(data []byte) error {
	return json.Unmarshal(data, c)
}

const (
	defaultConfigFile = "config.json"
	configFileEnv     = "JUDGE_CONFIG"
)

func (c *JudgeConfig) LoadDefault() error {
	path := os.Getenv(configFileEnv)
	if path == "" {
		path = defaultConfigFile
	}
	return c.LoadFromFile(path)
}
