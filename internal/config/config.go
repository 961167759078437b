package config

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

const (
	EnvRedisAddr = "CONTENTCACHE_REDIS_ADDR"
	EnvStoreDSN  = "CONTENTCACHE_STORE_DSN"
)

type TTLConfig struct {
	List  int `yaml:"list"`
	Doc   int `yaml:"doc"`
	Today int `yaml:"today"`
}

type CacheConfig struct {
	Provider        string    `yaml:"provider"`
	Namespace       string    `yaml:"namespace"`
	Codec           string    `yaml:"codec"`
	MaxPayloadBytes int       `yaml:"max_payload_bytes"`
	LocalSizeMB     int       `yaml:"local_size_mb"`
	Fence           string    `yaml:"fence"`
	TTL             TTLConfig `yaml:"ttl"`
}

type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	DialTimeout  string `yaml:"dial_timeout"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Cache CacheConfig `yaml:"cache"`
	Redis RedisConfig `yaml:"redis"`
	Store StoreConfig `yaml:"store"`
	Log   LogConfig   `yaml:"log"`
}

// FieldError names the offending key in dotted form, e.g. "cache.ttl.list".
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func (t TTLConfig) ListTTL() time.Duration  { return seconds(t.List) }
func (t TTLConfig) DocTTL() time.Duration   { return seconds(t.Doc) }
func (t TTLConfig) TodayTTL() time.Duration { return seconds(t.Today) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Timeouts returns dial, read and write timeouts. Call after Validate.
func (r RedisConfig) Timeouts() (dial, read, write time.Duration) {
	dial, _ = time.ParseDuration(r.DialTimeout)
	read, _ = time.ParseDuration(r.ReadTimeout)
	write, _ = time.ParseDuration(r.WriteTimeout)
	return dial, read, write
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "contentcache", "config.yaml")
}

func Default() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load overlays the file at path on the embedded defaults and then applies
// environment overrides. An empty path means DefaultConfigPath; a missing default
// file is not an error, a missing explicit file is.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(EnvStoreDSN); v != "" {
		c.Store.DSN = v
	}
}

func (c *Config) Validate() error {
	oneOf := func(field, v string, allowed ...string) error {
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		return &FieldError{Field: field, Message: fmt.Sprintf("unknown value %q (valid: %v)", v, allowed)}
	}

	if err := oneOf("cache.provider", c.Cache.Provider, "redis", "bigcache", "ristretto", "none"); err != nil {
		return err
	}
	if err := oneOf("cache.codec", c.Cache.Codec, "json", "cbor", "msgpack"); err != nil {
		return err
	}
	if err := oneOf("cache.fence", c.Cache.Fence, "none", "local", "redis"); err != nil {
		return err
	}
	if c.Cache.Fence == "redis" && c.Cache.Provider != "redis" {
		return &FieldError{Field: "cache.fence", Message: "redis fence requires cache.provider redis"}
	}
	if c.Cache.MaxPayloadBytes < 0 {
		return &FieldError{Field: "cache.max_payload_bytes", Message: "must be >= 0"}
	}
	if c.Cache.LocalSizeMB <= 0 && (c.Cache.Provider == "bigcache" || c.Cache.Provider == "ristretto") {
		return &FieldError{Field: "cache.local_size_mb", Message: "must be > 0 for local providers"}
	}
	for field, v := range map[string]int{
		"cache.ttl.list":  c.Cache.TTL.List,
		"cache.ttl.doc":   c.Cache.TTL.Doc,
		"cache.ttl.today": c.Cache.TTL.Today,
	} {
		if v <= 0 {
			return &FieldError{Field: field, Message: "must be a positive number of seconds"}
		}
	}

	if c.Cache.Provider == "redis" {
		if c.Redis.Addr == "" {
			return &FieldError{Field: "redis.addr", Message: "required"}
		}
		for field, v := range map[string]string{
			"redis.dial_timeout":  c.Redis.DialTimeout,
			"redis.read_timeout":  c.Redis.ReadTimeout,
			"redis.write_timeout": c.Redis.WriteTimeout,
		} {
			if v == "" {
				continue
			}
			if _, err := time.ParseDuration(v); err != nil {
				return &FieldError{Field: field, Message: err.Error()}
			}
		}
	}

	if err := oneOf("store.driver", c.Store.Driver, "mongo", "postgres", "sqlite"); err != nil {
		return err
	}
	if c.Store.DSN == "" {
		return &FieldError{Field: "store.dsn", Message: "required"}
	}

	if err := oneOf("log.level", c.Log.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	return oneOf("log.format", c.Log.Format, "json", "console")
}
