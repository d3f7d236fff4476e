// Package config resolves environment-specific settings.
//
// Values come from a config-<env>.properties file and can be overridden by
// process environment variables (RESTQA_API_BASE_URL for api.base.url) and
// by explicit overrides passed on the command line, in that order of
// increasing precedence. A Config is built once by Load and is read-only
// afterwards.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/magiconair/properties"
	"github.com/spf13/viper"
)

const (
	KeyEnv          = "env"
	KeyBaseURL      = "api.base.url"
	KeyBasePath     = "api.base.path"
	KeyAuthKey      = "api.auth.key"
	KeyAuthToken    = "api.auth.token"
	KeyUsername     = "auth.username"
	KeyPassword     = "auth.password"
	KeyTimeout      = "api.timeout"
	KeyRetryEnabled = "api.retry.enabled"
	KeyMaxRetries   = "api.max.retries"
	KeyRetryWait    = "api.retry.wait"
	KeyRateLimit    = "api.rate.limit"
	KeyLogLevel     = "log.level"
)

const (
	DefaultEnv       = "dev"
	DefaultEnvPrefix = "RESTQA"
)

// ErrNotFound is returned by Load when the environment file does not exist.
var ErrNotFound = errors.New("configuration file not found")

// ParseError reports a value that is not well-formed for its typed accessor.
type ParseError struct {
	Key   string
	Value string
	Type  string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: %s=%q is not a valid %s", e.Key, e.Value, e.Type)
}

func (e *ParseError) Unwrap() error { return e.Err }

type Options struct {
	// Dir holds the config-<env>.properties files.
	Dir string
	// Overrides win over environment variables and file values.
	// The "env" key selects the environment file.
	Overrides map[string]string
	// EnvPrefix for environment variable lookups. Defaults to RESTQA.
	EnvPrefix string
}

type Config struct {
	v    *viper.Viper
	env  string
	file string
}

// Load resolves the environment name, reads its properties file and layers
// environment variables and overrides on top of it.
func Load(opts Options) (*Config, error) {
	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range opts.Overrides {
		v.Set(k, val)
	}

	env := strings.TrimSpace(v.GetString(KeyEnv))
	if env == "" {
		env = DefaultEnv
	}

	file := filepath.Join(opts.Dir, "config-"+env+".properties")
	if _, err := os.Stat(file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
		}
		return nil, fmt.Errorf("stat %s: %w", file, err)
	}
	p, err := properties.LoadFile(file, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", file, err)
	}
	// File values are the lowest layer.
	for _, k := range p.Keys() {
		val, _ := p.Get(k)
		v.SetDefault(k, val)
	}

	return &Config{v: v, env: env, file: file}, nil
}

// Get returns the override when set, else the file value, else absent.
func (c *Config) Get(key string) (string, bool) {
	if c.v.Get(key) == nil {
		return "", false
	}
	return c.v.GetString(key), true
}

func (c *Config) String(key, fallback string) string {
	if v, ok := c.Get(key); ok {
		return v
	}
	return fallback
}

func (c *Config) Environment() string { return c.env }
func (c *Config) File() string        { return c.file }

func (c *Config) BaseURL() string   { return c.String(KeyBaseURL, "") }
func (c *Config) BasePath() string  { return c.String(KeyBasePath, "") }
func (c *Config) AuthKey() string   { return c.String(KeyAuthKey, "") }
func (c *Config) AuthToken() string { return c.String(KeyAuthToken, "") }
func (c *Config) Username() string  { return c.String(KeyUsername, "") }
func (c *Config) Password() string  { return c.String(KeyPassword, "") }
func (c *Config) LogLevel() string  { return c.String(KeyLogLevel, "info") }

// Timeout is api.timeout in milliseconds. Zero when unset.
func (c *Config) Timeout() (time.Duration, error) {
	n, err := c.Int(KeyTimeout)
	return time.Duration(n) * time.Millisecond, err
}

func (c *Config) MaxRetries() (int, error) { return c.Int(KeyMaxRetries) }

func (c *Config) RetryWait() (time.Duration, error) {
	n, err := c.Int(KeyRetryWait)
	return time.Duration(n) * time.Millisecond, err
}

func (c *Config) RetryEnabled() (bool, error) { return c.Bool(KeyRetryEnabled) }

// RateLimit is the request rate ceiling per second. Zero disables it.
func (c *Config) RateLimit() (float64, error) {
	raw, ok := c.Get(KeyRateLimit)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &ParseError{Key: KeyRateLimit, Value: raw, Type: "number", Err: err}
	}
	return f, nil
}

func (c *Config) Int(key string) (int, error) {
	raw, ok := c.Get(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ParseError{Key: key, Value: raw, Type: "integer", Err: err}
	}
	return n, nil
}

func (c *Config) Bool(key string) (bool, error) {
	raw, ok := c.Get(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, &ParseError{Key: key, Value: raw, Type: "boolean", Err: err}
	}
	return b, nil
}

var refPattern = regexp.MustCompile(`\$\{([a-zA-Z0-9_.\-]+)\}`)

// Expand replaces ${key} references with configured values. Unknown keys
// are left in place.
func (c *Config) Expand(s string) string {
	return refPattern.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := c.Get(m[2 : len(m)-1]); ok {
			return v
		}
		return m
	})
}
