package config

import (
	"log/slog"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/vango-dev/discuss/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "discuss.toml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "DISCUSS_"

	// DefaultHost is the default dev server host.
	DefaultHost = "localhost"

	// DefaultPort is the default dev server port.
	DefaultPort = 7070

	// DefaultBaseURL points the client at the default dev server.
	DefaultBaseURL = "http://localhost:7070"

	// DefaultTimeout bounds each remote request.
	DefaultTimeout = 10 * time.Second

	// DefaultNamespace is the Prometheus namespace.
	DefaultNamespace = "discuss"
)

// DefaultPaths are searched in order when Load is given no path.
var DefaultPaths = []string{"./" + ConfigFileName, "$HOME/." + ConfigFileName}

// Config is the discuss configuration.
type Config struct {
	API       APIConfig       `koanf:"api"`
	Query     QueryConfig     `koanf:"query"`
	Mutations MutationsConfig `koanf:"mutations"`
	Server    ServerConfig    `koanf:"server"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`

	// path is the file the config was loaded from, if any.
	path string
}

// APIConfig configures the comments API client.
type APIConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// QueryConfig configures the query cache.
type QueryConfig struct {
	// StaleTime is how long fetched data counts as fresh. Zero refetches on
	// every read.
	StaleTime time.Duration `koanf:"stale_time"`
}

// MutationsConfig configures mutations.
type MutationsConfig struct {
	// Serialize runs mutations on the same discussion one at a time.
	Serialize bool `koanf:"serialize"`
}

// ServerConfig configures the dev server.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// FailDeletes makes every DELETE fail with 500.
	FailDeletes bool `koanf:"fail_deletes"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `koanf:"level"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// defaults flattens New into koanf keys, the first layer of Load.
func defaults() map[string]interface{} {
	d := New()
	return map[string]interface{}{
		"api.base_url":        d.API.BaseURL,
		"api.timeout":         d.API.Timeout.String(),
		"query.stale_time":    d.Query.StaleTime.String(),
		"mutations.serialize": d.Mutations.Serialize,
		"server.host":         d.Server.Host,
		"server.port":         d.Server.Port,
		"server.fail_deletes": d.Server.FailDeletes,
		"metrics.enabled":     d.Metrics.Enabled,
		"metrics.namespace":   d.Metrics.Namespace,
		"log.level":           d.Log.Level,
	}
}

// Load builds the configuration from defaults, the config file and the
// environment, then validates it. An explicit path must exist; with an empty
// path the DefaultPaths are tried and a missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.New("E120").Wrap(err)
	}

	if path == "" {
		for _, p := range DefaultPaths {
			p = os.ExpandEnv(p)
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, errors.New("E141").
			WithDetail("No " + ConfigFileName + " at " + path)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errors.New("E120").
				WithDetail("Failed to parse " + path + ": " + err.Error())
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.New("E123").
			WithDetail(err.Error())
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps DISCUSS_API_BASE_URL to api.base_url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Path returns the file the config was loaded from, or "".
func (c *Config) Path() string {
	return c.path
}

var namespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("E121").
			WithDetail(strconv.Quote(c.API.BaseURL))
	}
	if c.API.Timeout < 0 {
		return errors.New("E123").
			WithDetail("api.timeout must not be negative")
	}
	if c.Query.StaleTime < 0 {
		return errors.New("E123").
			WithDetail("query.stale_time must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E122").
			WithDetail("server.port is " + strconv.Itoa(c.Server.Port))
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Metrics.Enabled && !namespacePattern.MatchString(c.Metrics.Namespace) {
		return errors.New("E125").
			WithDetail(strconv.Quote(c.Metrics.Namespace))
	}
	return nil
}

// SlogLevel parses Log.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, errors.New("E124").
			WithDetail(strconv.Quote(c.Log.Level))
	}
	return level, nil
}

// ServerAddress returns the dev server listen address.
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Init writes a sample configuration file to path. It refuses to overwrite
// an existing file.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.New("E120").
			WithDetail("configuration file already exists at " + path)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}
	return nil
}

const sampleConfig = `# discuss configuration

[api]
base_url = "http://localhost:7070"
timeout = "10s"

[query]
stale_time = "0s"

[mutations]
serialize = false

[server]
host = "localhost"
port = 7070
fail_deletes = false

[metrics]
enabled = true
namespace = "discuss"

[log]
level = "info"
`
