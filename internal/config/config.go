package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Version returns the bare version string.
func Version() string {
	return version
}

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("n8n-mcp version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Auth     AuthConfig     `mapstructure:"auth"`
	N8n      N8nConfig      `mapstructure:"n8n"`
	Sessions SessionConfig  `mapstructure:"sessions"`
	NodeDocs NodeDocsConfig `mapstructure:"node_docs"`
}

type ServerMode string

const (
	ServerModeSSE   ServerMode = "sse"
	ServerModeSTDIO ServerMode = "stdio"
	ServerModeHTTP  ServerMode = "http"
)

type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Mode    ServerMode `mapstructure:"mode"`
	Name    string     `mapstructure:"name"`
	Version string     `mapstructure:"version"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// AuthMode selects how the /mcp bearer token is verified.
type AuthMode string

const (
	AuthModeToken AuthMode = "token"
	AuthModeJWT   AuthMode = "jwt"
)

type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Mode    AuthMode `mapstructure:"mode"`
	// Token is the shared secret. In token mode it is compared directly,
	// in jwt mode it is the HS256 signing secret.
	Token        string   `mapstructure:"token"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// N8nConfig holds the default (single-tenant) n8n instance plus the
// multi-tenant toggle. When MultiTenant is true, per-request headers may
// replace the default instance.
type N8nConfig struct {
	URL         string        `mapstructure:"url"`
	APIKey      string        `mapstructure:"api_key"`
	MultiTenant bool          `mapstructure:"multi_tenant"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	MaxSessions   int           `mapstructure:"max_sessions"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type NodeDocsConfig struct {
	Path     string `mapstructure:"path"`
	SeedFile string `mapstructure:"seed_file"`
}

// InitFlags initializes command line flags (without parsing)
func InitFlags() {
	pflag.String("mode", string(ServerModeHTTP), "Server mode (stdio|sse|http)")
	pflag.Int("port", 0, "Server port")
	pflag.String("n8n-url", "", "Default n8n instance URL")
	pflag.String("n8n-api-key", "", "Default n8n API key")
	pflag.String("node-docs-path", "", "Path to the node documentation database")
	// Note: no pflag.Parse() here as it's called in main.go
}

func Load() (*Config, error) {
	viper.Reset() // Ensure clean state

	viper.SetEnvPrefix("N8N_MCP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	setDefaults()

	// Load ./config.yaml first
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/n8n-mcp")

	if err := viper.ReadInConfig(); err != nil {
		// The config file is optional: every key has a default or an
		// environment binding.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Loading additional config files
	if _, err := os.Stat("/config/config.yaml"); err == nil {
		viper.SetConfigFile("/config/config.yaml")
		// Merge /config/config.yaml (overrides overlapping keys)
		if err := viper.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Set server mode from flag
	if mode := viper.GetString("mode"); mode != "" {
		switch ServerMode(mode) {
		case ServerModeSSE, ServerModeSTDIO, ServerModeHTTP:
			config.Server.Mode = ServerMode(mode)
		}
	}

	if port := viper.GetInt("port"); port != 0 {
		config.Server.Port = port
	}
	if u := viper.GetString("n8n-url"); u != "" {
		config.N8n.URL = u
	}
	if k := viper.GetString("n8n-api-key"); k != "" {
		config.N8n.APIKey = k
	}
	if p := viper.GetString("node-docs-path"); p != "" {
		config.NodeDocs.Path = p
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.mode", string(ServerModeHTTP))
	viper.SetDefault("server.name", "n8n-mcp")
	viper.SetDefault("server.version", version)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("auth.mode", string(AuthModeToken))
	viper.SetDefault("n8n.timeout", 30*time.Second)
	viper.SetDefault("sessions.ttl", 30*time.Minute)
	viper.SetDefault("sessions.max_sessions", 1000)
	viper.SetDefault("sessions.sweep_interval", time.Minute)
	viper.SetDefault("node_docs.path", "nodes.db")
}

// Validate checks cross-field constraints that viper cannot express.
func Validate(cfg *Config) error {
	if cfg.Auth.Enabled && cfg.Auth.Token == "" {
		return fmt.Errorf("auth.token is required when auth is enabled, please adjust the config or set N8N_MCP_AUTH_TOKEN")
	}
	switch cfg.Auth.Mode {
	case AuthModeToken, AuthModeJWT, "":
	default:
		return fmt.Errorf("unsupported auth mode: %s", cfg.Auth.Mode)
	}
	if cfg.N8n.URL != "" {
		u, err := url.Parse(cfg.N8n.URL)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("n8n.url must be an absolute http(s) URL, got %q", cfg.N8n.URL)
		}
		if cfg.N8n.APIKey == "" {
			return fmt.Errorf("n8n.api_key is required when n8n.url is set, please adjust the config or set N8N_MCP_N8N_API_KEY")
		}
	}
	return nil
}
