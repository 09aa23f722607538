// Package config loads process settings from the environment, an optional
// finance-angle.yaml file and built-in defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"financeangle/internal/log"
)

// Config is shared by finance-api and finance-worker.
type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	LogLevel           string

	// Database
	SQLiteDBPath string

	// AMQP; an empty URL disables publishing and consuming.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	RecomputeInterval time.Duration

	// Insights
	GeminiAPIKey string
	GeminiModel  string

	// Dashboard
	SummaryExcludePatterns []string
	ImportProfilesFile     string
	ChartCacheTTL          time.Duration
}

// GatewayConfig configures finance-mcp.
type GatewayConfig struct {
	BaseURL        string
	HTTPPort       string
	LogLevel       string
	MaxFrameBytes  int64
	BackendTimeout time.Duration
	ConnectTimeout time.Duration
}

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// DefaultBaseURL is the backend address assumed by each gateway transport.
func DefaultBaseURL(transport string) string {
	if transport == TransportHTTP {
		return "http://app:8080"
	}
	return "http://localhost:8080"
}

func newViper(defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("finance-angle")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.finance-angle")

	for key, def := range defaults {
		v.SetDefault(key, def)
		// Environment names are used verbatim, no prefix.
		if err := v.BindEnv(key, key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

// Load reads the backend configuration.
func Load() (*Config, error) {
	v, err := newViper(map[string]any{
		"PORT":                     "8080",
		"RATE_LIMIT_PER_MINUTE":    120,
		"LOG_LEVEL":                "INFO",
		"SQLITE_DB_PATH":           "./data/finance.db",
		"AMQP_URL":                 "",
		"AMQP_EXCHANGE":            "finance",
		"AMQP_QUEUE":               "account_positions",
		"RECOMPUTE_INTERVAL":       time.Hour,
		"GEMINI_API_KEY":           "",
		"GEMINI_MODEL":             "gemini-1.5-flash",
		"SUMMARY_EXCLUDE_PATTERNS": "",
		"IMPORT_PROFILES_FILE":     "",
		"CHART_CACHE_TTL":          5 * time.Minute,
	})
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:               v.GetString("PORT"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		LogLevel:           v.GetString("LOG_LEVEL"),

		SQLiteDBPath: v.GetString("SQLITE_DB_PATH"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),
		AMQPQueue:    v.GetString("AMQP_QUEUE"),

		RecomputeInterval: v.GetDuration("RECOMPUTE_INTERVAL"),

		GeminiAPIKey: v.GetString("GEMINI_API_KEY"),
		GeminiModel:  v.GetString("GEMINI_MODEL"),

		SummaryExcludePatterns: stringList(v.Get("SUMMARY_EXCLUDE_PATTERNS")),
		ImportProfilesFile:     v.GetString("IMPORT_PROFILES_FILE"),
		ChartCacheTTL:          v.GetDuration("CHART_CACHE_TTL"),
	}, nil
}

// LoadGateway reads the gateway configuration for the given transport.
func LoadGateway(transport string) (*GatewayConfig, error) {
	v, err := newViper(map[string]any{
		"FINANCE_ANGLE_BASE_URL": DefaultBaseURL(transport),
		"MCP_HTTP_PORT":          "3333",
		"MCP_LOG_LEVEL":          "INFO",
		"MCP_MAX_FRAME_BYTES":    4 << 20,
		"MCP_BACKEND_TIMEOUT":    15 * time.Second,
		"MCP_CONNECT_TIMEOUT":    5 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	return &GatewayConfig{
		BaseURL:        strings.TrimRight(v.GetString("FINANCE_ANGLE_BASE_URL"), "/"),
		HTTPPort:       v.GetString("MCP_HTTP_PORT"),
		LogLevel:       v.GetString("MCP_LOG_LEVEL"),
		MaxFrameBytes:  v.GetInt64("MCP_MAX_FRAME_BYTES"),
		BackendTimeout: v.GetDuration("MCP_BACKEND_TIMEOUT"),
		ConnectTimeout: v.GetDuration("MCP_CONNECT_TIMEOUT"),
	}, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, validatePort(c.Port)...)

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOG_LEVEL: %v", err))
	}

	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RecomputeInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid recompute interval %v: must be at least 1 second", c.RecomputeInterval))
	} else if c.RecomputeInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid recompute interval %v: must be at most 24 hours", c.RecomputeInterval))
	}

	if c.ChartCacheTTL <= 0 {
		errs = append(errs, fmt.Sprintf("invalid chart cache TTL %v: must be positive", c.ChartCacheTTL))
	}

	if c.ImportProfilesFile != "" {
		if _, err := os.Stat(c.ImportProfilesFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("import profiles file does not exist: %s", c.ImportProfilesFile))
		}
	}

	return combine(errs)
}

// Validate validates the gateway configuration.
func (c *GatewayConfig) Validate() error {
	var errs []string

	if u, err := url.Parse(c.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid backend base URL '%s': %v", c.BaseURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Sprintf("invalid backend base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}

	errs = append(errs, validatePort(c.HTTPPort)...)

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("invalid MCP_LOG_LEVEL: %v", err))
	}
	if c.MaxFrameBytes < 1 {
		errs = append(errs, fmt.Sprintf("invalid max frame size %d: must be positive", c.MaxFrameBytes))
	}
	if c.BackendTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid backend timeout %v: must be positive", c.BackendTimeout))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid connect timeout %v: must be positive", c.ConnectTimeout))
	}

	return combine(errs)
}

func validatePort(raw string) []string {
	port, err := strconv.Atoi(raw)
	if err != nil {
		return []string{fmt.Sprintf("invalid port '%s': must be a number", raw)}
	}
	if port < 1 || port > 65535 {
		return []string{fmt.Sprintf("invalid port %d: must be between 1 and 65535", port)}
	}
	return nil
}

func combine(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// stringList accepts a comma separated string (environment) or a YAML list.
func stringList(raw any) []string {
	var parts []string
	switch v := raw.(type) {
	case string:
		parts = strings.Split(v, ",")
	case []any:
		for _, p := range v {
			parts = append(parts, fmt.Sprint(p))
		}
	case []string:
		parts = v
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
