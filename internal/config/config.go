package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "NODEFLOW"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultDatabasePath     = "nodeflow.db"
	defaultLogLevel         = "info"
	defaultLogEncoding      = "json"
	defaultAllowedOrigins   = "*"
	defaultTokenIssuer      = "nodeflow"
	defaultTokenTTLMinutes  = 720
	defaultAnalysisAttempts = 3
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress         string
	DatabasePath        string
	LogLevel            string
	LogEncoding         string
	AllowedOrigins      []string
	AuthSigningSecret   string
	AuthIssuer          string
	AuthTokenTTL        time.Duration
	AnalysisMaxAttempts int
}

// AuthEnabled reports whether bearer tokens are required on the API.
func (c AppConfig) AuthEnabled() bool {
	return strings.TrimSpace(c.AuthSigningSecret) != ""
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.encoding", defaultLogEncoding)
	configViper.SetDefault("cors.allowed_origins", defaultAllowedOrigins)
	configViper.SetDefault("auth.signing_secret", "")
	configViper.SetDefault("auth.issuer", defaultTokenIssuer)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("analysis.max_attempts", defaultAnalysisAttempts)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:         configViper.GetString("http.address"),
		DatabasePath:        configViper.GetString("database.path"),
		LogLevel:            configViper.GetString("log.level"),
		LogEncoding:         strings.ToLower(strings.TrimSpace(configViper.GetString("log.encoding"))),
		AllowedOrigins:      splitList(configViper.GetString("cors.allowed_origins")),
		AuthSigningSecret:   configViper.GetString("auth.signing_secret"),
		AuthIssuer:          configViper.GetString("auth.issuer"),
		AuthTokenTTL:        time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		AnalysisMaxAttempts: configViper.GetInt("analysis.max_attempts"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.LogEncoding != "json" && c.LogEncoding != "console" {
		return fmt.Errorf("log.encoding must be json or console")
	}
	if c.AuthTokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if c.AuthEnabled() && strings.TrimSpace(c.AuthIssuer) == "" {
		return fmt.Errorf("auth.issuer is required when auth.signing_secret is set")
	}
	if c.AnalysisMaxAttempts < 1 {
		return fmt.Errorf("analysis.max_attempts must be at least 1")
	}
	return nil
}

func splitList(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
