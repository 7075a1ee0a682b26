package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-supplied service configuration.
type Config struct {
	Port   string `env:"PORT" envDefault:"3000"`
	AppURL string `env:"APP_URL" envDefault:"http://localhost:3000"`

	MongoURI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"slack_salesforce_link"`

	// RedisAddr, when set, moves link request storage to Redis.
	RedisAddr string `env:"REDIS_ADDR"`

	SlackClientID      string `env:"SLACK_CLIENT_ID"`
	SlackClientSecret  string `env:"SLACK_CLIENT_SECRET"`
	SlackSigningSecret string `env:"SLACK_SIGNING_SECRET"`

	SalesforceClientID     string `env:"SALESFORCE_CLIENT_ID"`
	SalesforceClientSecret string `env:"SALESFORCE_CLIENT_SECRET"`
	SalesforceRedirectURL  string `env:"SALESFORCE_REDIRECT_URL"`
	SalesforceLoginURL     string `env:"SALESFORCE_LOGIN_URL" envDefault:"https://login.salesforce.com"`

	LinkRequestTTL time.Duration `env:"LINK_REQUEST_TTL" envDefault:"10m"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
}

// Load parses configuration from the environment and validates required
// provider credentials.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	required := map[string]string{
		"SLACK_CLIENT_ID":          cfg.SlackClientID,
		"SLACK_CLIENT_SECRET":      cfg.SlackClientSecret,
		"SLACK_SIGNING_SECRET":     cfg.SlackSigningSecret,
		"SALESFORCE_CLIENT_ID":     cfg.SalesforceClientID,
		"SALESFORCE_CLIENT_SECRET": cfg.SalesforceClientSecret,
	}
	for name, value := range required {
		if value == "" {
			return nil, fmt.Errorf("%s environment variable is required", name)
		}
	}

	if cfg.SalesforceRedirectURL == "" {
		cfg.SalesforceRedirectURL = cfg.AppURL + "/salesforce/oauth_redirect"
	}
	return &cfg, nil
}

// SlackRedirectURL is the install callback the Slack app must be configured
// with.
func (c *Config) SlackRedirectURL() string {
	return c.AppURL + "/slack/oauth_redirect"
}
