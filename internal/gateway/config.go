package gateway

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultBind             = "127.0.0.1:8080"
	defaultMaxBody          = 1 << 20
	defaultNotificationPath = "/ws/notifications"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind     string                   `yaml:"bind"`
	Auth     AuthConfig               `yaml:"auth"`
	Webhooks map[string]WebhookSource `yaml:"webhooks"`

	// NotificationPath is where clients open the push socket.
	NotificationPath string `yaml:"notification_path"`

	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	// WriteTimeout also bounds POST /api/jobs/{name}/run, which answers
	// only after the job finishes.
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = defaultBind
	}
	if c.NotificationPath == "" {
		c.NotificationPath = defaultNotificationPath
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBody
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.NotificationPath, "/") {
		return fmt.Errorf("gateway: notification_path must start with /, got %q", c.NotificationPath)
	}
	for source := range c.Webhooks {
		if source == "" || strings.Contains(source, "/") {
			return fmt.Errorf("gateway: invalid webhook source name %q", source)
		}
	}
	return nil
}

// AuthConfig protects the admin endpoints. With neither a bearer token nor
// a full basic pair, the admin routes are not mounted.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured reports whether any auth method is usable.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// WebhookSource configures one /webhooks/{source} endpoint. The post
// creation trigger listens on source "posts".
type WebhookSource struct {
	Secret string `yaml:"secret"`
}
