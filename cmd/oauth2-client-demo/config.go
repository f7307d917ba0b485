package main

import (
	"errors"
	"strings"
	"time"
)

// Config holds server configuration loaded from environment variables
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	BaseURL  string `envconfig:"BASE_URL" required:"true"`
	RedisURL string `envconfig:"REDIS_URL"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	KeycloakURL          string `envconfig:"KEYCLOAK_URL" required:"true"`
	KeycloakRealm        string `envconfig:"KEYCLOAK_REALM" required:"true"`
	KeycloakClientID     string `envconfig:"KEYCLOAK_CLIENT_ID" required:"true"`
	KeycloakClientSecret string `envconfig:"KEYCLOAK_CLIENT_SECRET"`
	KeycloakBasicAuth    bool   `envconfig:"KEYCLOAK_BASIC_AUTH" default:"false"`

	// Scopes is a space separated scope list, provider defaults if empty
	Scopes string `envconfig:"SCOPES"`

	StateSecret string        `envconfig:"STATE_SECRET" required:"true"`
	StateTTL    time.Duration `envconfig:"STATE_TTL" default:"10m"`

	DeviceMaxPolls int `envconfig:"DEVICE_MAX_POLLS" default:"360"`

	HTTPClientTimeout time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"30s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"35s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
}

// RedirectURI returns the callback URL registered with the provider
func (c Config) RedirectURI() string {
	return strings.TrimRight(c.BaseURL, "/") + "/callback"
}

// Validate checks values envconfig cannot express
func (c Config) Validate() error {
	if len(c.StateSecret) < 32 {
		return errors.New("STATE_SECRET must be at least 32 bytes")
	}
	if c.StateTTL <= 0 {
		return errors.New("STATE_TTL must be positive")
	}
	return nil
}
