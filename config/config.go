// Package config loads shelf-auth settings from the environment.
//
// Values are read with github.com/caarlos0/env. A .env file in the working
// directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	auth "github.com/newsshelf/shelf-auth"
)

// Config implements auth.Config and carries the server settings
type Config struct {
	JWT    JWTConfig
	Admin  AdminConfig
	DB     DBConfig    `envPrefix:"DB_"`
	Redis  RedisConfig `envPrefix:"REDIS_"`
	Events EventsConfig
	OAuth  OAuthConfig
	HTTP   HTTPConfig
	Debug  bool `env:"DEBUG" envDefault:"false"`
	// HashidIDs derives new user ids from their email instead of random UUIDs
	HashidIDs bool `env:"USER_HASHID_IDS" envDefault:"false"`
}

type JWTConfig struct {
	SigningKey    string   `env:"JWT_SIGNING_KEY,required,unset"`
	SigningMethod string   `env:"JWT_SIGNING_METHOD" envDefault:"HS256"`
	Issuer        string   `env:"JWT_ISSUER" envDefault:"newsshelf"`
	Audience      []string `env:"JWT_AUDIENCE" envSeparator:"," envDefault:"newsshelf"`
	// ExpiryMinutes is the token lifetime
	ExpiryMinutes int `env:"JWT_EXPIRY_MINUTES" envDefault:"60"`
}

type AdminConfig struct {
	Email    string `env:"ADMIN_EMAIL,required"`
	Password string `env:"ADMIN_PASSWORD,unset"`
}

type DBConfig struct {
	DSN   string `env:"DSN" envDefault:"file:shelf-auth.db?cache=shared&_fk=1"`
	Debug bool   `env:"DEBUG" envDefault:"false"`
}

type RedisConfig struct {
	// Addr empty disables event publishing
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD,unset"`
	DB       int    `env:"DB" envDefault:"0"`
}

type EventsConfig struct {
	ChannelPrefix string `env:"EVENTS_CHANNEL_PREFIX" envDefault:"newsshelf.events."`
	QueueSize     int    `env:"EVENTS_QUEUE_SIZE" envDefault:"256"`
}

type OAuthConfig struct {
	Enabled      bool   `env:"OAUTH_ENABLED" envDefault:"false"`
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET,unset"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
	Issuer       string `env:"GOOGLE_ISSUER" envDefault:"https://accounts.google.com"`
}

type HTTPConfig struct {
	Addr                 string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout      time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ContextKey           string        `env:"AUTH_CONTEXT_KEY" envDefault:"user"`
	TokenLookup          string        `env:"AUTH_TOKEN_LOOKUP" envDefault:"header:Authorization"`
	AuthScheme           string        `env:"AUTH_SCHEME" envDefault:"Bearer"`
	RejectedRouteKey     string        `env:"AUTH_REJECTED_ROUTE_KEY" envDefault:"rejected_route"`
	RejectedRouteDefault string        `env:"AUTH_REJECTED_ROUTE_DEFAULT" envDefault:"/"`
	LoginPath            string        `env:"AUTH_LOGIN_PATH" envDefault:"/login"`
}

var _ auth.Config = (*Config)(nil)

// Load reads an optional .env file and parses the environment
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}
	return Parse()
}

// Parse reads the process environment only
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Sanitize trims values and restores defaults for out of range numbers
func (c *Config) Sanitize() {
	c.Admin.Email = strings.ToLower(strings.TrimSpace(c.Admin.Email))
	c.JWT.SigningMethod = strings.ToUpper(strings.TrimSpace(c.JWT.SigningMethod))

	if c.JWT.ExpiryMinutes <= 0 {
		c.JWT.ExpiryMinutes = 60
	}
	if c.Events.QueueSize <= 0 {
		c.Events.QueueSize = 256
	}

	aud := c.JWT.Audience[:0]
	for _, a := range c.JWT.Audience {
		if a = strings.TrimSpace(a); a != "" {
			aud = append(aud, a)
		}
	}
	c.JWT.Audience = aud
}

func (c *Config) Validate() error {
	if len(c.JWT.SigningKey) < 32 {
		return errors.New("config: JWT_SIGNING_KEY must be at least 32 bytes")
	}
	if c.JWT.SigningMethod != "HS256" {
		return fmt.Errorf("config: unsupported JWT_SIGNING_METHOD %q", c.JWT.SigningMethod)
	}
	if !strings.Contains(c.Admin.Email, "@") {
		return fmt.Errorf("config: ADMIN_EMAIL %q is not an email", c.Admin.Email)
	}
	if c.OAuth.Enabled && c.OAuth.ClientID == "" {
		return errors.New("config: GOOGLE_CLIENT_ID is required when OAUTH_ENABLED is set")
	}
	return nil
}

func (c *Config) GetSigningKey() string           { return c.JWT.SigningKey }
func (c *Config) GetSigningMethod() string        { return c.JWT.SigningMethod }
func (c *Config) GetContextKey() string           { return c.HTTP.ContextKey }
func (c *Config) GetTokenExpiration() int         { return c.JWT.ExpiryMinutes }
func (c *Config) GetTokenLookup() string          { return c.HTTP.TokenLookup }
func (c *Config) GetAuthScheme() string           { return c.HTTP.AuthScheme }
func (c *Config) GetIssuer() string               { return c.JWT.Issuer }
func (c *Config) GetAudience() []string           { return c.JWT.Audience }
func (c *Config) GetRejectedRouteKey() string     { return c.HTTP.RejectedRouteKey }
func (c *Config) GetRejectedRouteDefault() string { return c.HTTP.RejectedRouteDefault }
func (c *Config) GetMainAdminEmail() string       { return c.Admin.Email }
