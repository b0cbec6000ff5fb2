// Package config loads the accounts service configuration from an optional
// YAML file and ACCOUNTS_* environment variables.
package config

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/samber/oops"
	"github.com/spf13/viper"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/mail"
)

// EnvPrefix prefixes every environment override, ACCOUNTS_DATABASE_DSN
// sets database.dsn.
const EnvPrefix = "ACCOUNTS"

// Config holds the service configuration. It implements accounts.Config.
type Config struct {
	SigningKey            string        `mapstructure:"signing_key"`
	ContextKey            string        `mapstructure:"context_key"`
	TokenExpiration       int           `mapstructure:"token_expiration"`
	ExtendedTokenDuration int           `mapstructure:"extended_token_duration"`
	Issuer                string        `mapstructure:"issuer"`
	Audience              []string      `mapstructure:"audience"`
	RejectedRouteKey      string        `mapstructure:"rejected_route_key"`
	RejectedRouteDefault  string        `mapstructure:"rejected_route_default"`
	CookieSecure          bool          `mapstructure:"cookie_secure"`
	SiteURL               string        `mapstructure:"site_url"`
	SiteName              string        `mapstructure:"site_name"`
	DefaultFromEmail      string        `mapstructure:"default_from_email"`
	LoginRedirect         string        `mapstructure:"login_redirect"`
	VerificationTokenTTL  time.Duration `mapstructure:"verification_token_ttl"`
	PasswordResetTokenTTL time.Duration `mapstructure:"password_reset_token_ttl"`

	Server     Server              `mapstructure:"server"`
	Database   Database            `mapstructure:"database"`
	Mail       mail.ProviderConfig `mapstructure:"mail"`
	Dispatcher Dispatcher          `mapstructure:"dispatcher"`
	Throttle   Throttle            `mapstructure:"throttle"`
	Lockout    Lockout             `mapstructure:"lockout"`
	Logger     Logger              `mapstructure:"logger"`
}

type Server struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CSRF            bool          `mapstructure:"csrf"`
	Debug           bool          `mapstructure:"debug"`
	MetricsPath     string        `mapstructure:"metrics_path"`
}

type Database struct {
	// Dialect is sqlite or postgres.
	Dialect string `mapstructure:"dialect"`
	DSN     string `mapstructure:"dsn"`
	Migrate bool   `mapstructure:"migrate"`
	Debug   bool   `mapstructure:"debug"`
}

type Dispatcher struct {
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	MaxRetries  uint64        `mapstructure:"max_retries"`
	RetryBase   time.Duration `mapstructure:"retry_base"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// Throttle limits verification resends. With an empty RedisAddr the limit
// is kept in process memory.
type Throttle struct {
	Interval      time.Duration `mapstructure:"interval"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
}

// Lockout limits failed logins per account, see accounts.LockoutPolicy.
type Lockout struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	CoolDown    time.Duration `mapstructure:"cool_down"`
}

// Policy returns the lockout as an accounts.LockoutPolicy.
func (l Lockout) Policy() accounts.LockoutPolicy {
	return accounts.LockoutPolicy{
		MaxAttempts: l.MaxAttempts,
		CoolDown:    l.CoolDown,
	}
}

type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var _ accounts.Config = (*Config)(nil)

func setDefaults(v *viper.Viper) {
	v.SetDefault("signing_key", "")
	v.SetDefault("context_key", "accounts_session")
	v.SetDefault("token_expiration", 24)
	v.SetDefault("extended_token_duration", 24*14)
	v.SetDefault("issuer", "go-accounts")
	v.SetDefault("audience", []string{})
	v.SetDefault("rejected_route_key", "accounts_next")
	v.SetDefault("rejected_route_default", "/")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("site_url", "http://localhost:8000")
	v.SetDefault("site_name", "Accounts")
	v.SetDefault("default_from_email", "webmaster@localhost")
	v.SetDefault("login_redirect", "/")
	v.SetDefault("verification_token_ttl", accounts.DefaultVerificationTokenTTL)
	v.SetDefault("password_reset_token_ttl", accounts.DefaultPasswordResetTokenTTL)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.csrf", true)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("database.dialect", "sqlite")
	v.SetDefault("database.dsn", "file:accounts.db?cache=shared")
	v.SetDefault("database.migrate", true)
	v.SetDefault("database.debug", false)

	v.SetDefault("mail.provider", "log")
	v.SetDefault("mail.smtp.host", "")
	v.SetDefault("mail.smtp.port", "25")
	v.SetDefault("mail.smtp.username", "")
	v.SetDefault("mail.smtp.password", "")
	v.SetDefault("mail.mailgun.key", "")
	v.SetDefault("mail.mailgun.domain", "")
	v.SetDefault("mail.mailgun.api_base", "")
	v.SetDefault("mail.sendgrid.key", "")

	v.SetDefault("dispatcher.workers", 2)
	v.SetDefault("dispatcher.queue_size", 100)
	v.SetDefault("dispatcher.max_retries", 3)
	v.SetDefault("dispatcher.retry_base", 500*time.Millisecond)
	v.SetDefault("dispatcher.max_failures", 5)
	v.SetDefault("dispatcher.open_timeout", 30*time.Second)

	v.SetDefault("throttle.interval", time.Minute)
	v.SetDefault("throttle.redis_addr", "")
	v.SetDefault("throttle.redis_password", "")
	v.SetDefault("throttle.redis_db", 0)
	v.SetDefault("throttle.redis_prefix", "accounts:throttle:")

	v.SetDefault("lockout.max_attempts", accounts.MaxLoginAttempts)
	v.SetDefault("lockout.cool_down", accounts.DefaultCoolDown)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
}

// Load reads path when given, or accounts.yaml from the working directory
// when present, then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("accounts")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, oops.
				In("config").
				Code("CONFIG_READ").
				With("path", path).
				Wrapf(err, "failed to read config")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, oops.
			In("config").
			Code("CONFIG_DECODE").
			Wrapf(err, "failed to decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings the service can not start without.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.ContextKey, validation.Required),
		validation.Field(&c.TokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&c.SiteURL, validation.Required, is.URL),
		validation.Field(&c.DefaultFromEmail, validation.Required, is.Email),
		validation.Field(&c.VerificationTokenTTL, validation.Required),
		validation.Field(&c.PasswordResetTokenTTL, validation.Required),
		validation.Field(&c.Database),
		validation.Field(&c.Mail, validation.By(validateMail)),
	)
	if err != nil {
		return oops.
			In("config").
			Code("CONFIG_INVALID").
			Wrap(err)
	}
	return nil
}

func (d Database) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Dialect, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&d.DSN, validation.Required),
	)
}

func validateMail(value any) error {
	cfg, _ := value.(mail.ProviderConfig)
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Provider, validation.In("", "log", "console", "memory", "smtp", "mailgun", "sendgrid")),
	)
}

func (c *Config) GetSigningKey() string                   { return c.SigningKey }
func (c *Config) GetContextKey() string                   { return c.ContextKey }
func (c *Config) GetTokenExpiration() int                 { return c.TokenExpiration }
func (c *Config) GetExtendedTokenDuration() int           { return c.ExtendedTokenDuration }
func (c *Config) GetIssuer() string                       { return c.Issuer }
func (c *Config) GetAudience() []string                   { return c.Audience }
func (c *Config) GetRejectedRouteKey() string             { return c.RejectedRouteKey }
func (c *Config) GetRejectedRouteDefault() string         { return c.RejectedRouteDefault }
func (c *Config) GetCookieSecure() bool                   { return c.CookieSecure }
func (c *Config) GetSiteURL() string                      { return c.SiteURL }
func (c *Config) GetSiteName() string                     { return c.SiteName }
func (c *Config) GetDefaultFromEmail() string             { return c.DefaultFromEmail }
func (c *Config) GetLoginRedirect() string                { return c.LoginRedirect }
func (c *Config) GetVerificationTokenTTL() time.Duration  { return c.VerificationTokenTTL }
func (c *Config) GetPasswordResetTokenTTL() time.Duration { return c.PasswordResetTokenTTL }
