package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr           string        `mapstructure:"addr"`
		LogLevel       string        `mapstructure:"log_level"`
		LogFormat      string        `mapstructure:"log_format"`
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
		CORSOrigins    []string      `mapstructure:"cors_origins"`
		RateLimit      int           `mapstructure:"rate_limit"`
	} `mapstructure:"server"`

	CMS struct {
		SpaceID       string        `mapstructure:"space_id" validate:"required"`
		Environment   string        `mapstructure:"environment"`
		DeliveryToken string        `mapstructure:"delivery_token" validate:"required"`
		PreviewToken  string        `mapstructure:"preview_token" validate:"required"`
		DeliveryHost  string        `mapstructure:"delivery_host"`
		PreviewHost   string        `mapstructure:"preview_host"`
		Timeout       time.Duration `mapstructure:"timeout"`
	} `mapstructure:"cms"`

	Target struct {
		Host             string        `mapstructure:"host" validate:"required"`
		ClientCode       string        `mapstructure:"client_code" validate:"required"`
		PropertyToken    string        `mapstructure:"property_token" validate:"required"`
		Timeout          time.Duration `mapstructure:"timeout"`
		DefaultVisitorID string        `mapstructure:"default_visitor_id"`
	} `mapstructure:"target"`

	Merge struct {
		Strategy      string `mapstructure:"strategy" validate:"oneof=target_id positional"`
		DisplayLength int    `mapstructure:"display_length"`
	} `mapstructure:"merge"`

	Analytics struct {
		Endpoint string        `mapstructure:"endpoint" validate:"omitempty,url"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"analytics"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	Listener struct {
		Channel          string `mapstructure:"channel"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"listener"`
}

// Load reads configs/application.yaml (if any) and APP_* environment variables.
// Missing required keys are returned as ErrInvalid; callers treat that as fatal.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// AutomaticEnv only resolves keys viper already knows about, so every key is bound explicitly.
func bindEnv(v *viper.Viper) {
	for _, k := range []string{
		"server.addr", "server.log_level", "server.log_format", "server.request_timeout",
		"server.cors_origins", "server.rate_limit",
		"cms.space_id", "cms.environment", "cms.delivery_token", "cms.preview_token",
		"cms.delivery_host", "cms.preview_host", "cms.timeout",
		"target.host", "target.client_code", "target.property_token", "target.timeout",
		"target.default_visitor_id",
		"merge.strategy", "merge.display_length",
		"analytics.endpoint", "analytics.timeout",
		"postgres.host", "postgres.port", "postgres.user", "postgres.password", "postgres.db_name",
		"postgres.ssl_mode", "postgres.max_open_conns", "postgres.max_idle_conns",
		"listener.channel", "listener.reconnect_seconds",
	} {
		_ = v.BindEnv(k)
	}
}

func applyDefaults(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "console"
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 5 * time.Second
	}
	if c.CMS.Environment == "" {
		c.CMS.Environment = "master"
	}
	if c.CMS.DeliveryHost == "" {
		c.CMS.DeliveryHost = "cdn.contentful.com"
	}
	if c.CMS.PreviewHost == "" {
		c.CMS.PreviewHost = "preview.contentful.com"
	}
	if c.CMS.Timeout <= 0 {
		c.CMS.Timeout = 4 * time.Second
	}
	if c.Target.Timeout <= 0 {
		c.Target.Timeout = 1500 * time.Millisecond
	}
	if c.Target.DefaultVisitorID == "" {
		c.Target.DefaultVisitorID = "74489933867880856123472568655649636017"
	}
	if c.Merge.Strategy == "" {
		c.Merge.Strategy = "target_id"
	}
	if c.Merge.DisplayLength <= 0 {
		c.Merge.DisplayLength = 4
	}
	if c.Analytics.Timeout <= 0 {
		c.Analytics.Timeout = 3 * time.Second
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = 4
	}
	if c.Postgres.MaxIdleConns == 0 {
		c.Postgres.MaxIdleConns = 1
	}
	if c.Listener.Channel == "" {
		c.Listener.Channel = "homepage_sections"
	}
	if c.Listener.ReconnectSeconds <= 0 {
		c.Listener.ReconnectSeconds = 5
	}
}

// Validate reports every invalid field at once.
func Validate(c Config) error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace())
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, ", "))
}

// FallbackEnabled reports whether the Postgres last-known-good store is configured.
func (c Config) FallbackEnabled() bool { return c.Postgres.Host != "" }

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) Backoff() time.Duration { return time.Duration(c.Listener.ReconnectSeconds) * time.Second }
