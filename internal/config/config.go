// File: internal/config/config.go
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format   string `yaml:"format" validate:"oneof=json console"`
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" validate:"min=0"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" validate:"required"`
	MaxConns int32  `yaml:"max_conns" validate:"min=0"`
	Migrate  bool   `yaml:"migrate"` // apply migrations on startup
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables the sweep lock and caches
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type MailConfig struct {
	Driver   string `yaml:"driver" validate:"oneof=smtp noop"`
	Host     string `yaml:"host" validate:"required_if=Driver smtp"`
	Port     int    `yaml:"port" validate:"required_if=Driver smtp"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from" validate:"omitempty,email"`
	FromName string `yaml:"from_name"`
	TLS      string `yaml:"tls" validate:"omitempty,oneof=starttls smtps none"`
	Language string `yaml:"language" validate:"omitempty,oneof=en nl"`
}

type ReconcileConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type SweepConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	Cutoff    time.Duration `yaml:"cutoff"`
	BatchSize int           `yaml:"batch_size" validate:"min=0"`
	LockTTL   time.Duration `yaml:"lock_ttl"`
}

type DispatchConfig struct {
	Workers       int           `yaml:"workers" validate:"min=0"`
	QueueSize     int           `yaml:"queue_size" validate:"min=0"`
	EffectTimeout time.Duration `yaml:"effect_timeout"`
}

type AuditConfig struct {
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic" validate:"required_with=KafkaBrokers"`
}

type ProviderConfig struct {
	Default               string `yaml:"default" validate:"omitempty,oneof=generic stripe zarinpal"`
	StripeWebhookSecret   string `yaml:"stripe_webhook_secret"`
	ZarinPalWebhookSecret string `yaml:"zarinpal_webhook_secret"`
}

type AdminConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"` // empty disables /admin routes
	TokenTTL    time.Duration `yaml:"token_ttl"`
	SweepPerMin int           `yaml:"sweep_per_min" validate:"min=0"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Mail      MailConfig      `yaml:"mail"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Audit     AuditConfig     `yaml:"audit"`
	Provider  ProviderConfig  `yaml:"provider"`
	Admin     AdminConfig     `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses -config and -dev from the command line and loads the file.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

// Load reads, defaults, overrides from the environment and validates the config at path.
func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := Check(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}
	if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
		cfg.Provider.StripeWebhookSecret = v
	}
	if v := os.Getenv("ZARINPAL_WEBHOOK_SECRET"); v != "" {
		cfg.Provider.ZarinPalWebhookSecret = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	cfg.HTTP.ReadTimeout = orDefault(cfg.HTTP.ReadTimeout, 15*time.Second)
	cfg.HTTP.WriteTimeout = orDefault(cfg.HTTP.WriteTimeout, 30*time.Second)
	cfg.HTTP.ShutdownTimeout = orDefault(cfg.HTTP.ShutdownTimeout, 20*time.Second)
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}
	if cfg.Mail.Driver == "" {
		cfg.Mail.Driver = "noop"
	}
	if cfg.Mail.TLS == "" {
		cfg.Mail.TLS = "starttls"
	}
	if cfg.Mail.Language == "" {
		cfg.Mail.Language = "en"
	}
	cfg.Redis.TTL = orDefault(cfg.Redis.TTL, time.Hour)
	cfg.Reconcile.Timeout = orDefault(cfg.Reconcile.Timeout, 10*time.Second)
	cfg.Sweep.Interval = orDefault(cfg.Sweep.Interval, 30*time.Minute)
	cfg.Sweep.Cutoff = orDefault(cfg.Sweep.Cutoff, 30*time.Minute)
	cfg.Sweep.LockTTL = orDefault(cfg.Sweep.LockTTL, 10*time.Minute)
	if cfg.Sweep.BatchSize <= 0 {
		cfg.Sweep.BatchSize = 200
	}
	if cfg.Dispatch.Workers <= 0 {
		cfg.Dispatch.Workers = 4
	}
	if cfg.Dispatch.QueueSize <= 0 {
		cfg.Dispatch.QueueSize = 64
	}
	cfg.Dispatch.EffectTimeout = orDefault(cfg.Dispatch.EffectTimeout, 30*time.Second)
	if cfg.Provider.Default == "" {
		cfg.Provider.Default = "generic"
	}
	cfg.Admin.TokenTTL = orDefault(cfg.Admin.TokenTTL, time.Hour)
	if cfg.Admin.SweepPerMin <= 0 {
		cfg.Admin.SweepPerMin = 6
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
