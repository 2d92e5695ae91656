package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Client struct {
	ID      string   `koanf:"id"`
	Secret  string   `koanf:"secret"`
	Perms   []string `koanf:"perms"`
	Enabled bool     `koanf:"enabled"`
}

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Cache struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cache"`

	Rabbit struct {
		URL      string `koanf:"url"`
		Exchange string `koanf:"exchange"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers []string `koanf:"brokers"`
		Topic   string   `koanf:"topic"`
		GroupID string   `koanf:"group_id"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
		Clients   []Client      `koanf:"clients"`
	} `koanf:"security"`

	Webhook struct {
		// SecretB64 is the base64url-encoded HMAC key shared with the payment
		// gateway.
		SecretB64    string `koanf:"secret_b64url"`
		MaxBodyBytes int64  `koanf:"max_body_bytes"`
	} `koanf:"webhook"`

	Pricing struct {
		OrderTTL            time.Duration `koanf:"order_ttl"`
		GraceWindow         time.Duration `koanf:"grace_window"`
		PartialExtension    time.Duration `koanf:"partial_extension"`
		CancelPenaltyPct    string        `koanf:"cancel_penalty_pct"`
		UnderpayPenaltyPct  string        `koanf:"underpay_penalty_pct"`
		LatePenaltyPct      string        `koanf:"late_penalty_pct"`
		OverpayTolerancePct string        `koanf:"overpay_tolerance_pct"`
	} `koanf:"pricing"`

	// Rates maps currency code to fiat price per coin, decimal strings.
	Rates map[string]string `koanf:"rates"`

	Sweep struct {
		Interval  time.Duration `koanf:"interval"`
		BatchSize int           `koanf:"batch_size"`
	} `koanf:"sweep"`
}

// Load reads base.yaml, then an optional per-env overlay, then environment
// variables (prefix SHOPCORE_, nested with __, e.g. SHOPCORE_MYSQL__DSN).
func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	if err := k.Load(env.Provider("SHOPCORE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "SHOPCORE_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn required")
	}
	if c.Webhook.SecretB64 == "" {
		return fmt.Errorf("webhook.secret_b64url required")
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be positive")
	}
	return nil
}
