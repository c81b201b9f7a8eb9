package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Mail     MailConfig     `yaml:"mail"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Trace    TraceConfig    `yaml:"trace"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
	Workers  WorkersConfig  `yaml:"workers"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	Mode         string        `yaml:"mode"` // debug / release / test
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Driver        string        `yaml:"driver"` // mysql / postgres / sqlite
	DSN           string        `yaml:"dsn"`
	MaxOpenConns  int           `yaml:"max_open_conns"`
	MaxIdleConns  int           `yaml:"max_idle_conns"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	AccessSecret  string        `yaml:"access_secret"`
	RefreshSecret string        `yaml:"refresh_secret"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl"`
}

type MailConfig struct {
	Provider       string        `yaml:"provider"` // smtp / sendgrid / log
	From           string        `yaml:"from"`
	NotifyAddress  string        `yaml:"notify_address"`
	AppURL         string        `yaml:"app_url"`
	SMTPHost       string        `yaml:"smtp_host"`
	SMTPPort       int           `yaml:"smtp_port"`
	SMTPUsername   string        `yaml:"smtp_username"`
	SMTPPassword   string        `yaml:"smtp_password"`
	SendGridAPIKey string        `yaml:"sendgrid_api_key"`
	ResendCooldown time.Duration `yaml:"resend_cooldown"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type TraceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

type CacheConfig struct {
	ListingTTL  time.Duration `yaml:"listing_ttl"`
	ListingSize int           `yaml:"listing_size"`
	ProfileTTL  time.Duration `yaml:"profile_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // json / text
}

type WorkersConfig struct {
	OutboxInterval    time.Duration `yaml:"outbox_interval"`
	OutboxBatch       int           `yaml:"outbox_batch"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	ReconcileBatch    int           `yaml:"reconcile_batch"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			Mode:         "release",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:        "sqlite",
			DSN:           "file:ideas.db?_foreign_keys=on",
			MaxOpenConns:  20,
			MaxIdleConns:  5,
			SlowThreshold: 300 * time.Millisecond,
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379"},
		JWT: JWTConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
		Mail: MailConfig{
			Provider:       "log",
			From:           "Idea Portal <no-reply@example.com>",
			AppURL:         "http://localhost:3000",
			SMTPPort:       587,
			ResendCooldown: time.Minute,
		},
		Kafka: KafkaConfig{Topic: "idea-events"},
		Cache: CacheConfig{
			ListingTTL:  15 * time.Second,
			ListingSize: 512,
			ProfileTTL:  30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Workers: WorkersConfig{
			OutboxInterval:    time.Second,
			OutboxBatch:       200,
			ReconcileInterval: 5 * time.Minute,
			ReconcileBatch:    500,
		},
	}
}

// Load 依次叠加：默认值 -> YAML 文件 -> .env -> IDEAS_* 环境变量
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, errors.Wrap(err, "parse config")
		}
	}
	// .env 不存在时忽略
	_ = godotenv.Load()
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	var firstErr error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "env %s", key)
				}
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "env %s", key)
				}
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "env %s", key)
				}
				return
			}
			*dst = b
		}
	}

	str("IDEAS_SERVER_ADDR", &cfg.Server.Addr)
	str("IDEAS_SERVER_MODE", &cfg.Server.Mode)
	str("IDEAS_DB_DRIVER", &cfg.Database.Driver)
	str("IDEAS_DB_DSN", &cfg.Database.DSN)
	num("IDEAS_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	str("IDEAS_REDIS_ADDR", &cfg.Redis.Addr)
	str("IDEAS_REDIS_PASSWORD", &cfg.Redis.Password)
	num("IDEAS_REDIS_DB", &cfg.Redis.DB)
	str("IDEAS_JWT_ACCESS_SECRET", &cfg.JWT.AccessSecret)
	str("IDEAS_JWT_REFRESH_SECRET", &cfg.JWT.RefreshSecret)
	dur("IDEAS_JWT_ACCESS_TTL", &cfg.JWT.AccessTTL)
	dur("IDEAS_JWT_REFRESH_TTL", &cfg.JWT.RefreshTTL)
	str("IDEAS_MAIL_PROVIDER", &cfg.Mail.Provider)
	str("IDEAS_MAIL_FROM", &cfg.Mail.From)
	str("IDEAS_MAIL_NOTIFY_ADDRESS", &cfg.Mail.NotifyAddress)
	str("IDEAS_APP_URL", &cfg.Mail.AppURL)
	str("IDEAS_SMTP_HOST", &cfg.Mail.SMTPHost)
	num("IDEAS_SMTP_PORT", &cfg.Mail.SMTPPort)
	str("IDEAS_SMTP_USERNAME", &cfg.Mail.SMTPUsername)
	str("IDEAS_SMTP_PASSWORD", &cfg.Mail.SMTPPassword)
	str("IDEAS_SENDGRID_API_KEY", &cfg.Mail.SendGridAPIKey)
	flag("IDEAS_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v, ok := lookup("IDEAS_KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(v)
	}
	str("IDEAS_KAFKA_TOPIC", &cfg.Kafka.Topic)
	flag("IDEAS_TRACE_ENABLED", &cfg.Trace.Enabled)
	str("IDEAS_TRACE_ENDPOINT", &cfg.Trace.Endpoint)
	dur("IDEAS_CACHE_LISTING_TTL", &cfg.Cache.ListingTTL)
	str("IDEAS_LOG_LEVEL", &cfg.Log.Level)
	str("IDEAS_LOG_FORMAT", &cfg.Log.Format)
	return firstErr
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return errors.Errorf("database.driver %q not supported", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("jwt secrets are required")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("jwt ttl must be positive")
	}
	switch c.Mail.Provider {
	case "log":
	case "smtp":
		if c.Mail.SMTPHost == "" {
			return errors.New("mail.smtp_host is required for smtp provider")
		}
	case "sendgrid":
		if c.Mail.SendGridAPIKey == "" {
			return errors.New("mail.sendgrid_api_key is required for sendgrid provider")
		}
	default:
		return errors.Errorf("mail.provider %q not supported", c.Mail.Provider)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}
	if c.Trace.Enabled && c.Trace.Endpoint == "" {
		return errors.New("trace.endpoint is required when tracing is enabled")
	}
	return nil
}
