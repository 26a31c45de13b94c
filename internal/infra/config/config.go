package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App           AppSettings           `mapstructure:"app"`
	GRPC          GRPCSettings          `mapstructure:"grpc"`
	Postgres      PostgresSettings      `mapstructure:"postgres"`
	Redis         RedisSettings         `mapstructure:"redis"`
	Kafka         KafkaSettings         `mapstructure:"kafka"`
	JWT           JWTSettings           `mapstructure:"jwt"`
	Tokens        TokenSettings         `mapstructure:"tokens"`
	Cookies       CookieSettings        `mapstructure:"cookies"`
	Auth          AuthSettings          `mapstructure:"auth"`
	Authorization AuthorizationSettings `mapstructure:"authorization"`
	Argon2        Argon2Settings        `mapstructure:"argon2"`
	Password      PasswordSettings      `mapstructure:"password"`
	RateLimit     RateLimitSettings     `mapstructure:"rate_limit"`
	Outbox        OutboxSettings        `mapstructure:"outbox"`
	Mail          MailSettings          `mapstructure:"mail"`
	SMTP          SMTPSettings          `mapstructure:"smtp"`
	Catalog       CatalogSettings       `mapstructure:"catalog"`
	MailWorker    MailWorkerSettings    `mapstructure:"mail_worker"`
	Telemetry     TelemetrySettings     `mapstructure:"telemetry"`
	Bootstrap     BootstrapSettings     `mapstructure:"bootstrap"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type GRPCSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	Schema            string        `mapstructure:"schema"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ApplySchema       bool          `mapstructure:"apply_schema"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures the producer and consumer groups.
type KafkaSettings struct {
	Brokers       []string      `mapstructure:"brokers"`
	TopicPrefix   string        `mapstructure:"topic_prefix"`
	ClientID      string        `mapstructure:"client_id"`
	ConsumerGroup string        `mapstructure:"consumer_group"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

type JWTSettings struct {
	Secret         string        `mapstructure:"secret"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// TokenSettings configures the opaque token kinds.
type TokenSettings struct {
	Store           string        `mapstructure:"store"`
	ByteLength      int           `mapstructure:"byte_length"`
	RefreshTTL      time.Duration `mapstructure:"refresh_ttl"`
	ResetTTL        time.Duration `mapstructure:"reset_ttl"`
	ConfirmationTTL time.Duration `mapstructure:"confirmation_ttl"`
	RedisRetention  time.Duration `mapstructure:"redis_retention"`
}

type CookieSettings struct {
	AccessTokenName  string `mapstructure:"access_token_name"`
	RefreshTokenName string `mapstructure:"refresh_token_name"`
	Domain           string `mapstructure:"domain"`
	Path             string `mapstructure:"path"`
	Secure           bool   `mapstructure:"secure"`
	SameSite         string `mapstructure:"same_site"`
}

type AuthSettings struct {
	DefaultRole                string `mapstructure:"default_role"`
	DiscloseUnknownEmail       bool   `mapstructure:"disclose_unknown_email"`
	SendConfirmationOnRegister bool   `mapstructure:"send_confirmation_on_register"`
	ResetPasswordLink          string `mapstructure:"reset_password_link"`
	ConfirmAccountLink         string `mapstructure:"confirm_account_link"`
}

type AuthorizationSettings struct {
	AdminRoles []string `mapstructure:"admin_roles"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type PasswordSettings struct {
	MinLength           int `mapstructure:"min_length"`
	MaxLength           int `mapstructure:"max_length"`
	MinCharacterClasses int `mapstructure:"min_character_classes"`
	MinStrengthScore    int `mapstructure:"min_strength_score"`
}

// RateLimitSettings configures fixed windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration           time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts         int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts      int           `mapstructure:"register_max_attempts"`
	RefreshMaxAttempts       int           `mapstructure:"refresh_max_attempts"`
	PasswordResetMaxAttempts int           `mapstructure:"password_reset_max_attempts"`
}

type OutboxSettings struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    uint64        `mapstructure:"batch_size"`
}

// MailSettings holds the subjects and bodies of outgoing account mails.
type MailSettings struct {
	ResetSubject        string `mapstructure:"reset_subject"`
	ResetBody           string `mapstructure:"reset_body"`
	ConfirmationSubject string `mapstructure:"confirmation_subject"`
	ConfirmationBody    string `mapstructure:"confirmation_body"`
}

type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	TLS      bool   `mapstructure:"tls"`
}

// CatalogSettings configures the catalog consumer binary.
type CatalogSettings struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	ConsumerGroup string `mapstructure:"consumer_group"`
}

type MailWorkerSettings struct {
	ConsumerGroup string `mapstructure:"consumer_group"`
	MetricsPort   int    `mapstructure:"metrics_port"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// BootstrapSettings seeds an administrator on startup when Email is set.
type BootstrapSettings struct {
	AdminName     string `mapstructure:"admin_name"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("IAM")

	setDefaults(v)

	if err := bindEnvs(v, v.AllKeys()); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Tokens.Store {
	case "postgres", "redis":
	default:
		return fmt.Errorf("config: tokens.store must be postgres or redis, got %q", c.Tokens.Store)
	}
	if c.Tokens.RefreshTTL <= 0 || c.Tokens.ResetTTL <= 0 || c.Tokens.ConfirmationTTL <= 0 {
		return fmt.Errorf("config: token ttls must be positive")
	}
	if c.Catalog.ConsumerGroup == c.MailWorker.ConsumerGroup {
		return fmt.Errorf("config: catalog and mail worker need distinct consumer groups")
	}
	if c.Cookies.AccessTokenName == c.Cookies.RefreshTokenName {
		return fmt.Errorf("config: access and refresh cookies must have distinct names")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *AppConfig) IsProduction() bool {
	return c.App.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storefront-iam")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "iam")
	v.SetDefault("postgres.password", "iam_password")
	v.SetDefault("postgres.database", "storefront")
	v.SetDefault("postgres.schema", "iam")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.apply_schema", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "iam")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "storefront")
	v.SetDefault("kafka.client_id", "storefront-iam")
	v.SetDefault("kafka.consumer_group", "storefront-iam")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", "500ms")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "storefront-iam")
	v.SetDefault("jwt.audience", "storefront")
	v.SetDefault("jwt.access_token_ttl", "15m")

	v.SetDefault("tokens.store", "postgres")
	v.SetDefault("tokens.byte_length", 32)
	v.SetDefault("tokens.refresh_ttl", "336h")
	v.SetDefault("tokens.reset_ttl", "15m")
	v.SetDefault("tokens.confirmation_ttl", "30m")
	v.SetDefault("tokens.redis_retention", "24h")

	v.SetDefault("cookies.access_token_name", "access_token")
	v.SetDefault("cookies.refresh_token_name", "refresh_token")
	v.SetDefault("cookies.domain", "")
	v.SetDefault("cookies.path", "/")
	v.SetDefault("cookies.secure", false)
	v.SetDefault("cookies.same_site", "lax")

	v.SetDefault("auth.default_role", "Regular")
	v.SetDefault("auth.disclose_unknown_email", false)
	v.SetDefault("auth.send_confirmation_on_register", true)
	v.SetDefault("auth.reset_password_link", "http://localhost:3000/reset-password")
	v.SetDefault("auth.confirm_account_link", "http://localhost:3000/confirm-account")

	v.SetDefault("authorization.admin_roles", []string{"Admin"})

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("password.min_length", 6)
	v.SetDefault("password.max_length", 128)
	v.SetDefault("password.min_character_classes", 0)
	v.SetDefault("password.min_strength_score", 0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.register_max_attempts", 3)
	v.SetDefault("rate_limit.refresh_max_attempts", 10)
	v.SetDefault("rate_limit.password_reset_max_attempts", 3)

	v.SetDefault("outbox.enabled", true)
	v.SetDefault("outbox.poll_interval", "1s")
	v.SetDefault("outbox.batch_size", 50)

	v.SetDefault("mail.reset_subject", "Reset your password")
	v.SetDefault("mail.reset_body", "We received a request to reset your password. Follow the link below to choose a new one.")
	v.SetDefault("mail.confirmation_subject", "Confirm your account")
	v.SetDefault("mail.confirmation_body", "Welcome! Follow the link below to confirm your account.")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "no-reply@storefront.local")
	v.SetDefault("smtp.tls", true)

	v.SetDefault("catalog.host", "0.0.0.0")
	v.SetDefault("catalog.port", 8081)
	v.SetDefault("catalog.consumer_group", "storefront-catalog")

	v.SetDefault("mail_worker.consumer_group", "storefront-mail")
	v.SetDefault("mail_worker.metrics_port", 9102)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "storefront-iam")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("bootstrap.admin_name", "admin")
	v.SetDefault("bootstrap.admin_email", "")
	v.SetDefault("bootstrap.admin_password", "")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "IAM_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
