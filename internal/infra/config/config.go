package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                string
	HTTPAddr           string
	StorageMode        string
	MongoURI           string
	MongoDB            string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaConsumerGroup string
	IdempotencyBackend string
	IdempotencyTTL     time.Duration
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisTLS           bool
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	Currency           string
	ServiceFeePercent  int64
	Timezone           *time.Location
	GatewayMode        string
	GatewayURL         string
	GatewayToken       string
	GatewayTimeout     time.Duration
	PaymentTokenSecret string
	PaymentTokenTTL    time.Duration
	ReconcileSchedule  string
	ReconcileAfter     time.Duration
	S3Endpoint         string
	S3AccessKey        string
	S3SecretKey        string
	S3Bucket           string
	S3UseSSL           bool
	S3LinkTTL          time.Duration
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		StorageMode:        strings.ToLower(getEnv("STORAGE_MODE", "memory")),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "ecostay"),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "ecostay-payouts"),
		IdempotencyBackend: strings.ToLower(getEnv("IDEMPOTENCY_BACKEND", "")),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		Currency:           strings.ToUpper(getEnv("CURRENCY", "USD")),
		GatewayMode:        strings.ToLower(getEnv("GATEWAY_MODE", "sandbox")),
		GatewayURL:         getEnv("GATEWAY_URL", "https://api-m.sandbox.paypal.com"),
		GatewayToken:       os.Getenv("GATEWAY_TOKEN"),
		PaymentTokenSecret: os.Getenv("PAYMENT_TOKEN_SECRET"),
		ReconcileSchedule:  getEnv("RECONCILE_SCHEDULE", "0 */5 * * * *"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:           getEnv("S3_BUCKET", "ecostay-statements"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if cfg.IdempotencyBackend == "" {
		cfg.IdempotencyBackend = cfg.StorageMode
	}

	var err error
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.GatewayTimeout, err = parseDurationEnv("GATEWAY_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PaymentTokenTTL, err = parseDurationEnv("PAYMENT_TOKEN_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileAfter, err = parseDurationEnv("RECONCILE_AFTER", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.S3LinkTTL, err = parseDurationEnv("S3_LINK_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}
	if cfg.RedisTLS, err = parseBoolEnv("REDIS_TLS", false); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	fee, err := parseIntEnv("SERVICE_FEE_PERCENT", 10)
	if err != nil {
		return Config{}, err
	}
	if fee < 0 || fee > 100 {
		return Config{}, fmt.Errorf("SERVICE_FEE_PERCENT must be between 0 and 100, got %d", fee)
	}
	cfg.ServiceFeePercent = int64(fee)

	tz := getEnv("TIMEZONE", "UTC")
	if cfg.Timezone, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageMode {
	case "memory":
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORAGE_MODE=mongo")
		}
	default:
		return fmt.Errorf("unknown STORAGE_MODE %q", c.StorageMode)
	}
	switch c.IdempotencyBackend {
	case "memory", "redis":
	case "mongo":
		if c.StorageMode != "mongo" {
			return fmt.Errorf("IDEMPOTENCY_BACKEND=mongo needs STORAGE_MODE=mongo")
		}
	default:
		return fmt.Errorf("unknown IDEMPOTENCY_BACKEND %q", c.IdempotencyBackend)
	}
	switch c.GatewayMode {
	case "sandbox":
	case "http":
		if c.GatewayURL == "" {
			return fmt.Errorf("GATEWAY_URL is required when GATEWAY_MODE=http")
		}
	default:
		return fmt.Errorf("unknown GATEWAY_MODE %q", c.GatewayMode)
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be an ISO 4217 code, got %q", c.Currency)
	}
	if c.PaymentTokenSecret == "" && c.Env != "dev" && c.Env != "local" {
		return fmt.Errorf("PAYMENT_TOKEN_SECRET is required outside dev")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
