package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName string

	ServerPort int

	DatabaseURL string
	AutoMigrate bool

	JWTAccessSecret []byte
	AuthHTTPURL     string
	CookieSecure    bool
	CORSOrigins     []string

	LogLevel string
	Timezone string

	PointRate string

	TossSecretKey  string
	TossAPIURL     string
	GatewayTimeout time.Duration

	EventBroker      string
	KafkaBrokers     []string
	KafkaTopic       string
	RabbitMQURL      string
	RabbitMQExchange string
	OutboxPoll       time.Duration
	OutboxBatch      int
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "order"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		AutoMigrate: EnvBool("AUTO_MIGRATE_ALL"),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),
		AuthHTTPURL:     os.Getenv("AUTH_URL"),
		CookieSecure:    EnvDefault("COOKIE_SECURE", "true") != "false",
		CORSOrigins:     CSV(EnvDefault("CORS_ORIGINS", "*")),

		LogLevel: os.Getenv("LOG_LEVEL"),
		Timezone: EnvDefault("TIMEZONE", "Asia/Seoul"),

		PointRate: EnvDefault("POINT_RATE", "0.1"),

		TossSecretKey:  os.Getenv("TOSS_SECRET_KEY"),
		TossAPIURL:     EnvDefault("TOSS_API_URL", "https://api.tosspayments.com"),
		GatewayTimeout: time.Duration(EnvIntDefault("GATEWAY_TIMEOUT_MS", 10000)) * time.Millisecond,

		EventBroker:      strings.ToLower(EnvDefault("EVENT_BROKER", "none")),
		KafkaBrokers:     CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:       EnvDefault("KAFKA_TOPIC", "order_events"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		RabbitMQExchange: EnvDefault("RABBITMQ_EXCHANGE", "order_events"),
		OutboxPoll:       time.Duration(EnvIntDefault("OUTBOX_POLL_MS", 1000)) * time.Millisecond,
		OutboxBatch:      EnvIntDefault("OUTBOX_BATCH", 50),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBool(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}
