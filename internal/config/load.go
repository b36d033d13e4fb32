package config

import (
	"log"
	"time"

	"github.com/Skotchmaster/kiosk_order/pkg/config"
)

type ServiceConfig struct {
	config.Config
	Location *time.Location
}

func Load() ServiceConfig {
	cfg := config.Load()

	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustOneOf(cfg.EventBroker, "EVENT_BROKER", "none", "kafka", "rabbitmq")

	switch cfg.EventBroker {
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			log.Fatalf("missing required env KAFKA_BROKERS")
		}
	case "rabbitmq":
		config.MustNonEmpty(cfg.RabbitMQURL, "RABBITMQ_URL")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("env TIMEZONE=%q: %v", cfg.Timezone, err)
	}

	return ServiceConfig{Config: cfg, Location: loc}
}
