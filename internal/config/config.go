package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName  string
	Env          string
	LogLevel     string
	Addr         string
	DatabaseURL  string // empty selects the in-memory store
	KafkaBrokers []string
	KafkaTopic   string
	JWTSecret    string
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: getenv("SERVICE_NAME", "trading-ledger"),
		Env:         getenv("ENV", "dev"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Addr:        getenv("ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		KafkaTopic:  getenv("KAFKA_TOPIC", "settlement.recorded"),
		JWTSecret:   getenv("JWT_SECRET", "dev-secret"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
