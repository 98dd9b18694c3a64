package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Mongo      MongoConfig
	Rabbit     RabbitConfig
	Flightmngr ServiceConfig
	Validation ServiceConfig
	Redis      RedisConfig
	Auth       AuthConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type MongoConfig struct {
	URL      string
	Database string
}

type RabbitConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	Exchange     string
	ExchangeKind string
}

type ServiceConfig struct {
	URL string
}

type RedisConfig struct {
	Addr string
}

type AuthConfig struct {
	// Enabled gates the OIDC middleware and M2M tokens so the service can
	// run locally without an identity provider.
	Enabled      bool
	OIDCIssuer   string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Mongo: MongoConfig{
			URL:      getEnv("DATABASE_URL", "mongodb://localhost:27017"),
			Database: getEnv("DATABASE_NAME", "ticket-svc"),
		},
		Rabbit: RabbitConfig{
			Host:         getEnv("RABBITMQ_HOST", "localhost"),
			Port:         getEnvInt("RABBITMQ_PORT", 5672),
			Username:     getEnv("RABBITMQ_USERNAME", "guest"),
			Password:     getEnv("RABBITMQ_PASSWORD", "guest"),
			Exchange:     getEnv("RABBITMQ_EXCHANGE", "ticket-update"),
			ExchangeKind: getEnv("RABBITMQ_EXCHANGE_KIND", "fanout"),
		},
		Flightmngr: ServiceConfig{
			URL: getEnv("FLIGHTMNGR_URL", "http://localhost:8081"),
		},
		Validation: ServiceConfig{
			URL: getEnv("VALIDATIONSVC_URL", "http://localhost:8082"),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Auth: AuthConfig{
			Enabled:      getEnvBool("AUTH_ENABLED", false),
			OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
			TokenURL:     getEnv("AUTH_TOKEN_URL", ""),
			ClientID:     getEnv("AUTH_CLIENT_ID", "ticket-service"),
			ClientSecret: getEnv("AUTH_CLIENT_SECRET", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
