package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	// Matching holds the discovery/scoring business knobs.
	Matching struct {
		MinMatchScore        int // discovery inclusion threshold, 0-100
		DiscoveryOversample  int // factor of extra candidates pulled before scoring
		DefaultMinCompletion int // default minimum profile completion %
	}

	// Coins holds the messaging quota and wallet knobs.
	Coins struct {
		FreeMessagesPerDay int
		MessageCost        int // coins per message once the free quota is spent
		StartingBalance    int // coins granted with a fresh wallet
		MaxMessageLength   int
	}
}

func New() *Config {
	// .env is optional; deployments usually set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "development")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "heartbeam")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "heartbeam")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// Matching
	cfg.Matching.MinMatchScore = getEnvInt("MIN_MATCH_SCORE", 30)
	cfg.Matching.DiscoveryOversample = getEnvInt("DISCOVERY_OVERSAMPLE", 3)
	cfg.Matching.DefaultMinCompletion = getEnvInt("MIN_PROFILE_COMPLETION", 50)

	// Coins
	cfg.Coins.FreeMessagesPerDay = getEnvInt("FREE_MESSAGES_PER_DAY", 3)
	cfg.Coins.MessageCost = getEnvInt("MESSAGE_COIN_COST", 1)
	cfg.Coins.StartingBalance = getEnvInt("WALLET_STARTING_BALANCE", 10)
	cfg.Coins.MaxMessageLength = getEnvInt("MAX_MESSAGE_LENGTH", 1000)

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
