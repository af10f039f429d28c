package config

import (
	"strings"
	"time"

	"chathub/internal/utils"
)

type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	AllowedOrigins []string

	DatabaseURL string
	JWTSecret   string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers     []string
	KafkaTopicPrefix string

	HistoryLimit    int
	PreviewTimeout  time.Duration
	MaxMessageBytes int64
	RateLimit       float64
	RateBurst       int
	SendBuffer      int
}

// Load reads the process configuration. Call utils.LoadEnv first to pick up .env.
func Load() *Config {
	return &Config{
		Port:           utils.GetEnv("PORT", "3001"),
		Environment:    utils.GetEnv("ENVIRONMENT", "development"),
		LogLevel:       utils.GetEnv("LOG_LEVEL", "info"),
		AllowedOrigins: utils.GetEnvList("ALLOWED_ORIGINS", []string{"*"}),

		DatabaseURL: databaseURL(),
		JWTSecret:   utils.GetEnv("JWT_SECRET", "secret"),

		RedisAddr:     utils.GetEnv("REDIS_ADDR", ""),
		RedisPassword: utils.GetEnv("REDIS_PASSWORD", ""),

		KafkaBrokers:     utils.GetEnvList("KAFKA_BROKERS", nil),
		KafkaTopicPrefix: utils.GetEnv("KAFKA_TOPIC_PREFIX", "chat"),

		HistoryLimit:    utils.GetEnvInt("HISTORY_LIMIT", 50),
		PreviewTimeout:  utils.GetEnvDuration("PREVIEW_TIMEOUT", 3*time.Second),
		MaxMessageBytes: int64(utils.GetEnvInt("WS_MAX_MESSAGE_BYTES", 64*1024)),
		RateLimit:       utils.GetEnvFloat("WS_RATE_LIMIT", 10),
		RateBurst:       utils.GetEnvInt("WS_RATE_BURST", 20),
		SendBuffer:      utils.GetEnvInt("WS_SEND_BUFFER", 256),
	}
}

func databaseURL() string {
	if url := utils.GetEnv("DATABASE_URL", ""); url != "" {
		return url
	}
	return "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
		utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
		utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
		utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
		utils.GetEnv("POSTGRES_DB", "chatdb") + "?sslmode=disable"
}

// CORSOrigins returns the origins for the cors middleware. Outside production
// every origin is allowed.
func (c *Config) CORSOrigins() string {
	if c.IsProduction() && len(c.AllowedOrigins) > 0 && c.AllowedOrigins[0] != "*" {
		return strings.Join(c.AllowedOrigins, ",")
	}
	return "*"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LogFormat is json in production and text elsewhere.
func (c *Config) LogFormat() string {
	if c.IsProduction() {
		return "json"
	}
	return "text"
}
