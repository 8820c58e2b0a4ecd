package env

import (
	"fmt"
	"time"

	cenv "github.com/caarlos0/env/v11"
)

const (
	Port             = "PORT"
	AWSRegion        = "AWS_REGION"
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
	CreateTables     = "DYNAMODB_CREATE_TABLES"
	ChatRedisURL     = "CHAT_REDIS_URL"
	ChatRedisPass    = "CHAT_REDIS_PASS"
	HistoryTTL       = "CHAT_HISTORY_TTL"
	StoreTimeout     = "STORE_TIMEOUT"
	TypingTimeout    = "TYPING_TIMEOUT"
	AllowedOrigins   = "ALLOWED_ORIGINS"
	QueueSize        = "QUEUE_SIZE"
	QueueWorkers     = "QUEUE_WORKERS"
)

// Config is the runtime configuration of the chat server. Field tags name the
// environment keys above.
type Config struct {
	Port             string        `env:"PORT" envDefault:"5000"`
	AWSRegion        string        `env:"AWS_REGION,required,notEmpty"`
	AWSID            string        `env:"AWS_ID"`
	AWSSecret        string        `env:"AWS_SECRET"`
	AWSToken         string        `env:"AWS_TOKEN"`
	DynamoDBEndpoint string        `env:"DYNAMODB_ENDPOINT"`
	CreateTables     bool          `env:"DYNAMODB_CREATE_TABLES" envDefault:"false"`
	RedisURL         string        `env:"CHAT_REDIS_URL"`
	RedisPass        string        `env:"CHAT_REDIS_PASS"`
	HistoryTTL       time.Duration `env:"CHAT_HISTORY_TTL" envDefault:"10m"`
	StoreTimeout     time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	TypingTimeout    time.Duration `env:"TYPING_TIMEOUT" envDefault:"3s"`
	AllowedOrigins   []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	QueueSize        int           `env:"QUEUE_SIZE" envDefault:"10"`
	QueueWorkers     int           `env:"QUEUE_WORKERS" envDefault:"10"`
}

func (c Config) ListenAddr() string {
	return ":" + c.Port
}

func Load() (Config, error) {
	var cfg Config
	if err := cenv.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.QueueWorkers <= 0 {
		return Config{}, fmt.Errorf("parse env: %s must be positive", QueueWorkers)
	}
	if cfg.QueueSize < 0 {
		return Config{}, fmt.Errorf("parse env: %s must not be negative", QueueSize)
	}
	return cfg, nil
}
