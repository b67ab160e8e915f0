package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ChannelAccessToken string `envconfig:"CHANNEL_ACCESS_TOKEN" validate:"required"`
	ChannelSecret      string `envconfig:"CHANNEL_SECRET" validate:"required"`
	LineAPIBaseURL     string `envconfig:"LINE_API_BASE_URL" default:"https://api.line.me" validate:"required,url"`

	Port     string `envconfig:"PORT" default:"10000" validate:"required,numeric"`
	DataDir  string `envconfig:"DATA_DIR" default:"." validate:"required"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// SessionTTL drops surveys abandoned mid-way; EventTTL bounds the redelivery ledger.
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"24h" validate:"gt=0"`
	EventTTL   time.Duration `envconfig:"EVENT_TTL" default:"72h" validate:"gt=0"`
}

var validate = validator.New()

func Load() (*Config, error) {
	// .env is optional, production sets the environment directly
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
