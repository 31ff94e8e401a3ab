package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`

	DataDir string `envconfig:"DATA_DIR" default:"data"`
	DBPath  string `envconfig:"DB_PATH" default:"data/data.db"`

	FEQuestionsURL string `envconfig:"FE_QUESTIONS_URL" default:"https://itpec.org/pastexamqa/fe.html"`
	IPQuestionsURL string `envconfig:"IP_QUESTIONS_URL" default:"https://itpec.org/pastexamqa/ip.html"`
	ResultsURL     string `envconfig:"RESULTS_URL" default:"https://itpec.org/statsandresults/all-passers.html"`

	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	SendPause   time.Duration `envconfig:"SEND_PAUSE" default:"3s"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"INFO"`

	Telemetry struct {
		Enabled        bool   `split_words:"true" default:"false"`
		Endpoint       string `split_words:"true" default:"localhost:4317"`
		ServiceName    string `split_words:"true" default:"itee_hub"`
		ServiceVersion string `split_words:"true" default:"dev"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
