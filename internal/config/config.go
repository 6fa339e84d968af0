package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"dataset-generator/pkg/logger"
)

// Config - вся конфигурация генератора датасета.
type Config struct {
	AppEnv         string `env:"APP_ENV" env-default:"development"`
	Logger         logger.Config
	Kandinsky      KandinskyConfig
	Dataset        DatasetConfig
	RabbitMQ       RabbitMQConfig
	PushGatewayURL string `env:"PUSHGATEWAY_URL" env-default:""` // пустой - метрики не отправляются
	// SecretsDir - каталог Docker Secrets, откуда берутся ключи, если их нет в окружении.
	SecretsDir string `env:"SECRETS_DIR" env-default:"/run/secrets"`
}

// KandinskyConfig - доступ к FusionBrain API и параметры опроса.
type KandinskyConfig struct {
	BaseURL      string        `env:"KANDINSKY_API_URL" env-default:"https://api-key.fusionbrain.ai/"`
	APIKey       string        `env:"KANDINSKY_API_KEY" env-description:"required, or file kandinsky_api_key in SECRETS_DIR"`
	SecretKey    string        `env:"KANDINSKY_SECRET_KEY" env-description:"required, or file kandinsky_secret_key in SECRETS_DIR"`
	HTTPTimeout  time.Duration `env:"KANDINSKY_HTTP_TIMEOUT" env-default:"60s"`
	PollAttempts int           `env:"KANDINSKY_POLL_ATTEMPTS" env-default:"200"`
	PollDelay    time.Duration `env:"KANDINSKY_POLL_DELAY" env-default:"10s"`
	SubmitRPS    float64       `env:"KANDINSKY_SUBMIT_RPS" env-default:"0"` // 0 - без ограничения
	PipelineID   string        `env:"KANDINSKY_PIPELINE_ID" env-default:""` // пустой - берется первый из /pipelines
}

// DatasetConfig - каталоги со списками классов и результатами.
type DatasetConfig struct {
	DataDir     string `env:"DATASET_DATA_DIR" env-default:"data"`
	OutputDir   string `env:"DATASET_OUTPUT_DIR" env-default:"data/retrieved"`
	ShortPrompt bool   `env:"DATASET_SHORT_PROMPT" env-default:"false"`
}

// RabbitMQConfig - публикация событий прогона. Пустой URL отключает публикацию.
type RabbitMQConfig struct {
	URL        string `env:"RABBITMQ_URL" env-default:""`
	EventQueue string `env:"RABBITMQ_EVENTS_QUEUE" env-default:"dataset_image_events"`
	Exchange   string `env:"RABBITMQ_EVENTS_EXCHANGE" env-default:""`    // опционально: topic exchange вместо очереди
	RoutingKey string `env:"RABBITMQ_EVENTS_ROUTING_KEY" env-default:""` // routing key для exchange
}

// Load загружает конфигурацию из переменных окружения и .env файла.
func Load() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if err := cfg.fillSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Kandinsky.APIKey == "" || c.Kandinsky.SecretKey == "":
		return errors.New("KANDINSKY_API_KEY and KANDINSKY_SECRET_KEY are required")
	case c.Kandinsky.PollAttempts < 1:
		return fmt.Errorf("KANDINSKY_POLL_ATTEMPTS must be at least 1, got %d", c.Kandinsky.PollAttempts)
	case c.Kandinsky.PollDelay < 0:
		return fmt.Errorf("KANDINSKY_POLL_DELAY must not be negative, got %s", c.Kandinsky.PollDelay)
	case c.Kandinsky.SubmitRPS < 0:
		return fmt.Errorf("KANDINSKY_SUBMIT_RPS must not be negative, got %v", c.Kandinsky.SubmitRPS)
	}
	return nil
}

// Usage - описание переменных окружения для справки CLI.
func Usage() string {
	var cfg Config
	desc, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return desc
}
