package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config содержит настройки логгера. Пустые поля получают значения по умолчанию из env-default.
type Config struct {
	Level      string `env:"LOG_LEVEL" env-default:"info"`         // debug, info, warn, error
	Encoding   string `env:"LOG_ENCODING" env-default:"console"`   // json или console
	OutputPath string `env:"LOG_OUTPUT_PATH" env-default:"stderr"` // stdout занят выводом команд
}

// New создает zap.Logger. Неизвестный уровень или формат - ошибка конфигурации.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Level, err)
	}

	encoding := strings.ToLower(strings.TrimSpace(cfg.Encoding))
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	switch encoding {
	case "json":
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	case "console":
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoderCfg.EncodeDuration = zapcore.StringDurationEncoder
		if isTerminalStream(cfg.OutputPath) {
			encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	default:
		return nil, fmt.Errorf("invalid LOG_ENCODING %q: want json or console", cfg.Encoding)
	}

	output := cfg.OutputPath
	if output == "" {
		output = "stderr"
	}

	logger, err := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		DisableCaller:     true,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{"stderr"},
	}.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func isTerminalStream(path string) bool {
	return path == "" || path == "stdout" || path == "stderr"
}
