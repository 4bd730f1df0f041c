package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Значения по умолчанию
const (
	DefaultThreshold        = 0.5
	DefaultDamageColor      = "#ff0000"
	DefaultPartColor        = "#0000ff"
	DefaultLineWidth        = 3
	DefaultWorkers          = 4
	DefaultInferenceTimeout = 30 * time.Second
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

type Config struct {
	Threshold        float64
	DamageColor      string
	PartColor        string
	LineWidth        int
	DrawMasks        bool
	Workers          int
	InferenceURL     string
	InferenceTimeout time.Duration
	LogLevel         string
	LogFormat        string

	// Отправка отчётов в Telegram включается, если задан токен.
	TelegramToken  string
	TelegramChatID int64
}

// Default конфигурация без учёта окружения.
func Default() Config {
	return Config{
		Threshold:        DefaultThreshold,
		DamageColor:      DefaultDamageColor,
		PartColor:        DefaultPartColor,
		LineWidth:        DefaultLineWidth,
		DrawMasks:        true,
		Workers:          DefaultWorkers,
		InferenceTimeout: DefaultInferenceTimeout,
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
	}
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	return FromEnv(os.LookupEnv)
}

// FromEnv читает конфигурацию через lookup, чтобы её можно было проверить без окружения.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	parse := func(key string, fn func(string) error) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		if err := fn(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	parse("CARVISION_THRESHOLD", func(v string) (err error) {
		cfg.Threshold, err = strconv.ParseFloat(v, 64)
		return err
	})
	str("CARVISION_DAMAGE_COLOR", &cfg.DamageColor)
	str("CARVISION_PART_COLOR", &cfg.PartColor)
	parse("CARVISION_LINE_WIDTH", func(v string) (err error) {
		cfg.LineWidth, err = strconv.Atoi(v)
		return err
	})
	parse("CARVISION_DRAW_MASKS", func(v string) (err error) {
		cfg.DrawMasks, err = strconv.ParseBool(v)
		return err
	})
	parse("CARVISION_WORKERS", func(v string) (err error) {
		cfg.Workers, err = strconv.Atoi(v)
		return err
	})
	str("CARVISION_INFERENCE_URL", &cfg.InferenceURL)
	parse("CARVISION_INFERENCE_TIMEOUT", func(v string) (err error) {
		cfg.InferenceTimeout, err = time.ParseDuration(v)
		return err
	})
	str("CARVISION_LOG_LEVEL", &cfg.LogLevel)
	str("CARVISION_LOG_FORMAT", &cfg.LogFormat)
	str("TELEGRAM_TOKEN", &cfg.TelegramToken)
	parse("TELEGRAM_CHAT_ID", func(v string) (err error) {
		cfg.TelegramChatID, err = strconv.ParseInt(v, 10, 64)
		return err
	})

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет диапазоны значений.
func (c *Config) Validate() error {
	var errs []error
	if !(c.Threshold >= 0 && c.Threshold <= 1) {
		errs = append(errs, fmt.Errorf("threshold must be within [0, 1], got %v", c.Threshold))
	}
	for key, v := range map[string]string{"damage color": c.DamageColor, "part color": c.PartColor} {
		if !validColor(v) {
			errs = append(errs, fmt.Errorf("%s must be #rrggbb, got %q", key, v))
		}
	}
	if strings.EqualFold(c.DamageColor, c.PartColor) {
		errs = append(errs, errors.New("damage and part colors must differ"))
	}
	if c.LineWidth <= 0 {
		errs = append(errs, fmt.Errorf("line width must be positive, got %d", c.LineWidth))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.InferenceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("inference timeout must be positive, got %s", c.InferenceTimeout))
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		errs = append(errs, errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set"))
	}
	return errors.Join(errs...)
}

func validColor(v string) bool {
	h, ok := strings.CutPrefix(v, "#")
	if !ok || len(h) != 6 {
		return false
	}
	_, err := strconv.ParseUint(h, 16, 32)
	return err == nil
}
