package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcuadros/go-defaults"
	"github.com/sethvargo/go-envconfig"
)

const defaultEnvFile = ".env"

type Config struct {
	ModelServerURL     string `env:"INGRAIN_MODEL_SERVER_URL" default:"http://localhost:8687"`
	InferenceServerURL string `env:"INGRAIN_INFERENCE_SERVER_URL" default:"http://localhost:8686"`

	Client struct {
		Retries    uint          `env:"INGRAIN_RETRIES" default:"0"`
		RetryDelay time.Duration `env:"INGRAIN_RETRY_DELAY" default:"500ms"`
		// zero means no per-request timeout
		Timeout    time.Duration `env:"INGRAIN_TIMEOUT" default:"0s"`
	}

	Log struct {
		Level  string `env:"INGRAIN_LOG_LEVEL" default:"info"`
		Format string `env:"INGRAIN_LOG_FORMAT" default:"text"`
	}
}

// LoadConfig builds the CLI configuration. Struct defaults are applied
// first, then variables from the env files, then the process environment.
// Without envFiles a missing .env in the working directory is ignored.
func LoadConfig(ctx context.Context, envFiles ...string) (*Config, error) {
	return load(ctx, nil, envFiles...)
}

func load(ctx context.Context, lookuper envconfig.Lookuper, envFiles ...string) (*Config, error) {
	defer slog.Debug("end load config")
	slog.Debug("start load config")

	cfg := &Config{}
	defaults.SetDefaults(cfg)

	if len(envFiles) == 0 {
		if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, err
	}

	// Existing values are kept when a variable is unset.
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           cfg,
		Lookuper:         lookuper,
		DefaultOverwrite: true,
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
