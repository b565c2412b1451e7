package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/kalutskii/etil-sterahstib/pkg/bitshares"
	"github.com/kalutskii/etil-sterahstib/pkg/log"
	"github.com/kalutskii/etil-sterahstib/pkg/rpc"
	"github.com/kalutskii/etil-sterahstib/pkg/store"
)

const (
	configDirPathEnv     = "BTS_CONFIG_DIR_PATH"
	defaultConfigDirPath = "."
)

// Config is everything the client reads from the environment and the
// config directory.
type Config struct {
	rpc         rpc.Config
	log         log.Config
	dbConf      store.DatabaseConfig
	assets      bitshares.AssetsConfig
	metricsAddr string
	// connectTimeout bounds the wait for a ready session; zero waits as
	// long as the reconnect policy allows.
	connectTimeout time.Duration
	// warnings are reported once a logger exists.
	warnings []string
}

type appEnv struct {
	MetricsAddr    string        `env:"BTS_METRICS_ADDR" env-default:""`
	ConnectTimeout time.Duration `env:"BTS_CONNECT_TIMEOUT" env-default:"30s"`
}

// LoadConfig reads <configDirPath>/.env into the environment, then builds the
// configuration from environment variables and <configDirPath>/assets.yaml.
// Variables already set in the environment win over the .env file.
func LoadConfig(configDirPath string) (*Config, error) {
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	var cfg Config

	configDotEnvPath := filepath.Join(configDirPath, ".env")
	if err := godotenv.Load(configDotEnvPath); err != nil {
		cfg.warnings = append(cfg.warnings, fmt.Sprintf(".env file not found at %s", configDotEnvPath))
	}

	if err := cleanenv.ReadEnv(&cfg.log); err != nil {
		return nil, fmt.Errorf("failed to read log config: %w", err)
	}
	if err := cleanenv.ReadEnv(&cfg.rpc); err != nil {
		return nil, fmt.Errorf("failed to read rpc config: %w", err)
	}
	if err := cleanenv.ReadEnv(&cfg.dbConf); err != nil {
		return nil, fmt.Errorf("failed to read database config: %w", err)
	}

	var env appEnv
	if err := cleanenv.ReadEnv(&env); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	cfg.metricsAddr = env.MetricsAddr
	cfg.connectTimeout = env.ConnectTimeout

	assets, err := bitshares.LoadAssets(configDirPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg.warnings = append(cfg.warnings, "assets.yaml not found, assets are resolved through the node")
	case err != nil:
		return nil, fmt.Errorf("failed to load assets: %w", err)
	default:
		cfg.assets = assets
	}

	return &cfg, nil
}
