package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

func MustLoad() *Config {
	op := "config.MustLoad()"
	log := slog.With(
		slog.String("op", op),
	)
	defaultConfigPath := "config.yml"

	configPath := fetchConfigPath()

	if configPath == "" {
		log.Warn("config path is empty. Loading default config path",
			slog.String("defaultConfigPath", defaultConfigPath))
		configPath = defaultConfigPath
	}

	return MustLoadPath(configPath)
}

// MustLoadPath reads the YAML file at configPath overlaid with the environment.
// A missing file is not fatal: the webhook is usually deployed with env only.
func MustLoadPath(configPath string) *Config {
	cfg, err := LoadPath(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err.Error())
	}
	return cfg
}

func LoadPath(configPath string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		slog.Warn("config file does not exist, reading environment only",
			slog.String("path", configPath))
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("read %s: %w", configPath, err)
	}

	cfg.configPath = configPath
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) validate() error {
	cfg.StoreConfig.Driver = strings.ToLower(strings.TrimSpace(cfg.StoreConfig.Driver))
	switch cfg.StoreConfig.Driver {
	case StoreDriverMemory, StoreDriverRedis, StoreDriverPostgres:
	default:
		return fmt.Errorf("invalid store.driver %q; allowed: memory, redis, postgres", cfg.StoreConfig.Driver)
	}
	if cfg.StoreConfig.SessionTTL <= 0 {
		return fmt.Errorf("store.session_ttl must be > 0")
	}
	if cfg.FlowConfig.SuppressWindow < 0 {
		return fmt.Errorf("flow.suppress_window must be >= 0")
	}
	if cfg.FlowConfig.DeleteConcurrency <= 0 {
		cfg.FlowConfig.DeleteConcurrency = 1
	}
	cfg.CrmConfig.BaseURL = strings.TrimRight(cfg.CrmConfig.BaseURL, "/")
	return nil
}

// Path returns the file the configuration was loaded from.
func (cfg *Config) Path() string {
	return cfg.configPath
}

func fetchConfigPath() string {
	op := "config.fetchConfigPath()"
	log := slog.With(
		slog.String("op", op),
	)

	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res != "" {
		log.Info("load config path from command line.",
			slog.String("path", res))
		return res
	}
	res = fmt.Sprintf("%s%s",
		os.Getenv("CONFIG_FILEPATH"),
		os.Getenv("CONFIG_FILENAME"))
	log.Info(
		"load config path from env",
		slog.String("CONFIG_FILEPATH", os.Getenv("CONFIG_FILEPATH")),
		slog.String("CONFIG_FILENAME", os.Getenv("CONFIG_FILENAME")),
	)
	return res
}
