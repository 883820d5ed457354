package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix      = "ROOMCAST"
	envDefaultDir  = "ROOMCAST_CONFIG_DEFAULT_PATH"
	configFileName = "config.yaml"
)

// Load resolves configuration with precedence defaults < config file < env
// (ROOMCAST_*). A missing config file is seeded with the defaults so a fresh
// installation leaves an editable file behind. Returns the resolved path.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	for key, val := range map[string]any{
		"addr":                        cfg.Addr,
		"read_header_timeout":         cfg.ReadHeaderTimeout,
		"shutdown_timeout":            cfg.ShutdownTimeout,
		"log_level":                   cfg.LogLevel,
		"store.backend":               cfg.Store.Backend,
		"store.path":                  cfg.Store.Path,
		"session.queue_size":          cfg.Session.QueueSize,
		"session.max_message_bytes":   cfg.Session.MaxMessageBytes,
		"session.fatal_submit_errors": cfg.Session.FatalSubmitErrors,
	} {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := configFilePath(explicitPath)
	v.SetConfigFile(path)

	switch err := v.ReadInConfig(); {
	case err == nil:
	case isMissingConfig(err):
		seedDefaultConfig(path, cfg, logger)
		if err := v.ReadInConfig(); err != nil && logger != nil {
			logger.Warn().Err(err).Str("path", path).Msg("config file unreadable, running on defaults")
		}
	default:
		return cfg, path, fmt.Errorf("read config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, path, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, path, nil
}

func isMissingConfig(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// configFilePath picks the config location: the explicit flag value, then
// the directory named by ROOMCAST_CONFIG_DEFAULT_PATH, then the working
// directory.
func configFilePath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if dir := os.Getenv(envDefaultDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return filepath.Join(dir, configFileName)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return configFileName
	}
	return filepath.Join(cwd, configFileName)
}

// seedDefaultConfig writes cfg to path. Failure is logged, not fatal: the
// in-memory defaults still apply.
func seedDefaultConfig(path string, cfg Config, logger *zerolog.Logger) {
	err := func() error {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o600)
	}()
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("could not write default config")
		return
	}
	logger.Info().Str("path", path).Msg("wrote default config")
}
