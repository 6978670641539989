// Config loading for the timelink CLI: config.yaml through viper, an
// optional .env next to it for credentials, and flags on top.

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/timelink/internal/paths"
	"github.com/mesh-intelligence/timelink/pkg/kleio"
	"github.com/mesh-intelligence/timelink/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend    = "backend"
	cfgKeyDataDir    = "data_dir"
	cfgKeyDSN        = "dsn"
	cfgKeyShapesFile = "shapes_file"
	cfgKeyLogLevel   = "log_level"

	defaultLogLevel = "warn"
)

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	Backend    string `yaml:"backend"`
	DataDir    string `yaml:"data_dir,omitempty"`
	ShapesFile string `yaml:"shapes_file,omitempty"`
	LogLevel   string `yaml:"log_level,omitempty"`
}

// settings is the resolved configuration of one CLI run.
type settings struct {
	configDir  string
	dataDir    string
	backend    string
	dsn        string
	shapesFile string
	logLevel   string
}

// loadSettings resolves the config directory, loads .env and config.yaml
// when present and applies the global flags. A missing config.yaml is not
// an error.
func loadSettings() (*settings, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}

	if err := godotenv.Load(paths.EnvFile(configDir)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", paths.EnvFile(configDir), err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.BindEnv(cfgKeyDSN, paths.EnvDSN); err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	st := &settings{
		configDir:  configDir,
		dataDir:    dataDir,
		backend:    firstOf(flags.backend, v.GetString(cfgKeyBackend)),
		dsn:        firstOf(flags.dsn, v.GetString(cfgKeyDSN)),
		shapesFile: firstOf(flags.shapesFile, v.GetString(cfgKeyShapesFile)),
		logLevel:   v.GetString(cfgKeyLogLevel),
	}
	if flags.verbose {
		st.logLevel = "debug"
	}
	return st, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// logger returns a text logger on stderr at the configured level.
func (s *settings) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s.logLevel))); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// shapes builds the shape registry: the builtin and Portuguese vocabularies
// plus the declarations of the configured shapes file.
func (s *settings) shapes() (*kleio.Registry, error) {
	r := kleio.NewRegistry()
	if err := kleio.RegisterPortuguese(r); err != nil {
		return nil, err
	}
	if s.shapesFile != "" {
		if _, err := kleio.LoadShapesFile(r, s.shapesFile); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// storeConfig turns the settings into a backend configuration.
func (s *settings) storeConfig() (types.Config, error) {
	reg, err := s.shapes()
	if err != nil {
		return types.Config{}, err
	}
	cfg := types.Config{
		Backend: s.backend,
		DataDir: s.dataDir,
		DSN:     s.dsn,
		Logger:  s.logger(),
		Shapes:  reg,
	}
	return cfg, cfg.Validate()
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. An existing file is left untouched.
func writeConfigIfMissing(path string, cfg configFile) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := "# timelink configuration. dsn may also come from TIMELINK_DSN or .env.\n"
	return true, os.WriteFile(path, append([]byte(header), data...), 0o644)
}
