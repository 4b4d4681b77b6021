// Package config manages the peershare configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/structs"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	CONFIGS_DIR_NAME          = ".config"
	PEERSHARE_CONFIG_DIR_NAME = "peershare"
	CONFIG_FILE_NAME          = "config"
	CONFIG_FILE_EXT           = "yml"

	StyleRich = "rich"
	StyleRaw  = "raw"
)

type Config struct {
	Index       string        `mapstructure:"index"`
	ListenPort  int           `mapstructure:"listen_port"`
	Advertise   string        `mapstructure:"advertise"`
	ShareDir    string        `mapstructure:"share_dir"`
	ReceiveDir  string        `mapstructure:"receive_dir"`
	ChunkSize   int           `mapstructure:"chunk_size"`
	MaxWorkers  int           `mapstructure:"max_workers"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	IndexPort   int           `mapstructure:"index_port"`
	Verbose     bool          `mapstructure:"verbose"`
	TuiStyle    string        `mapstructure:"tui_style"`
}

func GetDefault() Config {
	return Config{
		Index:       "localhost:8080",
		ListenPort:  3333,
		ShareDir:    "~/peershare/sharing",
		ReceiveDir:  "~/peershare/received",
		ChunkSize:   32 * 1024,
		DialTimeout: 10 * time.Second,
		IndexPort:   8080,
		TuiStyle:    StyleRich,
	}
}

func (config Config) Map() map[string]any {
	m := map[string]any{}
	for _, field := range structs.Fields(config) {
		m[field.Tag("mapstructure")] = field.Value()
	}
	return m
}

// Yaml renders the configuration with its keys sorted.
func (config Config) Yaml() []byte {
	m := config.Map()
	keys := maps.Keys(m)
	slices.Sort(keys)

	var builder strings.Builder
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			builder.WriteString(fmt.Sprintf("%s: %s", k, strconv.Quote(v)))
		default:
			builder.WriteString(fmt.Sprintf("%s: %v", k, v))
		}
		builder.WriteRune('\n')
	}
	return []byte(builder.String())
}

// Validate checks the values that cannot be caught by flag parsing.
func (config Config) Validate() error {
	var errs []error
	if config.ListenPort < 0 || config.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("listen_port %d is out of range", config.ListenPort))
	}
	if config.IndexPort < 0 || config.IndexPort > 65535 {
		errs = append(errs, fmt.Errorf("index_port %d is out of range", config.IndexPort))
	}
	if config.MaxWorkers < 0 {
		errs = append(errs, fmt.Errorf("max_workers must not be negative"))
	}
	if config.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive"))
	}
	if config.TuiStyle != StyleRich && config.TuiStyle != StyleRaw {
		errs = append(errs, fmt.Errorf("tui_style must be %q or %q, got %q", StyleRich, StyleRaw, config.TuiStyle))
	}
	return errors.Join(errs...)
}

func IsDefault(key string) bool {
	defaults := GetDefault().Map()
	return viper.Get(key) == defaults[key]
}

// Load decodes the configuration held by v, expanding home relative directories.
func Load(v *viper.Viper) (Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	var err error
	if config.ShareDir, err = homedir.Expand(config.ShareDir); err != nil {
		return Config{}, fmt.Errorf("expanding share_dir: %w", err)
	}
	if config.ReceiveDir, err = homedir.Expand(config.ReceiveDir); err != nil {
		return Config{}, fmt.Errorf("expanding receive_dir: %w", err)
	}
	return config, config.Validate()
}

// Dir returns the directory the configuration file lives in.
func Dir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	return filepath.Join(home, CONFIGS_DIR_NAME, PEERSHARE_CONFIG_DIR_NAME), nil
}

// Init initializes the global viper config.
// `config.yml` is created in $HOME/.config/peershare if not already existing.
// NOTE: The precedence levels of viper are the following: flags -> config file -> defaults.
func Init() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return InitIn(viper.GetViper(), dir)
}

// InitIn reads the configuration file in dir into v, creating it with the
// defaults first if needed.
func InitIn(v *viper.Viper, dir string) error {
	v.AddConfigPath(dir)
	v.SetConfigName(CONFIG_FILE_NAME)
	v.SetConfigType(CONFIG_FILE_EXT)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("could not read config file: %w", err)
		}
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("could not create config directory: %w", err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s.%s", CONFIG_FILE_NAME, CONFIG_FILE_EXT))
		if err := os.WriteFile(path, GetDefault().Yaml(), 0o644); err != nil {
			return fmt.Errorf("could not write defaults to config file: %w", err)
		}
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("could not read config file: %w", err)
		}
	}
	for k, val := range GetDefault().Map() {
		v.SetDefault(k, val)
	}
	return nil
}
