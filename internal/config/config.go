// Package config loads partybook settings from <config-dir>/config.yaml
// with PARTYBOOK_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/partybook/pkg/types"
)

const (
	FileName   = "config.yaml"
	configName = "config"
	configType = "yaml"
	EnvPrefix  = "PARTYBOOK"
)

// Keys.
const (
	KeyBackend            = "backend"
	KeyDataDir            = "data_dir"
	KeyDSN                = "dsn"
	KeyLogMode            = "log.mode"
	KeyBridgeTransport    = "bridge.transport"
	KeyBridgeEndpoint     = "bridge.endpoint"
	KeyBridgeRedisAddr    = "bridge.redis_addr"
	KeyBridgeQueue        = "bridge.queue"
	KeyBridgeTimeout      = "bridge.timeout"
	KeyBridgeCreateScript = "bridge.create_script"
	KeyBridgeConfigScript = "bridge.config_script"
	KeyBridgeIDField      = "bridge.id_field"
)

// Log modes.
const (
	LogModeDev  = "dev"
	LogModeProd = "prod"
)

// Config is the resolved configuration.
type Config struct {
	Store   types.Config
	LogMode string
	Bridge  types.BridgeConfig
}

// Validate checks the store and bridge sections. DataDir may still be
// empty; callers resolve it with paths.ResolveDataDir.
func (c Config) Validate() error {
	if c.LogMode != LogModeDev && c.LogMode != LogModeProd {
		return fmt.Errorf("log.mode must be %q or %q, got %q", LogModeDev, LogModeProd, c.LogMode)
	}
	switch c.Store.Backend {
	case types.BackendSQLite:
	case types.BackendPostgres:
		if c.Store.DSN == "" {
			return types.ErrDSNEmpty
		}
	case "":
		return types.ErrBackendEmpty
	default:
		return fmt.Errorf("%w: %s", types.ErrBackendUnknown, c.Store.Backend)
	}
	return c.Bridge.Validate()
}

// file is the shape written to a fresh config.yaml.
type file struct {
	Backend string     `yaml:"backend"`
	DataDir string     `yaml:"data_dir,omitempty"`
	DSN     string     `yaml:"dsn,omitempty"`
	Log     fileLog    `yaml:"log"`
	Bridge  fileBridge `yaml:"bridge"`
}

type fileLog struct {
	Mode string `yaml:"mode"`
}

type fileBridge struct {
	Transport    string `yaml:"transport"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	RedisAddr    string `yaml:"redis_addr,omitempty"`
	Queue        string `yaml:"queue"`
	Timeout      string `yaml:"timeout"`
	CreateScript string `yaml:"create_script"`
	ConfigScript string `yaml:"config_script"`
	IDField      string `yaml:"id_field"`
}

const header = "# partybook configuration. Every key can be overridden with a\n" +
	"# PARTYBOOK_ environment variable, e.g. PARTYBOOK_BRIDGE_ENDPOINT.\n"

func defaultFile(dataDir string) file {
	b := types.BridgeConfig{}.WithDefaults()
	return file{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
		Log:     fileLog{Mode: LogModeDev},
		Bridge: fileBridge{
			Transport:    b.Transport,
			Queue:        b.Queue,
			Timeout:      b.Timeout.String(),
			CreateScript: b.CreateScript,
			ConfigScript: b.ConfigScript,
			IDField:      b.IDField,
		},
	}
}

// WriteDefault creates <configDir>/config.yaml when it does not exist.
// It reports whether a file was written.
func WriteDefault(configDir, dataDir string) (bool, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	path := filepath.Join(configDir, FileName)
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	data, err := yaml.Marshal(defaultFile(dataDir))
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}

// newViper returns a viper instance with defaults and env binding.
func newViper() *viper.Viper {
	v := viper.New()
	d := defaultFile("")
	v.SetDefault(KeyBackend, d.Backend)
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeyDSN, "")
	v.SetDefault(KeyLogMode, d.Log.Mode)
	v.SetDefault(KeyBridgeTransport, d.Bridge.Transport)
	v.SetDefault(KeyBridgeEndpoint, "")
	v.SetDefault(KeyBridgeRedisAddr, "")
	v.SetDefault(KeyBridgeQueue, d.Bridge.Queue)
	v.SetDefault(KeyBridgeTimeout, d.Bridge.Timeout)
	v.SetDefault(KeyBridgeCreateScript, d.Bridge.CreateScript)
	v.SetDefault(KeyBridgeConfigScript, d.Bridge.ConfigScript)
	v.SetDefault(KeyBridgeIDField, d.Bridge.IDField)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads config.yaml from configDir, creating the directory and a
// default file on first run. A missing file is not an error.
func Load(configDir string) (*Config, error) {
	if _, err := WriteDefault(configDir, ""); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := newViper()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Store: types.Config{
			Backend: v.GetString(KeyBackend),
			DataDir: v.GetString(KeyDataDir),
			DSN:     v.GetString(KeyDSN),
		},
		LogMode: v.GetString(KeyLogMode),
		Bridge: types.BridgeConfig{
			Transport:    v.GetString(KeyBridgeTransport),
			Endpoint:     v.GetString(KeyBridgeEndpoint),
			RedisAddr:    v.GetString(KeyBridgeRedisAddr),
			Queue:        v.GetString(KeyBridgeQueue),
			Timeout:      v.GetDuration(KeyBridgeTimeout),
			CreateScript: v.GetString(KeyBridgeCreateScript),
			ConfigScript: v.GetString(KeyBridgeConfigScript),
			IDField:      v.GetString(KeyBridgeIDField),
		}.WithDefaults(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
