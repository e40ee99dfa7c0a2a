package types

import (
	"errors"
	"time"
)

// Config holds backend selection and parameters for Store.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
	DSN     string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDSNEmpty       = errors.New("dsn must not be empty for postgres")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendPostgres: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendPostgres && c.DSN == "" {
		return ErrDSNEmpty
	}
	return nil
}

// Bridge transports for the secondary system.
const (
	TransportNone  = "none"
	TransportHTTP  = "http"
	TransportRedis = "redis"
)

// Default bridge settings.
const (
	DefaultCreateScript = "CreateCustomer"
	DefaultConfigScript = "GetConfiguration"
	DefaultIDField      = "id"
	DefaultBridgeQueue  = "partybook:bridge:requests"
	DefaultBridgeWait   = 30 * time.Second
)

// BridgeConfig selects and parameterizes the script-invocation bridge to the
// secondary record store.
type BridgeConfig struct {
	Transport    string        `json:"transport" yaml:"transport"`
	Endpoint     string        `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	RedisAddr    string        `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	Queue        string        `json:"queue,omitempty" yaml:"queue,omitempty"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	CreateScript string        `json:"create_script" yaml:"create_script"`
	ConfigScript string        `json:"config_script" yaml:"config_script"`
	IDField      string        `json:"id_field" yaml:"id_field"`
}

// Bridge configuration errors.
var (
	ErrTransportUnknown    = errors.New("unknown bridge transport")
	ErrEndpointEmpty       = errors.New("bridge endpoint must not be empty for http transport")
	ErrRedisAddrEmpty      = errors.New("bridge redis_addr must not be empty for redis transport")
	ErrBridgeNotConfigured = errors.New("secondary bridge is not configured")
)

// WithDefaults returns a copy with empty fields set to their defaults.
func (b BridgeConfig) WithDefaults() BridgeConfig {
	if b.Transport == "" {
		b.Transport = TransportNone
	}
	if b.Queue == "" {
		b.Queue = DefaultBridgeQueue
	}
	if b.Timeout <= 0 {
		b.Timeout = DefaultBridgeWait
	}
	if b.CreateScript == "" {
		b.CreateScript = DefaultCreateScript
	}
	if b.ConfigScript == "" {
		b.ConfigScript = DefaultConfigScript
	}
	if b.IDField == "" {
		b.IDField = DefaultIDField
	}
	return b
}

// Validate checks transport-specific requirements.
func (b BridgeConfig) Validate() error {
	switch b.Transport {
	case "", TransportNone:
		return nil
	case TransportHTTP:
		if b.Endpoint == "" {
			return ErrEndpointEmpty
		}
		return nil
	case TransportRedis:
		if b.RedisAddr == "" {
			return ErrRedisAddrEmpty
		}
		return nil
	default:
		return ErrTransportUnknown
	}
}
