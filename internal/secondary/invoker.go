// Package secondary talks to the secondary record store through its
// script-invocation bridge: invoke(script, json) -> json. It creates the
// secondary record at conversion time and maps the returned id back into
// the party's id space.
package secondary

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/partybook/pkg/types"
)

// Invoker runs one bridge script. Payload and response are opaque JSON.
type Invoker interface {
	Invoke(ctx context.Context, script string, payload []byte) ([]byte, error)
}

// NewInvoker builds the invoker for cfg's transport. The caller closes it
// with Close when the transport holds connections.
func NewInvoker(cfg types.BridgeConfig) (Invoker, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Transport {
	case types.TransportHTTP:
		return NewHTTPInvoker(cfg.Endpoint, cfg.Timeout), nil
	case types.TransportRedis:
		return NewRedisInvoker(cfg.RedisAddr, cfg.Queue, cfg.Timeout), nil
	case types.TransportNone:
		return noneInvoker{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrTransportUnknown, cfg.Transport)
	}
}

// Close releases transport resources if inv holds any.
func Close(inv Invoker) error {
	if c, ok := inv.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// noneInvoker is used when no bridge is configured.
type noneInvoker struct{}

func (noneInvoker) Invoke(context.Context, string, []byte) ([]byte, error) {
	return nil, types.ErrBridgeNotConfigured
}
