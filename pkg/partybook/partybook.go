// Package partybook is the library surface UI callers use: validate,
// create, update, fetch, delete and convert parties, and query the
// secondary system's configuration.
package partybook

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesh-intelligence/partybook/internal/conversion"
	"github.com/mesh-intelligence/partybook/internal/logger"
	"github.com/mesh-intelligence/partybook/internal/metrics"
	"github.com/mesh-intelligence/partybook/internal/party"
	"github.com/mesh-intelligence/partybook/internal/postgres"
	"github.com/mesh-intelligence/partybook/internal/secondary"
	"github.com/mesh-intelligence/partybook/internal/sqlite"
	"github.com/mesh-intelligence/partybook/internal/sqlstore"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

// Version is the partybook release.
const Version = "0.1.0"

type options struct {
	log     *logger.Logger
	reg     prometheus.Registerer
	invoker secondary.Invoker
	idGen   func() string
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRegisterer registers partybook metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// WithInvoker replaces the bridge transport built from the bridge config.
func WithInvoker(inv secondary.Invoker) Option {
	return func(o *options) { o.invoker = inv }
}

// WithIDGenerator replaces the party id generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.idGen = fn }
}

// Service wires the store, orchestrator, conversion machine and bridge.
type Service struct {
	store   *sqlstore.Backend
	parties *party.Orchestrator
	machine *conversion.Machine
	sync    *secondary.Synchronizer
	invoker secondary.Invoker
	log     *logger.Logger
}

// Open attaches the configured primary store and builds the service.
func Open(store types.Config, bridge types.BridgeConfig, opts ...Option) (*Service, error) {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	var backend *sqlstore.Backend
	switch store.Backend {
	case types.BackendSQLite:
		backend = sqlite.NewBackend()
	case types.BackendPostgres:
		backend = postgres.NewBackend()
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, store.Backend)
	}

	rec, err := metrics.New(o.reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	invoker := o.invoker
	if invoker == nil {
		if invoker, err = secondary.NewInvoker(bridge); err != nil {
			return nil, fmt.Errorf("bridge: %w", err)
		}
	}

	if err := backend.Attach(store); err != nil {
		secondary.Close(invoker)
		return nil, fmt.Errorf("attach %s store: %w", store.Backend, err)
	}

	partyOpts := []party.Option{party.WithLogger(o.log), party.WithMetrics(rec)}
	if o.idGen != nil {
		partyOpts = append(partyOpts, party.WithIDGenerator(o.idGen))
	}
	parties := party.NewOrchestrator(backend, partyOpts...)
	sync := secondary.NewSynchronizer(invoker, bridge,
		secondary.WithLogger(o.log), secondary.WithMetrics(rec))
	machine := conversion.NewMachine(parties, sync,
		conversion.WithLogger(o.log), conversion.WithMetrics(rec))

	o.log.Debug("service opened", "backend", store.Backend, "bridge", bridge.WithDefaults().Transport)
	return &Service{
		store:   backend,
		parties: parties,
		machine: machine,
		sync:    sync,
		invoker: invoker,
		log:     o.log,
	}, nil
}

// Close detaches the store and releases the bridge transport.
func (s *Service) Close() error {
	return errors.Join(s.store.Detach(), secondary.Close(s.invoker))
}

// Validate checks a create input without touching storage.
func (s *Service) Validate(in types.Input) (types.Input, error) {
	return party.Validate(in)
}

// Create stores a new PROSPECT and returns its assembled view.
func (s *Service) Create(ctx context.Context, in types.Input) (*types.View, error) {
	return s.parties.Create(ctx, in)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, patch types.Patch) (*types.View, error) {
	return s.parties.Update(ctx, id, patch)
}

// Delete removes a party and its child rows.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.parties.Delete(ctx, id)
}

// Fetch returns the assembled view of a party.
func (s *Service) Fetch(ctx context.Context, id string) (*types.View, error) {
	return s.parties.Fetch(ctx, id)
}

// Check previews a conversion.
func (s *Service) Check(ctx context.Context, id string) (types.ConversionCheck, error) {
	return s.machine.Check(ctx, id)
}

// Convert turns a PROSPECT into a CUSTOMER. confirm proceeds past warnings.
func (s *Service) Convert(ctx context.Context, id string, confirm bool) (*types.ConversionResult, error) {
	return s.machine.Convert(ctx, id, conversion.Options{Confirm: confirm})
}

// QueryBridgeConfig asks the secondary system for its configuration.
func (s *Service) QueryBridgeConfig(ctx context.Context) (map[string]any, error) {
	return s.sync.QueryConfig(ctx)
}

// Export writes every table to <dir>/<table>.jsonl.
func (s *Service) Export(ctx context.Context, dir string) (map[string]int, error) {
	return s.store.Export(ctx, dir)
}

// Import loads files written by Export, skipping rows already stored.
func (s *Service) Import(ctx context.Context, dir string) (map[string]int, error) {
	return s.store.Import(ctx, dir)
}
