// Package conversion drives the one-way PROSPECT -> CUSTOMER transition:
// load, guard, check, create the secondary record, then link it.
package conversion

import (
	"context"
	"strings"

	"github.com/mesh-intelligence/partybook/internal/logger"
	"github.com/mesh-intelligence/partybook/internal/metrics"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

// Check messages.
const (
	MsgNameRequired = "Name is required"
	MsgNoEmail      = "No email address found"
	MsgNoPhone      = "No phone number found"
)

// StageConverted is the metrics label for a completed conversion.
const StageConverted = "converted"

// Parties loads and links parties. *party.Orchestrator satisfies it.
type Parties interface {
	Fetch(ctx context.Context, id string) (*types.View, error)
	Link(ctx context.Context, id string, ref types.SecondaryRef) (*types.View, error)
}

// Syncer creates the secondary record. *secondary.Synchronizer satisfies it.
type Syncer interface {
	SyncToSecondary(ctx context.Context, v *types.View) (types.SecondaryRef, error)
}

// Options controls one conversion.
type Options struct {
	// Confirm proceeds past warnings. Blocking problems always stop.
	Confirm bool
}

// Machine runs conversions.
type Machine struct {
	parties Parties
	sync    Syncer
	log     *logger.Logger
	metrics *metrics.Recorder
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger for conversion outcomes and orphan incidents.
func WithLogger(log *logger.Logger) Option {
	return func(m *Machine) { m.log = log }
}

// WithMetrics records each conversion's final stage on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Machine) { m.metrics = r }
}

// NewMachine creates a conversion machine.
func NewMachine(parties Parties, sync Syncer, opts ...Option) *Machine {
	m := &Machine{parties: parties, sync: sync, log: logger.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("component", "conversion")
	return m
}

// Evaluate separates blocking problems from warnings for a view.
func Evaluate(v *types.View) types.ConversionCheck {
	var c types.ConversionCheck
	if strings.TrimSpace(v.FirstName) == "" && strings.TrimSpace(v.LastName) == "" {
		c.Blocking = append(c.Blocking, MsgNameRequired)
	}
	if strings.TrimSpace(v.Email) == "" {
		c.Warnings = append(c.Warnings, MsgNoEmail)
	}
	if strings.TrimSpace(v.Phone) == "" {
		c.Warnings = append(c.Warnings, MsgNoPhone)
	}
	return c
}

// Check previews a conversion without side effects. It fails only when the
// party cannot be loaded or is not a prospect; blocking problems and
// warnings are reported in the returned check.
func (m *Machine) Check(ctx context.Context, id string) (types.ConversionCheck, error) {
	v, cerr := m.load(ctx, id)
	if cerr != nil {
		return types.ConversionCheck{}, cerr
	}
	return Evaluate(v), nil
}

// Convert turns a PROSPECT into a CUSTOMER. Every failure is a
// *types.ConversionError naming the stage. Before the secondary record is
// created nothing is written; if linking fails afterwards the secondary
// record is left orphaned and its id is logged.
func (m *Machine) Convert(ctx context.Context, id string, opts Options) (*types.ConversionResult, error) {
	v, cerr := m.load(ctx, id)
	if cerr != nil {
		return nil, m.fail(cerr)
	}

	check := Evaluate(v)
	if len(check.Blocking) > 0 {
		return nil, m.fail(&types.ConversionError{
			PartyID: id, Stage: types.StageBlockingValidation,
			Blocking: check.Blocking, Warnings: check.Warnings,
		})
	}
	if len(check.Warnings) > 0 && !opts.Confirm {
		return nil, m.fail(&types.ConversionError{
			PartyID: id, Stage: types.StageNeedsConfirmation, Warnings: check.Warnings,
		})
	}

	ref, err := m.sync.SyncToSecondary(ctx, v)
	if err != nil {
		return nil, m.fail(&types.ConversionError{
			PartyID: id, Stage: types.StageSyncFailed, Warnings: check.Warnings, Err: err,
		})
	}

	linked, err := m.parties.Link(ctx, id, ref)
	if err != nil {
		m.log.Error("secondary record orphaned",
			"incident", "orphaned_secondary", "party_id", id,
			"secondary_id", ref.ID, "system", ref.System, "error", err)
		return nil, m.fail(&types.ConversionError{
			PartyID: id, Stage: types.StageLinkFailed, Warnings: check.Warnings, Err: err,
		})
	}

	m.metrics.Conversion(StageConverted)
	m.log.Info("party converted", "party_id", id, "secondary_id", ref.ID, "warnings", len(check.Warnings))
	return &types.ConversionResult{View: linked, Ref: ref, Warnings: check.Warnings}, nil
}

// load fetches the view and applies the prospect guard.
func (m *Machine) load(ctx context.Context, id string) (*types.View, *types.ConversionError) {
	v, err := m.parties.Fetch(ctx, id)
	if err != nil {
		return nil, &types.ConversionError{PartyID: id, Stage: types.StageLoad, Err: err}
	}
	if v.Kind != types.KindProspect {
		return nil, &types.ConversionError{PartyID: id, Stage: types.StageNotAProspect, Err: types.ErrInvalidTransition}
	}
	return v, nil
}

func (m *Machine) fail(err *types.ConversionError) error {
	m.metrics.Conversion(err.Stage)
	m.log.Warn("conversion stopped", "party_id", err.PartyID, "stage", err.Stage, "error", err)
	return err
}
