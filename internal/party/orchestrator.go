// Package party holds the composite write orchestrator for parties: Create,
// Update, Delete and the conversion Link, plus the validator and the read
// assembler they rely on.
//
// The store offers only single-table calls, so every multi-row write is an
// explicit saga. Create compensates a failed child insert by deleting the
// core record and relying on cascade delete; Update has no compensation and
// reports the first failing group.
package party

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/partybook/internal/logger"
	"github.com/mesh-intelligence/partybook/internal/metrics"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

// Saga names used in logs and metrics.
const (
	sagaCreate = "create"
	sagaUpdate = "update"
	sagaDelete = "delete"
	sagaLink   = "link"
)

// Orchestrator writes composite parties through a types.Store.
type Orchestrator struct {
	store     types.Store
	assembler *Assembler
	log       *logger.Logger
	metrics   *metrics.Recorder
	newID     func() string
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithIDGenerator replaces the UUID v7 party id generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(o *Orchestrator) { o.now = fn }
}

// NewOrchestrator creates an orchestrator over an attached store.
func NewOrchestrator(store types.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		assembler: NewAssembler(store),
		log:       logger.Nop(),
		newID:     newPartyID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With("component", "party")
	return o
}

func newPartyID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Assembler returns the read-side assembler sharing this store.
func (o *Orchestrator) Assembler() *Assembler {
	return o.assembler
}

// Fetch returns the assembled view of a party.
func (o *Orchestrator) Fetch(ctx context.Context, id string) (*types.View, error) {
	return o.assembler.Fetch(ctx, id)
}

// Create validates in, inserts the core record under a fresh client-side
// id, then inserts one child row per supplied channel, address and
// attribute. If a child insert fails the core record is deleted and a
// *types.PersistError naming the child group is returned; if that delete
// fails too the error is a *types.CompensationError.
func (o *Orchestrator) Create(ctx context.Context, in types.Input) (*types.View, error) {
	in, err := Validate(in)
	if err != nil {
		return nil, err
	}

	id := o.newID()
	now := o.now().UTC()
	core := &types.Party{
		PartyID:     id,
		DisplayName: types.DisplayName(in.FirstName, in.LastName),
		Kind:        types.KindProspect,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.insert(ctx, types.TableParties, core); err != nil {
		o.metrics.Saga(sagaCreate, metrics.OutcomeFailed)
		return nil, &types.PersistError{PartyID: id, Group: types.GroupCore, Op: types.OpInsert, Err: err}
	}

	s := &saga{name: sagaCreate, partyID: id, log: o.log}
	for _, kind := range types.ChannelKinds {
		value := in.Email
		if kind == types.ChannelPhone {
			value = in.Phone
		}
		if value == "" {
			continue
		}
		row := &types.ContactChannel{PartyID: id, Kind: kind, Value: value, IsPrimary: true, CreatedAt: now}
		s.add(types.ContactGroup(kind), types.OpInsert, func(ctx context.Context) error {
			return o.insert(ctx, types.TableChannels, row)
		})
	}
	if fields := in.AddressFields(); len(fields) > 0 {
		row := newAddress(id, fields)
		row.CreatedAt = now
		s.add(types.GroupAddress, types.OpInsert, func(ctx context.Context) error {
			return o.insert(ctx, types.TableAddresses, row)
		})
	}
	for _, category := range sortedCategories(in.Attributes) {
		row := &types.Attribute{PartyID: id, Category: category, Value: in.Attributes[category], CreatedAt: now}
		s.add(types.AttributeGroup(category), types.OpInsert, func(ctx context.Context) error {
			return o.insert(ctx, types.TableAttributes, row)
		})
	}
	s.compensate = func(ctx context.Context) error {
		return o.deleteCore(ctx, id)
	}

	res, err := s.execute(ctx)
	if err != nil {
		if res.compensated {
			o.metrics.Saga(sagaCreate, metrics.OutcomeCompensated)
		} else {
			o.metrics.Saga(sagaCreate, metrics.OutcomeCompensationFailed)
		}
		return nil, err
	}
	o.metrics.Saga(sagaCreate, metrics.OutcomeOK)
	o.log.Info("party created", "party_id", id, "groups", len(res.completed)+1)
	return o.assembler.Fetch(ctx, id)
}

// Update applies a presence-aware patch group by group: the core names,
// each supplied contact kind, the address, then each supplied attribute
// category. For every group the existing row is looked up and a single
// NoOp, Insert or UpdateInPlace is decided. There is no compensation: when
// group N fails, groups before it stay written and the returned
// *types.PersistError names group N.
func (o *Orchestrator) Update(ctx context.Context, id string, patch types.Patch) (*types.View, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	patch, err := ValidatePatch(patch)
	if err != nil {
		return nil, err
	}

	core, err := o.loadCore(ctx, id)
	if err != nil {
		o.metrics.Saga(sagaUpdate, metrics.OutcomeFailed)
		return nil, err
	}
	if !keepsName(core, patch) {
		return nil, &types.ValidationError{Issues: []types.Issue{nameIssue}}
	}

	var applied []string
	s := &saga{name: sagaUpdate, partyID: id, log: o.log}
	if patch.TouchesCore() {
		s.add(types.GroupCore, types.OpUpdateInPlace, func(ctx context.Context) error {
			plan := corePlan(core, patch)
			applied = append(applied, plan.String())
			return o.apply(ctx, id, plan)
		})
	}
	for _, kind := range types.ChannelKinds {
		value := patch.Channel(kind)
		if !value.Set {
			continue
		}
		group := types.ContactGroup(kind)
		s.add(group, types.OpLookup, func(ctx context.Context) error {
			existing, err := firstRow[*types.ContactChannel](ctx, o.store, types.TableChannels,
				types.Filter{"party_id": id, "kind": kind, "is_primary": true})
			if err != nil {
				return &types.PersistError{PartyID: id, Group: group, Op: types.OpLookup, Err: err}
			}
			plan := channelPlan(id, kind, existing, value)
			applied = append(applied, plan.String())
			return o.apply(ctx, id, plan)
		})
	}
	if fields := patch.AddressFields(); len(fields) > 0 {
		s.add(types.GroupAddress, types.OpLookup, func(ctx context.Context) error {
			existing, err := firstRow[*types.Address](ctx, o.store, types.TableAddresses,
				types.Filter{"party_id": id})
			if err != nil {
				return &types.PersistError{PartyID: id, Group: types.GroupAddress, Op: types.OpLookup, Err: err}
			}
			plan := addressPlan(id, existing, fields)
			applied = append(applied, plan.String())
			return o.apply(ctx, id, plan)
		})
	}
	for _, category := range sortedCategories(patch.Attributes) {
		group := types.AttributeGroup(category)
		value := patch.Attributes[category]
		s.add(group, types.OpLookup, func(ctx context.Context) error {
			existing, err := firstRow[*types.Attribute](ctx, o.store, types.TableAttributes,
				types.Filter{"party_id": id, "category": category})
			if err != nil {
				return &types.PersistError{PartyID: id, Group: group, Op: types.OpLookup, Err: err}
			}
			plan := attributePlan(id, category, existing, value)
			applied = append(applied, plan.String())
			return o.apply(ctx, id, plan)
		})
	}

	if _, err := s.execute(ctx); err != nil {
		o.metrics.Saga(sagaUpdate, metrics.OutcomeFailed)
		return nil, err
	}
	o.metrics.Saga(sagaUpdate, metrics.OutcomeOK)
	o.log.Debug("party updated", "party_id", id, "plans", applied)
	return o.assembler.Fetch(ctx, id)
}

// keepsName reports whether the core record still has a first or last name
// once the patch is applied.
func keepsName(core *types.Party, patch types.Patch) bool {
	first, last := core.FirstName, core.LastName
	if patch.FirstName.Set {
		first = patch.FirstName.Value
	}
	if patch.LastName.Set {
		last = patch.LastName.Value
	}
	return first != "" || last != ""
}

// Delete removes the core record; the store cascades to child rows.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if _, err := o.loadCore(ctx, id); err != nil {
		o.metrics.Saga(sagaDelete, metrics.OutcomeFailed)
		return err
	}
	if err := o.deleteCore(ctx, id); err != nil {
		o.metrics.Saga(sagaDelete, metrics.OutcomeFailed)
		return &types.PersistError{PartyID: id, Group: types.GroupCore, Op: types.OpDelete, Err: err}
	}
	o.metrics.Saga(sagaDelete, metrics.OutcomeOK)
	o.log.Info("party deleted", "party_id", id)
	return nil
}

// Link turns a PROSPECT into a CUSTOMER and stores the secondary-system id.
// The write is conditional on the record still being a PROSPECT, so a
// concurrent conversion makes this return types.ErrInvalidTransition.
func (o *Orchestrator) Link(ctx context.Context, id string, ref types.SecondaryRef) (*types.View, error) {
	core, err := o.loadCore(ctx, id)
	if err != nil {
		o.metrics.Saga(sagaLink, metrics.OutcomeFailed)
		return nil, err
	}
	at := ref.LinkedAt
	if at.IsZero() {
		at = o.now()
	}
	if err := core.Convert(ref.ID, at.UTC()); err != nil {
		o.metrics.Saga(sagaLink, metrics.OutcomeFailed)
		return nil, fmt.Errorf("link party %s: %w", id, err)
	}

	parties, err := o.store.GetTable(types.TableParties)
	if err != nil {
		return nil, err
	}
	rows, err := parties.Update(ctx,
		types.Filter{"party_id": id, "kind": types.KindProspect},
		map[string]any{
			"kind":         core.Kind,
			"secondary_id": core.SecondaryID,
			"converted_at": core.ConvertedAt,
		})
	if err != nil {
		o.metrics.Saga(sagaLink, metrics.OutcomeFailed)
		return nil, &types.PersistError{PartyID: id, Group: types.GroupCore, Op: types.OpUpdateInPlace, Err: err}
	}
	if len(rows) == 0 {
		o.metrics.Saga(sagaLink, metrics.OutcomeFailed)
		return nil, fmt.Errorf("link party %s: %w", id, types.ErrInvalidTransition)
	}
	o.metrics.Saga(sagaLink, metrics.OutcomeOK)
	o.log.Info("party linked", "party_id", id, "secondary_id", ref.ID, "system", ref.System)
	return o.assembler.Fetch(ctx, id)
}

// loadCore returns the core record or an error wrapping types.ErrNotFound.
func (o *Orchestrator) loadCore(ctx context.Context, id string) (*types.Party, error) {
	p, err := firstRow[*types.Party](ctx, o.store, types.TableParties, types.Filter{"party_id": id})
	if err != nil {
		return nil, &types.PersistError{PartyID: id, Group: types.GroupCore, Op: types.OpLookup, Err: err}
	}
	if p == nil {
		return nil, fmt.Errorf("party %s: %w", id, types.ErrNotFound)
	}
	return p, nil
}

func (o *Orchestrator) insert(ctx context.Context, table string, row any) error {
	tbl, err := o.store.GetTable(table)
	if err != nil {
		return err
	}
	_, err = tbl.Insert(ctx, row)
	return err
}

func (o *Orchestrator) deleteCore(ctx context.Context, id string) error {
	tbl, err := o.store.GetTable(types.TableParties)
	if err != nil {
		return err
	}
	_, err = tbl.Delete(ctx, types.Filter{"party_id": id})
	return err
}

// apply performs a decided group plan.
func (o *Orchestrator) apply(ctx context.Context, id string, plan groupPlan) error {
	if plan.op == types.OpNoOp {
		return nil
	}
	fail := func(err error) error {
		return &types.PersistError{PartyID: id, Group: plan.group, Op: plan.op, Err: err}
	}
	tbl, err := o.store.GetTable(plan.table)
	if err != nil {
		return fail(err)
	}
	switch plan.op {
	case types.OpInsert:
		if _, err := tbl.Insert(ctx, plan.row); err != nil {
			return fail(err)
		}
	case types.OpUpdateInPlace:
		rows, err := tbl.Update(ctx, plan.filter, plan.patch)
		if err != nil {
			return fail(err)
		}
		if len(rows) == 0 {
			return fail(types.ErrNotFound)
		}
	}
	return nil
}

// firstRow returns the first row matching filter, or nil.
func firstRow[T any](ctx context.Context, store types.Store, table string, filter types.Filter) (T, error) {
	var zero T
	rows, err := selectAs[T](ctx, store, table, filter)
	if err != nil || len(rows) == 0 {
		return zero, err
	}
	return rows[0], nil
}

func sortedCategories(attrs map[string]string) []string {
	cats := make([]string, 0, len(attrs))
	for c := range attrs {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}
