package party

import (
	"context"
	"errors"
	"time"

	"github.com/mesh-intelligence/partybook/internal/logger"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

// compensateTimeout bounds the cleanup, which ignores caller cancellation.
const compensateTimeout = 10 * time.Second

// step is one sequential write of a saga.
type step struct {
	group types.Group
	op    types.Op
	run   func(ctx context.Context) error
}

// saga runs steps in order and, on the first failure, runs its single
// compensation. A nil compensate means completed steps stay committed.
type saga struct {
	name       string
	partyID    string
	steps      []step
	compensate func(ctx context.Context) error
	log        *logger.Logger
}

// sagaResult describes how a saga ended.
type sagaResult struct {
	completed   []types.Group
	failed      types.Group
	compensated bool
}

func (s *saga) add(group types.Group, op types.Op, run func(ctx context.Context) error) {
	s.steps = append(s.steps, step{group: group, op: op, run: run})
}

// execute returns nil, a *types.PersistError, or a *types.CompensationError.
func (s *saga) execute(ctx context.Context) (sagaResult, error) {
	var res sagaResult
	for _, st := range s.steps {
		err := st.run(ctx)
		if err == nil {
			res.completed = append(res.completed, st.group)
			continue
		}
		res.failed = st.group

		var perr *types.PersistError
		if !errors.As(err, &perr) {
			perr = &types.PersistError{PartyID: s.partyID, Group: st.group, Op: st.op, Err: err}
		}
		if s.compensate == nil {
			s.log.Warn("saga step failed; earlier groups stay committed",
				"saga", s.name, "party_id", s.partyID, "group", st.group,
				"committed", res.completed, "error", err)
			return res, perr
		}

		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
		cerr := s.compensate(cctx)
		cancel()
		if cerr != nil {
			s.log.Error("compensation failed",
				"incident", "data_integrity", "saga", s.name, "party_id", s.partyID,
				"group", st.group, "cause", err, "error", cerr)
			return res, &types.CompensationError{PartyID: s.partyID, Group: st.group, Cause: perr, Err: cerr}
		}
		res.compensated = true
		s.log.Warn("saga step failed; compensated",
			"saga", s.name, "party_id", s.partyID, "group", st.group, "error", err)
		return res, perr
	}
	return res, nil
}
