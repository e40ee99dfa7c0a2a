package secondary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/partybook/internal/logger"
	"github.com/mesh-intelligence/partybook/internal/metrics"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

// System is the name recorded on SecondaryRef values.
const System = "secondary"

// Response parsing errors, wrapped in *types.SyncError.
var (
	ErrUnparseable = errors.New("unparseable response")
	ErrRejected    = errors.New("secondary system reported failure")
	ErrMissingID   = errors.New("response has no record id")
)

// Address is the address block of a create-record payload.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// CreatePayload is the JSON sent to the create-record script.
type CreatePayload struct {
	SourceID   string            `json:"source_id"`
	Name       string            `json:"name"`
	FirstName  string            `json:"first_name"`
	LastName   string            `json:"last_name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	Address    Address           `json:"address"`
	Industry   string            `json:"industry"`
	Attributes map[string]string `json:"attributes"`
}

// NewCreatePayload maps an assembled view onto the create-record payload.
func NewCreatePayload(v *types.View) CreatePayload {
	attrs := v.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	return CreatePayload{
		SourceID:  v.ID,
		Name:      v.Name,
		FirstName: v.FirstName,
		LastName:  v.LastName,
		Email:     v.Email,
		Phone:     v.Phone,
		Address: Address{
			Line1:      v.Line1,
			Line2:      v.Line2,
			City:       v.City,
			Region:     v.Region,
			PostalCode: v.PostalCode,
			Country:    v.Country,
		},
		Industry:   v.Industry,
		Attributes: attrs,
	}
}

// Synchronizer creates secondary records and queries bridge configuration.
type Synchronizer struct {
	invoker Invoker
	cfg     types.BridgeConfig
	log     *logger.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger for failed bridge calls.
func WithLogger(log *logger.Logger) Option {
	return func(s *Synchronizer) { s.log = log }
}

// WithMetrics records bridge call counts and latency on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

// WithClock replaces the clock used for SecondaryRef.LinkedAt.
func WithClock(fn func() time.Time) Option {
	return func(s *Synchronizer) { s.now = fn }
}

// NewSynchronizer creates a synchronizer; empty cfg fields take defaults.
func NewSynchronizer(inv Invoker, cfg types.BridgeConfig, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		invoker: inv,
		cfg:     cfg.WithDefaults(),
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "secondary")
	return s
}

// SyncToSecondary creates the secondary record for v and returns its id.
// Any failure, including a response without success=true or without an
// id, is a *types.SyncError. Nothing is written to the primary store.
func (s *Synchronizer) SyncToSecondary(ctx context.Context, v *types.View) (types.SecondaryRef, error) {
	script := s.cfg.CreateScript
	payload, err := json.Marshal(NewCreatePayload(v))
	if err != nil {
		return types.SecondaryRef{}, &types.SyncError{Script: script, Err: err}
	}

	fields, err := s.call(ctx, script, payload)
	if err != nil {
		return types.SecondaryRef{}, err
	}
	id, err := idValue(fields[s.cfg.IDField])
	if err != nil {
		return types.SecondaryRef{}, &types.SyncError{Script: script, Err: fmt.Errorf("%w: field %q: %v", ErrMissingID, s.cfg.IDField, err)}
	}

	ref := types.SecondaryRef{System: System, ID: id, LinkedAt: s.now().UTC()}
	s.log.Info("secondary record created", "party_id", v.ID, "secondary_id", id)
	return ref, nil
}

// QueryConfig runs the configuration script and returns its response
// object without the success flag.
func (s *Synchronizer) QueryConfig(ctx context.Context) (map[string]any, error) {
	script := s.cfg.ConfigScript
	fields, err := s.call(ctx, script, []byte("{}"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(fields))
	for k, raw := range fields {
		if k == "success" {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, &types.SyncError{Script: script, Err: fmt.Errorf("%w: %v", ErrUnparseable, err)}
		}
		out[k] = v
	}
	return out, nil
}

// call invokes script and checks the success indicator.
func (s *Synchronizer) call(ctx context.Context, script string, payload []byte) (map[string]json.RawMessage, error) {
	start := time.Now()
	resp, err := s.invoker.Invoke(ctx, script, payload)
	if err == nil {
		var fields map[string]json.RawMessage
		fields, err = parseResponse(resp)
		if err == nil {
			s.metrics.BridgeCall(script, nil, time.Since(start))
			return fields, nil
		}
	}
	s.metrics.BridgeCall(script, err, time.Since(start))
	s.log.Warn("bridge call failed", "script", script, "error", err)
	return nil, &types.SyncError{Script: script, Err: err}
}

func parseResponse(resp []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(resp, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnparseable, truncate(resp))
	}
	var ok bool
	if raw, present := fields["success"]; !present || json.Unmarshal(raw, &ok) != nil {
		return nil, fmt.Errorf("%w: missing success flag", ErrUnparseable)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRejected, failureMessage(fields))
	}
	return fields, nil
}

func failureMessage(fields map[string]json.RawMessage) string {
	for _, key := range []string{"error", "message"} {
		var msg string
		if raw, ok := fields[key]; ok && json.Unmarshal(raw, &msg) == nil && msg != "" {
			return msg
		}
	}
	return "no reason given"
}

// idValue accepts a JSON string or number.
func idValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("absent")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", errors.New("empty")
		}
		return s, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil || n == "" {
		return "", fmt.Errorf("not a string or number: %s", raw)
	}
	return n.String(), nil
}

func truncate(b []byte) string {
	if len(b) > 120 {
		return string(b[:120]) + "..."
	}
	return string(b)
}
