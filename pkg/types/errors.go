package types

import (
	"fmt"
	"strings"
)

// Group names one independently written part of a composite party: the
// core record, one contact kind, the address, or one attribute category.
type Group string

// Fixed groups. Contact and attribute groups are built with ContactGroup and
// AttributeGroup.
const (
	GroupCore    Group = "core"
	GroupAddress Group = "address"
)

// ContactGroup returns the group for a contact channel kind.
func ContactGroup(kind string) Group {
	return Group("contact:" + kind)
}

// AttributeGroup returns the group for an attribute category.
func AttributeGroup(category string) Group {
	return Group("attribute:" + category)
}

// Op is the store operation a group write performed or attempted.
type Op string

// Group operations. NoOp, Insert and UpdateInPlace are the outcomes of the
// per-group upsert decision; Lookup and Delete only appear in errors.
const (
	OpNoOp          Op = "noop"
	OpInsert        Op = "insert"
	OpUpdateInPlace Op = "update"
	OpLookup        Op = "lookup"
	OpDelete        Op = "delete"
)

// Issue is one field-level validation failure.
type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports bad input. No store call was made.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Field+": "+is.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// PersistError reports that the store call for one group failed. In Create
// the core record has already been compensated away when this is returned;
// in Update earlier groups stay committed.
type PersistError struct {
	PartyID string
	Group   Group
	Op      Op
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s (%s) for party %s: %v", e.Group, e.Op, e.PartyID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// CompensationError reports that the cleanup delete after a failed Create
// step failed too. The core record and any child rows written before the
// failure are still in the store: a data-integrity incident.
type CompensationError struct {
	PartyID string
	Group   Group // group whose failure triggered compensation
	Cause   error // the original step failure
	Err     error // the compensation failure
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation failed for party %s after %s failure (%v): %v",
		e.PartyID, e.Group, e.Cause, e.Err)
}

func (e *CompensationError) Unwrap() []error { return []error{e.Err, e.Cause} }

// Conversion stages reported by ConversionError.
const (
	StageLoad               = "load"
	StageNotAProspect       = "not-a-prospect"
	StageBlockingValidation = "blocking-validation"
	StageNeedsConfirmation  = "needs-confirmation"
	StageSyncFailed         = "sync-failed"
	StageLinkFailed         = "link-failed"
)

// ConversionError reports where a PROSPECT -> CUSTOMER conversion stopped.
type ConversionError struct {
	PartyID  string
	Stage    string
	Blocking []string
	Warnings []string
	Err      error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("convert party %s: %s", e.PartyID, e.Stage)
	switch {
	case len(e.Blocking) > 0:
		msg += ": " + strings.Join(e.Blocking, "; ")
	case e.Stage == StageNeedsConfirmation && len(e.Warnings) > 0:
		msg += ": " + strings.Join(e.Warnings, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConversionError) Unwrap() error { return e.Err }

// SyncError reports that a secondary-system call failed or returned a
// response that could not be parsed.
type SyncError struct {
	Script string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("secondary script %s: %v", e.Script, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
