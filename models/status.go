package models

import (
	"fmt"
	"strings"
	"time"
)

// InvitationState is a lifecycle state recorded in an invitation's status map.
type InvitationState string

const (
	StateCreated  InvitationState = "CREATED"
	StateSent     InvitationState = "SENT"
	StateApproved InvitationState = "APPROVED"
	StateRevoked  InvitationState = "REVOKED"
)

// Operation is a lifecycle request. Every state except CREATED is an operation,
// plus UPDATE which re-renders the document without changing state.
type Operation string

const (
	OpSent     Operation = "SENT"
	OpApproved Operation = "APPROVED"
	OpRevoked  Operation = "REVOKED"
	OpUpdate   Operation = "UPDATE"
)

// ParseOperation accepts an operation name case-insensitively.
func ParseOperation(raw string) (Operation, error) {
	op := Operation(strings.ToUpper(strings.TrimSpace(raw)))
	switch op {
	case OpSent, OpApproved, OpRevoked, OpUpdate:
		return op, nil
	}
	return "", fmt.Errorf("unknown operation %q", raw)
}

// State maps a state-changing operation to its target state.
func (o Operation) State() (InvitationState, bool) {
	switch o {
	case OpSent:
		return StateSent, true
	case OpApproved:
		return StateApproved, true
	case OpRevoked:
		return StateRevoked, true
	}
	return "", false
}

// allowedTransitions lists, per current state, the states it may move to.
// Same-state entries for APPROVED and REVOKED are handled as no-ops by Plan.
var allowedTransitions = map[InvitationState]map[InvitationState]bool{
	StateCreated:  {StateSent: true, StateApproved: true, StateRevoked: true},
	StateSent:     {StateSent: true, StateApproved: true, StateRevoked: true},
	StateApproved: {StateSent: true, StateRevoked: true},
	StateRevoked:  {},
}

// TransitionEffect is what applying a target state to a current state does.
type TransitionEffect int

const (
	TransitionRejected TransitionEffect = iota
	TransitionApply
	TransitionNoop
)

// Plan decides how a transition from `from` to `to` is handled.
func Plan(from, to InvitationState) TransitionEffect {
	if from == to && (to == StateApproved || to == StateRevoked) {
		return TransitionNoop
	}
	if allowedTransitions[from][to] {
		return TransitionApply
	}
	return TransitionRejected
}

// StatusStamp records who moved an invitation into a state and when.
type StatusStamp struct {
	By        string    `json:"by"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`

	// InBundle and InSummary are set once the state was added to the bundle
	// record and to the bundles summary.
	InBundle  bool `json:"inBundle,omitempty"`
	InSummary bool `json:"inSummary,omitempty"`
}

// Aggregated reports whether both aggregates already counted the stamp.
func (s StatusStamp) Aggregated() bool {
	return s.InBundle && s.InSummary
}

// Aggregates reports whether reaching state feeds the bundle counters.
func Aggregates(state InvitationState) bool {
	return state == StateApproved || state == StateRevoked
}

// StatusBlock is the per-invitation lifecycle map.
type StatusBlock struct {
	Stamps       map[InvitationState]StatusStamp `json:"statuses,omitempty"`
	Current      InvitationState                 `json:"currentStatus,omitempty"`
	LastModified time.Time                       `json:"lastModificationTimestamp"`
}

// Stamp records a state, makes it current and bumps the modification time.
// Aggregation flags of an earlier stamp of the same state are kept.
func (s *StatusBlock) Stamp(state InvitationState, by, source string, at time.Time) {
	if s.Stamps == nil {
		s.Stamps = make(map[InvitationState]StatusStamp)
	}
	prev := s.Stamps[state]
	s.Stamps[state] = StatusStamp{
		By: by, Source: source, Timestamp: at, Success: true,
		InBundle: prev.InBundle, InSummary: prev.InSummary,
	}
	s.Current = state
	s.LastModified = at
}

// MarkAggregated records which aggregates counted state. Flags are only ever set.
// It returns false when the state was never stamped.
func (s *StatusBlock) MarkAggregated(state InvitationState, inBundle, inSummary bool) bool {
	stamp, ok := s.Stamps[state]
	if !ok {
		return false
	}
	stamp.InBundle = stamp.InBundle || inBundle
	stamp.InSummary = stamp.InSummary || inSummary
	s.Stamps[state] = stamp
	return true
}

// Touch bumps the modification time without changing state.
func (s *StatusBlock) Touch(at time.Time) {
	s.LastModified = at
}

// Has reports whether the state was ever stamped successfully.
func (s StatusBlock) Has(state InvitationState) bool {
	stamp, ok := s.Stamps[state]
	return ok && stamp.Success
}

// IsCreated reports whether the artifact pipeline finished for this invitation.
func (s StatusBlock) IsCreated() bool {
	return s.Has(StateCreated)
}
