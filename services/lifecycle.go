package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/models"
	"invites.fest2.fun/pkg/keylock"
	"invites.fest2.fun/pkg/metrics"
	"invites.fest2.fun/repositories"

	"go.uber.org/zap"
)

const (
	DefaultActor   = "admin"
	DefaultSource  = "FORM-ADMIN"
	DispatchActor  = "system"
	DispatchSource = "EMAIL"

	outcomeApplied = "applied"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// UpdateData edits an invitation's contact and template fields. Empty values keep the stored ones.
type UpdateData struct {
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	CustomFields map[string]string `json:"customFields"`
}

// TransitionRequest applies one operation to a set of invitations of an event.
type TransitionRequest struct {
	EventID       string      `json:"-"`
	InvitationIDs []string    `json:"invitationIds"`
	Operation     string      `json:"operation"`
	TemplateID    string      `json:"templateId"`
	Data          *UpdateData `json:"data"`
	Actor         string      `json:"by"`
	Source        string      `json:"source"`
}

// TransitionReport lists, per invitation, what the operation did.
type TransitionReport struct {
	Operation models.Operation `json:"operation"`
	Applied   []string         `json:"applied"`
	Skipped   []string         `json:"skipped"`
	Failures  []Failure        `json:"failures,omitempty"`
}

// LifecycleService moves existing invitations through their states and feeds
// first-time approvals and revocations back into the aggregates.
type LifecycleService struct {
	events      repositories.IEventRepository
	pipeline    *ArtifactPipeline
	aggregation *AggregationEngine
	locks       *keylock.Locker
	metrics     *metrics.Metrics
	now         func() time.Time
	attempts    uint
}

// NewLifecycleService builds the transition flow. UPDATE re-renders through pipeline.
func NewLifecycleService(deps Dependencies, pipeline *ArtifactPipeline, aggregation *AggregationEngine) *LifecycleService {
	return &LifecycleService{
		events:      deps.Events,
		pipeline:    pipeline,
		aggregation: aggregation,
		locks:       deps.Locks,
		metrics:     deps.Metrics,
		now:         deps.clock(),
		attempts:    defaultConflictAttempts,
	}
}

// transitionResult is what one invitation contributed to a transition.
type transitionResult struct {
	outcome        string
	// inBundle and inSummary are set while the target state still has to be
	// counted in the bundle record or the summary.
	inBundle       bool
	inSummary      bool
	bundle         string
	invitationType string
}

func (r transitionResult) pending() bool { return r.inBundle || r.inSummary }

// pendingCount is one stamped state that still has to reach the aggregates.
type pendingCount struct {
	invitationID string
	transitionResult
}

// Transition applies req.Operation to every listed invitation. Unknown operations
// fail before any record is read, and APPROVED or REVOKED fail as a whole when the
// event has no bundles summary. Per-invitation failures are reported, not returned.
// A non-nil report accompanies an aggregation error.
func (l *LifecycleService) Transition(ctx context.Context, req TransitionRequest) (*TransitionReport, error) {
	op, err := ParseTransition(req)
	if err != nil {
		return nil, err
	}
	target, _ := op.State()
	if models.Aggregates(target) {
		if _, _, err := l.events.GetSummary(ctx, req.EventID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrBundleSummaryNotFound, req.EventID)
			}
			return nil, fmt.Errorf("load bundles summary of %s: %w", req.EventID, err)
		}
	}

	actor, source := req.Actor, req.Source
	if actor == "" {
		actor = DefaultActor
	}
	if source == "" {
		source = DefaultSource
	}
	if op == models.OpSent && req.Actor == "" && req.Source == "" {
		actor, source = DispatchActor, DispatchSource
	}

	report := &TransitionReport{Operation: op, Applied: []string{}, Skipped: []string{}}
	var aggErr error
	// Held so two requests never both pick up the same uncounted stamp.
	err = l.locks.Do(ctx, req.EventID, func() error {
		var pending []pendingCount
		for i, id := range req.InvitationIDs {
			res, err := l.apply(ctx, req.EventID, id, op, actor, source, req.TemplateID, req.Data)
			if err != nil {
				l.metrics.Transitions.WithLabelValues(string(op), outcomeFailed).Inc()
				configslog.Log.Warn("Invitation transition failed",
					zap.String("eventId", req.EventID), zap.String("invitationId", id),
					zap.String("operation", string(op)), zap.Error(err))
				report.Failures = append(report.Failures, Failure{Index: i, InvitationID: id, Error: err.Error()})
				continue
			}
			l.metrics.Transitions.WithLabelValues(string(op), res.outcome).Inc()
			if res.outcome == outcomeSkipped {
				report.Skipped = append(report.Skipped, id)
				continue
			}
			report.Applied = append(report.Applied, id)
			if res.pending() {
				pending = append(pending, pendingCount{invitationID: id, transitionResult: res})
			}
		}
		if len(pending) > 0 {
			aggErr = l.aggregateTransitions(ctx, req.EventID, target, pending)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	configslog.SLog.Infof("Transition %s on %s: applied=%d skipped=%d failed=%d",
		op, req.EventID, len(report.Applied), len(report.Skipped), len(report.Failures))
	if aggErr != nil {
		return report, aggErr
	}
	return report, nil
}

// ParseTransition validates the request shape and returns its operation.
func ParseTransition(req TransitionRequest) (models.Operation, error) {
	if strings.TrimSpace(req.EventID) == "" {
		return "", fmt.Errorf("%w: event id is required", ErrValidation)
	}
	op, err := models.ParseOperation(req.Operation)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(req.InvitationIDs) == 0 {
		return "", fmt.Errorf("%w: no invitation ids", ErrValidation)
	}
	if op == models.OpUpdate && req.Data != nil {
		if email := strings.TrimSpace(req.Data.Email); email != "" {
			if err := validateEmail(email); err != nil {
				return "", err
			}
		}
	}
	return op, nil
}

// splitDeltas places deltas on the approved or revoked side according to state.
func splitDeltas(state models.InvitationState, deltas models.BundleDeltas) (approved, revoked models.BundleDeltas) {
	if state == models.StateApproved {
		return deltas, models.BundleDeltas{}
	}
	return models.BundleDeltas{}, deltas
}

// aggregateTransitions merges pending stamps into each bundle record and into the
// summary, then flags every stamp with the aggregates that now hold it. A stamp
// whose merge failed stays unflagged, so repeating the transition counts it then.
func (l *LifecycleService) aggregateTransitions(ctx context.Context, eventID string, state models.InvitationState, pending []pendingCount) error {
	byBundle := make(map[string]models.BundleDeltas)
	summaryDeltas := models.BundleDeltas{}
	for _, p := range pending {
		if p.inBundle {
			if byBundle[p.bundle] == nil {
				byBundle[p.bundle] = models.BundleDeltas{}
			}
			byBundle[p.bundle].Inc(p.bundle, p.invitationType)
		}
		if p.inSummary {
			summaryDeltas.Inc(p.bundle, p.invitationType)
		}
	}

	var errs []error
	bundleDone := make(map[string]bool, len(byBundle))
	for name, deltas := range byBundle {
		approved, revoked := splitDeltas(state, deltas)
		if err := l.aggregation.RecordBundleTransitions(ctx, eventID, approved, revoked); err != nil {
			configslog.Log.Error("Bundle counters could not be updated",
				zap.String("eventId", eventID), zap.String("bundle", name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		bundleDone[name] = true
	}
	summaryDone := summaryDeltas.Empty()
	if !summaryDone {
		approved, revoked := splitDeltas(state, summaryDeltas)
		if err := l.aggregation.MergeTransitions(ctx, eventID, approved, revoked); err != nil {
			configslog.Log.Error("Bundles summary could not be updated", zap.String("eventId", eventID), zap.Error(err))
			errs = append(errs, err)
		} else {
			summaryDone = true
		}
	}

	for _, p := range pending {
		inBundle := p.inBundle && bundleDone[p.bundle]
		inSummary := p.inSummary && summaryDone
		if !inBundle && !inSummary {
			continue
		}
		if err := l.markAggregated(ctx, eventID, p.invitationID, state, inBundle, inSummary); err != nil {
			configslog.Log.Error("Aggregated stamp could not be flagged",
				zap.String("eventId", eventID), zap.String("invitationId", p.invitationID), zap.Error(err))
			errs = append(errs, fmt.Errorf("flag %s: %w", p.invitationID, err))
		}
	}
	return errors.Join(errs...)
}

func (l *LifecycleService) markAggregated(ctx context.Context, eventID, invitationID string, state models.InvitationState, inBundle, inSummary bool) error {
	return retryOnConflict(ctx, l.attempts, nil, func() error {
		inv, version, err := l.events.GetInvitation(ctx, eventID, invitationID)
		if err != nil {
			return err
		}
		if !inv.Status.MarkAggregated(state, inBundle, inSummary) {
			return fmt.Errorf("%w: %s has no %s stamp", ErrInvalidTransition, invitationID, state)
		}
		_, err = l.events.SaveInvitation(ctx, inv, version)
		return err
	})
}

// apply runs one operation against one invitation with a conditional write,
// reloading on version conflicts. A repeated APPROVED or REVOKED whose stamp
// never reached the aggregates is applied again without restamping.
func (l *LifecycleService) apply(ctx context.Context, eventID, invitationID string, op models.Operation,
	actor, source, templateID string, data *UpdateData) (transitionResult, error) {
	var res transitionResult
	err := retryOnConflict(ctx, l.attempts, nil, func() error {
		inv, version, err := l.events.GetInvitation(ctx, eventID, invitationID)
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: %s/%s", ErrInvitationNotFound, eventID, invitationID)
		}
		if err != nil {
			return err
		}
		if !inv.Status.IsCreated() {
			return fmt.Errorf("%w: %s", ErrNotCreated, invitationID)
		}

		if op == models.OpUpdate {
			res = transitionResult{outcome: outcomeApplied}
			return l.update(ctx, inv, version, templateID, data)
		}

		target, _ := op.State()
		effect := models.Plan(inv.Status.Current, target)
		if effect == models.TransitionRejected {
			return fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidTransition, invitationID, inv.Status.Current, target)
		}

		res = transitionResult{
			outcome:        outcomeApplied,
			bundle:         inv.Data.Bundle,
			invitationType: inv.Contact.InvitationType,
		}
		if models.Aggregates(target) {
			stamp := inv.Status.Stamps[target]
			res.inBundle, res.inSummary = !stamp.InBundle, !stamp.InSummary
		}
		if effect == models.TransitionNoop {
			if !res.pending() {
				res = transitionResult{outcome: outcomeSkipped}
			}
			return nil
		}

		inv.Status.Stamp(target, actor, source, l.now())
		_, err = l.events.SaveInvitation(ctx, inv, version)
		return err
	})
	if errors.Is(err, repositories.ErrVersionConflict) {
		return transitionResult{}, fmt.Errorf("invitation %s kept changing concurrently: %w", invitationID, err)
	}
	return res, err
}

// update merges contact edits, re-renders the document with the existing code
// image and bumps the modification time. The state does not change.
func (l *LifecycleService) update(ctx context.Context, inv *models.Invitation, version int64, templateID string, data *UpdateData) error {
	if inv.Status.Current == models.StateRevoked {
		return fmt.Errorf("%w: %s is REVOKED and cannot be updated", ErrInvalidTransition, inv.InvitationID)
	}
	if data != nil {
		if name := strings.TrimSpace(data.Name); name != "" {
			inv.Contact.Name = name
		}
		if email := strings.TrimSpace(data.Email); email != "" {
			if err := validateEmail(email); err != nil {
				return err
			}
			inv.Contact.Email = email
		}
		if len(data.CustomFields) > 0 {
			if inv.Template.CustomFields == nil {
				inv.Template.CustomFields = make(map[string]string, len(data.CustomFields))
			}
			for k, v := range data.CustomFields {
				inv.Template.CustomFields[k] = v
			}
		}
	}
	if templateID = strings.TrimSpace(templateID); templateID != "" {
		inv.Template.TemplateID = templateID
	}

	doc, err := l.pipeline.Rerender(ctx, inv)
	if err != nil {
		return err
	}
	inv.Document = &models.DocumentData{URL: doc.URL, URI: doc.URI}
	inv.Status.Touch(l.now())
	_, err = l.events.SaveInvitation(ctx, inv, version)
	return err
}
