package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/models"
	"invites.fest2.fun/pkg/metrics"
	"invites.fest2.fun/repositories"

	"go.uber.org/zap"
)

// AggregationEngine merges counters into the bundle and summary records.
// Every merge is read, modify, conditional write; a version conflict reloads and retries.
type AggregationEngine struct {
	events   repositories.IEventRepository
	metrics  *metrics.Metrics
	attempts uint
}

// NewAggregationEngine builds the merger used by creation and lifecycle.
func NewAggregationEngine(events repositories.IEventRepository, m *metrics.Metrics) *AggregationEngine {
	return &AggregationEngine{events: events, metrics: m, attempts: defaultConflictAttempts}
}

func (a *AggregationEngine) merge(ctx context.Context, eventID, operation string, fn func() error) error {
	err := retryOnConflict(ctx, a.attempts, a.metrics.AggregationConflicts.Inc, fn)
	if errors.Is(err, repositories.ErrVersionConflict) {
		configslog.Log.Error("Aggregate merge kept conflicting",
			zap.String("eventId", eventID), zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("%w: %s/%s: %w", ErrAggregationConflict, eventID, operation, err)
	}
	return err
}

// MergeCreated adds creation counts into the event summary, creating it when absent.
func (a *AggregationEngine) MergeCreated(ctx context.Context, eventID string, deltas models.BundleDeltas) error {
	if deltas.Empty() {
		return nil
	}
	return a.merge(ctx, eventID, models.OperationBundles, func() error {
		summary, version, err := a.events.GetSummary(ctx, eventID)
		if errors.Is(err, repositories.ErrNotFound) {
			summary, version, err = &models.BundlesSummary{}, 0, nil
		}
		if err != nil {
			return err
		}
		summary.MergeCreated(deltas)
		_, err = a.events.SaveSummary(ctx, eventID, summary, version)
		return err
	})
}

// MergeTransitions adds approval and revocation counts into an existing summary.
func (a *AggregationEngine) MergeTransitions(ctx context.Context, eventID string, approved, revoked models.BundleDeltas) error {
	if approved.Empty() && revoked.Empty() {
		return nil
	}
	return a.merge(ctx, eventID, models.OperationBundles, func() error {
		summary, version, err := a.events.GetSummary(ctx, eventID)
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrBundleSummaryNotFound, eventID)
		}
		if err != nil {
			return err
		}
		summary.MergeTransitions(approved, revoked)
		_, err = a.events.SaveSummary(ctx, eventID, summary, version)
		return err
	})
}

// RecordBundleCreations appends new invitations to a bundle record, creating it on demand.
// contacts[i] belongs to invitationIDs[i].
func (a *AggregationEngine) RecordBundleCreations(ctx context.Context, eventID, bundleName string, contacts []models.Contact, invitationIDs []string) error {
	if len(invitationIDs) == 0 {
		return nil
	}
	return a.merge(ctx, eventID, models.BundleOperation(bundleName), func() error {
		bundle, version, err := a.loadBundle(ctx, eventID, bundleName)
		if err != nil {
			return err
		}
		bundle.AddCreated(contacts, invitationIDs)
		_, err = a.events.SaveBundle(ctx, eventID, bundle, version)
		return err
	})
}

// RecordBundleTransitions counts approvals and revocations in each touched bundle.
// Bundles are merged independently; every failure is reported.
func (a *AggregationEngine) RecordBundleTransitions(ctx context.Context, eventID string, approved, revoked models.BundleDeltas) error {
	names := make(map[string]struct{}, len(approved)+len(revoked))
	for name := range approved {
		names[name] = struct{}{}
	}
	for name := range revoked {
		names[name] = struct{}{}
	}
	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	var errs []error
	for _, name := range ordered {
		if approved[name].Sum() == 0 && revoked[name].Sum() == 0 {
			continue
		}
		err := a.merge(ctx, eventID, models.BundleOperation(name), func() error {
			bundle, version, err := a.loadBundle(ctx, eventID, name)
			if err != nil {
				return err
			}
			for invitationType, n := range approved[name] {
				bundle.Count(invitationType, models.StateApproved, n)
			}
			for invitationType, n := range revoked[name] {
				bundle.Count(invitationType, models.StateRevoked, n)
			}
			_, err = a.events.SaveBundle(ctx, eventID, bundle, version)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("bundle %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (a *AggregationEngine) loadBundle(ctx context.Context, eventID, name string) (*models.Bundle, int64, error) {
	bundle, version, err := a.events.GetBundle(ctx, eventID, name)
	if errors.Is(err, repositories.ErrNotFound) {
		return &models.Bundle{Name: name}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	if bundle.Name == "" {
		bundle.Name = name
	}
	return bundle, version, nil
}
