package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/models"
	"invites.fest2.fun/pkg/keylock"
	"invites.fest2.fun/pkg/metrics"
	"invites.fest2.fun/pkg/notify"
	"invites.fest2.fun/pkg/workerpool"
	"invites.fest2.fun/repositories"

	"go.uber.org/zap"
)

const DefaultInvitationType = "GENERAL"

// BatchRequest creates one invitation per recipient.
type BatchRequest struct {
	EventID    string                `json:"-"`
	Recipients []models.Recipient    `json:"contacts"`
	Template   models.TemplateRef    `json:"template"`
	Metadata   models.UploadMetadata `json:"metadata"`
}

// BatchResult lists the created invitations in allocation order and every unit that failed.
type BatchResult struct {
	InvitationIDs []string  `json:"invitationIds"`
	Failures      []Failure `json:"failures,omitempty"`
}

// CreationService allocates identifiers and fans recipients out to the pipeline.
type CreationService struct {
	events      repositories.IEventRepository
	pipeline    *ArtifactPipeline
	sequence    *SequenceAllocator
	aggregation *AggregationEngine
	pool        *workerpool.Pool
	locks       *keylock.Locker
	bus         *notify.Bus
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewCreationService builds the batch creation flow over a shared pipeline and aggregation engine.
func NewCreationService(deps Dependencies, pipeline *ArtifactPipeline, aggregation *AggregationEngine) *CreationService {
	return &CreationService{
		events:      deps.Events,
		pipeline:    pipeline,
		sequence:    NewSequenceAllocator(deps.Events),
		aggregation: aggregation,
		pool:        deps.CreationPool,
		locks:       deps.Locks,
		bus:         deps.Bus,
		metrics:     deps.Metrics,
		now:         deps.clock(),
	}
}

// NormalizeRecipients trims every row, defaults the type and rejects rows
// without a valid email or a bundle.
func NormalizeRecipients(in []models.Recipient) ([]models.Recipient, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrValidation)
	}
	out := make([]models.Recipient, len(in))
	for i, r := range in {
		r.Name = strings.TrimSpace(r.Name)
		r.Email = strings.TrimSpace(r.Email)
		r.Bundle = strings.TrimSpace(r.Bundle)
		r.InvitationType = strings.ToUpper(strings.TrimSpace(r.InvitationType))
		r.TemplateID = strings.TrimSpace(r.TemplateID)
		if r.InvitationType == "" {
			r.InvitationType = DefaultInvitationType
		}
		if r.Email == "" {
			return nil, fmt.Errorf("%w: recipient %d has no email", ErrValidation, i)
		}
		if err := validateEmail(r.Email); err != nil {
			return nil, fmt.Errorf("recipient %d: %w", i, err)
		}
		if r.Bundle == "" {
			return nil, fmt.Errorf("%w: recipient %d has no bundle", ErrValidation, i)
		}
		out[i] = r
	}
	return out, nil
}

// validateEmail rejects addresses the mail transport could not deliver to.
func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: email %q: %v", ErrValidation, email, err)
	}
	return nil
}

// loadSnapshot returns the event fields copied into every invitation.
func (s *CreationService) loadSnapshot(ctx context.Context, eventID string) (models.EventSnapshot, error) {
	core, err := s.events.GetCore(ctx, eventID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && core.IsEmpty()) {
		return models.EventSnapshot{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	if err != nil {
		return models.EventSnapshot{}, fmt.Errorf("load event %s: %w", eventID, err)
	}
	return core.Snapshot(), nil
}

// CreateBatch validates the request, then allocates identifiers and runs the
// pipeline for every recipient while holding the event's lock. Unit failures
// never abort siblings; they are returned in the result. A non-nil result is
// returned alongside an aggregation error since the invitations already exist.
func (s *CreationService) CreateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if strings.TrimSpace(req.EventID) == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrValidation)
	}
	recipients, err := NormalizeRecipients(req.Recipients)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.loadSnapshot(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	meta := req.Metadata.WithDefaults(s.now())
	log := configslog.Log.With(zap.String("eventId", req.EventID))

	var (
		result  *BatchResult
		aggErr  error
		started = time.Now()
	)
	err = s.locks.Do(ctx, req.EventID, func() error {
		maxIndex, err := s.sequence.MaxIndex(ctx, req.EventID)
		if err != nil {
			return err
		}
		ids := Allocate(maxIndex, len(recipients))
		results := make([]*PipelineResult, len(recipients))
		errs := make([]error, len(recipients))

		err = s.pool.Run(ctx, len(recipients), func(ctx context.Context, i int) {
			unitStart := time.Now()
			res, err := s.pipeline.Process(ctx, PipelineInput{
				EventID:      req.EventID,
				InvitationID: ids[i],
				Index:        maxIndex + i + 1,
				Recipient:    recipients[i],
				Event:        snapshot,
				Template:     req.Template,
				Metadata:     meta,
			})
			s.metrics.PipelineDuration.Observe(time.Since(unitStart).Seconds())
			results[i], errs[i] = res, err

			item := notify.ItemCompleted{EventID: req.EventID, InvitationID: ids[i], Index: i, Success: err == nil}
			if err != nil {
				item.Error = err.Error()
				s.metrics.Created.WithLabelValues("failure").Inc()
				log.Error("Invitation could not be created",
					zap.String("invitationId", ids[i]), zap.String("email", recipients[i].Email), zap.Error(err))
			} else {
				s.metrics.Created.WithLabelValues("success").Inc()
			}
			s.bus.PublishItem(item)
		})
		if err != nil {
			return err
		}

		result = collectBatch(ids, recipients, results, errs)
		aggErr = s.aggregateCreated(ctx, req.EventID, results)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.PublishBatch(notify.BatchCompleted{
		EventID:       req.EventID,
		InvitationIDs: result.InvitationIDs,
		Failed:        len(result.Failures),
	})
	log.Info("Invitation batch finished",
		zap.Int("requested", len(recipients)),
		zap.Int("created", len(result.InvitationIDs)),
		zap.Int("failed", len(result.Failures)),
		zap.Duration("duration", time.Since(started)))

	if aggErr != nil {
		return result, fmt.Errorf("aggregate batch for %s: %w", req.EventID, aggErr)
	}
	return result, nil
}

// collectBatch re-associates outcomes with recipients by index.
func collectBatch(ids []string, recipients []models.Recipient, results []*PipelineResult, errs []error) *BatchResult {
	out := &BatchResult{InvitationIDs: make([]string, 0, len(ids))}
	for i := range ids {
		if results[i] != nil && errs[i] == nil {
			out.InvitationIDs = append(out.InvitationIDs, results[i].InvitationID)
			continue
		}
		msg := "invitation pipeline aborted"
		if errs[i] != nil {
			msg = errs[i].Error()
		}
		out.Failures = append(out.Failures, Failure{
			Index:        i,
			InvitationID: ids[i],
			Email:        recipients[i].Email,
			Error:        msg,
		})
	}
	return out
}

// aggregateCreated groups successes by bundle and merges them into the bundle
// records and the summary. A failing bundle does not stop the others.
func (s *CreationService) aggregateCreated(ctx context.Context, eventID string, results []*PipelineResult) error {
	type group struct {
		contacts []models.Contact
		ids      []string
	}
	groups := make(map[string]*group)
	deltas := models.BundleDeltas{}
	for _, res := range results {
		if res == nil {
			continue
		}
		g, ok := groups[res.Bundle]
		if !ok {
			g = &group{}
			groups[res.Bundle] = g
		}
		g.contacts = append(g.contacts, res.Contact)
		g.ids = append(g.ids, res.InvitationID)
		deltas.Inc(res.Bundle, res.Contact.InvitationType)
	}
	if len(groups) == 0 {
		return nil
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		g := groups[name]
		if err := s.aggregation.RecordBundleCreations(ctx, eventID, name, g.contacts, g.ids); err != nil {
			configslog.Log.Error("Bundle record could not be updated",
				zap.String("eventId", eventID), zap.String("bundle", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("bundle %s: %w", name, err))
		}
	}
	if err := s.aggregation.MergeCreated(ctx, eventID, deltas); err != nil {
		configslog.Log.Error("Bundles summary could not be updated", zap.String("eventId", eventID), zap.Error(err))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
