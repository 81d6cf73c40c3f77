package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/models"
	"invites.fest2.fun/pkg/mailer"
	"invites.fest2.fun/pkg/metrics"
	"invites.fest2.fun/pkg/objectstore"
	"invites.fest2.fun/pkg/workerpool"
	"invites.fest2.fun/repositories"

	"go.uber.org/zap"
)

// EmailSubject is the subject line of an invitation email.
func EmailSubject(eventName string) string {
	return "Your Invitation to " + eventName
}

// DispatchReport lists the invitations that were mailed and marked SENT.
type DispatchReport struct {
	Sent     []string  `json:"sent"`
	Failures []Failure `json:"failures,omitempty"`
}

// DispatchService emails rendered documents and records the SENT state.
type DispatchService struct {
	events    repositories.IEventRepository
	objects   *objectstore.Client
	mailer    mailer.Mailer
	lifecycle *LifecycleService
	pool      *workerpool.Pool
	metrics   *metrics.Metrics
}

// NewDispatchService builds the email flow. Sent invitations are marked through lifecycle.
func NewDispatchService(deps Dependencies, lifecycle *LifecycleService) *DispatchService {
	return &DispatchService{
		events:    deps.Events,
		objects:   deps.Objects,
		mailer:    deps.Mailer,
		lifecycle: lifecycle,
		pool:      deps.DispatchPool,
		metrics:   deps.Metrics,
	}
}

// Send mails every listed invitation on the dispatch pool and waits for all of them.
// An invitation is reported as sent only once both the mail and the SENT stamp succeeded.
func (d *DispatchService) Send(ctx context.Context, eventID string, invitationIDs []string) (*DispatchReport, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrValidation)
	}
	if len(invitationIDs) == 0 {
		return nil, fmt.Errorf("%w: no invitation ids", ErrValidation)
	}

	errs := make([]error, len(invitationIDs))
	err := d.pool.Run(ctx, len(invitationIDs), func(ctx context.Context, i int) {
		errs[i] = d.sendOne(ctx, eventID, invitationIDs[i])
		if errs[i] != nil {
			d.metrics.Emails.WithLabelValues("failure").Inc()
			configslog.Log.Warn("Invitation email failed",
				zap.String("eventId", eventID), zap.String("invitationId", invitationIDs[i]), zap.Error(errs[i]))
			return
		}
		d.metrics.Emails.WithLabelValues("success").Inc()
	})
	if err != nil {
		return nil, err
	}

	report := &DispatchReport{Sent: make([]string, 0, len(invitationIDs))}
	for i, id := range invitationIDs {
		if errs[i] != nil {
			report.Failures = append(report.Failures, Failure{Index: i, InvitationID: id, Error: errs[i].Error()})
			continue
		}
		report.Sent = append(report.Sent, id)
	}
	configslog.SLog.Infof("Dispatch for %s: sent=%d failed=%d", eventID, len(report.Sent), len(report.Failures))
	return report, nil
}

func (d *DispatchService) sendOne(ctx context.Context, eventID, invitationID string) error {
	inv, _, err := d.events.GetInvitation(ctx, eventID, invitationID)
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %s/%s", ErrInvitationNotFound, eventID, invitationID)
	}
	if err != nil {
		return err
	}
	if !inv.Status.IsCreated() {
		return fmt.Errorf("%w: %s", ErrNotCreated, invitationID)
	}
	if models.Plan(inv.Status.Current, models.StateSent) == models.TransitionRejected {
		return fmt.Errorf("%w: %s is %s and cannot be sent", ErrInvalidTransition, invitationID, inv.Status.Current)
	}
	if inv.Document == nil || inv.Document.URL == "" {
		return fmt.Errorf("%w: %s", ErrMissingArtifact, invitationID)
	}

	html, err := d.objects.Fetch(ctx, inv.Document.URL)
	if err != nil {
		return err
	}
	if err := d.mailer.Send(ctx, inv.Contact.Email, EmailSubject(inv.Event.Name), string(html)); err != nil {
		return err
	}

	if _, err := d.lifecycle.apply(ctx, eventID, invitationID, models.OpSent, DispatchActor, DispatchSource, "", nil); err != nil {
		return fmt.Errorf("mail sent but state not recorded: %w", err)
	}
	d.metrics.Transitions.WithLabelValues(string(models.OpSent), outcomeApplied).Inc()
	return nil
}
