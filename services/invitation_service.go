package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/models"
	"invites.fest2.fun/pkg/keylock"
	"invites.fest2.fun/pkg/mailer"
	"invites.fest2.fun/pkg/metrics"
	"invites.fest2.fun/pkg/notify"
	"invites.fest2.fun/pkg/objectstore"
	"invites.fest2.fun/pkg/qr"
	"invites.fest2.fun/pkg/renderer"
	"invites.fest2.fun/pkg/workerpool"
	"invites.fest2.fun/repositories"
)

const (
	DefaultCreationPoolSize = 30
	DefaultDispatchPoolSize = 10
)

// Dependencies are the collaborators shared by the invitation services.
// Events and Objects are required; everything else has a working default.
type Dependencies struct {
	Events       repositories.IEventRepository
	Objects      *objectstore.Client
	Encoder      qr.Encoder
	Renderer     renderer.Renderer
	Mailer       mailer.Mailer
	Bus          *notify.Bus
	Metrics      *metrics.Metrics
	Locks        *keylock.Locker
	CreationPool *workerpool.Pool
	DispatchPool *workerpool.Pool

	KeyPrefix      string
	DefaultLogoURL string
	Clock          func() time.Time
}

func (d Dependencies) clock() func() time.Time {
	if d.Clock != nil {
		return d.Clock
	}
	return func() time.Time { return time.Now().UTC() }
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Encoder == nil {
		d.Encoder = qr.NewPNGEncoder(0)
	}
	if d.Renderer == nil {
		d.Renderer = renderer.NewHTMLRenderer()
	}
	if d.Mailer == nil {
		d.Mailer = mailer.LogMailer{}
	}
	if d.Bus == nil {
		d.Bus = notify.NewBus()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Locks == nil {
		d.Locks = keylock.New()
	}
	if d.CreationPool == nil {
		d.CreationPool = workerpool.New("creation", DefaultCreationPoolSize)
	}
	if d.DispatchPool == nil {
		d.DispatchPool = workerpool.New("dispatch", DefaultDispatchPoolSize)
	}
	return d
}

// IInvitationService is everything the HTTP handlers need from the invitation services.
type IInvitationService interface {
	CreateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error)
	Transition(ctx context.Context, req TransitionRequest) (*TransitionReport, error)
	Send(ctx context.Context, eventID string, invitationIDs []string) (*DispatchReport, error)
	ValidateCode(ctx context.Context, eventID, token string) (*CodeValidation, error)
	GetInvitation(ctx context.Context, eventID, invitationID string) (*models.Invitation, error)
	GetSummary(ctx context.Context, eventID string) (*models.BundlesSummary, error)
	GetBundle(ctx context.Context, eventID, bundleName string) (*models.Bundle, error)
	AssignWristband(ctx context.Context, eventID, token, wristbandID string) (*CheckIn, error)
	CheckZoneAccess(ctx context.Context, eventID, wristbandID string, zoneID int) (*ZoneAccessResult, error)
	ZoneOccupancy(ctx context.Context, eventID string) (*ZoneOccupancy, error)
	ConfigureZones(ctx context.Context, eventID string, zones []models.Zone) (*models.ZonesValidation, error)
	Subscribe(eventID string, buffer int) *notify.Subscription
	Shutdown(ctx context.Context) error
}

// InvitationService is the facade used by the HTTP handlers.
type InvitationService struct {
	deps       Dependencies
	creation   *CreationService
	lifecycle  *LifecycleService
	dispatch   *DispatchService
	validation *ValidationService
	checkIn    *CheckInService
}

// NewInvitationService wires the services over deps, filling optional collaborators with defaults.
func NewInvitationService(deps Dependencies) (*InvitationService, error) {
	if deps.Events == nil || deps.Objects == nil {
		return nil, errors.New("invitation service: events repository and object client are required")
	}
	deps = deps.withDefaults()
	pipeline := NewArtifactPipeline(deps)
	aggregation := NewAggregationEngine(deps.Events, deps.Metrics)
	lifecycle := NewLifecycleService(deps, pipeline, aggregation)
	validation := NewValidationService(deps.Events)
	return &InvitationService{
		deps:       deps,
		creation:   NewCreationService(deps, pipeline, aggregation),
		lifecycle:  lifecycle,
		dispatch:   NewDispatchService(deps, lifecycle),
		validation: validation,
		checkIn:    NewCheckInService(deps, validation),
	}, nil
}

func (s *InvitationService) CreateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	return s.creation.CreateBatch(ctx, req)
}

func (s *InvitationService) Transition(ctx context.Context, req TransitionRequest) (*TransitionReport, error) {
	return s.lifecycle.Transition(ctx, req)
}

func (s *InvitationService) Send(ctx context.Context, eventID string, invitationIDs []string) (*DispatchReport, error) {
	return s.dispatch.Send(ctx, eventID, invitationIDs)
}

func (s *InvitationService) ValidateCode(ctx context.Context, eventID, token string) (*CodeValidation, error) {
	return s.validation.ValidateCode(ctx, eventID, token)
}

func (s *InvitationService) GetInvitation(ctx context.Context, eventID, invitationID string) (*models.Invitation, error) {
	inv, _, err := s.deps.Events.GetInvitation(ctx, eventID, invitationID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrInvitationNotFound, eventID, invitationID)
	}
	return inv, err
}

func (s *InvitationService) GetSummary(ctx context.Context, eventID string) (*models.BundlesSummary, error) {
	summary, _, err := s.deps.Events.GetSummary(ctx, eventID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBundleSummaryNotFound, eventID)
	}
	return summary, err
}

func (s *InvitationService) GetBundle(ctx context.Context, eventID, bundleName string) (*models.Bundle, error) {
	bundle, _, err := s.deps.Events.GetBundle(ctx, eventID, bundleName)
	return bundle, err
}

func (s *InvitationService) AssignWristband(ctx context.Context, eventID, token, wristbandID string) (*CheckIn, error) {
	return s.checkIn.AssignWristband(ctx, eventID, token, wristbandID)
}

func (s *InvitationService) CheckZoneAccess(ctx context.Context, eventID, wristbandID string, zoneID int) (*ZoneAccessResult, error) {
	return s.checkIn.CheckZoneAccess(ctx, eventID, wristbandID, zoneID)
}

func (s *InvitationService) ZoneOccupancy(ctx context.Context, eventID string) (*ZoneOccupancy, error) {
	return s.checkIn.ZoneOccupancy(ctx, eventID)
}

func (s *InvitationService) ConfigureZones(ctx context.Context, eventID string, zones []models.Zone) (*models.ZonesValidation, error) {
	return s.checkIn.ConfigureZones(ctx, eventID, zones)
}

// Subscribe registers for item and batch events of one event. Callers must Close the subscription.
func (s *InvitationService) Subscribe(eventID string, buffer int) *notify.Subscription {
	return s.deps.Bus.Subscribe(eventID, buffer)
}

// Shutdown stops both pools and waits for running work.
func (s *InvitationService) Shutdown(ctx context.Context) error {
	configslog.SLog.Info("Waiting for invitation workers to finish...")
	return errors.Join(
		s.deps.CreationPool.Shutdown(ctx),
		s.deps.DispatchPool.Shutdown(ctx),
	)
}

// Metrics exposes the registry used by the service.
func (s *InvitationService) Metrics() *metrics.Metrics {
	return s.deps.Metrics
}

var _ IInvitationService = (*InvitationService)(nil)
