package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/models"

	"go.uber.org/zap"
)

// IEventRepository reads and writes typed records of an event partition.
// Reads return the stored version so callers can write back conditionally.
type IEventRepository interface {
	GetCore(ctx context.Context, eventID string) (*models.EventCore, error)
	PutCore(ctx context.Context, eventID string, core *models.EventCore) error

	GetTemplate(ctx context.Context, templateID string) (*models.Template, error)
	PutTemplate(ctx context.Context, tpl *models.Template) error

	GetInvitation(ctx context.Context, eventID, invitationID string) (*models.Invitation, int64, error)
	PutInvitation(ctx context.Context, inv *models.Invitation) (int64, error)
	SaveInvitation(ctx context.Context, inv *models.Invitation, expectedVersion int64) (int64, error)
	ListInvitations(ctx context.Context, eventID string) ([]*models.Invitation, error)
	InvitationIDs(ctx context.Context, eventID string) ([]string, error)

	GetBundle(ctx context.Context, eventID, bundleName string) (*models.Bundle, int64, error)
	SaveBundle(ctx context.Context, eventID string, bundle *models.Bundle, expectedVersion int64) (int64, error)

	GetSummary(ctx context.Context, eventID string) (*models.BundlesSummary, int64, error)
	SaveSummary(ctx context.Context, eventID string, summary *models.BundlesSummary, expectedVersion int64) (int64, error)

	GetSync(ctx context.Context, eventID string) (*models.SyncRecord, error)
	GetZones(ctx context.Context, eventID string) (*models.ZonesValidation, int64, error)
	SaveZones(ctx context.Context, eventID string, zones *models.ZonesValidation, expectedVersion int64) (int64, error)
}

// EventRepository decodes EventItems into typed records and keeps the
// partition's sync record current after every write.
type EventRepository struct {
	items IEventItemRepository
	now   func() time.Time
}

// NewEventRepository wraps a key-value repository.
func NewEventRepository(items IEventItemRepository) *EventRepository {
	return &EventRepository{items: items, now: func() time.Time { return time.Now().UTC() }}
}

func getTyped[T models.Record](ctx context.Context, items IEventItemRepository, pk, sk string) (T, int64, error) {
	var zero T
	item, err := items.Get(ctx, pk, sk)
	if err != nil {
		return zero, 0, err
	}
	rec, err := models.Decode(*item)
	if err != nil {
		return zero, 0, err
	}
	typed, ok := rec.(T)
	if !ok {
		return zero, 0, fmt.Errorf("%w: %s/%s holds %s", ErrKindMismatch, pk, sk, rec.Kind())
	}
	return typed, item.Version, nil
}

func (r *EventRepository) write(ctx context.Context, pk, sk string, rec models.Record, expectedVersion *int64) (int64, error) {
	item, err := models.Encode(pk, sk, rec)
	if err != nil {
		return 0, err
	}
	if expectedVersion == nil {
		err = r.items.Put(ctx, &item)
	} else {
		err = r.items.CompareAndPut(ctx, &item, *expectedVersion)
	}
	if err != nil {
		return 0, err
	}
	r.touchSync(ctx, pk, sk)
	return item.Version, nil
}

// touchSync is best effort: a failure is logged and never fails the write.
func (r *EventRepository) touchSync(ctx context.Context, eventID, operation string) {
	sync, _, err := getTyped[*models.SyncRecord](ctx, r.items, eventID, models.OperationSync)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			configslog.Log.Warn("Sync record could not be read", zap.String("eventId", eventID), zap.Error(err))
		}
		sync = &models.SyncRecord{}
	}
	sync.Touch(operation, r.now())
	item, err := models.Encode(eventID, models.OperationSync, sync)
	if err == nil {
		err = r.items.Put(ctx, &item)
	}
	if err != nil {
		configslog.Log.Warn("Sync record could not be updated",
			zap.String("eventId", eventID), zap.String("operation", operation), zap.Error(err))
	}
}

func (r *EventRepository) GetCore(ctx context.Context, eventID string) (*models.EventCore, error) {
	core, _, err := getTyped[*models.EventCore](ctx, r.items, eventID, models.OperationCore)
	return core, err
}

func (r *EventRepository) PutCore(ctx context.Context, eventID string, core *models.EventCore) error {
	_, err := r.write(ctx, eventID, models.OperationCore, core, nil)
	return err
}

func (r *EventRepository) GetTemplate(ctx context.Context, templateID string) (*models.Template, error) {
	tpl, _, err := getTyped[*models.Template](ctx, r.items, templateID, models.OperationTemplate)
	return tpl, err
}

// PutTemplate stores a template. Templates live outside event partitions, so no sync touch.
func (r *EventRepository) PutTemplate(ctx context.Context, tpl *models.Template) error {
	item, err := models.Encode(tpl.TemplateID, models.OperationTemplate, tpl)
	if err != nil {
		return err
	}
	return r.items.Put(ctx, &item)
}

func (r *EventRepository) GetInvitation(ctx context.Context, eventID, invitationID string) (*models.Invitation, int64, error) {
	return getTyped[*models.Invitation](ctx, r.items, eventID, invitationID)
}

func (r *EventRepository) PutInvitation(ctx context.Context, inv *models.Invitation) (int64, error) {
	return r.write(ctx, inv.EventID, inv.InvitationID, inv, nil)
}

func (r *EventRepository) SaveInvitation(ctx context.Context, inv *models.Invitation, expectedVersion int64) (int64, error) {
	return r.write(ctx, inv.EventID, inv.InvitationID, inv, &expectedVersion)
}

// ListInvitations decodes every invitation of the event. Rows that fail to decode are skipped and logged.
func (r *EventRepository) ListInvitations(ctx context.Context, eventID string) ([]*models.Invitation, error) {
	items, err := r.items.QueryPrefix(ctx, eventID, models.InvitationIDPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Invitation, 0, len(items))
	for _, item := range items {
		rec, err := models.Decode(item)
		if err != nil {
			configslog.Log.Warn("Skipping undecodable invitation",
				zap.String("eventId", eventID), zap.String("operation", item.Operation), zap.Error(err))
			continue
		}
		if inv, ok := rec.(*models.Invitation); ok {
			out = append(out, inv)
		}
	}
	return out, nil
}

// InvitationIDs lists the sort keys of the event's invitations without decoding them.
func (r *EventRepository) InvitationIDs(ctx context.Context, eventID string) ([]string, error) {
	items, err := r.items.QueryPrefix(ctx, eventID, models.InvitationIDPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.Operation)
	}
	return ids, nil
}

func (r *EventRepository) GetBundle(ctx context.Context, eventID, bundleName string) (*models.Bundle, int64, error) {
	return getTyped[*models.Bundle](ctx, r.items, eventID, models.BundleOperation(bundleName))
}

func (r *EventRepository) SaveBundle(ctx context.Context, eventID string, bundle *models.Bundle, expectedVersion int64) (int64, error) {
	return r.write(ctx, eventID, models.BundleOperation(bundle.Name), bundle, &expectedVersion)
}

func (r *EventRepository) GetSummary(ctx context.Context, eventID string) (*models.BundlesSummary, int64, error) {
	return getTyped[*models.BundlesSummary](ctx, r.items, eventID, models.OperationBundles)
}

func (r *EventRepository) SaveSummary(ctx context.Context, eventID string, summary *models.BundlesSummary, expectedVersion int64) (int64, error) {
	return r.write(ctx, eventID, models.OperationBundles, summary, &expectedVersion)
}

func (r *EventRepository) GetSync(ctx context.Context, eventID string) (*models.SyncRecord, error) {
	sync, _, err := getTyped[*models.SyncRecord](ctx, r.items, eventID, models.OperationSync)
	return sync, err
}

func (r *EventRepository) GetZones(ctx context.Context, eventID string) (*models.ZonesValidation, int64, error) {
	return getTyped[*models.ZonesValidation](ctx, r.items, eventID, models.OperationZones)
}

// SaveZones writes the check-in record. expectedVersion 0 creates it.
func (r *EventRepository) SaveZones(ctx context.Context, eventID string, zones *models.ZonesValidation, expectedVersion int64) (int64, error) {
	return r.write(ctx, eventID, models.OperationZones, zones, &expectedVersion)
}

var _ IEventRepository = (*EventRepository)(nil)
