package repositories

import (
	"context"
	"errors"
	"time"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IEventItemRepository is the key-value contract every storage backend satisfies.
// Items are addressed by (eventId, operation). Every successful write bumps Version.
type IEventItemRepository interface {
	Get(ctx context.Context, eventID, operation string) (*models.EventItem, error)
	Put(ctx context.Context, item *models.EventItem) error
	Query(ctx context.Context, eventID string) ([]models.EventItem, error)
	QueryPrefix(ctx context.Context, eventID, prefix string) ([]models.EventItem, error)
	BatchPut(ctx context.Context, items []models.EventItem) error
	BatchDelete(ctx context.Context, keys []models.ItemKey) error
	// CompareAndPut writes only if the stored version equals expectedVersion.
	// An expectedVersion of 0 means the item must not exist yet.
	CompareAndPut(ctx context.Context, item *models.EventItem, expectedVersion int64) error
}

type txKey struct{}

// WithTx makes repositories built on the same *gorm.DB run inside tx.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// EventItemRepository stores items in the event_items table through GORM.
type EventItemRepository struct {
	db *gorm.DB
}

// NewEventItemRepository builds a GORM-backed repository.
func NewEventItemRepository(db *gorm.DB) *EventItemRepository {
	return &EventItemRepository{db: db}
}

func (r *EventItemRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

var keyColumns = []clause.Column{{Name: "event_id"}, {Name: "operation"}}

func keyWhere(db *gorm.DB, eventID, operation string) *gorm.DB {
	return db.Where("event_id = ? AND operation = ?", eventID, operation)
}

// Get returns the item under (eventID, operation).
func (r *EventItemRepository) Get(ctx context.Context, eventID, operation string) (*models.EventItem, error) {
	var item models.EventItem
	err := keyWhere(r.getDB(ctx), eventID, operation).Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		configslog.Log.Error("EventItemRepository.Get: DB error",
			zap.String("eventId", eventID), zap.String("operation", operation), zap.Error(err))
		return nil, err
	}
	return &item, nil
}

// Put writes the item unconditionally and sets item.Version to the stored version.
func (r *EventItemRepository) Put(ctx context.Context, item *models.EventItem) error {
	return r.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		return putLocked(tx, item)
	})
}

func putLocked(tx *gorm.DB, item *models.EventItem) error {
	var current models.EventItem
	err := keyWhere(tx.Clauses(clause.Locking{Strength: "UPDATE"}), item.EventID, item.Operation).
		Select("version").Take(&current).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		item.Version = 1
		return tx.Clauses(clause.OnConflict{
			Columns:   keyColumns,
			DoUpdates: clause.AssignmentColumns([]string{"kind", "data", "version", "updated_at"}),
		}).Create(item).Error
	case err != nil:
		return err
	}

	item.Version = current.Version + 1
	return keyWhere(tx.Model(&models.EventItem{}), item.EventID, item.Operation).
		Updates(map[string]interface{}{
			"kind":       item.Kind,
			"data":       item.Data,
			"version":    item.Version,
			"updated_at": time.Now().UTC(),
		}).Error
}

// CompareAndPut writes the item only when the stored version matches.
func (r *EventItemRepository) CompareAndPut(ctx context.Context, item *models.EventItem, expectedVersion int64) error {
	db := r.getDB(ctx)
	if expectedVersion == 0 {
		item.Version = 1
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(item)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		return nil
	}

	res := db.Model(&models.EventItem{}).
		Where("event_id = ? AND operation = ? AND version = ?", item.EventID, item.Operation, expectedVersion).
		Updates(map[string]interface{}{
			"kind":       item.Kind,
			"data":       item.Data,
			"version":    expectedVersion + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		configslog.Log.Error("EventItemRepository.CompareAndPut: DB error",
			zap.String("eventId", item.EventID), zap.String("operation", item.Operation), zap.Error(res.Error))
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	item.Version = expectedVersion + 1
	return nil
}

// Query returns every item of the partition ordered by sort key.
func (r *EventItemRepository) Query(ctx context.Context, eventID string) ([]models.EventItem, error) {
	var items []models.EventItem
	err := r.getDB(ctx).Where("event_id = ?", eventID).Order("operation asc").Find(&items).Error
	if err != nil {
		configslog.Log.Error("EventItemRepository.Query: DB error", zap.String("eventId", eventID), zap.Error(err))
		return nil, err
	}
	return items, nil
}

// QueryPrefix returns the partition's items whose sort key starts with prefix.
func (r *EventItemRepository) QueryPrefix(ctx context.Context, eventID, prefix string) ([]models.EventItem, error) {
	var items []models.EventItem
	err := r.getDB(ctx).
		Where("event_id = ? AND operation LIKE ?", eventID, prefix+"%").
		Order("operation asc").
		Find(&items).Error
	if err != nil {
		configslog.Log.Error("EventItemRepository.QueryPrefix: DB error",
			zap.String("eventId", eventID), zap.String("prefix", prefix), zap.Error(err))
		return nil, err
	}
	return items, nil
}

// BatchPut writes all items in one transaction.
func (r *EventItemRepository) BatchPut(ctx context.Context, items []models.EventItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range items {
			if err := putLocked(tx, &items[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// BatchDelete removes all keys in one transaction. Missing keys are ignored.
func (r *EventItemRepository) BatchDelete(ctx context.Context, keys []models.ItemKey) error {
	if len(keys) == 0 {
		return nil
	}
	return r.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		for _, k := range keys {
			if err := keyWhere(tx, k.EventID, k.Operation).Delete(&models.EventItem{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

var _ IEventItemRepository = (*EventItemRepository)(nil)
