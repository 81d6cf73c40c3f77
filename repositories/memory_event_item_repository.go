package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"invites.fest2.fun/models"
)

// MemoryEventItemRepository keeps items in process memory. It backs the
// "memory" store driver and the service tests.
type MemoryEventItemRepository struct {
	mu    sync.RWMutex
	items map[models.ItemKey]models.EventItem
}

// NewMemoryEventItemRepository returns an empty in-memory repository.
func NewMemoryEventItemRepository() *MemoryEventItemRepository {
	return &MemoryEventItemRepository{items: make(map[models.ItemKey]models.EventItem)}
}

func cloneItem(item models.EventItem) models.EventItem {
	out := item
	out.Data = append([]byte(nil), item.Data...)
	return out
}

func (r *MemoryEventItemRepository) Get(ctx context.Context, eventID, operation string) (*models.EventItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[models.ItemKey{EventID: eventID, Operation: operation}]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneItem(item)
	return &out, nil
}

func (r *MemoryEventItemRepository) Put(ctx context.Context, item *models.EventItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(item)
	return nil
}

func (r *MemoryEventItemRepository) putLocked(item *models.EventItem) {
	key := item.Key()
	now := time.Now().UTC()
	stored := cloneItem(*item)
	if prev, ok := r.items[key]; ok {
		stored.Version = prev.Version + 1
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.Version = 1
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.items[key] = stored
	item.Version, item.CreatedAt, item.UpdatedAt = stored.Version, stored.CreatedAt, stored.UpdatedAt
}

func (r *MemoryEventItemRepository) CompareAndPut(ctx context.Context, item *models.EventItem, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.items[item.Key()]
	switch {
	case !ok && expectedVersion != 0, ok && prev.Version != expectedVersion:
		return ErrVersionConflict
	}
	r.putLocked(item)
	return nil
}

func (r *MemoryEventItemRepository) Query(ctx context.Context, eventID string) ([]models.EventItem, error) {
	return r.QueryPrefix(ctx, eventID, "")
}

func (r *MemoryEventItemRepository) QueryPrefix(ctx context.Context, eventID, prefix string) ([]models.EventItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.EventItem
	for key, item := range r.items {
		if key.EventID == eventID && strings.HasPrefix(key.Operation, prefix) {
			out = append(out, cloneItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out, nil
}

func (r *MemoryEventItemRepository) BatchPut(ctx context.Context, items []models.EventItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range items {
		r.putLocked(&items[i])
	}
	return nil
}

func (r *MemoryEventItemRepository) BatchDelete(ctx context.Context, keys []models.ItemKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.items, k)
	}
	return nil
}

var _ IEventItemRepository = (*MemoryEventItemRepository)(nil)
