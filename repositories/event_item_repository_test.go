package repositories

import (
	"context"
	"errors"
	"testing"

	"invites.fest2.fun/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteRepository(t *testing.T) *EventItemRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&models.EventItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewEventItemRepository(db)
}

func backends(t *testing.T) map[string]IEventItemRepository {
	return map[string]IEventItemRepository{
		"memory": NewMemoryEventItemRepository(),
		"sqlite": newSQLiteRepository(t),
	}
}

func item(eventID, operation, data string) *models.EventItem {
	kind, _ := models.KindForOperation(operation)
	return &models.EventItem{EventID: eventID, Operation: operation, Kind: kind, Data: []byte(data)}
}

func TestEventItemRepositoryPutGet(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := repo.Get(ctx, "EVENT_1", "core"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
			}

			it := item("EVENT_1", "core", `{"coreStatus":{"status":"ACTIVE"}}`)
			if err := repo.Put(ctx, it); err != nil {
				t.Fatalf("Put error = %v", err)
			}
			if it.Version != 1 {
				t.Fatalf("version after first put = %d, want 1", it.Version)
			}
			if err := repo.Put(ctx, item("EVENT_1", "core", `{"coreStatus":{"status":"ARCHIVED"}}`)); err != nil {
				t.Fatalf("second Put error = %v", err)
			}

			got, err := repo.Get(ctx, "EVENT_1", "core")
			if err != nil {
				t.Fatalf("Get error = %v", err)
			}
			if got.Version != 2 {
				t.Fatalf("version = %d, want 2", got.Version)
			}
			if string(got.Data) != `{"coreStatus":{"status":"ARCHIVED"}}` {
				t.Fatalf("data = %s", got.Data)
			}
		})
	}
}

func TestEventItemRepositoryCompareAndPut(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := item("EVENT_1", "bundles", `{}`)
			if err := repo.CompareAndPut(ctx, first, 0); err != nil {
				t.Fatalf("create CompareAndPut error = %v", err)
			}
			if err := repo.CompareAndPut(ctx, item("EVENT_1", "bundles", `{}`), 0); !errors.Is(err, ErrVersionConflict) {
				t.Fatalf("second create error = %v, want ErrVersionConflict", err)
			}

			update := item("EVENT_1", "bundles", `{"bundles":{}}`)
			if err := repo.CompareAndPut(ctx, update, 1); err != nil {
				t.Fatalf("update error = %v", err)
			}
			if update.Version != 2 {
				t.Fatalf("version = %d, want 2", update.Version)
			}
			if err := repo.CompareAndPut(ctx, item("EVENT_1", "bundles", `{}`), 1); !errors.Is(err, ErrVersionConflict) {
				t.Fatalf("stale update error = %v, want ErrVersionConflict", err)
			}
			if err := repo.CompareAndPut(ctx, item("EVENT_1", "bundle#B1", `{}`), 3); !errors.Is(err, ErrVersionConflict) {
				t.Fatalf("update of missing item error = %v, want ErrVersionConflict", err)
			}
		})
	}
}

func TestEventItemRepositoryQueryAndBatch(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			batch := []models.EventItem{
				*item("EVENT_1", "invitation#INV0002", `{}`),
				*item("EVENT_1", "invitation#INV0001", `{}`),
				*item("EVENT_1", "bundle#B1", `{}`),
				*item("EVENT_2", "invitation#INV0001", `{}`),
			}
			if err := repo.BatchPut(ctx, batch); err != nil {
				t.Fatalf("BatchPut error = %v", err)
			}

			all, err := repo.Query(ctx, "EVENT_1")
			if err != nil {
				t.Fatalf("Query error = %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("Query returned %d items, want 3", len(all))
			}

			invs, err := repo.QueryPrefix(ctx, "EVENT_1", models.InvitationIDPrefix)
			if err != nil {
				t.Fatalf("QueryPrefix error = %v", err)
			}
			if len(invs) != 2 || invs[0].Operation != "invitation#INV0001" {
				t.Fatalf("QueryPrefix = %+v", invs)
			}

			err = repo.BatchDelete(ctx, []models.ItemKey{
				{EventID: "EVENT_1", Operation: "invitation#INV0001"},
				{EventID: "EVENT_1", Operation: "invitation#INV9999"},
			})
			if err != nil {
				t.Fatalf("BatchDelete error = %v", err)
			}
			if _, err := repo.Get(ctx, "EVENT_1", "invitation#INV0001"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get(deleted) error = %v, want ErrNotFound", err)
			}
			if _, err := repo.Get(ctx, "EVENT_2", "invitation#INV0001"); err != nil {
				t.Fatalf("other partition touched: %v", err)
			}
		})
	}
}
