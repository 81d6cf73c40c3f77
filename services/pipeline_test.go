package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"invites.fest2.fun/models"
	"invites.fest2.fun/pkg/objectstore"
	"invites.fest2.fun/repositories"
)

func TestObjectKeys(t *testing.T) {
	if got := QRKey("fest2fun", testEvent, "invitation#INV0001"); got != "fest2fun/EVENT_1/qrImages/INV0001.png" {
		t.Fatalf("QRKey = %q", got)
	}
	if got := DocumentKey("", testEvent, "invitation#INV0012"); got != "EVENT_1/emailHTML/INV0012.html" {
		t.Fatalf("DocumentKey = %q", got)
	}
}

func TestRenderVariables(t *testing.T) {
	inv := &models.Invitation{
		Code:    "EVENT#1#INV0001",
		Contact: models.Contact{Name: "Ada", Email: "ada@example.com", InvitationType: "VIP"},
		Event: models.EventSnapshot{
			Name:       "Fest",
			Venue:      "Arena",
			EventDates: map[string]string{"day2": "2025-06-02", "day1": "2025-06-01"},
		},
		Template: models.TemplateRef{CustomFields: map[string]string{"eventName": "Fest Night", "dressCode": "white"}},
	}
	vars := RenderVariables(inv, "https://qr", "https://logo")

	want := map[string]string{
		"contactName":   "Ada",
		"eventName":     "Fest Night",
		"eventDates":    "2025-06-01, 2025-06-02",
		"eventLocation": "Arena",
		"logoUrl":       "https://logo",
		"qrCodeImage":   "https://qr",
		"dressCode":     "white",
	}
	for k, v := range want {
		if vars[k] != v {
			t.Fatalf("vars[%q] = %q, want %q", k, vars[k], v)
		}
	}
}

func TestUploadFailureAbortsOnlyThatUnit(t *testing.T) {
	store := &htmlFailingStore{MemoryStore: objectstore.NewMemoryStore("test-bucket")}
	h := newHarnessWithStore(t, store)

	res, err := h.svc.CreateBatch(context.Background(), BatchRequest{EventID: testEvent, Recipients: []models.Recipient{vip("Ada", "B1")}})
	if err != nil {
		t.Fatalf("CreateBatch error = %v", err)
	}
	if len(res.InvitationIDs) != 0 || len(res.Failures) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Failures[0].Error, objectstore.ErrUploadFailed.Error()) {
		t.Fatalf("failure = %q", res.Failures[0].Error)
	}
	if store.attempts != objectstore.DefaultMaxAttempts {
		t.Fatalf("document upload attempts = %d, want %d", store.attempts, objectstore.DefaultMaxAttempts)
	}
	if _, err := h.svc.GetSummary(context.Background(), testEvent); !errors.Is(err, ErrBundleSummaryNotFound) {
		t.Fatalf("summary error = %v, want not found", err)
	}
}

// vanishingRepository drops invitation writes so verification fails.
type vanishingRepository struct {
	repositories.IEventRepository
}

func (vanishingRepository) PutInvitation(context.Context, *models.Invitation) (int64, error) {
	return 1, nil
}

func TestPipelineVerifiesWrites(t *testing.T) {
	h := newHarness(t)
	p := NewArtifactPipeline(Dependencies{
		Events:  vanishingRepository{h.events},
		Objects: h.objects,
		Encoder: stubEncoder{},
	}.withDefaults())

	_, err := p.Process(context.Background(), PipelineInput{
		EventID:      testEvent,
		InvitationID: "invitation#INV0001",
		Recipient:    vip("Ada", "B1"),
	})
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("Process error = %v, want ErrVerification", err)
	}
}

func TestAggregationSurvivesConcurrentMerges(t *testing.T) {
	h := newHarness(t)
	engine := NewAggregationEngine(h.events, h.svc.Metrics())
	engine.attempts = 100

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := engine.MergeCreated(context.Background(), testEvent, models.BundleDeltas{"B1": {"VIP": 1}}); err != nil {
				t.Errorf("MergeCreated error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := h.summary(t).Entry("B1").CreatedTotalQty; got != 10 {
		t.Fatalf("created total = %d, want 10", got)
	}
}

func TestMergeTransitionsNeedsSummary(t *testing.T) {
	h := newHarness(t)
	engine := NewAggregationEngine(h.events, h.svc.Metrics())
	err := engine.MergeTransitions(context.Background(), testEvent, models.BundleDeltas{"B1": {"VIP": 1}}, nil)
	if !errors.Is(err, ErrBundleSummaryNotFound) {
		t.Fatalf("MergeTransitions error = %v, want ErrBundleSummaryNotFound", err)
	}
}
