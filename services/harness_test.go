package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"invites.fest2.fun/models"
	"invites.fest2.fun/pkg/objectstore"
	"invites.fest2.fun/pkg/workerpool"
	"invites.fest2.fun/repositories"
)

const testEvent = "EVENT_1"

type stubEncoder struct{}

func (stubEncoder) Encode(payload string) ([]byte, error) { return []byte("qr:" + payload), nil }
func (stubEncoder) ContentType() string                  { return "image/png" }

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail map[string]error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[to]; err != nil {
		return err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *recordingMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// htmlFailingStore rejects every document upload.
type htmlFailingStore struct {
	*objectstore.MemoryStore
	mu       sync.Mutex
	attempts int
}

func (s *htmlFailingStore) Put(ctx context.Context, data []byte, key, contentType string) error {
	if strings.HasSuffix(key, ".html") {
		s.mu.Lock()
		s.attempts++
		s.mu.Unlock()
		return errors.New("bucket unavailable")
	}
	return s.MemoryStore.Put(ctx, data, key, contentType)
}

// flakySummaryRepository fails bundles summary writes while failSummary is set.
type flakySummaryRepository struct {
	*repositories.EventRepository
	failSummary atomic.Bool
}

func (r *flakySummaryRepository) SaveSummary(ctx context.Context, eventID string, summary *models.BundlesSummary, expectedVersion int64) (int64, error) {
	if r.failSummary.Load() {
		return 0, errors.New("summary table unavailable")
	}
	return r.EventRepository.SaveSummary(ctx, eventID, summary, expectedVersion)
}

type harness struct {
	svc     *InvitationService
	items   *repositories.MemoryEventItemRepository
	events  *repositories.EventRepository
	objects *objectstore.Client
	mailer  *recordingMailer
}

func newHarnessWithStore(t *testing.T, store objectstore.Store) *harness {
	return buildHarness(t, store, nil)
}

// buildHarness seeds an event and a template. wrap, when set, decorates the
// repository the service sees; the harness keeps the undecorated one.
func buildHarness(t *testing.T, store objectstore.Store, wrap func(*repositories.EventRepository) repositories.IEventRepository) *harness {
	t.Helper()
	ctx := context.Background()
	items := repositories.NewMemoryEventItemRepository()
	events := repositories.NewEventRepository(items)
	objects := objectstore.NewClient(store, objectstore.Options{BaseDelay: time.Millisecond})

	core := &models.EventCore{CoreData: models.CoreData{
		GeneralData: models.GeneralData{EventName: "Fest", Description: "Summer party"},
		VenueData:   models.VenueData{VenueName: "Arena", City: "Madrid", Country: "ES"},
	}}
	if err := events.PutCore(ctx, testEvent, core); err != nil {
		t.Fatalf("PutCore error = %v", err)
	}
	tpl := &models.Template{
		TemplateID: models.DefaultTemplateID,
		Name:       "White",
		Content:    `<p>Hello {{.contactName}}, welcome to {{.eventName}} at {{.eventLocation}}</p><img src="{{.qrCodeImage}}">`,
	}
	if err := events.PutTemplate(ctx, tpl); err != nil {
		t.Fatalf("PutTemplate error = %v", err)
	}

	var seen repositories.IEventRepository = events
	if wrap != nil {
		seen = wrap(events)
	}
	m := &recordingMailer{}
	svc, err := NewInvitationService(Dependencies{
		Events:       seen,
		Objects:      objects,
		Encoder:      stubEncoder{},
		Mailer:       m,
		CreationPool: workerpool.New("creation", 4),
		DispatchPool: workerpool.New("dispatch", 2),
		KeyPrefix:    "fest2fun",
	})
	if err != nil {
		t.Fatalf("NewInvitationService error = %v", err)
	}
	return &harness{svc: svc, items: items, events: events, objects: objects, mailer: m}
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithStore(t, objectstore.NewMemoryStore("test-bucket"))
}

func (h *harness) create(t *testing.T, recipients ...models.Recipient) *BatchResult {
	t.Helper()
	res, err := h.svc.CreateBatch(context.Background(), BatchRequest{EventID: testEvent, Recipients: recipients})
	if err != nil {
		t.Fatalf("CreateBatch error = %v", err)
	}
	return res
}

func (h *harness) transition(t *testing.T, op string, ids ...string) *TransitionReport {
	t.Helper()
	report, err := h.svc.Transition(context.Background(), TransitionRequest{EventID: testEvent, InvitationIDs: ids, Operation: op})
	if err != nil {
		t.Fatalf("Transition(%s) error = %v", op, err)
	}
	return report
}

func (h *harness) summary(t *testing.T) *models.BundlesSummary {
	t.Helper()
	s, err := h.svc.GetSummary(context.Background(), testEvent)
	if err != nil {
		t.Fatalf("GetSummary error = %v", err)
	}
	return s
}

func vip(name, bundle string) models.Recipient {
	return models.Recipient{Name: name, Email: strings.ToLower(name) + "@example.com", InvitationType: "VIP", Bundle: bundle}
}

func general(name, bundle string) models.Recipient {
	return models.Recipient{Name: name, Email: strings.ToLower(name) + "@example.com", Bundle: bundle}
}
