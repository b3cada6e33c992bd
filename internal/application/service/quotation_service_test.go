package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/sitequote/internal/application/dispatcher"
	"github.com/garyjia/sitequote/internal/application/policy"
	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/application/workflow"
	"github.com/garyjia/sitequote/internal/domain/apperror"
	"github.com/garyjia/sitequote/internal/domain/entity"
	"github.com/garyjia/sitequote/internal/domain/event"
	"github.com/garyjia/sitequote/internal/domain/pricing"
	domainwf "github.com/garyjia/sitequote/internal/domain/workflow"
	"github.com/garyjia/sitequote/internal/infrastructure/adapter"
	"github.com/garyjia/sitequote/internal/infrastructure/persistence/memory"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// mockAuditSink wraps the memory log so tests can inject failures
type mockAuditSink struct {
	*memory.AuditLog
	appendFunc func(ctx context.Context, entry *entity.AuditEntry) error
}

func (m *mockAuditSink) Append(ctx context.Context, entry *entity.AuditEntry) error {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, entry)
	}
	return m.AuditLog.Append(ctx, entry)
}

type recordingNotifier struct {
	mu         sync.Mutex
	sent       []entity.Notification
	notifyFunc func(ctx context.Context, n *entity.Notification) error
}

func (r *recordingNotifier) Notify(ctx context.Context, n *entity.Notification) error {
	r.mu.Lock()
	r.sent = append(r.sent, *n)
	r.mu.Unlock()
	if r.notifyFunc != nil {
		return r.notifyFunc(ctx, n)
	}
	return nil
}

func (r *recordingNotifier) Sent() []entity.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Notification(nil), r.sent...)
}

var (
	pmActor      = &entity.Actor{UserID: "pm-1", Role: entity.RoleProjectManager}
	otherPM      = &entity.Actor{UserID: "pm-2", Role: entity.RoleProjectManager}
	clientActor  = &entity.Actor{UserID: "client-a", Role: entity.RoleClient}
	otherClient  = &entity.Actor{UserID: "client-b", Role: entity.RoleClient}
	contractorID = "contractor-1"
)

type fixture struct {
	store      *memory.Store
	audit      *mockAuditSink
	notifier   *recordingNotifier
	dispatcher dispatcher.Dispatcher
	svc        QuotationService
	catalog    CatalogService
	clock      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore(),
		audit:    &mockAuditSink{AuditLog: memory.NewAuditLog()},
		notifier: &recordingNotifier{},
		clock:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	logger := zap.NewNop()
	f.dispatcher = dispatcher.NewDispatcher()
	f.dispatcher.SubscribeNamed(event.TypeAuditAppend, "audit",
		adapter.NewAuditAdapter(f.audit, logger).Handle)
	f.dispatcher.SubscribeNamed(event.TypeNotificationSend, "notify",
		adapter.NewNotificationAdapter(memory.NewNotificationRepository(), f.notifier, logger).Handle)

	engine := workflow.NewEngine(pricing.NewCalculator(decimal.RequireFromString("0.15")))
	guard := policy.NewGuard()
	now := func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	f.svc = NewQuotationService(f.store, f.store, f.audit, engine, guard, f.dispatcher, &mockLogger{}, WithClock(now))
	f.catalog = NewCatalogService(f.store, guard, &mockLogger{})

	_, err := f.catalog.CreateProject(context.Background(), pmActor, &entity.Project{
		ID:           "proj-1",
		Name:         "Roof repair",
		ClientID:     clientActor.UserID,
		ContractorID: contractorID,
	})
	require.NoError(t, err)
	return f
}

// flush waits for async notification handlers
func (f *fixture) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, f.dispatcher.Close())
}

func (f *fixture) createDraft(t *testing.T) *entity.Quotation {
	t.Helper()
	q, err := f.svc.Create(context.Background(), pmActor, "proj-1", workflow.CreateCommand{
		Title: "Roof",
		Items: []entity.LineItem{
			{Name: "Labour", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100)},
			{Name: "Materials", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50)},
		},
		ValidUntil: f.clock.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	return q
}

func (f *fixture) stored(t *testing.T, id string) (*entity.Quotation, string) {
	t.Helper()
	doc, err := f.store.Get(context.Background(), entity.CollectionQuotations, id)
	require.NoError(t, err)
	var q entity.Quotation
	require.NoError(t, json.Unmarshal(doc.Data, &q))
	return &q, string(doc.Data)
}

func (f *fixture) actions(t *testing.T, id string) []string {
	t.Helper()
	entries, err := f.audit.ListByEntity(context.Background(), entity.EntityTypeQuotation, id)
	require.NoError(t, err)
	actions := make([]string, len(entries))
	for i, e := range entries {
		assert.Equal(t, id, e.EntityID)
		actions[i] = e.Action
	}
	return actions
}

func TestQuotationService_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q := f.createDraft(t)
	assert.Equal(t, domainwf.StateDraft, q.Status)
	assert.Equal(t, int64(1), q.Version)
	assert.True(t, q.GrandTotal.Equal(decimal.RequireFromString("287.5")))

	q, err := f.svc.SubmitForApproval(ctx, pmActor, q.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatePendingPMApproval, q.Status)

	q, err = f.svc.PmApprove(ctx, pmActor, q.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateSentToClient, q.Status)
	assert.NotNil(t, q.ApprovedAt)
	assert.NotNil(t, q.SentAt)

	q, err = f.svc.SendToClient(ctx, pmActor, q.ID)
	require.NoError(t, err)
	assert.NotNil(t, q.ClientNotifiedAt)

	q, err = f.svc.ClientDecision(ctx, clientActor, q.ID, true, "go ahead")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateApproved, q.Status)

	inv, err := f.svc.ConvertToInvoice(ctx, pmActor, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceIDFor(q.ID), inv.ID)
	assert.True(t, inv.GrandTotal.Equal(q.GrandTotal))

	stored, _ := f.stored(t, q.ID)
	assert.Equal(t, domainwf.StateApproved, stored.Status)
	require.NotNil(t, stored.InvoiceID)
	assert.Equal(t, inv.ID, *stored.InvoiceID)

	got, err := f.catalog.GetInvoice(ctx, clientActor, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, got.QuotationID)

	assert.Equal(t, []string{
		workflow.ActionCreated,
		workflow.ActionSubmitted,
		workflow.ActionApproved,
		workflow.ActionSentToClient,
		workflow.ActionApproved,
		workflow.ActionConvertedToInvoice,
	}, f.actions(t, q.ID))

	f.flush(t)
	sent := f.notifier.Sent()
	require.Len(t, sent, 2)
	recipients := []string{sent[0].RecipientID, sent[1].RecipientID}
	assert.ElementsMatch(t, []string{clientActor.UserID, pmActor.UserID}, recipients)
}

func TestQuotationService_InvoiceIdempotence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.approved(t)

	first, err := f.svc.ConvertToInvoice(ctx, pmActor, q.ID)
	require.NoError(t, err)

	_, err = f.svc.ConvertToInvoice(ctx, pmActor, q.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrAlreadyConverted)
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, first.ID, appErr.Ref)

	assert.Equal(t, 1, f.store.Count(entity.CollectionInvoices))
}

func TestQuotationService_InvoiceExistsWithoutBackReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.approved(t)

	// an invoice left by an earlier partial write
	require.NoError(t, f.store.AddWithID(ctx, entity.CollectionInvoices, entity.InvoiceIDFor(q.ID), json.RawMessage(`{}`)))

	_, err := f.svc.ConvertToInvoice(ctx, pmActor, q.ID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyConverted)
	assert.Equal(t, 1, f.store.Count(entity.CollectionInvoices))

	stored, _ := f.stored(t, q.ID)
	assert.Nil(t, stored.InvoiceID)
}

func (f *fixture) approved(t *testing.T) *entity.Quotation {
	t.Helper()
	ctx := context.Background()
	q := f.createDraft(t)
	var err error
	q, err = f.svc.SubmitForApproval(ctx, pmActor, q.ID)
	require.NoError(t, err)
	q, err = f.svc.PmApprove(ctx, pmActor, q.ID)
	require.NoError(t, err)
	q, err = f.svc.ClientDecision(ctx, clientActor, q.ID, true, "")
	require.NoError(t, err)
	return q
}

func TestQuotationService_InvalidTransitionLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createDraft(t)
	_, before := f.stored(t, q.ID)

	for _, call := range []func() error{
		func() error { _, err := f.svc.PmApprove(ctx, pmActor, q.ID); return err },
		func() error { _, err := f.svc.PmReject(ctx, pmActor, q.ID, "no"); return err },
		func() error { _, err := f.svc.SendToClient(ctx, pmActor, q.ID); return err },
		func() error { _, err := f.svc.ClientDecision(ctx, clientActor, q.ID, true, ""); return err },
		func() error { _, err := f.svc.ConvertToInvoice(ctx, pmActor, q.ID); return err },
	} {
		err := call()
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
		assert.Contains(t, err.Error(), string(domainwf.StateDraft))
	}

	_, after := f.stored(t, q.ID)
	assert.Equal(t, before, after)
	assert.Equal(t, []string{workflow.ActionCreated}, f.actions(t, q.ID))
}

func TestQuotationService_PMRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createDraft(t)

	_, err := f.svc.SubmitForApproval(ctx, pmActor, q.ID)
	require.NoError(t, err)
	q, err = f.svc.PmReject(ctx, pmActor, q.ID, "missing scope")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatePMRejected, q.Status)

	_, err = f.svc.PmApprove(ctx, pmActor, q.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	title := "edited"
	_, err = f.svc.Update(ctx, pmActor, q.ID, workflow.UpdateCommand{Title: &title})
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestQuotationService_OwnershipRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createDraft(t)
	_, err := f.svc.SubmitForApproval(ctx, pmActor, q.ID)
	require.NoError(t, err)
	_, err = f.svc.PmApprove(ctx, pmActor, q.ID)
	require.NoError(t, err)
	_, before := f.stored(t, q.ID)

	_, err = f.svc.ClientDecision(ctx, otherClient, q.ID, true, "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.svc.SendToClient(ctx, otherPM, q.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	// role is checked before existence
	_, err = f.svc.PmApprove(ctx, clientActor, "does-not-exist")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, after := f.stored(t, q.ID)
	assert.Equal(t, before, after)
}

func TestQuotationService_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SubmitForApproval(context.Background(), pmActor, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.Create(context.Background(), pmActor, "no-project", workflow.CreateCommand{ValidUntil: f.clock.Add(time.Hour)})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestQuotationService_SendToClientTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createDraft(t)
	_, err := f.svc.SubmitForApproval(ctx, pmActor, q.ID)
	require.NoError(t, err)
	_, err = f.svc.PmApprove(ctx, pmActor, q.ID)
	require.NoError(t, err)

	first, err := f.svc.SendToClient(ctx, pmActor, q.ID)
	require.NoError(t, err)
	second, err := f.svc.SendToClient(ctx, pmActor, q.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)

	f.flush(t)
	assert.Len(t, f.notifier.Sent(), 1)
	assert.Equal(t, 1, countAction(f.actions(t, q.ID), workflow.ActionSentToClient))
}

func countAction(actions []string, action string) int {
	n := 0
	for _, a := range actions {
		if a == action {
			n++
		}
	}
	return n
}

func TestQuotationService_AuditFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createDraft(t)

	f.audit.appendFunc = func(ctx context.Context, entry *entity.AuditEntry) error {
		return errors.New("audit store unreachable")
	}

	q, err := f.svc.SubmitForApproval(ctx, pmActor, q.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatePendingPMApproval, q.Status)

	stored, _ := f.stored(t, q.ID)
	assert.Equal(t, domainwf.StatePendingPMApproval, stored.Status)
}

func TestQuotationService_NotifyFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.notifyFunc = func(ctx context.Context, n *entity.Notification) error {
		return errors.New("lark down")
	}

	q := f.createDraft(t)
	_, err := f.svc.SubmitForApproval(ctx, pmActor, q.ID)
	require.NoError(t, err)
	_, err = f.svc.PmApprove(ctx, pmActor, q.ID)
	require.NoError(t, err)
	q, err = f.svc.SendToClient(ctx, pmActor, q.ID)
	require.NoError(t, err)
	assert.NotNil(t, q.ClientNotifiedAt)

	f.flush(t)
	assert.Len(t, f.notifier.Sent(), 1)
}

// racingStore bumps the stored version between the read and the write
type racingStore struct {
	*memory.Store
	once sync.Once
}

func (r *racingStore) Update(ctx context.Context, collection, id string, expected int64, data json.RawMessage) (int64, error) {
	r.once.Do(func() {
		doc, _ := r.Store.Get(ctx, collection, id)
		_, _ = r.Store.Update(ctx, collection, id, doc.Version, doc.Data)
	})
	return r.Store.Update(ctx, collection, id, expected, data)
}

func TestQuotationService_Conflict(t *testing.T) {
	f := newFixture(t)
	q := f.createDraft(t)

	racing := &racingStore{Store: f.store}
	svc := NewQuotationService(racing, f.store, f.audit,
		workflow.NewEngine(pricing.NewCalculator(decimal.RequireFromString("0.15"))),
		policy.NewGuard(), f.dispatcher, &mockLogger{})

	_, err := svc.SubmitForApproval(context.Background(), pmActor, q.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	stored, _ := f.stored(t, q.ID)
	assert.Equal(t, domainwf.StateDraft, stored.Status)
}

// failingStore simulates the primary store being unreachable on write
type failingStore struct {
	*memory.Store
}

func (s *failingStore) Update(ctx context.Context, collection, id string, expected int64, data json.RawMessage) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestQuotationService_StoreFailureIsSurfaced(t *testing.T) {
	f := newFixture(t)
	q := f.createDraft(t)

	svc := NewQuotationService(&failingStore{Store: f.store}, f.store, f.audit,
		workflow.NewEngine(pricing.NewCalculator(decimal.RequireFromString("0.15"))),
		policy.NewGuard(), f.dispatcher, &mockLogger{})

	_, err := svc.SubmitForApproval(context.Background(), pmActor, q.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrDependency)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, []string{workflow.ActionCreated}, f.actions(t, q.ID))
}

func TestQuotationService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createDraft(t)

	q, err := f.svc.Update(ctx, pmActor, q.ID, workflow.UpdateCommand{
		Items: []entity.LineItem{{Name: "Gutter", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(25)}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), q.Version)
	assert.True(t, q.Subtotal.Equal(decimal.NewFromInt(100)))
	assert.True(t, q.GrandTotal.Equal(decimal.NewFromInt(115)))

	require.NoError(t, f.svc.Delete(ctx, pmActor, q.ID))
	_, err = f.svc.Get(ctx, pmActor, q.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// the audit trail survives deletion
	assert.Equal(t, []string{workflow.ActionCreated, workflow.ActionUpdated, workflow.ActionDeleted}, f.actions(t, q.ID))
}

func TestQuotationService_DeleteOnlyInDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createDraft(t)
	_, err := f.svc.SubmitForApproval(ctx, pmActor, q.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, pmActor, q.ID), apperror.ErrInvalidTransition)
}

func TestQuotationService_CreateFromEstimate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	est, err := f.catalog.CreateEstimate(ctx, pmActor, &entity.Estimate{
		ProjectID: "proj-1",
		Title:     "Initial estimate",
		Items: []entity.EstimateItem{
			{Description: "Labour", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100)},
			{Description: "Materials", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, contractorID, est.ContractorID)

	q, err := f.svc.CreateFromEstimate(ctx, pmActor, est.ID)
	require.NoError(t, err)
	assert.Equal(t, clientActor.UserID, q.ClientID)
	require.NotNil(t, q.EstimateID)
	assert.Equal(t, est.ID, *q.EstimateID)
	assert.True(t, q.GrandTotal.Equal(decimal.RequireFromString("287.5")))

	_, err = f.svc.CreateFromEstimate(ctx, otherPM, est.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.svc.CreateFromEstimate(ctx, pmActor, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestQuotationService_ReadAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createDraft(t)

	for _, actor := range []*entity.Actor{
		pmActor,
		clientActor,
		{UserID: contractorID, Role: entity.RoleContractor},
	} {
		got, err := f.svc.Get(ctx, actor, q.ID)
		require.NoError(t, err, actor.UserID)
		assert.Equal(t, q.ID, got.ID)
	}

	_, err := f.svc.Get(ctx, otherClient, q.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	history, err := f.svc.History(ctx, clientActor, q.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, workflow.ActionCreated, history[0].Action)
	assert.Equal(t, pmActor.UserID, history[0].ActorID)

	_, err = f.svc.History(ctx, otherPM, q.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

var _ port.DocumentStore = (*racingStore)(nil)

func TestQuotationService_EffectsCarryRequestID(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	correlations := map[event.Type][]string{}
	capture := func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		correlations[evt.Type] = append(correlations[evt.Type], evt.CorrelationID)
		return nil
	}
	f.dispatcher.SubscribeNamed(event.TypeAuditAppend, "capture-audit", capture)
	f.dispatcher.SubscribeNamed(event.TypeNotificationSend, "capture-notify", capture)

	q := f.createDraft(t)
	_, err := f.svc.SubmitForApproval(WithRequestID(context.Background(), "req-submit"), pmActor, q.ID)
	require.NoError(t, err)
	_, err = f.svc.PmApprove(context.Background(), pmActor, q.ID)
	require.NoError(t, err)
	_, err = f.svc.SendToClient(WithRequestID(context.Background(), "req-send"), pmActor, q.ID)
	require.NoError(t, err)
	f.flush(t)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "req-submit", "", "req-send"}, correlations[event.TypeAuditAppend])
	assert.Equal(t, []string{"req-send"}, correlations[event.TypeNotificationSend])
}
