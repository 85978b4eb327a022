package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/store/memory"
)

var errBackend = errors.New("backend down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClock is a settable clock shared by every service in an engine.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{t: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// engine wires the services over one memory store.
type engine struct {
	store    *memory.Store
	clock    *testClock
	usage    UsageCounter
	quota    QuotaGate
	accounts AccountService
	content  ContentService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	return newEngineWith(t, memory.New(), nil)
}

// newEngineWith builds an engine whose content store may be replaced.
func newEngineWith(t *testing.T, store *memory.Store, content domain.ContentStore) *engine {
	t.Helper()
	logger := discardLogger()
	clock := newTestClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC))
	if content == nil {
		content = store
	}

	e := &engine{store: store, clock: clock}
	e.usage = NewUsageCounter(store, logger)
	e.quota = NewQuotaGate(e.usage, store, logger, clock.Now)
	e.accounts = NewAccountService(store, e.usage, logger, clock.Now)
	e.content = NewContentService(e.accounts, e.quota, content, logger, clock.Now)
	return e
}

// register creates an account anchored on the first of the current month.
func (e *engine) register(t *testing.T, plan domain.PlanID) domain.Account {
	t.Helper()
	account := domain.Account{
		ID:           uuid.New(),
		PlanID:       plan,
		PeriodAnchor: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, e.store.CreateAccount(context.Background(), account))
	return account
}

func (e *engine) resolve(t *testing.T, id uuid.UUID) (domain.Account, domain.Plan) {
	t.Helper()
	account, plan, err := e.accounts.Resolve(context.Background(), id)
	require.NoError(t, err)
	return account, plan
}

func (e *engine) usageNow(t *testing.T, account domain.Account) domain.UsageRecord {
	t.Helper()
	rec, err := e.usage.GetUsage(context.Background(), account, e.clock.Now())
	require.NoError(t, err)
	return rec
}

func (e *engine) draft() domain.ContentDraft {
	return domain.ContentDraft{
		ListingID: uuid.New(),
		Title:     "Wine tasting",
		StartsAt:  e.clock.Now().Add(48 * time.Hour),
	}
}

// failingCounters fails every counter operation.
type failingCounters struct{}

func (failingCounters) ReadCounter(context.Context, uuid.UUID, domain.PeriodKey) (*domain.UsageRecord, error) {
	return nil, errBackend
}

func (failingCounters) AtomicIncrement(context.Context, uuid.UUID, domain.PeriodKey, domain.UsageField, float64) (domain.UsageRecord, error) {
	return domain.UsageRecord{}, errBackend
}

func (failingCounters) ListCounters(context.Context, uuid.UUID, []domain.PeriodKey) ([]domain.UsageRecord, error) {
	return nil, errBackend
}

// flakyContent wraps a memory store and fails or interferes with selected calls.
type flakyContent struct {
	*memory.Store
	failCreate bool

	// beforeUpdate runs inside UpdateModerationState before the write.
	beforeUpdate func(item domain.ContentItem)
}

func (f *flakyContent) CreateContent(ctx context.Context, item domain.ContentItem) error {
	if f.failCreate {
		return errBackend
	}
	return f.Store.CreateContent(ctx, item)
}

func (f *flakyContent) UpdateModerationState(ctx context.Context, item domain.ContentItem, from domain.ModerationState) error {
	if f.beforeUpdate != nil {
		f.beforeUpdate(item)
	}
	return f.Store.UpdateModerationState(ctx, item, from)
}
