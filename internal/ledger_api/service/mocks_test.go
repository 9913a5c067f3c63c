package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/school-fee-ledger/internal/config"
	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/domain/outbox"
	"github.com/school-fee-ledger/internal/domain/roster"
)

type MockEntryRepository struct {
	mock.Mock
}

func (m *MockEntryRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockEntryRepository) CreateBatch(ctx context.Context, entries []*ledger.Entry) error {
	return m.Called(ctx, entries).Error(0)
}

func (m *MockEntryRepository) GetByID(ctx context.Context, scope string, kind ledger.Kind, id uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, scope, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) List(ctx context.Context, filter ledger.ListFilter) ([]*ledger.Entry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) ExistingSubjects(ctx context.Context, scope string, kind ledger.Kind, key ledger.MonthKey, subjectIDs []string) (map[string]bool, error) {
	args := m.Called(ctx, scope, kind, key, subjectIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

func (m *MockEntryRepository) Update(ctx context.Context, entry *ledger.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockEntryRepository) Delete(ctx context.Context, scope string, kind ledger.Kind, id uuid.UUID) error {
	return m.Called(ctx, scope, kind, id).Error(0)
}

func (m *MockEntryRepository) WithTx(_ pgx.Tx) ledger.Repository {
	return m
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	return m.Called(ctx, message).Error(0)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) UpdateStatus(ctx context.Context, id int64, status outbox.Status) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) WithTx(_ pgx.Tx) outbox.Repository {
	return m
}

// MockTxRunner runs the transaction body directly unless a begin error is configured
type MockTxRunner struct {
	mock.Mock
}

func (m *MockTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if err := m.Called(ctx).Error(0); err != nil {
		return err
	}
	return fn(nil)
}

type MockRosterProvider struct {
	mock.Mock
}

func (m *MockRosterProvider) GetActiveStudents(ctx context.Context, scope, classID string) ([]roster.Student, error) {
	args := m.Called(ctx, scope, classID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]roster.Student), args.Error(1)
}

var (
	testCaller = ledger.Caller{Scope: "school-1", UserID: "admin-1"}
	testNow    = time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	testClock  = ledger.FixedClock{At: testNow}
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestPool() *BatchPool {
	pool, err := NewBatchPool(config.WorkerPoolConfig{Size: 4}, newTestLogger())
	if err != nil {
		panic(err)
	}
	return pool
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func ptr[T any](v T) *T {
	return &v
}
