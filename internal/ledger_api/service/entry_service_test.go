package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/domain/outbox"
)

type entryFixture struct {
	db      *MockTxRunner
	entries *MockEntryRepository
	events  *MockOutboxRepository
	service EntryService
}

func newEntryFixture(maxBulk int) *entryFixture {
	f := &entryFixture{
		db:      new(MockTxRunner),
		entries: new(MockEntryRepository),
		events:  new(MockOutboxRepository),
	}
	f.service = NewEntryService(newTestLogger(), EntryServiceDeps{
		DB:             f.db,
		EntryRepo:      f.entries,
		OutboxRepo:     f.events,
		Pool:           newTestPool(),
		Clock:          testClock,
		RequestTimeout: time.Second,
		MaxBulkIDs:     maxBulk,
	})
	return f
}

func storedEntry(status ledger.StoredStatus) *ledger.Entry {
	e := &ledger.Entry{
		ID:             uuid.New(),
		Kind:           ledger.KindFee,
		Scope:          "school-1",
		Subject:        ledger.Subject{ID: "stu-1", Name: "Ayesha", RollNumber: "R-1"},
		Amount:         decimal.RequireFromString("3000.00"),
		OriginalAmount: decimal.RequireFromString("3000.00"),
		Month:          "March 2026",
		DueDate:        datePtr(2026, 3, 10),
		StoredStatus:   status,
	}
	if status == ledger.StoredPaid {
		e.PaymentDate = datePtr(2026, 3, 5)
	}
	return e
}

func eventOfType(eventType outbox.EventType) interface{} {
	return mock.MatchedBy(func(m *outbox.Message) bool {
		return m.EventType == eventType && m.Scope == "school-1" && m.Status == outbox.StatusPending
	})
}

func TestEntryService_CreateEntry(t *testing.T) {
	ctx := context.Background()
	input := CreateEntryInput{
		Subject: ledger.Subject{ID: "stu-1", Name: "Ayesha", ClassID: "class-7", RollNumber: "R-1"},
		Amount:  decimal.RequireFromString("2500.505"),
		Month:   "March 2026",
		DueDate: datePtr(2026, 3, 10),
	}

	t.Run("Success", func(t *testing.T) {
		f := newEntryFixture(10)
		f.db.On("ExecuteTx", mock.Anything).Return(nil).Once()
		f.entries.On("Create", mock.Anything, mock.AnythingOfType("*ledger.Entry")).Return(nil).Once()
		f.events.On("Create", mock.Anything, eventOfType(outbox.EventEntryCreated)).Return(nil).Once()

		entry, err := f.service.CreateEntry(ctx, testCaller, ledger.KindFee, input)
		require.NoError(t, err)
		assert.Equal(t, ledger.StoredUnpaid, entry.StoredStatus)
		assert.Nil(t, entry.PaymentDate)
		assert.Equal(t, "school-1", entry.Scope)
		assert.Equal(t, "2500.51", entry.Amount.StringFixed(2))
		assert.True(t, entry.OriginalAmount.Equal(entry.Amount))
		assert.Equal(t, testNow, entry.CreatedAt)

		f.entries.AssertExpectations(t)
		f.events.AssertExpectations(t)
	})

	t.Run("ValidationFailsBeforeAnyWrite", func(t *testing.T) {
		f := newEntryFixture(10)

		bad := input
		bad.Subject = ledger.Subject{}
		_, err := f.service.CreateEntry(ctx, testCaller, ledger.KindFee, bad)
		assert.ErrorIs(t, err, ledger.ValidationError{Field: "subject.id"})

		_, err = f.service.CreateEntry(ctx, ledger.Caller{}, ledger.KindFee, input)
		assert.ErrorIs(t, err, ledger.ValidationError{Field: "scope"})

		f.db.AssertNotCalled(t, "ExecuteTx", mock.Anything)
	})

	t.Run("RepositoryFailure", func(t *testing.T) {
		f := newEntryFixture(10)
		dbErr := ledger.TransientIOError{Op: "create ledger entry", Err: errors.New("connection reset")}
		f.db.On("ExecuteTx", mock.Anything).Return(nil).Once()
		f.entries.On("Create", mock.Anything, mock.Anything).Return(dbErr).Once()

		_, err := f.service.CreateEntry(ctx, testCaller, ledger.KindFee, input)
		assert.ErrorIs(t, err, ledger.TransientIOError{})
		f.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.entries.AssertNumberOfCalls(t, "Create", 1)
	})
}

func TestEntryService_GetEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("RetriesOnceOnTransientFailure", func(t *testing.T) {
		f := newEntryFixture(10)
		entry := storedEntry(ledger.StoredUnpaid)
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, entry.ID).
			Return(nil, ledger.TransientIOError{Op: "get", Err: context.DeadlineExceeded}).Once()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, entry.ID).Return(entry, nil).Once()

		got, err := f.service.GetEntry(ctx, testCaller, ledger.KindFee, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entry, got)
		f.entries.AssertNumberOfCalls(t, "GetByID", 2)
	})

	t.Run("NotFoundIsNotRetried", func(t *testing.T) {
		f := newEntryFixture(10)
		id := uuid.New()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, id).
			Return(nil, ledger.NotFoundError{Resource: "entry", ID: id.String()}).Once()

		_, err := f.service.GetEntry(ctx, testCaller, ledger.KindFee, id)
		assert.ErrorIs(t, err, ledger.NotFoundError{Resource: "entry"})
		f.entries.AssertNumberOfCalls(t, "GetByID", 1)
	})
}

func TestEntryService_ListEntries(t *testing.T) {
	f := newEntryFixture(10)
	overdue := storedEntry(ledger.StoredUnpaid)
	paid := storedEntry(ledger.StoredPaid)
	f.entries.On("List", mock.Anything, ledger.ListFilter{Scope: "school-1", Kind: ledger.KindFee}).
		Return([]*ledger.Entry{overdue, paid}, nil).Once()

	status := ledger.StatusOverdue
	got, err := f.service.ListEntries(context.Background(), testCaller, ledger.KindFee, ledger.Filter{Status: &status})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, overdue.ID, got[0].ID)
}

func TestEntryService_UpdateEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("MarkPaidSetsPaymentDate", func(t *testing.T) {
		f := newEntryFixture(10)
		entry := storedEntry(ledger.StoredUnpaid)
		f.db.On("ExecuteTx", mock.Anything).Return(nil).Once()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, entry.ID).Return(entry, nil).Once()
		f.entries.On("Update", mock.Anything, mock.MatchedBy(func(e *ledger.Entry) bool {
			return e.StoredStatus == ledger.StoredPaid && e.PaymentDate != nil && e.PaymentDate.Equal(*datePtr(2026, 3, 18))
		})).Return(nil).Once()
		f.events.On("Create", mock.Anything, eventOfType(outbox.EventEntryUpdated)).Return(nil).Once()

		got, err := f.service.UpdateEntry(ctx, testCaller, ledger.KindFee, entry.ID, UpdateEntryInput{
			Status:      ptr("Paid"),
			PaymentDate: datePtr(2026, 3, 18),
		})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPaid, ledger.Resolve(got, testClock.Today()))
		f.entries.AssertExpectations(t)
		f.events.AssertExpectations(t)
	})

	t.Run("RevertToUnpaidClearsPaymentDate", func(t *testing.T) {
		f := newEntryFixture(10)
		entry := storedEntry(ledger.StoredPaid)
		f.db.On("ExecuteTx", mock.Anything).Return(nil).Once()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, entry.ID).Return(entry, nil).Once()
		f.entries.On("Update", mock.Anything, mock.Anything).Return(nil).Once()
		f.events.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

		got, err := f.service.UpdateEntry(ctx, testCaller, ledger.KindFee, entry.ID, UpdateEntryInput{Status: ptr("unpaid")})
		require.NoError(t, err)
		assert.Equal(t, ledger.StoredUnpaid, got.StoredStatus)
		assert.Nil(t, got.PaymentDate)
	})

	t.Run("OverdueIsRejected", func(t *testing.T) {
		f := newEntryFixture(10)
		entry := storedEntry(ledger.StoredUnpaid)
		f.db.On("ExecuteTx", mock.Anything).Return(nil).Once()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, entry.ID).Return(entry, nil).Once()

		_, err := f.service.UpdateEntry(ctx, testCaller, ledger.KindFee, entry.ID, UpdateEntryInput{Status: ptr("Overdue")})
		assert.ErrorIs(t, err, ledger.ValidationError{Field: "status"})
		assert.Equal(t, ledger.StoredUnpaid, entry.StoredStatus)
		f.entries.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("PaymentDateRequiresPaid", func(t *testing.T) {
		f := newEntryFixture(10)
		_, err := f.service.UpdateEntry(ctx, testCaller, ledger.KindFee, uuid.New(), UpdateEntryInput{PaymentDate: datePtr(2026, 3, 1)})
		assert.ErrorIs(t, err, ledger.ValidationError{Field: "payment_date"})

		entry := storedEntry(ledger.StoredPaid)
		f.db.On("ExecuteTx", mock.Anything).Return(nil).Once()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, entry.ID).Return(entry, nil).Once()
		_, err = f.service.UpdateEntry(ctx, testCaller, ledger.KindFee, entry.ID, UpdateEntryInput{Status: ptr("Unpaid"), PaymentDate: datePtr(2026, 3, 1)})
		assert.ErrorIs(t, err, ledger.ValidationError{Field: "payment_date"})
		assert.Equal(t, ledger.StoredPaid, entry.StoredStatus, "rejected patch leaves the entry untouched")
	})

	t.Run("RemarksOnly", func(t *testing.T) {
		f := newEntryFixture(10)
		entry := storedEntry(ledger.StoredPaid)
		f.db.On("ExecuteTx", mock.Anything).Return(nil).Once()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, entry.ID).Return(entry, nil).Once()
		f.entries.On("Update", mock.Anything, mock.Anything).Return(nil).Once()
		f.events.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

		got, err := f.service.UpdateEntry(ctx, testCaller, ledger.KindFee, entry.ID, UpdateEntryInput{Remarks: ptr("paid in cash")})
		require.NoError(t, err)
		assert.Equal(t, "paid in cash", got.Remarks)
		assert.Equal(t, ledger.StoredPaid, got.StoredStatus)
	})

	t.Run("EmptyPatch", func(t *testing.T) {
		f := newEntryFixture(10)
		_, err := f.service.UpdateEntry(ctx, testCaller, ledger.KindFee, uuid.New(), UpdateEntryInput{})
		assert.ErrorIs(t, err, ledger.ValidationError{})
	})
}

func TestEntryService_ApplyDiscount(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newEntryFixture(10)
		entry := storedEntry(ledger.StoredUnpaid)
		f.db.On("ExecuteTx", mock.Anything).Return(nil).Once()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, entry.ID).Return(entry, nil).Once()
		f.entries.On("Update", mock.Anything, mock.Anything).Return(nil).Once()
		f.events.On("Create", mock.Anything, eventOfType(outbox.EventEntryDiscounted)).Return(nil).Once()

		got, err := f.service.ApplyDiscount(ctx, testCaller, ledger.KindFee, entry.ID, decimal.NewFromInt(2000))
		require.NoError(t, err)
		assert.Equal(t, "2000.00", got.Amount.StringFixed(2))
		assert.Equal(t, "3000.00", got.OriginalAmount.StringFixed(2))
		f.events.AssertExpectations(t)
	})

	t.Run("PaidEntryRejected", func(t *testing.T) {
		f := newEntryFixture(10)
		entry := storedEntry(ledger.StoredPaid)
		f.db.On("ExecuteTx", mock.Anything).Return(nil).Once()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, entry.ID).Return(entry, nil).Once()

		_, err := f.service.ApplyDiscount(ctx, testCaller, ledger.KindFee, entry.ID, decimal.NewFromInt(100))
		assert.ErrorIs(t, err, ledger.ValidationError{})
		f.entries.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("IncreaseRejected", func(t *testing.T) {
		f := newEntryFixture(10)
		entry := storedEntry(ledger.StoredUnpaid)
		f.db.On("ExecuteTx", mock.Anything).Return(nil).Once()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, entry.ID).Return(entry, nil).Once()

		_, err := f.service.ApplyDiscount(ctx, testCaller, ledger.KindFee, entry.ID, decimal.NewFromInt(3500))
		assert.ErrorIs(t, err, ledger.ValidationError{Field: "amount"})
	})
}

func TestEntryService_DeleteEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newEntryFixture(10)
		entry := storedEntry(ledger.StoredUnpaid)
		f.db.On("ExecuteTx", mock.Anything).Return(nil).Once()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, entry.ID).Return(entry, nil).Once()
		f.entries.On("Delete", mock.Anything, "school-1", ledger.KindFee, entry.ID).Return(nil).Once()
		f.events.On("Create", mock.Anything, mock.MatchedBy(func(m *outbox.Message) bool {
			event, err := m.GetEvent()
			return err == nil && m.EventType == outbox.EventEntryDeleted && event.DeletedID != nil && *event.DeletedID == entry.ID
		})).Return(nil).Once()

		require.NoError(t, f.service.DeleteEntry(ctx, testCaller, ledger.KindFee, entry.ID))
		f.entries.AssertExpectations(t)
		f.events.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newEntryFixture(10)
		id := uuid.New()
		f.db.On("ExecuteTx", mock.Anything).Return(nil).Once()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, id).
			Return(nil, ledger.NotFoundError{Resource: "entry", ID: id.String()}).Once()

		err := f.service.DeleteEntry(ctx, testCaller, ledger.KindFee, id)
		assert.ErrorIs(t, err, ledger.NotFoundError{Resource: "entry", ID: id.String()})
		f.entries.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestEntryService_BulkUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("BestEffortPartial", func(t *testing.T) {
		f := newEntryFixture(10)
		first, second := storedEntry(ledger.StoredUnpaid), storedEntry(ledger.StoredUnpaid)
		missing := uuid.New()

		f.db.On("ExecuteTx", mock.Anything).Return(nil)
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, first.ID).Return(first, nil).Once()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, second.ID).Return(second, nil).Once()
		f.entries.On("GetByID", mock.Anything, "school-1", ledger.KindFee, missing).
			Return(nil, ledger.NotFoundError{Resource: "entry", ID: missing.String()}).Once()
		f.entries.On("Update", mock.Anything, mock.Anything).Return(nil).Twice()
		f.events.On("Create", mock.Anything, mock.Anything).Return(nil).Twice()

		result, err := f.service.BulkUpdateStatus(ctx, testCaller, ledger.KindFee, BulkStatusInput{
			IDs:    []uuid.UUID{first.ID, missing, second.ID, first.ID},
			Status: "Paid",
		})
		require.NoError(t, err)
		require.Len(t, result.Updated, 2)
		assert.Equal(t, first.ID, result.Updated[0].ID)
		assert.Equal(t, second.ID, result.Updated[1].ID)
		for _, e := range result.Updated {
			assert.Equal(t, ledger.StoredPaid, e.StoredStatus)
			require.NotNil(t, e.PaymentDate)
			assert.Equal(t, testClock.Today(), *e.PaymentDate)
		}
		require.Len(t, result.Failed, 1)
		assert.Equal(t, missing, result.Failed[0].ID)
		assert.ErrorIs(t, result.Failed[0].Err, ledger.NotFoundError{})
		f.entries.AssertExpectations(t)
	})

	t.Run("InvalidStatusRejectedUpFront", func(t *testing.T) {
		f := newEntryFixture(10)
		_, err := f.service.BulkUpdateStatus(ctx, testCaller, ledger.KindFee, BulkStatusInput{IDs: []uuid.UUID{uuid.New()}, Status: "Overdue"})
		assert.ErrorIs(t, err, ledger.ValidationError{Field: "status"})

		_, err = f.service.BulkUpdateStatus(ctx, testCaller, ledger.KindFee, BulkStatusInput{IDs: []uuid.UUID{uuid.New()}, Status: "Pending"})
		assert.ErrorIs(t, err, ledger.ValidationError{Field: "status"})
		f.db.AssertNotCalled(t, "ExecuteTx", mock.Anything)
	})

	t.Run("IDLimits", func(t *testing.T) {
		f := newEntryFixture(2)
		_, err := f.service.BulkUpdateStatus(ctx, testCaller, ledger.KindFee, BulkStatusInput{Status: "Paid"})
		assert.ErrorIs(t, err, ledger.ValidationError{Field: "ids"})

		_, err = f.service.BulkUpdateStatus(ctx, testCaller, ledger.KindFee, BulkStatusInput{
			IDs:    []uuid.UUID{uuid.New(), uuid.New(), uuid.New()},
			Status: "Paid",
		})
		assert.ErrorIs(t, err, ledger.ValidationError{Field: "ids"})
	})
}
