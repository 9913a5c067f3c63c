package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/ledger_api/middleware"
	"github.com/school-fee-ledger/internal/ledger_api/service"
)

type MockEntryService struct {
	mock.Mock
}

func (m *MockEntryService) CreateEntry(ctx context.Context, caller ledger.Caller, kind ledger.Kind, input service.CreateEntryInput) (*ledger.Entry, error) {
	args := m.Called(ctx, caller, kind, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockEntryService) GetEntry(ctx context.Context, caller ledger.Caller, kind ledger.Kind, id uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, caller, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockEntryService) ListEntries(ctx context.Context, caller ledger.Caller, kind ledger.Kind, filter ledger.Filter) ([]*ledger.Entry, error) {
	args := m.Called(ctx, caller, kind, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockEntryService) UpdateEntry(ctx context.Context, caller ledger.Caller, kind ledger.Kind, id uuid.UUID, input service.UpdateEntryInput) (*ledger.Entry, error) {
	args := m.Called(ctx, caller, kind, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockEntryService) ApplyDiscount(ctx context.Context, caller ledger.Caller, kind ledger.Kind, id uuid.UUID, newAmount decimal.Decimal) (*ledger.Entry, error) {
	args := m.Called(ctx, caller, kind, id, newAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockEntryService) DeleteEntry(ctx context.Context, caller ledger.Caller, kind ledger.Kind, id uuid.UUID) error {
	return m.Called(ctx, caller, kind, id).Error(0)
}

func (m *MockEntryService) BulkUpdateStatus(ctx context.Context, caller ledger.Caller, kind ledger.Kind, input service.BulkStatusInput) (*service.BulkStatusResult, error) {
	args := m.Called(ctx, caller, kind, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BulkStatusResult), args.Error(1)
}

type MockGenerationService struct {
	mock.Mock
}

func (m *MockGenerationService) GenerateChallans(ctx context.Context, caller ledger.Caller, classIDs []string, template ledger.ChallanTemplate) (*service.GenerationReport, error) {
	args := m.Called(ctx, caller, classIDs, template)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.GenerationReport), args.Error(1)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Summary(ctx context.Context, caller ledger.Caller, kind ledger.Kind, filter ledger.Filter) (ledger.Summary, error) {
	args := m.Called(ctx, caller, kind, filter)
	return args.Get(0).(ledger.Summary), args.Error(1)
}

func (m *MockReportService) MonthlySummary(ctx context.Context, caller ledger.Caller, kind ledger.Kind, filter ledger.Filter) (ledger.MonthlyReport, error) {
	args := m.Called(ctx, caller, kind, filter)
	return args.Get(0).(ledger.MonthlyReport), args.Error(1)
}

func (m *MockReportService) ExportCSV(ctx context.Context, caller ledger.Caller, kind ledger.Kind, req service.ExportRequest) (*service.Export, error) {
	args := m.Called(ctx, caller, kind, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Export), args.Error(1)
}

var (
	testCaller = ledger.Caller{Scope: "school-1", UserID: "admin-1"}
	testClock  = ledger.FixedClock{At: time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)}
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// setupTestRouter mounts the scope middleware so handlers see a resolved caller
func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID(), middleware.Scope())
	return r
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.SchoolIDHeader, testCaller.Scope)
	req.Header.Set(middleware.UserIDHeader, testCaller.UserID)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Data          json.RawMessage `json:"data"`
	Error         *ErrorInfo      `json:"error"`
	CorrelationID string          `json:"correlation_id"`
	Meta          *MetaInfo       `json:"meta"`
}

func decode(rr *httptest.ResponseRecorder) envelope {
	var env envelope
	_ = json.Unmarshal(rr.Body.Bytes(), &env)
	return env
}

func sampleEntry(status ledger.StoredStatus) *ledger.Entry {
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	e := &ledger.Entry{
		ID:             uuid.New(),
		Kind:           ledger.KindFee,
		Scope:          "school-1",
		Subject:        ledger.Subject{ID: "stu-1", Name: "Ayesha", ClassID: "c-7", ClassName: "Class 7", RollNumber: "R-1"},
		Amount:         decimal.RequireFromString("3000"),
		OriginalAmount: decimal.RequireFromString("3000"),
		Month:          "March 2026",
		DueDate:        &due,
		StoredStatus:   status,
		CreatedAt:      testClock.At,
		UpdatedAt:      testClock.At,
	}
	if status == ledger.StoredPaid {
		paid := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
		e.PaymentDate = &paid
	}
	return e
}
