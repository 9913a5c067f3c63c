package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/domain/outbox"
	"github.com/school-fee-ledger/internal/domain/roster"
	"github.com/school-fee-ledger/internal/platform/persistence"
)

// ClassReport is the outcome of challan generation for one class
type ClassReport struct {
	ClassID string `json:"class_id"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"` // students already holding a fee in the same month
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// GenerationReport summarizes a challan generation run
type GenerationReport struct {
	RunID      uuid.UUID     `json:"run_id"`
	Month      string        `json:"month"`
	Created    int           `json:"created"`
	Skipped    int           `json:"skipped"`
	ClassCount int           `json:"class_count"` // classes that completed without error
	Failed     int           `json:"failed"`
	Classes    []ClassReport `json:"classes"`
}

// Message is the confirmation shown to the operator.
func (r *GenerationReport) Message() string {
	msg := fmt.Sprintf("created %d records for %d classes", r.Created, r.ClassCount)
	if r.Failed > 0 {
		msg += fmt.Sprintf(", %d classes failed", r.Failed)
	}
	return msg
}

// GenerationServiceImpl implements the GenerationService interface
type GenerationServiceImpl struct {
	db         persistence.TxRunner
	entryRepo  ledger.Repository
	outboxRepo outbox.Repository
	roster     roster.Provider
	pool       *BatchPool
	clock      ledger.Clock
	calls      callPolicy
	logger     *slog.Logger
}

// NewGenerationService creates a new challan generation service
func NewGenerationService(
	logger *slog.Logger,
	db persistence.TxRunner,
	entryRepo ledger.Repository,
	outboxRepo outbox.Repository,
	provider roster.Provider,
	pool *BatchPool,
	clock ledger.Clock,
	requestTimeout time.Duration,
) GenerationService {
	return &GenerationServiceImpl{
		db:         db,
		entryRepo:  entryRepo,
		outboxRepo: outboxRepo,
		roster:     provider,
		pool:       pool,
		clock:      clock,
		calls:      callPolicy{timeout: requestTimeout, logger: logger},
		logger:     logger,
	}
}

// GenerateChallans creates one Unpaid fee entry per active student of every
// class. Classes are processed independently: a failing class is reported
// and does not undo the others.
func (s *GenerationServiceImpl) GenerateChallans(ctx context.Context, caller ledger.Caller, classIDs []string, template ledger.ChallanTemplate) (*GenerationReport, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	classIDs = uniqueClassIDs(classIDs)
	if len(classIDs) == 0 {
		return nil, ledger.NewValidationError("class_ids", "at least one class is required")
	}
	if err := template.Validate(); err != nil {
		return nil, err
	}

	report := &GenerationReport{
		RunID:   uuid.New(),
		Month:   template.Bucket().String(),
		Classes: make([]ClassReport, len(classIDs)),
	}
	logger := s.logger.With("run_id", report.RunID.String(), "school_id", caller.Scope, "month", report.Month)
	logger.Info("Generating challans", "user_id", caller.UserID, "classes", len(classIDs))

	errs := s.pool.Run(ctx, len(classIDs), func(ctx context.Context, i int) error {
		report.Classes[i] = s.generateForClass(ctx, caller.Scope, classIDs[i], template, report.RunID, logger)
		return report.Classes[i].Err
	})

	// Classes the pool never ran (canceled or refused) still need a failed report.
	for i, err := range errs {
		if err != nil && report.Classes[i].Err == nil {
			logger.Error("Class was not processed", "class_id", classIDs[i], "error", err)
			report.Classes[i] = ClassReport{ClassID: classIDs[i], Err: err, Error: err.Error()}
		}
	}

	for _, class := range report.Classes {
		report.Created += class.Created
		report.Skipped += class.Skipped
		if class.Err != nil {
			report.Failed++
		} else {
			report.ClassCount++
		}
	}

	logger.Info("Challan generation finished",
		"created", report.Created,
		"skipped", report.Skipped,
		"classes_ok", report.ClassCount,
		"classes_failed", report.Failed,
	)
	return report, nil
}

func (s *GenerationServiceImpl) generateForClass(ctx context.Context, scope, classID string, template ledger.ChallanTemplate, runID uuid.UUID, logger *slog.Logger) ClassReport {
	result := ClassReport{ClassID: classID}
	fail := func(err error) ClassReport {
		logger.Error("Challan generation failed for class", "class_id", classID, "error", err)
		result.Err = err
		result.Error = err.Error()
		return result
	}

	students, err := read(ctx, s.calls, "get active students", func(ctx context.Context) ([]roster.Student, error) {
		return s.roster.GetActiveStudents(ctx, scope, classID)
	})
	if err != nil {
		return fail(err)
	}
	students = uniqueStudents(students)
	if len(students) == 0 {
		logger.Info("Class has no active students", "class_id", classID)
		return result
	}

	subjectIDs := make([]string, len(students))
	for i, st := range students {
		subjectIDs[i] = st.ID
	}
	bucket := template.Bucket()
	existing, err := read(ctx, s.calls, "find existing challans", func(ctx context.Context) (map[string]bool, error) {
		return s.entryRepo.ExistingSubjects(ctx, scope, ledger.KindFee, bucket, subjectIDs)
	})
	if err != nil {
		return fail(err)
	}

	now := s.clock.Now()
	entries := make([]*ledger.Entry, 0, len(students))
	for _, st := range students {
		if existing[st.ID] {
			result.Skipped++
			continue
		}
		subject := st.Subject()
		if subject.ClassID == "" {
			subject.ClassID = classID
		}
		entry, err := template.EntryFor(scope, subject, now)
		if err != nil {
			return fail(err)
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		logger.Info("Every student of the class already has a challan for the month", "class_id", classID, "skipped", result.Skipped)
		return result
	}

	err = s.calls.write(ctx, func(ctx context.Context) error {
		return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			if err := s.entryRepo.WithTx(tx).CreateBatch(ctx, entries); err != nil {
				return err
			}
			msg, err := outbox.NewBatchMessage(outbox.EventChallansGenerated, scope, runID, entries)
			if err != nil {
				return fmt.Errorf("failed to encode challan event for class %s: %w", classID, err)
			}
			return s.outboxRepo.WithTx(tx).Create(ctx, msg)
		})
	})
	if err != nil {
		return fail(err)
	}

	result.Created = len(entries)
	logger.Info("Challans created for class", "class_id", classID, "created", result.Created, "skipped", result.Skipped)
	return result
}

func uniqueClassIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func uniqueStudents(students []roster.Student) []roster.Student {
	seen := make(map[string]bool, len(students))
	out := make([]roster.Student, 0, len(students))
	for _, st := range students {
		if st.ID == "" || seen[st.ID] {
			continue
		}
		seen[st.ID] = true
		out = append(out, st)
	}
	return out
}
