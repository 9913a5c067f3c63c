package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/domain/roster"
	"github.com/school-fee-ledger/internal/platform/messaging/producers"
)

// RosterEventHandler applies roster change events to the local roster mirror
type RosterEventHandler struct {
	repo     roster.Repository
	producer producers.DeadLetterPublisher
	logger   *slog.Logger
}

// NewRosterEventHandler creates a new handler. producer may be nil when the DLQ is disabled.
func NewRosterEventHandler(
	logger *slog.Logger,
	repo roster.Repository,
	producer producers.DeadLetterPublisher,
) *RosterEventHandler {
	return &RosterEventHandler{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

// HandleMessage processes Kafka messages. Returning nil commits the offset.
func (h *RosterEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event roster.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return h.deadLetter(ctx, key, value, "Failed to unmarshal roster event", err)
	}
	if err := event.Validate(); err != nil {
		return h.deadLetter(ctx, key, value, "Rejected roster event", err)
	}

	logger := h.logger.With(
		"event_type", event.Type,
		"school_id", event.Student.Scope,
		"student_id", event.Student.ID,
	)

	student := event.Student
	if student.UpdatedAt.IsZero() {
		student.UpdatedAt = event.OccurredAt
	}

	switch event.Type {
	case roster.EventStudentEnrolled:
		student.Active = true
		if err := h.repo.Upsert(ctx, student); err != nil {
			logger.Error("Failed to mirror enrolled student", "error", err)
			return fmt.Errorf("enrolling student %s failed: %w", student.ID, err)
		}
	case roster.EventStudentUpdated:
		if err := h.repo.Upsert(ctx, student); err != nil {
			logger.Error("Failed to mirror updated student", "error", err)
			return fmt.Errorf("updating student %s failed: %w", student.ID, err)
		}
	case roster.EventStudentWithdrawn:
		err := h.repo.Deactivate(ctx, student.Scope, student.ID, student.UpdatedAt)
		if errors.Is(err, ledger.NotFoundError{}) {
			logger.Warn("Withdrawn student is not in the roster mirror, nothing to deactivate")
			return nil
		}
		if err != nil {
			logger.Error("Failed to deactivate withdrawn student", "error", err)
			return fmt.Errorf("withdrawing student %s failed: %w", student.ID, err)
		}
	}

	logger.Info("Applied roster event")
	return nil
}

// deadLetter parks a message that can never be applied. The offset is only
// committed once the DLQ accepted the message.
func (h *RosterEventHandler) deadLetter(ctx context.Context, key, value []byte, msg string, cause error) error {
	h.logger.Error(msg, "error", cause, "message_key", string(key))

	if h.producer != nil {
		reason := fmt.Sprintf("%s: %s", msg, cause.Error())
		if err := h.producer.PublishToDLQ(ctx, string(key), value, reason); err != nil {
			h.logger.Error("Failed to publish message to DLQ",
				"dlq_error", err,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", msg, cause)
}
