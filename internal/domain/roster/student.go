package roster

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/school-fee-ledger/internal/domain/ledger"
)

var (
	ErrUnknownEventType = errors.New("unknown roster event type")
	ErrInvalidStudent   = errors.New("roster event is missing student, school or class id")
)

// Student is the mirrored roster record of one enrolled student.
type Student struct {
	ID         string    `json:"id" bson:"_id"`
	Scope      string    `json:"school_id" bson:"school_id"`
	ClassID    string    `json:"class_id" bson:"class_id"`
	ClassName  string    `json:"class_name" bson:"class_name"`
	Name       string    `json:"name" bson:"name"`
	RollNumber string    `json:"roll_number" bson:"roll_number"`
	Active     bool      `json:"active" bson:"active"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

// Subject returns the cached display fields a ledger entry keeps.
func (s Student) Subject() ledger.Subject {
	return ledger.Subject{
		ID:         s.ID,
		Name:       s.Name,
		ClassID:    s.ClassID,
		ClassName:  s.ClassName,
		RollNumber: s.RollNumber,
	}
}

// Provider supplies the active roster of a class.
type Provider interface {
	GetActiveStudents(ctx context.Context, scope, classID string) ([]Student, error)
}

// Repository is the writable roster mirror maintained by the worker.
type Repository interface {
	Provider
	Upsert(ctx context.Context, student Student) error
	Deactivate(ctx context.Context, scope, studentID string, at time.Time) error
}

// EventType names a change in the upstream roster.
type EventType string

const (
	EventStudentEnrolled  EventType = "student.enrolled"
	EventStudentUpdated   EventType = "student.updated"
	EventStudentWithdrawn EventType = "student.withdrawn"
)

// Event is a roster change consumed from Kafka.
type Event struct {
	Type       EventType `json:"type"`
	Student    Student   `json:"student"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Validate rejects events that cannot be applied to the mirror.
func (e Event) Validate() error {
	switch e.Type {
	case EventStudentEnrolled, EventStudentUpdated, EventStudentWithdrawn:
	default:
		return ErrUnknownEventType
	}
	if strings.TrimSpace(e.Student.ID) == "" || strings.TrimSpace(e.Student.Scope) == "" {
		return ErrInvalidStudent
	}
	if e.Type != EventStudentWithdrawn && strings.TrimSpace(e.Student.ClassID) == "" {
		return ErrInvalidStudent
	}
	return nil
}
