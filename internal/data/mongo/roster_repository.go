package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/domain/roster"
)

// RosterRepository implements roster.Repository on a MongoDB collection that
// mirrors the upstream student roster.
type RosterRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewRosterRepository creates a new MongoDB roster repository
func NewRosterRepository(logger *slog.Logger, db *mongo.Database, collectionName string) *RosterRepository {
	return &RosterRepository{
		collection: db.Collection(collectionName),
		logger:     logger,
	}
}

var _ roster.Repository = (*RosterRepository)(nil)

// EnsureIndexes creates the class lookup index used by GetActiveStudents.
func (r *RosterRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "class_id", Value: 1}, {Key: "active", Value: 1}},
		Options: options.Index().SetName("school_class_active"),
	})
	if err != nil {
		return fmt.Errorf("failed to create roster indexes: %w", err)
	}
	return nil
}

// GetActiveStudents returns the active students of a class ordered by roll number.
// A class without any student document, active or not, is reported as not found.
func (r *RosterRepository) GetActiveStudents(ctx context.Context, scope, classID string) ([]roster.Student, error) {
	opts := options.Find().SetSort(bson.D{{Key: "roll_number", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, activeStudentsFilter(scope, classID), opts)
	if err != nil {
		r.logger.Error("Failed to query roster", "school_id", scope, "class_id", classID, "error", err)
		return nil, classify("query roster", err)
	}
	defer cursor.Close(ctx)

	students := make([]roster.Student, 0)
	if err := cursor.All(ctx, &students); err != nil {
		r.logger.Error("Failed to decode roster", "school_id", scope, "class_id", classID, "error", err)
		return nil, classify("decode roster", err)
	}

	if len(students) == 0 {
		known, err := r.collection.CountDocuments(ctx, classFilter(scope, classID), options.Count().SetLimit(1))
		if err != nil {
			return nil, classify("count roster", err)
		}
		if known == 0 {
			return nil, ledger.NotFoundError{Resource: "class", ID: classID}
		}
	}

	return students, nil
}

// Upsert inserts or replaces the mirrored record of a student.
func (r *RosterRepository) Upsert(ctx context.Context, student roster.Student) error {
	if student.UpdatedAt.IsZero() {
		student.UpdatedAt = time.Now().UTC()
	}

	_, err := r.collection.UpdateOne(ctx,
		studentFilter(student.Scope, student.ID),
		bson.M{"$set": studentFields(student)},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		r.logger.Error("Failed to upsert student", "student_id", student.ID, "error", err)
		return classify("upsert student", err)
	}
	return nil
}

// Deactivate marks a student as withdrawn. Withdrawn students are kept so that
// existing ledger entries still reference a known record.
func (r *RosterRepository) Deactivate(ctx context.Context, scope, studentID string, at time.Time) error {
	result, err := r.collection.UpdateOne(ctx,
		studentFilter(scope, studentID),
		bson.M{"$set": bson.M{"active": false, "updated_at": at}},
	)
	if err != nil {
		r.logger.Error("Failed to deactivate student", "student_id", studentID, "error", err)
		return classify("deactivate student", err)
	}
	if result.MatchedCount == 0 {
		return ledger.NotFoundError{Resource: "student", ID: studentID}
	}
	return nil
}

func activeStudentsFilter(scope, classID string) bson.M {
	return bson.M{"school_id": scope, "class_id": classID, "active": true}
}

func classFilter(scope, classID string) bson.M {
	return bson.M{"school_id": scope, "class_id": classID}
}

func studentFilter(scope, studentID string) bson.M {
	return bson.M{"_id": studentID, "school_id": scope}
}

// studentFields is the $set document of an upsert. _id comes from the filter.
func studentFields(s roster.Student) bson.M {
	return bson.M{
		"school_id":   s.Scope,
		"class_id":    s.ClassID,
		"class_name":  s.ClassName,
		"name":        s.Name,
		"roll_number": s.RollNumber,
		"active":      s.Active,
		"updated_at":  s.UpdatedAt,
	}
}

// classify marks network and timeout failures as transient.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return ledger.TransientIOError{Op: op, Err: err}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
