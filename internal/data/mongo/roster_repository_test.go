package mongo

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/domain/roster"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func studentDoc(id, name, roll string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "school_id", Value: "school-1"},
		{Key: "class_id", Value: "class-7"},
		{Key: "class_name", Value: "Grade 7"},
		{Key: "name", Value: name},
		{Key: "roll_number", Value: roll},
		{Key: "active", Value: true},
	}
}

func TestRosterRepository_GetActiveStudents(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("ActiveStudents", func(mt *mtest.T) {
		repo := &RosterRepository{collection: mt.Coll, logger: newTestLogger()}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, studentDoc("stu-1", "Ayesha", "R-1"), studentDoc("stu-2", "Bilal", "R-2")),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch),
		)

		students, err := repo.GetActiveStudents(context.Background(), "school-1", "class-7")
		require.NoError(mt, err)
		require.Len(mt, students, 2)
		assert.Equal(mt, "stu-1", students[0].ID)
		assert.Equal(mt, "Grade 7", students[0].ClassName)
		assert.Equal(mt, "Bilal", students[1].Name)
		assert.True(mt, students[1].Active)
	})

	mt.Run("UnknownClass", func(mt *mtest.T) {
		repo := &RosterRepository{collection: mt.Coll, logger: newTestLogger()}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
		)

		students, err := repo.GetActiveStudents(context.Background(), "school-1", "class-404")
		assert.Nil(mt, students)
		assert.ErrorIs(mt, err, ledger.NotFoundError{Resource: "class", ID: "class-404"})
	})

	mt.Run("KnownClassWithoutActiveStudents", func(mt *mtest.T) {
		repo := &RosterRepository{collection: mt.Coll, logger: newTestLogger()}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		students, err := repo.GetActiveStudents(context.Background(), "school-1", "class-7")
		require.NoError(mt, err)
		assert.Empty(mt, students)
	})

	mt.Run("CommandError", func(mt *mtest.T) {
		repo := &RosterRepository{collection: mt.Coll, logger: newTestLogger()}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad query",
		}))

		students, err := repo.GetActiveStudents(context.Background(), "school-1", "class-7")
		assert.Nil(mt, students)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "failed to query roster")
		assert.NotErrorIs(mt, err, ledger.TransientIOError{})
	})
}

func TestRosterRepository_Upsert(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("Success", func(mt *mtest.T) {
		repo := &RosterRepository{collection: mt.Coll, logger: newTestLogger()}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := repo.Upsert(context.Background(), roster.Student{ID: "stu-1", Scope: "school-1", ClassID: "class-7", Name: "Ayesha", Active: true})
		assert.NoError(mt, err)
	})

	mt.Run("WriteError", func(mt *mtest.T) {
		repo := &RosterRepository{collection: mt.Coll, logger: newTestLogger()}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.Upsert(context.Background(), roster.Student{ID: "stu-1", Scope: "school-1", ClassID: "class-7"})
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "failed to upsert student")
	})
}

func TestRosterRepository_Deactivate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mt.Run("Success", func(mt *mtest.T) {
		repo := &RosterRepository{collection: mt.Coll, logger: newTestLogger()}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		assert.NoError(mt, repo.Deactivate(context.Background(), "school-1", "stu-1", at))
	})

	mt.Run("UnknownStudent", func(mt *mtest.T) {
		repo := &RosterRepository{collection: mt.Coll, logger: newTestLogger()}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.Deactivate(context.Background(), "school-1", "stu-404", at)
		assert.ErrorIs(mt, err, ledger.NotFoundError{Resource: "student"})
	})
}

func TestFilters(t *testing.T) {
	assert.Equal(t, bson.M{"school_id": "s", "class_id": "c", "active": true}, activeStudentsFilter("s", "c"))
	assert.Equal(t, bson.M{"school_id": "s", "class_id": "c"}, classFilter("s", "c"))
	assert.Equal(t, bson.M{"_id": "stu", "school_id": "s"}, studentFilter("s", "stu"))

	fields := studentFields(roster.Student{ID: "stu", Scope: "s", ClassID: "c", Name: "n", Active: true})
	_, hasID := fields["_id"]
	assert.False(t, hasID, "_id is immutable and comes from the filter")
	assert.Equal(t, true, fields["active"])
	assert.Equal(t, "c", fields["class_id"])
}
