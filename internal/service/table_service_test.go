package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
)

type tableFixture struct {
	classrooms *fakeClassrooms
	seating    *fakeSeating
	cache      *fakeCache
	svc        *TableService
}

func newTableFixture(capacity int) *tableFixture {
	classrooms := newFakeClassrooms(&models.Classroom{ID: "c1", TeacherID: "teach", Name: "Period 3", JoinCode: "ABC234", Status: models.ClassroomStatusActive})
	seating := newFakeSeating()
	seating.addTable("c1", "t1", "Table 1")
	seating.addTable("c1", "t2", "Table 2")
	seating.enroll("c1", "s1", "Ada")
	seating.enroll("c1", "s2", "Grace")
	seating.enroll("c1", "s3", "Marie")
	cache := newFakeCache()
	svc := NewTableService(seating, seating, classrooms, seating, cache, nil, nil, zap.NewNop(), TableConfig{Capacity: capacity})
	return &tableFixture{classrooms: classrooms, seating: seating, cache: cache, svc: svc}
}

func TestTableServiceAssignSeatMovesStudent(t *testing.T) {
	fx := newTableFixture(0)
	ctx := context.Background()
	claims := studentClaims("s1")

	first, err := fx.svc.AssignSeat(ctx, claims, "c1", dto.AssignSeatRequest{StudentID: "s1", TableID: strPtr("t1")})
	require.NoError(t, err)
	second, err := fx.svc.AssignSeat(ctx, claims, "c1", dto.AssignSeatRequest{StudentID: "s1", TableID: strPtr("t2")})
	require.NoError(t, err)
	assert.Greater(t, second.Version, first.Version)

	snapshot, err := fx.svc.Snapshot(ctx, claims, "c1")
	require.NoError(t, err)
	assert.Empty(t, snapshot.Table("t1").Students)
	require.Len(t, snapshot.Table("t2").Students, 1)
	assert.Equal(t, "s1", snapshot.Table("t2").Students[0].StudentID)
	require.NotNil(t, snapshot.MyTableID)
	assert.Equal(t, "t2", *snapshot.MyTableID)
	assert.Equal(t, second.Version, snapshot.Version)
	assert.False(t, snapshot.FetchedAt.IsZero())
}

func TestTableServiceSnapshotReadDuringSeatChangeIsNotServedAgain(t *testing.T) {
	fx := newTableFixture(0)
	ctx := context.Background()

	fx.seating.afterRead = func() {
		_, err := fx.svc.AssignSeat(ctx, studentClaims("s1"), "c1", dto.AssignSeatRequest{StudentID: "s1", TableID: strPtr("t1")})
		require.NoError(t, err)
	}
	stale, err := fx.svc.Snapshot(ctx, teacherClaims("teach"), "c1")
	require.NoError(t, err)
	assert.Empty(t, stale.Table("t1").Students, "read before the seat change")

	fresh, err := fx.svc.Snapshot(ctx, teacherClaims("teach"), "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, fx.seating.snapshots, "the stale read was cached under a retired generation")
	require.Len(t, fresh.Table("t1").Students, 1)
	assert.Greater(t, fresh.Version, stale.Version)
}

func TestTableServiceAssignSeatInvalidatesSnapshotCache(t *testing.T) {
	fx := newTableFixture(0)
	ctx := context.Background()

	_, err := fx.svc.Snapshot(ctx, teacherClaims("teach"), "c1")
	require.NoError(t, err)
	_, err = fx.svc.Snapshot(ctx, teacherClaims("teach"), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, fx.seating.snapshots, "second read served from cache")

	_, err = fx.svc.AssignSeat(ctx, studentClaims("s1"), "c1", dto.AssignSeatRequest{StudentID: "s1", TableID: strPtr("t1")})
	require.NoError(t, err)
	assert.Contains(t, fx.cache.invalidated, snapshotCacheKey("c1", 0))

	snapshot, err := fx.svc.Snapshot(ctx, studentClaims("s1"), "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, fx.seating.snapshots)
	require.NotNil(t, snapshot.MyTableID)
	assert.Equal(t, "t1", *snapshot.MyTableID)
}

func TestTableServiceSnapshotMyTableIsPerCaller(t *testing.T) {
	fx := newTableFixture(0)
	fx.seating.seat("c1", "s1", "t1")
	ctx := context.Background()

	mine, err := fx.svc.Snapshot(ctx, studentClaims("s1"), "c1")
	require.NoError(t, err)
	require.NotNil(t, mine.MyTableID)

	other, err := fx.svc.Snapshot(ctx, studentClaims("s2"), "c1")
	require.NoError(t, err)
	assert.Nil(t, other.MyTableID)
}

func TestTableServiceAssignSeatCapacity(t *testing.T) {
	fx := newTableFixture(2)
	fx.seating.seat("c1", "s1", "t1")
	fx.seating.seat("c1", "s2", "t1")

	_, err := fx.svc.AssignSeat(context.Background(), studentClaims("s3"), "c1", dto.AssignSeatRequest{StudentID: "s3", TableID: strPtr("t1")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTableFull.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 409, appErrors.FromError(err).Status)

	// Re-selecting the current table does not count the student twice.
	_, err = fx.svc.AssignSeat(context.Background(), studentClaims("s1"), "c1", dto.AssignSeatRequest{StudentID: "s1", TableID: strPtr("t1")})
	require.NoError(t, err)
}

func TestTableServiceStudentCannotMoveOthers(t *testing.T) {
	fx := newTableFixture(0)

	_, err := fx.svc.AssignSeat(context.Background(), studentClaims("s1"), "c1", dto.AssignSeatRequest{StudentID: "s2", TableID: strPtr("t1")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTableServiceTeacherVacatesSeat(t *testing.T) {
	fx := newTableFixture(0)
	fx.seating.seat("c1", "s2", "t2")

	res, err := fx.svc.AssignSeat(context.Background(), teacherClaims("teach"), "c1", dto.AssignSeatRequest{StudentID: "s2"})
	require.NoError(t, err)
	assert.Nil(t, res.TableID)

	enrollment, err := fx.seating.Find(context.Background(), "c1", "s2")
	require.NoError(t, err)
	assert.Nil(t, enrollment.TableID)
}

func TestTableServiceAssignSeatErrors(t *testing.T) {
	fx := newTableFixture(0)
	fx.seating.addTable("c2", "tx", "Elsewhere")
	ctx := context.Background()

	_, err := fx.svc.AssignSeat(ctx, studentClaims("s1"), "c1", dto.AssignSeatRequest{StudentID: "s1", TableID: strPtr("tx")})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.AssignSeat(ctx, teacherClaims("teach"), "c1", dto.AssignSeatRequest{StudentID: "ghost", TableID: strPtr("t1")})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.AssignSeat(ctx, studentClaims("outsider"), "c1", dto.AssignSeatRequest{StudentID: "outsider", TableID: strPtr("t1")})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.AssignSeat(ctx, teacherClaims("other"), "c1", dto.AssignSeatRequest{StudentID: "s1", TableID: strPtr("t1")})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTableServiceReplaceTablesByCount(t *testing.T) {
	fx := newTableFixture(0)
	fx.seating.seat("c1", "s1", "t1")

	snapshot, err := fx.svc.ReplaceTables(context.Background(), teacherClaims("teach"), "c1", dto.ReplaceTablesRequest{Count: 5}, true)
	require.NoError(t, err)
	require.Len(t, snapshot.Tables, 5)
	assert.Equal(t, "Table 1", snapshot.Tables[0].Name)
	assert.Equal(t, "Table 5", snapshot.Tables[4].Name)
	assert.Equal(t, 0.0, snapshot.Tables[4].PositionX)
	assert.Equal(t, layoutSpacingY, snapshot.Tables[4].PositionY)
	for _, table := range snapshot.Tables {
		assert.Empty(t, table.Students)
	}
}

func TestTableServiceReplaceTablesRetiresOldTables(t *testing.T) {
	fx := newTableFixture(0)
	ctx := context.Background()

	_, err := fx.svc.ReplaceTables(ctx, teacherClaims("teach"), "c1", dto.ReplaceTablesRequest{Count: 2}, true)
	require.NoError(t, err)

	old, err := fx.seating.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, old.Retired())

	_, err = fx.svc.AssignSeat(ctx, studentClaims("s1"), "c1", dto.AssignSeatRequest{StudentID: "s1", TableID: strPtr("t1")})
	require.Error(t, err)

	snapshot, err := fx.svc.Snapshot(ctx, teacherClaims("teach"), "c1")
	require.NoError(t, err)
	assert.Nil(t, snapshot.Table("t1"))
	assert.Len(t, snapshot.Tables, 2)
}

func TestTableServiceReplaceTablesRequiresTeacher(t *testing.T) {
	fx := newTableFixture(0)

	_, err := fx.svc.ReplaceTables(context.Background(), studentClaims("s1"), "c1", dto.ReplaceTablesRequest{Count: 2}, true)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.ReplaceTables(context.Background(), teacherClaims("teach"), "c1", dto.ReplaceTablesRequest{}, true)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTableServiceExportCSV(t *testing.T) {
	fx := newTableFixture(0)
	fx.seating.seat("c1", "s1", "t1")

	filename, contentType, payload, err := fx.svc.Export(context.Background(), teacherClaims("teach"), "c1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.True(t, strings.HasPrefix(filename, "seating-ABC234-v"))
	assert.Contains(t, string(payload), "Ada")

	_, _, _, err = fx.svc.Export(context.Background(), teacherClaims("teach"), "c1", "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTableServiceReplaceTablesNeedsReplaceFlag(t *testing.T) {
	fx := newTableFixture(0)

	_, err := fx.svc.ReplaceTables(context.Background(), teacherClaims("teach"), "c1", dto.ReplaceTablesRequest{Count: 3}, false)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	fx.classrooms.items["c9"] = &models.Classroom{ID: "c9", TeacherID: "teach", Status: models.ClassroomStatusActive}
	snapshot, err := fx.svc.ReplaceTables(context.Background(), teacherClaims("teach"), "c9", dto.ReplaceTablesRequest{Tables: []dto.TableLayout{{Name: " Lab bench ", X: 10, Y: 20}}}, false)
	require.NoError(t, err)
	require.Len(t, snapshot.Tables, 1)
	assert.Equal(t, "Lab bench", snapshot.Tables[0].Name)
	assert.Equal(t, 10.0, snapshot.Tables[0].PositionX)
}
