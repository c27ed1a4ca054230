package pgstore

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *PGRepo) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewRepo(mock)
}

func TestBuildList(t *testing.T) {
	q, args := buildList("appointments", url.Values{
		"search":        {"x@y.com"},
		"status":        {"scheduled"},
		"patient_email": {"x@y.com"},
		"limit":         {"5"},
	})
	assert.Equal(t, `SELECT data FROM clinic_record WHERE collection = $1`+
		` AND EXISTS (SELECT 1 FROM jsonb_each_text(data) kv WHERE kv.value ILIKE $2)`+
		` AND data->>$3 = $4 AND data->>$5 = $6 ORDER BY seq LIMIT 5`, q)
	assert.Equal(t, []any{"appointments", "%x@y.com%", "patient_email", "x@y.com", "status", "scheduled"}, args)

	q, args = buildList("departments", nil)
	assert.Equal(t, `SELECT data FROM clinic_record WHERE collection = $1 ORDER BY seq`, q)
	assert.Equal(t, []any{"departments"}, args)
}

func TestPGRepo_List(t *testing.T) {
	mock, repo := newMock(t)

	rows := pgxmock.NewRows([]string{"data"}).
		AddRow([]byte(`{"id":"a1","patient_email":"x@y.com"}`)).
		AddRow([]byte(`{"id":"a2","patient_email":"x@y.com"}`))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM clinic_record WHERE collection = $1`)).
		WithArgs("appointments", "%x@y.com%").
		WillReturnRows(rows)

	recs, err := repo.List(context.Background(), "appointments", url.Values{"search": {"x@y.com"}})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a1", recs[0].ID())
	assert.Equal(t, "a2", recs[1].ID())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepo_ListFailure(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery("SELECT data FROM clinic_record").WithArgs("doctors").WillReturnError(errors.New("conn reset"))

	_, err := repo.List(context.Background(), "doctors", nil)
	assert.True(t, errs.Is(err, errs.KindTransport))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepo_GetNotFound(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery("SELECT data FROM clinic_record WHERE collection").
		WithArgs("appointments", "missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), "appointments", "missing")
	assert.True(t, errs.Is(err, errs.KindNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepo_CreateAssignsID(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery("INSERT INTO clinic_record").
		WithArgs("appointments", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"generated","status":"scheduled"}`)))

	out, err := repo.Create(context.Background(), "appointments", model.Record{"status": "scheduled"})
	require.NoError(t, err)
	assert.Equal(t, "generated", out.ID())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepo_CreateConflict(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery("INSERT INTO clinic_record").
		WithArgs("appointments", "a1", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), "appointments", model.Record{"id": "a1"})
	assert.True(t, errs.Is(err, errs.KindConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepo_PatchMergesFields(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SET data = data || $3::jsonb")).
		WithArgs("appointments", "a1", `{"cancellation_reason":"conflict","status":"cancelled"}`).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"id":"a1","status":"cancelled","cancellation_reason":"conflict"}`)))

	out, err := repo.Patch(context.Background(), "appointments", "a1", model.Record{
		"id":                  "ignored",
		"status":              "cancelled",
		"cancellation_reason": "conflict",
	})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", out["status"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepo_Replace(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SET data = $3::jsonb")).
		WithArgs("doctors", "d1", `{"id":"d1","name":"Dr. Lee"}`).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"d1","name":"Dr. Lee"}`)))

	out, err := repo.Replace(context.Background(), "doctors", "d1", model.Record{"name": "Dr. Lee"})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Lee", out["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepo_Delete(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec("DELETE FROM clinic_record").WithArgs("blogs", "b1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM clinic_record").WithArgs("blogs", "b2").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), "blogs", "b1"))
	assert.True(t, errs.Is(repo.Delete(context.Background(), "blogs", "b2"), errs.KindNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepo_EnsureSchema(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS clinic_record").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
