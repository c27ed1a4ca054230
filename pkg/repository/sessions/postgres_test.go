package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStore(mock)
	ctx := context.Background()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS booking_session").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, store.EnsureSchema(ctx))

	want := sampleState()
	payload, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO booking_session").
		WithArgs("tg:42", payload).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.Save(ctx, "tg:42", want))

	mock.ExpectQuery("SELECT state FROM booking_session").
		WithArgs("tg:42").
		WillReturnRows(pgxmock.NewRows([]string{"state"}).AddRow(payload))
	got, err := store.Get(ctx, "tg:42")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	mock.ExpectQuery("SELECT state FROM booking_session").
		WithArgs("tg:7").
		WillReturnError(pgx.ErrNoRows)
	_, err = store.Get(ctx, "tg:7")
	assert.True(t, errs.Is(err, errs.KindNotFound))

	mock.ExpectQuery("SELECT state FROM booking_session").
		WithArgs("tg:8").
		WillReturnError(errors.New("conn reset"))
	_, err = store.Get(ctx, "tg:8")
	assert.True(t, errs.Is(err, errs.KindTransport))

	mock.ExpectExec("DELETE FROM booking_session").
		WithArgs("tg:42").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, store.Delete(ctx, "tg:42"))

	require.NoError(t, mock.ExpectationsWereMet())
}
