package sessions

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/napryag/clinic_booking_bot/pkg/repository/pgstore"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
)

const PostgresSchema = `
CREATE TABLE IF NOT EXISTS booking_session (
	key        TEXT        PRIMARY KEY,
	state      JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresStore keeps sessions in the booking_session table.
type PostgresStore struct{ db pgstore.DB }

func NewPostgresStore(db pgstore.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, PostgresSchema); err != nil {
		return errs.Transport("failed to create session schema").Wrap(err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (State, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, `SELECT state FROM booking_session WHERE key=$1`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return State{}, errs.NotFound("session not found").Arg("session", key)
		}
		return State{}, errs.Transport("failed to load session").Arg("session", key).Wrap(err)
	}
	var st State
	if err = json.Unmarshal(payload, &st); err != nil {
		return State{}, errs.New("failed to decode session").Arg("session", key).Wrap(err)
	}
	return st, nil
}

func (s *PostgresStore) Save(ctx context.Context, key string, st State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return errs.New("failed to encode session").Arg("session", key).Wrap(err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO booking_session (key, state, updated_at)
		VALUES ($1,$2,now())
		ON CONFLICT (key) DO UPDATE
		   SET state=EXCLUDED.state, updated_at=now()
	`, key, payload)
	if err != nil {
		return errs.Transport("failed to save session").Arg("session", key).Wrap(err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM booking_session WHERE key=$1`, key); err != nil {
		return errs.Transport("failed to delete session").Arg("session", key).Wrap(err)
	}
	return nil
}
