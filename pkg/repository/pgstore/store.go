// Package pgstore keeps clinic table records in PostgreSQL as JSONB rows
// keyed by (collection, id).
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
)

const Schema = `
CREATE TABLE IF NOT EXISTS clinic_record (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	seq        BIGSERIAL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
`

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGRepo struct{ db DB }

// Connect opens a pool and verifies it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errs.Transport("failed to open postgres pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Transport("failed to ping postgres").Wrap(err)
	}
	return pool, nil
}

func NewRepo(db DB) *PGRepo {
	return &PGRepo{db: db}
}

func (r *PGRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return errs.Transport("failed to create schema").Wrap(err)
	}
	return nil
}

// List orders by insertion. "search" matches any JSON value case-insensitively,
// "limit" caps the result, every other parameter is an exact match on a field.
func (r *PGRepo) List(ctx context.Context, collection string, params url.Values) ([]model.Record, error) {
	q, args := buildList(collection, params)
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.Transport("failed to list records").Arg("collection", collection).Wrap(err)
	}
	defer rows.Close()

	out := []model.Record{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errs.Transport("failed to scan record").Wrap(err)
		}
		rec, err := unmarshal(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Transport("failed to list records").Arg("collection", collection).Wrap(err)
	}
	return out, nil
}

func buildList(collection string, params url.Values) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT data FROM clinic_record WHERE collection = $1`)
	args := []any{collection}

	if s := params.Get("search"); s != "" {
		args = append(args, "%"+s+"%")
		b.WriteString(fmt.Sprintf(` AND EXISTS (SELECT 1 FROM jsonb_each_text(data) kv WHERE kv.value ILIKE $%d)`, len(args)))
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		switch k {
		case "search", "limit", "page", "sort":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, params.Get(k))
		b.WriteString(fmt.Sprintf(` AND data->>$%d = $%d`, len(args)-1, len(args)))
	}

	b.WriteString(` ORDER BY seq`)
	if n, err := strconv.Atoi(params.Get("limit")); err == nil && n > 0 {
		b.WriteString(fmt.Sprintf(` LIMIT %d`, n))
	}
	return b.String(), args
}

func (r *PGRepo) Get(ctx context.Context, collection, id string) (model.Record, error) {
	var data []byte
	err := r.db.QueryRow(ctx, `SELECT data FROM clinic_record WHERE collection = $1 AND id = $2`, collection, id).Scan(&data)
	if err != nil {
		return nil, rowErr(err, collection, id)
	}
	return unmarshal(data)
}

func (r *PGRepo) Create(ctx context.Context, collection string, rec model.Record) (model.Record, error) {
	row := model.Record{}
	for k, v := range rec {
		row[k] = v
	}
	id := row.ID()
	if id == "" {
		id = uuid.NewString()
		row["id"] = id
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return nil, errs.New("failed to encode record").Wrap(err)
	}

	const q = `
		INSERT INTO clinic_record (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		RETURNING data;
	`
	var data []byte
	err = r.db.QueryRow(ctx, q, collection, id, string(payload)).Scan(&data)
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23505" {
			return nil, errs.Conflict("record already exists").Arg("collection", collection).Arg("id", id)
		}
		return nil, errs.Transport("failed to create record").Arg("collection", collection).Wrap(err)
	}
	return unmarshal(data)
}

func (r *PGRepo) Replace(ctx context.Context, collection, id string, rec model.Record) (model.Record, error) {
	row := model.Record{}
	for k, v := range rec {
		row[k] = v
	}
	row["id"] = id
	payload, err := json.Marshal(row)
	if err != nil {
		return nil, errs.New("failed to encode record").Wrap(err)
	}

	const q = `
		UPDATE clinic_record SET data = $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING data;
	`
	var data []byte
	if err = r.db.QueryRow(ctx, q, collection, id, string(payload)).Scan(&data); err != nil {
		return nil, rowErr(err, collection, id)
	}
	return unmarshal(data)
}

func (r *PGRepo) Patch(ctx context.Context, collection, id string, partial model.Record) (model.Record, error) {
	row := model.Record{}
	for k, v := range partial {
		if k != "id" {
			row[k] = v
		}
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return nil, errs.New("failed to encode record").Wrap(err)
	}

	const q = `
		UPDATE clinic_record SET data = data || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING data;
	`
	var data []byte
	if err = r.db.QueryRow(ctx, q, collection, id, string(payload)).Scan(&data); err != nil {
		return nil, rowErr(err, collection, id)
	}
	return unmarshal(data)
}

func (r *PGRepo) Delete(ctx context.Context, collection, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clinic_record WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return errs.Transport("failed to delete record").Arg("collection", collection).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("record not found").Arg("collection", collection).Arg("id", id)
	}
	return nil
}

func rowErr(err error, collection, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.NotFound("record not found").Arg("collection", collection).Arg("id", id)
	}
	return errs.Transport("record query failed").Arg("collection", collection).Arg("id", id).Wrap(err)
}

func unmarshal(data []byte) (model.Record, error) {
	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errs.New("failed to decode stored record").Wrap(err)
	}
	return rec, nil
}
