package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/dbx"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps every collection in a single JSONB table created by
// the migrations package.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens a pgx-backed *sql.DB and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	query :=
		`SELECT body FROM documents
		 WHERE collection = $1 AND id = $2`

	var body []byte
	if err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, unavailable(err)
	}
	fields, err := decodeBody(body)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Fields: fields}, nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filters []Filter, orderBy *OrderBy) ([]*Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, body FROM documents WHERE collection = $1`)
	args := []any{collection}

	if len(filters) > 0 {
		match := make(map[string]any, len(filters))
		for _, f := range filters {
			match[f.Field] = f.Value
		}
		b, err := json.Marshal(match)
		if err != nil {
			return nil, fmt.Errorf("%w: encode filters: %v", common.ErrInvalidArgument, err)
		}
		args = append(args, string(b))
		fmt.Fprintf(&sb, ` AND body @> $%d::jsonb`, len(args))
	}

	if orderBy != nil {
		args = append(args, orderBy.Field)
		dir := "ASC"
		if orderBy.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, ` ORDER BY body -> $%d %s, id ASC`, len(args), dir)
	} else {
		sb.WriteString(` ORDER BY id ASC`)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, unavailable(err)
		}
		fields, err := decodeBody(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, &Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return docs, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.exec(ctx, s.db, SetOp(collection, id, fields))
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.exec(ctx, s.db, UpdateOp(collection, id, fields))
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	return s.exec(ctx, s.db, DeleteOp(collection, id))
}

func (s *PostgresStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.exec(ctx, s.db, IncrementOp(collection, id, field, delta))
}

// RunAtomicBatch runs all ops in one transaction.
func (s *PostgresStore) RunAtomicBatch(ctx context.Context, ops []Op) error {
	for _, op := range ops {
		if err := validateOp(op); err != nil {
			return err
		}
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, op := range ops {
			if err := s.exec(ctx, tx, op); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, common.ErrorNotFound) && !errors.Is(err, common.ErrStoreUnavailable) &&
		!errors.Is(err, common.ErrInvalidArgument) {
		return unavailable(err)
	}
	return err
}

func (s *PostgresStore) exec(ctx context.Context, db dbx.DBTX, op Op) error {
	if err := validateOp(op); err != nil {
		return err
	}

	var (
		query string
		args  []any
	)
	switch op.Kind {
	case OpSet:
		body, err := encodeBody(op.Fields)
		if err != nil {
			return err
		}
		query =
			`INSERT INTO documents (collection, id, body)
			 VALUES ($1, $2, $3::jsonb)
			 ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`
		args = []any{op.Collection, op.ID, body}
	case OpUpdate:
		body, err := encodeBody(op.Fields)
		if err != nil {
			return err
		}
		query =
			`UPDATE documents SET body = body || $3::jsonb, updated_at = now()
			 WHERE collection = $1 AND id = $2`
		args = []any{op.Collection, op.ID, body}
	case OpDelete:
		query =
			`DELETE FROM documents
			 WHERE collection = $1 AND id = $2`
		args = []any{op.Collection, op.ID}
	case OpIncrement:
		query =
			`UPDATE documents
			 SET body = jsonb_set(body, ARRAY[$3::text], to_jsonb(COALESCE((body ->> $3::text)::bigint, 0) + $4::bigint)),
			     updated_at = now()
			 WHERE collection = $1 AND id = $2`
		args = []any{op.Collection, op.ID, op.Field, op.Delta}
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return unavailable(err)
	}
	if op.Kind == OpUpdate || op.Kind == OpIncrement {
		n, err := res.RowsAffected()
		if err != nil {
			return unavailable(err)
		}
		if n == 0 {
			return fmt.Errorf("%s/%s: %w", op.Collection, op.ID, common.ErrorNotFound)
		}
	}
	return nil
}

func encodeBody(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("%w: encode fields: %v", common.ErrInvalidArgument, err)
	}
	return string(b), nil
}

func decodeBody(body []byte) (map[string]any, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: corrupt document body: %v", common.ErrStoreUnavailable, err)
	}
	return fields, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}
