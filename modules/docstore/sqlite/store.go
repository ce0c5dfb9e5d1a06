package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flemzord/ephemera/internal/docstore"
	"github.com/oklog/ulid/v2"
)

// Store implements docstore.Store on a single SQLite table. Documents are
// JSON objects; filters are pushed down as json_extract predicates.
type Store struct {
	db *sql.DB
}

// Compile-time interface check.
var _ docstore.Store = (*Store)(nil)

// NewStore wraps an already migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Query implements docstore.Store. Results are ordered by document ID.
func (s *Store) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	where, args, err := buildWhere(filters)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data FROM documents WHERE collection = ?"+where+" ORDER BY id",
		append([]any{collection}, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []docstore.Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", collection, err)
		}
		data, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("sqlite: decode %s/%s: %w", collection, id, err)
		}
		docs = append(docs, docstore.Document{
			Ref:  docstore.Ref{Collection: collection, ID: id},
			Data: data,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: query %s: %w", collection, err)
	}
	return docs, nil
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, ref docstore.Ref) (docstore.Document, error) {
	data, err := load(ctx, s.db, ref)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{Ref: ref, Data: data}, nil
}

// Create implements docstore.Store. IDs are ULIDs.
func (s *Store) Create(ctx context.Context, collection string, data map[string]any) (docstore.Ref, error) {
	ref := docstore.Ref{Collection: collection, ID: ulid.Make().String()}
	if err := s.Set(ctx, ref, data); err != nil {
		return docstore.Ref{}, err
	}
	return ref, nil
}

// Set implements docstore.Store.
func (s *Store) Set(ctx context.Context, ref docstore.Ref, data map[string]any) error {
	raw, err := encode(data)
	if err != nil {
		return fmt.Errorf("sqlite: encode %s: %w", ref.Path(), err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET
		   data = excluded.data,
		   updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')`,
		ref.Collection, ref.ID, raw,
	)
	if err != nil {
		return fmt.Errorf("sqlite: set %s: %w", ref.Path(), err)
	}
	return nil
}

// Update implements docstore.Store.
func (s *Store) Update(ctx context.Context, ref docstore.Ref, fields map[string]any) error {
	return s.apply(ctx, []docstore.Write{{Kind: docstore.WriteUpdate, Ref: ref, Fields: fields}})
}

// Batch implements docstore.Store.
func (s *Store) Batch() docstore.Batch {
	return docstore.NewWriteBatch(s.apply)
}

// apply runs all writes in one transaction. Any failure rolls back the
// whole set.
func (s *Store) apply(ctx context.Context, writes []docstore.Write) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, w := range writes {
		switch w.Kind {
		case docstore.WriteDelete:
			if _, err = tx.ExecContext(ctx,
				"DELETE FROM documents WHERE collection = ? AND id = ?",
				w.Ref.Collection, w.Ref.ID,
			); err != nil {
				return fmt.Errorf("sqlite: delete %s: %w", w.Ref.Path(), err)
			}
		case docstore.WriteUpdate:
			if err = merge(ctx, tx, w.Ref, w.Fields); err != nil {
				return err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func merge(ctx context.Context, q querier, ref docstore.Ref, fields map[string]any) error {
	data, err := load(ctx, q, ref)
	if err != nil {
		return err
	}
	for k, v := range fields {
		data[k] = v
	}
	raw, err := encode(data)
	if err != nil {
		return fmt.Errorf("sqlite: encode %s: %w", ref.Path(), err)
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
		 WHERE collection = ? AND id = ?`,
		raw, ref.Collection, ref.ID,
	); err != nil {
		return fmt.Errorf("sqlite: update %s: %w", ref.Path(), err)
	}
	return nil
}

func load(ctx context.Context, q querier, ref docstore.Ref) (map[string]any, error) {
	var raw []byte
	err := q.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?",
		ref.Collection, ref.ID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", docstore.ErrNotFound, ref.Path())
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", ref.Path(), err)
	}
	data, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("sqlite: decode %s: %w", ref.Path(), err)
	}
	return data, nil
}

func encode(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// decode keeps numbers as json.Number so millisecond timestamps survive
// without float rounding.
func decode(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	data := make(map[string]any)
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}
