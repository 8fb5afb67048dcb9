package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Model is a serialized classifier stored under a name.
type Model struct {
	Name         string
	Architecture string
	Data         []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ModelRepository stores serialized models.
type ModelRepository struct {
	db *sql.DB
}

// Models returns the model repository for this store.
func (s *Store) Models() *ModelRepository {
	return &ModelRepository{db: s.db}
}

// Save inserts the model or replaces the one stored under the same name.
func (r *ModelRepository) Save(ctx context.Context, m *Model) error {
	now := time.Now()
	m.UpdatedAt = now
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO models (name, architecture, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			architecture = excluded.architecture,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		m.Name, m.Architecture, m.Data, m.CreatedAt, m.UpdatedAt,
	)
	return err
}

// Get retrieves the model stored under name.
func (r *ModelRepository) Get(ctx context.Context, name string) (*Model, error) {
	m := &Model{}
	err := r.db.QueryRowContext(ctx,
		`SELECT name, architecture, data, created_at, updated_at
		 FROM models WHERE name = ?`,
		name,
	).Scan(&m.Name, &m.Architecture, &m.Data, &m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return m, nil
}

// Delete removes the model stored under name.
func (r *ModelRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM models WHERE name = ?`, name)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
