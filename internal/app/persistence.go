package app

import (
	"context"

	"github.com/ayusman/posturecheck/internal/classifier"
	"github.com/ayusman/posturecheck/internal/recorder"
	"github.com/ayusman/posturecheck/internal/store"
)

// ModelStore persists models, the training dataset and training history.
type ModelStore interface {
	SaveModel(ctx context.Context, key string, data []byte) error
	LoadModel(ctx context.Context, key string) ([]byte, error)
	SaveDataset(ctx context.Context, ds recorder.Dataset) error
	RecordRun(ctx context.Context, run *store.TrainingRun) error
}

// SQLiteStore adapts a *store.Store to ModelStore.
type SQLiteStore struct {
	st *store.Store
}

// NewSQLiteStore wraps st.
func NewSQLiteStore(st *store.Store) *SQLiteStore {
	return &SQLiteStore{st: st}
}

// SaveModel stores data under key.
func (s *SQLiteStore) SaveModel(ctx context.Context, key string, data []byte) error {
	return s.st.Models().Save(ctx, &store.Model{
		Name:         key,
		Architecture: classifier.Architecture,
		Data:         data,
	})
}

// LoadModel returns the data stored under key, or store.ErrNotFound.
func (s *SQLiteStore) LoadModel(ctx context.Context, key string) ([]byte, error) {
	m, err := s.st.Models().Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return m.Data, nil
}

// SaveDataset replaces the stored samples with ds.
func (s *SQLiteStore) SaveDataset(ctx context.Context, ds recorder.Dataset) error {
	return s.st.Samples().Replace(ctx, ds)
}

// RecordRun appends a training run to the history.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *store.TrainingRun) error {
	return s.st.Runs().Create(ctx, run)
}
