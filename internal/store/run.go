package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the outcome of a training run.
type RunStatus string

const (
	// RunSucceeded means the trained model was installed.
	RunSucceeded RunStatus = "succeeded"
	// RunFailed means training returned an error.
	RunFailed RunStatus = "failed"
	// RunDiscarded means a reset happened while training and the result was dropped.
	RunDiscarded RunStatus = "discarded"
)

// TrainingRun records one training attempt.
type TrainingRun struct {
	ID          string    `json:"id"`
	ModelName   string    `json:"model_name"`
	Status      RunStatus `json:"status"`
	GoodSamples int       `json:"good_samples"`
	BadSamples  int       `json:"bad_samples"`
	Epochs      int       `json:"epochs"`
	Loss        float64   `json:"loss"`
	Accuracy    float64   `json:"accuracy"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// RunRepository stores training run history.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the training run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Create inserts a run. An empty ID is replaced with a new UUID.
func (r *RunRepository) Create(ctx context.Context, run *TrainingRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO training_runs (id, model_name, status, good_samples, bad_samples,
			epochs, loss, accuracy, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ModelName, string(run.Status), run.GoodSamples, run.BadSamples,
		run.Epochs, run.Loss, run.Accuracy, run.Error, run.StartedAt, run.FinishedAt,
	)
	return err
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*TrainingRun, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, model_name, status, good_samples, bad_samples, epochs, loss, accuracy,
			error, started_at, finished_at
		 FROM training_runs WHERE id = ?`,
		id,
	)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs first. A non-positive limit returns all runs.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*TrainingRun, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, model_name, status, good_samples, bad_samples, epochs, loss, accuracy,
			error, started_at, finished_at
		 FROM training_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*TrainingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*TrainingRun, error) {
	run := &TrainingRun{}
	var status string
	err := s.Scan(&run.ID, &run.ModelName, &status, &run.GoodSamples, &run.BadSamples,
		&run.Epochs, &run.Loss, &run.Accuracy, &run.Error, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	return run, nil
}
