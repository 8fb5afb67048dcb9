package store

import (
	"context"
	"database/sql"

	"github.com/ayusman/posturecheck/internal/posture"
	"github.com/ayusman/posturecheck/internal/recorder"
)

const (
	labelGood = "good"
	labelBad  = "bad"
)

// SampleRepository stores the recorded training dataset.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Replace discards the stored dataset and writes ds in a single transaction.
func (r *SampleRepository) Replace(ctx context.Context, ds recorder.Dataset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM samples`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (label, sequence, neck_tilt_left, neck_tilt_right, shoulder_slope,
			ear_shoulder_left, ear_shoulder_right, tilt_asymmetry)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	insert := func(label string, features []posture.Features) error {
		for i, f := range features {
			if _, err := stmt.ExecContext(ctx, label, i, f[0], f[1], f[2], f[3], f[4], f[5]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insert(labelGood, ds.Good); err != nil {
		return err
	}
	if err := insert(labelBad, ds.NotGood); err != nil {
		return err
	}

	return tx.Commit()
}

// Load returns the stored dataset in recording order.
func (r *SampleRepository) Load(ctx context.Context) (recorder.Dataset, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT label, neck_tilt_left, neck_tilt_right, shoulder_slope,
			ear_shoulder_left, ear_shoulder_right, tilt_asymmetry
		 FROM samples
		 ORDER BY label, sequence`,
	)
	if err != nil {
		return recorder.Dataset{}, err
	}
	defer rows.Close()

	var ds recorder.Dataset
	for rows.Next() {
		var label string
		var f posture.Features
		if err := rows.Scan(&label, &f[0], &f[1], &f[2], &f[3], &f[4], &f[5]); err != nil {
			return recorder.Dataset{}, err
		}
		if label == labelGood {
			ds.Good = append(ds.Good, f)
		} else {
			ds.NotGood = append(ds.NotGood, f)
		}
	}

	if err := rows.Err(); err != nil {
		return recorder.Dataset{}, err
	}

	return ds, nil
}

// Counts returns the number of stored good and not-good samples.
func (r *SampleRepository) Counts(ctx context.Context) (good, notGood int, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN label = 'good' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN label = 'bad' THEN 1 ELSE 0 END), 0)
		 FROM samples`,
	).Scan(&good, &notGood)
	return good, notGood, err
}

// Clear deletes all stored samples.
func (r *SampleRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM samples`)
	return err
}
