package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Models table - serialized classifier weights keyed by name
		`CREATE TABLE IF NOT EXISTS models (
			name TEXT PRIMARY KEY,
			architecture TEXT NOT NULL,
			data BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Samples table - the most recent recorded dataset
		`CREATE TABLE IF NOT EXISTS samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL CHECK(label IN ('good', 'bad')),
			sequence INTEGER NOT NULL,
			neck_tilt_left REAL NOT NULL,
			neck_tilt_right REAL NOT NULL,
			shoulder_slope REAL NOT NULL,
			ear_shoulder_left REAL NOT NULL,
			ear_shoulder_right REAL NOT NULL,
			tilt_asymmetry REAL NOT NULL
		)`,

		// Training runs table - history of training attempts
		`CREATE TABLE IF NOT EXISTS training_runs (
			id TEXT PRIMARY KEY,
			model_name TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('succeeded', 'failed', 'discarded')),
			good_samples INTEGER NOT NULL DEFAULT 0,
			bad_samples INTEGER NOT NULL DEFAULT 0,
			epochs INTEGER NOT NULL DEFAULT 0,
			loss REAL NOT NULL DEFAULT 0,
			accuracy REAL NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_samples_label ON samples(label, sequence)`,
		`CREATE INDEX IF NOT EXISTS idx_training_runs_started_at ON training_runs(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
