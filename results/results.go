// Package results persists training runs to a SQLite database and writes
// per-window prediction tables for offline analysis.
package results

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/IndrashisDas/dl-lab-project/learning"
	"github.com/IndrashisDas/dl-lab-project/trainer"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL,
	model          TEXT NOT NULL,
	dataset        TEXT NOT NULL,
	subjects       TEXT NOT NULL,
	started_at     TEXT NOT NULL,
	epochs         INTEGER NOT NULL,
	batch_size     INTEGER NOT NULL,
	lr             REAL NOT NULL,
	loss           TEXT NOT NULL,
	optimizer      TEXT NOT NULL,
	schedule       TEXT NOT NULL,
	seed           INTEGER NOT NULL,
	augment        INTEGER NOT NULL,
	use_full_train INTEGER NOT NULL,
	test_acc       REAL
);
CREATE TABLE IF NOT EXISTS epochs (
	run_id     INTEGER NOT NULL REFERENCES runs(id),
	epoch      INTEGER NOT NULL,
	lr         REAL NOT NULL,
	train_loss REAL NOT NULL,
	train_acc  REAL NOT NULL,
	valid_acc  REAL NOT NULL,
	PRIMARY KEY (run_id, epoch)
);`

// DB is a handle on the results database.
type DB struct {
	sql *sql.DB
}

// Run describes one training run.
type Run struct {
	Name     string
	Model    string
	Dataset  string
	Subjects string
	Started  time.Time
	HP       learning.HyperParameters
}

// Open opens (creating if needed) the results database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening results db")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating results schema")
	}
	return &DB{sql: db}, nil
}

// Close closes the database.
func (db *DB) Close() error { return db.sql.Close() }

// InsertRun records a new run and returns its id.
func (db *DB) InsertRun(r Run) (int64, error) {
	res, err := db.sql.Exec(`INSERT INTO runs
		(name, model, dataset, subjects, started_at, epochs, batch_size, lr,
		 loss, optimizer, schedule, seed, augment, use_full_train)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Name, r.Model, r.Dataset, r.Subjects, r.Started.UTC().Format(time.RFC3339),
		r.HP.Epochs, r.HP.BatchSize, r.HP.LR,
		r.HP.Loss, r.HP.Optimizer, r.HP.Schedule, r.HP.Seed,
		boolInt(r.HP.Augment), boolInt(r.HP.UseFullTrainSet))
	if err != nil {
		return 0, errors.Wrap(err, "inserting run")
	}
	id, err := res.LastInsertId()
	return id, errors.Wrap(err, "run id")
}

// InsertEpochs stores the per-epoch history of a run.
func (db *DB) InsertEpochs(runID int64, hist trainer.History) error {
	tx, err := db.sql.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning epochs tx")
	}
	stmt, err := tx.Prepare(`INSERT INTO epochs
		(run_id, epoch, lr, train_loss, train_acc, valid_acc)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "preparing epochs insert")
	}
	defer stmt.Close()
	for _, e := range hist {
		if _, err := stmt.Exec(runID, e.Epoch, e.LR, e.TrainLoss, e.TrainAcc, e.ValidAcc); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "inserting epoch %d", e.Epoch)
		}
	}
	return errors.Wrap(tx.Commit(), "committing epochs")
}

// FinishRun stores the final test accuracy of a run.
func (db *DB) FinishRun(runID int64, testAcc float64) error {
	_, err := db.sql.Exec(`UPDATE runs SET test_acc = ? WHERE id = ?`, testAcc, runID)
	return errors.Wrap(err, "finishing run")
}

// TestAccuracy reads back the recorded test accuracy of a run.
func (db *DB) TestAccuracy(runID int64) (float64, error) {
	var acc sql.NullFloat64
	err := db.sql.QueryRow(`SELECT test_acc FROM runs WHERE id = ?`, runID).Scan(&acc)
	if err != nil {
		return 0, errors.Wrap(err, "reading test accuracy")
	}
	if !acc.Valid {
		return 0, errors.Errorf("run %d has no test accuracy yet", runID)
	}
	return acc.Float64, nil
}

// EpochCount reports how many epochs a run has recorded.
func (db *DB) EpochCount(runID int64) (int, error) {
	var n int
	err := db.sql.QueryRow(`SELECT COUNT(*) FROM epochs WHERE run_id = ?`, runID).Scan(&n)
	return n, errors.Wrap(err, "counting epochs")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
