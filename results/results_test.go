package results

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IndrashisDas/dl-lab-project/inference"
	"github.com/IndrashisDas/dl-lab-project/learning"
	"github.com/IndrashisDas/dl-lab-project/trainer"
)

func TestRunLifecycle(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer db.Close()

	hp := learning.Defaults()
	id, err := db.InsertRun(Run{
		Name:     "s1-basic",
		Model:    "EEGTransformerBasic",
		Dataset:  "BNCI2014001",
		Subjects: "1",
		Started:  time.Now(),
		HP:       hp,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	hist := trainer.History{
		{Epoch: 0, LR: hp.LR, TrainLoss: 1.4, TrainAcc: 0.3, ValidAcc: 0.25},
		{Epoch: 1, LR: hp.LR, TrainLoss: 1.1, TrainAcc: 0.5, ValidAcc: 0.4},
	}
	require.NoError(t, db.InsertEpochs(id, hist))

	n, err := db.EpochCount(id)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = db.TestAccuracy(id)
	require.Error(t, err, "test accuracy should be unset before FinishRun")

	require.NoError(t, db.FinishRun(id, 0.61))
	acc, err := db.TestAccuracy(id)
	require.NoError(t, err)
	require.InDelta(t, 0.61, acc, 1e-12)
}

func TestCloseFlushesToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	db, err := Open(path)
	require.NoError(t, err)

	id, err := db.InsertRun(Run{
		Name:    "s1-basic",
		Model:   "EEGTransformerBasic",
		Started: time.Now(),
		HP:      learning.Defaults(),
	})
	require.NoError(t, err)
	require.NoError(t, db.FinishRun(id, 0.5))
	require.NoError(t, db.Close())

	// Reopen to verify the run survived the close.
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	acc, err := db.TestAccuracy(id)
	require.NoError(t, err)
	require.InDelta(t, 0.5, acc, 1e-12)
}

func TestWritePredictionsCSV(t *testing.T) {
	res := &inference.Result{
		Predictions: []int{1, 0},
		Labels:      []int{1, 1},
		Scores:      [][]float64{{0.2, 0.8}, {0.7, 0.3}},
	}
	path := filepath.Join(t.TempDir(), "preds.csv")
	require.NoError(t, WritePredictionsCSV(path, res))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"window", "label", "prediction", "score_0", "score_1"}, rows[0])
	require.Equal(t, []string{"0", "1", "1", "0.2", "0.8"}, rows[1])
	require.Equal(t, []string{"1", "1", "0", "0.7", "0.3"}, rows[2])
}
