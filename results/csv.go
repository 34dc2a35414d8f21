package results

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/IndrashisDas/dl-lab-project/inference"
)

// WritePredictionsCSV writes one row per evaluated window: index, true
// label, predicted label, and the raw score of every class.
func WritePredictionsCSV(path string, res *inference.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating predictions file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"window", "label", "prediction"}
	classes := 0
	if len(res.Scores) > 0 {
		classes = len(res.Scores[0])
	}
	for c := 0; c < classes; c++ {
		header = append(header, "score_"+strconv.Itoa(c))
	}
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for i, pred := range res.Predictions {
		row := []string{
			strconv.Itoa(i),
			strconv.Itoa(res.Labels[i]),
			strconv.Itoa(pred),
		}
		for _, s := range res.Scores[i] {
			row = append(row, strconv.FormatFloat(s, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return errors.Wrapf(err, "writing row %d", i)
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flushing predictions")
}
