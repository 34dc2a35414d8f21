// Package plots renders learning curves of a training run to PNG files.
package plots

import (
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/IndrashisDas/dl-lab-project/trainer"
)

// LearningCurves writes <name>_loss.png and <name>_accuracy.png under dir.
// The accuracy plot carries a validation line only when the history has one.
func LearningCurves(dir, name string, hist trainer.History) error {
	if err := lossPlot(filepath.Join(dir, name+"_loss.png"), hist); err != nil {
		return err
	}
	return accuracyPlot(filepath.Join(dir, name+"_accuracy.png"), hist)
}

func lossPlot(path string, hist trainer.History) error {
	p := plot.New()
	p.Title.Text = "Training loss"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"

	pts := make(plotter.XYs, len(hist))
	for i, e := range hist {
		pts[i] = plotter.XY{X: float64(e.Epoch), Y: e.TrainLoss}
	}
	if err := plotutil.AddLinePoints(p, "train", pts); err != nil {
		return errors.Wrap(err, "plotting loss")
	}
	return errors.Wrap(p.Save(6*vg.Inch, 4*vg.Inch, path), "saving loss plot")
}

func accuracyPlot(path string, hist trainer.History) error {
	p := plot.New()
	p.Title.Text = "Accuracy"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "accuracy"
	p.Y.Min, p.Y.Max = 0, 1

	train := make(plotter.XYs, len(hist))
	var valid plotter.XYs
	for i, e := range hist {
		train[i] = plotter.XY{X: float64(e.Epoch), Y: e.TrainAcc}
		if e.ValidAcc >= 0 {
			valid = append(valid, plotter.XY{X: float64(e.Epoch), Y: e.ValidAcc})
		}
	}
	args := []interface{}{"train", train}
	if len(valid) > 0 {
		args = append(args, "valid", valid)
	}
	if err := plotutil.AddLinePoints(p, args...); err != nil {
		return errors.Wrap(err, "plotting accuracy")
	}
	return errors.Wrap(p.Save(6*vg.Inch, 4*vg.Inch, path), "saving accuracy plot")
}
