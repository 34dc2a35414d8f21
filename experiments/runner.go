package experiments

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/IndrashisDas/dl-lab-project/datasets"
	"github.com/IndrashisDas/dl-lab-project/datasets/bnci2014001"
	"github.com/IndrashisDas/dl-lab-project/inference"
	"github.com/IndrashisDas/dl-lab-project/net/transformer"
	"github.com/IndrashisDas/dl-lab-project/plots"
	"github.com/IndrashisDas/dl-lab-project/preprocess"
	"github.com/IndrashisDas/dl-lab-project/results"
	"github.com/IndrashisDas/dl-lab-project/trainer"
)

// Runner executes experiments against a shared on-disk dataset cache.
// Output directories left empty disable the matching artifact.
type Runner struct {
	DataDir   string
	BaseURL   string // dataset download base, empty uses the dataset default
	ModelsDir string
	PlotsDir  string
	PredsDir  string
	Results   *results.DB
	Log       log.Interface
	Workers   int // concurrent experiments, <=0 runs one at a time

	fetchMu sync.Mutex
}

// Outcome is the result of one executed experiment.
type Outcome struct {
	Experiment string
	TestAcc    float64
	Err        error
}

// RunAll executes every experiment, at most Workers at a time. Individual
// failures land in the outcome, not the returned error; only context
// cancellation aborts the whole batch.
func (r *Runner) RunAll(ctx context.Context, exps []Experiment) ([]Outcome, error) {
	outcomes := make([]Outcome, len(exps))
	g, ctx := errgroup.WithContext(ctx)
	limit := r.Workers
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, e := range exps {
		i, e := i, e
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = Outcome{Experiment: e.Name, Err: err}
				return err
			}
			res, err := r.Run(ctx, e)
			outcomes[i] = Outcome{Experiment: e.Name, Err: err}
			if res != nil {
				outcomes[i].TestAcc = res.Accuracy
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	return outcomes, err
}

// Run executes one experiment end to end: load or fetch the data, preprocess
// and window it, train, then score the evaluation session. It returns the
// evaluation result of the best model seen during training.
func (r *Runner) Run(ctx context.Context, e Experiment) (*inference.Result, error) {
	logger := r.Log
	if logger == nil {
		logger = log.Log
	}
	logger = logger.WithField("experiment", e.Name)

	if e.Dataset != bnci2014001.Name {
		return nil, errors.Errorf("unknown dataset %q", e.Dataset)
	}

	r.fetchMu.Lock()
	raws, err := bnci2014001.LoadOrFetch(ctx, r.DataDir, r.baseURL(), e.Subjects, logger)
	r.fetchMu.Unlock()
	if err != nil {
		return nil, err
	}

	prep := e.Prep
	if prep.Workers == 0 {
		prep.Workers = e.HP.Workers
	}
	wins, err := preprocess.Pipeline(raws, prep)
	if err != nil {
		return nil, err
	}
	train, valid, eval, err := Split(wins, e.TrainSplit, e.HP.UseFullTrainSet)
	if err != nil {
		return nil, err
	}
	logger.WithFields(log.Fields{
		"train": train.Len(),
		"valid": lenOrZero(valid),
		"eval":  eval.Len(),
	}).Info("dataset ready")

	cfg := e.Net
	cfg.NumChannels = len(train.Wins[0].Data)
	cfg.WindowSize = train.WindowSize()
	cfg.NumClasses = train.NumClasses

	rng := rand.New(rand.NewSource(e.HP.Seed))
	model, err := transformer.Build(e.Model, rng, cfg)
	if err != nil {
		return nil, err
	}

	var dst string
	if r.ModelsDir != "" {
		if err := os.MkdirAll(r.ModelsDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating models dir")
		}
		dst = filepath.Join(r.ModelsDir, e.Name+".json.zlib")
	}
	if e.Resume && dst != "" {
		if _, statErr := os.Stat(dst); statErr == nil {
			resumed, err := trainer.Resume(true, dst)
			if err != nil {
				return nil, err
			}
			if err := resumed.CheckInput(cfg.NumChannels, cfg.WindowSize); err != nil {
				return nil, errors.Wrap(err, "resuming checkpoint")
			}
			model = resumed
			logger.Info("resumed from checkpoint")
		}
	}

	started := time.Now()
	hist, err := trainer.Loop(ctx, model, train, valid, trainer.Config{
		HP:       e.HP,
		Log:      logger,
		DstModel: dst,
	})
	if err != nil {
		return nil, err
	}

	best := model
	if dst != "" {
		if best, err = transformer.ReadZlibWeightsFromFile(dst); err != nil {
			return nil, errors.Wrap(err, "reloading best model")
		}
	}
	res := inference.Evaluate(best, eval, e.HP.BatchSize)
	logger.WithField("test_acc", res.Accuracy).Info("experiment done")

	if r.PlotsDir != "" {
		if err := os.MkdirAll(r.PlotsDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating plots dir")
		}
		if err := plots.LearningCurves(r.PlotsDir, e.Name, hist); err != nil {
			return nil, err
		}
	}
	if r.PredsDir != "" {
		if err := os.MkdirAll(r.PredsDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating predictions dir")
		}
		if err := results.WritePredictionsCSV(filepath.Join(r.PredsDir, e.Name+".csv"), res); err != nil {
			return nil, err
		}
	}
	if r.Results != nil {
		if err := r.record(e, started, hist, res.Accuracy); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Split carves a windowed dataset into train/valid/eval: the "T" session
// splits at frac into train and validation, the "E" session is held out for
// evaluation. With fullTrain the whole "T" session trains and valid is nil.
func Split(w *datasets.Windows, frac float64, fullTrain bool) (train, valid, eval *datasets.Windows, err error) {
	sessions := w.SplitSessions()
	trainSess, ok := sessions["T"]
	if !ok {
		return nil, nil, nil, errors.New("no training session in dataset")
	}
	eval, ok = sessions["E"]
	if !ok {
		return nil, nil, nil, errors.New("no evaluation session in dataset")
	}
	if fullTrain {
		return trainSess, nil, eval, nil
	}
	if frac <= 0 || frac >= 1 {
		return nil, nil, nil, errors.Errorf("training split %v outside (0, 1)", frac)
	}
	train, valid = trainSess.SplitFraction(frac)
	if train.Len() == 0 {
		return nil, nil, nil, errors.Errorf("training split %v of %d windows leaves no training data", frac, trainSess.Len())
	}
	return train, valid, eval, nil
}

func (r *Runner) record(e Experiment, started time.Time, hist trainer.History, testAcc float64) error {
	subjects := make([]string, len(e.Subjects))
	for i, s := range e.Subjects {
		subjects[i] = strconv.Itoa(s)
	}
	id, err := r.Results.InsertRun(results.Run{
		Name:     e.Name,
		Model:    e.Model,
		Dataset:  e.Dataset,
		Subjects: strings.Join(subjects, ","),
		Started:  started,
		HP:       e.HP,
	})
	if err != nil {
		return err
	}
	if err := r.Results.InsertEpochs(id, hist); err != nil {
		return err
	}
	return r.Results.FinishRun(id, testAcc)
}

func (r *Runner) baseURL() string {
	if r.BaseURL != "" {
		return r.BaseURL
	}
	return bnci2014001.DefaultBaseURL
}

func lenOrZero(w *datasets.Windows) int {
	if w == nil {
		return 0
	}
	return w.Len()
}
