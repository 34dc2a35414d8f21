// Command training runs one training experiment from the command line.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/apex/log"
	"github.com/apex/log/handlers/logfmt"

	"github.com/IndrashisDas/dl-lab-project/datasets/bnci2014001"
	"github.com/IndrashisDas/dl-lab-project/experiments"
	"github.com/IndrashisDas/dl-lab-project/parallel"
	"github.com/IndrashisDas/dl-lab-project/results"
)

func main() {
	name := flag.String("n", "", "run name, used for model/plot/prediction files")
	model := flag.String("m", "EEGTransformerBasic", "model name")
	datadir := flag.String("dd", "data", "dataset cache directory")
	ufd := flag.Bool("ufd", false, "train on the full training session, no validation split")
	epochs := flag.Int("e", 100, "training epochs")
	bs := flag.Int("bs", 64, "batch size")
	lr := flag.Float64("lr", 2e-3, "initial learning rate")
	tl := flag.String("tl", "CrossEntropyLoss", "training loss")
	opt := flag.String("o", "Adam", "optimizer: SGD, Momentum, Adam, AdamW")
	lrs := flag.String("lrs", "Constant", "LR schedule: Constant, Step, Exponential, Cosine")
	nl := flag.Int("nl", 2, "encoder layers")
	nh := flag.Int("nh", 8, "attention heads")
	ies := flag.Int("ies", 40, "input embedding size")
	hs := flag.Int("hs", 64, "feed-forward hidden size")
	dr := flag.Float64("dr", 0.5, "dropout probability")
	dpe := flag.Bool("dpe", false, "deterministic (sinusoidal) positional encoding")
	lpe := flag.Bool("lpe", false, "learned positional encoding")
	dn := flag.String("dn", bnci2014001.Name, "dataset name")
	sid := flag.String("sid", "", "comma-separated subject IDs, e.g. 1,2,3")
	lf := flag.Float64("lf", 4.0, "bandpass low cut in Hz")
	hf := flag.Float64("hf", 38.0, "bandpass high cut in Hz")
	emsf := flag.Float64("emsf", 1e-3, "exponential moving standardization factor")
	ibs := flag.Int("ibs", 1000, "standardization init block size")
	tsos := flag.Float64("tsos", -0.5, "trial start offset in seconds")
	tss := flag.Float64("tss", 0.8, "training set fraction of the training session")
	augment := flag.Bool("aug", false, "class-conditional segment augmentation")
	mp := flag.String("mp", "models", "models output directory")
	pp := flag.String("pp", "plots", "plots output directory")
	tpp := flag.String("tpp", "predictions", "predictions output directory")
	resume := flag.Bool("resume", false, "resume training from the run's checkpoint")
	resultsPath := flag.String("results", "", "SQLite results database, empty disables")
	seed := flag.Int64("seed", 1, "random seed")
	workers := flag.Int("j", 0, "worker count, 0 picks the machine default")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := newLogger(*level)
	if err != nil {
		log.WithError(err).Fatal("bad log level")
	}
	if *name == "" {
		logger.Fatal("-n run name is required")
	}
	if *dpe && *lpe {
		logger.Fatal("-dpe and -lpe are mutually exclusive")
	}

	subjects, err := bnci2014001.ParseSubjects(*sid)
	if err != nil {
		logger.WithError(err).Fatal("bad -sid")
	}

	e := experiments.Base()
	e.Name = *name
	e.Dataset = *dn
	e.Model = *model
	e.Subjects = subjects
	e.Resume = *resume
	e.TrainSplit = *tss

	e.HP.Epochs = *epochs
	e.HP.BatchSize = *bs
	e.HP.LR = *lr
	e.HP.Loss = *tl
	e.HP.Optimizer = *opt
	e.HP.Schedule = *lrs
	e.HP.Seed = *seed
	e.HP.Workers = workerCount(*workers)
	e.HP.Augment = *augment
	e.HP.UseFullTrainSet = *ufd

	e.Net.NumLayers = *nl
	e.Net.NumHeads = *nh
	e.Net.InputEmbeddingSize = *ies
	e.Net.HiddenSize = *hs
	e.Net.Dropout = *dr
	e.Net.PositionalEncoding = posEnc(*dpe, *lpe)

	e.Prep.LowHz = *lf
	e.Prep.HighHz = *hf
	e.Prep.EMSFactor = *emsf
	e.Prep.InitBlockSize = *ibs
	e.Prep.TrialStartOffsetSeconds = *tsos

	runner := &experiments.Runner{
		DataDir:   *datadir,
		ModelsDir: *mp,
		PlotsDir:  *pp,
		PredsDir:  *tpp,
		Log:       logger,
	}
	if *resultsPath != "" {
		db, err := results.Open(*resultsPath)
		if err != nil {
			logger.WithError(err).Fatal("opening results database")
		}
		runner.Results = db
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := runner.Run(ctx, e)
	closeResults(runner, logger)
	if err != nil {
		logger.WithError(err).Fatal("training failed")
	}
	logger.WithFields(log.Fields{
		"run":      *name,
		"test_acc": res.Accuracy,
	}).Info("run complete")
}

// closeResults flushes the results database before the process exits.
// log.Fatal does not run deferred calls, so fatal paths go through here first.
func closeResults(runner *experiments.Runner, logger log.Interface) {
	if runner.Results == nil {
		return
	}
	if err := runner.Results.Close(); err != nil {
		logger.WithError(err).Error("closing results database")
	}
}

func newLogger(level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return &log.Logger{Handler: logfmt.New(os.Stderr), Level: lvl}, nil
}

func posEnc(dpe, lpe bool) string {
	switch {
	case dpe:
		return "sinusoidal"
	case lpe:
		return "learned"
	default:
		return ""
	}
}

func workerCount(j int) int {
	if j > 0 {
		return j
	}
	return parallel.Limit()
}
