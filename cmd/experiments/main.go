// Command experiments runs every training experiment of an HCL manifest.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/apex/log"
	"github.com/apex/log/handlers/logfmt"

	"github.com/IndrashisDas/dl-lab-project/experiments"
	"github.com/IndrashisDas/dl-lab-project/results"
)

func main() {
	manifest := flag.String("f", "experiments.hcl", "experiment manifest file")
	datadir := flag.String("dd", "data", "dataset cache directory")
	mp := flag.String("mp", "models", "models output directory")
	pp := flag.String("pp", "plots", "plots output directory")
	tpp := flag.String("tpp", "predictions", "predictions output directory")
	resultsPath := flag.String("results", "", "SQLite results database, empty disables")
	workers := flag.Int("j", 1, "experiments to run concurrently")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	lvl, err := log.ParseLevel(*level)
	if err != nil {
		log.WithError(err).Fatal("bad log level")
	}
	logger := &log.Logger{Handler: logfmt.New(os.Stderr), Level: lvl}

	exps, err := experiments.Load(*manifest)
	if err != nil {
		logger.WithError(err).Fatal("loading manifest")
	}
	logger.WithField("experiments", len(exps)).Info("manifest loaded")

	runner := &experiments.Runner{
		DataDir:   *datadir,
		ModelsDir: *mp,
		PlotsDir:  *pp,
		PredsDir:  *tpp,
		Log:       logger,
		Workers:   *workers,
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

	outcomes, err := runner.RunAll(ctx, exps)
	// os.Exit below skips deferred calls, so flush the results database here.
	if runner.Results != nil {
		if cerr := runner.Results.Close(); cerr != nil {
			logger.WithError(cerr).Error("closing results database")
		}
	}
	if err != nil {
		logger.WithError(err).Error("batch aborted")
	}
	failed := 0
	for _, o := range outcomes {
		entry := logger.WithField("experiment", o.Experiment)
		if o.Err != nil {
			failed++
			entry.WithError(o.Err).Error("experiment failed")
			continue
		}
		entry.WithField("test_acc", o.TestAcc).Info("experiment done")
	}
	if failed > 0 || err != nil {
		os.Exit(1)
	}
}
