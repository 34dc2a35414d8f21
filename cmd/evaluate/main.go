// Command evaluate scores a saved model on the evaluation session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/apex/log"
	"github.com/apex/log/handlers/logfmt"

	"github.com/IndrashisDas/dl-lab-project/datasets/bnci2014001"
	"github.com/IndrashisDas/dl-lab-project/inference"
	"github.com/IndrashisDas/dl-lab-project/net/transformer"
	"github.com/IndrashisDas/dl-lab-project/preprocess"
	"github.com/IndrashisDas/dl-lab-project/results"
)

func main() {
	modelPath := flag.String("model", "", "saved model .json.zlib file")
	datadir := flag.String("dd", "data", "dataset cache directory")
	dn := flag.String("dn", bnci2014001.Name, "dataset name")
	sid := flag.String("sid", "", "comma-separated subject IDs")
	bs := flag.Int("bs", 64, "batch size")
	lf := flag.Float64("lf", 4.0, "bandpass low cut in Hz")
	hf := flag.Float64("hf", 38.0, "bandpass high cut in Hz")
	emsf := flag.Float64("emsf", 1e-3, "exponential moving standardization factor")
	ibs := flag.Int("ibs", 1000, "standardization init block size")
	tsos := flag.Float64("tsos", -0.5, "trial start offset in seconds")
	tpp := flag.String("tpp", "", "predictions CSV file, empty disables")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	lvl, err := log.ParseLevel(*level)
	if err != nil {
		log.WithError(err).Fatal("bad log level")
	}
	logger := &log.Logger{Handler: logfmt.New(os.Stderr), Level: lvl}

	if *modelPath == "" {
		logger.Fatal("-model is required")
	}
	if *dn != bnci2014001.Name {
		logger.WithField("dataset", *dn).Fatal("unknown dataset")
	}
	subjects, err := bnci2014001.ParseSubjects(*sid)
	if err != nil {
		logger.WithError(err).Fatal("bad -sid")
	}

	model, err := transformer.ReadZlibWeightsFromFile(*modelPath)
	if err != nil {
		logger.WithError(err).Fatal("loading model")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	raws, err := bnci2014001.LoadOrFetch(ctx, *datadir, bnci2014001.DefaultBaseURL, subjects, logger)
	if err != nil {
		logger.WithError(err).Fatal("loading dataset")
	}
	wins, err := preprocess.Pipeline(raws, preprocess.Options{
		LowHz:                   *lf,
		HighHz:                  *hf,
		EMSFactor:               *emsf,
		InitBlockSize:           *ibs,
		TrialStartOffsetSeconds: *tsos,
	})
	if err != nil {
		logger.WithError(err).Fatal("preprocessing")
	}
	eval, ok := wins.SplitSessions()["E"]
	if !ok || eval.Len() == 0 {
		logger.Fatal("no evaluation session in dataset")
	}
	if err := model.CheckInput(len(eval.Wins[0].Data), eval.WindowSize()); err != nil {
		logger.WithError(err).Fatal("model does not fit the preprocessed data")
	}

	res := inference.Evaluate(model, eval, *bs)
	logger.WithFields(log.Fields{
		"windows":  eval.Len(),
		"accuracy": res.Accuracy,
	}).Info("evaluation done")

	fmt.Printf("accuracy: %.4f over %d windows\n", res.Accuracy, eval.Len())
	fmt.Println("confusion matrix (rows = true class):")
	for i, row := range res.Confusion {
		name := fmt.Sprintf("class %d", i)
		if i < len(bnci2014001.ClassNames) {
			name = bnci2014001.ClassNames[i]
		}
		fmt.Printf("%12s", name)
		for _, v := range row {
			fmt.Printf(" %5d", v)
		}
		fmt.Println()
	}

	if *tpp != "" {
		if err := results.WritePredictionsCSV(*tpp, res); err != nil {
			logger.WithError(err).Fatal("writing predictions")
		}
		logger.WithField("file", *tpp).Info("predictions written")
	}
}
