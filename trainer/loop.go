package trainer

import (
	"context"
	"math/rand"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/IndrashisDas/dl-lab-project/datasets"
	"github.com/IndrashisDas/dl-lab-project/inference"
	"github.com/IndrashisDas/dl-lab-project/learning"
	"github.com/IndrashisDas/dl-lab-project/net/transformer"
)

// Config wires one training run together.
type Config struct {
	HP       learning.HyperParameters
	Log      log.Interface // nil uses the package default logger
	DstModel string        // best-checkpoint path, empty disables saving
}

// Loop trains m on train for HP.Epochs epochs of shuffled minibatches and
// returns the per-epoch history. After every epoch it evaluates on valid
// (skipped when valid is nil or empty) and rewrites DstModel whenever the
// tracked accuracy improves, so the file always holds the best model seen.
// The context is checked between epochs.
func Loop(ctx context.Context, m *transformer.Model, train, valid *datasets.Windows, cfg Config) (History, error) {
	hp := cfg.HP
	logger := cfg.Log
	if logger == nil {
		logger = log.Log
	}
	if train == nil || train.Len() == 0 {
		return nil, errors.New("trainer: empty training set")
	}

	loss, err := learning.NewLoss(hp.Loss)
	if err != nil {
		return nil, err
	}
	opt, err := learning.NewOptimizer(hp.Optimizer)
	if err != nil {
		return nil, err
	}
	sched, err := learning.NewSchedule(hp.Schedule, hp.LR, hp.Epochs)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(hp.Seed))
	idx := make([]int, train.Len())
	for i := range idx {
		idx[i] = i
	}
	batchSize := hp.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	var hist History
	best := -1.0
	for epoch := 0; epoch < hp.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}
		lr := sched.LR(epoch)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		sumLoss, correct, total := 0.0, 0, 0
		for start := 0; start < len(idx); start += batchSize {
			stop := start + batchSize
			if stop > len(idx) {
				stop = len(idx)
			}
			batch := &datasets.Windows{
				SFreq:      train.SFreq,
				Channels:   train.Channels,
				NumClasses: train.NumClasses,
			}
			for _, j := range idx[start:stop] {
				batch.Wins = append(batch.Wins, train.Wins[j])
			}
			if hp.Augment {
				batch.Wins = append(batch.Wins, Interaug(rng, train, stop-start)...)
			}
			all := make([]int, len(batch.Wins))
			for i := range all {
				all[i] = i
			}
			x, labels := inference.Batch(batch, all)

			logits := m.Forward(x, true)
			lossVal, grad := loss.Compute(logits, labels)
			m.Backward(grad)
			opt.Step(m.Params(), lr)

			classes := logits.Shape[1]
			for i, label := range labels {
				if inference.Argmax(logits.Data[i*classes:(i+1)*classes]) == label {
					correct++
				}
			}
			sumLoss += lossVal * float64(len(labels))
			total += len(labels)
		}

		stats := EpochStats{
			Epoch:     epoch,
			LR:        lr,
			TrainLoss: sumLoss / float64(total),
			TrainAcc:  float64(correct) / float64(total),
			ValidAcc:  -1,
		}
		if valid != nil && valid.Len() > 0 {
			stats.ValidAcc = inference.Evaluate(m, valid, batchSize).Accuracy
		}
		hist = append(hist, stats)

		logger.WithFields(log.Fields{
			"epoch":      epoch,
			"lr":         lr,
			"train_loss": stats.TrainLoss,
			"train_acc":  stats.TrainAcc,
			"valid_acc":  stats.ValidAcc,
		}).Info("epoch done")

		if cur := metric(stats); cur > best {
			best = cur
			if cfg.DstModel != "" {
				if err := m.WriteZlibWeightsToFile(cfg.DstModel); err != nil {
					return hist, errors.Wrap(err, "saving best model")
				}
			}
		}
	}
	return hist, nil
}
