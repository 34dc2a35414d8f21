// Package trainer provides high-level training orchestration for the EEG
// transformer. It runs the epoch loop over shuffled minibatches, applies the
// learning-rate schedule, tracks per-epoch metrics and keeps the best model
// on disk.
package trainer
