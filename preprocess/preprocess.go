// Package preprocess implements the EEG preprocessing pipeline: channel
// picking, unit conversion, band-pass filtering, exponential moving
// standardization and cutting trial windows from event annotations.
package preprocess

import (
	"math"

	"github.com/pkg/errors"

	"github.com/IndrashisDas/dl-lab-project/datasets"
	"github.com/IndrashisDas/dl-lab-project/parallel"
)

// Step transforms one recording session in place.
type Step func(*datasets.Raw) error

// Apply runs the steps over every session with the machine-default worker
// count.
func Apply(raws []*datasets.Raw, steps ...Step) error {
	return ApplyN(raws, 0, steps...)
}

// ApplyN is Apply with an explicit worker limit; limit <= 0 picks the
// machine default.
func ApplyN(raws []*datasets.Raw, limit int, steps ...Step) error {
	if limit <= 0 {
		limit = parallel.Limit()
	}
	errs := make([]error, len(raws))
	parallel.ForEach(len(raws), limit, func(i int) {
		for _, step := range steps {
			if err := step(raws[i]); err != nil {
				errs[i] = err
				return
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// PickEEG drops everything but the EEG channels (EOG, stim).
func PickEEG() Step {
	return func(r *datasets.Raw) error {
		r.PickChannels(func(c datasets.Channel) bool { return c.Kind == datasets.EEG })
		if len(r.Channels) == 0 {
			return errors.Errorf("preprocess: subject %d session %s has no EEG channels", r.Subject, r.Session)
		}
		return nil
	}
}

// MicroVolts converts the signal from volts to microvolts.
func MicroVolts() Step {
	return func(r *datasets.Raw) error {
		for _, ch := range r.Data {
			for i := range ch {
				ch[i] *= 1e6
			}
		}
		return nil
	}
}

// Options bundles the tunable preprocessing parameters, defaulted to the
// values the training runs were recorded with.
type Options struct {
	LowHz                   float64 // band-pass lower edge
	HighHz                  float64 // band-pass upper edge
	EMSFactor               float64 // standardization decay
	InitBlockSize           int     // standardization warm-up samples
	TrialStartOffsetSeconds float64 // window start relative to the cue
	Workers                 int     // parallel sessions, 0 picks the machine default
}

// DefaultOptions returns the recorded defaults (4-38 Hz, 1e-3, 1000, -0.5 s).
func DefaultOptions() Options {
	return Options{
		LowHz:                   4.0,
		HighHz:                  38.0,
		EMSFactor:               1e-3,
		InitBlockSize:           1000,
		TrialStartOffsetSeconds: -0.5,
	}
}

// Pipeline applies the full preprocessing chain to the sessions and cuts
// them into trial windows.
func Pipeline(raws []*datasets.Raw, o Options) (*datasets.Windows, error) {
	if len(raws) == 0 {
		return nil, errors.New("preprocess: no sessions")
	}
	if err := validate(raws[0].SFreq, o); err != nil {
		return nil, err
	}
	err := ApplyN(raws, o.Workers,
		PickEEG(),
		MicroVolts(),
		Bandpass(o.LowHz, o.HighHz),
		StandardizeEMS(o.EMSFactor, o.InitBlockSize),
	)
	if err != nil {
		return nil, err
	}
	return Windows(raws, o.TrialStartOffsetSeconds)
}

func validate(sfreq float64, o Options) error {
	nyquist := sfreq / 2
	if o.LowHz <= 0 || o.HighHz <= o.LowHz || o.HighHz >= nyquist {
		return errors.Errorf("preprocess: band-pass %g-%g Hz invalid for %g Hz sampling", o.LowHz, o.HighHz, sfreq)
	}
	if o.EMSFactor <= 0 || o.EMSFactor >= 1 {
		return errors.Errorf("preprocess: standardization factor %g outside (0,1)", o.EMSFactor)
	}
	if o.InitBlockSize < 1 {
		return errors.Errorf("preprocess: init block size %d", o.InitBlockSize)
	}
	return nil
}

// Windows cuts one window per annotated event, starting offsetSeconds
// relative to the cue (negative starts before it) and ending at the trial
// stop. All windows of one dataset share the same length.
func Windows(raws []*datasets.Raw, offsetSeconds float64) (*datasets.Windows, error) {
	out := &datasets.Windows{SFreq: raws[0].SFreq, Channels: raws[0].Channels}
	maxClass := 0
	for _, r := range raws {
		offset := int(math.Round(offsetSeconds * r.SFreq))
		for _, ev := range r.Events {
			start := ev.Sample + offset
			stop := ev.Sample + ev.Duration
			if start < 0 || stop > r.NumSamples() {
				return nil, errors.Errorf("preprocess: window [%d,%d) outside session of %d samples", start, stop, r.NumSamples())
			}
			win := datasets.Window{
				Data:    make([][]float64, len(r.Data)),
				Label:   ev.Class,
				Subject: r.Subject,
				Session: r.Session,
			}
			for c, ch := range r.Data {
				seg := make([]float64, stop-start)
				copy(seg, ch[start:stop])
				win.Data[c] = seg
			}
			if ev.Class > maxClass {
				maxClass = ev.Class
			}
			out.Wins = append(out.Wins, win)
		}
	}
	out.NumClasses = maxClass + 1
	return out, nil
}
