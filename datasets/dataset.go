// Package datasets implements the EEG recording and windowed dataset types
// shared by the preprocessing pipeline, the trainer and the dataset loaders.
package datasets

import "math/rand"

// ChannelKind classifies a recording channel.
type ChannelKind int

const (
	EEG ChannelKind = iota
	EOG
	Stim
)

// Channel describes one recording channel.
type Channel struct {
	Name string      `json:"name"`
	Kind ChannelKind `json:"kind"`
}

// Event is one annotated trial onset inside a recording session.
type Event struct {
	Sample   int `json:"sample"`   // onset sample index
	Duration int `json:"duration"` // trial length in samples
	Class    int `json:"class"`    // 0-based class code
}

// Raw is one continuous recording session of one subject.
type Raw struct {
	Subject  int
	Session  string // "T" (training) or "E" (evaluation)
	SFreq    float64
	Channels []Channel
	Data     [][]float64 // [channel][sample]
	Events   []Event
}

// NumSamples reports the session length in samples.
func (r *Raw) NumSamples() int {
	if len(r.Data) == 0 {
		return 0
	}
	return len(r.Data[0])
}

// PickChannels keeps only the channels for which keep returns true,
// dropping the matching rows of Data.
func (r *Raw) PickChannels(keep func(Channel) bool) {
	var chans []Channel
	var data [][]float64
	for i, c := range r.Channels {
		if keep(c) {
			chans = append(chans, c)
			data = append(data, r.Data[i])
		}
	}
	r.Channels = chans
	r.Data = data
}

// Window is one trial cut out of a session.
type Window struct {
	Data    [][]float64 // [channel][sample]
	Label   int
	Subject int
	Session string
}

// Windows is a windowed dataset ready for training.
type Windows struct {
	Wins       []Window
	SFreq      float64
	Channels   []Channel
	NumClasses int
}

// Len reports the number of windows.
func (w *Windows) Len() int { return len(w.Wins) }

// WindowSize reports the per-window sample count, 0 when empty.
func (w *Windows) WindowSize() int {
	if len(w.Wins) == 0 || len(w.Wins[0].Data) == 0 {
		return 0
	}
	return len(w.Wins[0].Data[0])
}

// SplitSessions groups the windows by recording session.
func (w *Windows) SplitSessions() map[string]*Windows {
	out := make(map[string]*Windows)
	for _, win := range w.Wins {
		s, ok := out[win.Session]
		if !ok {
			s = &Windows{SFreq: w.SFreq, Channels: w.Channels, NumClasses: w.NumClasses}
			out[win.Session] = s
		}
		s.Wins = append(s.Wins, win)
	}
	return out
}

// SplitFraction splits into a head of frac*Len() windows and the remaining
// tail, without reordering. Keeping the order lets the validation set come
// off the end of the training session.
func (w *Windows) SplitFraction(frac float64) (head, tail *Windows) {
	cut := int(float64(len(w.Wins)) * frac)
	head = &Windows{Wins: w.Wins[:cut], SFreq: w.SFreq, Channels: w.Channels, NumClasses: w.NumClasses}
	tail = &Windows{Wins: w.Wins[cut:], SFreq: w.SFreq, Channels: w.Channels, NumClasses: w.NumClasses}
	return head, tail
}

// Shuffle permutes the windows in place.
func (w *Windows) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(w.Wins), func(i, j int) {
		w.Wins[i], w.Wins[j] = w.Wins[j], w.Wins[i]
	})
}
