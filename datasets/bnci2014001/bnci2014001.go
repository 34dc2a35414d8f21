// Package bnci2014001 loads the BNCI2014001 four-class motor imagery
// dataset: 9 subjects, two sessions each ("T" for training, "E" for
// evaluation), 22 EEG plus 3 EOG channels sampled at 250 Hz, 288 cued
// trials per session.
package bnci2014001

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/IndrashisDas/dl-lab-project/datasets"
	"github.com/pkg/errors"
)

const (
	Name        = "BNCI2014001"
	NumSubjects = 9
	NumClasses  = 4
	SFreq       = 250.0

	// TrialSeconds is the cued motor imagery period of one trial.
	TrialSeconds = 4.0
)

// Sessions of each subject: training first, then evaluation.
var Sessions = []string{"T", "E"}

// ClassNames maps class codes to their motor imagery task.
var ClassNames = []string{"left_hand", "right_hand", "feet", "tongue"}

var eegNames = []string{
	"Fz", "FC3", "FC1", "FCz", "FC2", "FC4",
	"C5", "C3", "C1", "Cz", "C2", "C4", "C6",
	"CP3", "CP1", "CPz", "CP2", "CP4",
	"P1", "Pz", "P2", "POz",
}

var eogNames = []string{"EOG-left", "EOG-central", "EOG-right"}

// Channels returns the full montage, EEG first, then EOG.
func Channels() []datasets.Channel {
	chans := make([]datasets.Channel, 0, len(eegNames)+len(eogNames))
	for _, n := range eegNames {
		chans = append(chans, datasets.Channel{Name: n, Kind: datasets.EEG})
	}
	for _, n := range eogNames {
		chans = append(chans, datasets.Channel{Name: n, Kind: datasets.EOG})
	}
	return chans
}

// SessionFile names the cache file of one subject session, e.g. "A03T.eeg.gz".
func SessionFile(subject int, session string) string {
	return fmt.Sprintf("A%02d%s.eeg.gz", subject, session)
}

// ParseSubjects parses the comma-separated -sid flag value.
func ParseSubjects(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("bnci2014001: no subject ids given")
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "bnci2014001: bad subject id %q", part)
		}
		if id < 1 || id > NumSubjects {
			return nil, errors.Errorf("bnci2014001: subject id %d out of range 1..%d", id, NumSubjects)
		}
		out = append(out, id)
	}
	return out, nil
}

// Cached reports whether every session file for the subjects is present in dir.
func Cached(dir string, subjects []int) bool {
	for _, sid := range subjects {
		for _, sess := range Sessions {
			if _, err := os.Stat(filepath.Join(dir, SessionFile(sid, sess))); err != nil {
				return false
			}
		}
	}
	return len(subjects) > 0
}

// Load reads the cached sessions of the given subjects, both sessions per
// subject, in subject order with "T" before "E".
func Load(dir string, subjects []int) ([]*datasets.Raw, error) {
	var raws []*datasets.Raw
	for _, sid := range subjects {
		for _, sess := range Sessions {
			path := filepath.Join(dir, SessionFile(sid, sess))
			raw, err := datasets.ReadRaw(path)
			if err != nil {
				return nil, err
			}
			if raw.Subject != sid || raw.Session != sess {
				return nil, errors.Errorf("bnci2014001: %s holds subject %d session %q", path, raw.Subject, raw.Session)
			}
			raws = append(raws, raw)
		}
	}
	return raws, nil
}
