package experiments

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/IndrashisDas/dl-lab-project/datasets"
)

const sampleManifest = `
defaults {
  subjects   = [1, 2]
  epochs     = 50
  lr         = 0.001
  num_layers = 3
}

experiment "baseline" {
  batch_size = 32
}

experiment "cosine-aug" {
  subjects     = 3
  lr_schedule  = "Cosine"
  augment      = true
  lr           = 0.0005
  dropout      = 0.3
  trial_start_offset = -0.25
}
`

func TestLoadBytes(t *testing.T) {
	exps, err := LoadBytes([]byte(sampleManifest), "sample.hcl")
	require.NoError(t, err)
	require.Len(t, exps, 2)

	base := exps[0]
	require.Equal(t, "baseline", base.Name)
	require.Equal(t, []int{1, 2}, base.Subjects)
	require.Equal(t, 50, base.HP.Epochs)
	require.Equal(t, 32, base.HP.BatchSize)
	require.Equal(t, 0.001, base.HP.LR)
	require.Equal(t, 3, base.Net.NumLayers)
	require.Equal(t, "Constant", base.HP.Schedule)
	require.False(t, base.HP.Augment)

	aug := exps[1]
	require.Equal(t, "cosine-aug", aug.Name)
	require.Equal(t, []int{3}, aug.Subjects, "a single number should become a one-element list")
	require.Equal(t, 50, aug.HP.Epochs, "defaults should still apply")
	require.Equal(t, 0.0005, aug.HP.LR, "the block should win over defaults")
	require.Equal(t, "Cosine", aug.HP.Schedule)
	require.True(t, aug.HP.Augment)
	require.Equal(t, 0.3, aug.Net.Dropout)
	require.Equal(t, -0.25, aug.Prep.TrialStartOffsetSeconds)
}

func TestLoadBytesErrors(t *testing.T) {
	cases := map[string]string{
		"no experiments":  `defaults { epochs = 5 }`,
		"no subjects":     `experiment "a" { epochs = 5 }`,
		"duplicate names": `experiment "a" { subjects = 1 } experiment "a" { subjects = 2 }`,
		"bad subjects":    `experiment "a" { subjects = "one" }`,
		"unknown attr":    `experiment "a" { subjects = 1 bogus = true }`,
	}
	for name, src := range cases {
		_, err := LoadBytes([]byte(src), name+".hcl")
		require.Error(t, err, name)
	}
}

func TestSplit(t *testing.T) {
	w := &datasets.Windows{SFreq: 250, NumClasses: 2}
	for i := 0; i < 10; i++ {
		w.Wins = append(w.Wins, datasets.Window{Session: "T", Label: i % 2})
	}
	for i := 0; i < 4; i++ {
		w.Wins = append(w.Wins, datasets.Window{Session: "E", Label: i % 2})
	}

	train, valid, eval, err := Split(w, 0.8, false)
	require.NoError(t, err)
	require.Equal(t, 8, train.Len())
	require.Equal(t, 2, valid.Len())
	require.Equal(t, 4, eval.Len())

	train, valid, eval, err = Split(w, 0.8, true)
	require.NoError(t, err)
	require.Equal(t, 10, train.Len())
	require.Nil(t, valid)
	require.Equal(t, 4, eval.Len())

	_, _, _, err = Split(w, 1.5, false)
	require.Error(t, err)

	onlyT := &datasets.Windows{Wins: []datasets.Window{{Session: "T"}}}
	_, _, _, err = Split(onlyT, 0.8, false)
	require.Error(t, err)

	// One training window at frac 0.5 rounds the cut down to zero; that must
	// surface as an error, not an empty training set.
	tiny := &datasets.Windows{Wins: []datasets.Window{
		{Session: "T"},
		{Session: "E"},
	}}
	_, _, _, err = Split(tiny, 0.5, false)
	require.ErrorContains(t, err, "no training data")
}
