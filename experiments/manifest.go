// Package experiments loads HCL manifests of training runs and executes
// them against a shared dataset cache.
package experiments

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/IndrashisDas/dl-lab-project/datasets/bnci2014001"
	"github.com/IndrashisDas/dl-lab-project/learning"
	"github.com/IndrashisDas/dl-lab-project/net/transformer"
	"github.com/IndrashisDas/dl-lab-project/preprocess"
)

// Experiment is one fully resolved training run from a manifest.
type Experiment struct {
	Name       string
	Dataset    string
	Model      string
	Subjects   []int
	HP         learning.HyperParameters
	Net        transformer.Config // window/channel/class geometry filled in by the runner
	Prep       preprocess.Options
	TrainSplit float64
	Resume     bool // continue from an existing checkpoint of the same name
}

type manifest struct {
	Defaults    *defaultsBlock     `hcl:"defaults,block"`
	Experiments []*experimentBlock `hcl:"experiment,block"`
}

type defaultsBlock struct {
	Remain hcl.Body `hcl:",remain"`
}

type experimentBlock struct {
	Name   string   `hcl:"name,label"`
	Remain hcl.Body `hcl:",remain"`
}

// settings mirrors the training command's flags. Pointer fields are only
// applied when the manifest sets them, so a defaults block and an experiment
// block layer cleanly.
type settings struct {
	Subjects hcl.Expression `hcl:"subjects,optional"`

	Dataset  *string  `hcl:"dataset,optional"`
	Model    *string  `hcl:"model,optional"`
	Epochs   *int     `hcl:"epochs,optional"`
	Batch    *int     `hcl:"batch_size,optional"`
	LR       *float64 `hcl:"lr,optional"`
	Loss     *string  `hcl:"loss,optional"`
	Optim    *string  `hcl:"optimizer,optional"`
	Schedule *string  `hcl:"lr_schedule,optional"`
	Seed     *int64   `hcl:"seed,optional"`
	Augment  *bool    `hcl:"augment,optional"`
	FullSet  *bool    `hcl:"use_full_train_set,optional"`

	Layers  *int     `hcl:"num_layers,optional"`
	Heads   *int     `hcl:"num_heads,optional"`
	Embed   *int     `hcl:"input_embedding_size,optional"`
	Hidden  *int     `hcl:"hidden_size,optional"`
	Dropout *float64 `hcl:"dropout,optional"`
	PosEnc  *string  `hcl:"positional_encoding,optional"`

	LowHz     *float64 `hcl:"low_hz,optional"`
	HighHz    *float64 `hcl:"high_hz,optional"`
	EMSFactor *float64 `hcl:"ems_factor,optional"`
	InitBlock *int     `hcl:"init_block_size,optional"`
	Offset    *float64 `hcl:"trial_start_offset,optional"`

	TrainSplit *float64 `hcl:"train_split,optional"`
}

// Base returns the experiment every manifest entry starts from: the recorded
// run defaults with the basic transformer geometry.
func Base() Experiment {
	return Experiment{
		Dataset:    bnci2014001.Name,
		Model:      transformer.DefaultName,
		HP:         learning.Defaults(),
		Net:        transformer.DefaultConfig(),
		Prep:       preprocess.DefaultOptions(),
		TrainSplit: 0.8,
	}
}

// Load parses an HCL manifest file into resolved experiments.
func Load(path string) ([]Experiment, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errors.Wrap(diags, "parsing manifest")
	}
	return decode(file.Body)
}

// LoadBytes parses an in-memory HCL manifest, e.g. in tests.
func LoadBytes(src []byte, filename string) ([]Experiment, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Wrap(diags, "parsing manifest")
	}
	return decode(file.Body)
}

func decode(body hcl.Body) ([]Experiment, error) {
	var m manifest
	if diags := gohcl.DecodeBody(body, nil, &m); diags.HasErrors() {
		return nil, errors.Wrap(diags, "decoding manifest")
	}

	base := Base()
	if m.Defaults != nil {
		var s settings
		if diags := gohcl.DecodeBody(m.Defaults.Remain, nil, &s); diags.HasErrors() {
			return nil, errors.Wrap(diags, "decoding defaults block")
		}
		if err := s.apply(&base); err != nil {
			return nil, errors.Wrap(err, "defaults block")
		}
	}

	if len(m.Experiments) == 0 {
		return nil, errors.New("manifest has no experiment blocks")
	}
	exps := make([]Experiment, 0, len(m.Experiments))
	seen := map[string]bool{}
	for _, b := range m.Experiments {
		if seen[b.Name] {
			return nil, errors.Errorf("duplicate experiment %q", b.Name)
		}
		seen[b.Name] = true
		e := base
		e.Name = b.Name
		e.Subjects = append([]int(nil), base.Subjects...)
		var s settings
		if diags := gohcl.DecodeBody(b.Remain, nil, &s); diags.HasErrors() {
			return nil, errors.Wrapf(diags, "decoding experiment %q", b.Name)
		}
		if err := s.apply(&e); err != nil {
			return nil, errors.Wrapf(err, "experiment %q", b.Name)
		}
		if len(e.Subjects) == 0 {
			return nil, errors.Errorf("experiment %q names no subjects", b.Name)
		}
		exps = append(exps, e)
	}
	return exps, nil
}

func (s *settings) apply(e *Experiment) error {
	subjects, err := subjectList(s.Subjects)
	if err != nil {
		return err
	}
	if subjects != nil {
		e.Subjects = subjects
	}

	setString(&e.Dataset, s.Dataset)
	setString(&e.Model, s.Model)
	setInt(&e.HP.Epochs, s.Epochs)
	setInt(&e.HP.BatchSize, s.Batch)
	setFloat(&e.HP.LR, s.LR)
	setString(&e.HP.Loss, s.Loss)
	setString(&e.HP.Optimizer, s.Optim)
	setString(&e.HP.Schedule, s.Schedule)
	if s.Seed != nil {
		e.HP.Seed = *s.Seed
	}
	setBool(&e.HP.Augment, s.Augment)
	setBool(&e.HP.UseFullTrainSet, s.FullSet)

	setInt(&e.Net.NumLayers, s.Layers)
	setInt(&e.Net.NumHeads, s.Heads)
	setInt(&e.Net.InputEmbeddingSize, s.Embed)
	setInt(&e.Net.HiddenSize, s.Hidden)
	setFloat(&e.Net.Dropout, s.Dropout)
	setString(&e.Net.PositionalEncoding, s.PosEnc)

	setFloat(&e.Prep.LowHz, s.LowHz)
	setFloat(&e.Prep.HighHz, s.HighHz)
	setFloat(&e.Prep.EMSFactor, s.EMSFactor)
	setInt(&e.Prep.InitBlockSize, s.InitBlock)
	setFloat(&e.Prep.TrialStartOffsetSeconds, s.Offset)

	setFloat(&e.TrainSplit, s.TrainSplit)
	return nil
}

// subjectList accepts either a single number or a list of numbers, so
// `subjects = 3` and `subjects = [1, 2, 3]` both work.
func subjectList(expr hcl.Expression) ([]int, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, errors.Wrap(diags, "evaluating subjects")
	}
	if val.IsNull() {
		return nil, nil
	}
	if val.Type() == cty.Number {
		var n int
		if err := gocty.FromCtyValue(val, &n); err != nil {
			return nil, errors.Wrap(err, "subjects")
		}
		return []int{n}, nil
	}
	if !val.CanIterateElements() {
		return nil, errors.Errorf("subjects must be a number or list, got %s", val.Type().FriendlyName())
	}
	var out []int
	for it := val.ElementIterator(); it.Next(); {
		_, el := it.Element()
		var n int
		if err := gocty.FromCtyValue(el, &n); err != nil {
			return nil, errors.Wrap(err, "subjects element")
		}
		out = append(out, n)
	}
	return out, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
