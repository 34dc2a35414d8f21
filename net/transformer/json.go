package transformer

import (
	"compress/zlib"
	"encoding/json"
	"io"
	"math/rand"
	"os"

	"github.com/pkg/errors"
)

// checkpoint is the serialized model: its config plus every parameter and
// running statistic in the Params()/state() order.
type checkpoint struct {
	Config Config      `json:"config"`
	Params [][]float64 `json:"params"`
	State  [][]float64 `json:"state"`
}

// WriteZlibWeightsToFile writes the model to a zlib-compressed JSON file.
func (m *Model) WriteZlibWeightsToFile(name string) error {
	file, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "transformer: create model file")
	}
	err = m.WriteZlibWeights(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteZlibWeights writes the model to a writer.
func (m *Model) WriteZlibWeights(w io.Writer) error {
	ck := checkpoint{Config: m.Cfg}
	for _, p := range m.Params() {
		ck.Params = append(ck.Params, p.Value.Data)
	}
	for _, s := range m.state() {
		ck.State = append(ck.State, s.Data)
	}
	zw := zlib.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(ck); err != nil {
		return errors.Wrap(err, "transformer: encode model")
	}
	return zw.Close()
}

// ReadZlibWeightsFromFile rebuilds a model from a file written by
// WriteZlibWeightsToFile.
func ReadZlibWeightsFromFile(name string) (*Model, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "transformer: open model file")
	}
	defer file.Close()
	return ReadZlibWeights(file)
}

// ReadZlibWeights rebuilds a model from a reader.
func ReadZlibWeights(r io.Reader) (*Model, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "transformer: not a model stream")
	}
	defer zr.Close()

	var ck checkpoint
	if err := json.NewDecoder(zr).Decode(&ck); err != nil {
		return nil, errors.Wrap(err, "transformer: decode model")
	}

	// The weights are overwritten below, the seed is irrelevant.
	m, err := New(rand.New(rand.NewSource(0)), ck.Config)
	if err != nil {
		return nil, err
	}
	params := m.Params()
	if len(params) != len(ck.Params) {
		return nil, errors.Errorf("transformer: checkpoint has %d parameter tensors, model wants %d", len(ck.Params), len(params))
	}
	for i, p := range params {
		if len(p.Value.Data) != len(ck.Params[i]) {
			return nil, errors.Errorf("transformer: parameter %s size mismatch", p.Name)
		}
		copy(p.Value.Data, ck.Params[i])
	}
	state := m.state()
	if len(state) != len(ck.State) {
		return nil, errors.Errorf("transformer: checkpoint has %d state tensors, model wants %d", len(ck.State), len(state))
	}
	for i, s := range state {
		if len(s.Data) != len(ck.State[i]) {
			return nil, errors.New("transformer: state size mismatch")
		}
		copy(s.Data, ck.State[i])
	}
	return m, nil
}
