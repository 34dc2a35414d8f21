package transformer

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// Builder constructs a model for a dataset-derived base config. Builders
// may tighten or override fields before instantiating.
type Builder func(rng *rand.Rand, c Config) (*Model, error)

var registry = map[string]Builder{
	"EEGTransformerBasic": func(rng *rand.Rand, c Config) (*Model, error) {
		return New(rng, c)
	},
}

// Register adds a named model builder. Registering an existing name panics;
// model names are a flat global namespace.
func Register(name string, b Builder) {
	if _, dup := registry[name]; dup {
		panic("transformer: duplicate model name " + name)
	}
	registry[name] = b
}

// Build instantiates the named model.
func Build(name string, rng *rand.Rand, c Config) (*Model, error) {
	b, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("transformer: unknown model %q (have %v)", name, Names())
	}
	return b(rng, c)
}

// Names lists the registered model names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
