package pkg

import (
	"github.com/provide-io/venvpack/internal/envdiscover"
	"github.com/provide-io/venvpack/pkg/venv"
)

// Pack discovers the environment at prefix (or the currently active one when
// prefix is empty), applies the filters in order, and packs it into a
// relocatable archive.
func Pack(prefix string, filters []venv.Filter, opts venv.PackOptions) (string, []venv.Warning, error) {
	env, err := venv.Discover(prefix, envdiscover.Locate)
	if err != nil {
		return "", nil, err
	}
	env, err = env.ApplyFilters(filters)
	if err != nil {
		return "", nil, err
	}
	return env.Pack(opts)
}

// Discover validates a prefix and enumerates its files without packing.
func Discover(prefix string) (*venv.Environment, error) {
	return venv.Discover(prefix, envdiscover.Locate)
}
