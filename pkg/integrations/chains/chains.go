// Package chains holds the registry of supported chain adapters. Adapters
// are registered once at construction; lookup is case-insensitive on the
// chain id.
package chains

import (
	"sort"
	"strings"

	"awakenfetch/pkg/integrations/chains/ethchain"
	"awakenfetch/pkg/integrations/chains/kaspachain"
	"awakenfetch/pkg/types/chains"
)

type Registry struct {
	adapters map[string]chains.Adapter
}

// NewRegistry returns a registry with every built-in adapter installed.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[string]chains.Adapter)}
	r.Register(kaspachain.New())
	r.Register(ethchain.New())
	return r
}

func (r *Registry) Register(a chains.Adapter) {
	r.adapters[strings.ToLower(a.ChainID())] = a
}

func (r *Registry) Get(chainID string) (chains.Adapter, bool) {
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(chainID))]
	return a, ok
}

// ChainIDs lists the registered chain ids, sorted.
func (r *Registry) ChainIDs() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
