package fsdp

import (
	"slices"
	"sync"

	"github.com/gomlx/fsdp/internal/utils"
	"github.com/pkg/errors"
)

// StrategyRegistry is the lookup of the wrappers (data-parallel strategies or others) already applied to a module.
type StrategyRegistry interface {
	// Applied returns the names of the wrappers applied to m. It returns nil if m is not registered.
	Applied(m Module) []string
}

// incompatibleWrappers lists the names of the wrappers FSDP cannot be applied on top of.
var incompatibleWrappers = utils.SetWith(Replicate.RegistryName())

// WrapperName is the name NewShardedParam registers for the modules it shards, whatever the strategy of the
// MeshInfo: FSDP with a replicate-only mesh is still FSDP, and not the "replicate" wrapper.
const WrapperName = "fully_shard"

// Registry records, per module, the names of the wrappers applied to it. It implements StrategyRegistry.
//
// Modules are keyed by identity. A Registry is safe for concurrent use, and its zero value is ready to use.
type Registry struct {
	mu      sync.RWMutex
	applied map[Module]utils.Set[string]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register records that the named wrappers were applied to m.
func (r *Registry) Register(m Module, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applied == nil {
		r.applied = make(map[Module]utils.Set[string])
	}
	set, found := r.applied[m]
	if !found {
		set = utils.MakeSet[string](len(names))
		r.applied[m] = set
	}
	set.Insert(names...)
}

// Unregister forgets every wrapper registered for m.
func (r *Registry) Unregister(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.applied, m)
}

// Applied implements StrategyRegistry. The names are sorted.
func (r *Registry) Applied(m Module) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, found := r.applied[m]
	if !found {
		return nil
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CheckComposable returns an error wrapping ErrNotComposable if a wrapper incompatible with FSDP was already
// applied to m. A nil registry, or a module without registered wrappers, is composable.
func CheckComposable(reg StrategyRegistry, m Module) error {
	if reg == nil {
		return nil
	}
	for _, name := range reg.Applied(m) {
		if incompatibleWrappers.Has(name) {
			return errors.Wrapf(ErrNotComposable, "module %q already has %q applied", m.Name(), name)
		}
	}
	return nil
}

// IsComposable is the boolean form of CheckComposable.
func IsComposable(reg StrategyRegistry, m Module) bool {
	return CheckComposable(reg, m) == nil
}
