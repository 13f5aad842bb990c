package fsdp

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gomlx/fsdp/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Parameter is a module parameter. Both *tensors.Tensor (a full parameter) and *ShardView (a sharded one)
// implement it.
type Parameter interface {
	Shape() shapes.Shape
	DType() dtypes.DType
}

// Module is the capability FSDP needs from a model component: named parameters that can be read and replaced.
//
// Modules are compared by identity (they are used as map keys), so implementations should be pointers.
type Module interface {
	// Name of the module, used for logging and error messages.
	Name() string

	// Parameter returns the parameter registered under name, if any.
	Parameter(name string) (Parameter, bool)

	// SetParameter registers p under name, replacing any previous value.
	SetParameter(name string, p Parameter) error
}

// BasicModule is a Module backed by a map. It is safe for concurrent use.
type BasicModule struct {
	name string

	mu     sync.RWMutex
	params map[string]Parameter
}

// NewBasicModule creates an empty BasicModule.
func NewBasicModule(name string) *BasicModule {
	return &BasicModule{name: name, params: make(map[string]Parameter)}
}

// Name implements Module.
func (m *BasicModule) Name() string { return m.name }

// Parameter implements Module.
func (m *BasicModule) Parameter(name string) (Parameter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.params[name]
	return p, ok
}

// SetParameter implements Module. It fails if name is empty or p is nil.
func (m *BasicModule) SetParameter(name string, p Parameter) error {
	if name == "" {
		return errors.Errorf("module %q: parameter name cannot be empty", m.name)
	}
	if p == nil {
		return errors.Errorf("module %q: parameter %q cannot be nil", m.name, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params[name] = p
	return nil
}

// ParameterNames returns the names of the registered parameters, sorted.
func (m *BasicModule) ParameterNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.params))
	for name := range m.params {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// String implements fmt.Stringer.
func (m *BasicModule) String() string {
	return fmt.Sprintf("Module(%q, params=%v)", m.name, m.ParameterNames())
}
