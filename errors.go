package fsdp

import "github.com/pkg/errors"

var (
	// ErrInvalidConfiguration is returned (wrapped) when a MeshInfo is built with an invalid combination of
	// mesh axes, or when a ShardedParam cannot be built from the given parameter.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNotComposable is returned (wrapped) by CheckComposable when an incompatible wrapper was already applied
	// to the module.
	ErrNotComposable = errors.New("not composable with FSDP")

	// ErrPhase is returned (wrapped) when an operation is attempted in a training phase that doesn't allow it.
	ErrPhase = errors.New("invalid training phase")
)
