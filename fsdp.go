// Package fsdp implements the mesh-aware metadata layer of fully sharded data parallelism (FSDP).
//
// It doesn't run any collective or math: it describes where each parameter lives and how it is split.
//
//   - MeshInfo: the roles (shard and/or replicate) the axes of a device mesh play for the current rank,
//     with the derived group sizes and ranks.
//   - Dim0PaddedSize and ChunkWithEmpty: padding of a parameter's first axis so it splits evenly,
//     and chunking that always yields one chunk per rank.
//   - ShardView: a local shard wrapped as a logical (global) tensor, with its placement on the mesh.
//   - ParamLocation: where a parameter is registered in a module tree, including aliases of shared parameters.
//   - Registry and CheckComposable: detection of incompatible wrappers already applied to a module.
//   - TrainingPhase and PhaseState: the phase of the training step a sharded module is in.
//   - ShardedParam: the above wired together, to replace a full parameter by this rank's shard.
//
// The topology itself (DeviceMesh, ProcessGroup, ShardingSpec) lives in the package types/topology.
package fsdp

import "github.com/gomlx/fsdp/internal/utils"

// Enumerations string conversion.
//go:generate go tool enumer -type=Strategy -output=gen_strategy_enumer.go strategy.go
//go:generate go tool enumer -type=TrainingPhase -output=gen_trainingphase_enumer.go trainingphase.go

// NormalizeIdentifier converts a name (of a mesh or a mesh axis) to a valid identifier: only letters, digits,
// and underscores are allowed.
//
// Invalid characters are replaced with underscores.
// If the name starts with a digit, it is prefixed with an underscore.
func NormalizeIdentifier(name string) string {
	return utils.NormalizeIdentifier(name)
}
