package fsdp

import "github.com/gomlx/fsdp/internal/utils"

// Strategy is the data-parallel strategy described by a MeshInfo, given the roles it has.
type Strategy int

const (
	// NoStrategy is the zero value, not produced by a valid MeshInfo.
	NoStrategy Strategy = iota

	// FullyShard: parameters are sharded along the shard axis (FSDP).
	FullyShard

	// Replicate: parameters are replicated along the replicate axis (DDP).
	Replicate

	// HybridShard: parameters are sharded along the shard axis and replicated along the replicate axis (HSDP).
	HybridShard
)

// RegistryName returns the name the strategy is registered under in a Registry: the snake-case of its name,
// e.g. "fully_shard" or "replicate".
func (s Strategy) RegistryName() string {
	return utils.ToSnakeCase(s.String())
}
