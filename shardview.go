package fsdp

import (
	"fmt"
	"slices"

	"github.com/gomlx/fsdp/types/shapes"
	"github.com/gomlx/fsdp/types/tensors"
	"github.com/gomlx/fsdp/types/topology"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// ShardView presents the local shard of a tensor as the logical (global) tensor it is part of.
//
// It holds a reference to the local tensor (not a copy), the mesh and the placement (ShardingSpec) of the tensor
// on the mesh, and the shape and strides of the logical tensor.
type ShardView struct {
	local         *tensors.Tensor
	mesh          Mesh
	spec          *topology.ShardingSpec
	globalShape   shapes.Shape
	globalStrides []int
}

// FromLocalNoGrad wraps the local shard as a logical tensor of the given global dimensions and strides, placed on
// the mesh according to spec.
//
// The local tensor is referenced, not copied, and nothing is validated or defaulted: the caller has already
// computed the global metadata. The view records no gradient history: whether it requires gradients simply
// mirrors the local tensor.
func FromLocalNoGrad(local *tensors.Tensor, m Mesh, spec *topology.ShardingSpec, globalDims, globalStrides []int) *ShardView {
	return &ShardView{
		local:         local,
		mesh:          m,
		spec:          spec,
		globalShape:   shapes.Make(local.DType(), globalDims...),
		globalStrides: slices.Clone(globalStrides),
	}
}

type shardViewConfig struct {
	globalDims    []int
	globalStrides []int
}

// ShardViewOption configures FromLocal.
type ShardViewOption func(cfg *shardViewConfig)

// WithGlobalShape sets the dimensions of the logical tensor, instead of deriving them from the sharding spec and
// the local shape. Needed when the logical tensor was padded to be sharded.
func WithGlobalShape(dims ...int) ShardViewOption {
	return func(cfg *shardViewConfig) {
		cfg.globalDims = slices.Clone(dims)
	}
}

// WithGlobalStrides sets the strides of the logical tensor. They default to the contiguous (row-major) strides.
func WithGlobalStrides(strides ...int) ShardViewOption {
	return func(cfg *shardViewConfig) {
		cfg.globalStrides = slices.Clone(strides)
	}
}

// FromLocal is the validating version of FromLocalNoGrad.
//
// It checks the sharding spec against the local shape, and derives the global shape (spec.LogicalShapeForShard) and strides
// (contiguous) unless given as options.
func FromLocal(local *tensors.Tensor, m Mesh, spec *topology.ShardingSpec, opts ...ShardViewOption) (*ShardView, error) {
	if local == nil {
		return nil, errors.New("FromLocal: local tensor cannot be nil")
	}
	if err := spec.ValidateShape(local.Shape()); err != nil {
		return nil, errors.WithMessagef(err, "FromLocal(%s)", local.Shape())
	}
	var cfg shardViewConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.globalDims == nil {
		cfg.globalDims = spec.LogicalShapeForShard(local.Shape()).Dimensions
	}
	if len(cfg.globalDims) != local.Rank() {
		return nil, errors.Errorf("FromLocal: global dimensions %v don't match the rank of the local shard %s",
			cfg.globalDims, local.Shape())
	}
	if cfg.globalStrides == nil {
		cfg.globalStrides = shapes.ContiguousStrides(cfg.globalDims)
	}
	if len(cfg.globalStrides) != len(cfg.globalDims) {
		return nil, errors.Errorf("FromLocal: global strides %v don't match global dimensions %v",
			cfg.globalStrides, cfg.globalDims)
	}
	return FromLocalNoGrad(local, m, spec, cfg.globalDims, cfg.globalStrides), nil
}

// Local returns the local shard: the same tensor the view was created with.
func (v *ShardView) Local() *tensors.Tensor { return v.local }

// Mesh the tensor is placed on.
func (v *ShardView) Mesh() Mesh { return v.mesh }

// Spec returns the placement of the tensor on the mesh.
func (v *ShardView) Spec() *topology.ShardingSpec { return v.spec }

// Shape returns the shape of the logical (global) tensor.
func (v *ShardView) Shape() shapes.Shape { return v.globalShape }

// DType of the tensor.
func (v *ShardView) DType() dtypes.DType { return v.globalShape.DType }

// Strides returns a copy of the strides of the logical tensor.
func (v *ShardView) Strides() []int { return slices.Clone(v.globalStrides) }

// RequiresGrad returns whether the local shard requires gradients.
func (v *ShardView) RequiresGrad() bool { return v.local.RequiresGrad() }

// String implements fmt.Stringer.
func (v *ShardView) String() string {
	return fmt.Sprintf("ShardView(global=%s, local=%s, %s)", v.globalShape, v.local.Shape(), v.spec)
}
