package fsdp

import (
	"github.com/go-logr/logr"
	"github.com/gomlx/fsdp/types/shapes"
	"github.com/gomlx/fsdp/types/tensors"
	"github.com/gomlx/fsdp/types/topology"
	"github.com/pkg/errors"
)

// ShardedParam is a parameter whose full value was replaced, in its module and in all its aliases, by the
// ShardView of the shard held by the current rank.
type ShardedParam struct {
	loc   *ParamLocation
	info  *MeshInfo
	plan  ShardPlan
	view  *ShardView
	local *tensors.Tensor
}

type shardedParamConfig struct {
	logger   logr.Logger
	diag     *Diagnostics
	phase    *PhaseState
	registry *Registry
}

// ShardedParamOption configures NewShardedParam.
type ShardedParamOption func(cfg *shardedParamConfig)

// WithLogger sets the logger. The default is DefaultLogger().
// Messages are tagged with the global rank of the mesh.
func WithLogger(logger logr.Logger) ShardedParamOption {
	return func(cfg *shardedParamConfig) { cfg.logger = logger }
}

// WithDiagnostics sets where failed invariants are reported, and the logger used. It takes precedence over
// WithLogger. The default is NewDiagnostics with the global rank of the mesh.
func WithDiagnostics(diag *Diagnostics) ShardedParamOption {
	return func(cfg *shardedParamConfig) { cfg.diag = diag }
}

// WithPhaseState makes NewShardedParam fail with ErrPhase unless the state is in Idle.
func WithPhaseState(state *PhaseState) ShardedParamOption {
	return func(cfg *shardedParamConfig) { cfg.phase = state }
}

// WithRegistry makes NewShardedParam check the module is composable with FSDP (see CheckComposable), and on
// success register WrapperName for the module.
func WithRegistry(registry *Registry) ShardedParamOption {
	return func(cfg *shardedParamConfig) { cfg.registry = registry }
}

// NewShardedParam replaces the full parameter at loc by the shard the current rank holds according to info:
//
//  1. The first axis of the parameter is padded (with zeros) to a multiple of the shard group size.
//  2. The padded parameter is chunked along the first axis, one chunk per rank of the shard group, and the chunk
//     of the current rank is kept.
//  3. The chunk is wrapped in a ShardView with the shape (unpadded) and contiguous strides of the full parameter,
//     sharded along the shard axis of the mesh and replicated along the others.
//  4. The view is swapped in the module and in all the aliases of the parameter.
//
// If info has no shard axis, the local "shard" is the full parameter, replicated.
//
// The parameter at loc must be a *tensors.Tensor, otherwise (e.g. if it is already sharded) it returns an error
// wrapping ErrInvalidConfiguration.
func NewShardedParam(loc *ParamLocation, info *MeshInfo, opts ...ShardedParamOption) (*ShardedParam, error) {
	cfg := shardedParamConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if info == nil {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "no MeshInfo given to shard %s", loc)
	}
	if cfg.logger.GetSink() == nil {
		cfg.logger = DefaultLogger()
	}
	diag := cfg.diag
	if diag == nil {
		diag = NewDiagnostics(info.Mesh().GlobalRank(), cfg.logger)
	}
	if cfg.phase != nil && cfg.phase.Phase() != Idle {
		return nil, errors.Wrapf(ErrPhase, "cannot shard %s during %s", loc, cfg.phase.Phase())
	}
	if cfg.registry != nil {
		if err := CheckComposable(cfg.registry, loc.Module); err != nil {
			return nil, err
		}
	}

	p, err := loc.Get()
	if err != nil {
		return nil, err
	}
	full, ok := p.(*tensors.Tensor)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "parameter %s is a %T, not a full tensor", loc, p)
	}
	plan, err := ShardPlanFor(info, full.Shape())
	if err != nil {
		return nil, errors.WithMessagef(err, "parameter %s", loc)
	}

	local := full
	if info.HasShard() {
		padded, err := full.PadDim0(plan.PaddedShape.Dimensions[0])
		if err != nil {
			return nil, errors.WithMessagef(err, "padding parameter %s", loc)
		}
		chunks := ChunkWithEmpty(padded, plan.NumShards, 0)
		diag.Assertf(len(chunks) == plan.NumShards, "parameter %s split in %d chunks, expected %d",
			loc, len(chunks), plan.NumShards)
		local = chunks[plan.ShardIndex]
		diag.Assertf(local.Shape().Equal(plan.ShardShape), "parameter %s has local shard %s, expected %s",
			loc, local.Shape(), plan.ShardShape)
	}
	view := FromLocalNoGrad(local, info.Mesh(), shardingSpecFor(info),
		full.Shape().Dimensions, shapes.ContiguousStrides(full.Shape().Dimensions))
	if err = loc.Swap(view); err != nil {
		return nil, err
	}
	if cfg.registry != nil {
		cfg.registry.Register(loc.Module, WrapperName)
	}
	diag.Logger().V(1).Info("sharded parameter", "param", loc.String(), "plan", plan.String())
	return &ShardedParam{loc: loc, info: info, plan: plan, view: view, local: local}, nil
}

// shardingSpecFor returns the placement of a parameter sharded along its first axis over the shard axis of info.
// Every other mesh axis, including the replicate one, is replicated.
func shardingSpecFor(info *MeshInfo) *topology.ShardingSpec {
	dm := info.Mesh().DeviceMesh()
	spec := topology.NewShardingSpec(dm)
	if info.HasShard() {
		spec.AddShardedAxis(dm.AxisNames()[info.ShardAxis()])
	}
	return spec
}

// View returns the sharded view swapped into the module.
func (sp *ShardedParam) View() *ShardView { return sp.view }

// LocalShard returns the shard held by the current rank, including padding.
func (sp *ShardedParam) LocalShard() *tensors.Tensor { return sp.local }

// Plan returns how the parameter was split.
func (sp *ShardedParam) Plan() ShardPlan { return sp.plan }

// Location returns where the parameter is registered.
func (sp *ShardedParam) Location() *ParamLocation { return sp.loc }

// MeshInfo returns the MeshInfo the parameter was sharded with.
func (sp *ShardedParam) MeshInfo() *MeshInfo { return sp.info }
