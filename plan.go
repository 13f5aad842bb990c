package fsdp

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/fsdp/types/shapes"
	"github.com/pkg/errors"
)

// ShardPlan describes how a parameter is split for the current rank.
type ShardPlan struct {
	// Strategy of the MeshInfo used.
	Strategy Strategy

	// GlobalShape is the shape of the full (unpadded) parameter.
	GlobalShape shapes.Shape

	// PaddedShape is GlobalShape with the first axis padded to a multiple of NumShards.
	PaddedShape shapes.Shape

	// ShardShape is the shape of the shard held by each rank.
	ShardShape shapes.Shape

	// NumShards is the number of shards, the size of the shard group (1 if parameters are not sharded).
	NumShards int

	// ShardIndex is the index of the shard held by the current rank.
	ShardIndex int

	// RowOffset is the offset, along the first axis of the padded parameter, of the shard of the current rank.
	RowOffset int

	// ValidRows is the number of rows of the shard that hold parameter values, as opposed to padding.
	ValidRows int
}

// ShardPlanFor returns the plan to shard a parameter of the given shape with info, for the current rank.
//
// If info has no shard axis, the plan is a full replica. A scalar cannot be sharded: it returns an error wrapping
// ErrInvalidConfiguration.
func ShardPlanFor(info *MeshInfo, shape shapes.Shape) (ShardPlan, error) {
	plan := ShardPlan{
		Strategy:    info.Strategy(),
		GlobalShape: shape.Clone(),
		PaddedShape: shape.Clone(),
		ShardShape:  shape.Clone(),
		NumShards:   1,
	}
	if shape.Rank() > 0 {
		plan.ValidRows = shape.Dimensions[0]
	}
	if !info.HasShard() {
		return plan, nil
	}
	if shape.Rank() == 0 {
		return ShardPlan{}, errors.Wrapf(ErrInvalidConfiguration, "cannot shard scalar parameter %s", shape)
	}
	plan.NumShards = info.ShardGroupSize()
	plan.ShardIndex = info.ShardGroupRank()
	plan.PaddedShape = Dim0PaddedShape(shape, plan.NumShards)
	rows := plan.PaddedShape.Dimensions[0] / plan.NumShards
	plan.ShardShape.Dimensions[0] = rows
	plan.RowOffset = plan.ShardIndex * rows
	plan.ValidRows = max(0, min(rows, shape.Dimensions[0]-plan.RowOffset))
	return plan, nil
}

// ShardBytes returns the memory used by each shard.
func (p ShardPlan) ShardBytes() uintptr {
	return p.ShardShape.Memory()
}

// PaddingBytes returns the memory used by padding in the shard of the current rank.
func (p ShardPlan) PaddingBytes() uintptr {
	if p.ShardShape.Rank() == 0 || p.ShardShape.Dimensions[0] == 0 {
		return 0
	}
	rowBytes := p.ShardBytes() / uintptr(p.ShardShape.Dimensions[0])
	return rowBytes * uintptr(p.ShardShape.Dimensions[0]-p.ValidRows)
}

// String implements fmt.Stringer.
func (p ShardPlan) String() string {
	if p.NumShards == 1 {
		return fmt.Sprintf("%s: %s replicated, %s", p.Strategy, p.GlobalShape,
			humanize.Bytes(uint64(p.ShardBytes())))
	}
	return fmt.Sprintf("%s: %s padded to %s, shard %d/%d %s rows [%d, %d) (%d valid), %s per shard (%s padding)",
		p.Strategy, p.GlobalShape, p.PaddedShape, p.ShardIndex, p.NumShards, p.ShardShape,
		p.RowOffset, p.RowOffset+p.ShardShape.Dimensions[0], p.ValidRows,
		humanize.Bytes(uint64(p.ShardBytes())), humanize.Bytes(uint64(p.PaddingBytes())))
}
