package topology

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomlx/fsdp/types/shapes"
	"github.com/pkg/errors"
)

// ShardingSpec (also known as PartitionSpec in JAX) defines how a logical tensor is placed (partitioned) across
// a DeviceMesh.
//
// The definition is per axis of the logical tensor -- and not per axis of the Mesh, a common confusion.
// If not all axes of the Tensor are defined, the tail axes are considered simply to be replicated across the whole
// mesh. Mesh axes not used by any tensor axis are replicated axes.
//
// Example:
//
//	mesh, _ := NewDeviceMesh("mesh", []int{2, 4}, []string{"replicate", "shard"})
//
//	// FSDP: the parameter's first axis is sharded across the "shard" axis, and replicated across "replicate".
//	paramSpec := NewShardingSpec(mesh).AddShardedAxis("shard")
//
//	// First axis is replicated, second is sharded across both mesh axes.
//	largeWeights := NewShardingSpec(mesh).AddReplicated().AddShardedAxis("replicate", "shard")
type ShardingSpec struct {
	Mesh *DeviceMesh
	Axes []AxisSpec
}

// AxisSpec specifies how a tensor axis is to be sharded (or replicated).
//
// It's a list of mesh axes names, in order. An empty list means the axis is replicated.
type AxisSpec []string

// ReplicatedAxis is a special AxisSpec that means the tensor axis is replicated.
var ReplicatedAxis = AxisSpec(nil)

// NewShardingSpec creates a new, fully replicated, ShardingSpec.
func NewShardingSpec(mesh *DeviceMesh) *ShardingSpec {
	return &ShardingSpec{mesh, make([]AxisSpec, 0)}
}

// AddShardedAxis adds a new tensor axis sharded using one or more mesh axes.
//
// It returns itself, so calls can be chained.
func (s *ShardingSpec) AddShardedAxis(meshAxesNames ...string) *ShardingSpec {
	s.Axes = append(s.Axes, AxisSpec(meshAxesNames))
	return s
}

// AddReplicated adds a new replicated tensor axis to the ShardingSpec.
//
// It returns itself, so calls can be chained.
func (s *ShardingSpec) AddReplicated() *ShardingSpec {
	s.Axes = append(s.Axes, ReplicatedAxis)
	return s
}

// Rank returns the number of axes this ShardingSpec describes.
//
// Notice this may be smaller than the rank of the tensor using it: if a tensor axis is not defined in ShardingSpec,
// it is assumed to be replicated.
func (s *ShardingSpec) Rank() int {
	return len(s.Axes)
}

// IsReplicated returns true if the tensor is fully replicated (i.e., not sharded along any axis).
func (s *ShardingSpec) IsReplicated() bool {
	for _, axisSpec := range s.Axes {
		if len(axisSpec) > 0 {
			return false
		}
	}
	return true
}

// Validate checks that the ShardingSpec is valid for its mesh: mesh axes must exist and can only be used once.
func (s *ShardingSpec) Validate() error {
	if s.Mesh == nil {
		return errors.New("ShardingSpec has no mesh")
	}
	meshAxesUsed := make(map[string]bool)
	for i, axisSpec := range s.Axes {
		for j, axisName := range axisSpec {
			if axisName == "" {
				return errors.Errorf(
					"ShardingSpec tensor axis %d, mesh axis #%d refers to empty mesh axis name", i, j)
			}
			if _, ok := s.Mesh.nameToAxis[axisName]; !ok {
				return errors.Errorf(
					"ShardingSpec tensor axis %d, mesh axis #%d refers to unknown mesh axis %q", i, j, axisName)
			}
			if meshAxesUsed[axisName] {
				return errors.Errorf("mesh axis %q used more than once in ShardingSpec", axisName)
			}
			meshAxesUsed[axisName] = true
		}
	}
	return nil
}

// ValidateShape checks that the ShardingSpec is valid and can be used with a tensor of the given shape.
func (s *ShardingSpec) ValidateShape(shape shapes.Shape) error {
	if s == nil {
		// No sharding spec (nil) means fully replicated, and it's always valid for any shape.
		return nil
	}
	err := s.Validate()
	if err != nil {
		return err
	}
	if s.Rank() > shape.Rank() {
		return errors.Errorf("ShardingSpec shape rank %d is larger than tensor rank %d", s.Rank(), shape.Rank())
	}
	return nil
}

// NumDevicesShardingAxis returns the number of ranks the given tensor axis is split across.
// If the axis is replicated, it returns 1.
func (s *ShardingSpec) NumDevicesShardingAxis(axis int) int {
	if s == nil || axis >= len(s.Axes) {
		return 1
	}
	size := 1
	for _, meshAxis := range s.Axes[axis] {
		size *= s.Mesh.axesSizes[s.Mesh.nameToAxis[meshAxis]]
	}
	return size
}

// ShardShape returns the shape of the shard each rank holds for a tensor with the given logical shape.
//
// Sharded axes are split with a ceiling division: this is the padded shard size, the last ranks of a group may
// hold fewer valid (unpadded) elements.
func (s *ShardingSpec) ShardShape(logicalShape shapes.Shape) shapes.Shape {
	shardShape := logicalShape.Clone()
	if s == nil {
		return shardShape
	}
	for axis := range min(s.Rank(), logicalShape.Rank()) {
		numShards := s.NumDevicesShardingAxis(axis)
		shardShape.Dimensions[axis] = (logicalShape.Dimensions[axis] + numShards - 1) / numShards
	}
	return shardShape
}

// LogicalShapeForShard calculates the logical shape of a tensor given its shard shape, assuming every rank holds
// a shard of the same (padded) shape.
func (s *ShardingSpec) LogicalShapeForShard(shardShape shapes.Shape) shapes.Shape {
	logicalShape := shardShape.Clone()
	if s == nil {
		return logicalShape
	}
	for axis := range min(s.Rank(), shardShape.Rank()) {
		logicalShape.Dimensions[axis] *= s.NumDevicesShardingAxis(axis)
	}
	return logicalShape
}

// Placement describes what happens to a tensor along one mesh axis: either it is replicated, or one of its
// tensor axes is sharded.
type Placement struct {
	// Sharded is true if the tensor is split along this mesh axis.
	Sharded bool

	// TensorAxis is the tensor axis split along this mesh axis. Only meaningful if Sharded.
	TensorAxis int
}

// String returns "S(<axis>)" or "R".
func (p Placement) String() string {
	if p.Sharded {
		return fmt.Sprintf("S(%d)", p.TensorAxis)
	}
	return "R"
}

// Placements returns the placement of the tensor on each of the mesh axes, in mesh axes order.
func (s *ShardingSpec) Placements() []Placement {
	placements := make([]Placement, s.Mesh.Rank())
	for tensorAxis, axisSpec := range s.Axes {
		for _, meshAxisName := range axisSpec {
			placements[s.Mesh.nameToAxis[meshAxisName]] = Placement{Sharded: true, TensorAxis: tensorAxis}
		}
	}
	return placements
}

// String returns a human-readable representation of the ShardingSpec, in the Shardy notation, e.g.:
// "sharding<@mesh, [{shard}, {}], replicated={replicate}>".
func (s *ShardingSpec) String() string {
	if s == nil {
		return "ShardingSpec<nil>"
	}
	var dimShardings []string
	replicatedAxes := make(map[string]bool)
	for _, axisName := range s.Mesh.axesNames {
		replicatedAxes[axisName] = true
	}
	for _, axisSpec := range s.Axes {
		for _, axisName := range axisSpec {
			delete(replicatedAxes, axisName)
		}
		dimShardings = append(dimShardings, fmt.Sprintf("{%s}", strings.Join(axisSpec, ", ")))
	}

	var replicatedStrs []string
	for axisName := range replicatedAxes {
		replicatedStrs = append(replicatedStrs, axisName)
	}
	sort.Strings(replicatedStrs)

	replicatedPart := ""
	if len(replicatedStrs) > 0 {
		replicatedPart = fmt.Sprintf(", replicated={%s}", strings.Join(replicatedStrs, ", "))
	}
	return fmt.Sprintf("sharding<@%s, [%s]%s>", s.Mesh.Name(), strings.Join(dimShardings, ", "), replicatedPart)
}
