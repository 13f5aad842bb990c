package topology

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
)

// ProcessGroup is the sub-group of ranks along one mesh axis that includes the bound (current) rank.
//
// It's a handle used to describe collectives: all ranks of a group must take part in any collective
// issued on it.
type ProcessGroup struct {
	axis     int
	axisName string
	ranks    []int
	rank     int
	global   int
}

// NewProcessGroup creates the group along mesh axis axis (named axisName) holding the given global ranks, for
// the process with global rank globalRank, which must be one of ranks.
//
// Groups are usually obtained from RankMesh.Group. This is for process groups created by other means.
func NewProcessGroup(axis int, axisName string, ranks []int, globalRank int) (*ProcessGroup, error) {
	if len(ranks) == 0 {
		return nil, errors.Errorf("process group for axis %q must have at least one rank", axisName)
	}
	pos := slices.Index(ranks, globalRank)
	if pos < 0 {
		return nil, errors.Errorf("rank %d is not part of the process group %v of axis %q", globalRank, ranks, axisName)
	}
	return &ProcessGroup{axis: axis, axisName: axisName, ranks: slices.Clone(ranks), rank: pos, global: globalRank}, nil
}

// Axis returns the index of the mesh axis this group spans.
func (g *ProcessGroup) Axis() int { return g.axis }

// AxisName returns the name of the mesh axis this group spans.
func (g *ProcessGroup) AxisName() string { return g.axisName }

// Size returns the number of ranks in the group.
func (g *ProcessGroup) Size() int { return len(g.ranks) }

// Rank returns the position of the bound process within the group, from 0 to Size()-1.
func (g *ProcessGroup) Rank() int { return g.rank }

// GlobalRank returns the rank of the bound process in the whole mesh.
func (g *ProcessGroup) GlobalRank() int { return g.global }

// Ranks returns a copy of the global ranks that are part of the group, ordered by their position in the group.
func (g *ProcessGroup) Ranks() []int { return slices.Clone(g.ranks) }

// String implements fmt.Stringer.
func (g *ProcessGroup) String() string {
	return fmt.Sprintf("ProcessGroup(axis=%q, ranks=%v, rank=%d)", g.axisName, g.ranks, g.rank)
}

// RankMesh is a DeviceMesh bound to the rank of the current process. Create it with DeviceMesh.ForRank.
//
// It's the view of the topology a single participant has: the size of each axis and its own sub-group
// (and position within it) along each axis.
type RankMesh struct {
	mesh        *DeviceMesh
	rank        int
	coordinates []int
	groups      []*ProcessGroup
}

// DeviceMesh returns the underlying topology.
func (rm *RankMesh) DeviceMesh() *DeviceMesh { return rm.mesh }

// GlobalRank returns the rank of the current process.
func (rm *RankMesh) GlobalRank() int { return rm.rank }

// NumAxes returns the number of axes of the mesh.
func (rm *RankMesh) NumAxes() int { return rm.mesh.Rank() }

// Size returns the number of ranks along the given mesh axis.
// It panics if the axis is out-of-bounds.
func (rm *RankMesh) Size(axis int) int { return rm.mesh.Size(axis) }

// Group returns the sub-group along the given mesh axis that includes the current rank.
func (rm *RankMesh) Group(axis int) (*ProcessGroup, error) {
	if axis < 0 || axis >= len(rm.groups) {
		return nil, errors.Errorf("mesh axis %d out-of-bounds for %s", axis, rm.mesh)
	}
	return rm.groups[axis], nil
}

// Coordinates returns a copy of the coordinates of the current rank along each mesh axis.
func (rm *RankMesh) Coordinates() []int { return slices.Clone(rm.coordinates) }

// String implements fmt.Stringer.
func (rm *RankMesh) String() string {
	return fmt.Sprintf("%s@rank=%d%v", rm.mesh, rm.rank, rm.coordinates)
}
