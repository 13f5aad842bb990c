package fsdp

import (
	"fmt"
	"strings"

	"github.com/gomlx/fsdp/types/topology"
	"github.com/pkg/errors"
)

// Mesh is the view of the device topology a MeshInfo needs, bound to the current rank.
//
// It is implemented by *topology.RankMesh.
type Mesh interface {
	// DeviceMesh returns the full topology.
	DeviceMesh() *topology.DeviceMesh

	// GlobalRank returns the rank of the current process in the whole mesh.
	GlobalRank() int

	// NumAxes returns the number of mesh axes.
	NumAxes() int

	// Size returns the number of ranks along the mesh axis.
	Size(axis int) int

	// Group returns the sub-group along the mesh axis that includes the current rank.
	Group(axis int) (*topology.ProcessGroup, error)
}

// NoAxis marks a MeshInfo role (shard or replicate) as unset.
const NoAxis = -1

// GroupRole describes one role (shard or replicate) played by a mesh axis, as seen by the current rank.
type GroupRole struct {
	// Axis is the index of the mesh axis.
	Axis int

	// Size is the number of ranks along Axis.
	Size int

	// Rank is the position of the current rank in Group.
	Rank int

	// Group is the sub-group along Axis that includes the current rank.
	Group *topology.ProcessGroup
}

func (r *GroupRole) String() string {
	return fmt.Sprintf("axis %d [rank %d of %d]", r.Axis, r.Rank, r.Size)
}

// MeshInfo describes which mesh axes shard parameters and which replicate them, with the group size and rank of
// the current process along each of them.
//
// The roles are derived once at construction and never change. Use Verify to check they are still consistent
// with the mesh.
//
// Misuse, like asking for the shard group of a MeshInfo without a shard axis, is reported through its
// Diagnostics, tagged with the global rank of the mesh.
//
// A MeshInfo is immutable and can be shared across goroutines.
type MeshInfo struct {
	mesh      Mesh
	shard     *GroupRole
	replicate *GroupRole
	diag      *Diagnostics
}

// roleRequirement is an extra check a specialized constructor applies over the base MeshInfo validation.
type roleRequirement func(mi *MeshInfo) error

func requireShard(mi *MeshInfo) error {
	if mi.shard == nil {
		return errors.Wrap(ErrInvalidConfiguration, "a shard axis is required")
	}
	return nil
}

func requireReplicate(mi *MeshInfo) error {
	if mi.replicate == nil {
		return errors.Wrap(ErrInvalidConfiguration, "a replicate axis is required")
	}
	return nil
}

// NewMeshInfo returns the roles of the mesh axes for the current rank: shardAxis is the mesh axis parameters are
// sharded along, and replicateAxis the one they are replicated along. Either one may be NoAxis, but not both.
//
// It returns an error wrapping ErrInvalidConfiguration if both axes are NoAxis, if an axis is out-of-bounds, if
// both refer to the same axis, or if the mesh reports a group inconsistent with the axis size.
func NewMeshInfo(m Mesh, shardAxis, replicateAxis int) (*MeshInfo, error) {
	return newMeshInfo(m, shardAxis, replicateAxis)
}

// NewShardMeshInfo returns a MeshInfo for fully sharded data parallelism (FSDP): parameters are sharded along
// shardAxis, and not replicated.
func NewShardMeshInfo(m Mesh, shardAxis int) (*MeshInfo, error) {
	return newMeshInfo(m, shardAxis, NoAxis, requireShard)
}

// NewReplicateMeshInfo returns a MeshInfo for replicated data parallelism (DDP): parameters are replicated along
// replicateAxis, and not sharded.
func NewReplicateMeshInfo(m Mesh, replicateAxis int) (*MeshInfo, error) {
	return newMeshInfo(m, NoAxis, replicateAxis, requireReplicate)
}

// NewHybridMeshInfo returns a MeshInfo for hybrid sharded data parallelism (HSDP): parameters are sharded along
// shardAxis and replicated along replicateAxis. The shard role is validated first.
func NewHybridMeshInfo(m Mesh, shardAxis, replicateAxis int) (*MeshInfo, error) {
	return newMeshInfo(m, shardAxis, replicateAxis, requireShard, requireReplicate)
}

func newMeshInfo(m Mesh, shardAxis, replicateAxis int, requirements ...roleRequirement) (*MeshInfo, error) {
	if m == nil {
		return nil, errors.Wrap(ErrInvalidConfiguration, "mesh cannot be nil")
	}
	if shardAxis == NoAxis && replicateAxis == NoAxis {
		return nil, errors.Wrap(ErrInvalidConfiguration, "at least one of shard axis or replicate axis must be set")
	}
	if shardAxis != NoAxis && shardAxis == replicateAxis {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"shard axis and replicate axis must be different, both are mesh axis %d", shardAxis)
	}
	mi := &MeshInfo{mesh: m, diag: NewDiagnostics(m.GlobalRank(), DefaultLogger())}
	var err error
	if shardAxis != NoAxis {
		mi.shard, err = newGroupRole(m, shardAxis, "shard")
		if err != nil {
			return nil, err
		}
	}
	if replicateAxis != NoAxis {
		mi.replicate, err = newGroupRole(m, replicateAxis, "replicate")
		if err != nil {
			return nil, err
		}
	}
	for _, requirement := range requirements {
		if err = requirement(mi); err != nil {
			return nil, err
		}
	}
	return mi, nil
}

func newGroupRole(m Mesh, axis int, role string) (*GroupRole, error) {
	if axis < 0 || axis >= m.NumAxes() {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"%s axis %d out-of-bounds for mesh with %d axes", role, axis, m.NumAxes())
	}
	group, err := m.Group(axis)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "%s axis %d: %v", role, axis, err)
	}
	size := m.Size(axis)
	if group.Size() != size {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"%s axis %d has size %d, but its group %s has %d ranks", role, axis, size, group, group.Size())
	}
	return &GroupRole{Axis: axis, Size: size, Rank: group.Rank(), Group: group}, nil
}

// Mesh returns the mesh the MeshInfo was created with.
func (mi *MeshInfo) Mesh() Mesh { return mi.mesh }

// Diagnostics returns where misuse of the MeshInfo is reported. By default, DefaultLogger() tagged with the
// global rank of the mesh.
func (mi *MeshInfo) Diagnostics() *Diagnostics { return mi.diag }

// WithDiagnostics returns a copy of the MeshInfo that reports misuse through diag.
func (mi *MeshInfo) WithDiagnostics(diag *Diagnostics) *MeshInfo {
	c := *mi
	c.diag = diag
	return &c
}

// HasShard returns whether parameters are sharded.
func (mi *MeshInfo) HasShard() bool { return mi.shard != nil }

// HasReplicate returns whether parameters are replicated.
func (mi *MeshInfo) HasReplicate() bool { return mi.replicate != nil }

// ShardAxis returns the mesh axis parameters are sharded along, or NoAxis.
func (mi *MeshInfo) ShardAxis() int {
	if mi.shard == nil {
		return NoAxis
	}
	return mi.shard.Axis
}

// ReplicateAxis returns the mesh axis parameters are replicated along, or NoAxis.
func (mi *MeshInfo) ReplicateAxis() int {
	if mi.replicate == nil {
		return NoAxis
	}
	return mi.replicate.Axis
}

func (mi *MeshInfo) mustShard() *GroupRole {
	if mi.shard == nil {
		mi.diag.Fatalf("%s has no shard axis", mi)
	}
	return mi.shard
}

func (mi *MeshInfo) mustReplicate() *GroupRole {
	if mi.replicate == nil {
		mi.diag.Fatalf("%s has no replicate axis", mi)
	}
	return mi.replicate
}

// ShardGroupSize returns the number of ranks a parameter is sharded across. It panics if there is no shard axis.
func (mi *MeshInfo) ShardGroupSize() int { return mi.mustShard().Size }

// ShardGroupRank returns the position of the current rank in the shard group, that is, the index of the shard
// it holds. It panics if there is no shard axis.
func (mi *MeshInfo) ShardGroupRank() int { return mi.mustShard().Rank }

// ShardGroup returns the shard group of the current rank. It panics if there is no shard axis.
func (mi *MeshInfo) ShardGroup() *topology.ProcessGroup { return mi.mustShard().Group }

// ReplicateGroupSize returns the number of replicas of each parameter (or shard). It panics if there is no
// replicate axis.
func (mi *MeshInfo) ReplicateGroupSize() int { return mi.mustReplicate().Size }

// ReplicateGroupRank returns the position of the current rank in the replicate group. It panics if there is no
// replicate axis.
func (mi *MeshInfo) ReplicateGroupRank() int { return mi.mustReplicate().Rank }

// ReplicateGroup returns the replicate group of the current rank. It panics if there is no replicate axis.
func (mi *MeshInfo) ReplicateGroup() *topology.ProcessGroup { return mi.mustReplicate().Group }

// Strategy returns the data-parallel strategy corresponding to the roles set.
func (mi *MeshInfo) Strategy() Strategy {
	switch {
	case mi.shard != nil && mi.replicate != nil:
		return HybridShard
	case mi.shard != nil:
		return FullyShard
	case mi.replicate != nil:
		return Replicate
	default:
		return NoStrategy
	}
}

// Verify re-queries the mesh and returns an error if the sizes or ranks cached in the MeshInfo no longer match.
func (mi *MeshInfo) Verify() error {
	for _, entry := range []struct {
		role string
		gr   *GroupRole
	}{{"shard", mi.shard}, {"replicate", mi.replicate}} {
		if entry.gr == nil {
			continue
		}
		current, err := newGroupRole(mi.mesh, entry.gr.Axis, entry.role)
		if err != nil {
			return errors.WithMessagef(err, "verifying %s", mi)
		}
		if current.Size != entry.gr.Size || current.Rank != entry.gr.Rank {
			return errors.Errorf("%s role changed: cached %s, mesh now reports %s", entry.role, entry.gr, current)
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (mi *MeshInfo) String() string {
	var parts []string
	parts = append(parts, mi.Strategy().String())
	if mi.shard != nil {
		parts = append(parts, "shard="+mi.shard.String())
	}
	if mi.replicate != nil {
		parts = append(parts, "replicate="+mi.replicate.String())
	}
	return fmt.Sprintf("MeshInfo(%s)", strings.Join(parts, ", "))
}
