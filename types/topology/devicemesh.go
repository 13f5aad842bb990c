// Package topology provides the types needed to describe a distributed training topology:
//
//   - DeviceMesh: the logical N-dimensional grid of participating processes (ranks).
//   - ProcessGroup: the sub-group of ranks along one mesh axis, as seen by one rank.
//   - RankMesh: a DeviceMesh bound to the rank of the current process.
//   - ShardingSpec: how a logical tensor is placed (sharded or replicated) across a DeviceMesh.
//
// All of them are immutable once constructed (DeviceMesh only until bound with ForRank) and can be
// read concurrently without locking.
package topology

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/gomlx/fsdp/internal/utils"
	"github.com/pkg/errors"
)

// DeviceMesh defines the logical topology of a set of processes (ranks).
type DeviceMesh struct {
	name string

	// axesNames are the names of the mesh axes.
	axesNames []string

	// axesSizes defines the number of ranks along each mesh axis.
	axesSizes []int

	// nameToAxis maps axis names to their index.
	nameToAxis map[string]int

	// numDevices is the total number of ranks in the mesh.
	numDevices int

	// logicalDeviceAssignment is the list of ranks in the mesh, in the order they appear in the mesh.
	// If nil, position i holds rank i.
	logicalDeviceAssignment []int

	// deviceToFlat is the reverse of logicalDeviceAssignment.
	deviceToFlat map[int]int

	// bound is set by the first ForRank, after which the assignment can no longer change.
	bound atomic.Bool
}

// NewDeviceMesh creates a new logical topology of a set of ranks.
//
//   - name: the name of the mesh, it must be a valid identifier (see utils.NormalizeIdentifier).
//   - axesSizes: defines the number of ranks along each mesh axis, one value per axis.
//   - axesNames: the names of the mesh axes. One value per axis. They must also be valid identifiers.
//
// The default mapping of ranks to the mesh is sequential, starting from 0, but it can be
// changed with the DeviceMesh.SetLogicalDeviceAssignment() method.
func NewDeviceMesh(name string, axesSizes []int, axesNames []string) (*DeviceMesh, error) {
	if len(axesSizes) != len(axesNames) {
		return nil, errors.Errorf("shape and axesNames must have the same length, got %d and %d",
			len(axesSizes), len(axesNames))
	}
	if len(axesSizes) == 0 {
		return nil, errors.New("DeviceMesh shape cannot be empty")
	}
	if err := utils.ValidateIdentifier("DeviceMesh name", name); err != nil {
		return nil, err
	}

	axesNames = slices.Clone(axesNames)
	numDevices := 1
	nameToAxis := make(map[string]int, len(axesSizes))
	for i, axisName := range axesNames {
		if err := utils.ValidateIdentifier(fmt.Sprintf("DeviceMesh axis name at index %d", i), axisName); err != nil {
			return nil, err
		}
		if _, found := nameToAxis[axisName]; found {
			return nil, errors.Errorf("DeviceMesh axis name %q is duplicated", axisName)
		}
		if axesSizes[i] <= 0 {
			return nil, errors.Errorf("DeviceMesh axis %q has invalid size %d, it must be > 0",
				axisName, axesSizes[i])
		}
		nameToAxis[axisName] = i
		numDevices *= axesSizes[i]
	}

	m := &DeviceMesh{
		name:       name,
		axesNames:  axesNames,
		axesSizes:  slices.Clone(axesSizes),
		nameToAxis: nameToAxis,
		numDevices: numDevices,
	}
	return m, nil
}

func (m *DeviceMesh) Name() string {
	return m.name
}

// NumDevices returns the total number of ranks in the mesh.
func (m *DeviceMesh) NumDevices() int {
	return m.numDevices
}

// Rank returns the number of axes in the mesh.
func (m *DeviceMesh) Rank() int {
	return len(m.axesSizes)
}

// AxisNames returns a copy of the mesh's axis names.
func (m *DeviceMesh) AxisNames() []string {
	return slices.Clone(m.axesNames)
}

// Shape returns a copy of the mesh's axes sizes.
func (m *DeviceMesh) Shape() []int {
	return slices.Clone(m.axesSizes)
}

// AxisSize returns the number of ranks along the given mesh axis.
func (m *DeviceMesh) AxisSize(axisName string) (int, error) {
	idx, found := m.nameToAxis[axisName]
	if !found {
		return 0, errors.Errorf("mesh axis %q not found", axisName)
	}
	return m.axesSizes[idx], nil
}

// AxisIndex returns the index of the named mesh axis.
func (m *DeviceMesh) AxisIndex(axisName string) (int, error) {
	idx, found := m.nameToAxis[axisName]
	if !found {
		return 0, errors.Errorf("mesh axis %q not found", axisName)
	}
	return idx, nil
}

// Size returns the number of ranks along the mesh axis with the given index.
// It panics if the axis is out-of-bounds, like slice indexing.
func (m *DeviceMesh) Size(axis int) int {
	return m.axesSizes[axis]
}

// String implements the fmt.Stringer interface.
func (m *DeviceMesh) String() string {
	var sb strings.Builder
	sb.WriteString("DeviceMesh(shape={")
	for i, name := range m.axesNames {
		if i > 0 {
			sb.WriteString(", ")
		}
		_, _ = fmt.Fprintf(&sb, "%s: %d", name, m.axesSizes[i])
	}
	sb.WriteString("})")
	return sb.String()
}

// SetLogicalDeviceAssignment sets the assignment of ranks to the mesh positions.
//
// The length of devices must be equal to NumDevices(), and each rank must appear only once.
// Calling it with no devices resets to the default sequential assignment.
//
// It returns an error once the mesh was bound to a rank with ForRank, since the RankMesh already computed its
// groups from the current assignment.
func (m *DeviceMesh) SetLogicalDeviceAssignment(devices ...int) error {
	if m.bound.Load() {
		return errors.Errorf("cannot change the device assignment of %s, it is already bound to a rank", m)
	}
	if len(devices) == 0 {
		m.logicalDeviceAssignment = nil
		m.deviceToFlat = nil
		return nil
	}
	if len(devices) != m.numDevices {
		return errors.Errorf("devices must have %d elements, got %d", m.numDevices, len(devices))
	}
	seen := utils.MakeSet[int](m.numDevices)
	deviceToFlat := make(map[int]int, m.numDevices)
	for flatIdx, device := range devices {
		if device < 0 {
			return errors.Errorf("devices must be positive, got device %d", device)
		}
		if seen.Has(device) {
			return errors.Errorf("physical device #%d is duplicated in mapping", device)
		}
		seen.Insert(device)
		deviceToFlat[device] = flatIdx
	}
	m.logicalDeviceAssignment = slices.Clone(devices)
	m.deviceToFlat = deviceToFlat
	return nil
}

// SetDeviceAssignment is an alias to SetLogicalDeviceAssignment.
func (m *DeviceMesh) SetDeviceAssignment(devices ...int) error {
	return m.SetLogicalDeviceAssignment(devices...)
}

// LogicalDeviceAssignment returns the list of ranks in the mesh, in the order they appear in the mesh.
//
// It can return nil if no assignment was set with SetLogicalDeviceAssignment() -- in which case it will
// default to a sequential assignment starting from 0.
func (m *DeviceMesh) LogicalDeviceAssignment() []int {
	if m.logicalDeviceAssignment == nil {
		return nil
	}
	return slices.Clone(m.logicalDeviceAssignment)
}

// Devices returns the ranks in the mesh, in mesh order, with the assignment applied.
func (m *DeviceMesh) Devices() []int {
	devices := make([]int, m.numDevices)
	for flatIdx := range devices {
		devices[flatIdx] = m.flatToDevice(flatIdx)
	}
	return devices
}

func (m *DeviceMesh) flatToDevice(flatIdx int) int {
	if m.logicalDeviceAssignment == nil {
		return flatIdx
	}
	return m.logicalDeviceAssignment[flatIdx]
}

// DeviceToMesh returns the position of the given rank (device) in the mesh: both its flat index and its
// coordinates along each of the mesh axes.
func (m *DeviceMesh) DeviceToMesh(device int) (flatIdx int, axisIndices []int, err error) {
	if m.deviceToFlat != nil {
		var found bool
		flatIdx, found = m.deviceToFlat[device]
		if !found {
			return 0, nil, errors.Errorf("physical device %d is not part of the mesh", device)
		}
	} else {
		if device < 0 || device >= m.numDevices {
			return 0, nil, errors.Errorf("physical device %d is not part of the mesh", device)
		}
		flatIdx = device
	}
	axisIndices = m.flatToAxisIndices(flatIdx)
	return
}

// flatToAxisIndices converts a flat index to per-axis indices (row-major: the last axis varies the fastest).
func (m *DeviceMesh) flatToAxisIndices(flatIdx int) []int {
	indices := make([]int, len(m.axesSizes))
	remaining := flatIdx
	for i := len(m.axesSizes) - 1; i >= 0; i-- {
		indices[i] = remaining % m.axesSizes[i]
		remaining /= m.axesSizes[i]
	}
	return indices
}

// ComputeReplicaGroups returns the groups of ranks participating in some collective operation given the
// axes along which the operation is performed.
//
// Each group (a []int) includes the ranks (from the LogicalDeviceAssignment) for the axes specified.
// The other axes will be split into different groups. So every rank belongs to exactly one group.
//
// Example:
//
//	m := NewDeviceMesh("mesh", []int{2, 2}, []string{"batch", "data"})
//	batchGroups, _ := m.ComputeReplicaGroups([]string{"batch"})  // -> [][]int{{0, 2}, {1, 3}}
//	dataGroups, _ := m.ComputeReplicaGroups([]string{"data"})    // -> [][]int{{0, 1}, {2, 3}}
//	globalGroups, _ := m.ComputeReplicaGroups([]string{"batch", "data"})  // -> [][]int{{0, 1, 2, 3}}
func (m *DeviceMesh) ComputeReplicaGroups(axes []string) ([][]int, error) {
	// Find indices of the specified axes
	axisIndices := make([]int, 0, len(axes))
	axisSet := utils.MakeSet[int](len(axes))
	for _, axis := range axes {
		idx, found := m.nameToAxis[axis]
		if !found {
			return nil, errors.Errorf("axis %q not found in mesh", axis)
		}
		if axisSet.Has(idx) {
			return nil, errors.Errorf("axis %q is duplicated: each axis can only appear once", axis)
		}
		axisIndices = append(axisIndices, idx)
		axisSet.Insert(idx)
	}

	nonAxisIndices := make([]int, 0, len(m.axesSizes)-len(axisIndices))
	for i := range m.axesSizes {
		if !axisSet.Has(i) {
			nonAxisIndices = append(nonAxisIndices, i)
		}
	}

	groupSize := 1
	for _, idx := range axisIndices {
		groupSize *= m.axesSizes[idx]
	}
	numGroups := m.numDevices / groupSize

	groups := make([][]int, numGroups)
	for i := range groups {
		groups[i] = make([]int, groupSize)
	}
	for flatIdx := 0; flatIdx < m.numDevices; flatIdx++ {
		indices := m.flatToAxisIndices(flatIdx)

		// Group index from non-axis indices.
		groupIdx := 0
		multiplier := 1
		for i := len(nonAxisIndices) - 1; i >= 0; i-- {
			axisIdx := nonAxisIndices[i]
			groupIdx += indices[axisIdx] * multiplier
			multiplier *= m.axesSizes[axisIdx]
		}

		// Position within group from axis indices.
		posInGroup := 0
		multiplier = 1
		for i := len(axisIndices) - 1; i >= 0; i-- {
			axisIdx := axisIndices[i]
			posInGroup += indices[axisIdx] * multiplier
			multiplier *= m.axesSizes[axisIdx]
		}

		groups[groupIdx][posInGroup] = m.flatToDevice(flatIdx)
	}
	return groups, nil
}

// ForRank binds the mesh to the rank of the current process, returning a RankMesh.
//
// The sub-groups of every axis are computed eagerly, and the device assignment of the DeviceMesh is frozen.
func (m *DeviceMesh) ForRank(rank int) (*RankMesh, error) {
	_, coords, err := m.DeviceToMesh(rank)
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot bind %s to rank %d", m, rank)
	}
	m.bound.Store(true)
	rm := &RankMesh{
		mesh:        m,
		rank:        rank,
		coordinates: coords,
		groups:      make([]*ProcessGroup, m.Rank()),
	}
	for axis, axisName := range m.axesNames {
		groups, err := m.ComputeReplicaGroups([]string{axisName})
		if err != nil {
			return nil, err
		}
		for _, ranks := range groups {
			if pos := slices.Index(ranks, rank); pos >= 0 {
				rm.groups[axis] = &ProcessGroup{
					axis:     axis,
					axisName: axisName,
					ranks:    ranks,
					rank:     pos,
					global:   rank,
				}
				break
			}
		}
		if rm.groups[axis] == nil {
			return nil, errors.Errorf("rank %d not found in any group of axis %q of %s", rank, axisName, m)
		}
	}
	return rm, nil
}
