// Package shapes defines Shape and associated tools.
//
// Shape represents the dtype and dimensions of a tensor, either the local (physical) piece held by a rank,
// or the logical (global) tensor it is part of.
//
// Unlike shapes used for computation graphs, a dimension can be 0: FSDP shards of ranks whose logical share
// of a parameter is empty are represented by zero-sized tensors.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a tensor. Not to be confused with a process rank in a DeviceMesh.
//   - Axis: is the index of a dimension on a multidimensional tensor.
//   - Dimension: the size of a tensor in one of its axes.
//   - DType: the data type of the unit element in a tensor. Enumeration defined in github.com/gomlx/gopjrt/dtypes
//   - Stride: the number of elements to skip in the flat storage to advance one position along an axis.
package shapes

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Shape represents the shape of a tensor: its DType and its dimensions.
//
// Use Make to create a new shape.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape structure filled with the values given.
//
// It panics if any of the dimensions is negative.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension < 0", s)
		}
	}
	return s
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// IsEmpty returns whether the shape holds no elements, that is, one of its dimensions is 0.
func (s Shape) IsEmpty() bool { return s.Ok() && s.Size() == 0 }

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis, err := s.AdjustAxis(axis)
	if err != nil {
		panic(err)
	}
	return s.Dimensions[adjustedAxis]
}

// AdjustAxis converts a negative axis to its positive equivalent, and returns an error if it is out-of-bounds.
func (s Shape) AdjustAxis(axis int) (int, error) {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		return 0, errors.Errorf("axis %d out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return adjustedAxis, nil
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// String implements stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// Size returns the number of elements of DType are needed for this shape. It's the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the memory used to store an array of the given shape, the same as the size in bytes.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// Strides returns the contiguous (row-major) strides for the shape: the last axis has stride 1.
// A scalar has no strides.
func (s Shape) Strides() []int {
	return ContiguousStrides(s.Dimensions)
}

// ContiguousStrides returns the row-major strides of a tensor with the given dimensions.
//
// Axes with dimension 0 don't affect the strides of the preceding axes, matching the convention that
// a stride is never 0.
func ContiguousStrides(dimensions []int) []int {
	strides := make([]int, len(dimensions))
	stride := 1
	for axis := len(dimensions) - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= max(dimensions[axis], 1)
	}
	return strides
}

// Equal compares two shapes for equality: dtype and dimensions are compared.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// EqualDimensions compares two shapes for equality of dimensions. Dtypes can be different.
func (s Shape) EqualDimensions(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = slices.Clone(s.Dimensions)
	return
}

// Check that the shape has the given dtype and dimensions. A dimension of -1 is not checked.
func (s Shape) Check(dtype dtypes.DType, dimensions ...int) error {
	if s.DType != dtype {
		return errors.Errorf("shape %s has dtype %s, wanted %s", s, s.DType, dtype)
	}
	if s.Rank() != len(dimensions) {
		return errors.Errorf("shape %s has rank %d, wanted %d", s, s.Rank(), len(dimensions))
	}
	for axis, dim := range dimensions {
		if dim != -1 && s.Dimensions[axis] != dim {
			return errors.Errorf("shape %s has dimension %d for axis %d, wanted %d",
				s, s.Dimensions[axis], axis, dim)
		}
	}
	return nil
}
