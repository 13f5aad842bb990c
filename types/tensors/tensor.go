// Package tensors implements a minimal host tensor: a Shape, the flat (row-major) data and the metadata the
// FSDP layer needs to reason about (device and whether it requires gradients).
//
// It does no math: only the splitting, padding and copying needed to carve parameters into per-rank shards.
//
// Tensors returned by Narrow and Chunk along axis 0 are views: they share the storage of the original tensor,
// so writes through one are visible through the other. A Tensor is not safe for concurrent mutation.
package tensors

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fsdp/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// DeviceNum identifies the device a tensor is stored on.
type DeviceNum int

// Tensor holds the shape and the flat data of a tensor.
type Tensor struct {
	shape shapes.Shape

	// flat holds the array with actual data, a slice of the Go type for the dtype of the shape.
	// It may be shared with other tensors (views).
	flat any

	device       DeviceNum
	requiresGrad bool
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape(%s): invalid shape", shape)
	}
	size := shape.Size()
	flatV := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), size, size)
	return &Tensor{shape: shape.Clone(), flat: flatV.Interface()}
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with a copy of data.
//
// It panics if len(data) doesn't match the product of the dimensions.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if shape.Size() != len(data) {
		exceptions.Panicf("tensors.FromFlatDataAndDimensions: data has %d elements, but dimensions %v require %d",
			len(data), dimensions, shape.Size())
	}
	return &Tensor{shape: shape, flat: slices.Clone(data)}
}

// FromValue returns a tensor created from a multidimensional slice (or a scalar) of a supported type.
//
// Example:
//
//	t, err := tensors.FromValue([][]float32{{1, 2}, {3, 4}})
func FromValue(value any) (*Tensor, error) {
	shape, err := shapes.FromAnyValue(value)
	if err != nil {
		return nil, err
	}
	t := FromShape(shape)
	flatV := reflect.ValueOf(t.flat)
	pos := 0
	var flatten func(v reflect.Value)
	flatten = func(v reflect.Value) {
		if v.Kind() != reflect.Slice {
			flatV.Index(pos).Set(v.Convert(flatV.Type().Elem()))
			pos++
			return
		}
		for ii := range v.Len() {
			flatten(v.Index(ii))
		}
	}
	flatten(reflect.ValueOf(value))
	return t, nil
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's shape.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size returns the number of elements in the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used by the tensor data.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// Device the tensor is stored on.
func (t *Tensor) Device() DeviceNum { return t.device }

// SetDevice sets the device the tensor is associated with. It returns the tensor itself, so calls can be chained.
func (t *Tensor) SetDevice(device DeviceNum) *Tensor {
	t.device = device
	return t
}

// RequiresGrad returns whether the tensor is marked as requiring gradients.
func (t *Tensor) RequiresGrad() bool { return t.requiresGrad }

// SetRequiresGrad marks the tensor as requiring gradients (or not). It returns the tensor itself, so calls can be
// chained.
func (t *Tensor) SetRequiresGrad(requiresGrad bool) *Tensor {
	t.requiresGrad = requiresGrad
	return t
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType type.
// The data should not be changed, see MutableFlatData.
func (t *Tensor) ConstFlatData(accessFn func(flat any)) {
	accessFn(t.flat)
}

// MutableFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType type.
// Changes are visible to all views sharing the same storage.
func (t *Tensor) MutableFlatData(accessFn func(flat any)) {
	accessFn(t.flat)
}

// MutableFlatData is the "generics" version of Tensor.MutableFlatData.
//
// It panics if T doesn't match the tensor's dtype.
func MutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	flat, ok := t.flat.([]T)
	if !ok {
		exceptions.Panicf("MutableFlatData[%T]: tensor has dtype %s", *new(T), t.DType())
	}
	accessFn(flat)
}

// CopyFlatData returns a copy of the flat data of the tensor.
//
// It panics if T doesn't match the tensor's dtype.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	flat, ok := t.flat.([]T)
	if !ok {
		exceptions.Panicf("CopyFlatData[%T]: tensor has dtype %s", *new(T), t.DType())
	}
	return append([]T(nil), flat...)
}

// NewEmpty returns a zero-filled tensor with the given dimensions and the same dtype and device as t.
// It doesn't require gradients.
func (t *Tensor) NewEmpty(dimensions ...int) *Tensor {
	empty := FromShape(shapes.Make(t.DType(), dimensions...))
	empty.device = t.device
	return empty
}

// Narrow returns the slice [start, start+length) of the tensor along the given axis.
//
// Along axis 0 (or any axis preceded only by axes of dimension 1) the result is a view sharing the storage of t.
// The view's capacity is capped, so appending to its flat data never writes over t.
// Along other axes the data is copied.
func (t *Tensor) Narrow(axis, start, length int) (*Tensor, error) {
	adjustedAxis, err := t.shape.AdjustAxis(axis)
	if err != nil {
		return nil, errors.WithMessage(err, "Tensor.Narrow")
	}
	dim := t.shape.Dimensions[adjustedAxis]
	if start < 0 || length < 0 || start+length > dim {
		return nil, errors.Errorf("Tensor.Narrow(axis=%d, start=%d, length=%d) out-of-bounds for shape %s",
			axis, start, length, t.shape)
	}
	outer := 1
	for _, d := range t.shape.Dimensions[:adjustedAxis] {
		outer *= d
	}
	inner := 1
	for _, d := range t.shape.Dimensions[adjustedAxis+1:] {
		inner *= d
	}

	narrowed := &Tensor{
		shape:        t.shape.Clone(),
		device:       t.device,
		requiresGrad: t.requiresGrad,
	}
	narrowed.shape.Dimensions[adjustedAxis] = length
	srcV := reflect.ValueOf(t.flat)
	if outer == 1 {
		from, to := start*inner, (start+length)*inner
		narrowed.flat = srcV.Slice3(from, to, to).Interface()
		return narrowed, nil
	}

	size := outer * length * inner
	dstV := reflect.MakeSlice(srcV.Type(), size, size)
	block := length * inner
	for o := range outer {
		srcFrom := o*dim*inner + start*inner
		reflect.Copy(dstV.Slice(o*block, (o+1)*block), srcV.Slice(srcFrom, srcFrom+block))
	}
	narrowed.flat = dstV.Interface()
	return narrowed, nil
}

// Chunk splits the tensor into at most numChunks contiguous pieces along axis.
//
// Every piece has ceil(dim/numChunks) elements along axis, except the last which may be smaller. So fewer than
// numChunks pieces may be returned: e.g. a dimension of 2 split in 4 chunks yields only 2 pieces.
// An empty axis yields a single (empty) piece.
func (t *Tensor) Chunk(numChunks, axis int) ([]*Tensor, error) {
	if numChunks <= 0 {
		return nil, errors.Errorf("Tensor.Chunk: numChunks must be > 0, got %d", numChunks)
	}
	adjustedAxis, err := t.shape.AdjustAxis(axis)
	if err != nil {
		return nil, errors.WithMessage(err, "Tensor.Chunk")
	}
	dim := t.shape.Dimensions[adjustedAxis]
	chunkSize := (dim + numChunks - 1) / numChunks
	if chunkSize == 0 {
		whole, err := t.Narrow(adjustedAxis, 0, 0)
		if err != nil {
			return nil, err
		}
		return []*Tensor{whole}, nil
	}
	chunks := make([]*Tensor, 0, numChunks)
	for start := 0; start < dim; start += chunkSize {
		chunk, err := t.Narrow(adjustedAxis, start, min(chunkSize, dim-start))
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// PadDim0 returns a copy of the tensor with the first axis extended to dim0, filled with zeros.
// If dim0 is already the tensor's first dimension, it returns a copy.
func (t *Tensor) PadDim0(dim0 int) (*Tensor, error) {
	if t.Rank() == 0 {
		return nil, errors.Errorf("Tensor.PadDim0: cannot pad scalar %s", t.shape)
	}
	if dim0 < t.shape.Dimensions[0] {
		return nil, errors.Errorf("Tensor.PadDim0(%d): smaller than the current dimension of %s", dim0, t.shape)
	}
	paddedShape := t.shape.Clone()
	paddedShape.Dimensions[0] = dim0
	padded := FromShape(paddedShape)
	padded.device = t.device
	padded.requiresGrad = t.requiresGrad
	reflect.Copy(reflect.ValueOf(padded.flat), reflect.ValueOf(t.flat))
	return padded, nil
}

// Clone returns a deep copy of the tensor, not sharing storage.
func (t *Tensor) Clone() *Tensor {
	srcV := reflect.ValueOf(t.flat)
	dstV := reflect.MakeSlice(srcV.Type(), srcV.Len(), srcV.Len())
	reflect.Copy(dstV, srcV)
	return &Tensor{shape: t.shape.Clone(), flat: dstV.Interface(), device: t.device, requiresGrad: t.requiresGrad}
}

// Equal checks whether two tensors have the same shape and values. Device and requires-grad are not compared.
func (t *Tensor) Equal(other *Tensor) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	return reflect.DeepEqual(t.flat, other.flat)
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if t.Size() > 16 {
		return fmt.Sprintf("Tensor%s@device=%d", t.shape, t.device)
	}
	return fmt.Sprintf("Tensor%s@device=%d: %v", t.shape, t.device, t.flat)
}
