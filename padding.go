package fsdp

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fsdp/types/shapes"
	"github.com/gomlx/fsdp/types/tensors"
	"github.com/pkg/errors"
)

// Dim0PaddedSize returns the dimensions with the first one padded to a multiple of factor, so it can be split
// evenly in factor chunks:
//
//   - if dims[0] < factor, it returns factor;
//   - if dims[0] is not a multiple of factor, it's rounded up to the next multiple;
//   - otherwise it's unchanged.
//
// The other dimensions are copied unchanged. The input is never modified or aliased.
// It panics if factor <= 0 or dims is empty.
func Dim0PaddedSize(dims []int, factor int) []int {
	if factor <= 0 {
		exceptions.Panicf("Dim0PaddedSize(%v, %d): factor must be > 0", dims, factor)
	}
	if len(dims) == 0 {
		exceptions.Panicf("Dim0PaddedSize(%v, %d): cannot pad a scalar", dims, factor)
	}
	padded := slices.Clone(dims)
	if dims[0] < factor {
		padded[0] = factor
	} else if rem := dims[0] % factor; rem != 0 {
		padded[0] = dims[0] + factor - rem
	}
	return padded
}

// Dim0PaddedShape is like Dim0PaddedSize, but for a shape. The dtype is preserved.
func Dim0PaddedShape(shape shapes.Shape, factor int) shapes.Shape {
	return shapes.Make(shape.DType, Dim0PaddedSize(shape.Dimensions, factor)...)
}

// ChunkWithEmpty splits the tensor into exactly numChunks pieces along axis.
//
// The split follows tensors.Tensor.Chunk: every piece has ceil(dim/numChunks) elements along axis, except the
// last which may be smaller, and there may be fewer than numChunks pieces. The missing ones are filled with empty
// rank-1 tensors (shape [0]) with the same dtype and device as t.
//
// Pieces along axis 0 are views into t. It panics if numChunks <= 0 or axis is invalid.
func ChunkWithEmpty(t *tensors.Tensor, numChunks, axis int) []*tensors.Tensor {
	chunks, err := t.Chunk(numChunks, axis)
	if err != nil {
		panic(errors.WithMessagef(err, "ChunkWithEmpty(%s, %d, %d)", t.Shape(), numChunks, axis))
	}
	for len(chunks) < numChunks {
		chunks = append(chunks, t.NewEmpty(0))
	}
	return chunks
}
