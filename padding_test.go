package fsdp

import (
	"fmt"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fsdp/types/shapes"
	"github.com/gomlx/fsdp/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func iotaF32(n int) []float32 {
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i)
	}
	return data
}

func TestDim0PaddedSize(t *testing.T) {
	tests := []struct {
		dims   []int
		factor int
		want   []int
	}{
		{[]int{10, 3}, 4, []int{12, 3}},
		{[]int{2, 5}, 4, []int{4, 5}},
		{[]int{12}, 4, []int{12}},
		{[]int{0, 7}, 4, []int{4, 7}},
		{[]int{7, 1, 2}, 1, []int{7, 1, 2}},
		{[]int{9, 2}, 9, []int{9, 2}},
		{[]int{10, 3}, 3, []int{12, 3}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v/%d", tt.dims, tt.factor), func(t *testing.T) {
			input := append([]int(nil), tt.dims...)
			got := Dim0PaddedSize(input, tt.factor)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.dims, input, "input must not be modified")
			got[0] = -1
			assert.Equal(t, tt.dims, input, "result must not alias the input")
		})
	}

	for dim0 := range 21 {
		for factor := 1; factor <= 6; factor++ {
			dims := []int{dim0, 3}
			padded := Dim0PaddedSize(dims, factor)
			assert.Zerof(t, padded[0]%factor, "Dim0PaddedSize(%v, %d)=%v", dims, factor, padded)
			assert.Equal(t, 3, padded[1])
			if dim0 < factor {
				assert.Equal(t, factor, padded[0])
			} else {
				assert.GreaterOrEqual(t, padded[0], dim0)
				assert.Less(t, padded[0], dim0+factor)
			}
			assert.Equal(t, padded, Dim0PaddedSize(padded, factor), "must be idempotent")
		}
	}

	require.Error(t, exceptions.TryCatch[error](func() { Dim0PaddedSize([]int{4}, 0) }))
	require.Error(t, exceptions.TryCatch[error](func() { Dim0PaddedSize(nil, 2) }))
}

func TestDim0PaddedShape(t *testing.T) {
	padded := Dim0PaddedShape(shapes.Make(dtypes.Float16, 10, 3), 4)
	assert.NoError(t, padded.Check(dtypes.Float16, 12, 3))
}

func TestChunkWithEmpty(t *testing.T) {
	t.Run("padded then chunked evenly", func(t *testing.T) {
		param := tensors.FromFlatDataAndDimensions(iotaF32(20), 10, 2)
		padded, err := param.PadDim0(Dim0PaddedSize(param.Shape().Dimensions, 4)[0])
		require.NoError(t, err)
		assert.Equal(t, []int{12, 2}, padded.Shape().Dimensions)
		chunks := ChunkWithEmpty(padded, 4, 0)
		require.Len(t, chunks, 4)
		for _, chunk := range chunks {
			assert.Equal(t, []int{3, 2}, chunk.Shape().Dimensions)
		}
		assert.Equal(t, []float32{18, 19, 0, 0, 0, 0}, tensors.CopyFlatData[float32](chunks[3]))
	})

	t.Run("fewer rows than chunks", func(t *testing.T) {
		param := tensors.FromFlatDataAndDimensions(iotaF32(6), 2, 3).SetDevice(1)
		chunks := ChunkWithEmpty(param, 4, 0)
		require.Len(t, chunks, 4)
		assert.Equal(t, []int{1, 3}, chunks[0].Shape().Dimensions)
		assert.Equal(t, []int{1, 3}, chunks[1].Shape().Dimensions)
		for _, empty := range chunks[2:] {
			assert.Equal(t, []int{0}, empty.Shape().Dimensions)
			assert.Equal(t, dtypes.Float32, empty.DType())
			assert.Equal(t, tensors.DeviceNum(1), empty.Device())
		}
	})

	t.Run("always numChunks", func(t *testing.T) {
		for dim0 := range 14 {
			for numChunks := 1; numChunks <= 5; numChunks++ {
				data := iotaF32(dim0 * 2)
				param := tensors.FromFlatDataAndDimensions(data, dim0, 2).SetDevice(3)
				chunks := ChunkWithEmpty(param, numChunks, 0)
				require.Lenf(t, chunks, numChunks, "dim0=%d, numChunks=%d", dim0, numChunks)
				joined := []float32{}
				for _, chunk := range chunks {
					assert.Equal(t, dtypes.Float32, chunk.DType())
					assert.Equal(t, tensors.DeviceNum(3), chunk.Device())
					joined = append(joined, tensors.CopyFlatData[float32](chunk)...)
				}
				assert.Equal(t, data[:len(joined)], joined)
				assert.Len(t, joined, len(data))
			}
		}
	})

	t.Run("chunks are views", func(t *testing.T) {
		param := tensors.FromFlatDataAndDimensions(iotaF32(8), 4, 2)
		chunks := ChunkWithEmpty(param, 2, 0)
		tensors.MutableFlatData(chunks[1], func(flat []float32) { flat[0] = -1 })
		assert.Equal(t, float32(-1), tensors.CopyFlatData[float32](param)[4])
	})

	t.Run("dtype preserved", func(t *testing.T) {
		data := make([]float16.Float16, 3)
		for i := range data {
			data[i] = float16.Fromfloat32(float32(i) + 0.5)
		}
		param := tensors.FromFlatDataAndDimensions(data, 3)
		chunks := ChunkWithEmpty(param, 5, 0)
		require.Len(t, chunks, 5)
		for _, chunk := range chunks {
			assert.Equal(t, dtypes.Float16, chunk.DType())
		}
		assert.Equal(t, float32(2.5), tensors.CopyFlatData[float16.Float16](chunks[2])[0].Float32())
	})

	t.Run("invalid", func(t *testing.T) {
		param := tensors.FromFlatDataAndDimensions(iotaF32(4), 4)
		require.Error(t, exceptions.TryCatch[error](func() { ChunkWithEmpty(param, 0, 0) }))
		require.Error(t, exceptions.TryCatch[error](func() { ChunkWithEmpty(param, 2, 1) }))
	})
}
