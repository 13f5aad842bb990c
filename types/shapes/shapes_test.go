package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	if invalidShape.Ok() {
		t.Error("Invalid().Ok() should be false")
	}

	shape0 := Make(dtypes.Float64)
	if !shape0.Ok() {
		t.Error("shape0.Ok() should be true")
	}
	if !shape0.IsScalar() {
		t.Error("shape0.IsScalar() should be true")
	}
	if shape0.Rank() != 0 {
		t.Errorf("shape0.Rank() = %d, want 0", shape0.Rank())
	}
	if shape0.Size() != 1 {
		t.Errorf("shape0.Size() = %d, want 1", shape0.Size())
	}
	if int(shape0.Memory()) != 8 {
		t.Errorf("shape0.Memory() = %d, want 8", int(shape0.Memory()))
	}

	shape1 := Make(dtypes.Float32, 4, 3, 2)
	if shape1.IsScalar() {
		t.Error("shape1.IsScalar() should be false")
	}
	if shape1.Rank() != 3 {
		t.Errorf("shape1.Rank() = %d, want 3", shape1.Rank())
	}
	if shape1.Size() != 4*3*2 {
		t.Errorf("shape1.Size() = %d, want %d", shape1.Size(), 4*3*2)
	}
	if int(shape1.Memory()) != 4*4*3*2 {
		t.Errorf("shape1.Memory() = %d, want %d", int(shape1.Memory()), 4*4*3*2)
	}
	if got := shape1.String(); got != "(Float32)[4 3 2]" {
		t.Errorf("shape1.String() = %q", got)
	}

	// Zero-sized shapes are valid: they represent empty shards.
	empty := Make(dtypes.Float16, 0, 3)
	if !empty.Ok() || !empty.IsEmpty() {
		t.Errorf("Make(Float16, 0, 3) should be a valid empty shape, got %s", empty)
	}
	if empty.Memory() != 0 {
		t.Errorf("empty.Memory() = %d, want 0", empty.Memory())
	}
	panics(t, func() { _ = Make(dtypes.Float32, 2, -1) })
}

func panics(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic, but code did not panic")
		}
	}()
	f()
}

func notPanics(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("expected no panic, but code panicked: %v", r)
		}
	}()
	f()
}

func TestDim(t *testing.T) {
	shape := Make(dtypes.Float32, 4, 3, 2)
	if d := shape.Dim(0); d != 4 {
		t.Errorf("shape.Dim(0) = %d, want 4", d)
	}
	if d := shape.Dim(-1); d != 2 {
		t.Errorf("shape.Dim(-1) = %d, want 2", d)
	}
	if d := shape.Dim(-3); d != 4 {
		t.Errorf("shape.Dim(-3) = %d, want 4", d)
	}
	panics(t, func() { _ = shape.Dim(3) })
	panics(t, func() { _ = shape.Dim(-4) })
}

func TestStrides(t *testing.T) {
	tests := []struct {
		dims []int
		want []int
	}{
		{nil, []int{}},
		{[]int{5}, []int{1}},
		{[]int{4, 3, 2}, []int{6, 2, 1}},
		{[]int{0, 3}, []int{3, 1}},
		{[]int{3, 0, 2}, []int{2, 2, 1}},
	}
	for _, tt := range tests {
		got := ContiguousStrides(tt.dims)
		if len(got) != len(tt.want) {
			t.Fatalf("ContiguousStrides(%v) = %v, want %v", tt.dims, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ContiguousStrides(%v) = %v, want %v", tt.dims, got, tt.want)
				break
			}
		}
	}
}

func TestCloneAndEqual(t *testing.T) {
	s := Make(dtypes.Float32, 10, 4)
	c := s.Clone()
	if !s.Equal(c) {
		t.Errorf("clone %s should be equal to %s", c, s)
	}
	c.Dimensions[0] = 12
	if s.Dimensions[0] != 10 {
		t.Error("Clone() should not share dimensions with the original")
	}
	if s.Equal(c) || s.EqualDimensions(c) {
		t.Errorf("%s and %s should differ", s, c)
	}
	if !Make(dtypes.Float32, 2).EqualDimensions(Make(dtypes.Int8, 2)) {
		t.Error("EqualDimensions should ignore dtypes")
	}
}

func TestFromAnyValue(t *testing.T) {
	shape, err := FromAnyValue([]int32{1, 2, 3})
	if err != nil {
		t.Fatalf("FromAnyValue failed: %v", err)
	}
	notPanics(t, func() {
		if err := shape.Check(dtypes.Int32, 3); err != nil {
			panic(err)
		}
	})

	shape, err = FromAnyValue([][]float16.Float16{{float16.Fromfloat32(1)}, {float16.Fromfloat32(2)}})
	if err != nil {
		t.Fatalf("FromAnyValue failed: %v", err)
	}
	if err := shape.Check(dtypes.Float16, 2, -1); err != nil {
		t.Error(err)
	}

	// Irregular shape is not accepted:
	shape, err = FromAnyValue([][]float32{{1, 2, 3}, {4, 5}})
	if err == nil {
		t.Errorf("irregular shape should have returned an error, instead got shape %s", shape)
	}

	shape, err = FromAnyValue(int64(7))
	if err != nil {
		t.Fatalf("FromAnyValue failed: %v", err)
	}
	if !shape.IsScalar() || shape.DType != dtypes.Int64 {
		t.Errorf("expected an Int64 scalar, got %s", shape)
	}

	for _, v := range []any{
		nil,
		[]float32{},
		[][]float32{{}, {}},
		[]string{"a"},
		[][][]int8{{{1}, {2}}, {{3}, {4, 5}}},
	} {
		if shape, err := FromAnyValue(v); err == nil {
			t.Errorf("FromAnyValue(%#v) should have failed, got shape %s", v, shape)
		}
	}
}
