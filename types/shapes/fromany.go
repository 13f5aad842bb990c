package shapes

import (
	"reflect"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// FromAnyValue returns the shape of a scalar or of a (possibly nested) slice of scalars, e.g. float32, []int64
// or [][]float16.Float16. Nested slices must be regular: sub-slices at the same depth have the same length.
//
// The dimensions are taken from the first element at each depth, so empty slices are rejected.
//
//	shape, _ := shapes.FromAnyValue([][]float64{{0, 0}}) // (Float64)[1 2]
func FromAnyValue(v any) (Shape, error) {
	if v == nil {
		return Shape{}, errors.New("cannot take the shape of a nil value")
	}
	value := reflect.ValueOf(v)
	var dims []int
	leaf := value
	for leaf.Kind() == reflect.Slice {
		if leaf.Len() == 0 {
			return Shape{}, errors.Errorf("cannot take the shape of %T: empty slice at axis %d leaves the inner "+
				"dimensions unknown", v, len(dims))
		}
		dims = append(dims, leaf.Len())
		leaf = leaf.Index(0)
	}
	dtype := dtypes.FromGoType(leaf.Type())
	if dtype == dtypes.InvalidDType {
		return Shape{}, errors.Errorf("cannot take the shape of %T: %s is not a supported dtype", v, leaf.Type())
	}
	if err := checkRegular(value, dims, 0); err != nil {
		return Shape{}, errors.WithMessagef(err, "cannot take the shape of %T", v)
	}
	return Make(dtype, dims...), nil
}

// checkRegular checks that every slice at depth axis (and below) of v has length dims[axis].
func checkRegular(v reflect.Value, dims []int, axis int) error {
	if axis == len(dims) {
		return nil
	}
	if v.Len() != dims[axis] {
		return errors.Errorf("irregular sub-slices: axis %d has length %d, expected %d", axis, v.Len(), dims[axis])
	}
	for i := range v.Len() {
		if err := checkRegular(v.Index(i), dims, axis+1); err != nil {
			return err
		}
	}
	return nil
}
