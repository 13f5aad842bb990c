package utils

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// dtypeShortNames are the short names accepted in configuration files.
var dtypeShortNames = map[dtypes.DType]string{
	dtypes.F64:        "f64",
	dtypes.F32:        "f32",
	dtypes.F16:        "f16",
	dtypes.BFloat16:   "bf16",
	dtypes.S64:        "i64",
	dtypes.S32:        "i32",
	dtypes.S16:        "i16",
	dtypes.S8:         "i8",
	dtypes.U64:        "ui64",
	dtypes.U32:        "ui32",
	dtypes.U16:        "ui16",
	dtypes.U8:         "ui8",
	dtypes.Bool:       "bool",
	dtypes.Complex64:  "c64",
	dtypes.Complex128: "c128",
}

// DTypeShortName returns the short name of dtype (e.g. "f32", "bf16"), or the dtype's String() if it has none.
func DTypeShortName(dtype dtypes.DType) string {
	if name, found := dtypeShortNames[dtype]; found {
		return name
	}
	return dtype.String()
}

// ParseDType converts a short name (see DTypeShortName) to a dtype.
func ParseDType(name string) (dtypes.DType, error) {
	for dtype, shortName := range dtypeShortNames {
		if shortName == name {
			return dtype, nil
		}
	}
	return dtypes.InvalidDType, errors.Errorf("unknown dtype %q", name)
}
