package purego

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Shared helpers for the exec_*.go kernel files.

// numeric are the element types the purego kernels compute with. Float16 is
// storage-only: it must be Cast to one of these before arithmetic.
type numeric interface {
	float32 | float64 | int32 | int64
}

// floaty are the element types accepted by the transcendental kernels.
type floaty interface {
	float32 | float64
}

// computeStrides returns the row-major strides of the given dimensions: the
// flat distance between consecutive elements along each axis.
func computeStrides(dims []int) []int {
	strides := make([]int, len(dims))
	stride := 1
	for axis := len(dims) - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= dims[axis]
	}
	return strides
}

// errUnsupportedDType is the uniform complaint of kernels asked to compute on
// a dtype they do not implement (notably Float16 arithmetic).
func errUnsupportedDType(opName string, dtype dtypes.DType) error {
	return errors.Errorf("%s is not implemented for dtype %s", opName, dtype)
}

// indexFlat reads the indices buffer as a flat []int slice, accepting Int32
// and Int64 storage.
func indexFlat(buf *Buffer) ([]int, error) {
	switch flat := buf.flat.(type) {
	case []int32:
		indices := make([]int, len(flat))
		for ii, v := range flat {
			indices[ii] = int(v)
		}
		return indices, nil
	case []int64:
		indices := make([]int, len(flat))
		for ii, v := range flat {
			indices[ii] = int(v)
		}
		return indices, nil
	default:
		return nil, errors.Errorf("indices must be Int32 or Int64, got %s", buf.shape.DType)
	}
}
