// Package initializers provides the value sources used to seed graph
// parameters and constants: deterministic fills, copies of user data and
// pseudo-random draws.
//
// An Initializer produces a backend buffer of a requested shape. The graph
// package calls them when a Parameter is first materialized, and the dropout
// helpers use BernoulliScaled to build the cached scaled masks.
package initializers

import (
	"math/rand/v2"

	"github.com/exprgraph/exprgraph/backends"
	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Initializer produces a buffer of the given shape on the given backend.
type Initializer func(backend backends.Backend, shape shapes.Shape) (backends.Buffer, error)

// Zeros initializes every element to 0.
func Zeros() Initializer {
	return func(backend backends.Backend, shape shapes.Shape) (backends.Buffer, error) {
		return backend.NewBuffer(shape)
	}
}

// Ones initializes every element to 1.
func Ones() Initializer {
	return FromValue(1)
}

// FromValue initializes every element to the given value, converted to the
// target dtype.
func FromValue(value float64) Initializer {
	return fill(func(flat []float64, _ *rand.Rand) {
		for ii := range flat {
			flat[ii] = value
		}
	}, nil)
}

// FromFlat initializes from a copy of the given flat slice, which must match
// the shape's dtype and size exactly.
func FromFlat(flat any) Initializer {
	return func(backend backends.Backend, shape shapes.Shape) (backends.Buffer, error) {
		return backend.BufferFromFlat(flat, shape)
	}
}

// RandomUniform initializes with independent draws from [low, high). Integer
// dtypes truncate toward zero.
func RandomUniform(low, high float64, rng *rand.Rand) Initializer {
	return fill(func(flat []float64, rng *rand.Rand) {
		for ii := range flat {
			flat[ii] = low + (high-low)*rng.Float64()
		}
	}, rng)
}

// RandomNormal initializes with independent normal draws.
func RandomNormal(mean, stddev float64, rng *rand.Rand) Initializer {
	return fill(func(flat []float64, rng *rand.Rand) {
		for ii := range flat {
			flat[ii] = mean + stddev*rng.NormFloat64()
		}
	}, rng)
}

// BernoulliScaled draws an inverted-dropout mask: each element independently
// keeps value 1/(1-rate) with probability 1-rate and is 0 otherwise, so the
// expected value of masked data equals the unmasked data.
func BernoulliScaled(rate float64, rng *rand.Rand) Initializer {
	return func(backend backends.Backend, shape shapes.Shape) (backends.Buffer, error) {
		if rate < 0 || rate >= 1 {
			return nil, errors.Errorf("dropout rate must be in [0, 1), got %g", rate)
		}
		keep := 1 - rate
		scale := 1 / keep
		return fill(func(flat []float64, rng *rand.Rand) {
			for ii := range flat {
				if rng.Float64() < keep {
					flat[ii] = scale
				}
			}
		}, rng)(backend, shape)
	}
}

// fill generates shape.Size() float64 values and hands them to the backend
// converted to the shape's dtype.
func fill(gen func(flat []float64, rng *rand.Rand), rng *rand.Rand) Initializer {
	return func(backend backends.Backend, shape shapes.Shape) (backends.Buffer, error) {
		values := make([]float64, shape.Size())
		gen(values, rng)
		flat, err := convertFlat(values, shape.DType)
		if err != nil {
			return nil, err
		}
		return backend.BufferFromFlat(flat, shape)
	}
}

func convertFlat(values []float64, dtype dtypes.DType) (any, error) {
	switch dtype {
	case dtypes.Float64:
		return values, nil
	case dtypes.Float32:
		flat := make([]float32, len(values))
		for ii, v := range values {
			flat[ii] = float32(v)
		}
		return flat, nil
	case dtypes.Float16:
		flat := make([]float16.Float16, len(values))
		for ii, v := range values {
			flat[ii] = float16.Fromfloat32(float32(v))
		}
		return flat, nil
	case dtypes.Int32:
		flat := make([]int32, len(values))
		for ii, v := range values {
			flat[ii] = int32(v)
		}
		return flat, nil
	case dtypes.Int64:
		flat := make([]int64, len(values))
		for ii, v := range values {
			flat[ii] = int64(v)
		}
		return flat, nil
	default:
		return nil, errors.Errorf("initializers do not support dtype %s", dtype)
	}
}
