package purego

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/gomlx/gopjrt/dtypes"
)

func init() {
	kernels[backends.OpTypeReduceSum] = makeReduce("ReduceSum", reduceSum[float32], reduceSum[float64], reduceSum[int32], reduceSum[int64])
	kernels[backends.OpTypeReduceMean] = makeReduce("ReduceMean", reduceMean[float32], reduceMean[float64], reduceMean[int32], reduceMean[int64])
	kernels[backends.OpTypeReduceMax] = makeReduce("ReduceMax", reduceMax[float32], reduceMax[float64], reduceMax[int32], reduceMax[int64])
	kernels[backends.OpTypeReduceMin] = makeReduce("ReduceMin", reduceMin[float32], reduceMin[float64], reduceMin[int32], reduceMin[int64])
	kernels[backends.OpTypeReduceProd] = makeReduce("ReduceProd", reduceProd[float32], reduceProd[float64], reduceProd[int32], reduceProd[int64])
}

// reduceFn collapses one run of axisDim elements spaced inner apart.
type reduceFn[T numeric] func(in []T, start, axisDim, inner int) T

func reduceSum[T numeric](in []T, start, axisDim, inner int) T {
	var acc T
	for a := 0; a < axisDim; a++ {
		acc += in[start+a*inner]
	}
	return acc
}

func reduceMean[T numeric](in []T, start, axisDim, inner int) T {
	return reduceSum(in, start, axisDim, inner) / T(axisDim)
}

func reduceMax[T numeric](in []T, start, axisDim, inner int) T {
	acc := in[start]
	for a := 1; a < axisDim; a++ {
		if v := in[start+a*inner]; v > acc {
			acc = v
		}
	}
	return acc
}

func reduceMin[T numeric](in []T, start, axisDim, inner int) T {
	acc := in[start]
	for a := 1; a < axisDim; a++ {
		if v := in[start+a*inner]; v < acc {
			acc = v
		}
	}
	return acc
}

func reduceProd[T numeric](in []T, start, axisDim, inner int) T {
	acc := in[start]
	for a := 1; a < axisDim; a++ {
		acc *= in[start+a*inner]
	}
	return acc
}

// reduceAxis collapses op.Axis of the input. The output keeps the axis with
// size 1, so the factory-side shapes line up for broadcasting back.
func reduceAxis[T numeric](out, in []T, inDims []int, axis int, fn reduceFn[T]) {
	outer, inner := 1, 1
	for a := 0; a < axis; a++ {
		outer *= inDims[a]
	}
	for a := axis + 1; a < len(inDims); a++ {
		inner *= inDims[a]
	}
	axisDim := inDims[axis]
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			out[o*inner+i] = fn(in, o*axisDim*inner+i, axisDim, inner)
		}
	}
}

func makeReduce(name string, f32 reduceFn[float32], f64 reduceFn[float64], i32 reduceFn[int32], i64 reduceFn[int64]) kernelFn {
	return func(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
		input := inputs[0]
		output := b.getBuffer(op.Shape)
		switch op.Shape.DType {
		case dtypes.Float32:
			reduceAxis(output.flat.([]float32), input.flat.([]float32), input.shape.Dimensions, op.Axis, f32)
		case dtypes.Float64:
			reduceAxis(output.flat.([]float64), input.flat.([]float64), input.shape.Dimensions, op.Axis, f64)
		case dtypes.Int32:
			reduceAxis(output.flat.([]int32), input.flat.([]int32), input.shape.Dimensions, op.Axis, i32)
		case dtypes.Int64:
			reduceAxis(output.flat.([]int64), input.flat.([]int64), input.shape.Dimensions, op.Axis, i64)
		default:
			b.bufferPools.put(output)
			return nil, errUnsupportedDType(name, op.Shape.DType)
		}
		return output, nil
	}
}
