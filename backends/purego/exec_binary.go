package purego

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/gomlx/gopjrt/dtypes"
)

func init() {
	kernels[backends.OpTypeAdd] = makeBinary("Add", func(a, b float64) float64 { return a + b }, func(a, b int64) int64 { return a + b })
	kernels[backends.OpTypeSub] = makeBinary("Sub", func(a, b float64) float64 { return a - b }, func(a, b int64) int64 { return a - b })
	kernels[backends.OpTypeMul] = makeBinary("Mul", func(a, b float64) float64 { return a * b }, func(a, b int64) int64 { return a * b })
	kernels[backends.OpTypeDiv] = makeBinary("Div", func(a, b float64) float64 { return a / b }, func(a, b int64) int64 { return a / b })
	kernels[backends.OpTypeMaximum] = makeBinary("Maximum",
		func(a, b float64) float64 {
			if a > b {
				return a
			}
			return b
		},
		func(a, b int64) int64 {
			if a > b {
				return a
			}
			return b
		})
	kernels[backends.OpTypeMinimum] = makeBinary("Minimum",
		func(a, b float64) float64 {
			if a < b {
				return a
			}
			return b
		},
		func(a, b int64) int64 {
			if a < b {
				return a
			}
			return b
		})

	kernels[backends.OpTypeLessThan] = makeComparison("LessThan", func(a, b float64) bool { return a < b }, func(a, b int64) bool { return a < b })
	kernels[backends.OpTypeLessOrEqual] = makeComparison("LessOrEqual", func(a, b float64) bool { return a <= b }, func(a, b int64) bool { return a <= b })
	kernels[backends.OpTypeGreaterThan] = makeComparison("GreaterThan", func(a, b float64) bool { return a > b }, func(a, b int64) bool { return a > b })
	kernels[backends.OpTypeGreaterOrEqual] = makeComparison("GreaterOrEqual", func(a, b float64) bool { return a >= b }, func(a, b int64) bool { return a >= b })
	kernels[backends.OpTypeEqual] = makeComparison("Equal", func(a, b float64) bool { return a == b }, func(a, b int64) bool { return a == b })
	kernels[backends.OpTypeNotEqual] = makeComparison("NotEqual", func(a, b float64) bool { return a != b }, func(a, b int64) bool { return a != b })
}

// broadcastIterator walks the flat positions of two operands in lock-step
// with the row-major traversal of the (already broadcast) output shape.
// Operand axes of size 1 get stride 0, so the same element is revisited for
// every output position along the broadcast axis.
type broadcastIterator struct {
	outDims        []int
	lhsStrides     []int
	rhsStrides     []int
	counters       []int
	lhsIdx, rhsIdx int
}

func newBroadcastIterator(lhsDims, rhsDims, outDims []int) *broadcastIterator {
	it := &broadcastIterator{
		outDims:    outDims,
		lhsStrides: broadcastStrides(lhsDims, outDims),
		rhsStrides: broadcastStrides(rhsDims, outDims),
		counters:   make([]int, len(outDims)),
	}
	return it
}

// broadcastStrides returns the per-output-axis flat strides of an operand
// whose dimensions right-align with outDims. Missing leading axes and axes
// of size 1 get stride 0.
func broadcastStrides(dims, outDims []int) []int {
	strides := make([]int, len(outDims))
	stride := 1
	shift := len(outDims) - len(dims)
	for axis := len(outDims) - 1; axis >= shift; axis-- {
		dim := dims[axis-shift]
		if dim != 1 {
			strides[axis] = stride
		}
		stride *= dim
	}
	return strides
}

// next returns the operand flat indices for the current output position and
// advances. The caller must not call it more than the output size times.
func (it *broadcastIterator) next() (lhsIdx, rhsIdx int) {
	lhsIdx, rhsIdx = it.lhsIdx, it.rhsIdx
	for axis := len(it.outDims) - 1; axis >= 0; axis-- {
		it.counters[axis]++
		it.lhsIdx += it.lhsStrides[axis]
		it.rhsIdx += it.rhsStrides[axis]
		if it.counters[axis] < it.outDims[axis] {
			break
		}
		it.counters[axis] = 0
		it.lhsIdx -= it.lhsStrides[axis] * it.outDims[axis]
		it.rhsIdx -= it.rhsStrides[axis] * it.outDims[axis]
	}
	return
}

func applyBinary[T numeric](out, lhs, rhs []T, lhsDims, rhsDims, outDims []int, fn func(T, T) T) {
	if len(lhs) == len(out) && len(rhs) == len(out) {
		// Fast path: shapes already match, no broadcasting needed.
		for ii := range out {
			out[ii] = fn(lhs[ii], rhs[ii])
		}
		return
	}
	it := newBroadcastIterator(lhsDims, rhsDims, outDims)
	for ii := range out {
		lhsIdx, rhsIdx := it.next()
		out[ii] = fn(lhs[lhsIdx], rhs[rhsIdx])
	}
}

// makeBinary builds a broadcasting elementwise kernel. Operands reach the
// backend with identical dtypes: the factory layer inserts Cast nodes to the
// promoted dtype before constructing binary nodes.
func makeBinary(name string, floatFn func(a, b float64) float64, intFn func(a, b int64) int64) kernelFn {
	return func(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
		lhs, rhs := inputs[0], inputs[1]
		output := b.getBuffer(op.Shape)
		outDims := op.Shape.Dimensions
		switch op.Shape.DType {
		case dtypes.Float32:
			applyBinary(output.flat.([]float32), lhs.flat.([]float32), rhs.flat.([]float32),
				lhs.shape.Dimensions, rhs.shape.Dimensions, outDims,
				func(a, b float32) float32 { return float32(floatFn(float64(a), float64(b))) })
		case dtypes.Float64:
			applyBinary(output.flat.([]float64), lhs.flat.([]float64), rhs.flat.([]float64),
				lhs.shape.Dimensions, rhs.shape.Dimensions, outDims, floatFn)
		case dtypes.Int32:
			applyBinary(output.flat.([]int32), lhs.flat.([]int32), rhs.flat.([]int32),
				lhs.shape.Dimensions, rhs.shape.Dimensions, outDims,
				func(a, b int32) int32 { return int32(intFn(int64(a), int64(b))) })
		case dtypes.Int64:
			applyBinary(output.flat.([]int64), lhs.flat.([]int64), rhs.flat.([]int64),
				lhs.shape.Dimensions, rhs.shape.Dimensions, outDims, intFn)
		default:
			b.bufferPools.put(output)
			return nil, errUnsupportedDType(name, op.Shape.DType)
		}
		return output, nil
	}
}

// makeComparison builds a broadcasting comparison kernel. Results are 0 or 1
// encoded in the operand dtype, so comparisons compose directly with
// arithmetic (e.g. masking) without a cast.
func makeComparison(name string, floatFn func(a, b float64) bool, intFn func(a, b int64) bool) kernelFn {
	toFloat := func(v bool) float64 {
		if v {
			return 1
		}
		return 0
	}
	toInt := func(v bool) int64 {
		if v {
			return 1
		}
		return 0
	}
	return makeBinary(name,
		func(a, b float64) float64 { return toFloat(floatFn(a, b)) },
		func(a, b int64) int64 { return toInt(intFn(a, b)) })
}
