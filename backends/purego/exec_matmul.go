package purego

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/gomlx/gopjrt/dtypes"
)

func init() {
	kernels[backends.OpTypeDot] = execDot
	kernels[backends.OpTypeBatchedDot] = execBatchedDot
	kernels[backends.OpTypeAffine] = execAffine
}

// matmulFlat computes out = scale * lhs x rhs for one [m,k] x [k,n] pair.
// The transpose flags reinterpret the operand layouts in place instead of
// materializing transposed copies.
func matmulFlat[T numeric](out, lhs, rhs []T, m, k, n int, transLhs, transRhs bool, scale T) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var acc T
			for p := 0; p < k; p++ {
				var a, b T
				if transLhs {
					a = lhs[p*m+i]
				} else {
					a = lhs[i*k+p]
				}
				if transRhs {
					b = rhs[j*k+p]
				} else {
					b = rhs[p*n+j]
				}
				acc += a * b
			}
			out[i*n+j] = scale * acc
		}
	}
}

// dotDims extracts the contraction sizes of a 2D dot from the operand shapes
// and the transpose flags.
func dotDims(op *backends.Op, lhs, rhs *Buffer) (m, k, n int) {
	lhsDims := lhs.shape.Dimensions
	rhsDims := rhs.shape.Dimensions
	m, k = lhsDims[len(lhsDims)-2], lhsDims[len(lhsDims)-1]
	if op.TransLhs {
		m, k = k, m
	}
	n = rhsDims[len(rhsDims)-1]
	if op.TransRhs {
		n = rhsDims[len(rhsDims)-2]
	}
	return
}

func execDot(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	lhs, rhs := inputs[0], inputs[1]
	m, k, n := dotDims(op, lhs, rhs)
	output := b.getBuffer(op.Shape)
	switch op.Shape.DType {
	case dtypes.Float32:
		matmulFlat(output.flat.([]float32), lhs.flat.([]float32), rhs.flat.([]float32), m, k, n, op.TransLhs, op.TransRhs, float32(op.Float))
	case dtypes.Float64:
		matmulFlat(output.flat.([]float64), lhs.flat.([]float64), rhs.flat.([]float64), m, k, n, op.TransLhs, op.TransRhs, op.Float)
	case dtypes.Int32:
		matmulFlat(output.flat.([]int32), lhs.flat.([]int32), rhs.flat.([]int32), m, k, n, op.TransLhs, op.TransRhs, int32(op.Float))
	case dtypes.Int64:
		matmulFlat(output.flat.([]int64), lhs.flat.([]int64), rhs.flat.([]int64), m, k, n, op.TransLhs, op.TransRhs, int64(op.Float))
	default:
		b.bufferPools.put(output)
		return nil, errUnsupportedDType("Dot", op.Shape.DType)
	}
	return output, nil
}

// batchedMatmul runs matmulFlat once per output batch. Operand batch axes of
// size 1 are broadcast, matching the elementwise broadcasting rules.
func batchedMatmul[T numeric](out, lhs, rhs []T, outBatchDims, lhsBatchDims, rhsBatchDims []int, m, k, n int, transLhs, transRhs bool, scale T) {
	batches := 1
	for _, dim := range outBatchDims {
		batches *= dim
	}
	if batches == 0 {
		return
	}
	it := newBroadcastIterator(lhsBatchDims, rhsBatchDims, outBatchDims)
	lhsSize, rhsSize, outSize := m*k, k*n, m*n
	for batch := 0; batch < batches; batch++ {
		lhsIdx, rhsIdx := it.next()
		matmulFlat(out[batch*outSize:(batch+1)*outSize],
			lhs[lhsIdx*lhsSize:(lhsIdx+1)*lhsSize],
			rhs[rhsIdx*rhsSize:(rhsIdx+1)*rhsSize],
			m, k, n, transLhs, transRhs, scale)
	}
}

func execBatchedDot(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	lhs, rhs := inputs[0], inputs[1]
	m, k, n := dotDims(op, lhs, rhs)
	lhsBatch := lhs.shape.Dimensions[:lhs.shape.Rank()-2]
	rhsBatch := rhs.shape.Dimensions[:rhs.shape.Rank()-2]
	outBatch := op.Shape.Dimensions[:op.Shape.Rank()-2]
	output := b.getBuffer(op.Shape)
	switch op.Shape.DType {
	case dtypes.Float32:
		batchedMatmul(output.flat.([]float32), lhs.flat.([]float32), rhs.flat.([]float32),
			outBatch, lhsBatch, rhsBatch, m, k, n, op.TransLhs, op.TransRhs, float32(op.Float))
	case dtypes.Float64:
		batchedMatmul(output.flat.([]float64), lhs.flat.([]float64), rhs.flat.([]float64),
			outBatch, lhsBatch, rhsBatch, m, k, n, op.TransLhs, op.TransRhs, op.Float)
	default:
		b.bufferPools.put(output)
		return nil, errUnsupportedDType("BatchedDot", op.Shape.DType)
	}
	return output, nil
}

// addBroadcast adds bias into out in place, broadcasting bias over out.
func addBroadcast[T numeric](out, bias []T, biasDims, outDims []int) {
	strides := broadcastStrides(biasDims, outDims)
	counters := make([]int, len(outDims))
	biasIdx := 0
	for ii := range out {
		out[ii] += bias[biasIdx]
		for axis := len(outDims) - 1; axis >= 0; axis-- {
			counters[axis]++
			biasIdx += strides[axis]
			if counters[axis] < outDims[axis] {
				break
			}
			counters[axis] = 0
			biasIdx -= strides[axis] * outDims[axis]
		}
	}
}

// execAffine fuses scale*dot(lhs, rhs) + bias, the fully-connected layer
// primitive. The bias broadcasts over the rows of the product.
func execAffine(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	output, err := execDot(b, op, inputs[:2])
	if err != nil {
		return nil, err
	}
	bias := inputs[2]
	switch op.Shape.DType {
	case dtypes.Float32:
		addBroadcast(output.flat.([]float32), bias.flat.([]float32), bias.shape.Dimensions, op.Shape.Dimensions)
	case dtypes.Float64:
		addBroadcast(output.flat.([]float64), bias.flat.([]float64), bias.shape.Dimensions, op.Shape.Dimensions)
	case dtypes.Int32:
		addBroadcast(output.flat.([]int32), bias.flat.([]int32), bias.shape.Dimensions, op.Shape.Dimensions)
	case dtypes.Int64:
		addBroadcast(output.flat.([]int64), bias.flat.([]int64), bias.shape.Dimensions, op.Shape.Dimensions)
	default:
		b.bufferPools.put(output)
		return nil, errUnsupportedDType("Affine", op.Shape.DType)
	}
	return output, nil
}
