package purego

import (
	"sort"

	"github.com/exprgraph/exprgraph/backends"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

func init() {
	kernels[backends.OpTypeGather] = execGather
	kernels[backends.OpTypeGatherGrad] = execGatherGrad
	kernels[backends.OpTypeTopKIndices] = execTopKIndices
}

// gatherFlat picks elements along axis: the output keeps the input's
// dimensions except on axis, where the indices dictate both the size and,
// per position, which input element is read. Indices axes of size 1
// broadcast over the corresponding output axis.
func gatherFlat[T numeric](out, in []T, indices []int, inDims, indicesDims, outDims []int, axis int) error {
	inStrides := computeStrides(inDims)
	indicesStrides := broadcastStrides(indicesDims, outDims)
	counters := make([]int, len(outDims))
	indicesIdx := 0
	for ii := range out {
		idx := indices[indicesIdx]
		if idx < 0 || idx >= inDims[axis] {
			return errors.Errorf("gather index %d out of range for axis %d with dimension %d", idx, axis, inDims[axis])
		}
		srcIdx := 0
		for a, c := range counters {
			if a == axis {
				srcIdx += idx * inStrides[a]
			} else {
				srcIdx += c * inStrides[a]
			}
		}
		out[ii] = in[srcIdx]
		for a := len(outDims) - 1; a >= 0; a-- {
			counters[a]++
			indicesIdx += indicesStrides[a]
			if counters[a] < outDims[a] {
				break
			}
			counters[a] = 0
			indicesIdx -= indicesStrides[a] * outDims[a]
		}
	}
	return nil
}

func execGather(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	input, indicesBuf := inputs[0], inputs[1]
	indices, err := indexFlat(indicesBuf)
	if err != nil {
		return nil, err
	}
	output := b.getBuffer(op.Shape)
	inDims := input.shape.Dimensions
	indicesDims := indicesBuf.shape.Dimensions
	outDims := op.Shape.Dimensions
	switch op.Shape.DType {
	case dtypes.Float32:
		err = gatherFlat(output.flat.([]float32), input.flat.([]float32), indices, inDims, indicesDims, outDims, op.Axis)
	case dtypes.Float64:
		err = gatherFlat(output.flat.([]float64), input.flat.([]float64), indices, inDims, indicesDims, outDims, op.Axis)
	case dtypes.Int32:
		err = gatherFlat(output.flat.([]int32), input.flat.([]int32), indices, inDims, indicesDims, outDims, op.Axis)
	case dtypes.Int64:
		err = gatherFlat(output.flat.([]int64), input.flat.([]int64), indices, inDims, indicesDims, outDims, op.Axis)
	default:
		err = errUnsupportedDType("Gather", op.Shape.DType)
	}
	if err != nil {
		b.bufferPools.put(output)
		return nil, err
	}
	return output, nil
}

// scatterAddFlat is the transpose of gatherFlat: every gathered-output
// element is added back into the source position it was read from. Repeated
// indices accumulate.
func scatterAddFlat[T numeric](out, grad []T, indices []int, outDims, indicesDims, gradDims []int, axis int) error {
	outStrides := computeStrides(outDims)
	indicesStrides := broadcastStrides(indicesDims, gradDims)
	counters := make([]int, len(gradDims))
	indicesIdx := 0
	for ii := range grad {
		idx := indices[indicesIdx]
		if idx < 0 || idx >= outDims[axis] {
			return errors.Errorf("gather index %d out of range for axis %d with dimension %d", idx, axis, outDims[axis])
		}
		dstIdx := 0
		for a, c := range counters {
			if a == axis {
				dstIdx += idx * outStrides[a]
			} else {
				dstIdx += c * outStrides[a]
			}
		}
		out[dstIdx] += grad[ii]
		for a := len(gradDims) - 1; a >= 0; a-- {
			counters[a]++
			indicesIdx += indicesStrides[a]
			if counters[a] < gradDims[a] {
				break
			}
			counters[a] = 0
			indicesIdx -= indicesStrides[a] * gradDims[a]
		}
	}
	return nil
}

// execGatherGrad scatters the incoming gradient (inputs[0], shaped like the
// gather output) back into a zeroed buffer of the gather input shape
// (op.Shape), adding where indices repeat. Backward-only kind.
func execGatherGrad(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	grad, indicesBuf := inputs[0], inputs[1]
	indices, err := indexFlat(indicesBuf)
	if err != nil {
		return nil, err
	}
	output := b.getZeroedBuffer(op.Shape)
	outDims := op.Shape.Dimensions
	indicesDims := indicesBuf.shape.Dimensions
	gradDims := grad.shape.Dimensions
	switch op.Shape.DType {
	case dtypes.Float32:
		err = scatterAddFlat(output.flat.([]float32), grad.flat.([]float32), indices, outDims, indicesDims, gradDims, op.Axis)
	case dtypes.Float64:
		err = scatterAddFlat(output.flat.([]float64), grad.flat.([]float64), indices, outDims, indicesDims, gradDims, op.Axis)
	case dtypes.Int32:
		err = scatterAddFlat(output.flat.([]int32), grad.flat.([]int32), indices, outDims, indicesDims, gradDims, op.Axis)
	case dtypes.Int64:
		err = scatterAddFlat(output.flat.([]int64), grad.flat.([]int64), indices, outDims, indicesDims, gradDims, op.Axis)
	default:
		err = errUnsupportedDType("GatherGrad", op.Shape.DType)
	}
	if err != nil {
		b.bufferPools.put(output)
		return nil, err
	}
	return output, nil
}

// topkAxis fills out with the positions of the op.K largest (or smallest)
// elements of each run along the axis, best first. Ties resolve to the lower
// position: the sort is stable over positions initialized in order.
func topkAxis[T numeric](out []int32, in []T, inDims []int, axis, k int, descending bool) {
	outer, inner := 1, 1
	for a := 0; a < axis; a++ {
		outer *= inDims[a]
	}
	for a := axis + 1; a < len(inDims); a++ {
		inner *= inDims[a]
	}
	axisDim := inDims[axis]
	order := make([]int, axisDim)
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			start := o*axisDim*inner + i
			for p := range order {
				order[p] = p
			}
			sort.SliceStable(order, func(x, y int) bool {
				vx, vy := in[start+order[x]*inner], in[start+order[y]*inner]
				if descending {
					return vx > vy
				}
				return vx < vy
			})
			for p := 0; p < k; p++ {
				out[(o*k+p)*inner+i] = int32(order[p])
			}
		}
	}
}

func execTopKIndices(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	input := inputs[0]
	output := b.getBuffer(op.Shape)
	out := output.flat.([]int32)
	inDims := input.shape.Dimensions
	switch input.shape.DType {
	case dtypes.Float32:
		topkAxis(out, input.flat.([]float32), inDims, op.Axis, op.K, op.Descending)
	case dtypes.Float64:
		topkAxis(out, input.flat.([]float64), inDims, op.Axis, op.K, op.Descending)
	case dtypes.Int32:
		topkAxis(out, input.flat.([]int32), inDims, op.Axis, op.K, op.Descending)
	case dtypes.Int64:
		topkAxis(out, input.flat.([]int64), inDims, op.Axis, op.K, op.Descending)
	default:
		b.bufferPools.put(output)
		return nil, errUnsupportedDType("TopKIndices", input.shape.DType)
	}
	return output, nil
}
