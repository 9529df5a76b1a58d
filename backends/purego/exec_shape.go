package purego

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

func init() {
	kernels[backends.OpTypeReshape] = execIdentity // Same flat data, new shape.
	kernels[backends.OpTypeTranspose] = execTranspose
	kernels[backends.OpTypeConcatenate] = execConcatenate
	kernels[backends.OpTypeSlice] = execSlice
	kernels[backends.OpTypeShift] = execShift
	kernels[backends.OpTypeCast] = execCast
}

// Data-movement kernels work on any element type, Float16 included: they
// never look at element values, only move them.

func transposeFlat[T any](out, in []T, inDims, perm []int) {
	inStrides := computeStrides(inDims)
	outDims := make([]int, len(perm))
	srcStrides := make([]int, len(perm))
	for axis, src := range perm {
		outDims[axis] = inDims[src]
		srcStrides[axis] = inStrides[src]
	}
	counters := make([]int, len(outDims))
	srcIdx := 0
	for ii := range out {
		out[ii] = in[srcIdx]
		for axis := len(outDims) - 1; axis >= 0; axis-- {
			counters[axis]++
			srcIdx += srcStrides[axis]
			if counters[axis] < outDims[axis] {
				break
			}
			counters[axis] = 0
			srcIdx -= srcStrides[axis] * outDims[axis]
		}
	}
}

func execTranspose(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	input := inputs[0]
	output := b.getBuffer(op.Shape)
	perm := op.Ints
	switch op.Shape.DType {
	case dtypes.Float32:
		transposeFlat(output.flat.([]float32), input.flat.([]float32), input.shape.Dimensions, perm)
	case dtypes.Float64:
		transposeFlat(output.flat.([]float64), input.flat.([]float64), input.shape.Dimensions, perm)
	case dtypes.Int32:
		transposeFlat(output.flat.([]int32), input.flat.([]int32), input.shape.Dimensions, perm)
	case dtypes.Int64:
		transposeFlat(output.flat.([]int64), input.flat.([]int64), input.shape.Dimensions, perm)
	case dtypes.Float16:
		transposeFlat(output.flat.([]float16.Float16), input.flat.([]float16.Float16), input.shape.Dimensions, perm)
	default:
		b.bufferPools.put(output)
		return nil, errUnsupportedDType("Transpose", op.Shape.DType)
	}
	return output, nil
}

func concatenateFlat[T any](out []T, inputs []*Buffer, axis int, outDims []int) {
	outer := 1
	for a := 0; a < axis; a++ {
		outer *= outDims[a]
	}
	inner := 1
	for a := axis + 1; a < len(outDims); a++ {
		inner *= outDims[a]
	}
	outBlock := outDims[axis] * inner
	offset := 0
	for _, input := range inputs {
		inFlat := input.flat.([]T)
		inBlock := input.shape.Dimensions[axis] * inner
		for o := 0; o < outer; o++ {
			copy(out[o*outBlock+offset:o*outBlock+offset+inBlock], inFlat[o*inBlock:(o+1)*inBlock])
		}
		offset += inBlock
	}
}

func execConcatenate(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	output := b.getBuffer(op.Shape)
	switch op.Shape.DType {
	case dtypes.Float32:
		concatenateFlat(output.flat.([]float32), inputs, op.Axis, op.Shape.Dimensions)
	case dtypes.Float64:
		concatenateFlat(output.flat.([]float64), inputs, op.Axis, op.Shape.Dimensions)
	case dtypes.Int32:
		concatenateFlat(output.flat.([]int32), inputs, op.Axis, op.Shape.Dimensions)
	case dtypes.Int64:
		concatenateFlat(output.flat.([]int64), inputs, op.Axis, op.Shape.Dimensions)
	case dtypes.Float16:
		concatenateFlat(output.flat.([]float16.Float16), inputs, op.Axis, op.Shape.Dimensions)
	default:
		b.bufferPools.put(output)
		return nil, errUnsupportedDType("Concatenate", op.Shape.DType)
	}
	return output, nil
}

func sliceFlat[T any](out, in []T, inDims []int, axis, start int) {
	outer := 1
	for a := 0; a < axis; a++ {
		outer *= inDims[a]
	}
	inner := 1
	for a := axis + 1; a < len(inDims); a++ {
		inner *= inDims[a]
	}
	inBlock := inDims[axis] * inner
	outBlock := len(out) / outer
	for o := 0; o < outer; o++ {
		copy(out[o*outBlock:(o+1)*outBlock], in[o*inBlock+start*inner:])
	}
}

// execSlice takes the [start, end) range op.Ints along op.Axis.
func execSlice(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	input := inputs[0]
	output := b.getBuffer(op.Shape)
	start := op.Ints[0]
	switch op.Shape.DType {
	case dtypes.Float32:
		sliceFlat(output.flat.([]float32), input.flat.([]float32), input.shape.Dimensions, op.Axis, start)
	case dtypes.Float64:
		sliceFlat(output.flat.([]float64), input.flat.([]float64), input.shape.Dimensions, op.Axis, start)
	case dtypes.Int32:
		sliceFlat(output.flat.([]int32), input.flat.([]int32), input.shape.Dimensions, op.Axis, start)
	case dtypes.Int64:
		sliceFlat(output.flat.([]int64), input.flat.([]int64), input.shape.Dimensions, op.Axis, start)
	case dtypes.Float16:
		sliceFlat(output.flat.([]float16.Float16), input.flat.([]float16.Float16), input.shape.Dimensions, op.Axis, start)
	default:
		b.bufferPools.put(output)
		return nil, errUnsupportedDType("Slice", op.Shape.DType)
	}
	return output, nil
}

// shiftFlat writes out[coord] = in[coord-offsets] where the source coordinate
// is in range, pad elsewhere.
func shiftFlat[T numeric](out, in []T, dims, offsets []int, pad T) {
	strides := computeStrides(dims)
	counters := make([]int, len(dims))
	for ii := range out {
		srcIdx, valid := 0, true
		for axis, c := range counters {
			src := c - offsets[axis]
			if src < 0 || src >= dims[axis] {
				valid = false
				break
			}
			srcIdx += src * strides[axis]
		}
		if valid {
			out[ii] = in[srcIdx]
		} else {
			out[ii] = pad
		}
		for axis := len(dims) - 1; axis >= 0; axis-- {
			counters[axis]++
			if counters[axis] < dims[axis] {
				break
			}
			counters[axis] = 0
		}
	}
}

// execShift moves the whole tensor by op.Ints elements per axis, filling the
// vacated positions with op.Float.
func execShift(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	input := inputs[0]
	output := b.getBuffer(op.Shape)
	dims := op.Shape.Dimensions
	switch op.Shape.DType {
	case dtypes.Float32:
		shiftFlat(output.flat.([]float32), input.flat.([]float32), dims, op.Ints, float32(op.Float))
	case dtypes.Float64:
		shiftFlat(output.flat.([]float64), input.flat.([]float64), dims, op.Ints, op.Float)
	case dtypes.Int32:
		shiftFlat(output.flat.([]int32), input.flat.([]int32), dims, op.Ints, int32(op.Float))
	case dtypes.Int64:
		shiftFlat(output.flat.([]int64), input.flat.([]int64), dims, op.Ints, int64(op.Float))
	default:
		b.bufferPools.put(output)
		return nil, errUnsupportedDType("Shift", op.Shape.DType)
	}
	return output, nil
}

// asFloat64 widens any supported flat slice to float64, the interchange type
// of Cast. A copy is always made.
func asFloat64(buf *Buffer) ([]float64, error) {
	switch flat := buf.flat.(type) {
	case []float64:
		out := make([]float64, len(flat))
		copy(out, flat)
		return out, nil
	case []float32:
		out := make([]float64, len(flat))
		for ii, v := range flat {
			out[ii] = float64(v)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(flat))
		for ii, v := range flat {
			out[ii] = float64(v)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(flat))
		for ii, v := range flat {
			out[ii] = float64(v)
		}
		return out, nil
	case []float16.Float16:
		out := make([]float64, len(flat))
		for ii, v := range flat {
			out[ii] = float64(v.Float32())
		}
		return out, nil
	default:
		return nil, errors.Errorf("cannot cast from dtype %s", buf.shape.DType)
	}
}

// castIntToInt converts directly between the integer dtypes. These casts
// must not go through the float64 interchange: int64 values above 2^53 would
// be rounded.
func castIntToInt(b *Backend, op *backends.Op, input *Buffer) (*Buffer, bool) {
	switch in := input.flat.(type) {
	case []int64:
		switch op.Shape.DType {
		case dtypes.Int64:
			output := b.getBuffer(op.Shape)
			copy(output.flat.([]int64), in)
			return output, true
		case dtypes.Int32:
			output := b.getBuffer(op.Shape)
			out := output.flat.([]int32)
			for ii, v := range in {
				out[ii] = int32(v)
			}
			return output, true
		}
	case []int32:
		switch op.Shape.DType {
		case dtypes.Int32:
			output := b.getBuffer(op.Shape)
			copy(output.flat.([]int32), in)
			return output, true
		case dtypes.Int64:
			output := b.getBuffer(op.Shape)
			out := output.flat.([]int64)
			for ii, v := range in {
				out[ii] = int64(v)
			}
			return output, true
		}
	}
	return nil, false
}

// execCast converts between the supported dtypes. Float-to-int truncates
// toward zero, following Go conversion semantics.
func execCast(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	if output, ok := castIntToInt(b, op, inputs[0]); ok {
		return output, nil
	}
	widened, err := asFloat64(inputs[0])
	if err != nil {
		return nil, err
	}
	output := b.getBuffer(op.Shape)
	switch op.Shape.DType {
	case dtypes.Float32:
		out := output.flat.([]float32)
		for ii, v := range widened {
			out[ii] = float32(v)
		}
	case dtypes.Float64:
		copy(output.flat.([]float64), widened)
	case dtypes.Int32:
		out := output.flat.([]int32)
		for ii, v := range widened {
			out[ii] = int32(v)
		}
	case dtypes.Int64:
		out := output.flat.([]int64)
		for ii, v := range widened {
			out[ii] = int64(v)
		}
	case dtypes.Float16:
		out := output.flat.([]float16.Float16)
		for ii, v := range widened {
			out[ii] = float16.Fromfloat32(float32(v))
		}
	default:
		b.bufferPools.put(output)
		return nil, errUnsupportedDType("Cast", op.Shape.DType)
	}
	return output, nil
}
