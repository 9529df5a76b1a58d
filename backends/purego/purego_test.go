package purego

import (
	"testing"

	"github.com/exprgraph/exprgraph/backends"
	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func newTestBackend(t *testing.T) backends.Backend {
	b := backends.MustNew(BackendName)
	t.Cleanup(b.Finalize)
	return b
}

func fromFlat(t *testing.T, b backends.Backend, flat any, dims ...int) backends.Buffer {
	var shape shapes.Shape
	switch flat.(type) {
	case []float32:
		shape = shapes.Make(dtypes.Float32, dims...)
	case []float64:
		shape = shapes.Make(dtypes.Float64, dims...)
	case []int32:
		shape = shapes.Make(dtypes.Int32, dims...)
	case []int64:
		shape = shapes.Make(dtypes.Int64, dims...)
	default:
		t.Fatalf("unsupported flat type %T", flat)
	}
	buffer, err := b.BufferFromFlat(flat, shape)
	require.NoError(t, err)
	return buffer
}

func flatF32(t *testing.T, b backends.Backend, buffer backends.Buffer) []float32 {
	flat, err := b.BufferFlat(buffer)
	require.NoError(t, err)
	return flat.([]float32)
}

func TestBufferLifecycle(t *testing.T) {
	b := newTestBackend(t)

	zeroed := must.M1(b.NewBuffer(shapes.Make(dtypes.Float32, 2, 2)))
	require.Equal(t, []float32{0, 0, 0, 0}, flatF32(t, b, zeroed))
	require.True(t, b.BufferShape(zeroed).Equal(shapes.Make(dtypes.Float32, 2, 2)))

	buffer := fromFlat(t, b, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	require.Equal(t, []float32{1, 2, 3, 4, 5, 6}, flatF32(t, b, buffer))

	clone := must.M1(b.CloneBuffer(buffer))
	flatF32(t, b, clone)[0] = 42
	require.Equal(t, float32(1), flatF32(t, b, buffer)[0])

	b.ReleaseBuffer(buffer)
	_, err := b.BufferFlat(buffer)
	require.Error(t, err, "released buffers must not be readable")

	// Wrong element count and mismatched dtype are rejected.
	_, err = b.BufferFromFlat([]float32{1, 2}, shapes.Make(dtypes.Float32, 3))
	require.Error(t, err)
	_, err = b.BufferFromFlat([]float64{1, 2}, shapes.Make(dtypes.Float32, 2))
	require.Error(t, err)
}

func TestAccumulate(t *testing.T) {
	b := newTestBackend(t)
	dst := fromFlat(t, b, []float32{1, 2, 3}, 3)
	delta := fromFlat(t, b, []float32{10, 20, 30}, 3)
	require.NoError(t, b.Accumulate(dst, delta))
	require.NoError(t, b.Accumulate(dst, delta))
	require.Equal(t, []float32{21, 42, 63}, flatF32(t, b, dst))

	other := fromFlat(t, b, []float32{1, 1}, 2)
	require.Error(t, b.Accumulate(dst, other))
}

func TestAccumulateFloat16(t *testing.T) {
	b := newTestBackend(t)
	shape := shapes.Make(dtypes.Float16, 2)
	dst := must.M1(b.BufferFromFlat([]float16.Float16{
		float16.Fromfloat32(1), float16.Fromfloat32(2)}, shape))
	delta := must.M1(b.BufferFromFlat([]float16.Float16{
		float16.Fromfloat32(0.5), float16.Fromfloat32(1.5)}, shape))
	require.NoError(t, b.Accumulate(dst, delta))
	flat := must.M1(b.BufferFlat(dst)).([]float16.Float16)
	require.Equal(t, float32(1.5), flat[0].Float32())
	require.Equal(t, float32(3.5), flat[1].Float32())
}

func exec(t *testing.T, b backends.Backend, op *backends.Op, inputs ...backends.Buffer) backends.Buffer {
	output, err := b.Exec(op, inputs)
	require.NoError(t, err)
	return output
}

func TestExecAddBroadcast(t *testing.T) {
	b := newTestBackend(t)
	matrix := fromFlat(t, b, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	row := fromFlat(t, b, []float32{10, 20, 30}, 1, 3)
	col := fromFlat(t, b, []float32{100, 200}, 2, 1)

	got := exec(t, b, &backends.Op{Type: backends.OpTypeAdd, Shape: shapes.Make(dtypes.Float32, 2, 3)}, matrix, row)
	require.Equal(t, []float32{11, 22, 33, 14, 25, 36}, flatF32(t, b, got))

	got = exec(t, b, &backends.Op{Type: backends.OpTypeAdd, Shape: shapes.Make(dtypes.Float32, 2, 3)}, matrix, col)
	require.Equal(t, []float32{101, 102, 103, 204, 205, 206}, flatF32(t, b, got))

	// Swapping the operands produces the same result.
	got = exec(t, b, &backends.Op{Type: backends.OpTypeAdd, Shape: shapes.Make(dtypes.Float32, 2, 3)}, row, matrix)
	require.Equal(t, []float32{11, 22, 33, 14, 25, 36}, flatF32(t, b, got))
}

func TestExecComparisons(t *testing.T) {
	b := newTestBackend(t)
	lhs := fromFlat(t, b, []float32{1, 5, 3}, 3)
	rhs := fromFlat(t, b, []float32{2, 5, 1}, 3)
	shape := shapes.Make(dtypes.Float32, 3)

	got := exec(t, b, &backends.Op{Type: backends.OpTypeLessThan, Shape: shape}, lhs, rhs)
	require.Equal(t, []float32{1, 0, 0}, flatF32(t, b, got))
	got = exec(t, b, &backends.Op{Type: backends.OpTypeEqual, Shape: shape}, lhs, rhs)
	require.Equal(t, []float32{0, 1, 0}, flatF32(t, b, got))
	got = exec(t, b, &backends.Op{Type: backends.OpTypeGreaterOrEqual, Shape: shape}, lhs, rhs)
	require.Equal(t, []float32{0, 1, 1}, flatF32(t, b, got))
}

func TestExecReductions(t *testing.T) {
	b := newTestBackend(t)
	matrix := fromFlat(t, b, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	got := exec(t, b, &backends.Op{Type: backends.OpTypeReduceSum, Shape: shapes.Make(dtypes.Float32, 2, 1), Axis: 1}, matrix)
	require.Equal(t, []float32{6, 15}, flatF32(t, b, got))

	got = exec(t, b, &backends.Op{Type: backends.OpTypeReduceSum, Shape: shapes.Make(dtypes.Float32, 1, 3), Axis: 0}, matrix)
	require.Equal(t, []float32{5, 7, 9}, flatF32(t, b, got))

	got = exec(t, b, &backends.Op{Type: backends.OpTypeReduceMean, Shape: shapes.Make(dtypes.Float32, 2, 1), Axis: 1}, matrix)
	require.Equal(t, []float32{2, 5}, flatF32(t, b, got))

	got = exec(t, b, &backends.Op{Type: backends.OpTypeReduceMax, Shape: shapes.Make(dtypes.Float32, 2, 1), Axis: 1}, matrix)
	require.Equal(t, []float32{3, 6}, flatF32(t, b, got))

	got = exec(t, b, &backends.Op{Type: backends.OpTypeReduceProd, Shape: shapes.Make(dtypes.Float32, 2, 1), Axis: 1}, matrix)
	require.Equal(t, []float32{6, 120}, flatF32(t, b, got))
}

func TestExecTranspose(t *testing.T) {
	b := newTestBackend(t)
	matrix := fromFlat(t, b, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	got := exec(t, b, &backends.Op{
		Type:  backends.OpTypeTranspose,
		Shape: shapes.Make(dtypes.Float32, 3, 2),
		Ints:  []int{1, 0},
	}, matrix)
	require.Equal(t, []float32{1, 4, 2, 5, 3, 6}, flatF32(t, b, got))
}

func TestExecConcatenateSliceShift(t *testing.T) {
	b := newTestBackend(t)
	a := fromFlat(t, b, []float32{1, 2, 3, 4}, 2, 2)
	c := fromFlat(t, b, []float32{5, 6}, 2, 1)

	got := exec(t, b, &backends.Op{Type: backends.OpTypeConcatenate, Shape: shapes.Make(dtypes.Float32, 2, 3), Axis: 1}, a, c)
	require.Equal(t, []float32{1, 2, 5, 3, 4, 6}, flatF32(t, b, got))

	got = exec(t, b, &backends.Op{Type: backends.OpTypeSlice, Shape: shapes.Make(dtypes.Float32, 1, 2), Axis: 0, Ints: []int{1, 2}}, a)
	require.Equal(t, []float32{3, 4}, flatF32(t, b, got))

	got = exec(t, b, &backends.Op{Type: backends.OpTypeShift, Shape: shapes.Make(dtypes.Float32, 2, 2), Ints: []int{0, 1}, Float: -1}, a)
	require.Equal(t, []float32{-1, 1, -1, 3}, flatF32(t, b, got))
}

func TestExecCast(t *testing.T) {
	b := newTestBackend(t)
	floats := fromFlat(t, b, []float32{1.7, -2.7, 3}, 3)

	got := exec(t, b, &backends.Op{Type: backends.OpTypeCast, Shape: shapes.Make(dtypes.Int32, 3)}, floats)
	ints := must.M1(b.BufferFlat(got)).([]int32)
	require.Equal(t, []int32{1, -2, 3}, ints, "float to int truncates toward zero")

	got = exec(t, b, &backends.Op{Type: backends.OpTypeCast, Shape: shapes.Make(dtypes.Float16, 3)}, floats)
	halves := must.M1(b.BufferFlat(got)).([]float16.Float16)
	require.InDelta(t, 1.7, halves[0].Float32(), 1e-3)

	back := exec(t, b, &backends.Op{Type: backends.OpTypeCast, Shape: shapes.Make(dtypes.Float32, 3)}, got)
	require.InDelta(t, -2.7, flatF32(t, b, back)[1], 1e-3)

	// Int-to-int casts never pass through float64: values above 2^53
	// survive exactly.
	big := int64(1<<53 + 1)
	wide := fromFlat(t, b, []int64{big, -big}, 2)
	got = exec(t, b, &backends.Op{Type: backends.OpTypeCast, Shape: shapes.Make(dtypes.Int64, 2)}, wide)
	require.Equal(t, []int64{big, -big}, must.M1(b.BufferFlat(got)).([]int64))

	got = exec(t, b, &backends.Op{Type: backends.OpTypeCast, Shape: shapes.Make(dtypes.Int64, 3)},
		fromFlat(t, b, []int32{7, -8, 9}, 3))
	require.Equal(t, []int64{7, -8, 9}, must.M1(b.BufferFlat(got)).([]int64))
}

func TestExecDot(t *testing.T) {
	b := newTestBackend(t)
	lhs := fromFlat(t, b, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	rhs := fromFlat(t, b, []float32{7, 8, 9, 10, 11, 12}, 3, 2)

	got := exec(t, b, &backends.Op{Type: backends.OpTypeDot, Shape: shapes.Make(dtypes.Float32, 2, 2), Float: 1}, lhs, rhs)
	require.Equal(t, []float32{58, 64, 139, 154}, flatF32(t, b, got))

	// Transposed lhs: (3x2)^T x (3x2) with a scale.
	lhsT := fromFlat(t, b, []float32{1, 4, 2, 5, 3, 6}, 3, 2)
	got = exec(t, b, &backends.Op{Type: backends.OpTypeDot, Shape: shapes.Make(dtypes.Float32, 2, 2), TransLhs: true, Float: 2}, lhsT, rhs)
	require.Equal(t, []float32{116, 128, 278, 308}, flatF32(t, b, got))
}

func TestExecAffine(t *testing.T) {
	b := newTestBackend(t)
	lhs := fromFlat(t, b, []float32{1, 0, 0, 1}, 2, 2)
	rhs := fromFlat(t, b, []float32{1, 2, 3, 4}, 2, 2)
	bias := fromFlat(t, b, []float32{10, 20}, 1, 2)

	got := exec(t, b, &backends.Op{Type: backends.OpTypeAffine, Shape: shapes.Make(dtypes.Float32, 2, 2), Float: 1}, lhs, rhs, bias)
	require.Equal(t, []float32{11, 22, 13, 24}, flatF32(t, b, got))
}

func TestExecBatchedDot(t *testing.T) {
	b := newTestBackend(t)
	lhs := fromFlat(t, b, []float32{
		1, 2, 3, 4, // batch 0: 2x2
		5, 6, 7, 8, // batch 1
	}, 2, 2, 2)
	eye := fromFlat(t, b, []float32{
		1, 0, 0, 1,
		2, 0, 0, 2,
	}, 2, 2, 2)
	got := exec(t, b, &backends.Op{Type: backends.OpTypeBatchedDot, Shape: shapes.Make(dtypes.Float32, 2, 2, 2), Float: 1}, lhs, eye)
	require.Equal(t, []float32{1, 2, 3, 4, 10, 12, 14, 16}, flatF32(t, b, got))
}

func TestExecGather(t *testing.T) {
	b := newTestBackend(t)
	input := fromFlat(t, b, []float32{1, 2, 3, 4, 5, 6}, 3, 2)
	indices := fromFlat(t, b, []int32{2, 0}, 2, 1)

	got := exec(t, b, &backends.Op{Type: backends.OpTypeGather, Shape: shapes.Make(dtypes.Float32, 2, 2), Axis: 0}, input, indices)
	require.Equal(t, []float32{5, 6, 1, 2}, flatF32(t, b, got))

	// Out-of-range index is a kernel error.
	bad := fromFlat(t, b, []int32{3}, 1, 1)
	_, err := b.Exec(&backends.Op{Type: backends.OpTypeGather, Shape: shapes.Make(dtypes.Float32, 1, 2), Axis: 0}, []backends.Buffer{input, bad})
	require.Error(t, err)
}

func TestExecGatherGrad(t *testing.T) {
	b := newTestBackend(t)
	grad := fromFlat(t, b, []float32{10, 20, 30}, 3, 1)
	indices := fromFlat(t, b, []int32{1, 1, 0}, 3, 1)

	// Scatter-add into a 2x1 zeroed buffer: repeated index 1 accumulates.
	got := exec(t, b, &backends.Op{Type: backends.OpTypeGatherGrad, Shape: shapes.Make(dtypes.Float32, 2, 1), Axis: 0}, grad, indices)
	require.Equal(t, []float32{30, 30}, flatF32(t, b, got))
}

func TestExecTopKIndices(t *testing.T) {
	b := newTestBackend(t)
	input := fromFlat(t, b, []float32{3, 1, 2}, 3)

	got := exec(t, b, &backends.Op{Type: backends.OpTypeTopKIndices, Shape: shapes.Make(dtypes.Int32, 2), Axis: 0, K: 2, Descending: true}, input)
	require.Equal(t, []int32{0, 2}, must.M1(b.BufferFlat(got)).([]int32))

	got = exec(t, b, &backends.Op{Type: backends.OpTypeTopKIndices, Shape: shapes.Make(dtypes.Int32, 2), Axis: 0, K: 2, Descending: false}, input)
	require.Equal(t, []int32{1, 2}, must.M1(b.BufferFlat(got)).([]int32))

	// Ties resolve to the lower position.
	tied := fromFlat(t, b, []float32{5, 5, 1}, 3)
	got = exec(t, b, &backends.Op{Type: backends.OpTypeTopKIndices, Shape: shapes.Make(dtypes.Int32, 2), Axis: 0, K: 2, Descending: true}, tied)
	require.Equal(t, []int32{0, 1}, must.M1(b.BufferFlat(got)).([]int32))
}

func TestExecMaxPooling(t *testing.T) {
	b := newTestBackend(t)
	image := fromFlat(t, b, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, 4, 4)
	op := &backends.Op{
		Type:  backends.OpTypeMaxPool,
		Shape: shapes.Make(dtypes.Float32, 2, 2),
		Ints:  []int{2, 2, 0, 0, 2, 2},
	}
	got := exec(t, b, op, image)
	require.Equal(t, []float32{6, 8, 14, 16}, flatF32(t, b, got))

	gradOp := &backends.Op{
		Type:  backends.OpTypeMaxPoolGrad,
		Shape: shapes.Make(dtypes.Float32, 4, 4),
		Ints:  []int{2, 2, 0, 0, 2, 2},
	}
	grad := fromFlat(t, b, []float32{1, 1, 1, 1}, 2, 2)
	gotGrad := exec(t, b, gradOp, image, grad)
	require.Equal(t, []float32{
		0, 0, 0, 0,
		0, 1, 0, 1,
		0, 0, 0, 0,
		0, 1, 0, 1,
	}, flatF32(t, b, gotGrad))
}

func TestExecAvgPooling(t *testing.T) {
	b := newTestBackend(t)
	image := fromFlat(t, b, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}, 2, 4)
	op := &backends.Op{
		Type:  backends.OpTypeAvgPool,
		Shape: shapes.Make(dtypes.Float32, 1, 2),
		Ints:  []int{2, 2, 0, 0, 2, 2},
	}
	got := exec(t, b, op, image)
	require.Equal(t, []float32{3.5, 5.5}, flatF32(t, b, got))

	gradOp := &backends.Op{
		Type:  backends.OpTypeAvgPoolGrad,
		Shape: shapes.Make(dtypes.Float32, 2, 4),
		Ints:  []int{2, 2, 0, 0, 2, 2},
	}
	grad := fromFlat(t, b, []float32{4, 8}, 1, 2)
	gotGrad := exec(t, b, gradOp, grad)
	require.Equal(t, []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
	}, flatF32(t, b, gotGrad))
}

func TestExecErrors(t *testing.T) {
	b := newTestBackend(t)
	buffer := fromFlat(t, b, []float32{1}, 1)

	_, err := b.Exec(&backends.Op{Type: backends.OpTypeInvalid, Shape: shapes.Make(dtypes.Float32, 1)}, []backends.Buffer{buffer})
	require.Error(t, err)

	b.ReleaseBuffer(buffer)
	_, err = b.Exec(&backends.Op{Type: backends.OpTypeNeg, Shape: shapes.Make(dtypes.Float32, 1)}, []backends.Buffer{buffer})
	require.Error(t, err, "released inputs are rejected")
}
