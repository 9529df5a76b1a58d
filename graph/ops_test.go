package graph_test

import (
	"math"
	"testing"

	"github.com/exprgraph/exprgraph/graph"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

func flatI32(t *testing.T, node *graph.Node) []int32 {
	g := node.Graph()
	buffer := g.Evaluate(node)
	return must.M1(g.Backend().BufferFlat(buffer)).([]int32)
}

func TestUnaryOps(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{-2, 0, 3}, 3)
	require.Equal(t, []float32{2, 0, -3}, flatF32(t, graph.Neg(x)))
	require.Equal(t, []float32{2, 0, 3}, flatF32(t, graph.Abs(x)))
	require.Equal(t, []float32{-1, 0, 1}, flatF32(t, graph.Sign(x)))
	require.Equal(t, []float32{4, 0, 9}, flatF32(t, graph.Square(x)))
	require.Equal(t, []float32{0, 0, 3}, flatF32(t, graph.Relu(x)))
	require.Equal(t, []float32{-2, 0, 2}, flatF32(t, graph.Clip(x, 2)))

	got := flatF32(t, graph.Exp(x))
	require.InDelta(t, math.Exp(-2), got[0], 1e-6)
	require.InDelta(t, 1, got[1], 1e-6)

	require.InDelta(t, 0.5, flatF32(t, graph.Sqrt(g.ConstantFromFlat([]float32{0}, 1), 0.25))[0], 1e-6)
	require.Panics(t, func() { graph.Sqrt(x, -1) })
}

func TestActivations(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{-2, 0, 1}, 3)

	sig := flatF32(t, graph.Sigmoid(x))
	require.InDelta(t, 0.5, sig[1], 1e-6)
	require.InDelta(t, 1/(1+math.Exp(2)), sig[0], 1e-6)

	tanh := flatF32(t, graph.Tanh(x))
	require.InDelta(t, 0, tanh[1], 1e-6)
	require.InDelta(t, math.Tanh(1), tanh[2], 1e-6)

	leaky := flatF32(t, graph.LeakyRelu(x, 0.1))
	require.InDelta(t, -0.2, leaky[0], 1e-6)
	require.InDelta(t, 1, leaky[2], 1e-6)

	gelu := flatF32(t, graph.Gelu(x))
	require.InDelta(t, 0, gelu[1], 1e-6)
	require.InDelta(t, 1/(1+math.Exp(-1.702)), gelu[2], 1e-5)
}

func TestLogAddExp(t *testing.T) {
	g := setupGraph(t)
	a := g.ConstantFromFlat([]float32{1, 100}, 2)
	b := g.ConstantFromFlat([]float32{2, 100}, 2)
	got := flatF32(t, graph.LogAddExp(a, b))
	require.InDelta(t, math.Log(math.Exp(1)+math.Exp(2)), got[0], 1e-5)
	// The shifted form survives ranges where naive exp overflows float32.
	require.InDelta(t, 100+math.Log(2), got[1], 1e-4)
}

func TestDTypePromotion(t *testing.T) {
	g := setupGraph(t)
	ints := g.ConstantFromFlat([]int32{1, 2, 3}, 3)
	floats := g.ConstantFromFlat([]float32{0.5, 0.5, 0.5}, 3)
	sum := graph.Add(ints, floats)
	require.Equal(t, dtypes.Float32, sum.DType())
	require.Equal(t, []float32{1.5, 2.5, 3.5}, flatF32(t, sum))
}

func TestCast(t *testing.T) {
	g := setupGraph(t)
	floats := g.ConstantFromFlat([]float32{1.9, -2.9}, 2)
	require.Equal(t, []int32{1, -2}, flatI32(t, graph.Cast(floats, dtypes.Int32)))
	require.Equal(t, floats, graph.CastTo(floats, dtypes.Float32), "CastTo with the same dtype is a no-op")
}

func TestReductionComposites(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{1, 2, 3}, 3)

	require.InDelta(t, math.Log(math.Exp(1)+math.Exp(2)+math.Exp(3)),
		flatF32(t, graph.LogSumExp(x, 0))[0], 1e-5)

	probs := flatF32(t, graph.Softmax(x, 0))
	total := probs[0] + probs[1] + probs[2]
	require.InDelta(t, 1, total, 1e-6)
	require.Greater(t, probs[2], probs[1])

	logProbs := flatF32(t, graph.LogSoftmax(x, 0))
	for ii := range probs {
		require.InDelta(t, math.Log(float64(probs[ii])), float64(logProbs[ii]), 1e-5)
	}

	require.InDelta(t, 2.0/3.0, flatF32(t, graph.Var(x, 0))[0], 1e-6)
	require.InDelta(t, math.Sqrt(2.0/3.0), flatF32(t, graph.Std(x, 0))[0], 1e-6)

	weights := g.ConstantFromFlat([]float32{1, 0, 1}, 3)
	require.InDelta(t, 2, flatF32(t, graph.WeightedAverage(x, weights, 0))[0], 1e-6)

	require.InDelta(t, 1+4+9, flatF32(t, graph.ScalarProduct(x, x))[0], 1e-6)
	require.True(t, graph.ScalarProduct(x, x).Shape().IsScalar())
}

func TestCrossEntropy(t *testing.T) {
	g := setupGraph(t)
	logits := g.ConstantFromFlat([]float32{1, 2, 3}, 1, 3)
	labels := g.ConstantFromFlat([]int32{2}, 1, 1)
	loss := flatF32(t, graph.CrossEntropy(logits, labels))
	require.InDelta(t, math.Log(math.Exp(1)+math.Exp(2)+math.Exp(3))-3, loss[0], 1e-5)

	floatLabels := g.ConstantFromFlat([]float32{2}, 1, 1)
	require.Panics(t, func() { graph.CrossEntropy(logits, floatLabels) })
}

func TestTransposeOps(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	transposed := graph.Transpose(x)
	require.Equal(t, []int{3, 2}, transposed.Shape().Dimensions)
	require.Equal(t, []float32{1, 4, 2, 5, 3, 6}, flatF32(t, transposed))

	cube := g.ConstantFromFlat([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 2, 2, 2)
	rotated := graph.TransposeAxes(cube, 2, 0, 1)
	require.Equal(t, []float32{1, 3, 5, 7, 2, 4, 6, 8}, flatF32(t, rotated))

	require.Equal(t, flatF32(t, graph.SwapAxes(x, 0, 1)), flatF32(t, transposed))
	require.Panics(t, func() { graph.TransposeAxes(x, 0, 0) })
	require.Panics(t, func() { graph.Transpose(g.ConstantFromFlat([]float32{1}, 1)) })
}

func TestReshapeOps(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	require.Equal(t, []int{3, 2}, graph.Reshape(x, 3, 2).Shape().Dimensions)
	require.Equal(t, []int{6}, graph.Flatten(x).Shape().Dimensions)
	require.Equal(t, []int{2, 3}, graph.Flatten2D(x).Shape().Dimensions)
	require.Equal(t, []int{1, 1, 2, 3}, graph.AtLeast4D(x).Shape().Dimensions)
	require.Equal(t, x, graph.AtLeast2D(x), "rank is already sufficient")

	// Reshape moves no data.
	require.Equal(t, []float32{1, 2, 3, 4, 5, 6}, flatF32(t, graph.Reshape(x, 6)))
}

func TestConcatenateAndRepeat(t *testing.T) {
	g := setupGraph(t)
	a := g.ConstantFromFlat([]float32{1, 2}, 1, 2)
	b := g.ConstantFromFlat([]float32{3, 4}, 1, 2)
	got := graph.Concatenate(0, a, b)
	require.Equal(t, []int{2, 2}, got.Shape().Dimensions)
	require.Equal(t, []float32{1, 2, 3, 4}, flatF32(t, got))

	require.Equal(t, []float32{1, 2, 1, 2, 1, 2}, flatF32(t, graph.Repeat(a, 3, 0)))
	require.Equal(t, a, graph.Repeat(a, 1, 0))

	mismatched := g.ConstantFromFlat([]float32{1, 2, 3}, 1, 3)
	require.Panics(t, func() { graph.Concatenate(0, a, mismatched) })

	// Promotion casts land in the node's own input list; the caller's slice
	// is left alone.
	ints := g.ConstantFromFlat([]int32{5, 6}, 1, 2)
	operands := []*graph.Node{a, ints}
	promoted := graph.Concatenate(0, operands...)
	require.Equal(t, dtypes.Float32, promoted.DType())
	require.Equal(t, []*graph.Node{a, ints}, operands)
	require.Equal(t, []float32{1, 2, 5, 6}, flatF32(t, promoted))
}

func TestSliceNarrowShift(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{10, 20, 30, 40}, 4)
	require.Equal(t, []float32{20, 30}, flatF32(t, graph.Slice(x, 0, 1, 3)))
	require.Equal(t, []float32{20, 30}, flatF32(t, graph.Slice(x, 0, -3, -1)))
	require.Equal(t, []float32{20, 30}, flatF32(t, graph.Narrow(x, 0, 1, 2)))

	matrix := g.ConstantFromFlat([]float32{1, 2, 3, 4}, 2, 2)
	require.Equal(t, []float32{9, 9, 1, 2}, flatF32(t, graph.Shift(matrix, []int{1, 0}, 9)))
	require.Panics(t, func() { graph.Shift(matrix, []int{1}, 0) })
}

func TestGatherOps(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	rows := graph.Rows(x, g.ConstantFromFlat([]int32{1}, 1))
	require.Equal(t, []float32{4, 5, 6}, flatF32(t, rows))

	cols := graph.Cols(x, g.ConstantFromFlat([]int32{2, 0}, 2))
	require.Equal(t, []float32{3, 1, 6, 4}, flatF32(t, cols))

	require.Panics(t, func() { graph.Gather(x, 0, g.ConstantFromFlat([]float32{1}, 1, 1)) },
		"indices must be integers")
	require.Panics(t, func() { graph.IndexSelect(x, 0, g.ConstantFromFlat([]int32{1, 1, 1, 1}, 2, 2)) })
}

func TestTopKOps(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{3, 1, 2}, 3)
	pair := graph.TopK(x, 2, -1, true)
	require.Equal(t, []float32{3, 2}, flatF32(t, pair.Values))
	require.Equal(t, []int32{0, 2}, flatI32(t, pair.Indices))
	require.Equal(t, dtypes.Int32, pair.Indices.DType())

	argmax := graph.ArgMax(x, 0)
	require.Equal(t, []int32{0}, flatI32(t, argmax.Indices))
	require.Equal(t, []float32{3}, flatF32(t, argmax.Values))
	argmin := graph.ArgMin(x, 0)
	require.Equal(t, []int32{1}, flatI32(t, argmin.Indices))
}

func TestDropout(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{1, 1, 1, 1}, 4)
	require.Equal(t, x, graph.Dropout(x, 0), "rate 0 is the identity")

	before := g.NumNodes()
	first := graph.Dropout(x, 0.5)
	mid := g.NumNodes()
	second := graph.Dropout(x, 0.5)
	after := g.NumNodes()
	require.Equal(t, 2, mid-before, "mask leaf plus the Mul")
	require.Equal(t, 1, after-mid, "the cached mask is shared")
	require.Equal(t, first.Inputs()[1], second.Inputs()[1])

	// Survivors are scaled by 1/keep; dropped elements are zero.
	for _, v := range flatF32(t, first) {
		require.Contains(t, []float32{0, 2}, v)
	}

	require.Panics(t, func() { graph.Dropout(x, 1) })
	require.Panics(t, func() { graph.Dropout(g.ConstantFromFlat([]int32{1}, 1), 0.5) })
}

func TestDebugIsTransparent(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{1, 2}, 2)
	tapped := graph.Debug(graph.MulScalar(x, 2), "scaled")
	require.Equal(t, "scaled", tapped.Name())
	require.Equal(t, []float32{2, 4}, flatF32(t, tapped))
}

func TestPoolingOps(t *testing.T) {
	g := setupGraph(t)
	image := g.ConstantFromFlat([]float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, 4, 4)

	pooled := graph.MaxPooling(image, 2, 2, 0, 0, 2, 2)
	require.Equal(t, []int{2, 2}, pooled.Shape().Dimensions)
	require.Equal(t, []float32{6, 8, 14, 16}, flatF32(t, pooled))

	avg := graph.AvgPooling(image, 2, 2, 0, 0, 2, 2)
	require.Equal(t, []float32{3.5, 5.5, 11.5, 13.5}, flatF32(t, avg))

	require.Panics(t, func() { graph.MaxPooling(image, 5, 5, 0, 0, 5, 5) })
	require.Panics(t, func() { graph.MaxPooling(image, 2, 2, 2, 2, 1, 1) }, "padding must stay below the window")
	ints := g.ConstantFromFlat([]int32{1, 2, 3, 4}, 2, 2)
	require.Panics(t, func() { graph.MaxPooling(ints, 2, 2, 0, 0, 1, 1) })
}

func TestPlusAndMinMax(t *testing.T) {
	g := setupGraph(t)
	a := g.ConstantFromFlat([]float32{1, 2}, 2)
	b := g.ConstantFromFlat([]float32{10, 20}, 2)
	c := g.ConstantFromFlat([]float32{100, 200}, 2)
	require.Equal(t, []float32{111, 222}, flatF32(t, graph.Plus(a, b, c)))
	require.Equal(t, a, graph.Plus(a))

	require.Equal(t, []float32{10, 20}, flatF32(t, graph.Maximum(a, b)))
	require.Equal(t, []float32{1, 2}, flatF32(t, graph.Minimum(a, b)))
	require.Equal(t, []float32{1, 2}, flatF32(t, graph.MinimumScalar(b, 2)))
	require.Equal(t, []float32{5, 5}, flatF32(t, graph.MaximumScalar(graph.MinimumScalar(b, 5), 5)))
}

func TestScalarSugar(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{2, 4}, 2)
	require.Equal(t, []float32{3, 5}, flatF32(t, graph.AddScalar(x, 1)))
	require.Equal(t, []float32{1, 3}, flatF32(t, graph.SubScalar(x, 1)))
	require.Equal(t, []float32{8, 6}, flatF32(t, graph.ScalarSub(10, x)))
	require.Equal(t, []float32{1, 2}, flatF32(t, graph.DivScalar(x, 2)))
	require.Equal(t, []float32{2, 1}, flatF32(t, graph.ScalarDiv(4, x)))
}
