package graph_test

import (
	"testing"

	"github.com/exprgraph/exprgraph/backends"
	"github.com/exprgraph/exprgraph/graph"
	"github.com/exprgraph/exprgraph/initializers"
	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	y := graph.AddScalar(graph.MulScalar(x, 2), 1)
	require.Equal(t, []float32{3, 5, 7, 9, 11, 13}, flatF32(t, y))

	// Interior values are retained and readable after the sweep.
	require.NotPanics(t, func() { _ = y.Inputs()[0].Value() })
}

func TestEvaluateIsIdempotent(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{1, 2, 3}, 3)
	y := graph.Mul(x, x)
	first := g.Evaluate(y)
	second := g.Evaluate(y)
	require.True(t, first == second, "re-evaluating without mutation must reuse the same buffer")
	require.Equal(t, []float32{1, 4, 9}, flatF32(t, y))
}

func TestEvaluateOnlyDependencyClosure(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{1, 2}, 2)
	y := graph.Neg(x)
	unrelated := graph.Exp(g.ConstantFromFlat([]float32{0, 0}, 2))

	g.Evaluate(y)
	require.Panics(t, func() { _ = unrelated.Value() }, "nodes outside the closure are not computed")
}

func TestValueBeforeEvaluatePanics(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{1}, 1)
	y := graph.Neg(x)
	require.Panics(t, func() { _ = y.Value() })
	g.Evaluate(y)
	require.NotPanics(t, func() { _ = y.Value() })
}

func TestNextGenerationInvalidatesValues(t *testing.T) {
	g := setupGraph(t)
	x := g.Parameter("x", shapes.Make(dtypes.Float32, 2), initializers.FromFlat([]float32{1, 2}))
	y := graph.MulScalar(x, 3)
	require.Equal(t, []float32{3, 6}, flatF32(t, y))

	g.NextGeneration()
	require.Panics(t, func() { _ = y.Value() }, "previous generation values are stale")

	// Leaves keep their contents across generations; interior nodes are
	// recomputed on the next Evaluate.
	require.Equal(t, []float32{3, 6}, flatF32(t, y))
}

func TestLeafMutationVisibleNextGeneration(t *testing.T) {
	g := setupGraph(t)
	w := g.Parameter("w", shapes.Make(dtypes.Float32, 2), initializers.FromFlat([]float32{1, 2}))
	y := graph.MulScalar(w, 10)
	require.Equal(t, []float32{10, 20}, flatF32(t, y))

	// An optimizer-style in-place update through the flat view.
	flat := flatF32(t, w)
	flat[0], flat[1] = 5, 6
	g.NextGeneration()
	require.Equal(t, []float32{50, 60}, flatF32(t, y))
}

func TestLambdaForward(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{1, 2, 3}, 3)
	doubled := graph.Lambda([]*graph.Node{x}, x.Shape(),
		func(backend backends.Backend, inputs []backends.Buffer) (backends.Buffer, error) {
			input, err := backend.BufferFlat(inputs[0])
			if err != nil {
				return nil, err
			}
			output, err := backend.NewBuffer(x.Shape())
			if err != nil {
				return nil, err
			}
			flat, err := backend.BufferFlat(output)
			if err != nil {
				return nil, err
			}
			for ii, v := range input.([]float32) {
				flat.([]float32)[ii] = 2 * v
			}
			return output, nil
		}, nil)
	require.Equal(t, []float32{2, 4, 6}, flatF32(t, doubled))
}

func TestLambdaValidation(t *testing.T) {
	g := setupGraph(t)
	x := g.ConstantFromFlat([]float32{1}, 1)
	require.Panics(t, func() { graph.Lambda([]*graph.Node{x}, x.Shape(), nil, nil) })

	// A forward returning the wrong shape fails at evaluation.
	bad := graph.Lambda([]*graph.Node{x}, shapes.Make(dtypes.Float32, 2),
		func(backend backends.Backend, inputs []backends.Buffer) (backends.Buffer, error) {
			return backend.NewBuffer(shapes.Make(dtypes.Float32, 3))
		}, nil)
	require.Panics(t, func() { g.Evaluate(bad) })
}
