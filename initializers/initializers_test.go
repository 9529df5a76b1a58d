package initializers

import (
	"math/rand/v2"
	"testing"

	"github.com/exprgraph/exprgraph/backends"
	_ "github.com/exprgraph/exprgraph/backends/purego"
	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) backends.Backend {
	b := backends.MustNew("")
	t.Cleanup(b.Finalize)
	return b
}

func materialize(t *testing.T, b backends.Backend, init Initializer, shape shapes.Shape) []float32 {
	buffer, err := init(b, shape)
	require.NoError(t, err)
	t.Cleanup(func() { b.ReleaseBuffer(buffer) })
	require.True(t, b.BufferShape(buffer).Equal(shape))
	return must.M1(b.BufferFlat(buffer)).([]float32)
}

func TestDeterministicFills(t *testing.T) {
	b := newTestBackend(t)
	shape := shapes.Make(dtypes.Float32, 2, 3)

	require.Equal(t, []float32{0, 0, 0, 0, 0, 0}, materialize(t, b, Zeros(), shape))
	require.Equal(t, []float32{1, 1, 1, 1, 1, 1}, materialize(t, b, Ones(), shape))
	require.Equal(t, []float32{2.5, 2.5, 2.5, 2.5, 2.5, 2.5}, materialize(t, b, FromValue(2.5), shape))
}

func TestFromFlat(t *testing.T) {
	b := newTestBackend(t)
	shape := shapes.Make(dtypes.Float32, 3)
	require.Equal(t, []float32{1, 2, 3}, materialize(t, b, FromFlat([]float32{1, 2, 3}), shape))

	_, err := FromFlat([]float32{1, 2})(b, shape)
	require.Error(t, err, "size mismatch")
	_, err = FromFlat([]float64{1, 2, 3})(b, shape)
	require.Error(t, err, "dtype mismatch")
}

func TestFromValueIntDTypes(t *testing.T) {
	b := newTestBackend(t)
	buffer := must.M1(FromValue(7)(b, shapes.Make(dtypes.Int64, 2)))
	defer b.ReleaseBuffer(buffer)
	require.Equal(t, []int64{7, 7}, must.M1(b.BufferFlat(buffer)).([]int64))
}

func TestRandomUniform(t *testing.T) {
	b := newTestBackend(t)
	rng := rand.New(rand.NewPCG(42, 0))
	flat := materialize(t, b, RandomUniform(-1, 1, rng), shapes.Make(dtypes.Float32, 1000))
	var sum float64
	for _, v := range flat {
		require.GreaterOrEqual(t, v, float32(-1))
		require.Less(t, v, float32(1))
		sum += float64(v)
	}
	require.InDelta(t, 0, sum/1000, 0.1)
}

func TestRandomNormal(t *testing.T) {
	b := newTestBackend(t)
	rng := rand.New(rand.NewPCG(42, 0))
	flat := materialize(t, b, RandomNormal(5, 0.1, rng), shapes.Make(dtypes.Float32, 1000))
	var sum float64
	for _, v := range flat {
		sum += float64(v)
	}
	require.InDelta(t, 5, sum/1000, 0.05)
}

func TestRandomDeterminism(t *testing.T) {
	b := newTestBackend(t)
	shape := shapes.Make(dtypes.Float32, 16)
	first := materialize(t, b, RandomUniform(0, 1, rand.New(rand.NewPCG(7, 0))), shape)
	second := materialize(t, b, RandomUniform(0, 1, rand.New(rand.NewPCG(7, 0))), shape)
	require.Equal(t, first, second, "the same seed draws the same values")
}

func TestBernoulliScaled(t *testing.T) {
	b := newTestBackend(t)
	rng := rand.New(rand.NewPCG(42, 0))
	rate := 0.25
	flat := materialize(t, b, BernoulliScaled(rate, rng), shapes.Make(dtypes.Float32, 4000))

	scale := float32(1 / (1 - rate))
	kept := 0
	for _, v := range flat {
		require.Contains(t, []float32{0, scale}, v)
		if v != 0 {
			kept++
		}
	}
	// Expected keep fraction 0.75, and E[mask] == 1.
	require.InDelta(t, 0.75, float64(kept)/4000, 0.05)

	_, err := BernoulliScaled(1, rng)(b, shapes.Make(dtypes.Float32, 1))
	require.Error(t, err)
}

func TestUnsupportedDType(t *testing.T) {
	b := newTestBackend(t)
	_, err := Ones()(b, shapes.Make(dtypes.Complex64, 2))
	require.Error(t, err)
}
