package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())
	require.False(t, Shape{}.Ok())

	shape0 := Scalar(dtypes.Float64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.Equal(t, 0, shape0.Rank())
	require.Equal(t, 1, shape0.Size())
	require.Equal(t, 8, int(shape0.Memory()))

	shape1 := Make(dtypes.Float32, 4, 3, 2)
	require.True(t, shape1.Ok())
	require.False(t, shape1.IsScalar())
	require.Equal(t, 3, shape1.Rank())
	require.Equal(t, 4*3*2, shape1.Size())
	require.Equal(t, 4*4*3*2, int(shape1.Memory()))
	require.Equal(t, "(Float32)[4 3 2]", shape1.String())

	require.Equal(t, 2, shape1.Dim(-1))
	require.Equal(t, 4, shape1.Dim(0))
	require.Panics(t, func() { _ = shape1.Dim(3) })
	require.Panics(t, func() { _ = shape1.Dim(-4) })

	require.Panics(t, func() { Make(dtypes.Float32, 3, 0) })
	require.Panics(t, func() { Make(dtypes.Float32, 1, 1, 1, 1, 1, 1, 1, 1, 1) })
}

func TestShapeEqual(t *testing.T) {
	a := Make(dtypes.Float32, 2, 3)
	require.True(t, a.Equal(Make(dtypes.Float32, 2, 3)))
	require.False(t, a.Equal(Make(dtypes.Float64, 2, 3)))
	require.False(t, a.Equal(Make(dtypes.Float32, 3, 2)))
	require.True(t, a.EqualDimensions(Make(dtypes.Float64, 2, 3)))

	clone := a.Clone()
	clone.Dimensions[0] = 7
	require.Equal(t, 2, a.Dimensions[0])
}

func TestAdjustAxisToRank(t *testing.T) {
	axis, err := AdjustAxisToRank(-1, 3)
	require.NoError(t, err)
	require.Equal(t, 2, axis)

	axis, err = AdjustAxisToRank(1, 3)
	require.NoError(t, err)
	require.Equal(t, 1, axis)

	_, err = AdjustAxisToRank(3, 3)
	require.Error(t, err)
	_, err = AdjustAxisToRank(-4, 3)
	require.Error(t, err)
}

func TestAdjustAxesToRankAndSort(t *testing.T) {
	axes, err := AdjustAxesToRankAndSort([]int{-1, 0}, 3)
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, axes)

	_, err = AdjustAxesToRankAndSort([]int{0, -3}, 3)
	require.Error(t, err) // 0 repeated.
	_, err = AdjustAxesToRankAndSort([]int{5}, 3)
	require.Error(t, err)
}
