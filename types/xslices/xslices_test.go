package xslices

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIota(t *testing.T) {
	require.Equal(t, []int{3, 4, 5}, Iota(3, 3))
	require.Equal(t, []float32{0, 1}, Iota(float32(0), 2))
	require.Empty(t, Iota(0, 0))
}

func TestMap(t *testing.T) {
	require.Equal(t, []int{2, 4, 6}, Map([]int{1, 2, 3}, func(e int) int { return 2 * e }))
	require.Equal(t, []string{"1", "2"}, Map([]int{1, 2}, func(e int) string {
		return string(rune('0' + e))
	}))
}

func TestAtAndLast(t *testing.T) {
	slice := []int{10, 20, 30}
	require.Equal(t, 10, At(slice, 0))
	require.Equal(t, 30, At(slice, -1))
	require.Equal(t, 20, At(slice, -2))
	require.Equal(t, 30, Last(slice))
}

func TestFillSlice(t *testing.T) {
	slice := make([]int, 3)
	FillSlice(slice, 7)
	require.Equal(t, []int{7, 7, 7}, slice)
}

func TestReverse(t *testing.T) {
	slice := []int{1, 2, 3, 4}
	Reverse(slice)
	require.Equal(t, []int{4, 3, 2, 1}, slice)

	odd := []int{1, 2, 3}
	Reverse(odd)
	require.Equal(t, []int{3, 2, 1}, odd)
}
