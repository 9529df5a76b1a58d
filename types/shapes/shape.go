// Package shapes defines Shape and the associated broadcasting, axis
// normalization and DType promotion rules used by the graph package.
//
// Shape represents the rank, dimensions and DType of either a concrete
// buffer or the expected value of a node in a computation graph. DType is
// the enumeration defined in github.com/gomlx/gopjrt/dtypes. Go float16
// support uses the github.com/x448/float16 implementation.
//
// Glossary:
//
//   - Rank: number of axes (dimensions) of a tensor.
//   - Axis: the index of a dimension. Axis values may be given negative, in
//     which case they count from the end -- axis -1 is the last one. They
//     are normalized with AdjustAxisToRank before use.
//   - Dimension: the size of an axis.
//   - Scalar: a shape of rank 0, holding a single value of the DType.
package shapes

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"slices"
)

// MaxRank is the maximum rank supported for shapes.
const MaxRank = 8

// Shape represents the shape of either a buffer or the expected value of a
// computation node.
//
// Use Make to create a new shape.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape structure filled with the values given.
// It panics on dimensions <= 0 or rank > MaxRank.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	if len(dimensions) > MaxRank {
		exceptions.Panicf("shapes.Make: rank %d exceeds the maximum supported rank of %d", len(dimensions), MaxRank)
	}
	s := Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim <= 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension <= 0", s)
		}
	}
	return s
}

// Scalar returns a rank-0 Shape for the given dtype.
func Scalar(dtype dtypes.DType) Shape {
	return Shape{DType: dtype}
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. The zero value Shape{} is invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of axes.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar: no axes, a single value.
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// Size returns the number of elements of DType needed for this shape.
// It's the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the number of bytes needed to store a buffer of this shape.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// Dim returns the dimension of the given axis, which may be negative, in
// which case it is taken from the end. It panics on an out-of-bounds axis.
func (s Shape) Dim(axis int) int {
	adjusted, err := AdjustAxisToRank(axis, s.Rank())
	if err != nil {
		exceptions.Panicf("Shape.Dim(%d) out-of-range for shape %s", axis, s)
	}
	return s.Dimensions[adjusted]
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// HasShape is an interface for objects that have an associated Shape: Shape
// itself, graph nodes and backend buffers.
type HasShape interface {
	Shape() Shape
}

// Equal compares dtype and dimensions.
func (s Shape) Equal(s2 Shape) bool {
	return s.DType == s2.DType && slices.Equal(s.Dimensions, s2.Dimensions)
}

// EqualDimensions compares dimensions only; DTypes may differ.
func (s Shape) EqualDimensions(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: slices.Clone(s.Dimensions)}
}

// String implements fmt.Stringer and pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	parts := make([]string, 0, s.Rank())
	for _, dim := range s.Dimensions {
		parts = append(parts, fmt.Sprintf("%d", dim))
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
}

// AdjustAxisToRank normalizes a possibly negative axis to the range [0, rank).
// A negative axis counts from the end: -1 is the last axis.
func AdjustAxisToRank(axis, rank int) (int, error) {
	adjusted := axis
	if adjusted < 0 {
		adjusted += rank
	}
	if adjusted < 0 || adjusted >= rank {
		return -1, errors.Errorf("axis %d is out-of-range for rank %d", axis, rank)
	}
	return adjusted, nil
}

// AdjustAxesToRankAndSort normalizes each axis with AdjustAxisToRank and
// returns them sorted. It fails if any axis is out-of-range or repeated.
func AdjustAxesToRankAndSort(axes []int, rank int) ([]int, error) {
	adjusted := make([]int, len(axes))
	for ii, axis := range axes {
		var err error
		adjusted[ii], err = AdjustAxisToRank(axis, rank)
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(adjusted)
	for ii := 1; ii < len(adjusted); ii++ {
		if adjusted[ii] == adjusted[ii-1] {
			return nil, errors.Errorf("axis %d given more than once in %v", adjusted[ii], axes)
		}
	}
	return adjusted, nil
}
