package shapes

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// This file holds the pure shape/dtype rules consulted by every binary
// operator factory before a node is constructed: broadcasting of dimensions
// and promotion of element types.

// BroadcastDims returns the resulting dimensions of broadcasting the two
// dimension lists together: axes are right-aligned, a missing leading axis
// counts as size 1, and per axis the dimensions must either match or one of
// them must be exactly 1. The result takes the larger size per axis.
func BroadcastDims(lhs, rhs []int) ([]int, error) {
	rank := max(len(lhs), len(rhs))
	if rank > MaxRank {
		return nil, errors.Errorf("broadcast of %v and %v exceeds the maximum supported rank of %d", lhs, rhs, MaxRank)
	}
	result := make([]int, rank)
	for axis := 1; axis <= rank; axis++ {
		lhsDim, rhsDim := 1, 1
		if axis <= len(lhs) {
			lhsDim = lhs[len(lhs)-axis]
		}
		if axis <= len(rhs) {
			rhsDim = rhs[len(rhs)-axis]
		}
		if lhsDim != rhsDim && lhsDim != 1 && rhsDim != 1 {
			return nil, errors.Errorf("dimensions %v and %v are not broadcast-compatible: axis %d has sizes %d and %d",
				lhs, rhs, rank-axis, lhsDim, rhsDim)
		}
		result[rank-axis] = max(lhsDim, rhsDim)
	}
	return result, nil
}

// BroadcastShapes combines BroadcastDims and PromoteDTypes: it returns the
// shape an elementwise binary operation of the two operands produces.
func BroadcastShapes(lhs, rhs Shape) (Shape, error) {
	dtype, err := PromoteDTypes(lhs.DType, rhs.DType)
	if err != nil {
		return Invalid(), err
	}
	dims, err := BroadcastDims(lhs.Dimensions, rhs.Dimensions)
	if err != nil {
		return Invalid(), err
	}
	return Shape{DType: dtype, Dimensions: dims}, nil
}

// promotionOrder assigns each supported dtype its position in the promotion
// ladder. Higher values win when two different dtypes are combined.
var promotionOrder = map[dtypes.DType]int{
	dtypes.Bool:    0,
	dtypes.Int8:    1,
	dtypes.Uint8:   1,
	dtypes.Int16:   2,
	dtypes.Int32:   3,
	dtypes.Int64:   4,
	dtypes.Float16: 5,
	dtypes.Float32: 6,
	dtypes.Float64: 7,
}

// PromoteDTypes returns the element type resulting from combining operands
// of the two given dtypes. Identical dtypes promote to themselves; otherwise
// the wider dtype in the promotion ladder wins, and a float always wins over
// an integer. Combinations with no defined promotion (unsupported dtypes)
// return an error -- there is never a silent truncation.
func PromoteDTypes(lhs, rhs dtypes.DType) (dtypes.DType, error) {
	if lhs == rhs {
		if _, ok := promotionOrder[lhs]; !ok {
			return dtypes.InvalidDType, errors.Errorf("dtype %s is not supported", lhs)
		}
		return lhs, nil
	}
	lhsOrder, ok := promotionOrder[lhs]
	if !ok {
		return dtypes.InvalidDType, errors.Errorf("dtype %s is not supported", lhs)
	}
	rhsOrder, ok := promotionOrder[rhs]
	if !ok {
		return dtypes.InvalidDType, errors.Errorf("dtype %s is not supported", rhs)
	}
	if lhsOrder == rhsOrder {
		// Same width but different signedness (e.g. Int8 vs Uint8): ambiguous.
		return dtypes.InvalidDType, errors.Errorf("no promotion rule defined for dtypes %s and %s", lhs, rhs)
	}
	if lhsOrder > rhsOrder {
		return lhs, nil
	}
	return rhs, nil
}
