package graph

import (
	"github.com/exprgraph/exprgraph/backends"
)

// Comparison operators: broadcasting elementwise comparisons whose results
// are 0/1 encoded in the promoted operand dtype, so they compose directly
// with arithmetic as masks. They are non-differentiable by convention: their
// inputs always receive zero gradient, which is not an error.

// LessThan returns 1 where a < b, else 0.
func LessThan(a, b *Node) *Node { return newBinary(backends.OpTypeLessThan, a, b) }

// LessOrEqual returns 1 where a <= b, else 0.
func LessOrEqual(a, b *Node) *Node { return newBinary(backends.OpTypeLessOrEqual, a, b) }

// GreaterThan returns 1 where a > b, else 0.
func GreaterThan(a, b *Node) *Node { return newBinary(backends.OpTypeGreaterThan, a, b) }

// GreaterOrEqual returns 1 where a >= b, else 0.
func GreaterOrEqual(a, b *Node) *Node { return newBinary(backends.OpTypeGreaterOrEqual, a, b) }

// Equal returns 1 where a == b, else 0.
func Equal(a, b *Node) *Node { return newBinary(backends.OpTypeEqual, a, b) }

// NotEqual returns 1 where a != b, else 0.
func NotEqual(a, b *Node) *Node { return newBinary(backends.OpTypeNotEqual, a, b) }

// LessThanScalar returns 1 where x < scalar, else 0.
func LessThanScalar(x *Node, scalar float64) *Node {
	return LessThan(x, scalarOperand("LessThanScalar", x, scalar))
}

// LessOrEqualScalar returns 1 where x <= scalar, else 0.
func LessOrEqualScalar(x *Node, scalar float64) *Node {
	return LessOrEqual(x, scalarOperand("LessOrEqualScalar", x, scalar))
}

// GreaterThanScalar returns 1 where x > scalar, else 0.
func GreaterThanScalar(x *Node, scalar float64) *Node {
	return GreaterThan(x, scalarOperand("GreaterThanScalar", x, scalar))
}

// GreaterOrEqualScalar returns 1 where x >= scalar, else 0.
func GreaterOrEqualScalar(x *Node, scalar float64) *Node {
	return GreaterOrEqual(x, scalarOperand("GreaterOrEqualScalar", x, scalar))
}

// EqualScalar returns 1 where x == scalar, else 0.
func EqualScalar(x *Node, scalar float64) *Node {
	return Equal(x, scalarOperand("EqualScalar", x, scalar))
}

// NotEqualScalar returns 1 where x != scalar, else 0.
func NotEqualScalar(x *Node, scalar float64) *Node {
	return NotEqual(x, scalarOperand("NotEqualScalar", x, scalar))
}
