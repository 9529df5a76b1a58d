package graph

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/gomlx/exceptions"
)

// Elementwise arithmetic, with implicit broadcasting (see
// shapes.BroadcastShapes) and dtype promotion. The *Scalar forms are sugar:
// the scalar becomes a cached zero-rank constant of the operand's dtype
// before delegating to the node-node form.

// Add returns a+b elementwise.
func Add(a, b *Node) *Node { return newBinary(backends.OpTypeAdd, a, b) }

// Sub returns a-b elementwise.
func Sub(a, b *Node) *Node { return newBinary(backends.OpTypeSub, a, b) }

// Mul returns a*b elementwise.
func Mul(a, b *Node) *Node { return newBinary(backends.OpTypeMul, a, b) }

// Div returns a/b elementwise.
func Div(a, b *Node) *Node { return newBinary(backends.OpTypeDiv, a, b) }

// Maximum returns the elementwise larger of a and b. On ties the gradient
// goes to a.
func Maximum(a, b *Node) *Node { return newBinary(backends.OpTypeMaximum, a, b) }

// Minimum returns the elementwise smaller of a and b. On ties the gradient
// goes to a.
func Minimum(a, b *Node) *Node { return newBinary(backends.OpTypeMinimum, a, b) }

// AddScalar returns x+scalar.
func AddScalar(x *Node, scalar float64) *Node {
	return Add(x, scalarOperand("AddScalar", x, scalar))
}

// SubScalar returns x-scalar.
func SubScalar(x *Node, scalar float64) *Node {
	return Sub(x, scalarOperand("SubScalar", x, scalar))
}

// ScalarSub returns scalar-x.
func ScalarSub(scalar float64, x *Node) *Node {
	return Sub(scalarOperand("ScalarSub", x, scalar), x)
}

// MulScalar returns x*scalar.
func MulScalar(x *Node, scalar float64) *Node {
	return Mul(x, scalarOperand("MulScalar", x, scalar))
}

// DivScalar returns x/scalar.
func DivScalar(x *Node, scalar float64) *Node {
	return Div(x, scalarOperand("DivScalar", x, scalar))
}

// ScalarDiv returns scalar/x.
func ScalarDiv(scalar float64, x *Node) *Node {
	return Div(scalarOperand("ScalarDiv", x, scalar), x)
}

// MaximumScalar returns the elementwise larger of x and scalar.
func MaximumScalar(x *Node, scalar float64) *Node {
	return Maximum(x, scalarOperand("MaximumScalar", x, scalar))
}

// MinimumScalar returns the elementwise smaller of x and scalar.
func MinimumScalar(x *Node, scalar float64) *Node {
	return Minimum(x, scalarOperand("MinimumScalar", x, scalar))
}

// Plus sums any number of same-graph nodes elementwise, pairwise with the
// usual broadcasting.
func Plus(nodes ...*Node) *Node {
	if len(nodes) == 0 {
		exceptions.Panicf("Plus requires at least one node")
	}
	sum := nodes[0]
	for _, n := range nodes[1:] {
		sum = Add(sum, n)
	}
	return sum
}

// Neg returns -x.
func Neg(x *Node) *Node { return newUnary(backends.OpTypeNeg, x) }

// Abs returns |x|.
func Abs(x *Node) *Node { return newUnary(backends.OpTypeAbs, x) }

// Sign returns -1, 0 or 1 per element. Its gradient is zero everywhere.
func Sign(x *Node) *Node { return newUnary(backends.OpTypeSign, x) }

// Square returns x*x, sharing x as both operands.
func Square(x *Node) *Node { return Mul(x, x) }
