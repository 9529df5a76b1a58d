package graph

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// This file holds the helpers shared by the operator factories, plus the
// structural operators Identity and Cast.
//
// Factories validate everything at construction time: shapes, dtypes and
// axes are checked (panicking via exceptions.Panicf) before any node is
// linked into the graph, so a failed call never leaves the graph partially
// inconsistent.

// newUnary builds a same-shape single-input node.
func newUnary(opType backends.OpType, x *Node) *Node {
	g := sameGraph(x)
	return g.newNode(opType, x.shape.Clone(), []*Node{x})
}

// requireFloatDType panics unless the node holds a float dtype; the
// transcendental operators are only defined on floats.
func requireFloatDType(opName string, x *Node) {
	switch x.DType() {
	case dtypes.Float32, dtypes.Float64:
	default:
		exceptions.Panicf("%s requires a float dtype, %s has dtype %s", opName, x, x.DType())
	}
}

// newFloatUnary is newUnary restricted to float operands.
func newFloatUnary(opType backends.OpType, x *Node) *Node {
	requireFloatDType(opType.String(), x)
	return newUnary(opType, x)
}

// newBinary builds a broadcasting two-input node: it promotes the operand
// dtypes (inserting Cast nodes so both operands reach the kernel with the
// promoted dtype), broadcasts the dimensions and constructs the node.
func newBinary(opType backends.OpType, a, b *Node) *Node {
	g := sameGraph(a, b)
	shape, err := shapes.BroadcastShapes(a.shape, b.shape)
	if err != nil {
		exceptions.Panicf("%s(%s, %s): %v", opType, a, b, err)
	}
	a, b = CastTo(a, shape.DType), CastTo(b, shape.DType)
	return g.newNode(opType, shape, []*Node{a, b})
}

// scalarOperand returns the cached scalar constant of the node's dtype for
// the scalar-sugar operator forms. The resulting graph is identical to
// manually constructing the constant. An integer operand with a fractional
// scalar has no lossless representation and panics.
func scalarOperand(opName string, x *Node, scalar float64) *Node {
	dtype := x.DType()
	if dtype.IsInt() && scalar != float64(int64(scalar)) {
		exceptions.Panicf("%s: scalar %g cannot be represented in the operand dtype %s", opName, scalar, dtype)
	}
	return x.graph.ConstantScalar(dtype, scalar)
}

// adjustAxis normalizes a possibly-negative axis for the node, panicking if
// out of range.
func adjustAxis(opName string, x *Node, axis int) int {
	adjusted, err := shapes.AdjustAxisToRank(axis, x.Rank())
	if err != nil {
		exceptions.Panicf("%s(%s): %v", opName, x, err)
	}
	return adjusted
}

// Identity returns a pass-through node: same value, gradient passes
// unchanged. Mostly useful to give a shared sub-expression a distinct
// consumer.
func Identity(x *Node) *Node {
	return newUnary(backends.OpTypeIdentity, x)
}

// Cast converts the node to the given dtype. Float-to-int truncates toward
// zero; the gradient is cast back to the input dtype.
func Cast(x *Node, dtype dtypes.DType) *Node {
	g := sameGraph(x)
	if dtype == dtypes.InvalidDType {
		exceptions.Panicf("Cast(%s): invalid dtype", x)
	}
	shape := x.shape.Clone()
	shape.DType = dtype
	return g.newNode(backends.OpTypeCast, shape, []*Node{x})
}

// CastTo is Cast that returns x unchanged when it already has the dtype, so
// promotion sites do not create no-op nodes.
func CastTo(x *Node, dtype dtypes.DType) *Node {
	if x.DType() == dtype {
		return x
	}
	return Cast(x, dtype)
}
