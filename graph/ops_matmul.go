package graph

import (
	"slices"

	"github.com/exprgraph/exprgraph/backends"
	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Matrix contractions. All take explicit transpose flags reinterpreting the
// operand layouts (no transposed copy is materialized) and a scalar
// multiplier applied to the product.

// dotShapes validates one [m,k] x [k,n] contraction (after applying the
// transpose flags) and returns the result dimensions [m, n].
func dotShapes(opName string, a, b *Node, transA, transB bool) (m, n int) {
	aDims, bDims := a.shape.Dimensions, b.shape.Dimensions
	m, k := aDims[len(aDims)-2], aDims[len(aDims)-1]
	if transA {
		m, k = k, m
	}
	kB, nB := bDims[len(bDims)-2], bDims[len(bDims)-1]
	if transB {
		kB, nB = nB, kB
	}
	if k != kB {
		exceptions.Panicf("%s: contraction dimensions do not match: %s (transA=%v) against %s (transB=%v)",
			opName, a, transA, b, transB)
	}
	return m, nB
}

// Dot returns scalar * a x b for rank-2 operands, with optional in-place
// transposition of either operand.
func Dot(a, b *Node, transA, transB bool, scalar float64) *Node {
	g := sameGraph(a, b)
	if a.Rank() != 2 || b.Rank() != 2 {
		exceptions.Panicf("Dot: operands must have rank 2, got %s and %s (use BDot for batched products)", a, b)
	}
	dtype := promoteOperands("Dot", &a, &b)
	m, n := dotShapes("Dot", a, b, transA, transB)
	node := g.newNode(backends.OpTypeDot, shapes.Make(dtype, m, n), []*Node{a, b})
	node.transLhs, node.transRhs = transA, transB
	node.float = scalar
	return node
}

// BDot is the batched Dot: operands of rank >= 3 whose last two axes are
// the matrices and whose leading batch axes must match exactly --
// mismatched batch dimensions are a construction-time failure.
func BDot(a, b *Node, transA, transB bool, scalar float64) *Node {
	g := sameGraph(a, b)
	if a.Rank() < 3 || b.Rank() < 3 || a.Rank() != b.Rank() {
		exceptions.Panicf("BDot: operands must have equal rank >= 3, got %s and %s", a, b)
	}
	batchA := a.shape.Dimensions[:a.Rank()-2]
	batchB := b.shape.Dimensions[:b.Rank()-2]
	if !slices.Equal(batchA, batchB) {
		exceptions.Panicf("BDot: batch dimensions %v and %v do not match", batchA, batchB)
	}
	dtype := promoteOperands("BDot", &a, &b)
	m, n := dotShapes("BDot", a, b, transA, transB)
	dims := append(slices.Clone(batchA), m, n)
	node := g.newNode(backends.OpTypeBatchedDot, shapes.Make(dtype, dims...), []*Node{a, b})
	node.transLhs, node.transRhs = transA, transB
	node.float = scalar
	return node
}

// Affine returns scalar * a x b + bias as a single fused 3-input node, the
// fully-connected layer primitive. The bias must broadcast against the
// product's [m, n] shape; the scalar does not apply to it.
func Affine(a, b, bias *Node, transA, transB bool, scalar float64) *Node {
	g := sameGraph(a, b, bias)
	if a.Rank() != 2 || b.Rank() != 2 {
		exceptions.Panicf("Affine: operands must have rank 2, got %s and %s", a, b)
	}
	dtype := promoteOperands("Affine", &a, &b)
	bias = CastTo(bias, dtype)
	m, n := dotShapes("Affine", a, b, transA, transB)
	shape := shapes.Make(dtype, m, n)
	if _, err := shapes.BroadcastDims(shape.Dimensions, bias.shape.Dimensions); err != nil {
		exceptions.Panicf("Affine: bias %s does not broadcast against the product shape %s", bias, shape)
	}
	if len(bias.shape.Dimensions) > 2 {
		exceptions.Panicf("Affine: bias %s must have rank <= 2", bias)
	}
	node := g.newNode(backends.OpTypeAffine, shape, []*Node{a, b, bias})
	node.transLhs, node.transRhs = transA, transB
	node.float = scalar
	return node
}

// promoteOperands casts both operands to their promoted dtype in place and
// returns it.
func promoteOperands(opName string, a, b **Node) dtypes.DType {
	promoted, err := shapes.PromoteDTypes((*a).DType(), (*b).DType())
	if err != nil {
		exceptions.Panicf("%s: %v", opName, err)
	}
	*a = CastTo(*a, promoted)
	*b = CastTo(*b, promoted)
	return promoted
}
