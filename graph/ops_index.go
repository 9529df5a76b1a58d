package graph

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/exprgraph/exprgraph/types/xslices"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Indexing operators.

// Gather picks elements of x along the axis: the output keeps x's
// dimensions except on the axis, whose size (and per-position source) comes
// from the indices. The indices node must hold an integer dtype, have x's
// rank, and its non-axis dimensions must equal x's or be 1 (broadcast).
// Gradient flows to the gathered positions of x, adding where an index
// repeats; the indices receive none.
func Gather(x *Node, axis int, indices *Node) *Node {
	g := sameGraph(x, indices)
	axis = adjustAxis("Gather", x, axis)
	if !indices.DType().IsInt() {
		exceptions.Panicf("Gather: indices %s must have an integer dtype", indices)
	}
	if indices.Rank() != x.Rank() {
		exceptions.Panicf("Gather: indices %s must have the rank of %s", indices, x)
	}
	for a, dim := range indices.shape.Dimensions {
		if a != axis && dim != 1 && dim != x.shape.Dimensions[a] {
			exceptions.Panicf("Gather: indices %s dimension on axis %d must be 1 or match %s", indices, a, x)
		}
	}
	shape := x.shape.Clone()
	shape.Dimensions[axis] = indices.shape.Dimensions[axis]
	n := g.newNode(backends.OpTypeGather, shape, []*Node{x, indices})
	n.axis = axis
	return n
}

// IndexSelect is Gather with a rank-1 indices node: the indices are
// reshaped to x's rank (size 1 everywhere but the axis) and broadcast over
// the other axes.
func IndexSelect(x *Node, axis int, indices *Node) *Node {
	if indices.Rank() != 1 {
		exceptions.Panicf("IndexSelect: indices %s must have rank 1", indices)
	}
	axis = adjustAxis("IndexSelect", x, axis)
	dims := make([]int, x.Rank())
	xslices.FillSlice(dims, 1)
	dims[axis] = indices.shape.Dimensions[0]
	return Gather(x, axis, Reshape(indices, dims...))
}

// Rows selects rows (axis 0) of x by index.
func Rows(x *Node, indices *Node) *Node { return IndexSelect(x, 0, indices) }

// Cols selects entries of the last axis of x by index.
func Cols(x *Node, indices *Node) *Node { return IndexSelect(x, -1, indices) }

// TopK returns the k best elements along the axis as a pair of co-dependent
// handles: the selected values and their Int32 positions, best first.
// Descending picks the largest values, ascending the smallest; ties resolve
// to the lower position, keeping the operator deterministic. Gradient flows
// through Values to exactly the selected positions of x; all others receive
// zero, and Indices is gradient-opaque.
func TopK(x *Node, k, axis int, descending bool) Expr2 {
	g := sameGraph(x)
	axis = adjustAxis("TopK", x, axis)
	if x.Rank() == 0 {
		exceptions.Panicf("TopK(%s): requires rank >= 1", x)
	}
	dim := x.shape.Dimensions[axis]
	if k <= 0 || k > dim {
		exceptions.Panicf("TopK(%s): k=%d is out of range for axis %d with dimension %d", x, k, axis, dim)
	}
	indicesShape := x.shape.Clone()
	indicesShape.DType = dtypes.Int32
	indicesShape.Dimensions[axis] = k
	indices := g.newNode(backends.OpTypeTopKIndices, indicesShape, []*Node{x})
	indices.axis = axis
	indices.k = k
	indices.descending = descending
	values := Gather(x, axis, indices)
	return Expr2{Values: values, Indices: indices}
}

// ArgMax is TopK with k=1 taking the largest element.
func ArgMax(x *Node, axis int) Expr2 { return TopK(x, 1, axis, true) }

// ArgMin is TopK with k=1 taking the smallest element.
func ArgMin(x *Node, axis int) Expr2 { return TopK(x, 1, axis, false) }
