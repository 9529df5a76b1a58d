package graph

import (
	"slices"

	"github.com/exprgraph/exprgraph/backends"
	"github.com/exprgraph/exprgraph/types"
	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/exprgraph/exprgraph/types/xslices"
	"github.com/gomlx/exceptions"
)

// Shape manipulation operators. None of them touch element values; their
// backward rules move the gradient through the inverse rearrangement.

// Reshape returns x reorganized to the given dimensions, which must hold
// exactly the same number of elements. No dimensions produce a scalar
// (which then requires x to hold a single element).
func Reshape(x *Node, dimensions ...int) *Node {
	g := sameGraph(x)
	var shape shapes.Shape
	if len(dimensions) == 0 {
		shape = shapes.Scalar(x.DType())
	} else {
		shape = shapes.Make(x.DType(), dimensions...)
	}
	if shape.Size() != x.shape.Size() {
		exceptions.Panicf("Reshape(%s, %v): new shape holds %d elements, node holds %d",
			x, dimensions, shape.Size(), x.shape.Size())
	}
	return g.newNode(backends.OpTypeReshape, shape, []*Node{x})
}

// Flatten returns x reshaped to rank 1.
func Flatten(x *Node) *Node {
	return Reshape(x, x.shape.Size())
}

// Flatten2D returns x reshaped to a matrix keeping the last axis: shape
// [size/lastDim, lastDim]. Requires rank >= 1.
func Flatten2D(x *Node) *Node {
	if x.Rank() < 1 {
		exceptions.Panicf("Flatten2D(%s): requires rank >= 1", x)
	}
	lastDim := x.shape.Dim(-1)
	return Reshape(x, x.shape.Size()/lastDim, lastDim)
}

// AtLeastND prepends size-1 axes until x has at least rank n.
func AtLeastND(x *Node, n int) *Node {
	if n > shapes.MaxRank {
		exceptions.Panicf("AtLeastND(%s, %d): rank exceeds the maximum of %d", x, n, shapes.MaxRank)
	}
	if x.Rank() >= n {
		return x
	}
	dims := make([]int, n)
	xslices.FillSlice(dims[:n-x.Rank()], 1)
	copy(dims[n-x.Rank():], x.shape.Dimensions)
	return Reshape(x, dims...)
}

// AtLeast1D ensures rank >= 1.
func AtLeast1D(x *Node) *Node { return AtLeastND(x, 1) }

// AtLeast2D ensures rank >= 2.
func AtLeast2D(x *Node) *Node { return AtLeastND(x, 2) }

// AtLeast3D ensures rank >= 3.
func AtLeast3D(x *Node) *Node { return AtLeastND(x, 3) }

// AtLeast4D ensures rank >= 4.
func AtLeast4D(x *Node) *Node { return AtLeastND(x, 4) }

// TransposeAxes returns x with its axes permuted: output axis i takes input
// axis permutation[i]. The permutation must mention every axis exactly once
// (negative values count from the end).
func TransposeAxes(x *Node, permutation ...int) *Node {
	g := sameGraph(x)
	if len(permutation) != x.Rank() {
		exceptions.Panicf("TransposeAxes(%s): permutation %v must have exactly one entry per axis", x, permutation)
	}
	adjusted := make([]int, len(permutation))
	seen := types.MakeSet[int](x.Rank())
	for ii, axis := range permutation {
		adjusted[ii] = adjustAxis("TransposeAxes", x, axis)
		if seen.Has(adjusted[ii]) {
			exceptions.Panicf("TransposeAxes(%s): axis %d appears more than once in %v", x, adjusted[ii], permutation)
		}
		seen.Insert(adjusted[ii])
	}
	dims := xslices.Map(adjusted, func(axis int) int { return x.shape.Dimensions[axis] })
	n := g.newNode(backends.OpTypeTranspose, shapes.Make(x.DType(), dims...), []*Node{x})
	n.ints = adjusted
	return n
}

// Transpose swaps the last two axes of x. Requires rank >= 2.
func Transpose(x *Node) *Node {
	if x.Rank() < 2 {
		exceptions.Panicf("Transpose(%s): requires rank >= 2", x)
	}
	return SwapAxes(x, -2, -1)
}

// SwapAxes returns x with the two given axes exchanged.
func SwapAxes(x *Node, axis1, axis2 int) *Node {
	axis1 = adjustAxis("SwapAxes", x, axis1)
	axis2 = adjustAxis("SwapAxes", x, axis2)
	permutation := xslices.Iota(0, x.Rank())
	permutation[axis1], permutation[axis2] = axis2, axis1
	return TransposeAxes(x, permutation...)
}

// Concatenate joins the nodes along the given axis. All other axes must
// match exactly, and the dtypes are promoted to a common one.
func Concatenate(axis int, nodes ...*Node) *Node {
	if len(nodes) == 0 {
		exceptions.Panicf("Concatenate requires at least one node")
	}
	g := sameGraph(nodes...)
	if len(nodes) == 1 {
		return nodes[0]
	}
	first := nodes[0]
	axis = adjustAxis("Concatenate", first, axis)
	dtype := first.DType()
	for _, n := range nodes[1:] {
		promoted, err := shapes.PromoteDTypes(dtype, n.DType())
		if err != nil {
			exceptions.Panicf("Concatenate: %v", err)
		}
		dtype = promoted
	}
	totalDim := 0
	inputs := make([]*Node, len(nodes)) // The caller keeps ownership of nodes.
	for ii, n := range nodes {
		if n.Rank() != first.Rank() {
			exceptions.Panicf("Concatenate: %s and %s have different ranks", first, n)
		}
		for a, dim := range n.shape.Dimensions {
			if a != axis && dim != first.shape.Dimensions[a] {
				exceptions.Panicf("Concatenate: %s and %s differ on axis %d, which is not the concatenation axis",
					first, n, a)
			}
		}
		totalDim += n.shape.Dimensions[axis]
		inputs[ii] = CastTo(n, dtype)
	}
	dims := first.shape.Clone().Dimensions
	dims[axis] = totalDim
	n := g.newNode(backends.OpTypeConcatenate, shapes.Make(dtype, dims...), inputs)
	n.axis = axis
	return n
}

// Repeat concatenates x with itself the given number of times along the
// axis.
func Repeat(x *Node, repeats, axis int) *Node {
	if repeats <= 0 {
		exceptions.Panicf("Repeat(%s): repeats must be > 0, got %d", x, repeats)
	}
	if repeats == 1 {
		return x
	}
	copies := make([]*Node, repeats)
	xslices.FillSlice(copies, x)
	return Concatenate(axis, copies...)
}

// Slice takes the [start, end) range of the given axis, keeping all other
// axes. Negative start/end count from the end of the axis.
func Slice(x *Node, axis, start, end int) *Node {
	g := sameGraph(x)
	axis = adjustAxis("Slice", x, axis)
	dim := x.shape.Dimensions[axis]
	if start < 0 {
		start += dim
	}
	if end < 0 {
		end += dim
	}
	if start < 0 || end > dim || start >= end {
		exceptions.Panicf("Slice(%s, axis=%d): range [%d, %d) is invalid for dimension %d", x, axis, start, end, dim)
	}
	shape := x.shape.Clone()
	shape.Dimensions[axis] = end - start
	n := g.newNode(backends.OpTypeSlice, shape, []*Node{x})
	n.axis = axis
	n.ints = []int{start, end}
	return n
}

// Narrow is Slice given as (start, length) instead of (start, end).
func Narrow(x *Node, axis, start, length int) *Node {
	if start < 0 {
		start += x.shape.Dim(axis)
	}
	return Slice(x, axis, start, start+length)
}

// Shift moves the whole tensor by the given per-axis offsets, padding the
// vacated positions with pad. A positive offset moves content toward higher
// indices. One offset per axis is required.
func Shift(x *Node, offsets []int, pad float64) *Node {
	g := sameGraph(x)
	if len(offsets) != x.Rank() {
		exceptions.Panicf("Shift(%s): need one offset per axis, got %v", x, offsets)
	}
	n := g.newNode(backends.OpTypeShift, x.shape.Clone(), []*Node{x})
	n.ints = slices.Clone(offsets)
	n.float = pad
	return n
}
