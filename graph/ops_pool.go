package graph

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/gomlx/exceptions"
)

// 2D pooling over the last two axes. Leading axes are treated as batch.

func newPool(opType backends.OpType, x *Node, windowH, windowW, padH, padW, strideH, strideW int) *Node {
	g := sameGraph(x)
	requireFloatDType(opType.String(), x)
	if x.Rank() < 2 {
		exceptions.Panicf("%s(%s): requires rank >= 2", opType, x)
	}
	if windowH <= 0 || windowW <= 0 {
		exceptions.Panicf("%s(%s): window %dx%d must be positive", opType, x, windowH, windowW)
	}
	if strideH <= 0 || strideW <= 0 {
		exceptions.Panicf("%s(%s): strides %dx%d must be positive", opType, x, strideH, strideW)
	}
	if padH < 0 || padW < 0 || padH >= windowH || padW >= windowW {
		exceptions.Panicf("%s(%s): padding %dx%d must be >= 0 and smaller than the window %dx%d",
			opType, x, padH, padW, windowH, windowW)
	}
	inH, inW := x.shape.Dim(-2), x.shape.Dim(-1)
	outH := (inH+2*padH-windowH)/strideH + 1
	outW := (inW+2*padW-windowW)/strideW + 1
	if outH < 1 || outW < 1 {
		exceptions.Panicf("%s(%s): window %dx%d with padding %dx%d does not fit the input %dx%d",
			opType, x, windowH, windowW, padH, padW, inH, inW)
	}
	shape := x.shape.Clone()
	shape.Dimensions[x.Rank()-2] = outH
	shape.Dimensions[x.Rank()-1] = outW
	n := g.newNode(opType, shape, []*Node{x})
	n.ints = []int{windowH, windowW, padH, padW, strideH, strideW}
	return n
}

// MaxPooling slides a windowH x windowW window over the last two axes and
// keeps the maximum per window. Gradient flows to the first position holding
// each window's maximum.
func MaxPooling(x *Node, windowH, windowW, padH, padW, strideH, strideW int) *Node {
	return newPool(backends.OpTypeMaxPool, x, windowH, windowW, padH, padW, strideH, strideW)
}

// AvgPooling slides a windowH x windowW window over the last two axes and
// averages each window over its in-bounds positions (padding does not
// dilute the average).
func AvgPooling(x *Node, windowH, windowW, padH, padW, strideH, strideW int) *Node {
	return newPool(backends.OpTypeAvgPool, x, windowH, windowW, padH, padW, strideH, strideW)
}
