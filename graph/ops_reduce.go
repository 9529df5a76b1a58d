package graph

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/gomlx/exceptions"
)

// Axis-taking reductions collapse exactly one axis to size 1 -- the axis is
// kept, not removed, so results broadcast back against the input; callers
// reshape or Flatten explicitly when they want the axis gone. Axes may be
// negative, counting from the end.

func newReduce(opType backends.OpType, x *Node, axis int) *Node {
	g := sameGraph(x)
	axis = adjustAxis(opType.String(), x, axis)
	shape := x.shape.Clone()
	shape.Dimensions[axis] = 1
	n := g.newNode(opType, shape, []*Node{x})
	n.axis = axis
	return n
}

// Sum reduces the axis by addition. Its backward rule broadcasts the
// gradient back across the collapsed axis.
func Sum(x *Node, axis int) *Node { return newReduce(backends.OpTypeReduceSum, x, axis) }

// Mean reduces the axis by averaging; backward divides by the axis length.
func Mean(x *Node, axis int) *Node { return newReduce(backends.OpTypeReduceMean, x, axis) }

// Max reduces the axis by taking the maximum; gradient flows to the maximal
// positions (shared on ties).
func Max(x *Node, axis int) *Node { return newReduce(backends.OpTypeReduceMax, x, axis) }

// Min reduces the axis by taking the minimum.
func Min(x *Node, axis int) *Node { return newReduce(backends.OpTypeReduceMin, x, axis) }

// Prod reduces the axis by multiplication.
func Prod(x *Node, axis int) *Node { return newReduce(backends.OpTypeReduceProd, x, axis) }

// LogSumExp returns log(sum(e^x)) over the axis, computed in the
// overflow-safe shifted form. The shift goes through StopGradient: it is a
// numerical detail that must not receive gradient of its own.
func LogSumExp(x *Node, axis int) *Node {
	requireFloatDType("LogSumExp", x)
	shift := StopGradient(Max(x, axis))
	return Add(shift, Log(Sum(Exp(Sub(x, shift)), axis)))
}

// Var returns the biased population variance over the axis.
func Var(x *Node, axis int) *Node {
	requireFloatDType("Var", x)
	mean := Mean(x, axis)
	return Mean(Square(Sub(x, mean)), axis)
}

// Std returns the population standard deviation over the axis.
func Std(x *Node, axis int) *Node {
	return Sqrt(Var(x, axis), 0)
}

// Softmax normalizes the axis to a probability distribution, shifted by the
// axis maximum for stability.
func Softmax(x *Node, axis int) *Node {
	requireFloatDType("Softmax", x)
	shifted := Exp(Sub(x, StopGradient(Max(x, axis))))
	return Div(shifted, Sum(shifted, axis))
}

// LogSoftmax returns x - logsumexp(x) over the axis.
func LogSoftmax(x *Node, axis int) *Node {
	requireFloatDType("LogSoftmax", x)
	return Sub(x, LogSumExp(x, axis))
}

// CrossEntropy returns, per position of the last axis, logsumexp(logits) -
// logits[label]. The labels node must hold integer class indices and have
// the logits' shape with the last axis collapsed to 1; the result keeps that
// shape.
func CrossEntropy(logits, labels *Node) *Node {
	requireFloatDType("CrossEntropy", logits)
	if !labels.DType().IsInt() {
		exceptions.Panicf("CrossEntropy: labels %s must have an integer dtype", labels)
	}
	if labels.Rank() != logits.Rank() || labels.shape.Dim(-1) != 1 {
		exceptions.Panicf("CrossEntropy: labels %s must have the logits shape %s with the last axis collapsed to 1",
			labels, logits.shape)
	}
	picked := Gather(logits, -1, labels)
	return Sub(LogSumExp(logits, -1), picked)
}

// ScalarProduct returns sum(a*b) over all elements, as a scalar node.
func ScalarProduct(a, b *Node) *Node {
	product := Mul(a, b)
	total := Sum(Flatten(product), 0)
	return Reshape(total)
}

// WeightedAverage returns sum(x*weights)/sum(weights) over the axis.
func WeightedAverage(x, weights *Node, axis int) *Node {
	return Div(Sum(Mul(x, weights), axis), Sum(weights, axis))
}
