package graph

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// Escape hatches: gradient control, inspection and caller-supplied rules.

// StopGradient passes the forward value through unchanged and deliberately
// severs the graph for the backward pass: its input always receives zero
// gradient, whatever flows in from downstream.
func StopGradient(x *Node) *Node {
	return newUnary(backends.OpTypeStopGradient, x)
}

// Debug is a transparent identity node that logs its forward value when
// evaluated and its accumulated gradient when the backward pass reaches it
// (via klog). It never alters numeric results.
func Debug(x *Node, message string) *Node {
	n := newUnary(backends.OpTypeDebug, x)
	n.name = message
	return n
}

// logValue surfaces a Debug node's buffer. Large buffers are summarized by
// their shape only.
func (n *Node) logValue(kind string, buffer backends.Buffer) {
	if buffer == nil {
		klog.Infof("debug %q %s: <none>", n.name, kind)
		return
	}
	const maxLoggedElements = 64
	if n.shape.Size() > maxLoggedElements {
		klog.Infof("debug %q %s: shape %s", n.name, kind, n.shape)
		return
	}
	flat, err := n.graph.backend.BufferFlat(buffer)
	if err != nil {
		klog.Infof("debug %q %s: shape %s (flat data unavailable: %v)", n.name, kind, n.shape, err)
		return
	}
	klog.Infof("debug %q %s: shape %s, value %v", n.name, kind, n.shape, flat)
}

// Lambda constructs a node whose forward and backward rules are supplied by
// the caller instead of drawn from the fixed kind set. The shape (and hence
// dtype) is fixed at construction like any other node, and the backward
// rule must return contributions for the engine to accumulate -- it must
// not write into gradient buffers itself. A nil backward makes the node
// gradient-opaque: its inputs receive zero gradient, like StopGradient.
func Lambda(inputs []*Node, shape shapes.Shape, forward ForwardFn, backward BackwardFn) *Node {
	g := sameGraph(inputs...)
	if !shape.Ok() {
		exceptions.Panicf("Lambda: invalid shape")
	}
	if forward == nil {
		exceptions.Panicf("Lambda: nil forward function")
	}
	n := g.newNode(backends.OpTypeLambda, shape.Clone(), inputs)
	n.forwardFn = forward
	n.backwardFn = backward
	return n
}

// Dropout multiplies x by the graph's cached inverted-dropout mask for
// (shape, rate): elements are zeroed with probability rate and the
// survivors scaled by 1/(1-rate). All Dropout calls of one iteration with
// the same shape and rate share one mask node; the mask is redrawn each
// generation. A rate of 0 returns x unchanged.
func Dropout(x *Node, rate float64) *Node {
	sameGraph(x)
	requireFloatDType("Dropout", x)
	if rate == 0 {
		return x
	}
	return Mul(x, x.graph.dropoutMask(x.shape, rate))
}
