package graph

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/gomlx/exceptions"
)

// Activation functions. Sigmoid, Tanh and Relu are kernel kinds; the rest
// are compositions over them.

// Sigmoid returns 1/(1+e^-x).
func Sigmoid(x *Node) *Node { return newFloatUnary(backends.OpTypeSigmoid, x) }

// Tanh returns the hyperbolic tangent of x.
func Tanh(x *Node) *Node { return newFloatUnary(backends.OpTypeTanh, x) }

// Relu returns max(x, 0). Works on integers too.
func Relu(x *Node) *Node { return newUnary(backends.OpTypeRelu, x) }

// LeakyRelu returns x where positive and alpha*x where negative.
func LeakyRelu(x *Node, alpha float64) *Node {
	requireFloatDType("LeakyRelu", x)
	if alpha < 0 || alpha >= 1 {
		exceptions.Panicf("LeakyRelu(%s): alpha must be in [0, 1), got %g", x, alpha)
	}
	return Add(Relu(x), MulScalar(MinimumScalar(x, 0), alpha))
}

// Prelu is LeakyRelu with a learnable slope expression for the negative
// part; the slope broadcasts against x.
func Prelu(x, slope *Node) *Node {
	requireFloatDType("Prelu", x)
	return Add(Relu(x), Mul(slope, MinimumScalar(x, 0)))
}

// Swish returns x*sigmoid(beta*x).
func Swish(x *Node, beta float64) *Node {
	requireFloatDType("Swish", x)
	return Mul(x, Sigmoid(MulScalar(x, beta)))
}

// Gelu approximates the Gaussian error linear unit as x*sigmoid(1.702*x),
// the sigmoid form of the approximation.
func Gelu(x *Node) *Node {
	return Swish(x, 1.702)
}
