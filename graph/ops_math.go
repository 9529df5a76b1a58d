package graph

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/gomlx/exceptions"
)

// Transcendental operators; all require a float dtype.

// Exp returns e^x.
func Exp(x *Node) *Node { return newFloatUnary(backends.OpTypeExp, x) }

// Log returns the natural logarithm of x.
func Log(x *Node) *Node { return newFloatUnary(backends.OpTypeLog, x) }

// Sin returns sin(x).
func Sin(x *Node) *Node { return newFloatUnary(backends.OpTypeSin, x) }

// Cos returns cos(x).
func Cos(x *Node) *Node { return newFloatUnary(backends.OpTypeCos, x) }

// Tan returns tan(x).
func Tan(x *Node) *Node { return newFloatUnary(backends.OpTypeTan, x) }

// Sqrt returns sqrt(x+eps). The epsilon is added before the root so that a
// zero input stays inside the domain, and the backward rule divides by
// 2*sqrt(x+eps) consistently.
func Sqrt(x *Node, eps float64) *Node {
	if eps < 0 {
		exceptions.Panicf("Sqrt(%s): eps must be >= 0, got %g", x, eps)
	}
	n := newFloatUnary(backends.OpTypeSqrt, x)
	n.float = eps
	return n
}

// Clip clamps the forward value to [-bound, bound]. Gradient passes only
// where the value was not clamped. Compare ClipGradient, which leaves the
// forward value alone.
func Clip(x *Node, bound float64) *Node {
	if bound <= 0 {
		exceptions.Panicf("Clip(%s): bound must be > 0, got %g", x, bound)
	}
	n := newUnary(backends.OpTypeClip, x)
	n.float = bound
	return n
}

// ClipGradient passes the forward value through unchanged and clamps the
// backward gradient to [-bound, bound].
func ClipGradient(x *Node, bound float64) *Node {
	if bound <= 0 {
		exceptions.Panicf("ClipGradient(%s): bound must be > 0, got %g", x, bound)
	}
	n := newUnary(backends.OpTypeClipGradient, x)
	n.float = bound
	return n
}

// LogAddExp returns log(e^a + e^b) elementwise, computed in the
// overflow-safe form max(a,b) + log(e^(a-max) + e^(b-max)).
func LogAddExp(a, b *Node) *Node {
	requireFloatDType("LogAddExp", a)
	requireFloatDType("LogAddExp", b)
	m := Maximum(a, b)
	return Add(m, Log(Add(Exp(Sub(a, m)), Exp(Sub(b, m)))))
}
