package graph

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/exprgraph/exprgraph/types/xslices"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// vjpFn is the backward rule of one operator kind: given the node and its
// accumulated output gradient, it computes one numeric gradient contribution
// per input (nil entries mean zero). Contributions are accumulated into the
// input gradients by the driver; rules never write to gradient buffers
// themselves.
type vjpFn func(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer

var vjpTable [backends.OpTypeLast]vjpFn

func init() {
	t := &vjpTable
	t[backends.OpTypeIdentity] = vjpIdentity
	t[backends.OpTypeDebug] = vjpIdentity
	t[backends.OpTypeClipGradient] = vjpClipGradient
	t[backends.OpTypeLambda] = vjpLambda

	t[backends.OpTypeNeg] = vjpNeg
	t[backends.OpTypeAbs] = vjpAbs
	t[backends.OpTypeExp] = vjpExp
	t[backends.OpTypeLog] = vjpLog
	t[backends.OpTypeSin] = vjpSin
	t[backends.OpTypeCos] = vjpCos
	t[backends.OpTypeTan] = vjpTan
	t[backends.OpTypeTanh] = vjpTanh
	t[backends.OpTypeSigmoid] = vjpSigmoid
	t[backends.OpTypeRelu] = vjpRelu
	t[backends.OpTypeSqrt] = vjpSqrt
	t[backends.OpTypeClip] = vjpClip

	t[backends.OpTypeAdd] = vjpAdd
	t[backends.OpTypeSub] = vjpSub
	t[backends.OpTypeMul] = vjpMul
	t[backends.OpTypeDiv] = vjpDiv
	t[backends.OpTypeMaximum] = vjpMaximum
	t[backends.OpTypeMinimum] = vjpMinimum

	t[backends.OpTypeReduceSum] = vjpReduceSum
	t[backends.OpTypeReduceMean] = vjpReduceMean
	t[backends.OpTypeReduceMax] = vjpReduceMaxMin
	t[backends.OpTypeReduceMin] = vjpReduceMaxMin
	t[backends.OpTypeReduceProd] = vjpReduceProd

	t[backends.OpTypeReshape] = vjpReshape
	t[backends.OpTypeTranspose] = vjpTranspose
	t[backends.OpTypeConcatenate] = vjpConcatenate
	t[backends.OpTypeSlice] = vjpSlice
	t[backends.OpTypeShift] = vjpShift
	t[backends.OpTypeCast] = vjpCast

	t[backends.OpTypeDot] = vjpDot
	t[backends.OpTypeBatchedDot] = vjpDot
	t[backends.OpTypeAffine] = vjpAffine

	t[backends.OpTypeGather] = vjpGather
	t[backends.OpTypeMaxPool] = vjpMaxPool
	t[backends.OpTypeAvgPool] = vjpAvgPool
}

func vjpIdentity(_ *backwardContext, _ *Node, outGrad backends.Buffer) []backends.Buffer {
	return []backends.Buffer{outGrad}
}

// vjpClipGradient clamps the outgoing gradient to [-c, c]; the forward value
// passed through unchanged.
func vjpClipGradient(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	clipped := ctx.exec(&backends.Op{Type: backends.OpTypeClip, Shape: node.shape, Float: node.float}, outGrad)
	return []backends.Buffer{clipped}
}

func vjpLambda(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	inputBuffers := xslices.Map(node.inputs, func(input *Node) backends.Buffer { return input.value })
	contributions, err := node.backwardFn(ctx.g.backend, inputBuffers, node.value, outGrad)
	if err != nil {
		panic(errors.WithMessagef(err, "backward rule of %s", node))
	}
	if len(contributions) != len(node.inputs) {
		panic(errors.Errorf("backward rule of %s returned %d contributions for %d inputs", node, len(contributions), len(node.inputs)))
	}
	for _, contribution := range contributions {
		if contribution != nil {
			ctx.temps = append(ctx.temps, contribution)
		}
	}
	return contributions
}

func vjpNeg(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	return []backends.Buffer{ctx.unary(backends.OpTypeNeg, node.shape, outGrad)}
}

func vjpAbs(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	sign := ctx.unary(backends.OpTypeSign, node.shape, node.inputs[0].value)
	return []backends.Buffer{ctx.binary(backends.OpTypeMul, node.shape, outGrad, sign)}
}

// vjpExp uses the node's own forward value: d(exp(x)) = exp(x) dx.
func vjpExp(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	return []backends.Buffer{ctx.binary(backends.OpTypeMul, node.shape, outGrad, node.value)}
}

func vjpLog(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	return []backends.Buffer{ctx.binary(backends.OpTypeDiv, node.shape, outGrad, node.inputs[0].value)}
}

func vjpSin(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	cos := ctx.unary(backends.OpTypeCos, node.shape, node.inputs[0].value)
	return []backends.Buffer{ctx.binary(backends.OpTypeMul, node.shape, outGrad, cos)}
}

func vjpCos(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	sin := ctx.unary(backends.OpTypeSin, node.shape, node.inputs[0].value)
	product := ctx.binary(backends.OpTypeMul, node.shape, outGrad, sin)
	return []backends.Buffer{ctx.unary(backends.OpTypeNeg, node.shape, product)}
}

// vjpTan: d(tan(x)) = (1 + tan²(x)) dx, reusing the forward value.
func vjpTan(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	square := ctx.binary(backends.OpTypeMul, node.shape, node.value, node.value)
	onePlus := ctx.binary(backends.OpTypeAdd, node.shape, square, ctx.scalar(node.DType(), 1))
	return []backends.Buffer{ctx.binary(backends.OpTypeMul, node.shape, outGrad, onePlus)}
}

// vjpTanh: d(tanh(x)) = (1 - tanh²(x)) dx.
func vjpTanh(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	square := ctx.binary(backends.OpTypeMul, node.shape, node.value, node.value)
	oneMinus := ctx.binary(backends.OpTypeSub, node.shape, ctx.scalar(node.DType(), 1), square)
	return []backends.Buffer{ctx.binary(backends.OpTypeMul, node.shape, outGrad, oneMinus)}
}

// vjpSigmoid: d(σ(x)) = σ(x)(1-σ(x)) dx.
func vjpSigmoid(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	square := ctx.binary(backends.OpTypeMul, node.shape, node.value, node.value)
	deriv := ctx.binary(backends.OpTypeSub, node.shape, node.value, square)
	return []backends.Buffer{ctx.binary(backends.OpTypeMul, node.shape, outGrad, deriv)}
}

func vjpRelu(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	mask := ctx.binary(backends.OpTypeGreaterThan, node.shape, node.inputs[0].value, ctx.scalar(node.DType(), 0))
	return []backends.Buffer{ctx.binary(backends.OpTypeMul, node.shape, outGrad, mask)}
}

// vjpSqrt: forward is sqrt(x+eps), backward divides by 2*sqrt(x+eps), which
// is twice the forward value.
func vjpSqrt(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	doubled := ctx.mulScalar(node.shape, node.value, 2)
	return []backends.Buffer{ctx.binary(backends.OpTypeDiv, node.shape, outGrad, doubled)}
}

// vjpClip: gradient passes only where the forward value was not clamped.
func vjpClip(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	absolute := ctx.unary(backends.OpTypeAbs, node.shape, node.inputs[0].value)
	mask := ctx.binary(backends.OpTypeLessOrEqual, node.shape, absolute, ctx.scalar(node.DType(), node.float))
	return []backends.Buffer{ctx.binary(backends.OpTypeMul, node.shape, outGrad, mask)}
}

func vjpAdd(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	a, b := node.inputs[0], node.inputs[1]
	return []backends.Buffer{
		ctx.reduceToShape(outGrad, node.shape, a.shape),
		ctx.reduceToShape(outGrad, node.shape, b.shape),
	}
}

func vjpSub(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	a, b := node.inputs[0], node.inputs[1]
	negated := ctx.unary(backends.OpTypeNeg, node.shape, outGrad)
	return []backends.Buffer{
		ctx.reduceToShape(outGrad, node.shape, a.shape),
		ctx.reduceToShape(negated, node.shape, b.shape),
	}
}

func vjpMul(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	a, b := node.inputs[0], node.inputs[1]
	gradA := ctx.binary(backends.OpTypeMul, node.shape, outGrad, b.value)
	gradB := ctx.binary(backends.OpTypeMul, node.shape, outGrad, a.value)
	return []backends.Buffer{
		ctx.reduceToShape(gradA, node.shape, a.shape),
		ctx.reduceToShape(gradB, node.shape, b.shape),
	}
}

// vjpDiv: d(a/b) = da/b - (a/b)/b db, reusing the forward quotient.
func vjpDiv(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	a, b := node.inputs[0], node.inputs[1]
	gradA := ctx.binary(backends.OpTypeDiv, node.shape, outGrad, b.value)
	scaled := ctx.binary(backends.OpTypeMul, node.shape, outGrad, node.value)
	overB := ctx.binary(backends.OpTypeDiv, node.shape, scaled, b.value)
	gradB := ctx.unary(backends.OpTypeNeg, node.shape, overB)
	return []backends.Buffer{
		ctx.reduceToShape(gradA, node.shape, a.shape),
		ctx.reduceToShape(gradB, node.shape, b.shape),
	}
}

// vjpMaximum routes the gradient to the winning side; on ties the first
// operand wins, keeping the rule deterministic.
func vjpMaximum(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	return vjpMaxMinBinary(ctx, node, outGrad, backends.OpTypeGreaterOrEqual, backends.OpTypeLessThan)
}

func vjpMinimum(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	return vjpMaxMinBinary(ctx, node, outGrad, backends.OpTypeLessOrEqual, backends.OpTypeGreaterThan)
}

func vjpMaxMinBinary(ctx *backwardContext, node *Node, outGrad backends.Buffer, winA, winB backends.OpType) []backends.Buffer {
	a, b := node.inputs[0], node.inputs[1]
	maskA := ctx.binary(winA, node.shape, a.value, b.value)
	maskB := ctx.binary(winB, node.shape, a.value, b.value)
	gradA := ctx.binary(backends.OpTypeMul, node.shape, outGrad, maskA)
	gradB := ctx.binary(backends.OpTypeMul, node.shape, outGrad, maskB)
	return []backends.Buffer{
		ctx.reduceToShape(gradA, node.shape, a.shape),
		ctx.reduceToShape(gradB, node.shape, b.shape),
	}
}

// vjpReduceSum broadcasts the kept-axis gradient back over the collapsed
// axis.
func vjpReduceSum(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	input := node.inputs[0]
	return []backends.Buffer{ctx.broadcastTo(outGrad, node.shape, input.shape)}
}

// vjpReduceMean additionally divides by the collapsed axis length.
func vjpReduceMean(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	input := node.inputs[0]
	axisDim := input.shape.Dimensions[node.axis]
	scaled := ctx.binary(backends.OpTypeDiv, node.shape, outGrad, ctx.scalar(node.DType(), float64(axisDim)))
	return []backends.Buffer{ctx.broadcastTo(scaled, node.shape, input.shape)}
}

// vjpReduceMaxMin masks the broadcast gradient to the positions holding the
// extremum; ties share the gradient.
func vjpReduceMaxMin(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	input := node.inputs[0]
	mask := ctx.binary(backends.OpTypeEqual, input.shape, input.value, node.value)
	spread := ctx.broadcastTo(outGrad, node.shape, input.shape)
	return []backends.Buffer{ctx.binary(backends.OpTypeMul, input.shape, spread, mask)}
}

// vjpReduceProd: d(prod)/dx_i = prod / x_i; undefined where x_i is zero.
func vjpReduceProd(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	input := node.inputs[0]
	scaled := ctx.binary(backends.OpTypeMul, node.shape, outGrad, node.value)
	spread := ctx.broadcastTo(scaled, node.shape, input.shape)
	return []backends.Buffer{ctx.binary(backends.OpTypeDiv, input.shape, spread, input.value)}
}

func vjpReshape(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	input := node.inputs[0]
	return []backends.Buffer{ctx.exec(&backends.Op{Type: backends.OpTypeReshape, Shape: input.shape}, outGrad)}
}

// vjpTranspose applies the inverse permutation to the gradient.
func vjpTranspose(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	input := node.inputs[0]
	inverse := make([]int, len(node.ints))
	for axis, src := range node.ints {
		inverse[src] = axis
	}
	return []backends.Buffer{ctx.exec(&backends.Op{Type: backends.OpTypeTranspose, Shape: input.shape, Ints: inverse}, outGrad)}
}

// vjpConcatenate slices the gradient back into per-input segments along the
// concatenation axis.
func vjpConcatenate(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	contributions := make([]backends.Buffer, len(node.inputs))
	offset := 0
	for ii, input := range node.inputs {
		dim := input.shape.Dimensions[node.axis]
		contributions[ii] = ctx.exec(&backends.Op{
			Type:  backends.OpTypeSlice,
			Shape: input.shape,
			Axis:  node.axis,
			Ints:  []int{offset, offset + dim},
		}, outGrad)
		offset += dim
	}
	return contributions
}

// vjpSlice scatters the gradient block back to its original positions, the
// rest staying zero. The scatter-add kernel with consecutive indices does
// exactly that.
func vjpSlice(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	input := node.inputs[0]
	start, end := node.ints[0], node.ints[1]
	indices := ctx.iotaIndices(input.shape.Rank(), node.axis, start, end)
	return []backends.Buffer{ctx.exec(&backends.Op{
		Type:  backends.OpTypeGatherGrad,
		Shape: input.shape,
		Axis:  node.axis,
	}, outGrad, indices)}
}

func vjpShift(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	input := node.inputs[0]
	reversed := xslices.Map(node.ints, func(offset int) int { return -offset })
	return []backends.Buffer{ctx.exec(&backends.Op{
		Type:  backends.OpTypeShift,
		Shape: input.shape,
		Ints:  reversed,
	}, outGrad)}
}

func vjpCast(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	input := node.inputs[0]
	return []backends.Buffer{ctx.exec(&backends.Op{Type: backends.OpTypeCast, Shape: input.shape}, outGrad)}
}

// vjpDot covers Dot and BatchedDot: with out = s·A'B' (A', B' the
// possibly-transposed operands), dA = s·(g B'ᵀ) and dB = s·(A'ᵀ g), each
// folded back through the operand's transpose flag so no intermediate
// transposed copy is materialized.
func vjpDot(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	a, b := node.inputs[0], node.inputs[1]
	kind := node.opType
	if kind == backends.OpTypeAffine {
		kind = backends.OpTypeDot
	}
	scale := node.float

	var gradA backends.Buffer
	if !node.transLhs {
		gradA = ctx.exec(&backends.Op{Type: kind, Shape: a.shape, TransRhs: !node.transRhs, Float: scale}, outGrad, b.value)
	} else if !node.transRhs {
		gradA = ctx.exec(&backends.Op{Type: kind, Shape: a.shape, TransRhs: true, Float: scale}, b.value, outGrad)
	} else {
		gradA = ctx.exec(&backends.Op{Type: kind, Shape: a.shape, TransLhs: true, TransRhs: true, Float: scale}, b.value, outGrad)
	}

	var gradB backends.Buffer
	if !node.transRhs {
		gradB = ctx.exec(&backends.Op{Type: kind, Shape: b.shape, TransLhs: !node.transLhs, Float: scale}, a.value, outGrad)
	} else if !node.transLhs {
		gradB = ctx.exec(&backends.Op{Type: kind, Shape: b.shape, TransLhs: true, Float: scale}, outGrad, a.value)
	} else {
		gradB = ctx.exec(&backends.Op{Type: kind, Shape: b.shape, TransLhs: true, TransRhs: true, Float: scale}, outGrad, a.value)
	}
	return []backends.Buffer{gradA, gradB}
}

// vjpAffine is vjpDot plus the bias, which receives the gradient reduced
// over its broadcast axes. The scale does not apply to the bias.
func vjpAffine(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	bias := node.inputs[2]
	grads := vjpDot(ctx, node, outGrad)
	gradBias := ctx.reduceToShape(outGrad, node.shape, bias.shape)
	return append(grads, gradBias)
}

func vjpGather(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	input, indices := node.inputs[0], node.inputs[1]
	gradInput := ctx.exec(&backends.Op{
		Type:  backends.OpTypeGatherGrad,
		Shape: input.shape,
		Axis:  node.axis,
	}, outGrad, indices.value)
	return []backends.Buffer{gradInput, nil}
}

func vjpMaxPool(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	input := node.inputs[0]
	return []backends.Buffer{ctx.exec(&backends.Op{
		Type:  backends.OpTypeMaxPoolGrad,
		Shape: input.shape,
		Ints:  node.ints,
	}, input.value, outGrad)}
}

func vjpAvgPool(ctx *backwardContext, node *Node, outGrad backends.Buffer) []backends.Buffer {
	input := node.inputs[0]
	return []backends.Buffer{ctx.exec(&backends.Op{
		Type:  backends.OpTypeAvgPoolGrad,
		Shape: input.shape,
		Ints:  node.ints,
	}, outGrad)}
}

// iotaIndices builds an Int32 index buffer of the given rank with the run
// [start, end) along axis and size 1 everywhere else, the broadcastable form
// the gather kernels expect.
func (ctx *backwardContext) iotaIndices(rank, axis, start, end int) backends.Buffer {
	flat := make([]int32, end-start)
	for ii := range flat {
		flat[ii] = int32(start + ii)
	}
	dims := make([]int, rank)
	xslices.FillSlice(dims, 1)
	dims[axis] = end - start
	shape := shapes.Make(dtypes.Int32, dims...)
	buffer, err := ctx.g.backend.BufferFromFlat(flat, shape)
	if err != nil {
		panic(errors.WithMessage(err, "backward: creating index buffer"))
	}
	ctx.temps = append(ctx.temps, buffer)
	return buffer
}
