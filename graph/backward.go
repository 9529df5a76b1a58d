package graph

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/exprgraph/exprgraph/initializers"
	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Backward runs reverse-mode autodiff from the target, which must have been
// evaluated in the current generation and hold a single element (any shape
// of size 1). The target's gradient is seeded with 1 and propagated in
// strictly decreasing creation order; every node's contribution is *added*
// into its inputs' gradient buffers, so a node consumed by several
// expressions receives the sum over all consumers.
//
// Gradient buffers are only allocated on nodes through which gradient can
// reach something trainable; read them with Node.Grad after the call.
// Calling Backward before Evaluate panics: it never evaluates silently.
func (g *Graph) Backward(target *Node) {
	g.assertUsable()
	if target == nil {
		exceptions.Panicf("Backward: nil target")
	}
	if target.shape.Size() != 1 {
		exceptions.Panicf("Backward: target %s is not scalar-sized, use BackwardWithSeed with an explicit seed gradient", target)
	}
	seed, err := initializers.Ones()(g.backend, target.shape)
	if err != nil {
		panic(errors.WithMessagef(err, "Backward: allocating the seed gradient for %s", target))
	}
	defer g.backend.ReleaseBuffer(seed)
	g.BackwardWithSeed(target, seed)
}

// BackwardWithSeed is Backward with a caller-supplied seed gradient, for
// non-scalar targets. The seed shape must match the target shape exactly;
// the buffer remains owned by the caller.
func (g *Graph) BackwardWithSeed(target *Node, seed backends.Buffer) {
	g.assertUsable()
	if target == nil {
		exceptions.Panicf("BackwardWithSeed: nil target")
	}
	if target.graph != g {
		exceptions.Panicf("BackwardWithSeed: %s belongs to a different graph", target)
	}
	if target.valueGeneration != g.generation {
		exceptions.Panicf("BackwardWithSeed: %s was not evaluated in the current generation; call Graph.Evaluate first", target)
	}
	if seedShape := g.backend.BufferShape(seed); !seedShape.Equal(target.shape) {
		exceptions.Panicf("BackwardWithSeed: seed shape %s does not match target %s", seedShape, target)
	}

	needed := g.dependencyClosure(target)
	needs := g.needsGradMask(needed)

	g.ensureGrad(target)
	g.accumulate(target.grad, seed)

	for id := int(target.id); id >= 0; id-- {
		if !needed[id] {
			continue
		}
		n := g.nodes[id]
		if n.grad == nil || n.IsLeaf() {
			continue
		}
		if n.opType == backends.OpTypeDebug {
			n.logValue("gradient", n.grad)
		}
		anyNeeds := false
		for _, input := range n.inputs {
			if needs[input.id] {
				anyNeeds = true
				break
			}
		}
		if !anyNeeds {
			continue
		}
		rule := vjpTable[n.opType]
		if rule == nil {
			if zeroGradKinds[n.opType] {
				continue
			}
			exceptions.Panicf("Backward: no gradient rule for %s", n)
		}
		// The rule may need the forward values of the node and its inputs;
		// recompute whatever checkpointing released.
		g.ensureValue(n)
		for _, input := range n.inputs {
			g.ensureValue(input)
		}
		ctx := &backwardContext{g: g}
		contributions := rule(ctx, n, n.grad)
		for ii, contribution := range contributions {
			input := n.inputs[ii]
			if contribution == nil || !needs[input.id] {
				continue
			}
			g.ensureGrad(input)
			g.accumulate(input.grad, contribution)
		}
		ctx.releaseTemps()
		if n.checkpoint {
			g.releaseValue(n)
		}
	}
}

// needsGradMask marks the closure nodes through which gradient can flow to
// something trainable. Severing kinds (StopGradient, comparisons, integer
// index outputs, Lambda without a backward rule) block the flow regardless
// of what is upstream of them.
func (g *Graph) needsGradMask(needed []bool) []bool {
	needs := make([]bool, len(g.nodes))
	for id, isNeeded := range needed {
		if !isNeeded {
			continue
		}
		n := g.nodes[id]
		if n.trainable {
			needs[id] = true
			continue
		}
		if severingKinds[n.opType] || (n.opType == backends.OpTypeLambda && n.backwardFn == nil) {
			continue
		}
		for _, input := range n.inputs {
			if needs[input.id] {
				needs[id] = true
				break
			}
		}
	}
	return needs
}

// severingKinds never pass gradient to their inputs.
var severingKinds = map[backends.OpType]bool{
	backends.OpTypeStopGradient:   true,
	backends.OpTypeSign:           true,
	backends.OpTypeLessThan:       true,
	backends.OpTypeLessOrEqual:    true,
	backends.OpTypeGreaterThan:    true,
	backends.OpTypeGreaterOrEqual: true,
	backends.OpTypeEqual:          true,
	backends.OpTypeNotEqual:       true,
	backends.OpTypeTopKIndices:    true,
}

// zeroGradKinds have no vjp rule on purpose: their input gradients are zero
// by convention (not an error). Kinds outside this set without a rule are a
// programming error caught by Backward.
var zeroGradKinds = map[backends.OpType]bool{
	backends.OpTypeStopGradient:   true,
	backends.OpTypeSign:           true,
	backends.OpTypeLessThan:       true,
	backends.OpTypeLessOrEqual:    true,
	backends.OpTypeGreaterThan:    true,
	backends.OpTypeGreaterOrEqual: true,
	backends.OpTypeEqual:          true,
	backends.OpTypeNotEqual:       true,
	backends.OpTypeTopKIndices:    true,
	backends.OpTypeLambda:         true, // Only reached when backwardFn is nil.
}

// ensureGrad allocates a zeroed gradient buffer for the node if it has none.
func (g *Graph) ensureGrad(n *Node) {
	if n.grad != nil {
		return
	}
	buffer, err := g.backend.NewBuffer(n.shape)
	if err != nil {
		panic(errors.WithMessagef(err, "allocating gradient buffer for %s", n))
	}
	n.grad = buffer
}

func (g *Graph) accumulate(dst, delta backends.Buffer) {
	if err := g.backend.Accumulate(dst, delta); err != nil {
		panic(errors.WithMessage(err, "accumulating gradient"))
	}
}

// backwardContext tracks the temporary buffers one gradient rule creates, so
// the driver can return them to the backend after the contributions have
// been accumulated.
type backwardContext struct {
	g     *Graph
	temps []backends.Buffer
}

func (ctx *backwardContext) releaseTemps() {
	for _, buffer := range ctx.temps {
		ctx.g.backend.ReleaseBuffer(buffer)
	}
	ctx.temps = nil
}

// exec runs one backward kernel, panicking on failure and tracking the
// output as a temporary.
func (ctx *backwardContext) exec(op *backends.Op, inputs ...backends.Buffer) backends.Buffer {
	buffer, err := ctx.g.backend.Exec(op, inputs)
	if err != nil {
		panic(errors.WithMessagef(err, "backward kernel %s", op.Type))
	}
	ctx.temps = append(ctx.temps, buffer)
	return buffer
}

func (ctx *backwardContext) unary(opType backends.OpType, shape shapes.Shape, x backends.Buffer) backends.Buffer {
	return ctx.exec(&backends.Op{Type: opType, Shape: shape}, x)
}

func (ctx *backwardContext) binary(opType backends.OpType, shape shapes.Shape, a, b backends.Buffer) backends.Buffer {
	return ctx.exec(&backends.Op{Type: opType, Shape: shape}, a, b)
}

// scalar creates a rank-0 temporary holding the given value.
func (ctx *backwardContext) scalar(dtype dtypes.DType, value float64) backends.Buffer {
	var flat any
	switch dtype {
	case dtypes.Float32:
		flat = []float32{float32(value)}
	case dtypes.Float64:
		flat = []float64{value}
	case dtypes.Int32:
		flat = []int32{int32(value)}
	case dtypes.Int64:
		flat = []int64{int64(value)}
	case dtypes.Float16:
		flat = []float16.Float16{float16.Fromfloat32(float32(value))}
	default:
		exceptions.Panicf("backward: no scalar support for dtype %s", dtype)
	}
	buffer, err := ctx.g.backend.BufferFromFlat(flat, shapes.Scalar(dtype))
	if err != nil {
		panic(errors.WithMessage(err, "backward: creating scalar buffer"))
	}
	ctx.temps = append(ctx.temps, buffer)
	return buffer
}

// mulScalar multiplies a buffer of the given shape by a constant.
func (ctx *backwardContext) mulScalar(shape shapes.Shape, x backends.Buffer, value float64) backends.Buffer {
	return ctx.binary(backends.OpTypeMul, shape, x, ctx.scalar(shape.DType, value))
}

// broadcastTo expands a buffer to the given shape by adding it to zeros.
func (ctx *backwardContext) broadcastTo(x backends.Buffer, from, to shapes.Shape) backends.Buffer {
	if from.Equal(to) {
		return x
	}
	zeros, err := ctx.g.backend.NewBuffer(to)
	if err != nil {
		panic(errors.WithMessage(err, "backward: allocating broadcast buffer"))
	}
	ctx.temps = append(ctx.temps, zeros)
	return ctx.binary(backends.OpTypeAdd, to, x, zeros)
}

// reduceToShape sums a gradient computed on a broadcast shape back to the
// operand's original shape: broadcast axes are sum-reduced and the leading
// expansion axes are folded away by a final reshape.
func (ctx *backwardContext) reduceToShape(x backends.Buffer, from, to shapes.Shape) backends.Buffer {
	if from.Equal(to) {
		return x
	}
	current := x
	currentShape := from.Clone()
	diff := from.Rank() - to.Rank()
	for axis := 0; axis < currentShape.Rank(); axis++ {
		toDim := 1
		if axis >= diff {
			toDim = to.Dimensions[axis-diff]
		}
		if currentShape.Dimensions[axis] == toDim {
			continue
		}
		currentShape = currentShape.Clone()
		currentShape.Dimensions[axis] = 1
		current = ctx.exec(&backends.Op{Type: backends.OpTypeReduceSum, Shape: currentShape, Axis: axis}, current)
	}
	return ctx.exec(&backends.Op{Type: backends.OpTypeReshape, Shape: to}, current)
}
