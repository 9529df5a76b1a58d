package graph

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Evaluate ensures every node the target transitively depends on has a valid
// forward buffer for the current generation, and returns the target's
// buffer. Nodes already evaluated in this generation are reused untouched,
// so evaluating the same target twice without graph mutation is free and
// bit-identical.
//
// Checkpointed nodes inside the closure are released as soon as their last
// consumer in the sweep has read them; Backward transparently recomputes
// them when needed.
func (g *Graph) Evaluate(target *Node) backends.Buffer {
	g.assertUsable()
	if target == nil {
		exceptions.Panicf("Evaluate: nil target")
	}
	if target.graph != g {
		exceptions.Panicf("Evaluate: %s belongs to a different graph", target)
	}
	if target.hasValue() {
		return target.value
	}

	needed := g.dependencyClosure(target)

	// Remaining in-sweep consumer count, bounding checkpoint release: a
	// buffer is never dropped while a not-yet-visited consumer needs it.
	remaining := make([]int, len(g.nodes))
	for id, isNeeded := range needed {
		if !isNeeded {
			continue
		}
		for _, input := range g.nodes[id].inputs {
			remaining[input.id]++
		}
	}

	for id, isNeeded := range needed {
		if !isNeeded {
			continue
		}
		n := g.nodes[id]
		if !n.hasValue() {
			g.computeNode(n)
		}
		for _, input := range n.inputs {
			remaining[input.id]--
			if remaining[input.id] == 0 && input.checkpoint && input != target {
				g.releaseValue(input)
			}
		}
	}
	return target.value
}

// dependencyClosure marks the ids the target transitively depends on,
// including the target itself. Inputs always have smaller ids than their
// consumers, so iterating the marks in id order is a valid topological
// order.
func (g *Graph) dependencyClosure(target *Node) []bool {
	needed := make([]bool, len(g.nodes))
	stack := []*Node{target}
	needed[target.id] = true
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, input := range n.inputs {
			if !needed[input.id] {
				needed[input.id] = true
				stack = append(stack, input)
			}
		}
	}
	return needed
}

// computeNode runs the forward rule of one node, whose inputs must already
// hold values. The buffer is published on the node only after the kernel
// fully completed, so a failed kernel leaves the node untouched.
func (g *Graph) computeNode(n *Node) {
	if n.IsLeaf() {
		g.computeLeaf(n)
		return
	}
	inputBuffers := make([]backends.Buffer, len(n.inputs))
	for ii, input := range n.inputs {
		if !input.hasValue() {
			exceptions.Panicf("computing %s: input %s has no value, evaluation order broken", n, input)
		}
		inputBuffers[ii] = input.value
	}
	var buffer backends.Buffer
	var err error
	if n.opType == backends.OpTypeLambda {
		buffer, err = n.forwardFn(g.backend, inputBuffers)
		if err == nil && !g.backend.BufferShape(buffer).Equal(n.shape) {
			err = errors.Errorf("Lambda forward returned shape %s, node declares %s", g.backend.BufferShape(buffer), n.shape)
		}
	} else {
		buffer, err = g.backend.Exec(n.backendOp(), inputBuffers)
	}
	if err != nil {
		panic(errors.WithMessagef(err, "evaluating %s", n))
	}
	g.publishValue(n, buffer)
	if n.opType == backends.OpTypeDebug {
		n.logValue("value", n.value)
	}
}

// computeLeaf materializes a constant or parameter buffer. Leaves keep their
// buffer across generations; only refreshing leaves (dropout masks) are
// redrawn when the generation moved on.
func (g *Graph) computeLeaf(n *Node) {
	if n.value != nil {
		if !n.refresh {
			// Contents persist; just stamp the new generation.
			n.valueGeneration = g.generation
			n.released = false
			return
		}
		g.backend.ReleaseBuffer(n.value)
		n.value = nil
	}
	buffer, err := n.initializer(g.backend, n.shape)
	if err != nil {
		panic(errors.WithMessagef(err, "initializing %s", n))
	}
	g.publishValue(n, buffer)
}

func (g *Graph) publishValue(n *Node, buffer backends.Buffer) {
	if n.value != nil {
		g.backend.ReleaseBuffer(n.value)
	}
	n.value = buffer
	n.valueGeneration = g.generation
	n.released = false
}
