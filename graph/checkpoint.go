package graph

import (
	"github.com/gomlx/exceptions"
)

// Checkpoint marks the node's forward buffer as eligible for early release:
// during Evaluate it is dropped as soon as its last consumer in the sweep
// has read it, and Backward transparently recomputes it on demand. This
// trades memory for recomputation and never changes numeric results.
//
// Checkpointing is opt-in per node; the default is to retain every buffer.
// Leaves cannot be checkpointed: their recomputation would re-run the
// initializer, which is not deterministic for random fills.
func Checkpoint(x *Node) *Node {
	sameGraph(x)
	if x.IsLeaf() {
		exceptions.Panicf("Checkpoint: %s is a leaf, only computed nodes can be checkpointed", x)
	}
	x.checkpoint = true
	return x
}

// releaseValue drops the node's forward buffer back to the backend, leaving
// the released mark so the backward pass knows recomputation is legitimate.
func (g *Graph) releaseValue(n *Node) {
	if n.value == nil {
		return
	}
	g.backend.ReleaseBuffer(n.value)
	n.value = nil
	n.released = true
}

// ensureValue makes the node's forward buffer available, recomputing the
// minimal released sub-graph if checkpointing dropped it. Recomputation is
// forward-only: it touches no gradient state and performs no further
// checkpoint releases, so re-running it cannot double-count anything.
//
// A missing value on a node that was never released is a sequencing bug
// (Backward without Evaluate, or handles that survived a Clear) and panics.
func (g *Graph) ensureValue(n *Node) {
	if n.hasValue() {
		return
	}
	if n.IsLeaf() {
		g.computeLeaf(n)
		return
	}
	if !n.released {
		exceptions.Panicf("%s has no forward value for the current generation and was not checkpoint-released; call Graph.Evaluate first", n)
	}
	for _, input := range n.inputs {
		g.ensureValue(input)
	}
	g.computeNode(n)
}
