package graph

import (
	"fmt"

	"github.com/exprgraph/exprgraph/backends"
	"github.com/exprgraph/exprgraph/initializers"
	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// NodeId is a unique identifier of a Node within a Graph. Ids are assigned
// in creation order, which is also the only valid forward evaluation order:
// a node's inputs always have strictly smaller ids.
type NodeId int

// InvalidNodeId is returned by methods on nil or detached nodes.
const InvalidNodeId = NodeId(-1)

// Expr is the expression handle returned by every operator factory. It is a
// plain node pointer: Go's garbage collector provides the shared ownership
// that handles require, and pointer equality is expression identity, so a
// node consumed by several downstream expressions appears once in the graph.
type Expr = *Node

// Expr2 pairs the two co-dependent handles returned by multi-output
// operators like TopK: the selected values and their positions. Each element
// is an ordinary graph node and an independent consumer for traversal
// purposes.
type Expr2 struct {
	Values  *Node
	Indices *Node
}

// ForwardFn is the custom forward rule of a Lambda node: it receives the
// already-evaluated input buffers and must return a newly allocated buffer
// of the node's declared shape.
type ForwardFn func(backend backends.Backend, inputs []backends.Buffer) (backends.Buffer, error)

// BackwardFn is the custom backward rule of a Lambda node: given the input
// buffers, the node's forward value and its accumulated output gradient, it
// returns one gradient contribution per input (nil entries mean zero). The
// engine adds the contributions into the input gradients; the rule must
// never write to them directly.
type BackwardFn func(backend backends.Backend, inputs []backends.Buffer, value, outputGrad backends.Buffer) ([]backends.Buffer, error)

// Node is one vertex of the computation graph: an operator instance with its
// input handles, its shape (fixed at construction) and, once evaluated, its
// forward value and accumulated gradient buffers.
//
// Nodes are created by the operator factories, never directly.
type Node struct {
	graph  *Graph
	id     NodeId
	opType backends.OpType
	inputs []*Node
	shape  shapes.Shape

	// Static attributes forwarded to the backend Op. Which ones are
	// meaningful depends on opType; see backends.Op.
	axis               int
	k                  int
	descending         bool
	transLhs, transRhs bool
	float              float64
	ints               []int

	trainable  bool
	checkpoint bool

	// consumers counts how many nodes take this one as input, over the whole
	// graph. The checkpoint controller uses it to bound early release.
	consumers int

	// value is the forward buffer, valid when valueGeneration matches the
	// graph's current generation and released is false.
	value           backends.Buffer
	valueGeneration int
	released        bool

	// refresh marks leaves whose initializer must run again every
	// generation (dropout masks).
	refresh bool

	// grad accumulates gradient contributions during Backward.
	grad backends.Buffer

	initializer initializers.Initializer // Leaves only.
	name        string                   // Parameter name or Debug message.

	forwardFn  ForwardFn  // Lambda only.
	backwardFn BackwardFn // Lambda only; nil severs the gradient.
}

// Graph that owns this node.
func (n *Node) Graph() *Graph { return n.graph }

// Id of the node within its graph, assigned in creation order.
func (n *Node) Id() NodeId {
	if n == nil {
		return InvalidNodeId
	}
	return n.id
}

// Type returns the operator kind of the node.
func (n *Node) Type() backends.OpType { return n.opType }

// Shape of the node's value, computed at construction and immutable.
func (n *Node) Shape() shapes.Shape { return n.shape }

// DType of the node's value.
func (n *Node) DType() dtypes.DType { return n.shape.DType }

// Rank of the node's value.
func (n *Node) Rank() int { return n.shape.Rank() }

// Inputs of the node. The returned slice must not be modified.
func (n *Node) Inputs() []*Node { return n.inputs }

// IsLeaf reports whether the node has no inputs (constants and parameters).
func (n *Node) IsLeaf() bool { return len(n.inputs) == 0 }

// Trainable reports whether gradients are requested for this node.
func (n *Node) Trainable() bool { return n.trainable }

// SetTrainable marks a leaf node as (not) receiving gradients. Only leaves
// can be trainable; it panics for interior nodes.
func (n *Node) SetTrainable(trainable bool) *Node {
	if !n.IsLeaf() {
		exceptions.Panicf("SetTrainable: %s is not a leaf node, only constants and parameters can be trainable", n)
	}
	n.trainable = trainable
	return n
}

// IsCheckpointed reports whether the node's forward buffer may be released
// early and recomputed on demand.
func (n *Node) IsCheckpointed() bool { return n.checkpoint }

// Name returns the parameter name or debug message, if any.
func (n *Node) Name() string { return n.name }

// Value returns the forward buffer of the node. It panics if the node was
// not evaluated in the current graph generation; call Graph.Evaluate first.
func (n *Node) Value() backends.Buffer {
	if !n.hasValue() {
		exceptions.Panicf("Value: %s has no forward value for the current generation, call Graph.Evaluate first", n)
	}
	return n.value
}

// Grad returns the accumulated gradient buffer of the node, or nil if no
// gradient reached it (not on a trainable path, or Backward not called).
func (n *Node) Grad() backends.Buffer { return n.grad }

// hasValue reports whether the forward buffer is usable as-is.
func (n *Node) hasValue() bool {
	return n.value != nil && !n.released && n.valueGeneration == n.graph.generation
}

// String implements fmt.Stringer with the node id, kind and shape, for error
// messages and logs.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	if n.name != "" {
		return fmt.Sprintf("Node(#%d %s %q %s)", n.id, n.opType, n.name, n.shape)
	}
	return fmt.Sprintf("Node(#%d %s %s)", n.id, n.opType, n.shape)
}

// backendOp assembles the backends.Op describing this node's kernel call.
func (n *Node) backendOp() *backends.Op {
	return &backends.Op{
		Type:       n.opType,
		Shape:      n.shape,
		Axis:       n.axis,
		K:          n.k,
		Descending: n.descending,
		TransLhs:   n.transLhs,
		TransRhs:   n.transRhs,
		Float:      n.float,
		Ints:       n.ints,
	}
}
