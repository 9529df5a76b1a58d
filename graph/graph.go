// Package graph implements a lazy computation graph over tensor expressions:
// operator factories append nodes to a Graph, Evaluate runs the forward pass
// over the dependency closure of a target, and Backward runs reverse-mode
// autodiff, accumulating gradients into every trainable leaf.
//
// The numeric work is delegated to a backends.Backend collaborator; the
// github.com/exprgraph/exprgraph/backends/purego package provides the
// reference implementation.
//
// Basic usage:
//
//	backend := backends.MustNew("")
//	g := graph.NewGraph(backend)
//	x := g.Parameter("x", shapes.Make(dtypes.Float32, 2, 3), initializers.Ones())
//	loss := graph.Sum(graph.Flatten(graph.Mul(x, x)), 0)
//	g.Evaluate(loss)
//	g.Backward(loss)
//	fmt.Println(backend.BufferFlat(x.Grad()))
//
// Graph building, Evaluate and Backward are single-goroutine per Graph.
// Shape, dtype, axis and sequencing violations panic (see the
// github.com/gomlx/exceptions package); backend resource failures are
// propagated as wrapped errors inside those panics.
package graph

import (
	"math/rand/v2"
	"os"
	"reflect"

	"github.com/exprgraph/exprgraph/backends"
	"github.com/exprgraph/exprgraph/initializers"
	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"k8s.io/klog/v2"
)

// BackendEnvVar overrides the backend selected by NewGraph when no explicit
// backend is given.
const BackendEnvVar = "EXPRGRAPH_BACKEND"

// Graph owns the node list of one computation: operator factories append to
// it in creation order, Evaluate and Backward traverse it. One Graph must
// only be mutated and evaluated from one goroutine at a time.
type Graph struct {
	backend backends.Backend
	nodes   []*Node

	// generation is the cache-validity epoch: forward buffers stamped with
	// an older generation are recomputed, never reused silently.
	generation int

	scalarCache  map[scalarCacheKey]*Node
	dropoutCache map[dropoutCacheKey]*Node
	rng          *rand.Rand

	finalized bool
}

type scalarCacheKey struct {
	dtype dtypes.DType
	value float64
}

type dropoutCacheKey struct {
	shape string
	rate  float64
}

// NewGraph creates an empty Graph on the given backend. A nil backend
// selects one from the BackendEnvVar environment variable, falling back to
// the registry default.
func NewGraph(backend backends.Backend) *Graph {
	if backend == nil {
		backend = backends.MustNew(os.Getenv(BackendEnvVar))
	}
	return &Graph{
		backend:      backend,
		generation:   1,
		scalarCache:  make(map[scalarCacheKey]*Node),
		dropoutCache: make(map[dropoutCacheKey]*Node),
		rng:          rand.New(rand.NewPCG(42, 0)),
	}
}

// Backend this graph runs on.
func (g *Graph) Backend() backends.Backend { return g.backend }

// NumNodes returns how many nodes the graph holds.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NodeById returns the node with the given creation-order id.
func (g *Graph) NodeById(id NodeId) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		exceptions.Panicf("NodeById: id %d out of range, graph has %d nodes", id, len(g.nodes))
	}
	return g.nodes[id]
}

// Generation returns the current cache-validity epoch.
func (g *Graph) Generation() int { return g.generation }

// NextGeneration starts a new forward/backward cycle: all forward buffers
// become stale (leaves keep their contents and are re-stamped lazily, except
// refreshing leaves like dropout masks, which are redrawn), and all gradient
// buffers are dropped.
func (g *Graph) NextGeneration() {
	g.assertUsable()
	g.generation++
	g.ZeroGrad()
}

// ZeroGrad releases every accumulated gradient buffer.
func (g *Graph) ZeroGrad() {
	g.assertUsable()
	for _, n := range g.nodes {
		if n.grad != nil {
			g.backend.ReleaseBuffer(n.grad)
			n.grad = nil
		}
	}
}

// Clear drops all nodes, caches and buffers. Outstanding expression handles
// into this graph become invalid: using them afterwards is a usage error.
func (g *Graph) Clear() {
	g.assertUsable()
	for _, n := range g.nodes {
		g.releaseNodeBuffers(n)
		n.graph = nil
	}
	g.nodes = g.nodes[:0]
	clear(g.scalarCache)
	clear(g.dropoutCache)
	g.generation++
}

// Finalize clears the graph and detaches it from the backend. The graph must
// not be used afterwards. The backend itself is not finalized: it may be
// shared by other graphs.
func (g *Graph) Finalize() {
	if g.finalized {
		return
	}
	g.Clear()
	g.finalized = true
	klog.V(1).Infof("graph: finalized (backend %s)", g.backend.Name())
}

func (g *Graph) releaseNodeBuffers(n *Node) {
	if n.value != nil {
		g.backend.ReleaseBuffer(n.value)
		n.value = nil
	}
	if n.grad != nil {
		g.backend.ReleaseBuffer(n.grad)
		n.grad = nil
	}
}

func (g *Graph) assertUsable() {
	if g == nil {
		exceptions.Panicf("the Graph is nil")
	}
	if g.finalized {
		exceptions.Panicf("the Graph was already finalized")
	}
}

// newNode appends a node to the graph. This is the single mutation point of
// graph building: every operator factory funnels through it.
func (g *Graph) newNode(opType backends.OpType, shape shapes.Shape, inputs []*Node) *Node {
	g.assertUsable()
	for _, input := range inputs {
		if input == nil {
			exceptions.Panicf("%s: given a nil input node", opType)
		}
		if input.graph != g {
			exceptions.Panicf("%s: input %s belongs to a different graph", opType, input)
		}
	}
	n := &Node{
		graph:  g,
		id:     NodeId(len(g.nodes)),
		opType: opType,
		inputs: inputs,
		shape:  shape,
	}
	g.nodes = append(g.nodes, n)
	for _, input := range inputs {
		input.consumers++
	}
	return n
}

// Constant creates an untrainable leaf node whose buffer is produced by the
// given initializer at its first evaluation.
func (g *Graph) Constant(shape shapes.Shape, init initializers.Initializer) *Node {
	if !shape.Ok() {
		exceptions.Panicf("Constant: invalid shape")
	}
	if init == nil {
		exceptions.Panicf("Constant: nil initializer")
	}
	n := g.newNode(backends.OpTypeConstant, shape, nil)
	n.initializer = init
	return n
}

// ConstantFromFlat creates a constant from a copy of the given flat slice
// (of one of the supported element types) and dimensions. With no dimensions
// and a 1-element slice it creates a scalar.
func (g *Graph) ConstantFromFlat(flat any, dimensions ...int) *Node {
	flatType := reflect.TypeOf(flat)
	if flatType == nil || flatType.Kind() != reflect.Slice {
		exceptions.Panicf("ConstantFromFlat: flat must be a slice, got %T", flat)
	}
	dtype := dtypes.FromGoType(flatType.Elem())
	if dtype == dtypes.InvalidDType {
		exceptions.Panicf("ConstantFromFlat: unsupported element type %s", flatType.Elem())
	}
	var shape shapes.Shape
	if len(dimensions) == 0 {
		shape = shapes.Scalar(dtype)
	} else {
		shape = shapes.Make(dtype, dimensions...)
	}
	// Copy now: the initializer only runs at the first evaluation, and by
	// then the caller may have reused the slice.
	flatValue := reflect.ValueOf(flat)
	clone := reflect.MakeSlice(flatType, flatValue.Len(), flatValue.Len())
	reflect.Copy(clone, flatValue)
	return g.Constant(shape, initializers.FromFlat(clone.Interface()))
}

// ConstantScalar returns the graph's cached scalar constant for the given
// (dtype, value) pair, creating it on first use. The scalar-overload sugar
// of the binary operators goes through here, so repeated scalar operands do
// not bloat the graph.
func (g *Graph) ConstantScalar(dtype dtypes.DType, value float64) *Node {
	key := scalarCacheKey{dtype: dtype, value: value}
	if n, found := g.scalarCache[key]; found {
		return n
	}
	n := g.Constant(shapes.Scalar(dtype), initializers.FromValue(value))
	g.scalarCache[key] = n
	return n
}

// Parameter creates a trainable leaf node. Its buffer is produced by the
// initializer at first evaluation and retained across generations; gradients
// accumulate into it during Backward.
func (g *Graph) Parameter(name string, shape shapes.Shape, init initializers.Initializer) *Node {
	n := g.Constant(shape, init)
	n.opType = backends.OpTypeParameter
	n.trainable = true
	n.name = name
	return n
}

// dropoutMask returns the graph's cached mask node for (shape, rate),
// creating it on first use. The mask is a refreshing leaf: it is redrawn
// once per generation, so all dropout applications of one iteration share
// the same mask node but successive iterations see fresh draws.
func (g *Graph) dropoutMask(shape shapes.Shape, rate float64) *Node {
	if rate < 0 || rate >= 1 {
		exceptions.Panicf("Dropout: rate must be in [0, 1), got %g", rate)
	}
	key := dropoutCacheKey{shape: shape.String(), rate: rate}
	if n, found := g.dropoutCache[key]; found {
		return n
	}
	n := g.Constant(shape, initializers.BernoulliScaled(rate, g.rng))
	n.refresh = true
	g.dropoutCache[key] = n
	return n
}

// sameGraph panics unless all nodes belong to the same graph, and returns it.
func sameGraph(nodes ...*Node) *Graph {
	if len(nodes) == 0 || nodes[0] == nil {
		exceptions.Panicf("operation requires at least one non-nil node")
	}
	g := nodes[0].graph
	for _, n := range nodes[1:] {
		if n == nil {
			exceptions.Panicf("operation given a nil node")
		}
		if n.graph != g {
			exceptions.Panicf("nodes %s and %s belong to different graphs", nodes[0], n)
		}
	}
	g.assertUsable()
	return g
}
