// Package backends defines the interface between the graph engine and the
// collaborators that actually hold memory and run numeric kernels.
//
// The graph package only ever talks to a Backend: it requests buffers by
// shape (the storage collaborator), hands Op descriptions plus input buffers
// to Exec (the kernel collaborator), and accumulates gradient contributions
// through Accumulate. What a kernel does internally, and on which device, is
// the backend's business.
//
// Backends register themselves with Register (typically in an init function
// of their package) and are selected by name with New or MustNew.
package backends

import (
	"sort"
	"strings"

	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Buffer represents a backend-owned n-dimensional array. It is opaque to the
// graph engine: only the backend that created it knows its layout.
type Buffer any

// Op describes one operation instance handed to a kernel: its kind, the
// output shape pre-computed by the factory layer, and the static (non-graph)
// attributes. Which attributes are meaningful depends on the kind:
//
//   - Axis: reductions, Concatenate, Slice, Gather, TopKIndices, GatherGrad.
//   - K, Descending: TopKIndices.
//   - TransLhs, TransRhs: Dot, BatchedDot, Affine.
//   - Float: scalar multiplier for Dot/BatchedDot/Affine, clip bound for
//     Clip/ClipGradient, epsilon for Sqrt, pad value for Shift, alpha for
//     leaky variants of Relu.
//   - Ints: permutation for Transpose, [start, end] for Slice, per-axis
//     offsets for Shift, [height, width, padH, padW, strideH, strideW] for
//     the pooling kinds.
type Op struct {
	Type  OpType
	Shape shapes.Shape

	Axis       int
	K          int
	Descending bool
	TransLhs   bool
	TransRhs   bool
	Float      float64
	Ints       []int
}

// Backend is the combined storage and kernel collaborator of a Graph.
//
// All methods must be safe for sequential use from the goroutine driving a
// graph evaluation; Accumulate must additionally serialize concurrent calls
// targeting the same destination buffer, since independent sub-trees may
// legitimately add into one gradient concurrently.
type Backend interface {
	// Name of the backend, the same used to register and select it.
	Name() string

	// Description is a longer description of the backend, for the benefit of
	// logs and error messages.
	Description() string

	// NewBuffer allocates a buffer of exactly the requested shape, with all
	// elements zero. Allocation failure is returned as an error, never a
	// partial buffer.
	NewBuffer(shape shapes.Shape) (Buffer, error)

	// ReleaseBuffer returns a buffer to the backend for reuse. The caller
	// must drop every reference to it: the backend is free to hand the same
	// storage to a later NewBuffer call.
	ReleaseBuffer(buffer Buffer)

	// BufferShape returns the shape of the given buffer.
	BufferShape(buffer Buffer) shapes.Shape

	// BufferFromFlat creates a buffer of the given shape with contents copied
	// from flat, which must be a slice of the Go type matching shape.DType
	// with exactly shape.Size() elements.
	BufferFromFlat(flat any, shape shapes.Shape) (Buffer, error)

	// BufferFlat returns the flat data of the buffer as a slice of the Go
	// type matching its dtype. For CPU-resident backends this is a direct
	// view: writes through it are visible to subsequent kernel calls.
	BufferFlat(buffer Buffer) (any, error)

	// CloneBuffer returns a newly allocated buffer with the same shape and
	// contents.
	CloneBuffer(buffer Buffer) (Buffer, error)

	// Exec runs the kernel registered for (op.Type, input dtypes, device) and
	// returns a newly allocated output buffer of shape op.Shape. Inputs are
	// read-only and remain owned by the caller.
	Exec(op *Op, inputs []Buffer) (Buffer, error)

	// Accumulate adds delta into dst elementwise. Shapes and dtypes must
	// match exactly. This is the primitive backing gradient accumulation.
	Accumulate(dst, delta Buffer) error

	// Finalize releases all resources held by the backend. No buffer created
	// by it may be used afterwards.
	Finalize()
}

// Constructor builds a Backend from the config string that followed the
// backend name in the spec given to New (empty if none was given).
type Constructor func(config string) (Backend, error)

var registered = map[string]Constructor{}

// Register a backend constructor under the given name. Later registrations
// with the same name silently replace earlier ones.
func Register(name string, constructor Constructor) {
	registered[name] = constructor
}

// DefaultConfig is used by New when an empty spec is given. It can be
// overridden by the EXPRGRAPH_BACKEND environment variable, checked by the
// callers that choose to (see graph.NewGraph).
var DefaultConfig = "purego"

// New creates a Backend from a spec of the form "name" or "name:config".
// An empty spec selects DefaultConfig.
func New(spec string) (Backend, error) {
	if spec == "" {
		spec = DefaultConfig
	}
	name, config, _ := strings.Cut(spec, ":")
	constructor, found := registered[name]
	if !found {
		return nil, errors.Errorf("backend %q is not registered (registered: %s) -- missing import of its package?",
			name, strings.Join(registeredNames(), ", "))
	}
	backend, err := constructor(config)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to construct backend %q", name)
	}
	klog.V(1).Infof("backends.New: created backend %q (%s)", backend.Name(), backend.Description())
	return backend, nil
}

// MustNew is like New but panics on error.
func MustNew(spec string) Backend {
	backend, err := New(spec)
	if err != nil {
		panic(err)
	}
	return backend
}

func registeredNames() []string {
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
