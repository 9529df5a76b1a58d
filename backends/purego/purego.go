// Package purego implements the reference backends.Backend in pure Go.
//
// It keeps buffers in plain Go slices, pools them by (dtype, length) for
// reuse across graph generations, and dispatches kernels through a table
// indexed by backends.OpType, populated by the init functions of the
// exec_*.go files.
//
// Kernels support Float32, Float64, Int32 and Int64 operands. Float16
// (github.com/x448/float16) is supported for storage, constants and Cast
// conversions, but arithmetic on it must go through an explicit Cast.
package purego

import (
	"sync"

	"github.com/exprgraph/exprgraph/backends"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName to use in backends.New to select this backend.
const BackendName = "purego"

func init() {
	backends.Register(BackendName, func(config string) (backends.Backend, error) {
		if config != "" {
			return nil, errors.Errorf("backend %q takes no configuration, got %q", BackendName, config)
		}
		return New(), nil
	})
}

// Backend implements backends.Backend with pure Go kernels.
type Backend struct {
	bufferPools bufferPools

	// accumulateMu serializes Accumulate calls: gradient contributions from
	// independent sub-trees may target the same destination concurrently.
	accumulateMu sync.Mutex
}

// Compile-time check:
var _ backends.Backend = (*Backend)(nil)

// New creates a purego Backend.
func New() *Backend {
	return &Backend{}
}

// Name implements backends.Backend.
func (b *Backend) Name() string { return BackendName }

// Description implements backends.Backend.
func (b *Backend) Description() string {
	return "pure Go kernels, single device, pooled buffers"
}

// Finalize implements backends.Backend. Dropping the pools is all there is
// to release; the garbage collector does the rest.
func (b *Backend) Finalize() {
	b.bufferPools.clear()
	klog.V(1).Infof("purego: backend finalized")
}

// Exec implements backends.Backend: it dispatches to the kernel registered
// for the op kind.
func (b *Backend) Exec(op *backends.Op, inputs []backends.Buffer) (backends.Buffer, error) {
	kernel := kernels[op.Type]
	if kernel == nil {
		return nil, errors.Errorf("backend %q has no kernel for %s", BackendName, op.Type)
	}
	buffers := make([]*Buffer, len(inputs))
	for ii, input := range inputs {
		buffer, ok := input.(*Buffer)
		if !ok {
			return nil, errors.Errorf("input #%d to %s is not a %q backend buffer", ii, op.Type, BackendName)
		}
		if !buffer.valid {
			return nil, errors.Errorf("input #%d to %s was already released", ii, op.Type)
		}
		buffers[ii] = buffer
	}
	output, err := kernel(b, op, buffers)
	if err != nil {
		return nil, errors.WithMessagef(err, "backend %q failed to execute %s", BackendName, op.Type)
	}
	return output, nil
}

// kernelFn executes one op kind. The output buffer is allocated by the
// kernel with shape op.Shape; inputs are read-only.
type kernelFn func(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error)

// kernels is populated by init functions in the exec_*.go files. Kinds left
// nil are reported as unsupported by Exec.
var kernels [backends.OpTypeLast]kernelFn
