package purego

import (
	"sync"

	"github.com/exprgraph/exprgraph/backends"
	"github.com/exprgraph/exprgraph/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"reflect"
)

// Buffer holds a shape and a flat Go slice of the matching element type.
//
// Buffers are pooled: after ReleaseBuffer the same storage may be handed to
// a later NewBuffer call of the same dtype and length, so stale references
// must not be kept.
type Buffer struct {
	shape shapes.Shape
	valid bool

	// flat is always a slice of the Go type matching shape.DType.
	flat any
}

// Shape of the buffer. Implements shapes.HasShape.
func (buf *Buffer) Shape() shapes.Shape { return buf.shape }

type bufferPoolKey struct {
	dtype  dtypes.DType
	length int
}

// bufferPools pools buffers by dtype and flat length.
type bufferPools struct {
	pools sync.Map // bufferPoolKey -> *sync.Pool
}

func (p *bufferPools) get(dtype dtypes.DType, length int) *Buffer {
	key := bufferPoolKey{dtype: dtype, length: length}
	poolI, ok := p.pools.Load(key)
	if !ok {
		poolI, _ = p.pools.LoadOrStore(key, &sync.Pool{
			New: func() any {
				return &Buffer{
					flat:  reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), length, length).Interface(),
					shape: shapes.Make(dtype, length),
				}
			},
		})
	}
	buf := poolI.(*sync.Pool).Get().(*Buffer)
	buf.valid = true
	return buf
}

func (p *bufferPools) put(buf *Buffer) {
	if buf == nil || !buf.shape.Ok() {
		return
	}
	buf.valid = false
	key := bufferPoolKey{dtype: buf.shape.DType, length: buf.shape.Size()}
	poolI, ok := p.pools.Load(key)
	if !ok {
		return
	}
	poolI.(*sync.Pool).Put(buf)
}

func (p *bufferPools) clear() {
	p.pools.Range(func(key, _ any) bool {
		p.pools.Delete(key)
		return true
	})
}

// getBuffer returns a pooled buffer with the given shape. Its contents are
// whatever the previous owner left; kernels that need zeros must clear it.
func (b *Backend) getBuffer(shape shapes.Shape) *Buffer {
	buf := b.bufferPools.get(shape.DType, shape.Size())
	buf.shape = shape.Clone()
	return buf
}

// getZeroedBuffer returns a pooled buffer with all elements zero.
func (b *Backend) getZeroedBuffer(shape shapes.Shape) *Buffer {
	buf := b.getBuffer(shape)
	zeroFlat(buf.flat)
	return buf
}

func zeroFlat(flat any) {
	v := reflect.ValueOf(flat)
	zero := reflect.Zero(v.Type().Elem())
	for ii := 0; ii < v.Len(); ii++ {
		v.Index(ii).Set(zero)
	}
}

// copyFlat assumes both flat slices have the same underlying type and length.
func copyFlat(flatDst, flatSrc any) {
	reflect.Copy(reflect.ValueOf(flatDst), reflect.ValueOf(flatSrc))
}

// NewBuffer implements backends.Backend: a zeroed buffer of the exact shape.
func (b *Backend) NewBuffer(shape shapes.Shape) (backends.Buffer, error) {
	if !shape.Ok() {
		return nil, errors.Errorf("cannot allocate a buffer for an invalid shape")
	}
	if shape.DType.GoType() == nil {
		return nil, errors.Errorf("backend %q does not support dtype %s", BackendName, shape.DType)
	}
	return b.getZeroedBuffer(shape), nil
}

// ReleaseBuffer implements backends.Backend: the buffer returns to the pool.
func (b *Backend) ReleaseBuffer(buffer backends.Buffer) {
	buf, ok := buffer.(*Buffer)
	if !ok || !buf.valid {
		return
	}
	b.bufferPools.put(buf)
}

// BufferShape implements backends.Backend.
func (b *Backend) BufferShape(buffer backends.Buffer) shapes.Shape {
	buf, ok := buffer.(*Buffer)
	if !ok {
		return shapes.Invalid()
	}
	return buf.shape
}

// BufferFromFlat implements backends.Backend.
func (b *Backend) BufferFromFlat(flat any, shape shapes.Shape) (backends.Buffer, error) {
	flatV := reflect.ValueOf(flat)
	if flatV.Kind() != reflect.Slice {
		return nil, errors.Errorf("BufferFromFlat requires a slice, got %T", flat)
	}
	if dtypes.FromGoType(flatV.Type().Elem()) != shape.DType {
		return nil, errors.Errorf("flat data type %s does not match shape dtype %s", flatV.Type().Elem(), shape.DType)
	}
	if flatV.Len() != shape.Size() {
		return nil, errors.Errorf("flat data has %d elements, shape %s requires %d", flatV.Len(), shape, shape.Size())
	}
	buf := b.getBuffer(shape)
	copyFlat(buf.flat, flat)
	return buf, nil
}

// BufferFlat implements backends.Backend: a direct view of the buffer
// storage. Writes through it are visible to later kernel calls.
func (b *Backend) BufferFlat(buffer backends.Buffer) (any, error) {
	buf, ok := buffer.(*Buffer)
	if !ok {
		return nil, errors.Errorf("buffer is not a %q backend buffer", BackendName)
	}
	if !buf.valid {
		return nil, errors.Errorf("buffer was already released")
	}
	return buf.flat, nil
}

// CloneBuffer implements backends.Backend.
func (b *Backend) CloneBuffer(buffer backends.Buffer) (backends.Buffer, error) {
	buf, ok := buffer.(*Buffer)
	if !ok {
		return nil, errors.Errorf("buffer is not a %q backend buffer", BackendName)
	}
	if !buf.valid {
		return nil, errors.Errorf("cannot clone a released buffer")
	}
	clone := b.getBuffer(buf.shape)
	copyFlat(clone.flat, buf.flat)
	return clone, nil
}

// Accumulate implements backends.Backend: dst += delta, elementwise.
// Concurrent calls on the same dst are serialized by accumulateMu.
func (b *Backend) Accumulate(dst, delta backends.Buffer) error {
	dstBuf, ok := dst.(*Buffer)
	if !ok {
		return errors.Errorf("dst is not a %q backend buffer", BackendName)
	}
	deltaBuf, ok := delta.(*Buffer)
	if !ok {
		return errors.Errorf("delta is not a %q backend buffer", BackendName)
	}
	if !dstBuf.shape.Equal(deltaBuf.shape) {
		return errors.Errorf("Accumulate requires matching shapes, got %s and %s", dstBuf.shape, deltaBuf.shape)
	}
	b.accumulateMu.Lock()
	defer b.accumulateMu.Unlock()
	switch dstBuf.shape.DType {
	case dtypes.Float32:
		accumulateFlat[float32](dstBuf, deltaBuf)
	case dtypes.Float64:
		accumulateFlat[float64](dstBuf, deltaBuf)
	case dtypes.Int32:
		accumulateFlat[int32](dstBuf, deltaBuf)
	case dtypes.Int64:
		accumulateFlat[int64](dstBuf, deltaBuf)
	case dtypes.Float16:
		dstFlat := dstBuf.flat.([]float16.Float16)
		deltaFlat := deltaBuf.flat.([]float16.Float16)
		for ii := range dstFlat {
			dstFlat[ii] = float16.Fromfloat32(dstFlat[ii].Float32() + deltaFlat[ii].Float32())
		}
	default:
		return errors.Errorf("Accumulate does not support dtype %s", dstBuf.shape.DType)
	}
	return nil
}

func accumulateFlat[T interface {
	float32 | float64 | int32 | int64
}](dst, delta *Buffer) {
	dstFlat := dst.flat.([]T)
	deltaFlat := delta.flat.([]T)
	for ii := range dstFlat {
		dstFlat[ii] += deltaFlat[ii]
	}
}
