package purego

import (
	"math"

	"github.com/exprgraph/exprgraph/backends"
	"github.com/gomlx/gopjrt/dtypes"
)

func init() {
	kernels[backends.OpTypeIdentity] = execIdentity
	kernels[backends.OpTypeStopGradient] = execIdentity
	kernels[backends.OpTypeClipGradient] = execIdentity
	kernels[backends.OpTypeDebug] = execIdentity

	kernels[backends.OpTypeNeg] = makeNumericUnary("Neg",
		func(x float64) float64 { return -x },
		func(x int64) int64 { return -x })
	kernels[backends.OpTypeAbs] = makeNumericUnary("Abs",
		math.Abs,
		func(x int64) int64 {
			if x < 0 {
				return -x
			}
			return x
		})
	kernels[backends.OpTypeSign] = makeNumericUnary("Sign",
		func(x float64) float64 {
			if x > 0 {
				return 1
			} else if x < 0 {
				return -1
			}
			return 0
		},
		func(x int64) int64 {
			if x > 0 {
				return 1
			} else if x < 0 {
				return -1
			}
			return 0
		})

	kernels[backends.OpTypeExp] = makeFloatUnary("Exp", func(_ *backends.Op) func(float64) float64 { return math.Exp })
	kernels[backends.OpTypeLog] = makeFloatUnary("Log", func(_ *backends.Op) func(float64) float64 { return math.Log })
	kernels[backends.OpTypeSin] = makeFloatUnary("Sin", func(_ *backends.Op) func(float64) float64 { return math.Sin })
	kernels[backends.OpTypeCos] = makeFloatUnary("Cos", func(_ *backends.Op) func(float64) float64 { return math.Cos })
	kernels[backends.OpTypeTan] = makeFloatUnary("Tan", func(_ *backends.Op) func(float64) float64 { return math.Tan })
	kernels[backends.OpTypeTanh] = makeFloatUnary("Tanh", func(_ *backends.Op) func(float64) float64 { return math.Tanh })
	kernels[backends.OpTypeSigmoid] = makeFloatUnary("Sigmoid", func(_ *backends.Op) func(float64) float64 {
		return func(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }
	})
	kernels[backends.OpTypeSqrt] = makeFloatUnary("Sqrt", func(op *backends.Op) func(float64) float64 {
		eps := op.Float
		return func(x float64) float64 { return math.Sqrt(x + eps) }
	})

	kernels[backends.OpTypeRelu] = makeNumericUnary("Relu",
		func(x float64) float64 { return math.Max(x, 0) },
		func(x int64) int64 {
			if x < 0 {
				return 0
			}
			return x
		})

	kernels[backends.OpTypeClip] = execClip
}

// execIdentity copies its single input. Identity-like kinds still allocate a
// fresh output so that every node owns its buffer and release bookkeeping
// stays uniform.
func execIdentity(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	output := b.getBuffer(op.Shape)
	copyFlat(output.flat, inputs[0].flat)
	return output, nil
}

func applyUnary[T numeric](out, in []T, fn func(T) T) {
	for ii, x := range in {
		out[ii] = fn(x)
	}
}

// makeFloatUnary builds a kernel for an elementwise function defined on
// floats only. The op-dependent closure lets kernels like Sqrt capture their
// static attribute once per call instead of once per element.
func makeFloatUnary(name string, build func(op *backends.Op) func(float64) float64) kernelFn {
	return func(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
		fn := build(op)
		output := b.getBuffer(op.Shape)
		switch op.Shape.DType {
		case dtypes.Float32:
			applyUnary(output.flat.([]float32), inputs[0].flat.([]float32),
				func(x float32) float32 { return float32(fn(float64(x))) })
		case dtypes.Float64:
			applyUnary(output.flat.([]float64), inputs[0].flat.([]float64), fn)
		default:
			b.bufferPools.put(output)
			return nil, errUnsupportedDType(name, op.Shape.DType)
		}
		return output, nil
	}
}

// makeNumericUnary builds a kernel for an elementwise function defined on
// floats and integers alike.
func makeNumericUnary(name string, floatFn func(float64) float64, intFn func(int64) int64) kernelFn {
	return func(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
		output := b.getBuffer(op.Shape)
		switch op.Shape.DType {
		case dtypes.Float32:
			applyUnary(output.flat.([]float32), inputs[0].flat.([]float32),
				func(x float32) float32 { return float32(floatFn(float64(x))) })
		case dtypes.Float64:
			applyUnary(output.flat.([]float64), inputs[0].flat.([]float64), floatFn)
		case dtypes.Int32:
			applyUnary(output.flat.([]int32), inputs[0].flat.([]int32),
				func(x int32) int32 { return int32(intFn(int64(x))) })
		case dtypes.Int64:
			applyUnary(output.flat.([]int64), inputs[0].flat.([]int64), intFn)
		default:
			b.bufferPools.put(output)
			return nil, errUnsupportedDType(name, op.Shape.DType)
		}
		return output, nil
	}
}

// execClip bounds every element to [-op.Float, +op.Float].
func execClip(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	bound := op.Float
	kernel := makeNumericUnary("Clip",
		func(x float64) float64 { return math.Min(math.Max(x, -bound), bound) },
		func(x int64) int64 {
			intBound := int64(bound)
			if x > intBound {
				return intBound
			}
			if x < -intBound {
				return -intBound
			}
			return x
		})
	return kernel(b, op, inputs)
}
