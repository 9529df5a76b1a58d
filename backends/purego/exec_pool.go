package purego

import (
	"github.com/exprgraph/exprgraph/backends"
	"github.com/gomlx/gopjrt/dtypes"
)

func init() {
	kernels[backends.OpTypeMaxPool] = makePool(poolMax[float32], poolMax[float64])
	kernels[backends.OpTypeAvgPool] = makePool(poolAvg[float32], poolAvg[float64])
	kernels[backends.OpTypeMaxPoolGrad] = execMaxPoolGrad
	kernels[backends.OpTypeAvgPoolGrad] = execAvgPoolGrad
}

// poolConfig unpacks the op.Ints attribute of the pooling kinds:
// [windowH, windowW, padH, padW, strideH, strideW].
type poolConfig struct {
	windowH, windowW int
	padH, padW       int
	strideH, strideW int
}

func poolConfigFromOp(op *backends.Op) poolConfig {
	return poolConfig{
		windowH: op.Ints[0], windowW: op.Ints[1],
		padH: op.Ints[2], padW: op.Ints[3],
		strideH: op.Ints[4], strideW: op.Ints[5],
	}
}

// forEachWindow calls fn once per (image, output row, output col) with the
// clipped input coordinate range of the window. Padding only widens the
// nominal window; the reported range never leaves the input.
func forEachWindow(inDims []int, cfg poolConfig, outH, outW int, fn func(image, outIdx, rowStart, rowEnd, colStart, colEnd int)) {
	rank := len(inDims)
	inH, inW := inDims[rank-2], inDims[rank-1]
	images := 1
	for a := 0; a < rank-2; a++ {
		images *= inDims[a]
	}
	for image := 0; image < images; image++ {
		for outRow := 0; outRow < outH; outRow++ {
			rowStart := outRow*cfg.strideH - cfg.padH
			rowEnd := min(rowStart+cfg.windowH, inH)
			rowStart = max(rowStart, 0)
			for outCol := 0; outCol < outW; outCol++ {
				colStart := outCol*cfg.strideW - cfg.padW
				colEnd := min(colStart+cfg.windowW, inW)
				colStart = max(colStart, 0)
				fn(image, outRow*outW+outCol, rowStart, rowEnd, colStart, colEnd)
			}
		}
	}
}

func poolMax[T floaty](out, in []T, inDims []int, cfg poolConfig, outH, outW int) {
	rank := len(inDims)
	inH, inW := inDims[rank-2], inDims[rank-1]
	inSize, outSize := inH*inW, outH*outW
	forEachWindow(inDims, cfg, outH, outW, func(image, outIdx, rowStart, rowEnd, colStart, colEnd int) {
		base := image * inSize
		best := in[base+rowStart*inW+colStart]
		for row := rowStart; row < rowEnd; row++ {
			for col := colStart; col < colEnd; col++ {
				if v := in[base+row*inW+col]; v > best {
					best = v
				}
			}
		}
		out[image*outSize+outIdx] = best
	})
}

// poolAvg averages over the in-bounds part of each window only: padded
// positions neither contribute to the sum nor to the divisor.
func poolAvg[T floaty](out, in []T, inDims []int, cfg poolConfig, outH, outW int) {
	rank := len(inDims)
	inH, inW := inDims[rank-2], inDims[rank-1]
	inSize, outSize := inH*inW, outH*outW
	forEachWindow(inDims, cfg, outH, outW, func(image, outIdx, rowStart, rowEnd, colStart, colEnd int) {
		base := image * inSize
		var sum T
		for row := rowStart; row < rowEnd; row++ {
			for col := colStart; col < colEnd; col++ {
				sum += in[base+row*inW+col]
			}
		}
		count := (rowEnd - rowStart) * (colEnd - colStart)
		out[image*outSize+outIdx] = sum / T(count)
	})
}

func makePool(f32 func(out, in []float32, inDims []int, cfg poolConfig, outH, outW int), f64 func(out, in []float64, inDims []int, cfg poolConfig, outH, outW int)) kernelFn {
	return func(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
		input := inputs[0]
		cfg := poolConfigFromOp(op)
		rank := op.Shape.Rank()
		outH, outW := op.Shape.Dimensions[rank-2], op.Shape.Dimensions[rank-1]
		output := b.getBuffer(op.Shape)
		switch op.Shape.DType {
		case dtypes.Float32:
			f32(output.flat.([]float32), input.flat.([]float32), input.shape.Dimensions, cfg, outH, outW)
		case dtypes.Float64:
			f64(output.flat.([]float64), input.flat.([]float64), input.shape.Dimensions, cfg, outH, outW)
		default:
			b.bufferPools.put(output)
			return nil, errUnsupportedDType("pooling", op.Shape.DType)
		}
		return output, nil
	}
}

// maxPoolGradFlat routes each output gradient to the first position holding
// the window maximum, re-deriving the argmax from the forward input.
func maxPoolGradFlat[T floaty](out, in, grad []T, inDims []int, cfg poolConfig, outH, outW int) {
	rank := len(inDims)
	inH, inW := inDims[rank-2], inDims[rank-1]
	inSize, outSize := inH*inW, outH*outW
	forEachWindow(inDims, cfg, outH, outW, func(image, outIdx, rowStart, rowEnd, colStart, colEnd int) {
		base := image * inSize
		bestIdx := base + rowStart*inW + colStart
		for row := rowStart; row < rowEnd; row++ {
			for col := colStart; col < colEnd; col++ {
				if idx := base + row*inW + col; in[idx] > in[bestIdx] {
					bestIdx = idx
				}
			}
		}
		out[bestIdx] += grad[image*outSize+outIdx]
	})
}

// avgPoolGradFlat spreads each output gradient evenly over the in-bounds
// positions of its window.
func avgPoolGradFlat[T floaty](out, grad []T, inDims []int, cfg poolConfig, outH, outW int) {
	rank := len(inDims)
	inH, inW := inDims[rank-2], inDims[rank-1]
	inSize, outSize := inH*inW, outH*outW
	forEachWindow(inDims, cfg, outH, outW, func(image, outIdx, rowStart, rowEnd, colStart, colEnd int) {
		base := image * inSize
		count := (rowEnd - rowStart) * (colEnd - colStart)
		share := grad[image*outSize+outIdx] / T(count)
		for row := rowStart; row < rowEnd; row++ {
			for col := colStart; col < colEnd; col++ {
				out[base+row*inW+col] += share
			}
		}
	})
}

// execMaxPoolGrad takes [forward input, output gradient] and returns the
// input gradient (op.Shape is the input shape). Backward-only kind.
func execMaxPoolGrad(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	input, grad := inputs[0], inputs[1]
	cfg := poolConfigFromOp(op)
	gradRank := grad.shape.Rank()
	outH, outW := grad.shape.Dimensions[gradRank-2], grad.shape.Dimensions[gradRank-1]
	output := b.getZeroedBuffer(op.Shape)
	switch op.Shape.DType {
	case dtypes.Float32:
		maxPoolGradFlat(output.flat.([]float32), input.flat.([]float32), grad.flat.([]float32), input.shape.Dimensions, cfg, outH, outW)
	case dtypes.Float64:
		maxPoolGradFlat(output.flat.([]float64), input.flat.([]float64), grad.flat.([]float64), input.shape.Dimensions, cfg, outH, outW)
	default:
		b.bufferPools.put(output)
		return nil, errUnsupportedDType("MaxPoolGrad", op.Shape.DType)
	}
	return output, nil
}

// execAvgPoolGrad takes [output gradient] and returns the input gradient.
// Backward-only kind.
func execAvgPoolGrad(b *Backend, op *backends.Op, inputs []*Buffer) (*Buffer, error) {
	grad := inputs[0]
	cfg := poolConfigFromOp(op)
	gradRank := grad.shape.Rank()
	outH, outW := grad.shape.Dimensions[gradRank-2], grad.shape.Dimensions[gradRank-1]
	output := b.getZeroedBuffer(op.Shape)
	switch op.Shape.DType {
	case dtypes.Float32:
		avgPoolGradFlat(output.flat.([]float32), grad.flat.([]float32), op.Shape.Dimensions, cfg, outH, outW)
	case dtypes.Float64:
		avgPoolGradFlat(output.flat.([]float64), grad.flat.([]float64), op.Shape.Dimensions, cfg, outH, outW)
	default:
		b.bufferPools.put(output)
		return nil, errUnsupportedDType("AvgPoolGrad", op.Shape.DType)
	}
	return output, nil
}
