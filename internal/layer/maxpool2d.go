// Package layer provides neural network layer implementations.
package layer

import (
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// MaxPool2D implements 2D max pooling.
// Downsamples by taking the maximum over sliding windows; padded positions
// never win.
type MaxPool2D struct {
	kernelSize int
	stride     int
	padding    int
}

// NewMaxPool2D creates a new 2D max pooling layer.
// kernelSize: size of pooling window (square)
// stride: stride for pooling (0 defaults to kernelSize)
// padding: implicit -inf padding size
func NewMaxPool2D(kernelSize, stride, padding int) *MaxPool2D {
	if stride == 0 {
		stride = kernelSize
	}
	return &MaxPool2D{kernelSize: kernelSize, stride: stride, padding: padding}
}

// Forward pools every channel of a [batch, channels, height, width] input.
func (m *MaxPool2D) Forward(x *tensor.Tensor) *tensor.Tensor {
	return pool2D("MaxPool2D", x, m.kernelSize, m.stride, m.padding, func(window []float64, _ int) float64 {
		maxVal := math.Inf(-1)
		for _, v := range window {
			if v > maxVal {
				maxVal = v
			}
		}
		return maxVal
	})
}

// Params returns nil; pooling has no parameters.
func (m *MaxPool2D) Params() []*Param {
	return nil
}

// GetKernelSize returns the kernel size.
func (m *MaxPool2D) GetKernelSize() int {
	return m.kernelSize
}

// GetStride returns the stride.
func (m *MaxPool2D) GetStride() int {
	return m.stride
}

// GetPadding returns the padding.
func (m *MaxPool2D) GetPadding() int {
	return m.padding
}

// pool2D slides a kernel×kernel window over every channel and reduces the
// in-bounds values with reduce. reduce also receives the full window area
// (kernel*kernel), padding included.
func pool2D(name string, x *tensor.Tensor, kernelSize, stride, padding int, reduce func(window []float64, area int) float64) *tensor.Tensor {
	mustRank(name, x, 4)
	batch, channels, inH, inW := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	outH := (inH+2*padding-kernelSize)/stride + 1
	outW := (inW+2*padding-kernelSize)/stride + 1
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("%s: input %dx%d too small for kernel %d", name, inH, inW, kernelSize))
	}

	out := tensor.New(batch, channels, outH, outW)
	window := make([]float64, 0, kernelSize*kernelSize)
	area := kernelSize * kernelSize
	channelStride := inH * inW
	outputChannelStride := outH * outW

	for bc := 0; bc < batch*channels; bc++ {
		channelOffset := bc * channelStride
		outputOffset := bc * outputChannelStride
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				window = window[:0]
				for kh := 0; kh < kernelSize; kh++ {
					inRow := oh*stride + kh - padding
					if inRow < 0 || inRow >= inH {
						continue
					}
					for kw := 0; kw < kernelSize; kw++ {
						inCol := ow*stride + kw - padding
						if inCol >= 0 && inCol < inW {
							window = append(window, x.Data[channelOffset+inRow*inW+inCol])
						}
					}
				}
				out.Data[outputOffset+oh*outW+ow] = reduce(window, area)
			}
		}
	}
	return out
}
