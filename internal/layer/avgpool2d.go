// Package layer provides neural network layer implementations.
package layer

import (
	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// AvgPool2D implements 2D average pooling.
// Padded positions count as zeros, so every window is divided by kernel².
type AvgPool2D struct {
	kernelSize int
	stride     int
	padding    int
}

// NewAvgPool2D creates a new 2D average pooling layer.
// kernelSize: size of pooling window (square)
// stride: stride for pooling (0 defaults to kernelSize)
// padding: zero padding size
func NewAvgPool2D(kernelSize, stride, padding int) *AvgPool2D {
	if stride == 0 {
		stride = kernelSize
	}
	return &AvgPool2D{kernelSize: kernelSize, stride: stride, padding: padding}
}

// Forward averages every channel of a [batch, channels, height, width] input.
func (a *AvgPool2D) Forward(x *tensor.Tensor) *tensor.Tensor {
	return pool2D("AvgPool2D", x, a.kernelSize, a.stride, a.padding, func(window []float64, area int) float64 {
		sum := 0.0
		for _, v := range window {
			sum += v
		}
		return sum / float64(area)
	})
}

// Params returns nil; pooling has no parameters.
func (a *AvgPool2D) Params() []*Param {
	return nil
}
