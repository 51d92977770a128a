package layer

import (
	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// MaxAvgPool downsamples with the elementwise sum of max pooling and average
// pooling over the same window, keeping both the peak and the mean response.
type MaxAvgPool struct {
	max *MaxPool2D
	avg *AvgPool2D
}

// NewMaxAvgPool creates a combined pool with the given square window and
// matching stride.
func NewMaxAvgPool(kernelSize int) *MaxAvgPool {
	return &MaxAvgPool{
		max: NewMaxPool2D(kernelSize, kernelSize, 0),
		avg: NewAvgPool2D(kernelSize, kernelSize, 0),
	}
}

// Forward returns maxpool(x) + avgpool(x).
func (p *MaxAvgPool) Forward(x *tensor.Tensor) *tensor.Tensor {
	out := p.max.Forward(x)
	floats.Add(out.Data, p.avg.Forward(x).Data)
	return out
}

// Params returns nil.
func (p *MaxAvgPool) Params() []*Param {
	return nil
}
