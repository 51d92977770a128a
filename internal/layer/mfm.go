package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// MFM is a max-feature-map unit. Its filter projects to twice the nominal
// output width; the two halves along axis 1 compete elementwise and the
// larger value survives. It replaces a pointwise activation.
type MFM struct {
	filter      Layer
	outChannels int
}

// NewMFMConv builds an MFM whose filter is a Conv2D producing 2*out channels.
func NewMFMConv(in, out, kernelSize, stride, padding int) *MFM {
	return &MFM{
		filter:      NewConv2D(in, 2*out, kernelSize, stride, padding),
		outChannels: out,
	}
}

// NewMFMLinear builds an MFM whose filter is a Linear layer producing 2*out features.
func NewMFMLinear(in, out int) *MFM {
	return &MFM{
		filter:      NewLinear(in, 2*out, true),
		outChannels: out,
	}
}

// Forward projects x and returns max(first half, second half).
func (m *MFM) Forward(x *tensor.Tensor) *tensor.Tensor {
	return MaxHalves(m.filter.Forward(x))
}

// Filter returns the projection layer.
func (m *MFM) Filter() Layer {
	return m.filter
}

// OutChannels returns the nominal output width.
func (m *MFM) OutChannels() int {
	return m.outChannels
}

// Params returns the filter parameters under "filter".
func (m *MFM) Params() []*Param {
	return Prefix("filter", m.filter.Params())
}

// MaxHalves splits y along axis 1 into two equal halves and returns their
// elementwise maximum. The result has half of y's axis-1 size.
func MaxHalves(y *tensor.Tensor) *tensor.Tensor {
	if len(y.Shape) < 2 || y.Shape[1]%2 != 0 {
		panic(fmt.Sprintf("MFM: cannot split shape %v into two halves along axis 1", y.Shape))
	}
	shape := append([]int(nil), y.Shape...)
	shape[1] /= 2
	out := tensor.New(shape...)

	half := tensor.Numel(shape[1:])
	for b := 0; b < shape[0]; b++ {
		first := y.Data[2*b*half : (2*b+1)*half]
		second := y.Data[(2*b+1)*half : (2*b+2)*half]
		dst := out.Data[b*half : (b+1)*half]
		for i, v := range first {
			if second[i] > v {
				v = second[i]
			}
			dst[i] = v
		}
	}
	return out
}
