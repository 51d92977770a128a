package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// Luminance weights applied to the R, G and B channels.
const (
	LumaR = 0.299
	LumaG = 0.587
	LumaB = 0.114
)

// Grayscale collapses [batch, 3, H, W] RGB input to [batch, 1, H, W]
// luminance. It has no parameters.
type Grayscale struct{}

// NewGrayscale returns the grayscale conversion layer.
func NewGrayscale() *Grayscale {
	return &Grayscale{}
}

// Forward computes 0.299R + 0.587G + 0.114B per pixel.
func (Grayscale) Forward(x *tensor.Tensor) *tensor.Tensor {
	mustRank("Grayscale", x, 4)
	if x.Shape[1] != 3 {
		panic(fmt.Sprintf("Grayscale: expected 3 channels, got shape %v", x.Shape))
	}
	batch, h, w := x.Shape[0], x.Shape[2], x.Shape[3]
	plane := h * w
	out := tensor.New(batch, 1, h, w)
	for b := 0; b < batch; b++ {
		base := b * 3 * plane
		r := x.Data[base : base+plane]
		g := x.Data[base+plane : base+2*plane]
		bl := x.Data[base+2*plane : base+3*plane]
		dst := out.Data[b*plane : (b+1)*plane]
		for i := range dst {
			// G and B are summed first so that R=G=B=1 yields exactly 1.
			dst[i] = LumaR*r[i] + (LumaG*g[i] + LumaB*bl[i])
		}
	}
	return out
}

// Params returns nil.
func (Grayscale) Params() []*Param {
	return nil
}
