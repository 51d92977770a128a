package layer

import "github.com/FlavioCFOliveira/LightCNN/internal/tensor"

// Group is a 1x1 bottleneck MFM that keeps the channel count, followed by a
// spatial MFM that projects to the next stage's width.
type Group struct {
	convA *MFM
	conv  *MFM
}

// NewGroup creates a group block mapping in channels to out channels.
func NewGroup(in, out, kernelSize, stride, padding int) *Group {
	return &Group{
		convA: NewMFMConv(in, in, 1, 1, 0),
		conv:  NewMFMConv(in, out, kernelSize, stride, padding),
	}
}

// Forward runs conv_a then conv.
func (g *Group) Forward(x *tensor.Tensor) *tensor.Tensor {
	return g.conv.Forward(g.convA.Forward(x))
}

// Params returns conv_a.* then conv.*.
func (g *Group) Params() []*Param {
	return Collect(Named{"conv_a", g.convA}, Named{"conv", g.conv})
}
