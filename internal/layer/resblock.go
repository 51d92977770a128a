package layer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// ResBlock is two 3x3 MFM units with an identity skip connection.
type ResBlock struct {
	conv1 *MFM
	conv2 *MFM
}

// NewResBlock creates a residual block. The skip connection adds the block
// input to its output, so in and out must be equal.
func NewResBlock(in, out int) *ResBlock {
	if in != out {
		panic(fmt.Sprintf("ResBlock: in (%d) and out (%d) channels must match", in, out))
	}
	return &ResBlock{
		conv1: NewMFMConv(in, out, 3, 1, 1),
		conv2: NewMFMConv(in, out, 3, 1, 1),
	}
}

// Forward returns conv2(conv1(x)) + x.
func (r *ResBlock) Forward(x *tensor.Tensor) *tensor.Tensor {
	out := r.conv2.Forward(r.conv1.Forward(x))
	floats.Add(out.Data, x.Data)
	return out
}

// Params returns conv1.* then conv2.*.
func (r *ResBlock) Params() []*Param {
	return Collect(Named{"conv1", r.conv1}, Named{"conv2", r.conv2})
}
