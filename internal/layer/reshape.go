// Package layer provides neural network layer implementations.
package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// Flatten reshapes [batch, d1, d2, ...] to [batch, d1*d2*...].
// This is useful for connecting convolutional layers to dense layers.
type Flatten struct{}

// NewFlatten creates a new flatten layer.
func NewFlatten() *Flatten {
	return &Flatten{}
}

// Forward returns a view of x with the trailing dimensions merged.
func (Flatten) Forward(x *tensor.Tensor) *tensor.Tensor {
	if len(x.Shape) < 2 {
		panic(fmt.Sprintf("Flatten: expected batched input, got shape %v", x.Shape))
	}
	return x.Reshape(x.Shape[0], tensor.Numel(x.Shape[1:]))
}

// Params returns nil.
func (Flatten) Params() []*Param {
	return nil
}
