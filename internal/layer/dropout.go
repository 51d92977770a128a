// Package layer provides neural network layer implementations.
package layer

import (
	"sync"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// Dropout implements dropout regularization.
// The mode is fixed at construction: a training-mode layer zeroes inputs
// with probability p and scales survivors by 1/(1-p); an inference-mode
// layer passes inputs through unchanged.
type Dropout struct {
	p        float64
	training bool

	mu  sync.Mutex
	rng *RNG
}

// NewDropout creates a new dropout layer.
// p is the probability of dropping a value; seed drives the mask generator.
func NewDropout(p float64, training bool, seed uint64) *Dropout {
	if p < 0 || p >= 1 {
		panic("Dropout: p must be in [0, 1)")
	}
	return &Dropout{p: p, training: training, rng: NewRNG(seed)}
}

// IsTraining returns whether the layer is in training mode.
func (d *Dropout) IsTraining() bool {
	return d.training
}

// P returns the drop probability.
func (d *Dropout) P() float64 {
	return d.p
}

// Forward applies the dropout mask in training mode and is the identity otherwise.
func (d *Dropout) Forward(x *tensor.Tensor) *tensor.Tensor {
	if !d.training || d.p == 0 {
		return x
	}

	out := tensor.New(x.Shape...)
	scale := 1.0 / (1.0 - d.p)

	d.mu.Lock()
	defer d.mu.Unlock()
	for i, v := range x.Data {
		if d.rng.RandFloat() >= d.p {
			out.Data[i] = v * scale
		}
	}
	return out
}

// Params returns nil.
func (d *Dropout) Params() []*Param {
	return nil
}
