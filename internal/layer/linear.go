package layer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// Linear is a fully connected layer computing x·Wᵀ + b over a batch.
// Weights are stored row-major as [out, in], the layout checkpoints use.
type Linear struct {
	weights []float64
	biases  []float64
	inSize  int
	outSize int
}

// NewLinear creates a fully connected layer with zeroed parameters.
// When bias is false the layer has no bias parameter at all.
func NewLinear(in, out int, bias bool) *Linear {
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("Linear: invalid size in=%d out=%d", in, out))
	}
	l := &Linear{
		weights: make([]float64, out*in),
		inSize:  in,
		outSize: out,
	}
	if bias {
		l.biases = make([]float64, out)
	}
	return l
}

// Forward accepts [batch, ...] where the trailing dimensions hold InSize
// values and returns [batch, OutSize].
func (l *Linear) Forward(x *tensor.Tensor) *tensor.Tensor {
	if len(x.Shape) < 2 {
		panic(fmt.Sprintf("Linear: expected batched input, got shape %v", x.Shape))
	}
	batch := x.Shape[0]
	if features := tensor.Numel(x.Shape[1:]); features != l.inSize {
		panic(fmt.Sprintf("Linear: input has %d features, layer expects %d", features, l.inSize))
	}

	out := tensor.New(batch, l.outSize)
	in := mat.NewDense(batch, l.inSize, x.Data)
	w := mat.NewDense(l.outSize, l.inSize, l.weights)
	res := mat.NewDense(batch, l.outSize, out.Data)
	res.Mul(in, w.T())

	if l.biases != nil {
		for b := 0; b < batch; b++ {
			row := out.Data[b*l.outSize : (b+1)*l.outSize]
			for o, bias := range l.biases {
				row[o] += bias
			}
		}
	}
	return out
}

// Params returns the weight view and, when present, the bias view.
func (l *Linear) Params() []*Param {
	params := []*Param{newParam("weight", l.weights, l.outSize, l.inSize)}
	if l.biases != nil {
		params = append(params, newParam("bias", l.biases, l.outSize))
	}
	return params
}

// SetWeight sets a single weight at (row, col).
func (l *Linear) SetWeight(row, col int, val float64) {
	l.weights[row*l.inSize+col] = val
}

// SetBias sets a single bias. It panics on a bias-free layer.
func (l *Linear) SetBias(idx int, val float64) {
	l.biases[idx] = val
}

// HasBias reports whether the layer adds a bias.
func (l *Linear) HasBias() bool {
	return l.biases != nil
}

// InSize returns the input size of the layer.
func (l *Linear) InSize() int {
	return l.inSize
}

// OutSize returns the output size of the layer.
func (l *Linear) OutSize() int {
	return l.outSize
}
