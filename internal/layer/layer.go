// Package layer provides neural network layer implementations.
package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// Layer is a neural network layer.
//
// Forward never mutates its input and keeps no per-call state, so a layer
// with fixed parameters may be shared between goroutines. Shape mismatches
// are programming errors and panic.
type Layer interface {
	Forward(x *tensor.Tensor) *tensor.Tensor
	Params() []*Param
}

// Param is a named view into a layer's weight storage.
// Data aliases the layer's own slice: writing it updates the layer.
type Param struct {
	Name  string
	Shape []int
	Data  []float64
}

func newParam(name string, data []float64, shape ...int) *Param {
	if tensor.Numel(shape) != len(data) {
		panic(fmt.Sprintf("Param %s: shape %v does not cover %d values", name, shape, len(data)))
	}
	return &Param{Name: name, Shape: append([]int(nil), shape...), Data: data}
}

// Set copies values into the parameter after checking the shape.
func (p *Param) Set(shape []int, values []float64) error {
	if !tensor.SameShape(p.Shape, shape) {
		return fmt.Errorf("%s: shape %v, want %v", p.Name, shape, p.Shape)
	}
	if len(values) != len(p.Data) {
		return fmt.Errorf("%s: %d values, want %d", p.Name, len(values), len(p.Data))
	}
	copy(p.Data, values)
	return nil
}

// Tensor returns a copy of the parameter as a tensor.
func (p *Param) Tensor() *tensor.Tensor {
	return tensor.FromData(append([]float64(nil), p.Data...), p.Shape...)
}

// Prefix returns views of params with prefix + "." prepended to every name.
func Prefix(prefix string, params []*Param) []*Param {
	out := make([]*Param, len(params))
	for i, p := range params {
		out[i] = &Param{Name: prefix + "." + p.Name, Shape: p.Shape, Data: p.Data}
	}
	return out
}

// Collect gathers the parameters of named children in order.
func Collect(children ...Named) []*Param {
	var params []*Param
	for _, c := range children {
		params = append(params, Prefix(c.Name, c.Layer.Params())...)
	}
	return params
}

// Named pairs a child layer with the name its parameters are stored under.
type Named struct {
	Name  string
	Layer Layer
}

// Zero sets every parameter value to 0.
func Zero(l Layer) {
	for _, p := range l.Params() {
		for i := range p.Data {
			p.Data[i] = 0
		}
	}
}

func mustRank(name string, x *tensor.Tensor, rank int) {
	if len(x.Shape) != rank {
		panic(fmt.Sprintf("%s: expected rank-%d input, got shape %v", name, rank, x.Shape))
	}
}
