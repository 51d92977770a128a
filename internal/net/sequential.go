package net

import (
	"fmt"
	"io"
	"strconv"

	"github.com/FlavioCFOliveira/LightCNN/internal/layer"
	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// Sequential applies layers in order. Parameters are named by position,
// so the second layer's weight is "1.weight".
type Sequential struct {
	layers []layer.Layer
}

// NewSequential creates a new Sequential container.
func NewSequential(layers ...layer.Layer) *Sequential {
	return &Sequential{layers: layers}
}

// Forward performs a forward pass through all layers.
func (s *Sequential) Forward(x *tensor.Tensor) *tensor.Tensor {
	curr := x
	for _, l := range s.layers {
		curr = l.Forward(curr)
	}
	return curr
}

// Params returns every layer's parameters prefixed by its index.
func (s *Sequential) Params() []*layer.Param {
	var params []*layer.Param
	for i, l := range s.layers {
		params = append(params, layer.Prefix(strconv.Itoa(i), l.Params())...)
	}
	return params
}

// Layers returns the contained layers.
func (s *Sequential) Layers() []layer.Layer {
	return s.layers
}

// Len returns the number of layers.
func (s *Sequential) Len() int {
	return len(s.layers)
}

// Summary writes a summary of the parameters held by l.
func Summary(w io.Writer, name string, l layer.Layer) {
	fmt.Fprintf(w, "Model: %s\n", name)
	fmt.Fprintln(w, "_________________________________________________________________")
	fmt.Fprintf(w, "%-40s %-16s %-10s\n", "Parameter", "Shape", "Count")
	fmt.Fprintln(w, "=================================================================")

	total := 0
	for _, p := range l.Params() {
		total += len(p.Data)
		fmt.Fprintf(w, "%-40s %-16s %-10d\n", p.Name, fmt.Sprint(p.Shape), len(p.Data))
	}
	fmt.Fprintln(w, "=================================================================")
	fmt.Fprintf(w, "Total params: %d\n", total)
	fmt.Fprintln(w, "_________________________________________________________________")
}
