// Package net provides benchmarks for layer containers.
package net

import (
	"math/rand"
	"testing"

	"github.com/FlavioCFOliveira/LightCNN/internal/layer"
	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// benchModel is a small convolutional stack.
func benchModel() *Sequential {
	s := NewSequential(
		layer.NewMFMConv(3, 16, 3, 1, 1),
		layer.NewMaxAvgPool(2),
		layer.NewResBlock(16, 16),
		layer.NewFlatten(),
		layer.NewLinear(16*16*16, 32, true),
	)
	layer.InitParams(s.Params(), 1)
	return s
}

func benchInput(batch int) *tensor.Tensor {
	x := tensor.New(batch, 3, 32, 32)
	for i := range x.Data {
		x.Data[i] = rand.Float64()
	}
	return x
}

// BenchmarkSequentialForward benchmarks a serial forward pass.
func BenchmarkSequentialForward(b *testing.B) {
	model := benchModel()
	input := benchInput(8)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		model.Forward(input)
	}
}

// BenchmarkParallelForward benchmarks the same pass split across workers.
func BenchmarkParallelForward(b *testing.B) {
	p := NewParallel(benchModel(), 4)
	input := benchInput(8)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Forward(input)
	}
}
