// Package layer provides benchmarks for neural network layer implementations.
package layer

import (
	"math/rand"
	"testing"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// randomTensor returns a tensor of the given shape filled with random values.
func randomTensor(shape ...int) *tensor.Tensor {
	t := tensor.New(shape...)
	for i := range t.Data {
		t.Data[i] = rand.Float64()
	}
	return t
}

// BenchmarkLinearForward benchmarks the embedding projection.
func BenchmarkLinearForward(b *testing.B) {
	l := NewLinear(8*8*128, 256, true)
	InitParams(l.Params(), 1)
	input := randomTensor(4, 128, 8, 8)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Forward(input)
	}
}

// BenchmarkConv2DForward benchmarks a 3x3 convolution.
func BenchmarkConv2DForward(b *testing.B) {
	conv := NewConv2D(48, 96, 3, 1, 1)
	InitParams(conv.Params(), 1)
	input := randomTensor(1, 48, 32, 32)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		conv.Forward(input)
	}
}

// BenchmarkConv2DPointwise benchmarks the 1x1 path that skips im2col.
func BenchmarkConv2DPointwise(b *testing.B) {
	conv := NewConv2D(96, 192, 1, 1, 0)
	InitParams(conv.Params(), 1)
	input := randomTensor(1, 96, 32, 32)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		conv.Forward(input)
	}
}

// BenchmarkMFMConvForward benchmarks the first LightCNN stage.
func BenchmarkMFMConvForward(b *testing.B) {
	m := NewMFMConv(1, 48, 5, 1, 2)
	InitParams(m.Params(), 1)
	input := randomTensor(1, 1, 128, 128)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Forward(input)
	}
}

// BenchmarkResBlockForward benchmarks one residual block.
func BenchmarkResBlockForward(b *testing.B) {
	r := NewResBlock(96, 96)
	InitParams(r.Params(), 1)
	input := randomTensor(1, 96, 32, 32)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Forward(input)
	}
}

// BenchmarkMaxAvgPoolForward benchmarks the combined pooling.
func BenchmarkMaxAvgPoolForward(b *testing.B) {
	p := NewMaxAvgPool(2)
	input := randomTensor(1, 48, 128, 128)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Forward(input)
	}
}
