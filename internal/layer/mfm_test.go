package layer

import (
	"testing"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// TestMFMConvHalvesChannels tests that two constant channels collapse to the larger one.
func TestMFMConvHalvesChannels(t *testing.T) {
	m := NewMFMConv(1, 1, 1, 1, 0)
	conv := m.Filter().(*Conv2D)
	// zero weights: the projection is just the biases
	conv.SetBias(0, 1)
	conv.SetBias(1, -1)

	input := tensor.New(2, 1, 3, 3)
	output := m.Forward(input)

	if !tensor.SameShape(output.Shape, []int{2, 1, 3, 3}) {
		t.Fatalf("output shape = %v, want [2 1 3 3]", output.Shape)
	}
	for i, v := range output.Data {
		if v != 1 {
			t.Errorf("output[%d] = %v, want 1", i, v)
		}
	}
}

// TestMaxHalvesElementwise tests the split and max on known values.
func TestMaxHalvesElementwise(t *testing.T) {
	// batch 1, 4 channels of 2 values: halves are channels {0,1} and {2,3}
	y := tensor.FromData([]float64{
		1, 5,
		-2, 0,
		3, 4,
		-1, -7,
	}, 1, 4, 1, 2)
	out := MaxHalves(y)

	if !tensor.SameShape(out.Shape, []int{1, 2, 1, 2}) {
		t.Fatalf("shape = %v, want [1 2 1 2]", out.Shape)
	}
	expected := []float64{3, 5, -1, 0}
	for i := range expected {
		if out.Data[i] != expected[i] {
			t.Errorf("out[%d] = %v, want %v", i, out.Data[i], expected[i])
		}
	}
}

// TestMFMLinear tests the fully connected variant.
func TestMFMLinear(t *testing.T) {
	m := NewMFMLinear(2, 2)
	lin := m.Filter().(*Linear)
	// features 0,1 form the first half, 2,3 the second
	lin.SetWeight(0, 0, 1)
	lin.SetWeight(1, 1, 1)
	lin.SetWeight(2, 0, -1)
	lin.SetWeight(3, 1, 2)

	out := m.Forward(tensor.FromData([]float64{3, -1, -4, 2}, 2, 2))

	// sample 0: first=(3,-1) second=(-3,-2) -> (3,-1)
	// sample 1: first=(-4,2) second=(4,4)   -> (4,4)
	expected := []float64{3, -1, 4, 4}
	for i := range expected {
		if out.Data[i] != expected[i] {
			t.Errorf("out[%d] = %v, want %v", i, out.Data[i], expected[i])
		}
	}
}

// TestMFMParamNames tests checkpoint naming.
func TestMFMParamNames(t *testing.T) {
	params := NewMFMConv(1, 48, 5, 1, 2).Params()
	if len(params) != 2 {
		t.Fatalf("got %d params, want 2", len(params))
	}
	if params[0].Name != "filter.weight" || params[1].Name != "filter.bias" {
		t.Errorf("names = %q, %q", params[0].Name, params[1].Name)
	}
	if !tensor.SameShape(params[0].Shape, []int{96, 1, 5, 5}) {
		t.Errorf("weight shape = %v, want [96 1 5 5]", params[0].Shape)
	}
}
