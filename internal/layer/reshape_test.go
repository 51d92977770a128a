package layer

import (
	"testing"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

func TestFlattenForward(t *testing.T) {
	input := tensor.New(3, 128, 8, 8)
	input.Data[len(input.Data)-1] = 42

	output := NewFlatten().Forward(input)

	if !tensor.SameShape(output.Shape, []int{3, 8192}) {
		t.Fatalf("output shape = %v, want [3 8192]", output.Shape)
	}
	if output.Data[len(output.Data)-1] != 42 {
		t.Error("Flatten must preserve element order")
	}
	if len(NewFlatten().Params()) != 0 {
		t.Error("Flatten has no params")
	}
}
