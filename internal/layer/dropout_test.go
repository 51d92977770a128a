package layer

import (
	"testing"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

func TestDropoutForwardTraining(t *testing.T) {
	dropout := NewDropout(0.5, true, 42)

	input := tensor.Full(1, 1, 100)
	output := dropout.Forward(input)

	nonZero := 0
	for _, v := range output.Data {
		switch v {
		case 0:
		case 2:
			nonZero++
		default:
			t.Fatalf("kept value should be scaled by 1/(1-p)=2, got %f", v)
		}
	}

	// Approximately 50% should survive
	if nonZero < 30 || nonZero > 70 {
		t.Errorf("Expected ~50%% non-zero outputs, got %d/100", nonZero)
	}
}

func TestDropoutForwardInference(t *testing.T) {
	dropout := NewDropout(0.5, false, 42)

	input := tensor.New(1, 100)
	for i := range input.Data {
		input.Data[i] = float64(i)
	}

	output := dropout.Forward(input)

	for i := range input.Data {
		if output.Data[i] != input.Data[i] {
			t.Errorf("Output[%d] = %f, expected %f", i, output.Data[i], input.Data[i])
		}
	}
	if dropout.IsTraining() {
		t.Error("IsTraining() = true for an inference layer")
	}
}

func TestDropoutInvalidP(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for p = 1")
		}
	}()
	NewDropout(1, true, 0)
}
