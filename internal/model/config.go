package model

import "fmt"

// Architecture constants of LightCNN-29 v2.
const (
	InputChannels     = 3
	InputSize         = 128
	FeatureDim        = 256
	DefaultNumClasses = 80013

	// Spatial size after the four pooling stages.
	finalSize     = InputSize / 16
	finalChannels = 128
)

// Config selects the head and the per-stage depth of the network.
type Config struct {
	// NumClasses is the width of the classification head.
	NumClasses int
	// Feature makes Forward return the 256-d embedding instead of logits.
	Feature bool
	// Training enables dropout before the classification head. It is fixed
	// for the lifetime of a Network.
	Training bool
	// Blocks is the number of residual blocks in each of the four stages.
	Blocks [4]int
	// DropoutP is the drop probability used in training mode.
	DropoutP float64
	// Seed drives parameter initialisation and dropout masks.
	Seed uint64
}

// DefaultConfig returns the pretrained LightCNN-29 v2 layout in feature mode.
func DefaultConfig() Config {
	return Config{
		NumClasses: DefaultNumClasses,
		Feature:    true,
		Blocks:     [4]int{1, 2, 3, 4},
		DropoutP:   0.5,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.NumClasses <= 0 {
		return fmt.Errorf("num classes must be positive, got %d", c.NumClasses)
	}
	for i, n := range c.Blocks {
		if n < 0 {
			return fmt.Errorf("block%d: negative depth %d", i+1, n)
		}
	}
	if c.DropoutP < 0 || c.DropoutP >= 1 {
		return fmt.Errorf("dropout probability must be in [0, 1), got %g", c.DropoutP)
	}
	return nil
}
