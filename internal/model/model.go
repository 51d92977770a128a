// Package model implements the LightCNN-29 v2 face recognition network.
//
// The network turns a batch of 128x128 RGB faces into 256-d identity
// embeddings or class logits. Parameters are named like the published
// checkpoints ("block2.1.conv1.filter.weight"), so a state dict loads
// without renaming beyond the wrapper prefixes.
package model

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/FlavioCFOliveira/LightCNN/internal/checkpoint"
	"github.com/FlavioCFOliveira/LightCNN/internal/layer"
	"github.com/FlavioCFOliveira/LightCNN/internal/net"
	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

var (
	// ErrInputShape is returned when the input is not [B, 3, 128, 128] with B >= 1.
	ErrInputShape = errors.New("model: input must be [B, 3, 128, 128]")
	// ErrMissingParam is returned when a state dict lacks a network parameter.
	ErrMissingParam = errors.New("model: missing parameter")
	// ErrUnexpectedParam is returned when a state dict holds a name the network does not have.
	ErrUnexpectedParam = errors.New("model: unexpected parameter")
	// ErrShapeMismatch is returned when a stored tensor's shape differs from the parameter's.
	ErrShapeMismatch = errors.New("model: shape mismatch")
)

// classifierWeight is the classification head's only parameter. Feature
// networks do not build it but accept it in checkpoints when its shape
// matches [NumClasses, FeatureDim].
const classifierWeight = "fc2.weight"

// Network is LightCNN-29 v2. It is read-only after construction and
// loading, so concurrent Forward calls are safe.
type Network struct {
	cfg Config

	gray   *layer.Grayscale
	pool   *layer.MaxAvgPool
	conv1  *layer.MFM
	blocks [4]*net.Sequential
	groups [4]*layer.Group
	flat   *layer.Flatten
	fc     *layer.Linear

	// Classification head, nil in feature mode.
	dropout *layer.Dropout
	fc2     *layer.Linear
}

// New builds a network from cfg with seeded random parameters.
func New(cfg Config) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	n := &Network{
		cfg:   cfg,
		gray:  layer.NewGrayscale(),
		pool:  layer.NewMaxAvgPool(2),
		conv1: layer.NewMFMConv(1, 48, 5, 1, 2),
		flat:  layer.NewFlatten(),
		fc:    layer.NewLinear(finalSize*finalSize*finalChannels, FeatureDim, true),
	}

	stages := [4]struct{ width, next int }{
		{48, 96},
		{96, 192},
		{192, 128},
		{128, 128},
	}
	for i, s := range stages {
		res := make([]layer.Layer, cfg.Blocks[i])
		for j := range res {
			res[j] = layer.NewResBlock(s.width, s.width)
		}
		n.blocks[i] = net.NewSequential(res...)
		n.groups[i] = layer.NewGroup(s.width, s.next, 3, 1, 1)
	}

	if !cfg.Feature {
		n.dropout = layer.NewDropout(cfg.DropoutP, cfg.Training, cfg.Seed)
		n.fc2 = layer.NewLinear(FeatureDim, cfg.NumClasses, false)
	}

	layer.InitParams(n.Params(), cfg.Seed)
	return n, nil
}

// Config returns the configuration the network was built with.
func (n *Network) Config() Config {
	return n.cfg
}

// Forward validates x and returns [B, 256] embeddings in feature mode or
// [B, NumClasses] logits otherwise.
func (n *Network) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := CheckInput(x); err != nil {
		return nil, err
	}
	return n.forward(x), nil
}

// Embed returns the [B, 256] embedding whatever the network's mode.
func (n *Network) Embed(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := CheckInput(x); err != nil {
		return nil, err
	}
	return n.features(x), nil
}

// CheckInput reports ErrInputShape unless x is [B, 3, 128, 128] with B >= 1.
func CheckInput(x *tensor.Tensor) error {
	if x == nil {
		return fmt.Errorf("%w: got nil tensor", ErrInputShape)
	}
	s := x.Shape
	if len(s) != 4 || s[0] < 1 || s[1] != InputChannels || s[2] != InputSize || s[3] != InputSize {
		return fmt.Errorf("%w: got %v", ErrInputShape, s)
	}
	if len(x.Data) != tensor.Numel(s) {
		return fmt.Errorf("%w: shape %v holds %d values", ErrInputShape, s, len(x.Data))
	}
	return nil
}

func (n *Network) forward(x *tensor.Tensor) *tensor.Tensor {
	fc := n.features(x)
	if n.cfg.Feature {
		return fc
	}
	return n.fc2.Forward(n.dropout.Forward(fc))
}

func (n *Network) features(x *tensor.Tensor) *tensor.Tensor {
	x = n.gray.Forward(x)
	x = n.pool.Forward(n.conv1.Forward(x))

	for i := range n.blocks {
		x = n.blocks[i].Forward(x)
		x = n.groups[i].Forward(x)
		// stage 3 keeps its resolution
		if i != 2 {
			x = n.pool.Forward(x)
		}
	}
	return n.fc.Forward(n.flat.Forward(x))
}

// Params returns every parameter in registration order with fully
// qualified names.
func (n *Network) Params() []*layer.Param {
	children := []layer.Named{{Name: "conv1", Layer: n.conv1}}
	for i := range n.blocks {
		stage := strconv.Itoa(i + 1)
		children = append(children,
			layer.Named{Name: "block" + stage, Layer: n.blocks[i]},
			layer.Named{Name: "group" + stage, Layer: n.groups[i]},
		)
	}
	children = append(children, layer.Named{Name: "fc", Layer: n.fc})
	if n.fc2 != nil {
		children = append(children, layer.Named{Name: "fc2", Layer: n.fc2})
	}
	return layer.Collect(children...)
}

// NumParams returns the number of scalar parameters.
func (n *Network) NumParams() int {
	total := 0
	for _, p := range n.Params() {
		total += len(p.Data)
	}
	return total
}

// StateDict returns a copy of every parameter keyed by name.
func (n *Network) StateDict() checkpoint.StateDict {
	params := n.Params()
	sd := make(checkpoint.StateDict, len(params))
	for _, p := range params {
		sd[p.Name] = p.Tensor()
	}
	return sd
}

// LoadStateDict copies sd into the network. Names are normalised with
// checkpoint.Normalize first. The whole dict is validated before anything
// is written: a missing, unexpected or mis-shaped entry leaves the network
// untouched and the returned error joins one wrapped sentinel per problem.
func (n *Network) LoadStateDict(sd checkpoint.StateDict) error {
	sd, err := checkpoint.Normalize(sd)
	if err != nil {
		return err
	}

	params := n.Params()
	known := make(map[string]bool, len(params))
	var errs []error
	for _, p := range params {
		known[p.Name] = true
		t, ok := sd[p.Name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingParam, p.Name))
			continue
		}
		if !tensor.SameShape(t.Shape, p.Shape) || len(t.Data) != len(p.Data) {
			errs = append(errs, fmt.Errorf("%w: %s has shape %v, want %v", ErrShapeMismatch, p.Name, t.Shape, p.Shape))
		}
	}
	for _, name := range sd.Names() {
		if known[name] {
			continue
		}
		if n.cfg.Feature && name == classifierWeight {
			// Not loaded, but it must still fit the configured head.
			want := []int{n.cfg.NumClasses, FeatureDim}
			if t := sd[name]; !tensor.SameShape(t.Shape, want) || len(t.Data) != tensor.Numel(want) {
				errs = append(errs, fmt.Errorf("%w: %s has shape %v, want %v", ErrShapeMismatch, name, t.Shape, want))
			}
			continue
		}
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnexpectedParam, name))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, p := range params {
		copy(p.Data, sd[p.Name].Data)
	}
	return nil
}

// Module returns n as a layer.Layer so it can be composed with containers
// such as net.Parallel. Its Forward skips input validation and panics on
// malformed input.
func (n *Network) Module() layer.Layer {
	return module{n}
}

type module struct {
	n *Network
}

func (m module) Forward(x *tensor.Tensor) *tensor.Tensor {
	return m.n.forward(x)
}

func (m module) Params() []*layer.Param {
	return m.n.Params()
}

// EmbedModule is like Module but always stops at the 256-d embedding.
func (n *Network) EmbedModule() layer.Layer {
	return embedModule{n}
}

type embedModule struct {
	n *Network
}

func (m embedModule) Forward(x *tensor.Tensor) *tensor.Tensor {
	return m.n.features(x)
}

func (m embedModule) Params() []*layer.Param {
	return m.n.Params()
}
