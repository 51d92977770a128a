package lightcnn

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/FlavioCFOliveira/LightCNN/internal/checkpoint"
	"github.com/FlavioCFOliveira/LightCNN/internal/config"
	"github.com/FlavioCFOliveira/LightCNN/internal/layer"
	"github.com/FlavioCFOliveira/LightCNN/internal/model"
	"github.com/FlavioCFOliveira/LightCNN/internal/net"
)

// Option configures DefineR.
type Option func(*options)

type options struct {
	logger *slog.Logger
	cfg    Config
}

// WithLogger sets the logger used while loading. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithConfig replaces the default architecture. Training is always
// switched off.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// Recognizer is a loaded, evaluation-mode network, optionally split across
// workers. It is safe for concurrent use.
type Recognizer struct {
	net     *model.Network
	forward layer.Layer
	embed   layer.Layer
	workers []int
	logger  *slog.Logger
}

// DefineR builds LightCNN-29 v2 in evaluation mode, wraps it for
// data-parallel execution when workers is non-empty and loads the
// checkpoint at path. Stored names may carry "state_dict." and "module."
// prefixes; after stripping them they must match the network exactly.
func DefineR(workers []int, path string, opts ...Option) (*Recognizer, error) {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg:    model.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.cfg.Training = false

	n, err := model.New(o.cfg)
	if err != nil {
		return nil, err
	}

	r := &Recognizer{
		net:     n,
		forward: n.Module(),
		embed:   n.EmbedModule(),
		workers: append([]int(nil), workers...),
		logger:  o.logger,
	}
	if len(workers) > 0 {
		r.forward = net.NewParallel(r.forward, len(workers))
		r.embed = net.NewParallel(r.embed, len(workers))
	}

	sd, err := checkpoint.Load(path)
	if err != nil {
		return nil, err
	}
	renamed := 0
	for _, name := range sd.Names() {
		if key := checkpoint.NormalizeName(name); key != name {
			renamed++
			r.logger.Debug("remapped parameter", "from", name, "to", key)
		}
	}
	if err := n.LoadStateDict(sd); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	r.logger.Info("loaded recognizer",
		"checkpoint", path,
		"tensors", len(sd),
		"renamed", renamed,
		"params", n.NumParams(),
		"feature", o.cfg.Feature,
		"workers", len(workers),
	)
	return r, nil
}

// Overrides replaces config file values with any non-zero field.
type Overrides = config.Overrides

// FromConfig loads the YAML config at path, applies o and calls DefineR
// with the result. Unless WithLogger is given, logs go to stderr at the
// configured level.
func FromConfig(path string, o Overrides, opts ...Option) (*Recognizer, error) {
	cfg, err := config.LoadWithOverrides(path, o)
	if err != nil {
		return nil, err
	}
	return fromConfig(cfg, opts...)
}

func fromConfig(cfg *config.Config, opts ...Option) (*Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	opts = append([]Option{WithLogger(logger), WithConfig(cfg.Model())}, opts...)
	return DefineR(cfg.Workers, cfg.CheckpointPath, opts...)
}

// Forward returns embeddings or logits for x, which must be [B, 3, 128, 128].
func (r *Recognizer) Forward(x *Tensor) (*Tensor, error) {
	if err := model.CheckInput(x); err != nil {
		return nil, err
	}
	return r.forward.Forward(x), nil
}

// Embed returns the [B, 256] embedding regardless of mode.
func (r *Recognizer) Embed(x *Tensor) (*Tensor, error) {
	if err := model.CheckInput(x); err != nil {
		return nil, err
	}
	return r.embed.Forward(x), nil
}

// Network returns the underlying network.
func (r *Recognizer) Network() *Network {
	return r.net
}

// Workers returns the worker ids the recognizer was defined with.
func (r *Recognizer) Workers() []int {
	return r.workers
}

// Params returns the parameters as the wrapped network names them, with a
// "module." prefix when running data-parallel.
func (r *Recognizer) Params() []*Param {
	return r.forward.Params()
}

// StateDict returns a copy of Params keyed by name.
func (r *Recognizer) StateDict() StateDict {
	params := r.Params()
	sd := make(StateDict, len(params))
	for _, p := range params {
		sd[p.Name] = p.Tensor()
	}
	return sd
}

// Summary writes the parameter table.
func (r *Recognizer) Summary(w io.Writer) {
	net.Summary(w, "LightCNN-29v2", r.forward)
}

var (
	_ Embedder = (*Recognizer)(nil)
	_ Embedder = (*model.Network)(nil)
)
