// Package lightcnn loads a pretrained LightCNN-29 v2 face recognition
// network and uses it as an identity-preserving criterion.
//
// A typical caller builds the recognizer once and scores generated faces
// against references:
//
//	r, err := lightcnn.DefineR(nil, "LightCNN_29Layers_V2_checkpoint.gguf")
//	...
//	crit := lightcnn.NewIdentityLoss(r, 0.1)
//	l, err := crit.Forward(fake, real)
package lightcnn

import (
	"image"

	"github.com/FlavioCFOliveira/LightCNN/internal/checkpoint"
	"github.com/FlavioCFOliveira/LightCNN/internal/imageio"
	"github.com/FlavioCFOliveira/LightCNN/internal/layer"
	"github.com/FlavioCFOliveira/LightCNN/internal/loss"
	"github.com/FlavioCFOliveira/LightCNN/internal/model"
	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
	"github.com/FlavioCFOliveira/LightCNN/internal/verify"
)

// Re-export common types and functions for easier access
type (
	Tensor              = tensor.Tensor
	Config              = model.Config
	Network             = model.Network
	Param               = layer.Param
	StateDict           = checkpoint.StateDict
	Metadata            = checkpoint.Metadata
	TensorType          = checkpoint.GGMLType
	Embedder            = loss.Embedder
	IdentityLoss        = loss.IdentityLoss
	CosineEmbeddingLoss = loss.CosineEmbeddingLoss
	Pair                = verify.Pair
	Score               = verify.Score
	Scorer              = verify.Scorer
)

// Architecture constants
const (
	InputSize         = model.InputSize
	FeatureDim        = model.FeatureDim
	DefaultNumClasses = model.DefaultNumClasses
)

// Checkpoint tensor encodings
const (
	F32 = checkpoint.GGMLTypeF32
	F16 = checkpoint.GGMLTypeF16
	F64 = checkpoint.GGMLTypeF64
)

// Errors
var (
	ErrInputShape      = model.ErrInputShape
	ErrMissingParam    = model.ErrMissingParam
	ErrUnexpectedParam = model.ErrUnexpectedParam
	ErrShapeMismatch   = model.ErrShapeMismatch
	ErrBadMagic        = checkpoint.ErrBadMagic
	ErrNoImages        = imageio.ErrNoImages
)

// Model creation
func DefaultConfig() Config {
	return model.DefaultConfig()
}

func New(cfg Config) (*Network, error) {
	return model.New(cfg)
}

// Tensors
func NewTensor(shape ...int) *Tensor {
	return tensor.New(shape...)
}

func FromData(data []float64, shape ...int) *Tensor {
	return tensor.FromData(data, shape...)
}

// Images
func LoadImage(path string) (image.Image, error) {
	return imageio.Load(path)
}

// ImagesToTensor resizes faces to the network input size.
func ImagesToTensor(imgs []image.Image) (*Tensor, error) {
	return imageio.ToTensor(imgs, InputSize)
}

// Losses
func NewIdentityLoss(net Embedder, weight float64) *IdentityLoss {
	return loss.NewIdentityLoss(net, weight)
}

func NewCosineEmbeddingLoss(margin float64) *CosineEmbeddingLoss {
	return loss.NewCosineEmbeddingLoss(margin)
}

func CosineSimilarity(a, b []float64) float64 {
	return loss.CosineSimilarity(a, b)
}

// Checkpoint Persistence
func LoadCheckpoint(path string) (StateDict, error) {
	return checkpoint.Load(path)
}

func SaveCheckpoint(path string, sd StateDict) error {
	return checkpoint.Save(path, sd)
}

func SaveGGUF(path string, sd StateDict, typ TensorType) error {
	return checkpoint.SaveGGUF(path, sd, typ)
}

// Verification
func LoadPairs(path string, hasHeader bool) ([]Pair, error) {
	return verify.LoadPairs(path, hasHeader)
}

// NewScorer compares pair embeddings from net, batchSize pairs at a time.
func NewScorer(net Embedder, batchSize int) *Scorer {
	return &Scorer{Net: net, BatchSize: batchSize}
}

func WriteScores(path string, scores []Score) error {
	return verify.WriteScores(path, scores)
}

func Accuracy(scores []Score, threshold float64) float64 {
	return verify.Accuracy(scores, threshold)
}

// BestThreshold picks the similarity cut that classifies the most pairs
// correctly.
func BestThreshold(scores []Score) (threshold, accuracy float64) {
	return verify.BestThreshold(scores)
}
