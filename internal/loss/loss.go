// Package loss provides the identity-preserving criteria built on face
// embeddings.
package loss

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// eps keeps the cosine defined for zero vectors.
const eps = 1e-12

// Embedder maps a batch of images to a batch of embeddings.
type Embedder interface {
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
}

// CosineSimilarity returns a·b / (|a| |b|). Zero vectors give 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("CosineSimilarity: vectors must have same length")
	}
	return floats.Dot(a, b) / math.Sqrt((floats.Dot(a, a)+eps)*(floats.Dot(b, b)+eps))
}

// CosineEmbeddingLoss measures similarity between two batches of embeddings.
type CosineEmbeddingLoss struct {
	Margin float64 // Minimum margin between positive and negative pairs
}

// NewCosineEmbeddingLoss creates a CosineEmbeddingLoss with the given margin.
func NewCosineEmbeddingLoss(margin float64) *CosineEmbeddingLoss {
	return &CosineEmbeddingLoss{Margin: margin}
}

// Forward computes the mean cosine embedding loss over the rows of x1 and x2.
// For y=1 (similar): loss = 1 - cos(x1, x2)
// For y=-1 (dissimilar): loss = max(0, cos(x1, x2) - margin)
// y holds one label per row, or a single label applied to every row.
func (c CosineEmbeddingLoss) Forward(x1, x2 *tensor.Tensor, y []float64) float64 {
	rows, dim := c.check(x1, x2, y)

	var sum float64
	for i := 0; i < rows; i++ {
		cos := CosineSimilarity(x1.Data[i*dim:(i+1)*dim], x2.Data[i*dim:(i+1)*dim])
		if label(y, i) > 0 { // Similar pair
			sum += 1.0 - cos
		} else if diff := cos - c.Margin; diff > 0 { // Dissimilar pair
			sum += diff
		}
	}
	return sum / float64(rows)
}

// Backward returns the gradient of Forward with respect to x1.
func (c CosineEmbeddingLoss) Backward(x1, x2 *tensor.Tensor, y []float64) *tensor.Tensor {
	rows, dim := c.check(x1, x2, y)

	grad := tensor.New(x1.Shape...)
	for i := 0; i < rows; i++ {
		a := x1.Data[i*dim : (i+1)*dim]
		b := x2.Data[i*dim : (i+1)*dim]
		m1 := floats.Dot(a, a) + eps
		m2 := floats.Dot(b, b) + eps
		norm := math.Sqrt(m1 * m2)
		cos := floats.Dot(a, b) / norm

		var scale float64
		if label(y, i) > 0 {
			scale = -1.0 / float64(rows)
		} else if cos > c.Margin {
			scale = 1.0 / float64(rows)
		} else {
			continue
		}

		// d cos / d a = b / norm - cos * a / m1
		g := grad.Data[i*dim : (i+1)*dim]
		floats.AddScaled(g, scale/norm, b)
		floats.AddScaled(g, -scale*cos/m1, a)
	}
	return grad
}

func (c CosineEmbeddingLoss) check(x1, x2 *tensor.Tensor, y []float64) (rows, dim int) {
	if !tensor.SameShape(x1.Shape, x2.Shape) {
		panic(fmt.Sprintf("CosineEmbeddingLoss: shapes %v and %v differ", x1.Shape, x2.Shape))
	}
	if len(x1.Shape) != 2 || x1.Shape[0] == 0 {
		panic(fmt.Sprintf("CosineEmbeddingLoss: expected [batch, dim] input, got %v", x1.Shape))
	}
	rows, dim = x1.Shape[0], x1.Shape[1]
	if len(y) != 1 && len(y) != rows {
		panic(fmt.Sprintf("CosineEmbeddingLoss: %d labels for %d rows", len(y), rows))
	}
	return rows, dim
}

func label(y []float64, i int) float64 {
	if len(y) == 1 {
		return y[0]
	}
	return y[i]
}

// IdentityLoss scores how well generated faces keep the identity of their
// references: Weight * CosineEmbeddingLoss(net(generated), net(reference), 1).
type IdentityLoss struct {
	Net       Embedder
	Weight    float64
	Criterion CosineEmbeddingLoss
}

// NewIdentityLoss creates an identity loss with a zero margin.
func NewIdentityLoss(net Embedder, weight float64) *IdentityLoss {
	return &IdentityLoss{Net: net, Weight: weight}
}

// Forward embeds both batches and returns the weighted loss.
func (l *IdentityLoss) Forward(generated, reference *tensor.Tensor) (float64, error) {
	fake, ref, err := l.embed(generated, reference)
	if err != nil {
		return 0, err
	}
	return l.Weight * l.Criterion.Forward(fake, ref, []float64{1}), nil
}

// Backward returns the weighted gradient with respect to the embeddings of
// generated, the signal a generator update would propagate further.
func (l *IdentityLoss) Backward(generated, reference *tensor.Tensor) (*tensor.Tensor, error) {
	fake, ref, err := l.embed(generated, reference)
	if err != nil {
		return nil, err
	}
	grad := l.Criterion.Backward(fake, ref, []float64{1})
	floats.Scale(l.Weight, grad.Data)
	return grad, nil
}

func (l *IdentityLoss) embed(generated, reference *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	fake, err := l.Net.Forward(generated)
	if err != nil {
		return nil, nil, fmt.Errorf("embed generated: %w", err)
	}
	ref, err := l.Net.Forward(reference)
	if err != nil {
		return nil, nil, fmt.Errorf("embed reference: %w", err)
	}
	if !tensor.SameShape(fake.Shape, ref.Shape) {
		return nil, nil, fmt.Errorf("embedding shapes %v and %v differ", fake.Shape, ref.Shape)
	}
	return fake, ref, nil
}
