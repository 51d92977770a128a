package verify

import (
	"encoding/csv"
	"fmt"
	"image"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/FlavioCFOliveira/LightCNN/internal/imageio"
	"github.com/FlavioCFOliveira/LightCNN/internal/loss"
	"github.com/FlavioCFOliveira/LightCNN/internal/model"
	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// Score is a pair with the cosine similarity of its two embeddings.
type Score struct {
	Pair
	Similarity float64
}

// Scorer embeds pair images in batches and compares them.
type Scorer struct {
	Net       loss.Embedder
	BatchSize int
	// Load decodes an image; imageio.Load when nil.
	Load func(path string) (image.Image, error)
}

// Score returns one Score per pair, in order.
func (s *Scorer) Score(pairs []Pair) ([]Score, error) {
	load := s.Load
	if load == nil {
		load = imageio.Load
	}
	batch := s.BatchSize
	if batch <= 0 {
		batch = 16
	}

	scores := make([]Score, 0, len(pairs))
	for start := 0; start < len(pairs); start += batch {
		chunk := pairs[start:min(start+batch, len(pairs))]
		imgsA := make([]image.Image, len(chunk))
		imgsB := make([]image.Image, len(chunk))
		for i, p := range chunk {
			var err error
			if imgsA[i], err = load(p.A); err != nil {
				return nil, err
			}
			if imgsB[i], err = load(p.B); err != nil {
				return nil, err
			}
		}

		embA, err := s.embed(imgsA)
		if err != nil {
			return nil, err
		}
		embB, err := s.embed(imgsB)
		if err != nil {
			return nil, err
		}
		dim := embA.Shape[1]
		for i, p := range chunk {
			sim := loss.CosineSimilarity(embA.Data[i*dim:(i+1)*dim], embB.Data[i*dim:(i+1)*dim])
			scores = append(scores, Score{Pair: p, Similarity: sim})
		}
	}
	return scores, nil
}

func (s *Scorer) embed(imgs []image.Image) (*tensor.Tensor, error) {
	x, err := imageio.ToTensor(imgs, model.InputSize)
	if err != nil {
		return nil, err
	}
	out, err := s.Net.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(out.Shape) != 2 || out.Shape[0] != len(imgs) {
		return nil, fmt.Errorf("embed: unexpected output shape %v", out.Shape)
	}
	return out, nil
}

// Accuracy returns the fraction of pairs classified correctly when
// similarity >= threshold means "same".
func Accuracy(scores []Score, threshold float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	correct := 0
	for _, s := range scores {
		if (s.Similarity >= threshold) == s.Same {
			correct++
		}
	}
	return float64(correct) / float64(len(scores))
}

// BestThreshold searches the thresholds between adjacent similarities and
// returns the one with the highest accuracy.
func BestThreshold(scores []Score) (threshold, accuracy float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	sims := make([]float64, len(scores))
	for i, s := range scores {
		sims[i] = s.Similarity
	}
	sort.Float64s(sims)

	candidates := []float64{sims[0], sims[len(sims)-1] + 1e-9}
	for i := 1; i < len(sims); i++ {
		candidates = append(candidates, (sims[i-1]+sims[i])/2)
	}
	for _, t := range candidates {
		if acc := Accuracy(scores, t); acc > accuracy {
			threshold, accuracy = t, acc
		}
	}
	return threshold, accuracy
}

var scoreHeader = []string{"path_a", "path_b", "same", "similarity"}

// ScoreWriter writes scores as CSV rows.
type ScoreWriter struct {
	writer *csv.Writer
}

// NewScoreWriter writes the header line to w.
func NewScoreWriter(w io.Writer) (*ScoreWriter, error) {
	sw := &ScoreWriter{writer: csv.NewWriter(w)}
	if err := sw.writer.Write(scoreHeader); err != nil {
		return nil, err
	}
	return sw, nil
}

// Write appends one row.
func (sw *ScoreWriter) Write(s Score) error {
	record := []string{
		s.A,
		s.B,
		strconv.FormatBool(s.Same),
		fmt.Sprintf("%.6f", s.Similarity),
	}
	return sw.writer.Write(record)
}

// Flush writes buffered rows and reports any write error.
func (sw *ScoreWriter) Flush() error {
	sw.writer.Flush()
	return sw.writer.Error()
}

// WriteScores writes scores to filename, truncating it.
func WriteScores(filename string, scores []Score) error {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filename, err)
	}

	sw, err := NewScoreWriter(file)
	if err != nil {
		file.Close()
		return err
	}
	for _, s := range scores {
		if err := sw.Write(s); err != nil {
			file.Close()
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	if err := sw.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
