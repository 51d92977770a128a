package imageio

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniform(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestToTensorShapeAndRange(t *testing.T) {
	imgs := []image.Image{
		uniform(40, 60, color.NRGBA{R: 255, A: 255}),
		uniform(200, 150, color.NRGBA{R: 255, G: 255, B: 255, A: 255}),
	}
	x, err := ToTensor(imgs, 128)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 128, 128}, x.Shape)

	plane := 128 * 128
	// red image
	assert.InDelta(t, 1.0, x.At(0, 0, 64, 64), 1e-4)
	assert.InDelta(t, 0.0, x.At(0, 1, 64, 64), 1e-4)
	assert.InDelta(t, 0.0, x.At(0, 2, 64, 64), 1e-4)
	// white image
	for i := 0; i < 3*plane; i++ {
		assert.InDelta(t, 1.0, x.Data[3*plane+i], 1e-4)
	}
	for _, v := range x.Data {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestToTensorErrors(t *testing.T) {
	_, err := ToTensor(nil, 128)
	require.ErrorIs(t, err, ErrNoImages)

	_, err = ToTensor([]image.Image{uniform(4, 4, color.White)}, 0)
	require.Error(t, err)

	_, err = ToTensor([]image.Image{image.NewRGBA(image.Rectangle{})}, 8)
	require.Error(t, err)
}

func TestLoadPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, uniform(16, 16, color.NRGBA{G: 255, A: 255})))
	require.NoError(t, f.Close())

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())

	x, err := ToTensor([]image.Image{img}, 8)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, x.At(0, 1, 3, 3), 1e-4)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.png"))
	require.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(dir, "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	_, err = Load(path)
	require.ErrorIs(t, err, image.ErrFormat)
}
