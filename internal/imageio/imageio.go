// Package imageio turns face images into network input tensors.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"os"

	// Formats accepted by Load.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// ErrNoImages is returned when ToTensor is called with an empty batch.
var ErrNoImages = errors.New("imageio: no images")

// Load decodes the image stored at path. JPEG, PNG, BMP, TIFF and WebP are
// recognised.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// ToTensor resizes every image to size x size with bilinear interpolation
// and packs the batch as [B, 3, size, size] RGB values in [0, 1].
func ToTensor(imgs []image.Image, size int) (*tensor.Tensor, error) {
	if len(imgs) == 0 {
		return nil, ErrNoImages
	}
	if size <= 0 {
		return nil, fmt.Errorf("imageio: invalid size %d", size)
	}

	out := tensor.New(len(imgs), 3, size, size)
	plane := size * size
	dst := image.NewRGBA64(image.Rect(0, 0, size, size))
	for b, img := range imgs {
		if img == nil || img.Bounds().Empty() {
			return nil, fmt.Errorf("imageio: image %d is empty", b)
		}
		draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

		base := b * 3 * plane
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				c := dst.RGBA64At(x, y)
				i := y*size + x
				out.Data[base+i] = float64(c.R) / 0xffff
				out.Data[base+plane+i] = float64(c.G) / 0xffff
				out.Data[base+2*plane+i] = float64(c.B) / 0xffff
			}
		}
	}
	return out, nil
}
