package lightcnn_test

import (
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"

	"github.com/FlavioCFOliveira/LightCNN/lightcnn"
)

func ExampleDefineR() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	r, err := lightcnn.DefineR([]int{0, 1}, "LightCNN_29Layers_V2_checkpoint.gguf", lightcnn.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}

	fake, err := lightcnn.LoadImage("generated.png")
	if err != nil {
		log.Fatal(err)
	}
	face, err := lightcnn.LoadImage("reference.png")
	if err != nil {
		log.Fatal(err)
	}
	gen, err := lightcnn.ImagesToTensor([]image.Image{fake})
	if err != nil {
		log.Fatal(err)
	}
	ref, err := lightcnn.ImagesToTensor([]image.Image{face})
	if err != nil {
		log.Fatal(err)
	}

	l, err := lightcnn.NewIdentityLoss(r, 0.1).Forward(gen, ref)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("identity loss: %.4f\n", l)
}
