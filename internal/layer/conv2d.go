// Package layer provides neural network layer implementations.
package layer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// Conv2D implements a 2D convolutional layer.
// The convolution is lowered to a matrix product: each sample is unrolled
// into columns (im2col) and multiplied by the [outChannels, inChannels*k*k]
// weight matrix.
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	// Weights: [outChannels, inChannels, kernelSize, kernelSize]
	weights []float64
	biases  []float64
}

// NewConv2D creates a new 2D convolutional layer with zeroed parameters.
// inChannels: number of input channels
// outChannels: number of output feature maps
// kernelSize: size of convolutional kernel (square)
// stride: stride for convolution
// padding: zero padding size
func NewConv2D(inChannels, outChannels, kernelSize, stride, padding int) *Conv2D {
	if inChannels <= 0 || outChannels <= 0 || kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("Conv2D: invalid geometry in=%d out=%d k=%d s=%d p=%d",
			inChannels, outChannels, kernelSize, stride, padding))
	}
	return &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weights:     make([]float64, outChannels*inChannels*kernelSize*kernelSize),
		biases:      make([]float64, outChannels),
	}
}

// OutputSize calculates the output spatial dimensions.
func (c *Conv2D) OutputSize(inputHeight, inputWidth int) (int, int) {
	outH := (inputHeight+2*c.padding-c.kernelSize)/c.stride + 1
	outW := (inputWidth+2*c.padding-c.kernelSize)/c.stride + 1
	return outH, outW
}

// Forward performs a forward pass through the convolutional layer.
// input: [batch, inChannels, height, width]
// Returns: [batch, outChannels, outH, outW]
func (c *Conv2D) Forward(x *tensor.Tensor) *tensor.Tensor {
	mustRank("Conv2D", x, 4)
	batch, channels, inH, inW := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	if channels != c.inChannels {
		panic(fmt.Sprintf("Conv2D: input has %d channels, layer expects %d", channels, c.inChannels))
	}
	outH, outW := c.OutputSize(inH, inW)
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("Conv2D: input %dx%d too small for kernel %d", inH, inW, c.kernelSize))
	}

	out := tensor.New(batch, c.outChannels, outH, outW)
	patch := c.inChannels * c.kernelSize * c.kernelSize
	outSize := outH * outW
	inSize := c.inChannels * inH * inW

	w := mat.NewDense(c.outChannels, patch, c.weights)
	pointwise := c.kernelSize == 1 && c.stride == 1 && c.padding == 0
	var cols []float64
	if !pointwise {
		cols = make([]float64, patch*outSize)
	}

	for b := 0; b < batch; b++ {
		sample := x.Data[b*inSize : (b+1)*inSize]
		if pointwise {
			cols = sample
		} else {
			c.im2col(sample, inH, inW, outH, outW, cols)
		}
		dst := out.Data[b*c.outChannels*outSize : (b+1)*c.outChannels*outSize]
		res := mat.NewDense(c.outChannels, outSize, dst)
		res.Mul(w, mat.NewDense(patch, outSize, cols))

		for oc := 0; oc < c.outChannels; oc++ {
			bias := c.biases[oc]
			row := dst[oc*outSize : (oc+1)*outSize]
			for i := range row {
				row[i] += bias
			}
		}
	}
	return out
}

// im2col unrolls one [inChannels, inH, inW] sample into a
// [inChannels*k*k, outH*outW] matrix, zero filling the padded border.
func (c *Conv2D) im2col(input []float64, inH, inW, outH, outW int, cols []float64) {
	k := c.kernelSize
	outSize := outH * outW
	row := 0
	for ic := 0; ic < c.inChannels; ic++ {
		channelOffset := ic * inH * inW
		for kh := 0; kh < k; kh++ {
			for kw := 0; kw < k; kw++ {
				dst := cols[row*outSize : (row+1)*outSize]
				for oh := 0; oh < outH; oh++ {
					inRow := oh*c.stride + kh - c.padding
					ohOffset := oh * outW
					if inRow < 0 || inRow >= inH {
						for ow := 0; ow < outW; ow++ {
							dst[ohOffset+ow] = 0
						}
						continue
					}
					inHOffset := channelOffset + inRow*inW
					for ow := 0; ow < outW; ow++ {
						inCol := ow*c.stride + kw - c.padding
						if inCol >= 0 && inCol < inW {
							dst[ohOffset+ow] = input[inHOffset+inCol]
						} else {
							dst[ohOffset+ow] = 0
						}
					}
				}
				row++
			}
		}
	}
}

// Params returns the weight and bias views.
func (c *Conv2D) Params() []*Param {
	k := c.kernelSize
	return []*Param{
		newParam("weight", c.weights, c.outChannels, c.inChannels, k, k),
		newParam("bias", c.biases, c.outChannels),
	}
}

// InSize returns the number of input channels.
func (c *Conv2D) InSize() int {
	return c.inChannels
}

// OutSize returns the number of output channels.
func (c *Conv2D) OutSize() int {
	return c.outChannels
}

// SetWeight sets the weight at [oc, ic, kh, kw].
func (c *Conv2D) SetWeight(oc, ic, kh, kw int, val float64) {
	k := c.kernelSize
	c.weights[((oc*c.inChannels+ic)*k+kh)*k+kw] = val
}

// SetBias sets the bias of output channel oc.
func (c *Conv2D) SetBias(oc int, val float64) {
	c.biases[oc] = val
}

// GetKernelSize returns the kernel size.
func (c *Conv2D) GetKernelSize() int {
	return c.kernelSize
}

// GetStride returns the stride.
func (c *Conv2D) GetStride() int {
	return c.stride
}

// GetPadding returns the padding.
func (c *Conv2D) GetPadding() int {
	return c.padding
}
