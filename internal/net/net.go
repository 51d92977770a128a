// Package net provides containers that compose layers into networks.
package net

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/FlavioCFOliveira/LightCNN/internal/layer"
	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// ModulePrefix is prepended to parameter names of a wrapped module, matching
// checkpoints saved from a data-parallel wrapper.
const ModulePrefix = "module"

// Parallel runs a module over chunks of the batch concurrently. The module
// is shared between workers, so it must not mutate state in Forward.
type Parallel struct {
	module  layer.Layer
	workers int
}

// NewParallel wraps module. workers <= 0 uses one worker per CPU.
func NewParallel(module layer.Layer, workers int) *Parallel {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Parallel{module: module, workers: workers}
}

// Module returns the wrapped module.
func (p *Parallel) Module() layer.Layer {
	return p.module
}

// Workers returns the maximum number of concurrent chunks.
func (p *Parallel) Workers() int {
	return p.workers
}

// Forward splits x along dimension 0, runs each chunk on its own goroutine
// and concatenates the results in order. A panic in any worker is re-raised
// on the calling goroutine.
func (p *Parallel) Forward(x *tensor.Tensor) *tensor.Tensor {
	batchSize := x.Dim(0)
	numWorkers := min(batchSize, p.workers)
	if numWorkers <= 1 {
		return p.module.Forward(x)
	}

	chunkSize := (batchSize + numWorkers - 1) / numWorkers
	numChunks := (batchSize + chunkSize - 1) / chunkSize
	outputs := make([]*tensor.Tensor, numChunks)
	panics := make([]any, numChunks)

	var wg sync.WaitGroup
	worker := func(i, start, end int) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				panics[i] = r
			}
		}()
		outputs[i] = p.module.Forward(x.Batch(start, end))
	}

	for i := 0; i < numChunks; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, batchSize)
		wg.Add(1)
		go worker(i, start, end)
	}
	wg.Wait()

	for _, r := range panics {
		if r != nil {
			panic(r)
		}
	}

	out, err := tensor.Concat(outputs...)
	if err != nil {
		panic(fmt.Sprintf("Parallel: %v", err))
	}
	return out
}

// Params returns the wrapped module's parameters under "module.".
func (p *Parallel) Params() []*layer.Param {
	return layer.Prefix(ModulePrefix, p.module.Params())
}
