package network

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"mrainet/pkg/pairs"
)

// Forward evaluates the distance head on every pair of the batch without
// touching the weights. Inference graphs carry no dropout.
func (n *Net) Forward(batch *pairs.Batch) ([]float64, error) {
	if n == nil || len(n.weights) == 0 {
		return nil, ErrNoModel
	}
	if batch.Len() == 0 {
		return nil, fmt.Errorf("network: empty pair batch")
	}

	count := batch.Len()
	idx := make([]int, count)
	for i := range idx {
		idx[i] = i
	}

	g := gorgonia.NewGraph()

	xA := gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(count, 1, n.params.PatchHeight, n.params.PatchWidth),
		gorgonia.WithValue(n.patchTensor(batch.A, idx, count)),
		gorgonia.WithName("xA"))
	xB := gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(count, 1, n.params.PatchHeight, n.params.PatchWidth),
		gorgonia.WithValue(n.patchTensor(batch.B, idx, count)),
		gorgonia.WithName("xB"))
	sidA := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(count, 1),
		gorgonia.WithValue(columnTensor(batch.ScannerA, idx)),
		gorgonia.WithName("sidA"))
	sidB := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(count, 1),
		gorgonia.WithValue(columnTensor(batch.ScannerB, idx)),
		gorgonia.WithName("sidB"))

	ws := n.weightNodes(g)
	dist := n.distance(n.tower(xA, sidA, ws, count, false), n.tower(xB, sidB, ws, count, false))

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()

	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("network: forward pass failed: %v", err)
	}

	out := make([]float64, count)
	copy(out, dist.Value().Data().([]float64))
	return out, nil
}

// Embed evaluates a single tower on a set of patches, all tagged with the
// same scanner identity, returning one embedding vector per patch.
func (n *Net) Embed(patches [][]float64, scannerID float64) ([][]float64, error) {
	if n == nil || len(n.weights) == 0 {
		return nil, ErrNoModel
	}
	if len(patches) == 0 {
		return nil, fmt.Errorf("network: no patches to embed")
	}

	count := len(patches)
	idx := make([]int, count)
	sid := make([]float64, count)
	for i := range idx {
		idx[i] = i
		sid[i] = scannerID
	}

	g := gorgonia.NewGraph()

	x := gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(count, 1, n.params.PatchHeight, n.params.PatchWidth),
		gorgonia.WithValue(n.patchTensor(patches, idx, count)),
		gorgonia.WithName("x"))
	sidNode := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(count, 1),
		gorgonia.WithValue(columnTensor(sid, idx)),
		gorgonia.WithName("sid"))

	ws := n.weightNodes(g)
	embedding := n.tower(x, sidNode, ws, count, false)

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()

	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("network: embedding pass failed: %v", err)
	}

	data := embedding.Value().Data().([]float64)
	size := n.params.EmbeddingSize
	out := make([][]float64, count)
	for i := range out {
		out[i] = make([]float64, size)
		copy(out[i], data[i*size:(i+1)*size])
	}
	return out, nil
}
