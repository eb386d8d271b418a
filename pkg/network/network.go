package network

import (
	"errors"
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var ErrNoModel = errors.New("network: no model compiled")

// Distance norms between the two tower embeddings.
const (
	NormL1 = "l1"
	NormL2 = "l2"
)

// Net is a twin-tower convolutional embedding network. Both towers share
// one weight set: a conv+pool+dropout stack followed by a dense stack that
// also consumes the patch's scanner identity. The distance head is a norm
// (L1 unless configured otherwise) between the two tower embeddings,
// trained with a margin-based contrastive loss.
//
// The weight tensors are the only persistent mutable state; Fit mutates
// them sequentially and nothing else does.
type Net struct {
	params  Params
	weights []tensor.Tensor
}

// New validates params and compiles a network with freshly initialised
// weights.
func New(params Params) (*Net, error) {
	if params.PatchHeight < 1 || params.PatchWidth < 1 {
		return nil, fmt.Errorf("network: non-positive patch size %dx%d", params.PatchHeight, params.PatchWidth)
	}
	if len(params.NumKernels) < 1 || len(params.DenseSizes) < 1 {
		return nil, fmt.Errorf("network: too few layers specified")
	}
	if len(params.KernelSizes) != len(params.NumKernels) {
		return nil, fmt.Errorf("network: %d kernel sizes for %d conv layers", len(params.KernelSizes), len(params.NumKernels))
	}
	if params.EmbeddingSize < 1 {
		return nil, fmt.Errorf("network: non-positive embedding size %d", params.EmbeddingSize)
	}
	if h, w, _ := params.convOutput(); h < 1 || w < 1 {
		return nil, fmt.Errorf("network: patch %dx%d too small for the conv stack", params.PatchHeight, params.PatchWidth)
	}
	switch params.DistanceNorm {
	case "", NormL1, NormL2:
	default:
		return nil, fmt.Errorf("network: unknown distance norm %q", params.DistanceNorm)
	}

	return &Net{params: params, weights: initWeights(params)}, nil
}

func (n *Net) Params() Params { return n.params }

// convOutput computes the spatial shape and channel count coming out of
// the conv stack: valid convolutions followed by valid 2x2 max pooling.
func (p Params) convOutput() (h, w, ch int) {
	h, w, ch = p.PatchHeight, p.PatchWidth, 1
	for i, k := range p.NumKernels {
		h = (h - p.KernelSizes[i][0] + 1) / 2
		w = (w - p.KernelSizes[i][1] + 1) / 2
		ch = k
	}
	return h, w, ch
}

// initWeights allocates conv filters, dense weights and the final
// embedding projection, in tower order. The first dense layer takes the
// flattened conv output plus the scanner-id scalar.
func initWeights(p Params) []tensor.Tensor {
	ws := []tensor.Tensor{}

	ch := 1
	for i, k := range p.NumKernels {
		shape := tensor.Shape{k, ch, p.KernelSizes[i][0], p.KernelSizes[i][1]}
		ws = append(ws, tensor.New(
			tensor.WithShape(shape...),
			tensor.WithBacking(gorgonia.Gaussian(0, 0.08)(tensor.Float64, shape...))))
		ch = k
	}

	h, w, c := p.convOutput()
	in := c*h*w + 1
	sizes := append(append([]int{}, p.DenseSizes...), p.EmbeddingSize)
	for _, out := range sizes {
		ws = append(ws, tensor.New(
			tensor.WithShape(in, out),
			tensor.WithBacking(gorgonia.GlorotN(1.0)(tensor.Float64, in, out))))
		in = out
	}

	return ws
}

// weightNodes lifts the stored weight tensors into graph nodes. The same
// nodes back both towers, which is what makes the towers share weights.
func (n *Net) weightNodes(g *gorgonia.ExprGraph) []*gorgonia.Node {
	nodes := make([]*gorgonia.Node, len(n.weights))
	for i, w := range n.weights {
		if w.Shape().Dims() == 4 {
			nodes[i] = gorgonia.NewTensor(g, tensor.Float64, 4,
				gorgonia.WithShape(w.Shape()...),
				gorgonia.WithValue(w),
				gorgonia.WithName(fmt.Sprintf("w%d", i)))
		} else {
			nodes[i] = gorgonia.NewMatrix(g, tensor.Float64,
				gorgonia.WithShape(w.Shape()...),
				gorgonia.WithValue(w),
				gorgonia.WithName(fmt.Sprintf("w%d", i)))
		}
	}
	return nodes
}

// tower builds one tower of the network: conv stack, flatten, scanner-id
// concat, dense stack, linear embedding projection. Dropout layers are
// only present in training graphs.
func (n *Net) tower(x, sid *gorgonia.Node, ws []*gorgonia.Node, batch int, train bool) *gorgonia.Node {
	numConv := len(n.params.NumKernels)

	for i := 0; i < numConv; i++ {
		ks := n.params.KernelSizes[i]
		c := gorgonia.Must(gorgonia.Conv2d(x, ws[i], tensor.Shape{ks[0], ks[1]}, []int{0, 0}, []int{1, 1}, []int{1, 1}))
		a := gorgonia.Must(gorgonia.Rectify(c))
		p := gorgonia.Must(gorgonia.MaxPool2D(a, tensor.Shape{2, 2}, []int{0, 0}, []int{2, 2}))
		if train && n.params.DropoutRate > 0 {
			p = gorgonia.Must(gorgonia.Dropout(p, n.params.DropoutRate))
		}
		x = p
	}

	h, w, ch := n.params.convOutput()
	flat := gorgonia.Must(gorgonia.Reshape(x, tensor.Shape{batch, ch * h * w}))
	out := gorgonia.Must(gorgonia.Concat(1, flat, sid))

	for i := range n.params.DenseSizes {
		if train && i > 0 && n.params.DropoutRate > 0 {
			out = gorgonia.Must(gorgonia.Dropout(out, n.params.DropoutRate))
		}
		out = gorgonia.Must(gorgonia.Rectify(gorgonia.Must(gorgonia.Mul(out, ws[numConv+i]))))
	}

	return gorgonia.Must(gorgonia.Mul(out, ws[numConv+len(n.params.DenseSizes)]))
}

// distance is the norm of the difference between the two tower
// embeddings, one value per pair. An empty DistanceNorm means L1.
func (n *Net) distance(ea, eb *gorgonia.Node) *gorgonia.Node {
	diff := gorgonia.Must(gorgonia.Sub(ea, eb))
	if n.params.DistanceNorm == NormL2 {
		sq := gorgonia.Must(gorgonia.Square(diff))
		return gorgonia.Must(gorgonia.Sqrt(gorgonia.Must(gorgonia.Sum(sq, 1))))
	}
	return gorgonia.Must(gorgonia.Sum(gorgonia.Must(gorgonia.Abs(diff)), 1))
}

// contrastiveLoss is s*d^2 + (1-s)*max(margin-d, 0) summed over the batch,
// plus L2 regularisation over the weights: similar pairs are pulled
// together quadratically, dissimilar pairs pushed apart until the margin.
func (n *Net) contrastiveLoss(s, dist *gorgonia.Node, ws []*gorgonia.Node) *gorgonia.Node {
	simTerm := gorgonia.Must(gorgonia.HadamardProd(s, gorgonia.Must(gorgonia.Square(dist))))

	hinge := gorgonia.Must(gorgonia.Rectify(
		gorgonia.Must(gorgonia.Sub(gorgonia.NewConstant(n.params.Margin), dist))))
	disTerm := gorgonia.Must(gorgonia.HadamardProd(
		gorgonia.Must(gorgonia.Sub(gorgonia.NewConstant(1.0), s)), hinge))

	loss := gorgonia.Must(gorgonia.Sum(gorgonia.Must(gorgonia.Add(simTerm, disTerm))))

	if n.params.L2Penalty > 0 {
		for _, w := range ws {
			reg := gorgonia.Must(gorgonia.Mul(
				gorgonia.NewConstant(n.params.L2Penalty),
				gorgonia.Must(gorgonia.Mean(gorgonia.Must(gorgonia.Square(w))))))
			loss = gorgonia.Must(gorgonia.Add(loss, reg))
		}
	}

	return loss
}
