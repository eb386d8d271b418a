package network

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/jedib0t/go-pretty/v6/progress"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"mrainet/pkg/pairs"
)

// NoValidation requests an explicit zero validation split, since a zero
// ValidationSplit falls back to the network's params.
const NoValidation = -1.0

// FitOptions configures one training call. Zero fields fall back to the
// network's params; use NoValidation to hold out no pairs at all.
type FitOptions struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	Shuffle         bool
}

func (n *Net) fitOptions(o FitOptions) FitOptions {
	if o.Epochs == 0 {
		o.Epochs = n.params.Epochs
	}
	if o.BatchSize == 0 {
		o.BatchSize = n.params.BatchSize
	}
	if o.ValidationSplit == 0 {
		o.ValidationSplit = n.params.ValidationSplit
	}
	if o.ValidationSplit < 0 {
		o.ValidationSplit = 0
	}
	return o
}

// Fit runs contrastive training over the pair batch, mutating the
// network's weights in place. Pairs are split into a training and a
// validation portion; both losses are recorded per epoch.
func (n *Net) Fit(pw progress.Writer, batch *pairs.Batch, opts FitOptions) (*Report, error) {
	if n == nil || len(n.weights) == 0 {
		return nil, ErrNoModel
	}
	if batch.Len() == 0 {
		return nil, fmt.Errorf("network: empty pair batch")
	}
	opts = n.fitOptions(opts)

	total := batch.Len()
	validationSize := int(float64(total) * opts.ValidationSplit)
	trainSize := total - validationSize

	indices := make([]int, total)
	for i := range indices {
		indices[i] = i
	}
	if opts.Shuffle {
		indices = rand.Perm(total)
	}
	trainIndices := indices[:trainSize]
	validIndices := indices[trainSize:]

	batchSize := opts.BatchSize
	if batchSize > trainSize {
		batchSize = trainSize
	}

	g := gorgonia.NewGraph()

	xA := gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(batchSize, 1, n.params.PatchHeight, n.params.PatchWidth),
		gorgonia.WithName("xA"))
	xB := gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(batchSize, 1, n.params.PatchHeight, n.params.PatchWidth),
		gorgonia.WithName("xB"))
	sidA := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(batchSize, 1),
		gorgonia.WithName("sidA"))
	sidB := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(batchSize, 1),
		gorgonia.WithName("sidB"))
	y := gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(batchSize),
		gorgonia.WithName("y"))

	ws := n.weightNodes(g)

	embedA := n.tower(xA, sidA, ws, batchSize, true)
	embedB := n.tower(xB, sidB, ws, batchSize, true)
	dist := n.distance(embedA, embedB)
	loss := n.contrastiveLoss(y, dist, ws)

	if _, err := gorgonia.Grad(loss, ws...); err != nil {
		return nil, fmt.Errorf("network: failed to compute gradients: %v", err)
	}

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()

	solver := gorgonia.NewRMSPropSolver(gorgonia.WithLearnRate(n.params.LearnRate))

	var tracker *progress.Tracker
	if pw != nil {
		tracker = &progress.Tracker{
			Message: "Fitting pairs",
			Total:   int64(opts.Epochs),
			Units:   progress.UnitsDefault,
		}
		pw.AppendTracker(tracker)
		tracker.Start()
	}

	runBatch := func(batchIndices []int, step bool) (float64, error) {
		if err := gorgonia.Let(xA, n.patchTensor(batch.A, batchIndices, batchSize)); err != nil {
			return 0, fmt.Errorf("network: failed to update xA: %v", err)
		}
		if err := gorgonia.Let(xB, n.patchTensor(batch.B, batchIndices, batchSize)); err != nil {
			return 0, fmt.Errorf("network: failed to update xB: %v", err)
		}
		if err := gorgonia.Let(sidA, columnTensor(batch.ScannerA, batchIndices)); err != nil {
			return 0, fmt.Errorf("network: failed to update sidA: %v", err)
		}
		if err := gorgonia.Let(sidB, columnTensor(batch.ScannerB, batchIndices)); err != nil {
			return 0, fmt.Errorf("network: failed to update sidB: %v", err)
		}
		if err := gorgonia.Let(y, vectorTensor(batch.S, batchIndices)); err != nil {
			return 0, fmt.Errorf("network: failed to update y: %v", err)
		}

		vm.Reset()
		if err := vm.RunAll(); err != nil {
			return 0, fmt.Errorf("network: forward/backward pass failed: %v", err)
		}
		if step {
			solver.Step(gorgonia.NodesToValueGrads(gorgonia.Nodes(ws)))
		}
		return loss.Value().Data().(float64), nil
	}

	report := &Report{Pairs: total}

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if tracker != nil {
			tracker.SetValue(int64(epoch))
		}

		trainLoss := 0.0
		batches := trainSize / batchSize
		for b := 0; b < batches; b++ {
			l, err := runBatch(trainIndices[b*batchSize:(b+1)*batchSize], true)
			if err != nil {
				return nil, err
			}
			trainLoss += l
		}

		validLoss := math.NaN()
		validBatches := validationSize / batchSize
		if validBatches > 0 {
			validLoss = 0.0
			for b := 0; b < validBatches; b++ {
				l, err := runBatch(validIndices[b*batchSize:(b+1)*batchSize], false)
				if err != nil {
					return nil, err
				}
				validLoss += l
			}
			validLoss /= float64(validBatches)
		}

		report.History = append(report.History, EpochDiagnostics{
			Epoch:     epoch,
			TrainLoss: trainLoss / math.Max(float64(batches), 1),
			ValidLoss: validLoss,
		})

		if epoch%5 == 4 {
			runtime.GC()
		}
	}

	for i, w := range ws {
		n.weights[i] = w.Value().(tensor.Tensor).Clone().(tensor.Tensor)
	}

	if tracker != nil {
		tracker.MarkAsDone()
	}

	return report, nil
}

// patchTensor packs the indexed patches into a (batch, 1, H, W) tensor.
func (n *Net) patchTensor(patches [][]float64, idx []int, batchSize int) tensor.Tensor {
	area := n.params.PatchHeight * n.params.PatchWidth
	backing := make([]float64, batchSize*area)
	for i, j := range idx {
		copy(backing[i*area:], patches[j])
	}
	return tensor.New(
		tensor.WithShape(batchSize, 1, n.params.PatchHeight, n.params.PatchWidth),
		tensor.WithBacking(backing))
}

func columnTensor(vals []float64, idx []int) tensor.Tensor {
	backing := make([]float64, len(idx))
	for i, j := range idx {
		backing[i] = vals[j]
	}
	return tensor.New(tensor.WithShape(len(idx), 1), tensor.WithBacking(backing))
}

func vectorTensor(vals []float64, idx []int) tensor.Tensor {
	backing := make([]float64, len(idx))
	for i, j := range idx {
		backing[i] = vals[j]
	}
	return tensor.New(tensor.WithShape(len(idx)), tensor.WithBacking(backing))
}
