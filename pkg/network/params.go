package network

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Params holds the shape, architecture and optimisation configuration of a
// twin-tower embedding network.
type Params struct {
	PatchHeight int
	PatchWidth  int
	Classes     []float64

	NumKernels    []int
	KernelSizes   [][2]int
	DenseSizes    []int
	EmbeddingSize int

	DropoutRate  float64
	L2Penalty    float64
	Margin       float64
	LearnRate    float64
	DistanceNorm string

	BatchSize       int
	Epochs          int
	ValidationSplit float64
}

func NewParamsFromDefaults() Params {
	return Params{
		PatchHeight: PatchHeight(),
		PatchWidth:  PatchWidth(),
		Classes:     Classes(),

		NumKernels:    []int{8},
		KernelSizes:   [][2]int{{3, 3}},
		DenseSizes:    []int{16, 8},
		EmbeddingSize: EmbeddingSize(),

		DropoutRate:  DropoutRate(),
		L2Penalty:    L2Penalty(),
		Margin:       Margin(),
		LearnRate:    LearnRate(),
		DistanceNorm: DistanceNorm(),

		BatchSize:       BatchSize(),
		Epochs:          Epochs(),
		ValidationSplit: ValidationSplit(),
	}
}

func (p *Params) Write(w io.Writer, title string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendRows([]table.Row{
		{"MRAI_PATCH_HEIGHT", fmt.Sprintf("%d", p.PatchHeight)},
		{"MRAI_PATCH_WIDTH", fmt.Sprintf("%d", p.PatchWidth)},
		{"MRAI_CLASSES", formatClasses(p.Classes)},
		{"MRAI_EMBEDDING_SIZE", fmt.Sprintf("%d", p.EmbeddingSize)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"MRAI_DROPOUT_RATE", fmt.Sprintf("%.06f", p.DropoutRate)},
		{"MRAI_L2_PENALTY", fmt.Sprintf("%.06f", p.L2Penalty)},
		{"MRAI_MARGIN", fmt.Sprintf("%.04f", p.Margin)},
		{"MRAI_LEARN_RATE", fmt.Sprintf("%.06f", p.LearnRate)},
		{"MRAI_DISTANCE_NORM", p.DistanceNorm},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"MRAI_BATCH_SIZE", fmt.Sprintf("%d", p.BatchSize)},
		{"MRAI_EPOCHS", fmt.Sprintf("%d", p.Epochs)},
		{"MRAI_VALIDATION_SPLIT", fmt.Sprintf("%.04f", p.ValidationSplit)},
	})
	t.Render()
}

func formatClasses(classes []float64) string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = strconv.FormatFloat(c, 'g', -1, 64)
	}
	return strings.Join(out, ",")
}

func envInt(name string, def func() int, dec func(v int) int) func() int {
	return func() int {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			if v, err := strconv.ParseInt(v, 10, 32); err != nil {
				log.Fatalf("failed to parse env.%s: %v", name, err)
			} else {
				value = int(v)
			}
		}
		return dec(value)
	}
}

func envFloat64(name string, def func() float64, dec func(v float64) float64) func() float64 {
	return func() float64 {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			if v, err := strconv.ParseFloat(v, 64); err != nil {
				log.Fatalf("failed to parse env.%s: %v", name, err)
			} else {
				value = v
			}
		}
		return dec(value)
	}
}

func envString(name string, def func() string) func() string {
	return func() string {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			value = v
		}
		return value
	}
}

func envFloats(name string, def func() []float64) func() []float64 {
	return func() []float64 {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			parts := strings.Split(v, ",")
			parsed := make([]float64, len(parts))
			for i, part := range parts {
				if f, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err != nil {
					log.Fatalf("failed to parse env.%s: %v", name, err)
				} else {
					parsed[i] = f
				}
			}
			value = parsed
		}
		return value
	}
}

var (
	PatchHeight = envInt("MRAI_PATCH_HEIGHT", func() int { return 31 }, BoundPatchDim)
	PatchWidth  = envInt("MRAI_PATCH_WIDTH", func() int { return 31 }, BoundPatchDim)
	Classes     = envFloats("MRAI_CLASSES", func() []float64 { return []float64{1, 2, 3} })

	EmbeddingSize = envInt("MRAI_EMBEDDING_SIZE", func() int { return 2 }, BoundEmbeddingSize)
)

var (
	NumDraw    = envInt("MRAI_NUM_DRAW", func() int { return 10 }, BoundNumDraw)
	NumTargets = envInt("MRAI_NUM_TARGETS", func() int { return 1 }, BoundNumTargets)
)

var (
	DropoutRate  = envFloat64("MRAI_DROPOUT_RATE", func() float64 { return 0.1 }, BoundDropoutRate)
	L2Penalty    = envFloat64("MRAI_L2_PENALTY", func() float64 { return 0.001 }, BoundL2Penalty)
	Margin       = envFloat64("MRAI_MARGIN", func() float64 { return 1.0 }, BoundMargin)
	LearnRate    = envFloat64("MRAI_LEARN_RATE", func() float64 { return 0.001 }, BoundLearnRate)
	DistanceNorm = envString("MRAI_DISTANCE_NORM", func() string { return NormL1 })
)

var (
	BatchSize       = envInt("MRAI_BATCH_SIZE", func() int { return 32 }, BoundBatchSize)
	Epochs          = envInt("MRAI_EPOCHS", func() int { return 1 }, BoundEpochs)
	ValidationSplit = envFloat64("MRAI_VALIDATION_SPLIT", func() float64 { return 0.1 }, BoundValidationSplit)
)
