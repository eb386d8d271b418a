package network

import (
	"fmt"
	"io"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
)

type EpochDiagnostics struct {
	Epoch     int
	TrainLoss float64
	ValidLoss float64
}

// Report carries the training diagnostics of one Fit call.
type Report struct {
	Pairs   int
	History []EpochDiagnostics
}

func (r *Report) FinalTrainLoss() float64 {
	if len(r.History) == 0 {
		return math.NaN()
	}
	return r.History[len(r.History)-1].TrainLoss
}

func (r *Report) FinalValidLoss() float64 {
	if len(r.History) == 0 {
		return math.NaN()
	}
	return r.History[len(r.History)-1].ValidLoss
}

func (r *Report) Write(w io.Writer, title string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"EPOCH", "TRAIN LOSS", "VALID LOSS"})
	for _, e := range r.History {
		valid := "-"
		if !math.IsNaN(e.ValidLoss) {
			valid = fmt.Sprintf("%.6f", e.ValidLoss)
		}
		t.AppendRow(table.Row{e.Epoch + 1, fmt.Sprintf("%.6f", e.TrainLoss), valid})
	}
	t.AppendFooter(table.Row{"PAIRS", fmt.Sprintf("%d", r.Pairs), ""})
	t.Render()
}
