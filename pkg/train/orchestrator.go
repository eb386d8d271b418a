package train

import (
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/jedib0t/go-pretty/v6/progress"
	"gonum.org/v1/gonum/mat"

	"mrainet/pkg/network"
	"mrainet/pkg/pairs"
	"mrainet/pkg/sparse"
)

// State tracks where the orchestrator is in its subject loops.
type State int

const (
	StateIdle State = iota
	StateSourceSubjectLoop
	StateTargetSubjectLoop
	StateCrossSourcePair
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSourceSubjectLoop:
		return "source-subject-loop"
	case StateTargetSubjectLoop:
		return "target-subject-loop"
	case StateCrossSourcePair:
		return "cross-source-pair"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Fitter is the slice of the embedding network the orchestrator drives.
type Fitter interface {
	Fit(pw progress.Writer, batch *pairs.Batch, opts network.FitOptions) (*network.Report, error)
}

// Subject is one scanned slice together with its label image. Label
// images may contain NaN where the tissue class is unknown.
type Subject struct {
	Image  *mat.Dense
	Labels *mat.Dense
}

// FitResult describes one completed fit call. TargetSubject is -1 for the
// cross-source pairing.
type FitResult struct {
	SourceSubject int
	TargetSubject int
	CrossSource   bool
	Pairs         int
	Report        *network.Report
}

// Orchestrator walks every (source subject, target subject) combination,
// sampling a pair batch and fitting the network on each, then pairs each
// source subject against one other randomly chosen source subject. Any
// error aborts the run; nothing is retried.
type Orchestrator struct {
	Net     Fitter
	Sampler *pairs.Sampler

	NumDraw    int
	NumTargets int
	Fit        network.FitOptions

	// SkipDegenerate skips subject pairs whose label maps share fewer
	// than two classes instead of training on a similar-only batch.
	SkipDegenerate bool

	Rand *rand.Rand

	// OnFit, when set, observes every completed fit call.
	OnFit func(FitResult)

	state State
}

func (o *Orchestrator) State() State { return o.state }

// Train runs the full training schedule over all subjects.
func (o *Orchestrator) Train(pw progress.Writer, source, target []Subject) error {
	o.state = StateSourceSubjectLoop
	defer func() {
		if o.state != StateDone {
			o.state = StateIdle
		}
	}()

	for i := range source {
		log.Printf("at source subject %d/%d", i+1, len(source))

		srcMap, err := sparse.Build(source[i].Labels, [2]int{0, 0}, true)
		if err != nil {
			return fmt.Errorf("source subject %d: %w", i, err)
		}

		o.state = StateTargetSubjectLoop
		for j := range target {
			tgtMap, err := sparse.Build(target[j].Labels, [2]int{0, 0}, true)
			if err != nil {
				return fmt.Errorf("target subject %d: %w", j, err)
			}
			if o.NumTargets > len(tgtMap) {
				return fmt.Errorf("source subject %d, target subject %d: %w: %d targets requested, %d labels available",
					i, j, pairs.ErrInsufficientLabels, o.NumTargets, len(tgtMap))
			}
			if o.skip(srcMap, tgtMap) {
				log.Printf("skipping target subject %d: fewer than two shared classes", j)
				continue
			}

			batch, err := o.Sampler.Sample(source[i].Image, srcMap, target[j].Image, tgtMap, o.NumDraw, o.NumTargets)
			if err != nil {
				return fmt.Errorf("source subject %d, target subject %d: %w", i, j, err)
			}
			report, err := o.Net.Fit(pw, batch, o.Fit)
			if err != nil {
				return fmt.Errorf("source subject %d, target subject %d: fit: %w", i, j, err)
			}
			o.notify(FitResult{SourceSubject: i, TargetSubject: j, Pairs: batch.Len(), Report: report})
		}

		if len(source) > 1 {
			o.state = StateCrossSourcePair
			other := o.pickOtherSource(i, len(source))

			otherMap, err := sparse.Build(source[other].Labels, [2]int{0, 0}, true)
			if err != nil {
				return fmt.Errorf("source subject %d: %w", other, err)
			}
			if o.skip(srcMap, otherMap) {
				log.Printf("skipping cross-source pair %d-%d: fewer than two shared classes", i, other)
				o.state = StateSourceSubjectLoop
				continue
			}

			batch, err := o.Sampler.Sample(source[i].Image, srcMap, source[other].Image, otherMap, o.NumDraw, o.NumDraw)
			if err != nil {
				return fmt.Errorf("cross-source pair %d-%d: %w", i, other, err)
			}
			report, err := o.Net.Fit(pw, batch, o.Fit)
			if err != nil {
				return fmt.Errorf("cross-source pair %d-%d: fit: %w", i, other, err)
			}
			o.notify(FitResult{SourceSubject: i, TargetSubject: -1, CrossSource: true, Pairs: batch.Len(), Report: report})
		}

		o.state = StateSourceSubjectLoop
	}

	o.state = StateDone
	log.Printf("training complete")
	return nil
}

func (o *Orchestrator) skip(a, b sparse.Map) bool {
	return o.SkipDegenerate && len(a.Intersect(b)) < 2
}

// pickOtherSource draws one subject index uniformly from all source
// subjects except current.
func (o *Orchestrator) pickOtherSource(current, count int) int {
	other := o.Rand.IntN(count - 1)
	if other >= current {
		other++
	}
	return other
}

func (o *Orchestrator) notify(r FitResult) {
	if o.OnFit != nil {
		o.OnFit(r)
	}
}
