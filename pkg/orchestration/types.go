package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/specdrive/specdrive/pkg/gates"
	"github.com/specdrive/specdrive/pkg/provider"
	"github.com/specdrive/specdrive/pkg/review"
	"github.com/specdrive/specdrive/pkg/runstate"
	"github.com/specdrive/specdrive/pkg/scope"
	"github.com/specdrive/specdrive/pkg/spec"
	"github.com/specdrive/specdrive/pkg/utils"
)

// RunOptions are the caller-supplied knobs for one pipeline run.
type RunOptions struct {
	// BaseDir is where run directories are created.
	BaseDir string
	// WorkTree is the root the patch phase applies diffs under.
	WorkTree string
	SkipReview bool
	SkipTests  bool
	// DryRun verifies patches without writing them.
	DryRun bool
	// AtomicAcrossFiles makes multi-file patches all-or-nothing across
	// files, not just per file.
	AtomicAcrossFiles bool
	// PhaseTimeout bounds each provider call; exceeding it is a
	// transient failure, not a pipeline cancellation.
	PhaseTimeout time.Duration
	// MaxContextFiles caps workspace files included in prompts.
	MaxContextFiles int
}

// RunContext carries everything a phase may read or produce. One
// RunContext exists per run; phases execute strictly one at a time, so
// no locking is needed.
type RunContext struct {
	Spec     *spec.Specification
	SpecPath string
	SpecHash string
	RunID    string
	RunDir   string
	State    *runstate.RunState
	Options  RunOptions

	Gateway provider.Gateway
	Logger  *utils.Logger

	// Results produced by earlier phases.
	GateResults map[string]gates.GateResult
	Assessment  *scope.Assessment
	Review      *review.Report
	// Diffs holds unified-diff text produced by generation phases, keyed
	// by the producing phase name.
	Diffs map[string]string
}

// Phase is one named, orderable unit of pipeline execution. The contract
// is validated eagerly at registration: a phase with an empty name, nil
// Run or nil Outputs is rejected immediately, not at call time.
type Phase struct {
	Name      string
	DependsOn []string
	// Outputs names the artifacts the phase produces (may be empty but
	// never nil).
	Outputs []string
	// Applies decides applicability against skip flags and the spec's
	// complexity/maturity. nil means always applicable.
	Applies func(rc *RunContext) bool
	Run     func(ctx context.Context, rc *RunContext) error
}

// Registry holds the fixed, partially ordered phase set.
type Registry struct {
	phases []Phase
	byName map[string]int
}

// NewRegistry creates an empty phase registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]int{}}
}

// Register validates the phase contract and adds the phase. Dependency
// names are checked against already-registered phases, which forces
// registration in dependency order and keeps the set acyclic.
func (r *Registry) Register(p Phase) error {
	if p.Name == "" {
		return fmt.Errorf("phase has no name")
	}
	if p.Run == nil {
		return fmt.Errorf("phase %s has no run function", p.Name)
	}
	if p.Outputs == nil {
		return fmt.Errorf("phase %s has nil outputs; declare an empty list", p.Name)
	}
	if _, exists := r.byName[p.Name]; exists {
		return fmt.Errorf("phase %s is already registered", p.Name)
	}
	for _, dep := range p.DependsOn {
		if _, ok := r.byName[dep]; !ok {
			return fmt.Errorf("phase %s depends on unregistered phase %s", p.Name, dep)
		}
	}
	r.byName[p.Name] = len(r.phases)
	r.phases = append(r.phases, p)
	return nil
}

// MustRegister panics on a contract violation. Used for the built-in
// pipeline whose shape is fixed at compile time.
func (r *Registry) MustRegister(p Phase) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Phases returns the registered phases in dependency order. Because
// Register rejects forward references, registration order is already a
// valid topological order.
func (r *Registry) Phases() []Phase {
	out := make([]Phase, len(r.phases))
	copy(out, r.phases)
	return out
}

// Lookup returns a registered phase by name.
func (r *Registry) Lookup(name string) (Phase, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return Phase{}, false
	}
	return r.phases[idx], true
}
