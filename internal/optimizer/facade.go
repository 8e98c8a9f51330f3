// Package optimizer implements the Optimizer Façade of spec.md §4.5: a
// single suggest()/report() contract over three interchangeable sampler
// back-ends (TPE, NSGA-III, random-forest surrogate). No Bayesian
// optimization, genetic-algorithm, or random-forest library is present
// anywhere in the retrieved example corpus, so every sampler here is a
// from-scratch implementation over stdlib math/rand — see DESIGN.md for
// the grounding ledger entry documenting that absence.
package optimizer

import (
	"fmt"
	"math/rand"

	"github.com/HariAbram/scout/internal/config"
	"github.com/HariAbram/scout/internal/space"
)

// PenaltySentinel is the magnitude used for infeasible-trial objective
// values, chosen large enough that any feasible trial dominates it on
// every objective (spec.md §4.5, "Penalty dominance").
const PenaltySentinel = 1e18

// Observation is one reported trial: its assignment, its raw objective
// vector (in declared order), and a goal-signed vector where every entry
// has been negated for "max" objectives so that "lower is better"
// uniformly holds — the form every sampler's internal math assumes.
type Observation struct {
	Assignment space.Assignment
	Raw        []float64
	Signed     []float64
	Feasible   bool
}

// Sampler is the capability every optimizer back-end implements (spec.md
// §9's "capability with suggest/report" framing). ChooseValue is only ever
// invoked for variables whose guard the Façade has already evaluated true
// — masking happens once, in Space.Suggest, never inside a Sampler.
type Sampler interface {
	ChooseValue(v *space.Variable, trialIndex int, history []Observation, rng *rand.Rand) string
	Report(obs Observation)
}

// Facade is the Orchestrator-facing optimizer: one Search Space, one
// sampler, and the running observation history.
type Facade struct {
	sp         *space.Space
	objectives []config.Objective
	sampler    Sampler
	rng        *rand.Rand
	history    []Observation
	trialIndex int
}

// New builds a Façade for the sampler named in search.Sampler ("tpe",
// "nsga3", or "rf").
func New(sp *space.Space, objectives []config.Objective, search config.SearchSpec) (*Facade, error) {
	seed := search.RandomSeed
	if seed == 0 {
		seed = 1
	}
	rng := rand.New(rand.NewSource(seed))

	var sampler Sampler
	switch search.Sampler {
	case "", "tpe":
		sampler = newTPESampler(search.WarmupTrials)
	case "nsga3":
		sampler = newNSGA3Sampler(sp, objectives, search.PopulationSize, rng)
	case "rf":
		sampler = newRFSampler(sp, search.WarmupTrials, rng)
	default:
		return nil, fmt.Errorf("unknown sampler %q", search.Sampler)
	}

	return &Facade{sp: sp, objectives: objectives, sampler: sampler, rng: rng}, nil
}

// Suggest produces the next Assignment, masking every guarded-inactive
// variable before the sampler is ever consulted for it.
func (f *Facade) Suggest() space.Assignment {
	a := f.sp.Suggest(space.Assignment{}, func(v *space.Variable) string {
		return f.sampler.ChooseValue(v, f.trialIndex, f.history, f.rng)
	})
	f.trialIndex++
	return a
}

// Report records a completed trial's objective vector, applying the
// declared goal signs before handing the observation to the sampler.
func (f *Facade) Report(a space.Assignment, objectiveValues []float64) {
	signed := f.signObjectives(objectiveValues)
	obs := Observation{Assignment: a, Raw: objectiveValues, Signed: signed, Feasible: true}
	f.history = append(f.history, obs)
	f.sampler.Report(obs)
}

// ReportInfeasible records a penalized trial: a vector that is dominated
// by any feasible trial on every objective, per spec.md §4.5.
func (f *Facade) ReportInfeasible(a space.Assignment) {
	raw := make([]float64, len(f.objectives))
	for i, o := range f.objectives {
		if o.Goal == "max" {
			raw[i] = -PenaltySentinel
		} else {
			raw[i] = PenaltySentinel
		}
	}
	signed := f.signObjectives(raw)
	obs := Observation{Assignment: a, Raw: raw, Signed: signed, Feasible: false}
	f.history = append(f.history, obs)
	f.sampler.Report(obs)
}

// Seed replays a prior archive's completed trials through Report/
// ReportInfeasible, used by `scout run --resume` to re-seed the optimizer
// state (spec.md §9's resumption decision, see SPEC_FULL.md §10.2).
func (f *Facade) Seed(assignment space.Assignment, objectiveValues []float64, feasible bool) {
	if feasible {
		f.Report(assignment, objectiveValues)
	} else {
		f.ReportInfeasible(assignment)
	}
}

func (f *Facade) signObjectives(raw []float64) []float64 {
	signed := make([]float64, len(raw))
	for i, v := range raw {
		if i < len(f.objectives) && f.objectives[i].Goal == "max" {
			signed[i] = -v
		} else {
			signed[i] = v
		}
	}
	return signed
}

// Dominates reports whether a strictly dominates b in the signed
// (minimize-everything) space: no worse on every objective, strictly
// better on at least one.
func Dominates(a, b []float64) bool {
	betterAny := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			betterAny = true
		}
	}
	return betterAny
}

// ParetoFront returns the indices of observations not dominated by any
// other observation in obs.
func ParetoFront(obs []Observation) []int {
	var front []int
	for i := range obs {
		dominated := false
		for j := range obs {
			if i == j {
				continue
			}
			if Dominates(obs[j].Signed, obs[i].Signed) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, i)
		}
	}
	return front
}

// uniformChoice picks a uniformly random domain value, the shared
// warm-up/fallback behavior of every sampler below.
func uniformChoice(v *space.Variable, rng *rand.Rand) string {
	return v.Domain[rng.Intn(len(v.Domain))]
}

// domainIndex returns the index of value within v.Domain, or -1.
func domainIndex(v *space.Variable, value string) int {
	for i, d := range v.Domain {
		if d == value {
			return i
		}
	}
	return -1
}

func isInactiveOrMissing(value string, ok bool) bool {
	return !ok || value == space.Inactive
}
