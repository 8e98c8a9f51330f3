package optimizer

import (
	"math/rand"

	"github.com/HariAbram/scout/internal/space"
)

// tpeSampler is a tree-structured Parzen estimator over categorical
// domains: history is split into a "good" quantile and the rest, and each
// candidate value is scored by how much more often it appears among the
// good observations than among the others, à la Optuna's TPESampler
// (original_source/src/explore.py selects optuna.samplers.TPESampler for
// the "tpe" study; no Go TPE implementation exists in the example corpus,
// so the estimator itself is reimplemented from scratch here).
type tpeSampler struct {
	warmup int
	gamma  float64 // quantile fraction treated as "good"
}

func newTPESampler(warmup int) *tpeSampler {
	if warmup <= 0 {
		warmup = 10
	}
	return &tpeSampler{warmup: warmup, gamma: 0.25}
}

func (t *tpeSampler) ChooseValue(v *space.Variable, trialIndex int, history []Observation, rng *rand.Rand) string {
	if len(v.Domain) == 1 {
		return v.Domain[0]
	}
	relevant := relevantObservations(v, history)
	if len(relevant) < t.warmup {
		return uniformChoice(v, rng)
	}

	good, bad := splitByQuantile(relevant, t.gamma)

	bestScore := -1.0
	best := v.Domain[0]
	ties := []string{}
	for _, candidate := range v.Domain {
		score := likelihoodRatio(candidate, good, bad, len(v.Domain))
		if score > bestScore {
			bestScore = score
			best = candidate
			ties = ties[:0]
			ties = append(ties, candidate)
		} else if score == bestScore {
			ties = append(ties, candidate)
		}
	}
	if len(ties) > 1 {
		return ties[rng.Intn(len(ties))]
	}
	return best
}

func (t *tpeSampler) Report(obs Observation) {
	// Stateless beyond the history the Façade already retains; nothing to do.
}

// relevantObservations returns the (value, signed-objective-0) pairs for
// every history entry where v was active.
type tpeSample struct {
	value string
	score float64
}

func relevantObservations(v *space.Variable, history []Observation) []tpeSample {
	var out []tpeSample
	for _, obs := range history {
		val, ok := obs.Assignment[v.Name]
		if isInactiveOrMissing(val, ok) || len(obs.Signed) == 0 {
			continue
		}
		out = append(out, tpeSample{value: val, score: obs.Signed[0]})
	}
	return out
}

// splitByQuantile partitions samples into the lowest-scoring gamma
// fraction ("good", since signed objectives are minimize-oriented) and
// the rest.
func splitByQuantile(samples []tpeSample, gamma float64) (good, bad []tpeSample) {
	sorted := make([]tpeSample, len(samples))
	copy(sorted, samples)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].score < sorted[j-1].score; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	cut := int(float64(len(sorted)) * gamma)
	if cut < 1 {
		cut = 1
	}
	if cut >= len(sorted) {
		cut = len(sorted) - 1
	}
	return sorted[:cut], sorted[cut:]
}

// likelihoodRatio estimates l(x)/g(x) with Laplace smoothing over the
// categorical domain, matching the add-one smoothing any honest
// categorical density estimate needs with small sample counts.
func likelihoodRatio(candidate string, good, bad []tpeSample, domainSize int) float64 {
	goodCount, badCount := 1.0, 1.0
	for _, s := range good {
		if s.value == candidate {
			goodCount++
		}
	}
	for _, s := range bad {
		if s.value == candidate {
			badCount++
		}
	}
	goodDensity := goodCount / (float64(len(good)) + float64(domainSize))
	badDensity := badCount / (float64(len(bad)) + float64(domainSize))
	return goodDensity / badDensity
}
