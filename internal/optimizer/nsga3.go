package optimizer

import (
	"math"
	"math/rand"
	"sort"

	"github.com/HariAbram/scout/internal/config"
	"github.com/HariAbram/scout/internal/space"
)

// nsga3Sampler is a reference-point-based genetic sampler, grounded on
// original_source/src/explore.py's use of optuna.samplers.NSGAIIISampler
// for multi-objective studies. optuna's NSGA-III is a thin wrapper over
// deap-style non-dominated sorting and Das–Dennis reference directions;
// since nothing in the example corpus carries a GA or multi-objective
// optimization library, both pieces are reimplemented here directly.
type nsga3Sampler struct {
	sp      *space.Space
	nObj    int
	popSize int

	refDirs [][]float64

	population []individual // current survivor generation, ranked
	buffer     []individual // evaluated-but-not-yet-selected

	pending        map[string]int
	lastTrialIndex int
	haveTrial      bool
}

type individual struct {
	chrom      map[string]int
	signed     []float64
	assignment space.Assignment
}

func newNSGA3Sampler(sp *space.Space, objectives []config.Objective, popSize int, rng *rand.Rand) *nsga3Sampler {
	if popSize <= 0 {
		popSize = 50
	}
	n := len(objectives)
	if n == 0 {
		n = 1
	}
	return &nsga3Sampler{
		sp:      sp,
		nObj:    n,
		popSize: popSize,
		refDirs: dasDennis(n, dasDennisDivisions(n, popSize)),
	}
}

func (n *nsga3Sampler) ChooseValue(v *space.Variable, trialIndex int, history []Observation, rng *rand.Rand) string {
	if !n.haveTrial || trialIndex != n.lastTrialIndex {
		n.lastTrialIndex = trialIndex
		n.haveTrial = true
		n.pending = n.nextChromosome(rng)
	}
	idx, ok := n.pending[v.Name]
	if !ok || idx < 0 || idx >= len(v.Domain) {
		idx = rng.Intn(len(v.Domain))
	}
	return v.Domain[idx]
}

func (n *nsga3Sampler) Report(obs Observation) {
	chrom := make(map[string]int, len(n.sp.Variables))
	for _, v := range n.sp.Variables {
		val, ok := obs.Assignment[v.Name]
		if isInactiveOrMissing(val, ok) {
			chrom[v.Name] = -1
			continue
		}
		chrom[v.Name] = domainIndex(&v, val)
	}
	n.buffer = append(n.buffer, individual{chrom: chrom, signed: obs.Signed, assignment: obs.Assignment})
	if len(n.buffer) >= n.popSize {
		n.advanceGeneration()
	}
}

// nextChromosome draws a fresh random chromosome while the initial
// population is still filling, and otherwise breeds one by binary
// tournament selection plus uniform crossover and point mutation.
func (n *nsga3Sampler) nextChromosome(rng *rand.Rand) map[string]int {
	if len(n.population) < n.popSize {
		return randomChromosome(n.sp, rng)
	}
	p1 := n.tournamentSelect(rng)
	p2 := n.tournamentSelect(rng)
	child := make(map[string]int, len(n.sp.Variables))
	for _, v := range n.sp.Variables {
		if rng.Float64() < 0.5 {
			child[v.Name] = p1.chrom[v.Name]
		} else {
			child[v.Name] = p2.chrom[v.Name]
		}
		if rng.Float64() < 0.1 && len(v.Domain) > 1 {
			child[v.Name] = rng.Intn(len(v.Domain))
		}
	}
	return child
}

func randomChromosome(sp *space.Space, rng *rand.Rand) map[string]int {
	chrom := make(map[string]int, len(sp.Variables))
	for _, v := range sp.Variables {
		chrom[v.Name] = rng.Intn(len(v.Domain))
	}
	return chrom
}

func (n *nsga3Sampler) tournamentSelect(rng *rand.Rand) individual {
	a := n.population[rng.Intn(len(n.population))]
	b := n.population[rng.Intn(len(n.population))]
	if Dominates(a.signed, b.signed) {
		return a
	}
	if Dominates(b.signed, a.signed) {
		return b
	}
	if rng.Float64() < 0.5 {
		return a
	}
	return b
}

// advanceGeneration merges the current survivors with the newly evaluated
// buffer, ranks by non-dominated front, and selects the next population
// of size popSize via reference-direction niching on the last included
// front, the standard NSGA-III environmental-selection step.
func (n *nsga3Sampler) advanceGeneration() {
	combined := append(append([]individual{}, n.population...), n.buffer...)
	n.buffer = nil

	fronts := nonDominatedSort(combined)

	var survivors []individual
	for _, front := range fronts {
		if len(survivors)+len(front) <= n.popSize {
			for _, idx := range front {
				survivors = append(survivors, combined[idx])
			}
			continue
		}
		remaining := n.popSize - len(survivors)
		if remaining > 0 {
			chosen := nicheSelect(combined, front, n.refDirs, remaining)
			survivors = append(survivors, chosen...)
		}
		break
	}
	n.population = survivors
}

// nonDominatedSort runs Deb's fast non-dominated sort, returning fronts as
// index slices into pop, best front first.
func nonDominatedSort(pop []individual) [][]int {
	nPop := len(pop)
	dominatedBy := make([][]int, nPop)
	dominationCount := make([]int, nPop)

	for i := 0; i < nPop; i++ {
		for j := 0; j < nPop; j++ {
			if i == j {
				continue
			}
			if Dominates(pop[i].signed, pop[j].signed) {
				dominatedBy[i] = append(dominatedBy[i], j)
			} else if Dominates(pop[j].signed, pop[i].signed) {
				dominationCount[i]++
			}
		}
	}

	var fronts [][]int
	current := []int{}
	for i := 0; i < nPop; i++ {
		if dominationCount[i] == 0 {
			current = append(current, i)
		}
	}
	for len(current) > 0 {
		fronts = append(fronts, current)
		var next []int
		for _, i := range current {
			for _, j := range dominatedBy[i] {
				dominationCount[j]--
				if dominationCount[j] == 0 {
					next = append(next, j)
				}
			}
		}
		current = next
	}
	return fronts
}

// nicheSelect picks `need` individuals from front (indices into pop) by
// associating each with its nearest reference direction (after
// ideal-point translation) and filling the least-crowded niches first.
func nicheSelect(pop []individual, front []int, refDirs [][]float64, need int) []individual {
	if need >= len(front) {
		out := make([]individual, len(front))
		for i, idx := range front {
			out[i] = pop[idx]
		}
		return out
	}

	nObj := len(refDirs[0])
	ideal := make([]float64, nObj)
	for i := range ideal {
		ideal[i] = math.Inf(1)
	}
	for _, idx := range front {
		for k, val := range pop[idx].signed {
			if k < nObj && val < ideal[k] {
				ideal[k] = val
			}
		}
	}

	niche := make([]int, len(front)) // ref-dir index per front member
	for fi, idx := range front {
		best := 0
		bestDist := math.Inf(1)
		for ri, dir := range refDirs {
			d := perpendicularDistance(pop[idx].signed, ideal, dir)
			if d < bestDist {
				bestDist = d
				best = ri
			}
		}
		niche[fi] = best
	}

	counts := make(map[int]int)
	order := make([]int, len(front))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return niche[order[a]] < niche[order[b]] })

	selected := make(map[int]bool)
	var out []individual
	for len(out) < need {
		progressed := false
		for _, fi := range order {
			if selected[fi] {
				continue
			}
			n := niche[fi]
			if countFor(counts, n) == minCount(counts, niche) {
				out = append(out, pop[front[fi]])
				selected[fi] = true
				counts[n]++
				progressed = true
				if len(out) == need {
					return out
				}
			}
		}
		if !progressed {
			for _, fi := range order {
				if !selected[fi] {
					out = append(out, pop[front[fi]])
					selected[fi] = true
					if len(out) == need {
						return out
					}
				}
			}
		}
	}
	return out
}

func countFor(counts map[int]int, n int) int { return counts[n] }

func minCount(counts map[int]int, niche []int) int {
	seen := map[int]bool{}
	min := -1
	for _, n := range niche {
		seen[n] = true
	}
	for n := range seen {
		c := counts[n]
		if min == -1 || c < min {
			min = c
		}
	}
	if min == -1 {
		return 0
	}
	return min
}

func perpendicularDistance(point, ideal, dir []float64) float64 {
	translated := make([]float64, len(point))
	for i := range point {
		if i < len(ideal) {
			translated[i] = point[i] - ideal[i]
		}
	}
	var dot, dirNormSq float64
	for i, d := range dir {
		if i < len(translated) {
			dot += translated[i] * d
		}
		dirNormSq += d * d
	}
	if dirNormSq == 0 {
		dirNormSq = 1
	}
	scale := dot / dirNormSq
	var distSq float64
	for i, d := range dir {
		var p float64
		if i < len(translated) {
			p = translated[i]
		}
		diff := p - scale*d
		distSq += diff * diff
	}
	return math.Sqrt(distSq)
}

// dasDennisDivisions picks a simplex-lattice division count that yields
// roughly popSize reference points for nObj objectives.
func dasDennisDivisions(nObj, popSize int) int {
	if nObj <= 1 {
		return 1
	}
	for p := 1; p < 50; p++ {
		if binomial(p+nObj-1, nObj-1) >= popSize {
			return p
		}
	}
	return 12
}

func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	result := 1
	for i := 0; i < k; i++ {
		result = result * (n - i) / (i + 1)
	}
	return result
}

// dasDennis generates the Das–Dennis simplex-lattice reference directions
// for nObj objectives at division count p.
func dasDennis(nObj, p int) [][]float64 {
	var points [][]float64
	var rec func(remaining int, depth int, acc []float64)
	rec = func(remaining int, depth int, acc []float64) {
		if depth == nObj-1 {
			point := append(append([]float64{}, acc...), float64(remaining)/float64(p))
			points = append(points, point)
			return
		}
		for i := 0; i <= remaining; i++ {
			rec(remaining-i, depth+1, append(acc, float64(i)/float64(p)))
		}
	}
	rec(p, 0, nil)
	if len(points) == 0 {
		points = [][]float64{make([]float64, nObj)}
	}
	return points
}
