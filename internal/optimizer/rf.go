package optimizer

import (
	"math"
	"math/rand"

	"github.com/HariAbram/scout/internal/space"
)

// rfSampler is a random-forest surrogate: a small ensemble of regression
// trees is fit over (domain-index feature vector, signed objective 0)
// pairs, and candidates are scored by predicted mean minus an
// exploration bonus drawn from inter-tree disagreement — the same
// explore/exploit shape as optuna's experimental random-forest sampler
// that original_source/src/explore.py would reach for under a "rf"
// study. No random-forest library appears anywhere in the example
// corpus, so the forest itself (bootstrap sampling, CART-style variance
// splits, ensemble prediction) is implemented here from scratch.
type rfSampler struct {
	sp           *space.Space
	warmup       int
	trees        []*rfTree
	numTrees     int
	candidatePool int
	featureNames []string
	trainX       [][]float64
	trainY       []float64
}

func newRFSampler(sp *space.Space, warmup int, rng *rand.Rand) *rfSampler {
	if warmup <= 0 {
		warmup = 10
	}
	names := make([]string, len(sp.Variables))
	for i, v := range sp.Variables {
		names[i] = v.Name
	}
	return &rfSampler{
		sp:            sp,
		warmup:        warmup,
		numTrees:      20,
		candidatePool: 32,
		featureNames:  names,
	}
}

func (r *rfSampler) ChooseValue(v *space.Variable, trialIndex int, history []Observation, rng *rand.Rand) string {
	if len(v.Domain) == 1 {
		return v.Domain[0]
	}
	if len(r.trainY) < r.warmup || len(r.trees) == 0 {
		return uniformChoice(v, rng)
	}

	bestScore := math.Inf(1)
	best := v.Domain[0]
	for c := 0; c < r.candidatePool; c++ {
		chrom := randomChromosome(r.sp, rng)
		features := r.featurize(chrom)
		mean, std := r.predict(features)
		score := mean - std // lower is better (minimize signed objective); std rewards disagreement
		if score < bestScore {
			candidateIdx, ok := chrom[v.Name]
			if !ok || candidateIdx < 0 || candidateIdx >= len(v.Domain) {
				continue
			}
			bestScore = score
			best = v.Domain[candidateIdx]
		}
	}
	return best
}

func (r *rfSampler) Report(obs Observation) {
	chrom := make(map[string]int, len(r.sp.Variables))
	for _, v := range r.sp.Variables {
		val, ok := obs.Assignment[v.Name]
		if isInactiveOrMissing(val, ok) {
			chrom[v.Name] = -1
			continue
		}
		chrom[v.Name] = domainIndex(&v, val)
	}
	if len(obs.Signed) == 0 {
		return
	}
	r.trainX = append(r.trainX, r.featurize(chrom))
	r.trainY = append(r.trainY, obs.Signed[0])
	if len(r.trainY) >= r.warmup {
		r.fit()
	}
}

func (r *rfSampler) featurize(chrom map[string]int) []float64 {
	out := make([]float64, len(r.featureNames))
	for i, name := range r.featureNames {
		out[i] = float64(chrom[name])
	}
	return out
}

func (r *rfSampler) predict(features []float64) (mean, std float64) {
	if len(r.trees) == 0 {
		return 0, 0
	}
	preds := make([]float64, len(r.trees))
	var sum float64
	for i, t := range r.trees {
		preds[i] = t.predict(features)
		sum += preds[i]
	}
	mean = sum / float64(len(preds))
	var variance float64
	for _, p := range preds {
		variance += (p - mean) * (p - mean)
	}
	variance /= float64(len(preds))
	return mean, math.Sqrt(variance)
}

// fit rebuilds the forest from the accumulated training set. Refitting
// from scratch on every report keeps this simple; the training sets in a
// design-space study are small enough (a few hundred trials at most)
// that this stays cheap.
func (r *rfSampler) fit() {
	seed := rand.New(rand.NewSource(int64(len(r.trainY)) + 1))
	r.trees = make([]*rfTree, r.numTrees)
	n := len(r.trainX)
	for t := 0; t < r.numTrees; t++ {
		bootstrapX := make([][]float64, n)
		bootstrapY := make([]float64, n)
		for i := 0; i < n; i++ {
			pick := seed.Intn(n)
			bootstrapX[i] = r.trainX[pick]
			bootstrapY[i] = r.trainY[pick]
		}
		r.trees[t] = buildTree(bootstrapX, bootstrapY, 0, 5, seed)
	}
}

// rfTree is a single CART-style regression tree over numeric (domain
// index) features, split by variance reduction.
type rfTree struct {
	isLeaf     bool
	value      float64
	featureIdx int
	threshold  float64
	left       *rfTree
	right      *rfTree
}

func buildTree(x [][]float64, y []float64, depth, maxDepth int, rng *rand.Rand) *rfTree {
	if depth >= maxDepth || len(y) < 4 {
		return &rfTree{isLeaf: true, value: mean(y)}
	}

	nFeatures := len(x[0])
	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	baseVar := variance(y)

	// Consider a random subset of features per split, the standard random
	// forest decorrelation trick.
	tryCount := nFeatures
	if tryCount > 4 {
		tryCount = 4
	}
	tried := map[int]bool{}
	for len(tried) < tryCount {
		tried[rng.Intn(nFeatures)] = true
	}

	for f := range tried {
		values := uniqueSorted(x, f)
		for i := 0; i+1 < len(values); i++ {
			threshold := (values[i] + values[i+1]) / 2
			var leftY, rightY []float64
			for j, row := range x {
				if row[f] <= threshold {
					leftY = append(leftY, y[j])
				} else {
					rightY = append(rightY, y[j])
				}
			}
			if len(leftY) == 0 || len(rightY) == 0 {
				continue
			}
			weighted := (float64(len(leftY))*variance(leftY) + float64(len(rightY))*variance(rightY)) / float64(len(y))
			gain := baseVar - weighted
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = threshold
			}
		}
	}

	if bestFeature == -1 {
		return &rfTree{isLeaf: true, value: mean(y)}
	}

	var leftX, rightX [][]float64
	var leftY, rightY []float64
	for j, row := range x {
		if row[bestFeature] <= bestThreshold {
			leftX = append(leftX, row)
			leftY = append(leftY, y[j])
		} else {
			rightX = append(rightX, row)
			rightY = append(rightY, y[j])
		}
	}

	return &rfTree{
		isLeaf:     false,
		featureIdx: bestFeature,
		threshold:  bestThreshold,
		left:       buildTree(leftX, leftY, depth+1, maxDepth, rng),
		right:      buildTree(rightX, rightY, depth+1, maxDepth, rng),
	}
}

func (t *rfTree) predict(features []float64) float64 {
	if t.isLeaf {
		return t.value
	}
	if features[t.featureIdx] <= t.threshold {
		return t.left.predict(features)
	}
	return t.right.predict(features)
}

func mean(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var sum float64
	for _, v := range y {
		sum += v
	}
	return sum / float64(len(y))
}

func variance(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	m := mean(y)
	var sum float64
	for _, v := range y {
		sum += (v - m) * (v - m)
	}
	return sum / float64(len(y))
}

func uniqueSorted(x [][]float64, feature int) []float64 {
	seen := map[float64]bool{}
	var out []float64
	for _, row := range x {
		if !seen[row[feature]] {
			seen[row[feature]] = true
			out = append(out, row[feature])
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
