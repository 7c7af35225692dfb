package learning

import (
	"math/rand"
	"sync"
)

// SelectionRequest describes the pool state a Strategy selects from.
type SelectionRequest struct {
	// Features holds one feature vector per pool entry.
	Features [][]float64
	// Observed lists pool indices already exposed to the rater.
	Observed []int
	// Candidates lists pool indices never exposed, in pool order.
	Candidates []int
	// N is the number of entries to select. It never exceeds len(Candidates).
	N int
}

// Strategy picks the next meta-paths to show to a rater.
type Strategy interface {
	Name() string
	Select(req SelectionRequest) []int
}

// uncertaintySampling selects the candidates with the largest posterior
// variance under a Gaussian process.
type uncertaintySampling struct {
	gp *gaussianProcess
}

// UncertaintySampling returns the deterministic Gaussian-process strategy.
// Picks are greedy: each one conditions on every previously observed or
// already-picked input, so a batch does not collapse onto near-duplicates.
func UncertaintySampling(cfg GPConfig) Strategy {
	return &uncertaintySampling{gp: newGaussianProcess(cfg)}
}

func (s *uncertaintySampling) Name() string { return "uncertainty" }

func (s *uncertaintySampling) Select(req SelectionRequest) []int {
	inputs := make([][]float64, 0, len(req.Observed)+req.N)
	for _, idx := range req.Observed {
		inputs = append(inputs, req.Features[idx])
	}

	picked := make([]int, 0, req.N)
	taken := make(map[int]bool, req.N)
	for len(picked) < req.N {
		chol, err := s.gp.factorize(inputs)
		if err != nil {
			chol = nil
		}
		best, bestVar := -1, -1.0
		for _, idx := range req.Candidates {
			if taken[idx] {
				continue
			}
			v := s.gp.varianceGiven(chol, inputs, req.Features[idx])
			if v > bestVar {
				best, bestVar = idx, v
			}
		}
		if best < 0 {
			break
		}
		picked = append(picked, best)
		taken[best] = true
		inputs = append(inputs, req.Features[best])
	}
	return picked
}

// randomSampling selects candidates uniformly at random.
type randomSampling struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// RandomSampling returns the baseline strategy. Equal seeds give equal
// selection sequences.
func RandomSampling(seed int64) Strategy {
	return &randomSampling{rng: rand.New(rand.NewSource(seed))}
}

func (s *randomSampling) Name() string { return "random" }

func (s *randomSampling) Select(req SelectionRequest) []int {
	s.mu.Lock()
	perm := s.rng.Perm(len(req.Candidates))
	s.mu.Unlock()

	n := min(req.N, len(perm))
	picked := make([]int, 0, n)
	for _, p := range perm[:n] {
		picked = append(picked, req.Candidates[p])
	}
	return picked
}
