package monitor

import (
	"math"
	"sync"

	"github.com/cdipaolo/goml/cluster"
)

const (
	featureCount          = 3 // normalized fps, fps variance, slow-frame ratio
	noveltyAlertThreshold = 0.8
	retrainInterval       = 32 // windows between model refreshes
	maxObservations       = 512
)

// noveltyScorer flags frame-metric windows far from the clusters of
// previously seen behavior. Scores are advisory: they feed logging,
// never level decisions.
type noveltyScorer struct {
	mu sync.Mutex

	model        *cluster.KMeans
	observations [][]float64
	sinceRetrain int
}

func newNoveltyScorer(clusters int) *noveltyScorer {
	// Seed with zero vectors so Predict is usable before training data
	// accumulates
	seed := make([][]float64, clusters)
	for i := range seed {
		seed[i] = make([]float64, featureCount)
	}
	return &noveltyScorer{
		model:        cluster.NewKMeans(clusters, 10, seed),
		observations: make([][]float64, 0, maxObservations),
	}
}

// score returns a 0-1 novelty score for a feature vector, or ok=false
// while the model has too little history to judge.
func (ns *noveltyScorer) score(features []float64) (float64, bool) {
	if len(features) != featureCount {
		return 0, false
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if len(ns.observations) < maxObservations {
		ns.observations = append(ns.observations, features)
	}
	ns.sinceRetrain++
	if ns.sinceRetrain >= retrainInterval {
		ns.sinceRetrain = 0
		ns.retrainLocked()
	}

	if len(ns.observations) < retrainInterval {
		return 0, false
	}

	centroid, err := ns.model.Predict(features)
	if err != nil {
		return 0, false
	}

	dist := euclideanDistance(features, centroid)

	// Sigmoid mapping of distance: further from known behavior scores
	// closer to 1
	return 1.0 - (1.0 / (1.0 + math.Exp(dist-2.0))), true
}

func (ns *noveltyScorer) retrainLocked() {
	if len(ns.observations) < retrainInterval {
		return
	}
	if err := ns.model.UpdateTrainingSet(ns.observations); err != nil {
		return
	}
	_ = ns.model.Learn()
}

func euclideanDistance(a, b []float64) float64 {
	sum := 0.0
	limit := len(a)
	if len(b) < limit {
		limit = len(b)
	}
	for i := 0; i < limit; i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
