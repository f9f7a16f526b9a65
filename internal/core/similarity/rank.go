package similarity

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const weightTolerance = 1e-6

// Strategy selects how a candidate is compared with the seed set.
type Strategy string

const (
	// StrategyMean averages the cosine against every seed vector.
	StrategyMean Strategy = "mean"
	// StrategyCentroid takes the cosine against the averaged seed profile.
	StrategyCentroid Strategy = "centroid"
)

// ParseStrategy resolves a configured strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case "", StrategyMean:
		return StrategyMean, nil
	case StrategyCentroid:
		return StrategyCentroid, nil
	default:
		return "", fmt.Errorf("similarity: unknown strategy %q", name)
	}
}

// Weights blend cosine similarity with normalized popularity.
type Weights struct {
	Similarity float64 `json:"similarity"`
	Popularity float64 `json:"popularity"`
}

// PopularityWeighted returns weights giving popularity w and similarity 1-w.
func PopularityWeighted(w float64) Weights {
	return Weights{Similarity: 1 - w, Popularity: w}
}

// Validate checks that both weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	if w.Similarity < 0 || w.Popularity < 0 {
		return fmt.Errorf("%w: negative weight %+v", domain.ErrInvalidWeights, w)
	}
	if math.Abs(w.Similarity+w.Popularity-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %.4f, want 1", domain.ErrInvalidWeights, w.Similarity+w.Popularity)
	}
	return nil
}

// RankOptions configure Rank. A zero Weights value means pure similarity,
// an empty Fields means BasicFields and TopN <= 0 keeps every candidate.
type RankOptions struct {
	Fields   []Feature
	Weights  Weights
	TopN     int
	Strategy Strategy
}

// Rank scores candidates against the seed vectors and returns them ordered
// by combined score, highest first. Equal scores keep catalog order. Entries
// sharing an identity key are collapsed onto the best-ranked one.
func Rank(candidates []domain.CatalogEntry, seeds [][]float64, opts RankOptions) ([]domain.Recommendation, error) {
	if len(seeds) == 0 {
		return nil, domain.ErrEmptyProfile
	}

	weights := opts.Weights
	if weights == (Weights{}) {
		weights = Weights{Similarity: 1}
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	fields := opts.Fields
	if len(fields) == 0 {
		fields = BasicFields
	}

	var centroid []float64
	if opts.Strategy == StrategyCentroid {
		avg, err := AverageProfile(seeds)
		if err != nil {
			return nil, err
		}
		centroid = avg
	}

	maxPopularity := 0.0
	for _, c := range candidates {
		maxPopularity = math.Max(maxPopularity, c.Popularity)
	}

	scored := make([]domain.Recommendation, len(candidates))
	for i, c := range candidates {
		vec := Vectorize(c, fields)

		var sim float64
		if centroid != nil {
			sim = Cosine(vec, centroid)
		} else {
			for _, seed := range seeds {
				sim += Cosine(vec, seed)
			}
			sim /= float64(len(seeds))
		}

		popularity := 0.0
		if maxPopularity > 0 && c.Popularity > 0 {
			popularity = c.Popularity / maxPopularity
		}

		scored[i] = domain.Recommendation{
			Entry:         c,
			Similarity:    sim,
			CombinedScore: weights.Similarity*sim + weights.Popularity*popularity,
		}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].CombinedScore > scored[b].CombinedScore
	})

	return truncate(dedupe(scored), opts.TopN), nil
}

// Sample returns up to n distinct candidates in random order, unscored.
// It backs the fallback when no seed profile can be built.
func Sample(candidates []domain.CatalogEntry, n int, rng *rand.Rand) []domain.Recommendation {
	if n <= 0 || len(candidates) == 0 {
		return []domain.Recommendation{}
	}

	var order []int
	if rng != nil {
		order = rng.Perm(len(candidates))
	} else {
		order = rand.Perm(len(candidates))
	}

	seen := make(map[string]struct{}, n)
	picked := make([]domain.Recommendation, 0, min(n, len(candidates)))
	for _, idx := range order {
		entry := candidates[idx]
		if key := IdentityKey(entry); key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		picked = append(picked, domain.Recommendation{Entry: entry})
		if len(picked) == n {
			break
		}
	}
	return picked
}

func dedupe(recs []domain.Recommendation) []domain.Recommendation {
	seen := make(map[string]struct{}, len(recs))
	out := recs[:0]
	for _, r := range recs {
		key := IdentityKey(r.Entry)
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}

func truncate(recs []domain.Recommendation, n int) []domain.Recommendation {
	if n > 0 && len(recs) > n {
		return recs[:n]
	}
	return recs
}
