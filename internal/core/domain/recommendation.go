package domain

import "time"

// Recommendation is one ranked catalog entry.
type Recommendation struct {
	Entry         CatalogEntry `json:"entry"`
	Similarity    float64      `json:"similarity"`
	CombinedScore float64      `json:"combined_score"`
}

// RecommendationSet is the output of one pipeline run.
type RecommendationSet struct {
	ID           string           `json:"id"`
	GeneratedAt  time.Time        `json:"generated_at"`
	SeedCount    int              `json:"seed_count"`
	FeatureCount int              `json:"feature_count"`
	Strategy     string           `json:"strategy,omitempty"`
	Fallback     bool             `json:"fallback"`
	Results      []Recommendation `json:"results"`
}

// TrackIDs returns the provider IDs of the results that carry one, in rank order.
func (s RecommendationSet) TrackIDs() []string {
	ids := make([]string, 0, len(s.Results))
	for _, r := range s.Results {
		if r.Entry.ID != "" {
			ids = append(ids, r.Entry.ID)
		}
	}
	return ids
}
