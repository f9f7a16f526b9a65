// Package similarity turns audio features into vectors and ranks catalog
// candidates against a listener's seed tracks by cosine similarity.
package similarity

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// Feature names one numeric audio feature.
type Feature string

const (
	Danceability     Feature = "danceability"
	Energy           Feature = "energy"
	Valence          Feature = "valence"
	Acousticness     Feature = "acousticness"
	Instrumentalness Feature = "instrumentalness"
	Liveness         Feature = "liveness"
	Speechiness      Feature = "speechiness"
	Loudness         Feature = "loudness"
	Tempo            Feature = "tempo"
	Key              Feature = "key"
	Mode             Feature = "mode"
	TimeSignature    Feature = "time_signature"
	DurationMs       Feature = "duration_ms"
)

// BasicFields are the features already normalized to [0,1].
var BasicFields = []Feature{
	Danceability, Energy, Valence, Acousticness, Instrumentalness, Liveness, Speechiness,
}

// ExtendedFields adds the unnormalized features.
var ExtendedFields = []Feature{
	Danceability, Energy, Valence, Acousticness, Instrumentalness, Liveness, Speechiness,
	Loudness, Tempo, Key, Mode, TimeSignature, DurationMs,
}

// FieldSet resolves a configured field set name.
func FieldSet(name string) ([]Feature, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "basic":
		return BasicFields, nil
	case "extended":
		return ExtendedFields, nil
	default:
		return nil, fmt.Errorf("similarity: unknown field set %q", name)
	}
}

// FeatureSource is anything that can report named feature values.
type FeatureSource interface {
	FeatureValue(name string) (float64, bool)
}

// Row is a raw catalog record keyed by lower-case column name.
type Row map[string]string

// FeatureValue parses the named column. Missing, blank or non-numeric values
// report false.
func (r Row) FeatureValue(name string) (float64, bool) {
	raw, ok := r[name]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Vectorize maps src onto order. Anything missing, non-numeric, NaN or
// infinite becomes 0 so that partial records still score.
func Vectorize(src FeatureSource, order []Feature) []float64 {
	vec := make([]float64, len(order))
	if src == nil {
		return vec
	}
	for i, f := range order {
		v, ok := src.FeatureValue(string(f))
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		vec[i] = v
	}
	return vec
}

// FromVector is the inverse of Vectorize for AudioFeatures.
func FromVector(vec []float64, order []Feature) domain.AudioFeatures {
	var f domain.AudioFeatures
	for i, name := range order {
		if i >= len(vec) {
			break
		}
		f.SetFeatureValue(string(name), vec[i])
	}
	return f
}
