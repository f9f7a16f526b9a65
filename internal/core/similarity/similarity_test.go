package similarity

import (
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

var threeFields = []Feature{Danceability, Energy, Valence}

func entry(id string, d, e, v float64) domain.CatalogEntry {
	return domain.CatalogEntry{
		ID:        id,
		TrackName: "Track " + id,
		Features:  domain.AudioFeatures{Danceability: d, Energy: e, Valence: v},
	}
}

func floatEquals(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical vectors", []float64{0.3, 0.7, 0.1}, []float64{0.3, 0.7, 0.1}, 1},
		{"scaled vectors", []float64{1, 2, 3}, []float64{2, 4, 6}, 1},
		{"orthogonal", []float64{1, 0, 0}, []float64{0, 1, 0}, 0},
		{"opposite", []float64{1, -1}, []float64{-1, 1}, -1},
		{"zero vector", []float64{0.5, 0.5}, []float64{0, 0}, 0},
		{"both zero", []float64{0, 0}, []float64{0, 0}, 0},
		{"shorter operand zero padded", []float64{1, 0}, []float64{1, 0, 0}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Cosine(tc.a, tc.b)
			if math.IsNaN(got) {
				t.Fatal("Cosine returned NaN")
			}
			if !floatEquals(got, tc.want, 1e-12) {
				t.Fatalf("Cosine(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestAverageProfile(t *testing.T) {
	got, err := AverageProfile([][]float64{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatalf("AverageProfile() error = %v", err)
	}
	if !reflect.DeepEqual(got, []float64{0.5, 0.5}) {
		t.Fatalf("AverageProfile() = %v, want [0.5 0.5]", got)
	}

	if _, err := AverageProfile(nil); !errors.Is(err, domain.ErrEmptyProfile) {
		t.Fatalf("expected ErrEmptyProfile, got %v", err)
	}
}

func TestVectorize(t *testing.T) {
	tests := []struct {
		name string
		src  FeatureSource
		want []float64
	}{
		{
			name: "audio features in field order",
			src:  domain.AudioFeatures{Danceability: 0.1, Energy: 0.2, Valence: 0.3},
			want: []float64{0.1, 0.2, 0.3},
		},
		{
			name: "raw row coerces junk to zero",
			src:  Row{"danceability": "0.5", "energy": "loud", "valence": " 0.25 "},
			want: []float64{0.5, 0, 0.25},
		},
		{
			name: "missing columns become zero",
			src:  Row{"energy": "0.9"},
			want: []float64{0, 0.9, 0},
		},
		{
			name: "NaN becomes zero",
			src:  Row{"danceability": "NaN", "energy": "0.4", "valence": "0.1"},
			want: []float64{0, 0.4, 0.1},
		},
		{
			name: "nil source",
			src:  nil,
			want: []float64{0, 0, 0},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Vectorize(tc.src, threeFields)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Vectorize() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFieldSet(t *testing.T) {
	if got, _ := FieldSet("extended"); len(got) != 13 {
		t.Fatalf("extended field set has %d fields, want 13", len(got))
	}
	if got, _ := FieldSet(""); len(got) != 7 {
		t.Fatalf("default field set has %d fields, want 7", len(got))
	}
	if _, err := FieldSet("everything"); err == nil {
		t.Fatal("expected error for unknown field set")
	}
}

func TestRank_OrdersBySimilarity(t *testing.T) {
	catalog := []domain.CatalogEntry{entry("b", 0, 1, 0), entry("a", 1, 0, 0)}
	seeds := [][]float64{{1, 0, 0}}

	got, err := Rank(catalog, seeds, RankOptions{Fields: threeFields})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Entry.ID != "a" || got[1].Entry.ID != "b" {
		t.Fatalf("order = [%s %s], want [a b]", got[0].Entry.ID, got[1].Entry.ID)
	}
	if got[0].Similarity != 1 {
		t.Fatalf("a.similarity = %v, want 1", got[0].Similarity)
	}
	if got[1].Similarity != 0 {
		t.Fatalf("b.similarity = %v, want 0", got[1].Similarity)
	}
}

func TestRank_MeanAcrossSeeds(t *testing.T) {
	catalog := []domain.CatalogEntry{entry("a", 1, 0, 0)}
	seeds := [][]float64{{1, 0, 0}, {0, 1, 0}}

	got, err := Rank(catalog, seeds, RankOptions{Fields: threeFields})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if !floatEquals(got[0].Similarity, 0.5, 1e-12) {
		t.Fatalf("similarity = %v, want 0.5", got[0].Similarity)
	}
}

func TestRank_CentroidStrategy(t *testing.T) {
	catalog := []domain.CatalogEntry{entry("a", 1, 1, 0)}
	seeds := [][]float64{{1, 0, 0}, {0, 1, 0}}

	got, err := Rank(catalog, seeds, RankOptions{Fields: threeFields, Strategy: StrategyCentroid})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if !floatEquals(got[0].Similarity, 1, 1e-12) {
		t.Fatalf("similarity = %v, want 1", got[0].Similarity)
	}
}

func TestRank_PopularityBlend(t *testing.T) {
	obscure := entry("obscure", 1, 0, 0)
	hit := entry("hit", 1, 0, 0)
	hit.Popularity = 80
	obscure.Popularity = 0
	mild := entry("mild", 1, 1, 0)
	mild.Popularity = 40

	got, err := Rank([]domain.CatalogEntry{obscure, mild, hit}, [][]float64{{1, 0, 0}}, RankOptions{
		Fields:  threeFields,
		Weights: Weights{Similarity: 0.5, Popularity: 0.5},
	})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	wantOrder := []string{"hit", "mild", "obscure"}
	for i, id := range wantOrder {
		if got[i].Entry.ID != id {
			t.Fatalf("position %d = %s, want %s", i, got[i].Entry.ID, id)
		}
	}
	if !floatEquals(got[0].CombinedScore, 1, 1e-12) {
		t.Fatalf("hit combined score = %v, want 1", got[0].CombinedScore)
	}
	if !floatEquals(got[2].CombinedScore, 0.5, 1e-12) {
		t.Fatalf("obscure combined score = %v, want 0.5", got[2].CombinedScore)
	}
}

func TestRank_Dedupe(t *testing.T) {
	tests := []struct {
		name        string
		catalog     []domain.CatalogEntry
		wantLen     int
		wantFirstNm string
	}{
		{
			name: "keeps higher scored duplicate",
			catalog: []domain.CatalogEntry{
				{ID: "x", TrackName: "low", Features: domain.AudioFeatures{Energy: 1}},
				{ID: "x", TrackName: "high", Features: domain.AudioFeatures{Danceability: 1}},
			},
			wantLen:     1,
			wantFirstNm: "high",
		},
		{
			name: "equal scores keep first encountered",
			catalog: []domain.CatalogEntry{
				{ID: "x", TrackName: "first", Features: domain.AudioFeatures{Danceability: 1}},
				{ID: "x", TrackName: "second", Features: domain.AudioFeatures{Danceability: 1}},
			},
			wantLen:     1,
			wantFirstNm: "first",
		},
		{
			name: "name identity when id missing",
			catalog: []domain.CatalogEntry{
				{TrackName: "Hello, World", Features: domain.AudioFeatures{Danceability: 1}},
				{TrackName: "hello world", Features: domain.AudioFeatures{Danceability: 0.5}},
			},
			wantLen:     1,
			wantFirstNm: "Hello, World",
		},
		{
			name: "entries without identity are kept",
			catalog: []domain.CatalogEntry{
				{Features: domain.AudioFeatures{Danceability: 1}},
				{Features: domain.AudioFeatures{Danceability: 1}},
			},
			wantLen: 2,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Rank(tc.catalog, [][]float64{{1, 0, 0}}, RankOptions{Fields: threeFields})
			if err != nil {
				t.Fatalf("Rank() error = %v", err)
			}
			if len(got) != tc.wantLen {
				t.Fatalf("expected %d results, got %d", tc.wantLen, len(got))
			}
			if tc.wantFirstNm != "" && got[0].Entry.TrackName != tc.wantFirstNm {
				t.Fatalf("kept %q, want %q", got[0].Entry.TrackName, tc.wantFirstNm)
			}
		})
	}
}

func TestRank_StableTies(t *testing.T) {
	var catalog []domain.CatalogEntry
	for _, id := range []string{"c", "a", "d", "b"} {
		catalog = append(catalog, entry(id, 0.5, 0.5, 0))
	}
	got, err := Rank(catalog, [][]float64{{1, 1, 0}}, RankOptions{Fields: threeFields})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	for i, want := range []string{"c", "a", "d", "b"} {
		if got[i].Entry.ID != want {
			t.Fatalf("position %d = %s, want %s", i, got[i].Entry.ID, want)
		}
	}
}

func TestRank_TopN(t *testing.T) {
	var catalog []domain.CatalogEntry
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		catalog = append(catalog, entry(id, float64(i), 1, 0))
	}
	got, err := Rank(catalog, [][]float64{{1, 0, 0}}, RankOptions{Fields: threeFields, TopN: 3})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[0].Entry.ID != "e" {
		t.Fatalf("best = %s, want e", got[0].Entry.ID)
	}
}

func TestRank_Errors(t *testing.T) {
	catalog := []domain.CatalogEntry{entry("a", 1, 0, 0)}

	if _, err := Rank(catalog, nil, RankOptions{}); !errors.Is(err, domain.ErrEmptyProfile) {
		t.Fatalf("expected ErrEmptyProfile, got %v", err)
	}

	_, err := Rank(catalog, [][]float64{{1, 0, 0}}, RankOptions{Weights: Weights{Similarity: 0.7, Popularity: 0.7}})
	if !errors.Is(err, domain.ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}

	_, err = Rank(catalog, [][]float64{{1, 0, 0}}, RankOptions{Weights: Weights{Similarity: 1.5, Popularity: -0.5}})
	if !errors.Is(err, domain.ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights for negative weight, got %v", err)
	}
}

func TestSample(t *testing.T) {
	catalog := []domain.CatalogEntry{
		entry("a", 1, 0, 0), entry("b", 0, 1, 0), entry("a", 0, 0, 1),
		entry("c", 1, 1, 0), entry("d", 0, 1, 1),
	}
	rng := rand.New(rand.NewPCG(1, 2))

	got := Sample(catalog, 3, rng)
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, r := range got {
		if seen[r.Entry.ID] {
			t.Fatalf("duplicate id %s in sample", r.Entry.ID)
		}
		seen[r.Entry.ID] = true
		if r.CombinedScore != 0 || r.Similarity != 0 {
			t.Fatalf("sample entries must be unscored, got %+v", r)
		}
	}

	if got := Sample(catalog, 10, rng); len(got) != 4 {
		t.Fatalf("expected all 4 distinct entries, got %d", len(got))
	}
	if got := Sample(nil, 3, rng); len(got) != 0 {
		t.Fatalf("expected empty sample, got %d", len(got))
	}
}

func TestFromVector(t *testing.T) {
	f := FromVector([]float64{0.1, 0.2, 0.3}, threeFields)
	if f.Danceability != 0.1 || f.Energy != 0.2 || f.Valence != 0.3 {
		t.Fatalf("FromVector() = %+v", f)
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy(""); err != nil || s != StrategyMean {
		t.Fatalf("ParseStrategy(\"\") = %v, %v", s, err)
	}
	if _, err := ParseStrategy("median"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
