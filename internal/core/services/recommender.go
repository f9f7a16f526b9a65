package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/core/similarity"
)

const (
	DefaultTimeRange  = "medium_term"
	DefaultSeedLimit  = 50
	DefaultTopN       = 20
	DefaultTopArtists = 10
)

// Options tune one pipeline run.
type Options struct {
	TimeRange string
	SeedLimit int
	TopN      int
	Fields    []similarity.Feature
	Weights   similarity.Weights
	Strategy  similarity.Strategy
	// IncludeSeeds keeps the listener's own top tracks in the candidate pool.
	IncludeSeeds bool
}

// DefaultOptions blends similarity and popularity evenly over the basic fields.
func DefaultOptions() Options {
	return Options{
		TimeRange: DefaultTimeRange,
		SeedLimit: DefaultSeedLimit,
		TopN:      DefaultTopN,
		Fields:    similarity.BasicFields,
		Weights:   similarity.PopularityWeighted(0.5),
		Strategy:  similarity.StrategyMean,
	}
}

func (o Options) withDefaults() Options {
	if o.TimeRange == "" {
		o.TimeRange = DefaultTimeRange
	}
	if o.SeedLimit <= 0 {
		o.SeedLimit = DefaultSeedLimit
	}
	if len(o.Fields) == 0 {
		o.Fields = similarity.BasicFields
	}
	if o.Strategy == "" {
		o.Strategy = similarity.StrategyMean
	}
	return o
}

// RunRecorder accepts finished runs for persistence in the background.
// Submit reports false when the run was dropped.
type RunRecorder interface {
	Submit(set domain.RecommendationSet) bool
}

// Recommender runs the recommendation pipeline against the provider.
type Recommender struct {
	spotify  ports.SpotifyProvider
	runs     ports.RecommendationRepository
	recorder RunRecorder
	logger   *zap.Logger
	now      func() time.Time
	rng      *rand.Rand
}

type Option func(*Recommender)

// WithRunRepository enables run lookups. Without a recorder, runs are also
// saved through it synchronously.
func WithRunRepository(repo ports.RecommendationRepository) Option {
	return func(r *Recommender) { r.runs = repo }
}

// WithRecorder hands finished runs to rec instead of saving them inline.
func WithRecorder(rec RunRecorder) Option {
	return func(r *Recommender) { r.recorder = rec }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Recommender) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Recommender) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRand fixes the source used for fallback samples. The Recommender must
// then not be used concurrently.
func WithRand(rng *rand.Rand) Option {
	return func(r *Recommender) { r.rng = rng }
}

// NewRecommender constructs a Recommender.
func NewRecommender(spotify ports.SpotifyProvider, opts ...Option) *Recommender {
	r := &Recommender{
		spotify: spotify,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recommend ranks catalog against the listener's top tracks. It fails with
// *domain.InsufficientSeedDataError when there are no seed tracks or none of
// them has audio features. Partial feature failures are logged and the run
// continues with the features that arrived.
func (r *Recommender) Recommend(ctx context.Context, catalog []domain.CatalogEntry, opts Options) (domain.RecommendationSet, error) {
	opts = opts.withDefaults()

	seeds, err := r.seedFeatures(ctx, opts.TimeRange, opts.SeedLimit)
	if err != nil {
		return domain.RecommendationSet{}, err
	}

	vectors := make([][]float64, 0, len(seeds.features))
	for _, t := range seeds.tracks {
		if f, ok := seeds.features[t.ID]; ok {
			vectors = append(vectors, similarity.Vectorize(f, opts.Fields))
		}
	}

	candidates := catalog
	if !opts.IncludeSeeds {
		candidates = excludeSeeds(catalog, seeds.tracks)
	}

	results, err := similarity.Rank(candidates, vectors, similarity.RankOptions{
		Fields:   opts.Fields,
		Weights:  opts.Weights,
		TopN:     opts.TopN,
		Strategy: opts.Strategy,
	})
	if err != nil {
		return domain.RecommendationSet{}, fmt.Errorf("service: rank candidates: %w", err)
	}

	set := r.newSet(results)
	set.SeedCount = len(seeds.tracks)
	set.FeatureCount = len(vectors)
	set.Strategy = string(opts.Strategy)

	r.logger.Info("recommendations ranked",
		zap.String("run_id", set.ID),
		zap.Int("seeds", set.SeedCount),
		zap.Int("features", set.FeatureCount),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(set.Results)),
	)
	r.record(ctx, set)
	return set, nil
}

// RecommendOrSample falls back to a random catalog sample of opts.TopN
// entries when the listener has no usable seed data.
func (r *Recommender) RecommendOrSample(ctx context.Context, catalog []domain.CatalogEntry, opts Options) (domain.RecommendationSet, error) {
	set, err := r.Recommend(ctx, catalog, opts)
	if err == nil {
		return set, nil
	}

	var seedErr *domain.InsufficientSeedDataError
	if !errors.As(err, &seedErr) {
		return domain.RecommendationSet{}, err
	}

	n := opts.TopN
	if n <= 0 {
		n = len(catalog)
	}
	r.logger.Warn("no seed data, sampling catalog",
		zap.Int("seeds", seedErr.Seeds),
		zap.Int("features", seedErr.Features),
		zap.Int("sample", n),
	)

	set = r.newSet(similarity.Sample(catalog, n, r.rng))
	set.SeedCount = seedErr.Seeds
	set.FeatureCount = seedErr.Features
	set.Fallback = true
	r.record(ctx, set)
	return set, nil
}

// Profile returns the authenticated listener's account.
func (r *Recommender) Profile(ctx context.Context) (domain.Profile, error) {
	p, err := r.spotify.GetProfile(ctx)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("service: failed to fetch profile: %w", err)
	}
	return p, nil
}

// ListeningProfile averages the extended audio features of the listener's
// top tracks.
func (r *Recommender) ListeningProfile(ctx context.Context, timeRange string, limit int) (domain.ListeningProfile, error) {
	if timeRange == "" {
		timeRange = DefaultTimeRange
	}
	if limit <= 0 {
		limit = DefaultSeedLimit
	}

	user, err := r.spotify.GetProfile(ctx)
	if err != nil {
		return domain.ListeningProfile{}, fmt.Errorf("service: failed to fetch profile: %w", err)
	}

	seeds, err := r.seedFeatures(ctx, timeRange, limit)
	if err != nil {
		return domain.ListeningProfile{}, err
	}

	vectors := make([][]float64, 0, len(seeds.features))
	for _, t := range seeds.tracks {
		if f, ok := seeds.features[t.ID]; ok {
			vectors = append(vectors, similarity.Vectorize(f, similarity.ExtendedFields))
		}
	}
	avg, err := similarity.AverageProfile(vectors)
	if err != nil {
		return domain.ListeningProfile{}, fmt.Errorf("service: average profile: %w", err)
	}

	artists, err := r.spotify.GetTopArtists(ctx, timeRange, DefaultTopArtists)
	if err != nil {
		return domain.ListeningProfile{}, fmt.Errorf("service: failed to fetch top artists: %w", err)
	}
	if artists == nil {
		artists = []domain.Artist{}
	}

	return domain.ListeningProfile{
		User:       user,
		SeedCount:  len(vectors),
		Average:    similarity.FromVector(avg, similarity.ExtendedFields),
		TopArtists: artists,
	}, nil
}

// Playlist reads a playlist back from the listener's account.
func (r *Recommender) Playlist(ctx context.Context, id string) (domain.Playlist, error) {
	if id == "" {
		return domain.Playlist{}, fmt.Errorf("service: playlist id is required")
	}
	pl, err := r.spotify.GetPlaylist(ctx, id)
	if err != nil {
		var apiErr *domain.APIRequestError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return domain.Playlist{}, fmt.Errorf("service: playlist %s: %w", id, domain.ErrNotFound)
		}
		return domain.Playlist{}, fmt.Errorf("service: failed to fetch playlist: %w", err)
	}
	return pl, nil
}

// ExportPlaylist creates a private playlist holding the run's results in
// rank order. Entries without a provider ID are skipped.
func (r *Recommender) ExportPlaylist(ctx context.Context, set domain.RecommendationSet, name string) (domain.Playlist, error) {
	ids := set.TrackIDs()
	if len(ids) == 0 {
		return domain.Playlist{}, fmt.Errorf("service: run %s has no exportable tracks", set.ID)
	}
	if name == "" {
		name = "cadence " + r.now().Format("2006-01-02")
	}

	user, err := r.spotify.GetProfile(ctx)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("service: failed to fetch profile: %w", err)
	}

	description := fmt.Sprintf("%d recommendations from %d seed tracks", len(ids), set.SeedCount)
	pl, err := r.spotify.CreatePlaylist(ctx, user.ID, name, description)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("service: failed to create playlist: %w", err)
	}

	added := make([]string, 0, len(ids))
	for _, rec := range set.Results {
		err := pl.AddTrack(domain.Track{
			ID:        rec.Entry.ID,
			Name:      rec.Entry.TrackName,
			Artists:   rec.Entry.Artists,
			AlbumName: rec.Entry.AlbumName,
		})
		if err != nil {
			continue
		}
		added = append(added, rec.Entry.ID)
	}

	if err := r.spotify.AddTracksToPlaylist(ctx, pl.ID, added); err != nil {
		return domain.Playlist{}, fmt.Errorf("service: failed to add tracks: %w", err)
	}

	r.logger.Info("playlist exported",
		zap.String("run_id", set.ID),
		zap.String("playlist_id", pl.ID),
		zap.Int("tracks", len(added)),
	)
	return pl, nil
}

// GetRun loads a persisted run.
func (r *Recommender) GetRun(ctx context.Context, id string) (domain.RecommendationSet, error) {
	if r.runs == nil {
		return domain.RecommendationSet{}, domain.ErrNotFound
	}
	set, err := r.runs.GetRun(ctx, id)
	if err != nil {
		return domain.RecommendationSet{}, fmt.Errorf("service: failed to load run: %w", err)
	}
	return set, nil
}

type seedData struct {
	tracks   []domain.Track
	features map[string]domain.AudioFeatures
}

func (r *Recommender) seedFeatures(ctx context.Context, timeRange string, limit int) (seedData, error) {
	tracks, err := r.spotify.GetTopTracks(ctx, timeRange, limit)
	if err != nil {
		return seedData{}, fmt.Errorf("service: failed to fetch top tracks: %w", err)
	}
	if len(tracks) == 0 {
		return seedData{}, &domain.InsufficientSeedDataError{}
	}

	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}

	features, err := r.spotify.GetAudioFeatures(ctx, ids)
	var cause error
	if err != nil {
		var partial *domain.PartialResultError
		switch {
		case errors.As(err, &partial):
			r.logger.Warn("audio features incomplete",
				zap.Int("failed_batches", partial.Failed),
				zap.Int("total_batches", partial.Total),
				zap.Error(partial.Err),
			)
		case fatalFetchError(ctx, err):
			return seedData{}, fmt.Errorf("service: failed to fetch audio features: %w", err)
		default:
			// every batch failed: no features, not a failed run
			r.logger.Warn("audio features unavailable",
				zap.Int("seeds", len(tracks)),
				zap.Error(err),
			)
			features, cause = nil, err
		}
	}

	found := 0
	for _, t := range tracks {
		if _, ok := features[t.ID]; ok {
			found++
		}
	}
	if found == 0 {
		return seedData{}, &domain.InsufficientSeedDataError{Seeds: len(tracks), Err: cause}
	}
	return seedData{tracks: tracks, features: features}, nil
}

// fatalFetchError reports errors that must end the run instead of
// degrading to an empty feature set.
func fatalFetchError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, domain.ErrAuthentication) ||
		errors.Is(err, domain.ErrNotAuthenticated) ||
		errors.Is(err, domain.ErrNoRefreshToken) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (r *Recommender) newSet(results []domain.Recommendation) domain.RecommendationSet {
	if results == nil {
		results = []domain.Recommendation{}
	}
	return domain.RecommendationSet{
		ID:          uuid.NewString(),
		GeneratedAt: r.now().UTC(),
		Results:     results,
	}
}

func (r *Recommender) record(ctx context.Context, set domain.RecommendationSet) {
	switch {
	case r.recorder != nil:
		if !r.recorder.Submit(set) {
			r.logger.Warn("run not recorded, queue full", zap.String("run_id", set.ID))
		}
	case r.runs != nil:
		if err := r.runs.SaveRun(ctx, set); err != nil {
			r.logger.Warn("failed to save run", zap.String("run_id", set.ID), zap.Error(err))
		}
	}
}

func excludeSeeds(catalog []domain.CatalogEntry, seeds []domain.Track) []domain.CatalogEntry {
	ids := make(map[string]struct{}, len(seeds))
	for _, t := range seeds {
		ids[t.ID] = struct{}{}
	}
	out := make([]domain.CatalogEntry, 0, len(catalog))
	for _, e := range catalog {
		if _, seed := ids[e.ID]; seed && e.ID != "" {
			continue
		}
		out = append(out, e)
	}
	return out
}
