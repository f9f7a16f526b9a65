package ports

import (
	"context"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// SpotifyProvider is the subset of the provider API the core depends on.
type SpotifyProvider interface {
	GetProfile(ctx context.Context) (domain.Profile, error)
	GetTopTracks(ctx context.Context, timeRange string, limit int) ([]domain.Track, error)
	GetTopArtists(ctx context.Context, timeRange string, limit int) ([]domain.Artist, error)
	// GetAudioFeatures returns features keyed by track ID. When some batches
	// fail it returns the successful part together with a
	// *domain.PartialResultError.
	GetAudioFeatures(ctx context.Context, trackIDs []string) (map[string]domain.AudioFeatures, error)
	CreatePlaylist(ctx context.Context, userID, name, description string) (domain.Playlist, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error
	// GetPlaylist reads a playlist and all of its tracks.
	GetPlaylist(ctx context.Context, playlistID string) (domain.Playlist, error)
}

// TokenProvider hands out bearer credentials and coordinates refreshes.
type TokenProvider interface {
	Token(ctx context.Context) (domain.Credential, error)
	Refresh(ctx context.Context, stale domain.Credential) (domain.Credential, error)
	Clear(ctx context.Context) error
}
