package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const (
	playlistAddLimit  = 100
	playlistPageLimit = 50
)

// CreatePlaylist creates a private playlist in userID's account.
func (c *Client) CreatePlaylist(ctx context.Context, userID, name, description string) (domain.Playlist, error) {
	if userID == "" {
		return domain.Playlist{}, fmt.Errorf("spotify adapter: user id is required")
	}

	body := createPlaylistRequest{Name: name, Description: description, Public: false}
	var sp spotifyPlaylist
	path := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := c.Request(ctx, http.MethodPost, path, nil, body, &sp); err != nil {
		return domain.Playlist{}, err
	}
	return mapPlaylistToDomain(sp), nil
}

// AddTracksToPlaylist appends tracks in order, at most 100 per request.
// Spotify requires URIs in the format "spotify:track:{id}".
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	path := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	for _, ids := range chunk(trackIDs, playlistAddLimit) {
		uris := make([]string, len(ids))
		for i, id := range ids {
			uris[i] = "spotify:track:" + id
		}
		if err := c.Request(ctx, http.MethodPost, path, nil, addTracksRequest{URIs: uris}, nil); err != nil {
			return fmt.Errorf("spotify adapter: add tracks to %s: %w", playlistID, err)
		}
	}
	return nil
}

// GetPlaylist reads a playlist's metadata and then pages through its tracks.
// Removed or local items without an ID are skipped.
func (c *Client) GetPlaylist(ctx context.Context, playlistID string) (domain.Playlist, error) {
	if playlistID == "" {
		return domain.Playlist{}, fmt.Errorf("spotify adapter: playlist id is required")
	}

	base := "/playlists/" + url.PathEscape(playlistID)
	var sp spotifyPlaylist
	if err := c.Request(ctx, http.MethodGet, base, nil, nil, &sp); err != nil {
		return domain.Playlist{}, err
	}
	pl := mapPlaylistToDomain(sp)

	for offset := 0; ; {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(playlistPageLimit))
		query.Set("offset", strconv.Itoa(offset))

		var page spotifyPage[spotifyPlaylistItem]
		if err := c.Request(ctx, http.MethodGet, base+"/tracks", query, nil, &page); err != nil {
			return domain.Playlist{}, fmt.Errorf("spotify adapter: tracks of %s: %w", playlistID, err)
		}
		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			pl.Tracks = append(pl.Tracks, mapTrackToDomain(*item.Track))
		}

		offset += len(page.Items)
		if len(page.Items) == 0 || page.Next == nil || (page.Total > 0 && offset >= page.Total) {
			break
		}
	}
	if pl.TrackTotal == 0 {
		pl.TrackTotal = len(pl.Tracks)
	}
	return pl, nil
}
