package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const (
	pageLimitMax      = 50
	defaultTopTracks  = 50
	defaultTopArtists = 10

	TimeRangeShort  = "short_term"
	TimeRangeMedium = "medium_term"
	TimeRangeLong   = "long_term"
)

// ValidTimeRange reports whether r is accepted by the top items endpoint.
func ValidTimeRange(r string) bool {
	switch r {
	case TimeRangeShort, TimeRangeMedium, TimeRangeLong:
		return true
	}
	return false
}

// GetProfile returns the current user's profile.
func (c *Client) GetProfile(ctx context.Context) (domain.Profile, error) {
	var u spotifyUser
	if err := c.Request(ctx, http.MethodGet, "/me", nil, nil, &u); err != nil {
		return domain.Profile{}, err
	}
	return mapProfileToDomain(u), nil
}

// GetTopTracks pages through the user's top tracks until limit tracks are
// collected or the provider runs out. An empty timeRange means medium_term.
func (c *Client) GetTopTracks(ctx context.Context, timeRange string, limit int) ([]domain.Track, error) {
	if limit <= 0 {
		limit = defaultTopTracks
	}
	items, err := fetchTop[spotifyTrack](ctx, c, "tracks", timeRange, limit, func(st spotifyTrack) bool { return st.ID != "" })
	if err != nil {
		return nil, err
	}
	tracks := make([]domain.Track, len(items))
	for i, st := range items {
		tracks[i] = mapTrackToDomain(st)
	}
	return tracks, nil
}

// GetTopArtists returns up to limit of the user's top artists.
func (c *Client) GetTopArtists(ctx context.Context, timeRange string, limit int) ([]domain.Artist, error) {
	if limit <= 0 {
		limit = defaultTopArtists
	}
	items, err := fetchTop[spotifyArtist](ctx, c, "artists", timeRange, limit, func(sa spotifyArtist) bool { return sa.ID != "" })
	if err != nil {
		return nil, err
	}
	artists := make([]domain.Artist, len(items))
	for i, sa := range items {
		artists[i] = mapArtistToDomain(sa)
	}
	return artists, nil
}

// fetchTop pages /me/top/{kind} in steps of at most 50 items.
func fetchTop[T any](ctx context.Context, c *Client, kind, timeRange string, limit int, keep func(T) bool) ([]T, error) {
	if timeRange == "" {
		timeRange = TimeRangeMedium
	}
	if !ValidTimeRange(timeRange) {
		return nil, fmt.Errorf("spotify adapter: invalid time range %q", timeRange)
	}

	out := make([]T, 0, limit)
	for offset := 0; len(out) < limit; {
		pageSize := min(pageLimitMax, limit-len(out))
		query := url.Values{}
		query.Set("time_range", timeRange)
		query.Set("limit", strconv.Itoa(pageSize))
		query.Set("offset", strconv.Itoa(offset))

		var page spotifyPage[T]
		if err := c.Request(ctx, http.MethodGet, "/me/top/"+kind, query, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if keep(item) {
				out = append(out, item)
			}
		}

		offset += len(page.Items)
		if len(page.Items) == 0 || page.Next == nil || (page.Total > 0 && offset >= page.Total) {
			break
		}
	}

	c.logger.Debug("fetched top items",
		zap.String("kind", kind),
		zap.String("time_range", timeRange),
		zap.Int("count", len(out)),
	)
	return out, nil
}
