package spotify

import (
	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// mapTrackToDomain converts a raw Spotify track to a domain track.
func mapTrackToDomain(st spotifyTrack) domain.Track {
	artists := make([]string, 0, len(st.Artists))
	for _, a := range st.Artists {
		artists = append(artists, a.Name)
	}

	return domain.Track{
		ID:         st.ID,
		Name:       st.Name,
		Artists:    artists,
		AlbumName:  st.Album.Name,
		Popularity: st.Popularity,
		DurationMs: st.DurationMs,
	}
}

func mapFeaturesToDomain(f spotifyAudioFeatures) domain.AudioFeatures {
	return domain.AudioFeatures{
		ID:               f.ID,
		Acousticness:     f.Acousticness,
		Danceability:     f.Danceability,
		Energy:           f.Energy,
		Valence:          f.Valence,
		Instrumentalness: f.Instrumentalness,
		Liveness:         f.Liveness,
		Speechiness:      f.Speechiness,
		Loudness:         f.Loudness,
		Tempo:            f.Tempo,
		Key:              f.Key,
		Mode:             f.Mode,
		TimeSignature:    f.TimeSignature,
		DurationMs:       f.DurationMs,
	}
}

func mapProfileToDomain(u spotifyUser) domain.Profile {
	return domain.Profile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Country:     u.Country,
		Product:     u.Product,
		ImageURL:    firstImage(u.Images),
	}
}

// mapPlaylistToDomain converts playlist metadata. Tracks are fetched
// separately, so the result starts empty.
func mapPlaylistToDomain(sp spotifyPlaylist) domain.Playlist {
	owner := sp.Owner.DisplayName
	if owner == "" {
		owner = sp.Owner.ID
	}
	return domain.Playlist{
		ID:            sp.ID,
		Name:          sp.Name,
		Description:   sp.Description,
		Owner:         owner,
		Collaborative: sp.Collaborative,
		ImageURL:      firstImage(sp.Images),
		URL:           sp.ExternalURLs.Spotify,
		TrackTotal:    sp.Tracks.Total,
		Tracks:        []domain.Track{},
	}
}

func mapArtistToDomain(sa spotifyArtist) domain.Artist {
	return domain.Artist{
		ID:         sa.ID,
		Name:       sa.Name,
		Genres:     sa.Genres,
		Popularity: sa.Popularity,
		ImageURL:   firstImage(sa.Images),
	}
}

func firstImage(images []spotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
