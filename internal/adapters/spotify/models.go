package spotify

type spotifyImage struct {
	URL string `json:"url"`
}

type spotifyArtist struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Genres     []string       `json:"genres"`
	Popularity int            `json:"popularity"`
	Images     []spotifyImage `json:"images"`
}

type spotifyAlbum struct {
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

// spotifyTrack represents the Spotify API response for a track.
type spotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	DurationMs int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
	Artists    []spotifyArtist `json:"artists"`
	Album      spotifyAlbum    `json:"album"`
}

// spotifyPage is the paging object wrapping list responses.
type spotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// spotifyPlaylistItem is one entry of /playlists/{id}/tracks. Track is null
// for removed or unavailable items.
type spotifyPlaylistItem struct {
	Track *spotifyTrack `json:"track"`
}

// spotifyAudioFeatures is one element of the audio-features response.
type spotifyAudioFeatures struct {
	ID               string  `json:"id"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Speechiness      float64 `json:"speechiness"`
	Loudness         float64 `json:"loudness"`
	Tempo            float64 `json:"tempo"`
	Key              float64 `json:"key"`
	Mode             float64 `json:"mode"`
	TimeSignature    float64 `json:"time_signature"`
	DurationMs       float64 `json:"duration_ms"`
}

type audioFeaturesResponse struct {
	// null entries decode as nil pointers
	AudioFeatures []*spotifyAudioFeatures `json:"audio_features"`
}

type spotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"`
	Images      []spotifyImage `json:"images"`
}

type spotifyPlaylist struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Collaborative bool           `json:"collaborative"`
	Images        []spotifyImage `json:"images"`
	Owner         struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"owner"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Public      bool   `json:"public"`
}

// addTracksRequest represents the request body for adding tracks to a playlist.
type addTracksRequest struct {
	URIs []string `json:"uris"`
}
