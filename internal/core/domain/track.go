package domain

// Track represents a listener's track as returned by the provider.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	AlbumName  string   `json:"album_name,omitempty"`
	Popularity int      `json:"popularity"`
	DurationMs int      `json:"duration_ms"`
}

// AudioFeatures holds the provider's numeric audio analysis for one track.
// Values are mostly in [0,1]; Loudness is in dB, Tempo in BPM, Key is 0-11,
// TimeSignature is beats per bar and DurationMs is milliseconds.
type AudioFeatures struct {
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

// FeatureValue returns the named feature. Unknown names report false.
func (f AudioFeatures) FeatureValue(name string) (float64, bool) {
	switch name {
	case "acousticness":
		return f.Acousticness, true
	case "danceability":
		return f.Danceability, true
	case "energy":
		return f.Energy, true
	case "valence":
		return f.Valence, true
	case "instrumentalness":
		return f.Instrumentalness, true
	case "liveness":
		return f.Liveness, true
	case "speechiness":
		return f.Speechiness, true
	case "loudness":
		return f.Loudness, true
	case "tempo":
		return f.Tempo, true
	case "key":
		return f.Key, true
	case "mode":
		return f.Mode, true
	case "time_signature":
		return f.TimeSignature, true
	case "duration_ms":
		return f.DurationMs, true
	default:
		return 0, false
	}
}

// SetFeatureValue assigns the named feature and reports whether the name is known.
func (f *AudioFeatures) SetFeatureValue(name string, v float64) bool {
	switch name {
	case "acousticness":
		f.Acousticness = v
	case "danceability":
		f.Danceability = v
	case "energy":
		f.Energy = v
	case "valence":
		f.Valence = v
	case "instrumentalness":
		f.Instrumentalness = v
	case "liveness":
		f.Liveness = v
	case "speechiness":
		f.Speechiness = v
	case "loudness":
		f.Loudness = v
	case "tempo":
		f.Tempo = v
	case "key":
		f.Key = v
	case "mode":
		f.Mode = v
	case "time_signature":
		f.TimeSignature = v
	case "duration_ms":
		f.DurationMs = v
	default:
		return false
	}
	return true
}

// CatalogEntry is a candidate track from the static catalog.
type CatalogEntry struct {
	ID         string        `json:"id,omitempty"`
	TrackName  string        `json:"track_name"`
	Artists    []string      `json:"artists"`
	AlbumName  string        `json:"album_name,omitempty"`
	Genre      string        `json:"genre,omitempty"`
	Popularity float64       `json:"popularity"`
	Features   AudioFeatures `json:"features"`
}

// FeatureValue delegates to the entry's audio features.
func (e CatalogEntry) FeatureValue(name string) (float64, bool) {
	return e.Features.FeatureValue(name)
}

// Profile is the authenticated listener's account summary.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Country     string `json:"country,omitempty"`
	Product     string `json:"product,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Artist is one of the listener's top artists.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres,omitempty"`
	Popularity int      `json:"popularity"`
	ImageURL   string   `json:"image_url,omitempty"`
}

// ListeningProfile summarises a listener's seed tracks and top artists.
type ListeningProfile struct {
	User       Profile       `json:"user"`
	SeedCount  int           `json:"seed_count"`
	Average    AudioFeatures `json:"average"`
	TopArtists []Artist      `json:"top_artists"`
}
