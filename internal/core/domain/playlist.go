package domain

import "errors"

var ErrDuplicateTrack = errors.New("domain: duplicate track")

// Playlist is a playlist in the listener's account. Owner, Collaborative
// and TrackTotal are only filled when a playlist is read back.
type Playlist struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Owner         string  `json:"owner,omitempty"`
	Collaborative bool    `json:"collaborative"`
	ImageURL      string  `json:"image_url,omitempty"`
	URL           string  `json:"url,omitempty"`
	TrackTotal    int     `json:"track_total"`
	Tracks        []Track `json:"tracks"`
}

func NewPlaylist(id, name string) (*Playlist, error) {
	if id == "" || name == "" {
		return nil, errors.New("domain: invalid argument")
	}
	return &Playlist{
		ID:     id,
		Name:   name,
		Tracks: []Track{},
	}, nil
}

// AddTrack appends a track to the playlist while preventing duplicate IDs.
// Tracks without an ID are rejected because the provider cannot address them.
func (p *Playlist) AddTrack(t Track) error {
	if t.ID == "" {
		return errors.New("domain: track id is required")
	}
	for _, ex := range p.Tracks {
		if ex.ID == t.ID {
			return ErrDuplicateTrack
		}
	}
	p.Tracks = append(p.Tracks, t)
	return nil
}

// TrackIDs returns the IDs in playlist order.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}
