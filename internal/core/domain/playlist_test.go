package domain

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestPlaylist_AddTrack(t *testing.T) {
	tests := []struct {
		name          string
		initialTracks []Track
		toAdd         Track
		wantErr       error
		wantLen       int
	}{
		{
			name:          "adds new track successfully",
			initialTracks: []Track{},
			toAdd:         Track{ID: "t1", Name: "Song One", Artists: []string{"Artist A"}},
			wantErr:       nil,
			wantLen:       1,
		},
		{
			name: "fails when adding track with duplicate id",
			initialTracks: []Track{
				{ID: "t1", Name: "Existing", Artists: []string{"Artist A"}},
			},
			toAdd:   Track{ID: "t1", Name: "Song Two", Artists: []string{"Artist B"}},
			wantErr: ErrDuplicateTrack,
			wantLen: 1,
		},
	}

	for _, tc := range tests {
		tc := tc // capture range variable
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewPlaylist("pl-1", "Test Playlist")
			if err != nil {
				t.Fatalf("failed to create playlist: %v", err)
			}
			p.Tracks = append(p.Tracks, tc.initialTracks...)

			err = p.AddTrack(tc.toAdd)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got: %v", err)
				}
			} else {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
			}

			if got := len(p.Tracks); got != tc.wantLen {
				t.Fatalf("expected %d tracks, got %d", tc.wantLen, got)
			}

			if tc.wantErr == nil {
				last := p.Tracks[len(p.Tracks)-1]
				if !reflect.DeepEqual(last, tc.toAdd) {
					t.Fatalf("last track mismatch: want %+v, got %+v", tc.toAdd, last)
				}
			}
		})
	}
}

func TestPlaylist_AddTrackWithoutID(t *testing.T) {
	p, err := NewPlaylist("pl-1", "Test")
	if err != nil {
		t.Fatalf("failed to create playlist: %v", err)
	}
	if err := p.AddTrack(Track{Name: "No ID"}); err == nil {
		t.Fatal("expected error for track without id")
	}
}

func TestCredential_Valid(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{"empty access token", Credential{ExpiresAt: now.Add(time.Hour)}, false},
		{"well before expiry", Credential{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}, true},
		{"inside safety margin", Credential{AccessToken: "a", ExpiresAt: now.Add(4 * time.Minute)}, false},
		{"exactly at margin", Credential{AccessToken: "a", ExpiresAt: now.Add(DefaultExpiryMargin)}, false},
		{"already expired", Credential{AccessToken: "a", ExpiresAt: now.Add(-time.Minute)}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cred.Valid(now, DefaultExpiryMargin); got != tc.want {
				t.Fatalf("Valid() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestErrorTaxonomy_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"auth exchange", &AuthExchangeError{GrantType: "refresh_token", Status: 400}, ErrAuthExchange},
		{"authentication", &AuthenticationError{Status: 401}, ErrAuthentication},
		{"rate limit", &RateLimitExceededError{Attempts: 4}, ErrRateLimitExceeded},
		{"api request", &APIRequestError{Method: "GET", Path: "/me", Status: 500}, ErrAPIRequest},
		{"insufficient seeds", &InsufficientSeedDataError{}, ErrInsufficientSeedData},
		{"partial", &PartialResultError{Failed: 1, Total: 2, Err: errors.New("boom")}, ErrPartialResult},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := errors.Join(errors.New("context"), tc.err)
			if !errors.Is(wrapped, tc.target) {
				t.Fatalf("errors.Is(%v, %v) = false", wrapped, tc.target)
			}
			if tc.err.Error() == "" {
				t.Fatal("expected non-empty message")
			}
		})
	}
}

func TestAudioFeatures_FeatureValueRoundTrip(t *testing.T) {
	names := []string{
		"acousticness", "danceability", "energy", "valence", "instrumentalness", "liveness",
		"speechiness", "loudness", "tempo", "key", "mode", "time_signature", "duration_ms",
	}
	var f AudioFeatures
	for i, name := range names {
		if !f.SetFeatureValue(name, float64(i+1)) {
			t.Fatalf("SetFeatureValue(%q) reported unknown", name)
		}
	}
	for i, name := range names {
		got, ok := f.FeatureValue(name)
		if !ok || got != float64(i+1) {
			t.Fatalf("FeatureValue(%q) = %v, %v; want %v", name, got, ok, i+1)
		}
	}
	if _, ok := f.FeatureValue("popularity"); ok {
		t.Fatal("expected unknown feature to report false")
	}
}
