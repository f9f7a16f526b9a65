package spotify_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ewilliams-labs/cadence/internal/adapters/auth"
	"github.com/ewilliams-labs/cadence/internal/adapters/memory"
	"github.com/ewilliams-labs/cadence/internal/adapters/spotify"
	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// --- Helpers ---

type fakeTokens struct {
	mu           sync.Mutex
	current      string
	next         string
	refreshErr   error
	tokenErr     error
	refreshCalls int
	clearCalls   int
}

func (f *fakeTokens) Token(context.Context) (domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenErr != nil {
		return domain.Credential{}, f.tokenErr
	}
	return domain.Credential{AccessToken: f.current, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeTokens) Refresh(context.Context, domain.Credential) (domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return domain.Credential{}, f.refreshErr
	}
	f.current = f.next
	return domain.Credential{AccessToken: f.next, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeTokens) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	return nil
}

func fastRetry() spotify.Option {
	return spotify.WithRetryPolicy(spotify.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond})
}

func newClient(t *testing.T, handler http.HandlerFunc, tokens *fakeTokens, opts ...spotify.Option) *spotify.Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	opts = append([]spotify.Option{fastRetry()}, opts...)
	return spotify.NewClient(ts.Client(), ts.URL, tokens, opts...)
}

// --- Tests ---

func TestClient_GetProfile(t *testing.T) {
	tokens := &fakeTokens{current: "tok-1"}
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me" {
			t.Errorf("Expected URL path /me, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization: got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "user-1",
			"display_name": "Listener",
			"email": "l@example.com",
			"country": "SE",
			"product": "premium",
			"images": [ { "url": "http://img.test/me.jpg" } ]
		}`))
	}, tokens)

	profile, err := client.GetProfile(context.Background())
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	want := domain.Profile{
		ID: "user-1", DisplayName: "Listener", Email: "l@example.com",
		Country: "SE", Product: "premium", ImageURL: "http://img.test/me.jpg",
	}
	if profile != want {
		t.Fatalf("GetProfile() = %+v, want %+v", profile, want)
	}
}

func TestClient_RequestStatusHandling(t *testing.T) {
	tests := []struct {
		name          string
		tokens        *fakeTokens
		handler       func(hits int, w http.ResponseWriter, r *http.Request)
		wantHits      int
		wantRefreshes int
		wantClears    int
		check         func(t *testing.T, err error)
	}{
		{
			name:   "401 refreshes once and retries",
			tokens: &fakeTokens{current: "tok-1", next: "tok-2"},
			handler: func(_ int, w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer tok-2" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				_, _ = w.Write([]byte(`{"id":"user-1"}`))
			},
			wantHits:      2,
			wantRefreshes: 1,
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
		},
		{
			name:   "persistent 401 clears credential",
			tokens: &fakeTokens{current: "tok-1", next: "tok-2"},
			handler: func(_ int, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantHits:      2,
			wantRefreshes: 1,
			wantClears:    1,
			check: func(t *testing.T, err error) {
				var authErr *domain.AuthenticationError
				if !errors.As(err, &authErr) {
					t.Fatalf("expected AuthenticationError, got %v", err)
				}
			},
		},
		{
			name:   "rejected refresh clears credential",
			tokens: &fakeTokens{current: "tok-1", refreshErr: &domain.AuthExchangeError{GrantType: "refresh_token", Status: 400}},
			handler: func(_ int, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantHits:      1,
			wantRefreshes: 1,
			wantClears:    1,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, domain.ErrAuthentication) {
					t.Fatalf("expected ErrAuthentication, got %v", err)
				}
				if !errors.Is(err, domain.ErrAuthExchange) {
					t.Fatalf("expected the exchange failure to be wrapped, got %v", err)
				}
			},
		},
		{
			name:   "429 then success",
			tokens: &fakeTokens{current: "tok-1"},
			handler: func(hits int, w http.ResponseWriter, r *http.Request) {
				if hits == 1 {
					w.Header().Set("Retry-After", "1")
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				_, _ = w.Write([]byte(`{"id":"user-1"}`))
			},
			wantHits: 2,
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
		},
		{
			name:   "persistent 429",
			tokens: &fakeTokens{current: "tok-1"},
			handler: func(_ int, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantHits: 3,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, domain.ErrRateLimitExceeded) {
					t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
				}
			},
		},
		{
			name:   "other status surfaces body",
			tokens: &fakeTokens{current: "tok-1"},
			handler: func(_ int, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":{"status":404,"message":"missing"}}`))
			},
			wantHits: 1,
			check: func(t *testing.T, err error) {
				var apiErr *domain.APIRequestError
				if !errors.As(err, &apiErr) {
					t.Fatalf("expected APIRequestError, got %v", err)
				}
				if apiErr.Status != http.StatusNotFound || !strings.Contains(apiErr.Body, "missing") {
					t.Fatalf("unexpected api error %+v", apiErr)
				}
			},
		},
		{
			name:     "not authenticated",
			tokens:   &fakeTokens{tokenErr: domain.ErrNotAuthenticated},
			handler:  func(_ int, w http.ResponseWriter, r *http.Request) {},
			wantHits: 0,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, domain.ErrNotAuthenticated) {
					t.Fatalf("expected ErrNotAuthenticated, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				tt.handler(int(hits.Add(1)), w, r)
			}, tt.tokens)

			var out map[string]any
			err := client.Request(context.Background(), http.MethodGet, "/me", nil, nil, &out)
			tt.check(t, err)

			if got := int(hits.Load()); got != tt.wantHits {
				t.Fatalf("hits: got %d, want %d", got, tt.wantHits)
			}
			if tt.tokens.refreshCalls != tt.wantRefreshes {
				t.Fatalf("refreshes: got %d, want %d", tt.tokens.refreshCalls, tt.wantRefreshes)
			}
			if tt.tokens.clearCalls != tt.wantClears {
				t.Fatalf("clears: got %d, want %d", tt.tokens.clearCalls, tt.wantClears)
			}
		})
	}
}

func TestClient_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := spotify.NewMetrics(reg)

	var hits atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}, &fakeTokens{current: "tok"}, spotify.WithMetrics(metrics))

	if err := client.Request(context.Background(), http.MethodGet, "/me", nil, nil, nil); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if got := testutil.ToFloat64(metrics.RateLimitRetries); got != 1 {
		t.Fatalf("rate limit retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Requests.WithLabelValues("2xx")); got != 1 {
		t.Fatalf("2xx responses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Requests.WithLabelValues("4xx")); got != 1 {
		t.Fatalf("4xx responses = %v, want 1", got)
	}
}

func TestClient_GetTopTracksPaginates(t *testing.T) {
	type call struct{ limit, offset int }
	var (
		mu    sync.Mutex
		calls []call
	)
	const total = 300

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/top/tracks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("time_range") != "short_term" {
			t.Errorf("time_range = %q", r.URL.Query().Get("time_range"))
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		mu.Lock()
		calls = append(calls, call{limit, offset})
		mu.Unlock()

		items := make([]map[string]any, 0, limit)
		for i := offset; i < offset+limit && i < total; i++ {
			items = append(items, map[string]any{
				"id":          fmt.Sprintf("t%d", i),
				"name":        fmt.Sprintf("Track %d", i),
				"popularity":  i % 100,
				"duration_ms": 180000,
				"artists":     []map[string]string{{"name": "A"}, {"name": "B"}},
				"album":       map[string]any{"name": "Album"},
			})
		}
		next := "more"
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "total": total, "next": &next})
	}, &fakeTokens{current: "tok"})

	tracks, err := client.GetTopTracks(context.Background(), "short_term", 120)
	if err != nil {
		t.Fatalf("GetTopTracks() error = %v", err)
	}
	if len(tracks) != 120 {
		t.Fatalf("expected 120 tracks, got %d", len(tracks))
	}
	want := []call{{50, 0}, {50, 50}, {20, 100}}
	if len(calls) != len(want) {
		t.Fatalf("calls: got %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d: got %+v, want %+v", i, calls[i], want[i])
		}
	}
	first := tracks[0]
	if first.ID != "t0" || first.Name != "Track 0" || len(first.Artists) != 2 || first.AlbumName != "Album" {
		t.Fatalf("unexpected mapped track %+v", first)
	}
}

func TestClient_GetTopTracksStopsWhenExhausted(t *testing.T) {
	var hits atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"items":[{"id":"only","name":"Only"}],"total":1,"next":null}`))
	}, &fakeTokens{current: "tok"})

	tracks, err := client.GetTopTracks(context.Background(), "", 50)
	if err != nil {
		t.Fatalf("GetTopTracks() error = %v", err)
	}
	if len(tracks) != 1 || hits.Load() != 1 {
		t.Fatalf("expected 1 track in 1 call, got %d tracks in %d calls", len(tracks), hits.Load())
	}

	if _, err := client.GetTopTracks(context.Background(), "forever", 10); err == nil {
		t.Fatal("expected error for invalid time range")
	}
}

func TestClient_GetTopArtists(t *testing.T) {
	var calls []string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/top/artists" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		calls = append(calls, q.Get("time_range")+"/"+q.Get("limit")+"/"+q.Get("offset"))
		_, _ = w.Write([]byte(`{"items":[
			{"id":"a1","name":"First","genres":["indie"],"popularity":71,"images":[{"url":"https://img/a1"}]},
			{"id":"","name":"Unknown"},
			{"id":"a2","name":"Second"}
		],"total":3,"next":null}`))
	}, &fakeTokens{current: "tok"})

	artists, err := client.GetTopArtists(context.Background(), "long_term", 0)
	if err != nil {
		t.Fatalf("GetTopArtists() error = %v", err)
	}
	if len(calls) != 1 || calls[0] != "long_term/10/0" {
		t.Fatalf("unexpected calls %v", calls)
	}
	if len(artists) != 2 {
		t.Fatalf("expected 2 artists, got %d", len(artists))
	}
	first := artists[0]
	if first.ID != "a1" || first.Name != "First" || first.Popularity != 71 || first.ImageURL != "https://img/a1" || len(first.Genres) != 1 {
		t.Fatalf("unexpected mapped artist %+v", first)
	}

	if _, err := client.GetTopArtists(context.Background(), "forever", 5); err == nil {
		t.Fatal("expected error for invalid time range")
	}
}

func TestClient_GetPlaylist(t *testing.T) {
	type call struct{ limit, offset int }
	var (
		mu    sync.Mutex
		pages []call
	)
	const total = 120

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/playlists/pl-1":
			_, _ = w.Write([]byte(`{"id":"pl-1","name":"Road trip","description":"long drives","collaborative":true,
				"owner":{"id":"user-1","display_name":"Listener"},"images":[{"url":"https://img/pl-1"}],
				"tracks":{"total":120},"external_urls":{"spotify":"https://open.spotify.com/playlist/pl-1"}}`))
		case "/playlists/pl-1/tracks":
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			mu.Lock()
			pages = append(pages, call{limit, offset})
			mu.Unlock()

			items := make([]map[string]any, 0, limit)
			for i := offset; i < offset+limit && i < total; i++ {
				if i == 3 {
					items = append(items, map[string]any{"track": nil})
					continue
				}
				items = append(items, map[string]any{"track": map[string]any{
					"id":      fmt.Sprintf("t%d", i),
					"name":    fmt.Sprintf("Track %d", i),
					"artists": []map[string]string{{"name": "A"}},
				}})
			}
			var next *string
			if offset+limit < total {
				more := "more"
				next = &more
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "total": total, "next": next})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}, &fakeTokens{current: "tok"})

	pl, err := client.GetPlaylist(context.Background(), "pl-1")
	if err != nil {
		t.Fatalf("GetPlaylist() error = %v", err)
	}
	if pl.Name != "Road trip" || pl.Owner != "Listener" || !pl.Collaborative || pl.ImageURL != "https://img/pl-1" || pl.TrackTotal != total {
		t.Fatalf("unexpected playlist metadata %+v", pl)
	}
	if len(pl.Tracks) != total-1 {
		t.Fatalf("expected %d tracks, got %d", total-1, len(pl.Tracks))
	}
	if pl.Tracks[3].ID != "t4" {
		t.Fatalf("null item not skipped: %+v", pl.Tracks[3])
	}
	want := []call{{50, 0}, {50, 50}, {50, 100}}
	if len(pages) != len(want) {
		t.Fatalf("pages: got %v, want %v", pages, want)
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Fatalf("page %d: got %+v, want %+v", i, pages[i], want[i])
		}
	}
}

func TestClient_GetPlaylistNotFound(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"status":404,"message":"Not found."}}`))
	}, &fakeTokens{current: "tok"})

	_, err := client.GetPlaylist(context.Background(), "missing")
	var apiErr *domain.APIRequestError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 APIRequestError, got %v", err)
	}
	if _, err := client.GetPlaylist(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func featuresHandler(t *testing.T, failIfContains string, batches *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio-features" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		batches.Add(1)
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		if len(ids) > 100 {
			t.Errorf("batch of %d ids exceeds 100", len(ids))
		}
		for _, id := range ids {
			if failIfContains != "" && id == failIfContains {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		out := make([]any, 0, len(ids))
		for _, id := range ids {
			if id == "t5" {
				out = append(out, nil)
				continue
			}
			out = append(out, map[string]any{"id": id, "danceability": 0.5, "energy": 0.7, "tempo": 120})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"audio_features": out})
	}
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%d", i)
	}
	return out
}

func TestClient_GetAudioFeatures(t *testing.T) {
	var batches atomic.Int32
	client := newClient(t, featuresHandler(t, "", &batches), &fakeTokens{current: "tok"})

	got, err := client.GetAudioFeatures(context.Background(), append(ids(250), "t1", ""))
	if err != nil {
		t.Fatalf("GetAudioFeatures() error = %v", err)
	}
	if batches.Load() != 3 {
		t.Fatalf("expected 3 batches, got %d", batches.Load())
	}
	if len(got) != 249 {
		t.Fatalf("expected 249 feature sets (null skipped), got %d", len(got))
	}
	if f := got["t0"]; f.Danceability != 0.5 || f.Energy != 0.7 || f.Tempo != 120 || f.ID != "t0" {
		t.Fatalf("unexpected features %+v", f)
	}
	if _, ok := got["t5"]; ok {
		t.Fatal("null feature entry should be skipped")
	}
}

func TestClient_GetAudioFeaturesPartialFailure(t *testing.T) {
	var batches atomic.Int32
	client := newClient(t, featuresHandler(t, "t100", &batches), &fakeTokens{current: "tok"})

	got, err := client.GetAudioFeatures(context.Background(), ids(250))
	var partial *domain.PartialResultError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialResultError, got %v", err)
	}
	if partial.Failed != 1 || partial.Total != 3 {
		t.Fatalf("unexpected partial error %+v", partial)
	}
	if !errors.Is(err, domain.ErrAPIRequest) {
		t.Fatalf("expected the batch failure to be wrapped, got %v", err)
	}
	if len(got) != 149 {
		t.Fatalf("expected 149 feature sets from surviving batches, got %d", len(got))
	}
	if batches.Load() != 3 {
		t.Fatalf("sibling batches should still run, got %d", batches.Load())
	}
}

func TestClient_GetAudioFeaturesAllFail(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}, &fakeTokens{current: "tok"})

	got, err := client.GetAudioFeatures(context.Background(), ids(10))
	if err == nil || got != nil {
		t.Fatalf("expected total failure, got %v, %v", got, err)
	}
	if errors.Is(err, domain.ErrPartialResult) {
		t.Fatal("total failure must not be reported as partial")
	}
}

func TestClient_CreatePlaylistAndAddTracks(t *testing.T) {
	var (
		mu        sync.Mutex
		addBodies [][]string
	)
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/users/user-1/playlists":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["name"] != "Cadence mix" || body["public"] != false {
				t.Errorf("unexpected create body %v", body)
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"pl-1","name":"Cadence mix","external_urls":{"spotify":"https://open.spotify.com/playlist/pl-1"}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/playlists/pl-1/tracks":
			var body struct {
				URIs []string `json:"uris"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			addBodies = append(addBodies, body.URIs)
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"snapshot_id":"s"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}, &fakeTokens{current: "tok"})

	ctx := context.Background()
	pl, err := client.CreatePlaylist(ctx, "user-1", "Cadence mix", "made by cadence")
	if err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}
	if pl.ID != "pl-1" || pl.URL != "https://open.spotify.com/playlist/pl-1" {
		t.Fatalf("unexpected playlist %+v", pl)
	}

	if err := client.AddTracksToPlaylist(ctx, pl.ID, ids(150)); err != nil {
		t.Fatalf("AddTracksToPlaylist() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(addBodies) != 2 || len(addBodies[0]) != 100 || len(addBodies[1]) != 50 {
		t.Fatalf("unexpected add batches %d", len(addBodies))
	}
	if addBodies[0][0] != "spotify:track:t0" {
		t.Fatalf("unexpected uri %q", addBodies[0][0])
	}
}

// Two concurrent requests against an expired credential must share one
// refresh exchange.
func TestClient_ConcurrentRequestsShareRefresh(t *testing.T) {
	var tokenPosts atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenPosts.Add(1)
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"user-1"}`))
	}))
	defer apiSrv.Close()

	ctx := context.Background()
	store := memory.NewStore(0)
	_ = store.Set(ctx, domain.Credential{AccessToken: "expired", RefreshToken: "r1", ExpiresAt: time.Now().Add(-time.Minute)})

	flow := auth.NewFlow(auth.Config{ClientID: "c", TokenURL: tokenSrv.URL + "/api/token"}, store, store,
		auth.WithHTTPClient(tokenSrv.Client()))
	session := auth.NewSession(flow, store)
	client := spotify.NewClient(apiSrv.Client(), apiSrv.URL, session)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.GetProfile(ctx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("GetProfile() error = %v", err)
		}
	}
	if got := tokenPosts.Load(); got != 1 {
		t.Fatalf("expected exactly 1 refresh POST, got %d", got)
	}
}
