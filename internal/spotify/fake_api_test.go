package spotify_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/spotify"
)

// fakeAPI serves a tiny slice of the Web API from fixtures.
type fakeAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	hits     map[string]int
	failures map[string]int // path -> remaining 503 responses

	tokenRequests atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{hits: map[string]int{}, failures: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenRequests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("GET /v1/tracks/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "missing" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, track(id, "Song "+id, 1))
	})
	mux.HandleFunc("GET /v1/albums/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		writeJSON(w, map[string]any{
			"id": id, "name": "Album " + id, "album_type": "album", "release_date": "2019-05-03", "total_tracks": 3,
			"artists": []any{map[string]any{"id": "art", "name": "Band"}},
			"images":  []any{map[string]any{"url": "https://img/album-small", "width": 64, "height": 64}, map[string]any{"url": "https://img/album-big", "width": 640, "height": 640}},
			"tracks": map[string]any{
				"items": []any{simpleTrack("a1", 1), simpleTrack("a2", 2)},
				"next":  f.server.URL + "/v1/albums/" + id + "/tracks?offset=2",
				"total": 3,
			},
		})
	})
	mux.HandleFunc("GET /v1/albums/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"items": []any{simpleTrack("a3", 3)}, "next": nil, "total": 3})
	})
	mux.HandleFunc("GET /v1/playlists/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		writeJSON(w, map[string]any{
			"id": id, "name": "Road Trip",
			"images": []any{map[string]any{"url": "https://img/playlist", "width": 300, "height": 300}},
			"tracks": map[string]any{
				"items": []any{
					map[string]any{"track": track("p1", "First", 4)},
					map[string]any{"track": nil},
					map[string]any{"track": track("p2", "Second", 9), "is_local": false},
				},
				"next":  f.server.URL + "/v1/playlists/" + id + "/tracks?offset=3",
				"total": 4,
			},
		})
	})
	mux.HandleFunc("GET /v1/playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"items": []any{map[string]any{"track": track("p3", "Third", 2)}},
			"next":  nil, "total": 4,
		})
	})
	mux.HandleFunc("GET /v1/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if strings.Contains(q, "nothing") {
			writeJSON(w, map[string]any{"tracks": map[string]any{"items": []any{}}})
			return
		}
		writeJSON(w, map[string]any{"tracks": map[string]any{"items": []any{track("s1", q, 1)}}})
	})

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		fail := f.failures[r.URL.Path] > 0
		if fail {
			f.failures[r.URL.Path]--
		}
		f.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) failNext(path string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = n
}

func (f *fakeAPI) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// client returns a client that talks to the fake with a plain HTTP client,
// standing in for a pre-authenticated one.
func (f *fakeAPI) client(t *testing.T, opts spotify.Options) *spotify.Client {
	t.Helper()
	if opts.HTTPClient == nil && opts.ClientID == "" {
		opts.HTTPClient = f.server.Client()
	}
	opts.BaseURL = f.server.URL + "/v1"
	opts.TokenURL = f.server.URL + "/api/token"
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}
	c, err := spotify.New(opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func track(id, name string, number int) map[string]any {
	return map[string]any{
		"id": id, "name": name, "track_number": number, "disc_number": 1, "duration_ms": 215000,
		"artists":       []any{map[string]any{"id": "a", "name": "Artist"}, map[string]any{"id": "b", "name": "Guest"}},
		"external_ids":  map[string]any{"isrc": "ISRC" + id},
		"external_urls": map[string]any{"spotify": "https://open.spotify.com/track/" + id},
		"album": map[string]any{
			"id": "alb-" + id, "name": "Album of " + id, "album_type": "single", "release_date": "2021", "total_tracks": 1,
			"artists": []any{map[string]any{"id": "a", "name": "Artist"}},
			"images":  []any{map[string]any{"url": "https://img/" + id, "width": 640, "height": 640}},
		},
	}
}

func simpleTrack(id string, number int) map[string]any {
	return map[string]any{
		"id": id, "name": "Track " + id, "track_number": number, "disc_number": 1, "duration_ms": 180500,
		"artists": []any{map[string]any{"id": "art", "name": "Band"}},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
