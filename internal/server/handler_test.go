package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alakazam-audio/alakazam/internal/catalog"
	"github.com/alakazam-audio/alakazam/internal/indexer"
	"github.com/alakazam-audio/alakazam/internal/matcher"
	"github.com/alakazam-audio/alakazam/internal/postings"
	"github.com/alakazam-audio/alakazam/internal/song"
	"github.com/alakazam-audio/alakazam/internal/textindex"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cat := catalog.NewMemoryStore()
	index := postings.NewMemoryIndex()
	text := textindex.NewMemoryIndex()
	engine := matcher.New(index, cat, 4)
	ingest := indexer.New(cat, index, 4, indexer.WithTextIndex(text))
	api := New(ingest, engine, cat, WithTextSearch(text))
	ts := httptest.NewServer(api.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, payload any) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func getJSON(t *testing.T, ts *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func uploadSong(t *testing.T, ts *httptest.Server, title string, hashes []int64) song.Song {
	t.Helper()
	resp, body := postJSON(t, ts, "/api/v1/songs", map[string]any{
		"title":      title,
		"artist":     "Test Artist",
		"genre":      "electronic",
		"duration":   200.0,
		"sampleRate": 44100,
		"hashes":     hashes,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload returned %d: %s", resp.StatusCode, body)
	}
	var sg song.Song
	if err := json.Unmarshal(body, &sg); err != nil {
		t.Fatalf("decoding upload response: %v", err)
	}
	return sg
}

func TestUploadAndGetSong(t *testing.T) {
	ts := newTestServer(t)
	sg := uploadSong(t, ts, "Test Track", []int64{1, 2, 3, 4})

	resp, body := getJSON(t, ts, fmt.Sprintf("/api/v1/songs/%d", sg.ID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get returned %d: %s", resp.StatusCode, body)
	}
	var got song.Song
	json.Unmarshal(body, &got)
	if got.Title != "Test Track" || got.HashCount != 4 {
		t.Errorf("unexpected song: %+v", got)
	}
}

func TestGetSongNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := getJSON(t, ts, "/api/v1/songs/9999")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetSongInvalidID(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := getJSON(t, ts, "/api/v1/songs/notanumber")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadValidation(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"missing title", map[string]any{"artist": "A", "hashes": []int64{1}}},
		{"missing artist", map[string]any{"title": "T", "hashes": []int64{1}}},
		{"missing hashes", map[string]any{"title": "T", "artist": "A"}},
		{"negative duration", map[string]any{"title": "T", "artist": "A", "hashes": []int64{1}, "duration": -1.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postJSON(t, ts, "/api/v1/songs", tt.payload)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestMatchEndpoint(t *testing.T) {
	ts := newTestServer(t)
	sg := uploadSong(t, ts, "Matchable", []int64{10, 20, 30, 40})

	resp, body := postJSON(t, ts, "/api/v1/match", map[string]any{
		"hashes": []int64{10, 20, 30, 40},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("match returned %d: %s", resp.StatusCode, body)
	}
	var mr matchResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		t.Fatalf("decoding match response: %v", err)
	}
	if mr.Count != 1 {
		t.Fatalf("expected 1 result, got %d", mr.Count)
	}
	if mr.Results[0].Song.ID != sg.ID {
		t.Errorf("expected song %d, got %d", sg.ID, mr.Results[0].Song.ID)
	}
	if mr.Results[0].Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %v", mr.Results[0].Confidence)
	}
}

func TestMatchEmptyQueryReturnsEmpty(t *testing.T) {
	ts := newTestServer(t)
	uploadSong(t, ts, "Anything", []int64{1, 2})

	resp, body := postJSON(t, ts, "/api/v1/match", map[string]any{"hashes": []int64{}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("match returned %d: %s", resp.StatusCode, body)
	}
	var mr matchResponse
	json.Unmarshal(body, &mr)
	if mr.Count != 0 {
		t.Errorf("expected empty result, got %d", mr.Count)
	}
}

func TestListSongsPagination(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 7; i++ {
		uploadSong(t, ts, fmt.Sprintf("Song %d", i), []int64{int64(100 * i), int64(100*i + 1)})
	}

	resp, body := getJSON(t, ts, "/api/v1/songs?page=1&pageSize=3")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list returned %d: %s", resp.StatusCode, body)
	}
	var lr listSongsResponse
	json.Unmarshal(body, &lr)
	if len(lr.Songs) != 3 {
		t.Errorf("expected 3 songs on page 1, got %d", len(lr.Songs))
	}
	if lr.Total != 7 {
		t.Errorf("expected total 7, got %d", lr.Total)
	}
}

func TestListSongsRejectsNegativePage(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := getJSON(t, ts, "/api/v1/songs?page=-1")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestTextSearchEndpoint(t *testing.T) {
	ts := newTestServer(t)
	sg := uploadSong(t, ts, "Weightless Ambient", []int64{1, 2, 3})
	uploadSong(t, ts, "Loud Anthem", []int64{4, 5, 6})

	resp, body := getJSON(t, ts, "/api/v1/search?q=weightless")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search returned %d: %s", resp.StatusCode, body)
	}
	var sr searchResponse
	json.Unmarshal(body, &sr)
	if sr.Count != 1 || sr.Songs[0].ID != sg.ID {
		t.Errorf("expected [%d], got %+v", sg.ID, sr.Songs)
	}
}

func TestTextSearchRequiresQuery(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := getJSON(t, ts, "/api/v1/search")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAudioEndpointsDisabledWithoutFingerprinter(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := postJSON(t, ts, "/api/v1/match/audio", map[string]any{
		"samples":    []float32{0.1, 0.2},
		"sampleRate": 44100,
	})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}
