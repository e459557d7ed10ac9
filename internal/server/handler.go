// Package server wires the indexing and matching engines into the HTTP API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alakazam-audio/alakazam/internal/analytics"
	"github.com/alakazam-audio/alakazam/internal/catalog"
	"github.com/alakazam-audio/alakazam/internal/fingerprint"
	"github.com/alakazam-audio/alakazam/internal/indexer"
	"github.com/alakazam-audio/alakazam/internal/matcher"
	"github.com/alakazam-audio/alakazam/internal/song"
	"github.com/alakazam-audio/alakazam/internal/textindex"
	"github.com/alakazam-audio/alakazam/pkg/errors"
	"github.com/alakazam-audio/alakazam/pkg/health"
	"github.com/alakazam-audio/alakazam/pkg/middleware"
)

// MatchEngine is the matching entry point the handlers call. Both the bare
// engine and the cached wrapper satisfy it.
type MatchEngine interface {
	Match(ctx context.Context, queryHashes []int64) ([]matcher.Result, error)
}

// Server holds the handler dependencies.
type Server struct {
	indexer    *indexer.Indexer
	engine     MatchEngine
	catalog    catalog.Store
	text       textindex.Index
	generator  fingerprint.Generator
	collector  *analytics.Collector
	aggregator *analytics.Aggregator
	health     *health.Checker
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithTextSearch enables the free-text search endpoint.
func WithTextSearch(ix textindex.Index) Option {
	return func(s *Server) { s.text = ix }
}

// WithFingerprinter enables the audio upload and audio match endpoints.
func WithFingerprinter(g fingerprint.Generator) Option {
	return func(s *Server) { s.generator = g }
}

// WithAnalytics enables event publication and the stats endpoint.
func WithAnalytics(c *analytics.Collector, a *analytics.Aggregator) Option {
	return func(s *Server) {
		s.collector = c
		s.aggregator = a
	}
}

// WithHealth attaches the readiness checker.
func WithHealth(h *health.Checker) Option {
	return func(s *Server) { s.health = h }
}

// New creates a Server.
func New(in *indexer.Indexer, engine MatchEngine, cat catalog.Store, opts ...Option) *Server {
	s := &Server{
		indexer: in,
		engine:  engine,
		catalog: cat,
		logger:  slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/songs", s.handleUploadSong)
	mux.HandleFunc("POST /api/v1/songs/audio", s.handleUploadAudio)
	mux.HandleFunc("GET /api/v1/songs", s.handleListSongs)
	mux.HandleFunc("GET /api/v1/songs/{id}", s.handleGetSong)
	mux.HandleFunc("POST /api/v1/match", s.handleMatch)
	mux.HandleFunc("POST /api/v1/match/audio", s.handleMatchAudio)
	mux.HandleFunc("GET /api/v1/search", s.handleTextSearch)
	mux.HandleFunc("GET /api/v1/analytics", s.handleAnalytics)
	if s.health != nil {
		mux.Handle("GET /healthz", s.health.LiveHandler())
		mux.Handle("GET /readyz", s.health.ReadyHandler())
	}
	return mux
}

type uploadSongRequest struct {
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Genre      string  `json:"genre"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sampleRate"`
	Hashes     []int64 `json:"hashes"`
	HashCount  int     `json:"hashCount"`
}

type uploadAudioRequest struct {
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Genre      string    `json:"genre"`
	Samples    []float32 `json:"samples"`
	SampleRate int       `json:"sampleRate"`
}

type matchRequest struct {
	Hashes []int64 `json:"hashes"`
}

type matchAudioRequest struct {
	Samples    []float32 `json:"samples"`
	SampleRate int       `json:"sampleRate"`
}

type matchResponse struct {
	Results []matcher.Result `json:"results"`
	Count   int              `json:"count"`
}

type listSongsResponse struct {
	Songs    []song.Song `json:"songs"`
	Page     int64       `json:"page"`
	PageSize int64       `json:"pageSize"`
	Total    int64       `json:"total"`
}

type searchResponse struct {
	Songs []song.Song `json:"songs"`
	Count int         `json:"count"`
}

func (s *Server) handleUploadSong(w http.ResponseWriter, r *http.Request) {
	var req uploadSongRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, errors.Newf(errors.ErrInvalidInput, 400, "malformed JSON body: %v", err))
		return
	}
	if err := validateUpload(&req); err != nil {
		s.respondError(w, r, err)
		return
	}
	hashCount := req.HashCount
	if hashCount <= 0 {
		hashCount = len(req.Hashes)
	}
	s.indexSong(w, r, song.Metadata{
		Title:      req.Title,
		Artist:     req.Artist,
		Genre:      req.Genre,
		Duration:   req.Duration,
		SampleRate: req.SampleRate,
	}, req.Hashes, hashCount)
}

func (s *Server) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		s.respondError(w, r, errors.New(errors.ErrFingerprinterUnavailable, 503, "audio endpoints are disabled"))
		return
	}
	var req uploadAudioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, errors.Newf(errors.ErrInvalidInput, 400, "malformed JSON body: %v", err))
		return
	}
	if req.Title == "" || req.Artist == "" {
		s.respondError(w, r, errors.New(errors.ErrInvalidInput, 400, "title and artist are required"))
		return
	}
	if err := validateAudio(req.Samples, req.SampleRate); err != nil {
		s.respondError(w, r, err)
		return
	}
	fp, err := s.generator.GenerateSongFingerprint(r.Context(), req.Samples, req.SampleRate)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.indexSong(w, r, song.Metadata{
		Title:      req.Title,
		Artist:     req.Artist,
		Genre:      req.Genre,
		Duration:   fp.Duration,
		SampleRate: fp.SampleRate,
	}, fp.Hashes, fp.HashCount)
}

// indexSong is the shared tail of both upload paths.
func (s *Server) indexSong(w http.ResponseWriter, r *http.Request, meta song.Metadata, hashes []int64, hashCount int) {
	start := time.Now()
	sg, err := s.indexer.IndexSong(r.Context(), meta, hashes, hashCount)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if s.collector != nil {
		s.collector.RecordIndex(analytics.IndexEvent{
			RequestID:      middleware.GetRequestID(r.Context()),
			SongID:         sg.ID,
			Title:          sg.Title,
			Artist:         sg.Artist,
			HashCount:      sg.HashCount,
			DurationMillis: time.Since(start).Milliseconds(),
		})
	}
	s.respondJSON(w, http.StatusCreated, sg)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, errors.Newf(errors.ErrInvalidInput, 400, "malformed JSON body: %v", err))
		return
	}
	if err := validateMatch(&req); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.match(w, r, req.Hashes)
}

func (s *Server) handleMatchAudio(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		s.respondError(w, r, errors.New(errors.ErrFingerprinterUnavailable, 503, "audio endpoints are disabled"))
		return
	}
	var req matchAudioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, errors.Newf(errors.ErrInvalidInput, 400, "malformed JSON body: %v", err))
		return
	}
	if err := validateAudio(req.Samples, req.SampleRate); err != nil {
		s.respondError(w, r, err)
		return
	}
	fp, err := s.generator.GenerateQueryFingerprint(r.Context(), req.Samples, req.SampleRate)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.match(w, r, fp.Hashes)
}

// match is the shared tail of both match paths.
func (s *Server) match(w http.ResponseWriter, r *http.Request, hashes []int64) {
	start := time.Now()
	ctx, cacheInfo := matcher.WithCacheInfo(r.Context())
	results, err := s.engine.Match(ctx, hashes)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if s.collector != nil {
		ev := analytics.MatchEvent{
			RequestID:        middleware.GetRequestID(r.Context()),
			TotalQueryHashes: len(hashes),
			ResultCount:      len(results),
			CacheHit:         cacheInfo.Hit,
			DurationMillis:   time.Since(start).Milliseconds(),
		}
		if len(results) > 0 {
			ev.TopSongID = results[0].Song.ID
			ev.TopSongTitle = results[0].Song.Title
			ev.TopConfidence = results[0].Confidence
		}
		s.collector.RecordMatch(ev)
	}
	s.respondJSON(w, http.StatusOK, matchResponse{Results: results, Count: len(results)})
}

func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt64(r, "page", 0)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	pageSize, err := queryInt64(r, "pageSize", 50)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := validatePagination(page, pageSize); err != nil {
		s.respondError(w, r, err)
		return
	}
	songs, err := catalog.ListPage(r.Context(), s.catalog, page, pageSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	total, err := s.catalog.Count(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, listSongsResponse{
		Songs:    songs,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.respondError(w, r, errors.Newf(errors.ErrInvalidInput, 400, "invalid song id %q", r.PathValue("id")))
		return
	}
	sg, ok, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !ok {
		s.respondError(w, r, errors.Newf(errors.ErrSongNotFound, 404, "song %d not found", id))
		return
	}
	s.respondJSON(w, http.StatusOK, sg)
}

func (s *Server) handleTextSearch(w http.ResponseWriter, r *http.Request) {
	if s.text == nil {
		s.respondError(w, r, errors.New(errors.ErrInvalidInput, 404, "text search is disabled"))
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, r, errors.New(errors.ErrInvalidInput, 400, "query parameter q is required"))
		return
	}
	ids, err := s.text.SearchByText(r.Context(), query)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	songs := make([]song.Song, 0, len(ids))
	for _, id := range ids {
		sg, ok, err := s.catalog.Get(r.Context(), id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if !ok {
			continue
		}
		songs = append(songs, sg)
	}
	s.respondJSON(w, http.StatusOK, searchResponse{Songs: songs, Count: len(songs)})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if s.aggregator == nil {
		s.respondError(w, r, errors.New(errors.ErrInvalidInput, 404, "analytics is disabled"))
		return
	}
	topN, err := queryInt64(r, "top", 10)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.aggregator.Snapshot(int(topN)))
}

func queryInt64(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Newf(errors.ErrInvalidInput, 400, "invalid %s %q", name, raw)
	}
	return v, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatusCode(err)
	if status >= 500 {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}
