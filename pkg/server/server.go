package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elonfeng/vidradar/internal/logger"
	"github.com/elonfeng/vidradar/internal/store"
	"github.com/elonfeng/vidradar/pkg/source"
	"github.com/elonfeng/vidradar/pkg/trend"
)

const (
	maxBodyBytes = 8 << 20
	// maxMinDuration caps the min_duration filter at one hour.
	maxMinDuration = 3600
)

// Server provides the HTTP API.
type Server struct {
	store      store.Store
	engine     *trend.Engine
	collectors []source.Collector
	port       int
	limiter    *clientLimiter
	log        logger.Logger
}

// New creates a new HTTP server. s may be nil, in which case rankings are not stored
// and the history endpoints are unavailable.
func New(s store.Store, engine *trend.Engine, collectors []source.Collector, port int, log logger.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:      s,
		engine:     engine,
		collectors: collectors,
		port:       port,
		log:        logger.OrNop(log),
	}
}

// WithRateLimit limits every client address to perMinute requests. Zero disables the limit.
func (s *Server) WithRateLimit(perMinute int) *Server {
	s.limiter = nil
	if perMinute > 0 {
		s.limiter = newClientLimiter(perMinute)
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/rank", s.handleCollectAndRank)
	mux.HandleFunc("POST /api/v1/rank", s.handleRankBatches)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/v1/videos/{id}/history", s.handleVideoHistory)
	mux.HandleFunc("GET /api/v1/regions", s.handleRegions)
	mux.HandleFunc("GET /api/v1/algorithm", s.handleAlgorithm)

	if s.limiter != nil {
		return s.limiter.middleware(mux)
	}
	return mux
}

// ListenAndServe starts the HTTP server and shuts it down when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("vidradar server listening", logger.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCollectAndRank(w http.ResponseWriter, r *http.Request) {
	if len(s.collectors) == 0 {
		writeError(w, http.StatusServiceUnavailable, errors.New("no collectors configured"))
		return
	}

	q := r.URL.Query()
	top, err := intParam(q.Get("top"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("top: %w", err))
		return
	}
	minDuration, err := intParam(q.Get("min_duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("min_duration: %w", err))
		return
	}
	if minDuration > maxMinDuration {
		writeError(w, http.StatusBadRequest, fmt.Errorf("min_duration: must be between 0 and %d seconds", maxMinDuration))
		return
	}
	region := q.Get("region")
	if region == "" {
		region = s.engine.Describe().DefaultRegion
	}

	batches, errs := source.CollectAll(r.Context(), s.collectors, source.Query{Text: q.Get("q"), Region: region}, s.log)
	s.rank(w, r, trend.Request{
		Query:              q.Get("q"),
		Region:             region,
		Batches:            batches,
		Top:                top,
		MinDurationSeconds: int64(minDuration),
	}, errs)
}

func (s *Server) handleRankBatches(w http.ResponseWriter, r *http.Request) {
	var req trend.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.MinDurationSeconds < 0 || req.MinDurationSeconds > maxMinDuration {
		writeError(w, http.StatusBadRequest, fmt.Errorf("min_duration_seconds: must be between 0 and %d", maxMinDuration))
		return
	}
	s.rank(w, r, req, nil)
}

func (s *Server) rank(w http.ResponseWriter, r *http.Request, req trend.Request, errs []error) {
	ranking, err := s.engine.Rank(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	if s.store != nil {
		if err := s.store.SaveRun(r.Context(), ranking); err != nil {
			s.log.Error("save run", logger.String("query", req.Query), logger.Error(err))
			errs = append(errs, err)
		}
	}

	resp := map[string]any{"data": ranking}
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		resp["errors"] = msgs
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("limit: %w", err))
		return
	}
	opts := store.ListOpts{Query: q.Get("query"), Region: q.Get("region"), Limit: limit}
	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			opts.Since = t
		}
	}

	runs, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	run, err := s.store.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": run})
}

func (s *Server) handleVideoHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	since := time.Now().Add(-7 * 24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("since: %w", err))
			return
		}
		since = t
	}

	snaps, err := s.store.VideoHistory(r.Context(), r.PathValue("id"), since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  snaps,
		"count": len(snaps),
	})
}

type regionInfo struct {
	Code     string   `json:"code"`
	Language string   `json:"language"`
	Boost    []string `json:"boost"`
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	reg := s.engine.Registry()
	var infos []regionInfo
	for _, code := range reg.Regions() {
		p := reg.Profile(code)
		infos = append(infos, regionInfo{Code: code, Language: p.Language, Boost: p.Table.Boost})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  infos,
		"count": len(infos),
	})
}

func (s *Server) handleAlgorithm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data":       s.engine.Describe(),
		"strategies": trend.Strategies(),
	})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("history store not configured"))
		return false
	}
	return true
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid value %q", v)
	}
	return n, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
