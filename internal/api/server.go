// Package api exposes a terrain session over HTTP.
// GET endpoints are read-only views of the current terrain.
// POST endpoints change it and require a bearer token when AdminKey is set.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/erosion-lab/internal/colormap"
	"github.com/talgya/erosion-lab/internal/engine"
	"github.com/talgya/erosion-lab/internal/erosion"
	"github.com/talgya/erosion-lab/internal/noise"
	"github.com/talgya/erosion-lab/internal/persistence"
)

// maxIterations caps a single erosion request.
const maxIterations = 5_000_000

// statusClientClosedRequest answers a request whose client went away
// mid-run. Nobody reads it; access logs do.
const statusClientClosedRequest = 499

// Server serves a terrain session over HTTP. All session access is
// serialised through mu.
type Server struct {
	Session     *engine.Session
	Journal     *persistence.Journal // Optional; nil disables run records
	Port        int
	AdminKey    string // Bearer token for POST endpoints. Empty = POST open.
	Iterations  int    // Default droplets when a request names none
	ErodeRate   int
	ErodeWindow time.Duration
	MaxStreams  int

	mu  sync.Mutex
	hub *hub

	// Readable without mu, so stream clients joining mid-run are not
	// held behind the erosion run.
	snapshot atomic.Pointer[engine.Status]
	progress atomic.Pointer[engine.Progress] // nil when no run is active
}

// NewServer wires a server around sess and routes erosion progress to
// the websocket stream.
func NewServer(sess *engine.Session) *Server {
	s := &Server{
		Session:     sess,
		Iterations:  50000,
		ErodeRate:   30,
		ErodeWindow: time.Minute,
		MaxStreams:  16,
		hub:         newHub(),
	}
	status := sess.Status()
	s.snapshot.Store(&status)
	sess.SetProgress(func(p engine.Progress) {
		s.progress.Store(&p)
		s.hub.broadcast(StreamMessage{Type: "progress", Progress: &p})
	})
	return s
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	erodeLimiter := NewRateLimiter(s.ErodeRate, s.ErodeWindow)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/heightmap", s.handleHeightmap)
	mux.HandleFunc("GET /api/v1/colors", s.handleColors)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	mux.HandleFunc("POST /api/v1/generate", s.adminOnly(s.handleGenerate))
	mux.HandleFunc("POST /api/v1/erode", s.adminOnly(RateLimitMiddleware(erodeLimiter, s.handleErode)))
	mux.HandleFunc("POST /api/v1/undo", s.adminOnly(s.handleUndo))
	mux.HandleFunc("POST /api/v1/redo", s.adminOnly(s.handleRedo))
	mux.HandleFunc("POST /api/v1/reference", s.adminOnly(s.handleSaveReference))
	mux.HandleFunc("POST /api/v1/reference/restore", s.adminOnly(s.handleRestoreReference))
	mux.HandleFunc("POST /api/v1/flat", s.adminOnly(s.handleFlat))
	mux.HandleFunc("POST /api/v1/plane", s.adminOnly(s.handlePlane))
	mux.HandleFunc("POST /api/v1/formula", s.adminOnly(s.handleFormula))
	mux.HandleFunc("POST /api/v1/edit", s.adminOnly(s.handleEdit))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "", "journal", s.Journal != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	return ok && token == s.AdminKey
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey != "" && !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// decodeBody reads an optional JSON body into dst. An empty body is fine.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// sessionError maps session errors to HTTP status codes.
func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNoTerrain):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrUnknownColorMode), errors.Is(err, engine.ErrNegativeIterations):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled):
		slog.Info("request cancelled", "error", err)
		http.Error(w, "request cancelled", statusClientClosedRequest)
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn("request timed out", "error", err)
		http.Error(w, "request timed out", http.StatusServiceUnavailable)
	default:
		slog.Error("session operation failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := s.status()
	s.mu.Unlock()
	writeJSON(w, status)
}

func (s *Server) handleHeightmap(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h, ok := s.Session.Current()
	if ok {
		h = h.Clone()
	}
	s.mu.Unlock()
	if !ok {
		sessionError(w, engine.ErrNoTerrain)
		return
	}
	writeJSON(w, h)
}

type colorsResponse struct {
	Size   int              `json:"size"`
	Mode   engine.ColorMode `json:"mode"`
	Change string           `json:"change"`
	Colors []string         `json:"colors"`
	Legend *colormap.Legend `json:"legend,omitempty"`
}

// handleColors returns per-node colours as hex strings, or a PNG preview
// with format=png.
func (s *Server) handleColors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := engine.ParseColorMode(q.Get("mode"))
	if err != nil {
		sessionError(w, err)
		return
	}
	change := q.Get("change")
	if change == "" {
		change = "none"
	}

	s.mu.Lock()
	var (
		colors []color.RGBA
		legend *colormap.Legend
	)
	switch change {
	case "none":
		colors, err = s.Session.HeightColors(mode)
	case "iterative", "total":
		var res colormap.Result
		if change == "iterative" {
			res, err = s.Session.IterativeChange(mode)
		} else {
			res, err = s.Session.TotalChange(mode)
		}
		colors = res.Colors
		rounded := res.Legend.Rounded()
		legend = &rounded
	default:
		err = fmt.Errorf("%w: change %q", engine.ErrUnknownColorMode, change)
	}
	size := s.Session.Options().MapSize
	s.mu.Unlock()
	if err != nil {
		sessionError(w, err)
		return
	}

	if q.Get("format") == "png" {
		w.Header().Set("Content-Type", "image/png")
		if err := colormap.WritePNG(w, size, colors); err != nil {
			slog.Error("png encode failed", "error", err)
		}
		return
	}

	hex := make([]string, len(colors))
	for i, c := range colors {
		hex[i] = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	writeJSON(w, colorsResponse{Size: size, Mode: mode, Change: change, Colors: hex, Legend: legend})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		writeJSON(w, []persistence.Run{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be 1-500", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.Journal.RecentRuns(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, runs)
}

type generateRequest struct {
	KeepReference bool              `json:"keep_reference"`
	Seed          *int64            `json:"seed"`
	Randomize     *bool             `json:"randomize"`
	Source        *noise.SourceKind `json:"source"`
	Octaves       *int              `json:"octaves"`
	Persistence   *float64          `json:"persistence"`
	Lacunarity    *float64          `json:"lacunarity"`
	Frequency     *float64          `json:"frequency"`
	OffsetX       *float64          `json:"offset_x"`
	OffsetY       *float64          `json:"offset_y"`
}

// apply overlays the request onto cfg.
func (req generateRequest) apply(cfg noise.Config) (noise.Config, error) {
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Randomize != nil {
		cfg.Randomize = *req.Randomize
	}
	if req.Source != nil {
		kind, err := noise.ParseSourceKind(string(*req.Source))
		if err != nil {
			return cfg, err
		}
		cfg.Source = kind
	}
	if req.Octaves != nil {
		cfg.Octaves = *req.Octaves
	}
	set(&cfg.Persistence, req.Persistence)
	set(&cfg.Lacunarity, req.Lacunarity)
	set(&cfg.Frequency, req.Frequency)
	set(&cfg.OffsetX, req.OffsetX)
	set(&cfg.OffsetY, req.OffsetY)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := req.apply(s.Session.Options().Noise)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Session.SetNoise(cfg)

	start := time.Now()
	var res noise.Result
	if req.KeepReference {
		res, err = s.Session.RegenerateKeepReference()
	} else {
		res, err = s.Session.Generate()
	}
	if err != nil {
		sessionError(w, err)
		return
	}
	s.record(persistence.KindGenerate, res.Seed, cfg, erosion.Stats{}, time.Since(start))

	writeJSON(w, map[string]any{
		"seed":   res.Seed,
		"min":    res.Min,
		"max":    res.Max,
		"status": s.status(),
	})
}

type erodeRequest struct {
	Iterations int             `json:"iterations"`
	Seed       *int64          `json:"seed"`
	Params     *erosion.Params `json:"params"`
}

func (s *Server) handleErode(w http.ResponseWriter, r *http.Request) {
	var req erodeRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Iterations == 0 {
		req.Iterations = s.Iterations
	}
	if req.Iterations < 0 || req.Iterations > maxIterations {
		http.Error(w, fmt.Sprintf("iterations must be 0-%d", maxIterations), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	opts := s.Session.Options()
	params, seed := opts.Erosion, opts.ErosionSeed
	if req.Params != nil {
		if err := req.Params.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		params = *req.Params
	}
	if req.Seed != nil {
		seed = *req.Seed
	}
	s.Session.SetErosion(params, seed)

	slog.Info("erosion requested", "iterations", humanize.Comma(int64(req.Iterations)), "seed", seed)
	start := time.Now()
	stats, err := s.Session.Erode(r.Context(), req.Iterations)
	s.progress.Store(nil)
	if err != nil {
		sessionError(w, err)
		return
	}
	elapsed := time.Since(start)
	s.hub.broadcast(StreamMessage{Type: "done", Stats: &stats})
	s.record(persistence.KindErode, seed, params, stats, elapsed)

	writeJSON(w, map[string]any{
		"stats":      stats,
		"elapsed_ms": elapsed.Milliseconds(),
		"status":     s.status(),
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.step(w, s.Session.Undo)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.step(w, s.Session.Redo)
}

// step runs undo or redo. At the history boundary it answers 409.
func (s *Server) step(w http.ResponseWriter, move func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !move() {
		writeJSONStatus(w, http.StatusConflict, map[string]any{"available": false})
		return
	}
	writeJSON(w, map[string]any{"available": true, "status": s.status()})
}

func (s *Server) handleSaveReference(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, s.Session.SaveReference)
}

func (s *Server) handleRestoreReference(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, s.Session.RestoreReference)
}

func (s *Server) handleFlat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Elevation float64 `json:"elevation"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.mutate(w, func() error {
		if err := s.Session.Flat(req.Elevation); err != nil {
			return err
		}
		s.record(persistence.KindFlat, 0, req, erosion.Stats{}, 0)
		return nil
	})
}

func (s *Server) handlePlane(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Angle float64 `json:"angle"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.mutate(w, func() error {
		if err := s.Session.Plane(req.Angle); err != nil {
			return err
		}
		s.record(persistence.KindPlane, 0, req, erosion.Stats{}, 0)
		return nil
	})
}

func (s *Server) handleFormula(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Expr string `json:"expr"`
	}
	if err := decodeBody(r, &req); err != nil || req.Expr == "" {
		http.Error(w, "expected {\"expr\": \"...\"}", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Session.Formula(req.Expr); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.record(persistence.KindFormula, 0, req, erosion.Stats{}, 0)
	writeJSON(w, s.status())
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Elevations []float64 `json:"elevations"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Session.ApplyEdit(req.Elevations); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.record(persistence.KindEdit, 0, map[string]int{"nodes": len(req.Elevations)}, erosion.Stats{}, 0)
	writeJSON(w, s.status())
}

// mutate runs fn under the session lock and answers with the new status.
func (s *Server) mutate(w http.ResponseWriter, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, s.status())
}

// status reads the session status and publishes it for stream clients.
// Callers hold mu.
func (s *Server) status() engine.Status {
	status := s.Session.Status()
	s.snapshot.Store(&status)
	return status
}

// record journals a run. Journal failures are logged, never returned to the client.
func (s *Server) record(kind string, seed int64, params any, stats erosion.Stats, elapsed time.Duration) {
	if s.Journal == nil {
		return
	}
	run, err := persistence.NewRun(kind, seed, s.Session.Options().MapSize, params, stats, elapsed)
	if err == nil {
		err = s.Journal.RecordRun(run)
	}
	if err != nil {
		slog.Error("journal record failed", "kind", kind, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
