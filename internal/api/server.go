// Package api serves computed performance over HTTP. The caller's access
// tier arrives in the X-Access-Level header set by the upstream auth proxy;
// every response is redacted for that tier before it is written.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/tradewatch/internal/access"
	"github.com/sells-group/tradewatch/internal/model"
	"github.com/sells-group/tradewatch/internal/perf"
)

// LevelHeader carries the caller's access tier.
const LevelHeader = "X-Access-Level"

// Performance is the engine surface the API reads from.
type Performance interface {
	TradePerformance(ctx context.Context, tradeID int64) (*model.TradePerformance, error)
	ComputePoliticianPerformance(ctx context.Context, officialID int64, f perf.TradeFilter) (*model.OfficialStats, error)
}

// Options configures the server.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server is the read-only HTTP API.
type Server struct {
	perf   Performance
	opts   Options
	router chi.Router
	log    *zap.Logger
}

// NewServer builds the router.
func NewServer(p Performance, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	s := &Server{
		perf: p,
		opts: opts,
		log:  zap.L().With(zap.String("component", "api")),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// TradeResponse is the body of GET /trades/{id}/performance.
type TradeResponse struct {
	Performance  model.TradePerformance `json:"performance" yaml:"performance"`
	Capabilities access.Capabilities    `json:"capabilities" yaml:"capabilities"`
}

// OfficialResponse is the body of GET /officials/{id}/performance.
type OfficialResponse struct {
	Stats        model.OfficialStats `json:"stats" yaml:"stats"`
	Capabilities access.Capabilities `json:"capabilities" yaml:"capabilities"`
}

type errorResponse struct {
	Error string `json:"error" yaml:"error"`
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", LevelHeader, "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/trades/{id}/performance", s.handleTradePerformance)
	r.Get("/officials/{id}/performance", s.handleOfficialPerformance)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTradePerformance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	level := s.level(r)

	p, err := s.perf.TradePerformance(r.Context(), id)
	if err != nil {
		s.log.Error("trade performance failed", zap.Int64("trade_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "no performance for trade")
		return
	}

	writeJSON(w, http.StatusOK, TradeResponse{
		Performance:  access.FilterTradePerformance(*p, level),
		Capabilities: access.CapabilitiesFor(level),
	})
}

func (s *Server) handleOfficialPerformance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	level := s.level(r)

	stats, err := s.perf.ComputePoliticianPerformance(r.Context(), id, f)
	if err != nil {
		s.log.Error("official performance failed", zap.Int64("official_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if stats == nil {
		writeError(w, http.StatusNotFound, "official not found")
		return
	}

	writeJSON(w, http.StatusOK, OfficialResponse{
		Stats:        access.FilterOfficialStats(*stats, level),
		Capabilities: access.CapabilitiesFor(level),
	})
}

// level reads the tier header. Missing or unrecognised values are Guest.
func (s *Server) level(r *http.Request) access.Level {
	l, err := access.ParseLevel(r.Header.Get(LevelHeader))
	if err != nil {
		s.log.Debug("unrecognised access level", zap.Error(err))
	}
	return l
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func parseFilter(r *http.Request) (perf.TradeFilter, error) {
	q := r.URL.Query()
	var f perf.TradeFilter
	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		d := model.ParseDay(v)
		if d == nil {
			return f, &paramError{key}
		}
		*dst = d
	}
	if v := q.Get("type"); v != "" {
		tt := model.TradeType(v)
		if !tt.Valid() {
			return f, &paramError{"type"}
		}
		f.TradeType = tt
	}
	f.Ticker = q.Get("ticker")
	return f, nil
}

type paramError struct{ name string }

func (e *paramError) Error() string { return "invalid " + e.name }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to write JSON response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
