// esdex search proxy: exposes the criteria engine over a small HTTP API so
// non-Go services can run structured searches without speaking the engine's
// query DSL.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esdex"
	"github.com/kailas-cloud/esdex/internal/config"
	logpkg "github.com/kailas-cloud/esdex/internal/logger"
	"github.com/kailas-cloud/esdex/internal/metrics"
	"github.com/kailas-cloud/esdex/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting esdex search proxy",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("engine_url", cfg.Engine.URL),
	)

	metrics.Register()

	client, err := esdex.New(
		esdex.WithURL(cfg.Engine.URL),
		esdex.WithBasicAuth(cfg.Engine.Username, cfg.Engine.Password),
		esdex.WithRequestTimeout(time.Duration(cfg.Engine.RequestTimeoutSec)*time.Second),
		esdex.WithLogger(logger),
		esdex.WithCompat(esdex.Compat{LegacyAggregationOrder: cfg.Engine.LegacyAggregationOrder}),
	)
	if err != nil {
		logger.Fatal("Failed to create engine client", zap.Error(err))
	}

	h := &handler{client: client, cfg: cfg, log: logger}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/indices/{index}/search", h.search)
	r.Post("/indices/{index}/count", h.count)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	logger.Info("HTTP server listening", zap.Int("port", cfg.HTTP.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

type handler struct {
	client *esdex.Client
	cfg    config.Config
	log    *zap.Logger
}

// searchRequest is the proxy's structured search input, translated into a
// criteria chain.
type searchRequest struct {
	Search       string                    `json:"search"`
	Filters      map[string]any            `json:"filters"`
	Not          map[string]any            `json:"not"`
	Ranges       map[string]rangeBounds    `json:"ranges"`
	Aggregations map[string]map[string]any `json:"aggregations"`
	Sort         []any                     `json:"sort"`
	Source       []string                  `json:"source"`
	Page         int                       `json:"page"`
	PerPage      int                       `json:"per_page"`
	Failsafe     bool                      `json:"failsafe"`
}

type rangeBounds struct {
	GT  any `json:"gt"`
	GTE any `json:"gte"`
	LT  any `json:"lt"`
	LTE any `json:"lte"`
}

func (h *handler) criteria(req *searchRequest) *esdex.Criteria {
	c := esdex.NewCriteria().
		Where(req.Filters).
		WhereNot(req.Not).
		Search(req.Search)
	for field, bounds := range req.Ranges {
		c = c.Range(field, esdex.Range{GT: bounds.GT, GTE: bounds.GTE, LT: bounds.LT, LTE: bounds.LTE})
	}
	for name, def := range req.Aggregations {
		c = c.Aggregate(name, def)
	}
	if len(req.Sort) > 0 {
		c = c.Sort(req.Sort...)
	}
	if len(req.Source) > 0 {
		c = c.Source(req.Source...)
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	per := req.PerPage
	if per < 1 {
		per = h.cfg.Search.DefaultPageSize
	}
	if per > h.cfg.Search.MaxPageSize {
		per = h.cfg.Search.MaxPageSize
	}
	return c.Paginate(page, per).Failsafe(req.Failsafe)
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	idx := h.client.Index(chi.URLParam(r, "index"))
	res, err := idx.Search(r.Context(), h.criteria(&req))
	if err != nil {
		h.writeSearchError(w, err)
		return
	}

	hits := make([]map[string]any, 0, len(res.Hits()))
	for _, hit := range res.Hits() {
		hits = append(hits, map[string]any{
			"id":     hit.ID,
			"score":  hit.Score,
			"source": hit.Source,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":        res.TotalHits(),
		"took_ms":      res.Took().Milliseconds(),
		"hits":         hits,
		"aggregations": rawAggregations(res, req.Aggregations),
	})
}

func (h *handler) count(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	idx := h.client.Index(chi.URLParam(r, "index"))
	count, err := idx.Count(r.Context(), h.criteria(&req))
	if err != nil {
		h.writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "engine unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": version.Version})
}

func (h *handler) writeSearchError(w http.ResponseWriter, err error) {
	var usage *esdex.UsageError
	var response *esdex.ResponseError
	switch {
	case errors.As(err, &usage):
		writeError(w, http.StatusBadRequest, usage.Error())
	case errors.As(err, &response):
		h.log.Warn("engine rejected query", zap.Error(err))
		writeError(w, http.StatusBadGateway, "engine rejected query")
	default:
		h.log.Error("search failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "engine unavailable")
	}
}

func rawAggregations(res *esdex.Result, requested map[string]map[string]any) map[string]json.RawMessage {
	if len(requested) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(requested))
	for name := range requested {
		if raw, ok := res.RawAggregation(name); ok {
			out[name] = raw
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
