package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sunbase-energy/sitescout/internal/ashrae"
	"github.com/sunbase-energy/sitescout/internal/model"
	"github.com/sunbase-energy/sitescout/internal/orchestrator"
	"github.com/sunbase-energy/sitescout/pkg/geocode"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scraping API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e := buildEnv(cfg)
		router := newRouter(routerEnv{
			runner:      e.orch,
			geocoder:    e.geocoder,
			records:     e.records,
			recordLimit: cfg.Ashrae.Limit,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background()) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// scrapeRunner is what the handlers need from the orchestrator.
type scrapeRunner interface {
	Run(ctx context.Context, req model.ScrapeRequest, sink orchestrator.Sink, only ...model.Kind) error
}

type routerEnv struct {
	runner      scrapeRunner
	geocoder    geocode.Client
	records     ashrae.Client
	recordLimit int
}

func newRouter(e routerEnv) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/scrape", e.handleScrapeAll)
	r.Post("/api/scrape/{source}", e.handleScrapeOne)
	r.Post("/api/geocode", e.handleGeocode)
	r.Post("/api/reverse-geocode", e.handleReverseGeocode)
	r.Get("/api/ashrae", e.handleAshrae)

	return r
}

// collectSink gathers results for the single-source endpoint.
type collectSink struct {
	mu      sync.Mutex
	results []model.SourceResult
}

func (s *collectSink) Deliver(res model.SourceResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
}

func (s *collectSink) Station(st model.WeatherStation, rec *ashrae.Record) {}

func (e routerEnv) handleScrapeOne(w http.ResponseWriter, req *http.Request) {
	kinds, ok := parseKinds([]string{chi.URLParam(req, "source")})
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown source")
		return
	}

	var body model.ScrapeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sink := &collectSink{}
	if err := e.runner.Run(req.Context(), body, sink, kinds...); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(sink.results) == 0 {
		writeError(w, http.StatusInternalServerError, "no result produced")
		return
	}
	writeJSON(w, http.StatusOK, sink.results[0])
}

// streamEvent is one NDJSON line of the full-scrape stream.
type streamEvent struct {
	Type    string                `json:"type"`
	Result  *model.SourceResult   `json:"result,omitempty"`
	Station *model.WeatherStation `json:"station,omitempty"`
	Record  *ashrae.Record        `json:"record,omitempty"`
}

// ndjsonSink streams events to the client as they complete, one JSON
// object per line, flushed per event.
type ndjsonSink struct {
	mu      sync.Mutex
	enc     *json.Encoder
	flusher http.Flusher
}

func (s *ndjsonSink) emit(ev streamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(ev); err != nil {
		zap.L().Debug("stream write failed", zap.Error(err))
		return
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

func (s *ndjsonSink) Deliver(res model.SourceResult) {
	s.emit(streamEvent{Type: "result", Result: &res})
}

func (s *ndjsonSink) Station(st model.WeatherStation, rec *ashrae.Record) {
	s.emit(streamEvent{Type: "station", Station: &st, Record: rec})
}

func (e routerEnv) handleScrapeAll(w http.ResponseWriter, req *http.Request) {
	var body model.ScrapeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := body.Validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	sink := &ndjsonSink{enc: json.NewEncoder(w), flusher: flusher}

	if err := e.runner.Run(req.Context(), body, sink); err != nil {
		// Validation already passed; this is a late failure mid-stream.
		zap.L().Error("scrape stream failed", zap.Error(err))
	}
}

func (e routerEnv) handleGeocode(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	result, err := e.geocoder.Geocode(req.Context(), body.Address)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e routerEnv) handleReverseGeocode(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Lat == 0 && body.Lng == 0 {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}

	address, err := e.geocoder.ReverseGeocode(req.Context(), body.Lat, body.Lng)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": address})
}

func (e routerEnv) handleAshrae(w http.ResponseWriter, req *http.Request) {
	state := req.URL.Query().Get("state")
	station := req.URL.Query().Get("station")
	if state == "" || station == "" {
		writeError(w, http.StatusBadRequest, "state and station are required")
		return
	}

	limit := e.recordLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := e.records.Query(req.Context(), state, ashrae.NormalizeStation(station), limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": records})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
