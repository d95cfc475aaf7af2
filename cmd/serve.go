package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mars-cli/internal/model"
	"github.com/sells-group/mars-cli/internal/monitoring"
	"github.com/sells-group/mars-cli/internal/store"
)

const (
	maxListLimit        = 100
	maxMetricsHours     = 24 * 90
	defaultMetricsHours = 24
	shutdownTimeout     = 10 * time.Second
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the latest scrape and trigger new ones over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve", true); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(newScraper(), st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		var jobs []func(context.Context)
		if cfg.Monitoring.CheckIntervalSecs > 0 {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(st),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			jobs = append(jobs, checker.Run)
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return runServer(ctx, srv, jobs...)
	},
}

// runServer serves until ctx is cancelled, then shuts srv down gracefully.
// Each job runs alongside the server and must return once its context ends.
func runServer(ctx context.Context, srv *http.Server, jobs ...func(context.Context)) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, job := range jobs {
		g.Go(func() error {
			job(gctx)
			return nil
		})
	}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
	})

	return g.Wait()
}

// apiServer holds the handlers' dependencies.
type apiServer struct {
	runner    scrapeRunner
	store     store.Store
	collector *monitoring.Collector

	// mu keeps scrapes from overlapping; each one drives its own browser.
	mu sync.Mutex
}

func buildRouter(runner scrapeRunner, st store.Store) http.Handler {
	s := &apiServer{runner: runner, store: st, collector: monitoring.NewCollector(st)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/latest", s.handleLatest)
		r.Get("/snapshots", s.handleList)
		r.Get("/snapshots/{id}", s.handleGet)
		r.Get("/metrics", s.handleMetrics)
		r.Post("/scrape", s.handleScrape)
	})
	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Warn("api: store ping failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LatestSnapshot(r.Context())
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no snapshots yet; POST /api/scrape to create one")
		return
	}
	if err != nil {
		zap.L().Error("api: latest snapshot", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load latest snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	filter := store.SnapshotFilter{Limit: store.DefaultListLimit}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(n, maxListLimit)
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = t
	}

	snaps, err := s.store.ListSnapshots(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list snapshots", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	if snaps == nil {
		snaps = []model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.store.GetSnapshot(r.Context(), id)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get snapshot", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	hours := defaultMetricsHours
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxMetricsHours {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("hours must be between 1 and %d", maxMetricsHours))
			return
		}
		hours = n
	}

	snap, err := s.collector.Collect(r.Context(), hours)
	if err != nil {
		zap.L().Error("api: collect metrics", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect metrics")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *apiServer) handleScrape(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	rec, report := s.runner.Run(ctx)

	snap, err := s.store.SaveSnapshot(ctx, *rec, report)
	if err != nil {
		zap.L().Error("api: save snapshot", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scrape finished but could not be saved")
		return
	}

	zap.L().Info("api: scrape saved",
		zap.String("id", snap.ID),
		zap.Strings("missing", rec.Missing()),
	)
	writeJSON(w, http.StatusCreated, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
