package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hospmon/internal/monitor"
	"github.com/sells-group/hospmon/internal/monitoring"
	"github.com/sells-group/hospmon/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the published table over a read-only JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(st),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
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

// newRouter builds the dashboard API over st.
func newRouter(st store.Store, origins []string) http.Handler {
	h := &apiHandler{store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/dates", h.dates)
		r.Get("/hospitals", h.hospitals)
		r.Get("/runs", h.runs)
		r.Get("/runs/{id}/regions", h.regions)
	})

	return r
}

type apiHandler struct {
	store store.Store
}

func (h *apiHandler) dates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.store.Dates(r.Context())
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, err)
		return
	}
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(monitor.DateLayout)
	}
	render.JSON(w, r, map[string]any{"dates": out})
}

// hospitals returns the table for ?date=, or for the latest date when omitted.
func (h *apiHandler) hospitals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var day time.Time
	if q := r.URL.Query().Get("date"); q != "" {
		d, err := monitor.ParseReportDate(q)
		if err != nil {
			renderError(w, r, http.StatusBadRequest, err)
			return
		}
		day = d
	} else {
		dates, err := h.store.Dates(ctx)
		if err != nil {
			renderError(w, r, http.StatusInternalServerError, err)
			return
		}
		if len(dates) == 0 {
			render.JSON(w, r, map[string]any{"date": nil, "rows": []monitor.FinalRow{}})
			return
		}
		day = dates[len(dates)-1]
	}

	rows, err := h.store.Hospitals(ctx, day)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []monitor.FinalRow{}
	}
	render.JSON(w, r, map[string]any{
		"date": day.Format(monitor.DateLayout),
		"rows": rows,
	})
}

func (h *apiHandler) runs(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Status: store.RunStatus(r.URL.Query().Get("status"))}
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			renderError(w, r, http.StatusBadRequest, eris.Errorf("invalid limit %q", l))
			return
		}
		filter.Limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	render.JSON(w, r, map[string]any{"runs": runs})
}

func (h *apiHandler) regions(w http.ResponseWriter, r *http.Request) {
	totals, err := h.store.RegionTotals(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, err)
		return
	}
	if totals == nil {
		totals = []store.RegionTotal{}
	}
	render.JSON(w, r, map[string]any{"regions": totals})
}

func renderError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("api request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}
