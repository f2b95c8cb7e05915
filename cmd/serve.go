package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/attempt"
	"github.com/sells-group/prospector/internal/budget"
	"github.com/sells-group/prospector/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only status API",
	Long:  "Serves prospect records, attempt status, and budget snapshots over HTTP for dashboards and downstream consumers. The API never triggers processing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		router := newRouter(e.Store, e.Tracker, e.Coordinator.PassIDs())

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
			srv.Shutdown(ctx)
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

func newRouter(st attempt.Store, tracker *budget.Tracker, knownPassIDs []int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/records", func(w http.ResponseWriter, req *http.Request) {
			filter := attempt.RecordFilter{
				Stage: model.Stage(req.URL.Query().Get("stage")),
			}
			if v := req.URL.Query().Get("min_score"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					writeError(w, http.StatusBadRequest, "min_score must be an integer")
					return
				}
				filter.MinScore = n
			}
			if v := req.URL.Query().Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					writeError(w, http.StatusBadRequest, "limit must be an integer")
					return
				}
				filter.Limit = n
			}

			records, err := st.ListRecords(req.Context(), filter)
			if err != nil {
				zap.L().Error("list records failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "list records failed")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"count":   len(records),
				"records": records,
			})
		})

		r.Get("/records/{key}", func(w http.ResponseWriter, req *http.Request) {
			key := chi.URLParam(req, "key")
			rec, err := st.GetRecord(req.Context(), key)
			if err != nil {
				zap.L().Error("get record failed", zap.String("key", key), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "get record failed")
				return
			}
			if rec == nil {
				writeError(w, http.StatusNotFound, "record not found")
				return
			}
			writeJSON(w, http.StatusOK, rec)
		})

		r.Get("/records/{key}/status", func(w http.ResponseWriter, req *http.Request) {
			key := chi.URLParam(req, "key")
			status, err := st.Status(req.Context(), key, knownPassIDs)
			if err != nil {
				zap.L().Error("get status failed", zap.String("key", key), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "get status failed")
				return
			}
			if status == nil {
				writeError(w, http.StatusNotFound, "no attempts recorded")
				return
			}
			writeJSON(w, http.StatusOK, status)
		})

		r.Get("/budgets", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"sources": tracker.Snapshot(),
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
