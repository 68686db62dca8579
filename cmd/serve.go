package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prozo/dealpulse/internal/job"
	"github.com/prozo/dealpulse/internal/model"
	"github.com/prozo/dealpulse/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the report trigger server",
	Long:  "Exposes HTTP endpoints so an external scheduler can trigger the daily and weekly reports and inspect run history.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		deps, err := initDeps(ctx)
		if err != nil {
			return err
		}
		defer deps.Store.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		// One report at a time: a trigger while a run is in flight gets 409.
		var running sync.Mutex

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Post("/run/daily", triggerHandler(&running, model.JobDaily, deps.RunDaily))
		r.Post("/run/weekly", triggerHandler(&running, model.JobWeekly, deps.RunWeekly))
		r.Get("/runs", listRunsHandler(deps))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

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

// triggerHandler starts a report run in the background and answers 202. The
// run gets a fresh context so a server shutdown mid-delivery does not cancel
// it; a trigger while another run holds the lock gets 409.
func triggerHandler(running *sync.Mutex, kind model.JobKind, exec func(context.Context) (*model.Run, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !running.TryLock() {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "a run is already in progress"})
			return
		}
		go func() {
			defer running.Unlock()
			run, err := exec(context.Background())
			if err != nil {
				zap.L().Error("triggered run failed", zap.String("kind", string(kind)), zap.Error(err))
				return
			}
			zap.L().Info("triggered run complete", zap.String("kind", string(kind)), zap.String("run_id", run.ID))
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "kind": string(kind)})
	}
}

func listRunsHandler(deps *job.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		filter := store.RunFilter{
			Kind:   model.JobKind(req.URL.Query().Get("kind")),
			Status: model.RunStatus(req.URL.Query().Get("status")),
		}
		runs, err := deps.Store.ListRuns(req.Context(), filter)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
