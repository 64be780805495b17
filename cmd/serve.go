package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blue-raster/workforce-bridge/internal/dispatch"
	"github.com/blue-raster/workforce-bridge/internal/runlog"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a daemon with an HTTP status endpoint",
	Long:  "Executes a bridge cycle on the configured interval and serves run history over HTTP. Intended for container deployments; scheduled `run` invocations remain the primary trigger elsewhere.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner, st, err := initRunner(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		go runLoop(ctx, runner)

		r := chi.NewRouter()
		r.Use(middleware.Recoverer)

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
		})

		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			runs, err := st.RecentRuns(req.Context(), 50)
			if err != nil {
				zap.L().Error("list runs", zap.Error(err))
				http.Error(w, `{"error":"run log unavailable"}`, http.StatusInternalServerError)
				return
			}
			if runs == nil {
				runs = []runlog.Run{}
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(runs) //nolint:errcheck
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// runLoop executes a cycle immediately and then on every interval tick
// until the context is cancelled. Cycle failures are logged; the loop
// keeps going and the untouched checkpoint makes the next cycle re-cover
// the window.
func runLoop(ctx context.Context, runner *dispatch.Runner) {
	cycle := func() {
		if _, err := runner.Run(ctx); err != nil {
			zap.L().Error("cycle failed", zap.Error(err))
		}
		if runner.DigestDue(time.Now()) {
			if err := runner.Digest(ctx); err != nil {
				zap.L().Error("digest failed", zap.Error(err))
			}
		}
	}

	cycle()
	ticker := time.NewTicker(cfg.Poll.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycle()
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
