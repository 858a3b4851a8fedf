package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"celiaquia/internal/bootstrap"
	"celiaquia/internal/bootstrap/logging"
	"celiaquia/internal/errs"
	"celiaquia/internal/usecase/celiaquia"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the background pipeline loop (RENAPER queue, SINTYS, cupo, advance)",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *celiaquia.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		once, _ := cmd.Flags().GetBool("once")
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = app.Config.Worker.Interval
		}
		if interval <= 0 {
			interval = 15 * time.Second
		}

		runOnce := func() error {
			tick, err := svc.WorkerTick(ctx)
			if err != nil {
				return err
			}
			return writef(cmd, "tick renaper=%d/%d retried=%d dead=%d cruzados=%d evaluados=%d avanzados=%d\n",
				tick.Renaper.Completed, tick.Renaper.Claimed, tick.Renaper.Retried, tick.Renaper.Dead,
				tick.Cruzados, tick.Evaluados, tick.Avanzados)
		}

		if once {
			return runOnce()
		}

		if addr := app.Config.Metrics.Addr; addr != "" {
			srv := &http.Server{Addr: addr, Handler: opsRouter(app), ReadHeaderTimeout: 5 * time.Second}
			go func() {
				logging.Info(ctx, "ops endpoint listening", slog.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logging.Error(ctx, "ops endpoint failed", slog.Any("err", errs.Loggable(err)))
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if err := runOnce(); err != nil {
				// One failed tick must not stop the worker; the next one retries.
				logging.Error(ctx, "worker tick failed", slog.Any("err", errs.Loggable(err)))
			}
			select {
			case <-ctx.Done():
				return errs.Wrap(ctx.Err(), "worker run loop stopped")
			case <-ticker.C:
			}
		}
	}),
}

func opsRouter(app *bootstrap.App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := app.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", app.Metrics.Handler())
	return r
}

func init() {
	workerCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("once", false, "Run one tick and exit")
	runCmd.Flags().Duration("interval", 0, "Tick interval; defaults to worker.interval")
}
