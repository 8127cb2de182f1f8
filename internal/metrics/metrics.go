// Package metrics holds the bot's Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	EntriesCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "diary",
		Name:      "entries_committed_total",
		Help:      "Diary entries written to the database.",
	})

	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diary",
		Name:      "validation_failures_total",
		Help:      "Answers rejected and re-prompted, by conversation state.",
	}, []string{"state"})

	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diary",
		Name:      "persistence_failures_total",
		Help:      "Database calls that failed during a conversation, by operation.",
	}, []string{"op"})

	ReminderSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diary",
		Name:      "reminder_sends_total",
		Help:      "Reminder deliveries by result.",
	}, []string{"result"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "diary",
		Name:      "active_sessions",
		Help:      "Conversations currently in progress.",
	})
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listener started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
