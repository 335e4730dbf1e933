package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	EvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_evaluations_total",
		Help: "Количество оценок дня по исходу (first_post, no_change, correction, error)",
	}, []string{"outcome"})

	EvaluationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_evaluation_seconds",
		Help:    "Длительность одной оценки дня",
		Buckets: prometheus.DefBuckets,
	})

	PublishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_publish_errors_total",
		Help: "Ошибки публикации поста",
	})

	CaptionEditFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_caption_edit_failures_total",
		Help: "Неудачные best-effort правки подписи оригинала",
	})

	LedgerReadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_ledger_read_failures_total",
		Help: "Повреждённые или нечитаемые состояния журнала (fail-open)",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60},
	}, []string{"component", "operation", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		EvaluationsTotal,
		EvaluationSeconds,
		PublishErrors,
		CaptionEditFailures,
		LedgerReadFailures,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveEvaluation записывает исход и длительность оценки дня.
func ObserveEvaluation(outcome string, start time.Time) {
	if outcome == "" {
		outcome = "unknown"
	}
	EvaluationsTotal.WithLabelValues(outcome).Inc()
	EvaluationSeconds.Observe(time.Since(start).Seconds())
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, status).Inc()
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}
