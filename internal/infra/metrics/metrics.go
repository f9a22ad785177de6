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
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	GenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "post_generation_duration_seconds",
		Help:    "Длительность генерации постов",
		Buckets: prometheus.DefBuckets,
	}, []string{"post_type"})

	GeneratedPostsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generated_posts_total",
		Help: "Количество сгенерированных черновиков",
	}, []string{"post_type", "tone"})

	ThreadDeletionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thread_deletions_total",
		Help: "Удаления тредов по исходу",
	}, []string{"outcome"})

	WelcomeDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "welcome_decisions_total",
		Help: "Решения о показе приветствия",
	}, []string{"decision"})

	SavedThreadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "saved_threads_total",
		Help: "Количество сохранённых тредов",
	})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NetworkRequestDuration,
		NetworkRequestTotal,
		GenerationDuration,
		GeneratedPostsTotal,
		ThreadDeletionsTotal,
		WelcomeDecisionsTotal,
		SavedThreadsTotal,
	)
}

// StartServer отдаёт метрики gatherer на отдельном адресе, пока жив ctx.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string, gatherer prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			logger.Warn().Err(err).Msg("metrics: остановка сервера")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: сервер упал")
		}
	}()
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// ObserveNetworkRequest пишет длительность и исход удалённого вызова.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	labels := []string{labelOrUnknown(component), labelOrUnknown(operation), labelOrUnknown(target), status}
	NetworkRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.WithLabelValues(labels...).Inc()
}

// ObserveGeneration записывает длительность генерации и число черновиков.
func ObserveGeneration(postType, tone string, duration time.Duration, drafts int) {
	GenerationDuration.WithLabelValues(postType).Observe(duration.Seconds())
	if drafts > 0 {
		GeneratedPostsTotal.WithLabelValues(postType, tone).Add(float64(drafts))
	}
}

// IncThreadDeletion увеличивает счётчик удалений с указанным исходом.
func IncThreadDeletion(outcome string) {
	ThreadDeletionsTotal.WithLabelValues(outcome).Inc()
}

// IncWelcomeDecision увеличивает счётчик решений приветствия.
func IncWelcomeDecision(show bool) {
	decision := "skip"
	if show {
		decision = "show"
	}
	WelcomeDecisionsTotal.WithLabelValues(decision).Inc()
}

// IncSavedThread увеличивает счётчик сохранённых тредов.
func IncSavedThread() {
	SavedThreadsTotal.Inc()
}
