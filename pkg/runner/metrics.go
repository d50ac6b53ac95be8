package runner

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricRunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wordbench",
		Name:      "runs_started_total",
		Help:      "Number of puzzle runs started.",
	})
	metricRunsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wordbench",
		Name:      "runs_completed_total",
		Help:      "Number of puzzle runs completed, by terminal status.",
	}, []string{"status"})
	metricSteps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wordbench",
		Name:      "steps_total",
		Help:      "Number of agent steps executed.",
	})
	metricInvalidActions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wordbench",
		Name:      "invalid_actions_total",
		Help:      "Number of agent actions rejected by an environment or parser.",
	})
	metricTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wordbench",
		Name:      "tokens_total",
		Help:      "Token usage across all agent calls, by kind.",
	}, []string{"kind"})
)

// MetricsHandler exposes the suite counters for prometheus scraping.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func recordRunStarted() {
	metricRunsStarted.Inc()
}

func recordRunCompleted(status string) {
	metricRunsCompleted.WithLabelValues(status).Inc()
}

func recordStep(promptTokens, completionTokens int) {
	metricSteps.Inc()
	if promptTokens > 0 {
		metricTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		metricTokens.WithLabelValues("completion").Add(float64(completionTokens))
	}
}

func recordInvalidAction() {
	metricInvalidActions.Inc()
}
