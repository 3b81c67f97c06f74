package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics объединяет счетчики HTTP-слоя и доменные счетчики опросов
type Metrics struct {
	RequestCounter     *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	GdprChecks         *prometheus.CounterVec
	ResponsesCompleted prometheus.Counter
	Autosaves          *prometheus.CounterVec
}

// NewMetrics создает и регистрирует метрики в переданном реестре
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 15},
			},
			[]string{"method", "endpoint"},
		),
		GdprChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gdpr_checks_total",
				Help: "Personal data screenings by outcome",
			},
			[]string{"outcome"},
		),
		ResponsesCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "survey_responses_completed_total",
				Help: "Survey responses marked as completed",
			},
		),
		Autosaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "survey_autosaves_total",
				Help: "Live fill session saves by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.RequestCounter, m.RequestDuration, m.GdprChecks, m.ResponsesCompleted, m.Autosaves)
	return m
}

// ObserveGdprCheck учитывает результат проверки: clean, flagged или error
func (m *Metrics) ObserveGdprCheck(outcome string) {
	if m == nil {
		return
	}
	m.GdprChecks.WithLabelValues(outcome).Inc()
}

// ObserveCompletion учитывает завершенный ответ на опрос
func (m *Metrics) ObserveCompletion() {
	if m == nil {
		return
	}
	m.ResponsesCompleted.Inc()
}

// ObserveAutosave учитывает сохранение черновика из live-сессии
func (m *Metrics) ObserveAutosave(outcome string) {
	if m == nil {
		return
	}
	m.Autosaves.WithLabelValues(outcome).Inc()
}

func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		m.RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		m.RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

// PrometheusHandler отдает метрики из указанного реестра
func PrometheusHandler(gatherer prometheus.Gatherer) gin.HandlerFunc {
	h := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
