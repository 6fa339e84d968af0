package metrics

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const pushJobName = "dataset-generator"

// Collectors - метрики прогона. Клиент API и сборщик получают их явно,
// тесты создают свой набор на отдельном реестре.
type Collectors struct {
	apiRequests   *prometheus.CounterVec
	jobsSubmitted prometheus.Counter
	pollOutcomes  *prometheus.CounterVec
	pollAttempts  prometheus.Histogram
	jobDuration   prometheus.Histogram
	imagesSaved   prometheus.Counter
	runErrors     *prometheus.CounterVec
}

var defaultCollectors = NewCollectors(prometheus.DefaultRegisterer)

// Default - метрики на глобальном реестре, их же отправляет Pusher.
func Default() *Collectors {
	return defaultCollectors
}

// NewCollectors регистрирует метрики в reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		apiRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataset_generator_api_requests_total",
				Help: "Total number of requests sent to the generation API.",
			},
			[]string{"endpoint", "code"}, // code: http статус или "transport_error"
		),
		jobsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "dataset_generator_jobs_submitted_total",
			Help: "Total number of generation jobs accepted by the API.",
		}),
		pollOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataset_generator_poll_outcomes_total",
				Help: "Outcomes of job polling (completed, timed_out, transport_failure).",
			},
			[]string{"outcome"},
		),
		pollAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataset_generator_poll_attempts",
			Help:    "Number of status checks performed per job.",
			Buckets: prometheus.LinearBuckets(1, 5, 10), // 1, 6, ..., 46
		}),
		jobDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataset_generator_job_duration_seconds",
			Help:    "Wall-clock time from submission to saved image.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8), // 5s ... 640s
		}),
		imagesSaved: f.NewCounter(prometheus.CounterOpts{
			Name: "dataset_generator_images_saved_total",
			Help: "Total number of images written to the dataset.",
		}),
		runErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataset_generator_errors_total",
				Help: "Errors that aborted an image, by kind.",
			},
			[]string{"kind"}, // auth, protocol, transport, decode, incomplete, cancelled, other
		),
	}
}

// ObserveAPIRequest учитывает один HTTP запрос к API. code < 0 означает сетевую ошибку.
func (c *Collectors) ObserveAPIRequest(endpoint string, code int) {
	label := "transport_error"
	if code >= 0 {
		label = strconv.Itoa(code)
	}
	c.apiRequests.WithLabelValues(endpoint, label).Inc()
}

func (c *Collectors) JobSubmitted() {
	c.jobsSubmitted.Inc()
}

// ObservePoll учитывает итог опроса одной задачи.
func (c *Collectors) ObservePoll(outcome string, attempts int) {
	c.pollOutcomes.WithLabelValues(outcome).Inc()
	c.pollAttempts.Observe(float64(attempts))
}

func (c *Collectors) ObserveJobDuration(d time.Duration) {
	c.jobDuration.Observe(d.Seconds())
}

func (c *Collectors) ImageSaved() {
	c.imagesSaved.Inc()
}

func (c *Collectors) RunError(kind string) {
	c.runErrors.WithLabelValues(kind).Inc()
}

// Pusher отправляет метрики прогона в Pushgateway. Nil-значение безопасно и ничего не делает.
type Pusher struct {
	pusher *push.Pusher
	logger *zap.Logger
}

// NewPusher возвращает nil, если url не задан: пуш метрик опционален.
func NewPusher(url string, logger *zap.Logger) *Pusher {
	if url == "" {
		return nil
	}
	hostname, _ := os.Hostname()
	p := push.New(url, pushJobName).
		Grouping("instance", hostname).
		Gatherer(prometheus.DefaultGatherer)

	logger.Info("Prometheus Pusher initialized", zap.String("url", url), zap.String("instance", hostname))
	return &Pusher{pusher: p, logger: logger}
}

func (p *Pusher) Push(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if err := p.pusher.PushContext(ctx); err != nil {
		p.logger.Error("Failed to push metrics to Pushgateway", zap.Error(err))
		return err
	}
	p.logger.Debug("Metrics pushed to Pushgateway")
	return nil
}
