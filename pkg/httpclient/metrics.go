package httpclient

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics はクライアント側のリクエストメトリクス。
type metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	authFailures prometheus.Counter
}

// newMetrics はregにメトリクスを登録する。
// 同じregに登録済みの場合は既存のコレクタを再利用する。
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &metrics{
		requests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resourcehub",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of API requests by method and status code",
		}, []string{"method", "code"})),
		duration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "resourcehub",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"})),
		authFailures: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "resourcehub",
			Subsystem: "client",
			Name:      "unauthorized_total",
			Help:      "Total number of 401 responses that cleared the stored session",
		})),
	}
}

// register はコレクタを登録し、既に登録済みならそのコレクタを返す。
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// observe はリクエスト1件を記録する。
func (m *metrics) observe(method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, code).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// unauthorized は401応答を記録する。
func (m *metrics) unauthorized() {
	if m == nil {
		return
	}
	m.authFailures.Inc()
}
