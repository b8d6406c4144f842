// Package metrics содержит счётчики Prometheus сервиса.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics объединяет счётчики жизненного цикла заявок и HTTP-запросов.
// Методы безопасно вызывать у nil.
type Metrics struct {
	registry      *prometheus.Registry
	transitions   *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	pointsCredit  prometheus.Counter
	moneyCredit   prometheus.Counter
	requests      *prometheus.CounterVec
	lookupFailure prometheus.Counter
}

// New создаёт счётчики в отдельном реестре.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banksampah",
			Name:      "deposit_transitions_total",
			Help:      "Successful deposit lifecycle transitions.",
		}, []string{"transition"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banksampah",
			Name:      "deposit_rejections_total",
			Help:      "Rejected deposit lifecycle transitions by reason.",
		}, []string{"transition", "reason"}),
		pointsCredit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banksampah",
			Name:      "credited_points_total",
			Help:      "Points credited to user balances.",
		}),
		moneyCredit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banksampah",
			Name:      "credited_money_total",
			Help:      "Money credited to user balances.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banksampah",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		lookupFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banksampah",
			Name:      "wilayah_lookup_failures_total",
			Help:      "Failed administrative boundary lookups.",
		}),
	}

	registry.MustRegister(m.transitions, m.rejections, m.pointsCredit, m.moneyCredit, m.requests, m.lookupFailure)
	return m
}

// Transition учитывает успешный переход.
func (m *Metrics) Transition(name string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(name).Inc()
}

// Rejection учитывает отклонённый переход.
func (m *Metrics) Rejection(name, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(name, reason).Inc()
}

// Credit учитывает начисленное вознаграждение.
func (m *Metrics) Credit(points, money int64) {
	if m == nil {
		return
	}
	m.pointsCredit.Add(float64(points))
	m.moneyCredit.Add(float64(money))
}

// Request учитывает обработанный HTTP-запрос.
func (m *Metrics) Request(method, status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, status).Inc()
}

// LookupFailure учитывает ошибку справочника административных единиц.
func (m *Metrics) LookupFailure() {
	if m == nil {
		return
	}
	m.lookupFailure.Inc()
}

// Handler возвращает HTTP-обработчик для выдачи метрик.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
