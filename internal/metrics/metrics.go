// Package metrics определяет бизнес-метрики биллинга для Prometheus.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics объединяет счётчики биллинга, экспортируемые на /metrics.
type Metrics struct {
	// RenewalsTotal — количество продлённых расчётных циклов.
	RenewalsTotal prometheus.Counter
	// MinutesConsumedTotal — минуты, заявленные к списанию со счётчиков.
	MinutesConsumedTotal prometheus.Counter
	// GatewayFailuresTotal — сбои вызовов внешних провайдеров, по провайдеру.
	GatewayFailuresTotal *prometheus.CounterVec
}

// New создаёт и регистрирует метрики в переданном Registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RenewalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_renewals_total",
			Help: "Number of billing cycles renewed by the sweep or on demand.",
		}),
		MinutesConsumedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_minutes_consumed_total",
			Help: "Minutes reported against account balances.",
		}),
		GatewayFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_gateway_failures_total",
			Help: "Failed calls to external providers.",
		}, []string{"provider"}),
	}

	reg.MustRegister(m.RenewalsTotal, m.MinutesConsumedTotal, m.GatewayFailuresTotal)
	return m
}
