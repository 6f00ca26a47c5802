package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the product registry.
type Metrics struct {
	ProductsRegistered prometheus.Counter
	Transfers          prometheus.Counter
	PriceUpdates       prometheus.Counter
	CounterfeitFlags   prometheus.Counter
	CommandRejections  *prometheus.CounterVec
	TransferDuration   prometheus.Histogram
}

// New creates a Metrics instance with all product registry metrics registered.
func New() *Metrics {
	return &Metrics{
		ProductsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "supplytrace_products_registered_total",
			Help: "Total number of products registered",
		}),
		Transfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "supplytrace_product_transfers_total",
			Help: "Total number of accepted custody transfers",
		}),
		PriceUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "supplytrace_price_updates_total",
			Help: "Total number of accepted price revisions",
		}),
		CounterfeitFlags: promauto.NewCounter(prometheus.CounterOpts{
			Name: "supplytrace_counterfeit_flags_total",
			Help: "Total number of products marked counterfeit",
		}),
		CommandRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "supplytrace_product_rejections_total",
			Help: "Product registry command rejections by error code",
		}, []string{"code"}),
		TransferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "supplytrace_product_transfer_duration_seconds",
			Help:    "Duration of transfer commands (custody critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementRegistered() {
	m.ProductsRegistered.Inc()
}

func (m *Metrics) IncrementTransfers() {
	m.Transfers.Inc()
}

func (m *Metrics) IncrementPriceUpdates() {
	m.PriceUpdates.Inc()
}

func (m *Metrics) IncrementCounterfeitFlags() {
	m.CounterfeitFlags.Inc()
}

func (m *Metrics) IncrementRejection(code string) {
	m.CommandRejections.WithLabelValues(code).Inc()
}

// ObserveTransfer records the duration of a transfer command.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveTransfer(start time.Time) {
	m.TransferDuration.Observe(time.Since(start).Seconds())
}
