package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity registry.
type Metrics struct {
	ParticipantsRegistered prometheus.Counter
	ParticipantsVerified   prometheus.Counter
	CommandRejections      *prometheus.CounterVec
	RegisterDuration       prometheus.Histogram
}

// New creates a Metrics instance with all identity registry metrics registered.
func New() *Metrics {
	return &Metrics{
		ParticipantsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "supplytrace_participants_registered_total",
			Help: "Total number of participants registered",
		}),
		ParticipantsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "supplytrace_participants_verified_total",
			Help: "Total number of participants verified by the administrator",
		}),
		CommandRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "supplytrace_identity_rejections_total",
			Help: "Identity registry command rejections by error code",
		}, []string{"code"}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "supplytrace_participant_register_duration_seconds",
			Help:    "Duration of participant registration commands",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementRegistered() {
	m.ParticipantsRegistered.Inc()
}

func (m *Metrics) IncrementVerified() {
	m.ParticipantsVerified.Inc()
}

func (m *Metrics) IncrementRejection(code string) {
	m.CommandRejections.WithLabelValues(code).Inc()
}

// ObserveRegister records the duration of a registration command.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}
