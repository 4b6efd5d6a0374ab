package saltyrtc

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RelayResult classifies the outcome of one relay attempt, for the
// Observer's Relay counter.
type RelayResult string

const (
	RelayResultOK      RelayResult = "ok"
	RelayResultError   RelayResult = "error"
	RelayResultNoTarget RelayResult = "no_target"
	RelayResultTimeout RelayResult = "timeout"
)

// HandshakeResult classifies how a connection's handshake ended.
type HandshakeResult string

const (
	HandshakeResultInitiator HandshakeResult = "initiator"
	HandshakeResultResponder HandshakeResult = "responder"
	HandshakeResultError     HandshakeResult = "error"
)

// Observer receives metric events from the protocol core. It is modelled
// on the flowersec TunnelObserver interface: a small set of counters and
// gauges a production deployment wants, with a zero-cost no-op available
// when metrics are disabled. The protocol core reports Handshake, Relay and
// Disconnect; it does not call PathCount or SlotsInUse, so those gauges
// only change when some other caller sets them.
type Observer interface {
	PathCount(n int)
	SlotsInUse(n int)
	Handshake(result HandshakeResult)
	Relay(result RelayResult)
	Disconnect(code CloseCode)
}

type noopObserver struct{}

func (noopObserver) PathCount(int)             {}
func (noopObserver) SlotsInUse(int)            {}
func (noopObserver) Handshake(HandshakeResult) {}
func (noopObserver) Relay(RelayResult)         {}
func (noopObserver) Disconnect(CloseCode)      {}

// NoopObserver is used wherever metrics are not configured.
var NoopObserver Observer = noopObserver{}

// PrometheusObserver is an Observer backed by client_golang, exported over
// /metrics via promhttp (wired in httpserver.go). Metric names are
// prefixed saltyrtc_, mirroring flowersec_tunnel_* in the pack's own
// Prometheus observer.
type PrometheusObserver struct {
	pathCount   prometheus.Gauge
	slotsInUse  prometheus.Gauge
	handshakes  *prometheus.CounterVec
	relays      *prometheus.CounterVec
	disconnects *prometheus.CounterVec
}

// NewPrometheusObserver creates and registers a PrometheusObserver against
// reg.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		pathCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "saltyrtc_paths",
			Help: "Number of live paths.",
		}),
		slotsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "saltyrtc_slots_in_use",
			Help: "Number of occupied initiator/responder slots across all paths.",
		}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saltyrtc_handshakes_total",
			Help: "Completed handshakes by outcome.",
		}, []string{"result"}),
		relays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saltyrtc_relays_total",
			Help: "Relay attempts by outcome.",
		}, []string{"result"}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saltyrtc_disconnects_total",
			Help: "Connection terminations by close code.",
		}, []string{"code"}),
	}
	reg.MustRegister(o.pathCount, o.slotsInUse, o.handshakes, o.relays, o.disconnects)
	return o
}

func (o *PrometheusObserver) PathCount(n int)  { o.pathCount.Set(float64(n)) }
func (o *PrometheusObserver) SlotsInUse(n int) { o.slotsInUse.Set(float64(n)) }

func (o *PrometheusObserver) Handshake(result HandshakeResult) {
	o.handshakes.WithLabelValues(string(result)).Inc()
}

func (o *PrometheusObserver) Relay(result RelayResult) {
	o.relays.WithLabelValues(string(result)).Inc()
}

func (o *PrometheusObserver) Disconnect(code CloseCode) {
	o.disconnects.WithLabelValues(code.String()).Inc()
}
