package saltyrtc

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, label string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := vec.WithLabelValues(label).Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestPrometheusObserverCountsHandshakesAndRelaysByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewPrometheusObserver(reg)

	o.Handshake(HandshakeResultInitiator)
	o.Handshake(HandshakeResultInitiator)
	o.Handshake(HandshakeResultResponder)
	o.Relay(RelayResultOK)
	o.Relay(RelayResultTimeout)
	o.Disconnect(CloseNormal)

	if got := counterValue(t, o.handshakes, string(HandshakeResultInitiator)); got != 2 {
		t.Fatalf("initiator handshakes = %v, want 2", got)
	}
	if got := counterValue(t, o.handshakes, string(HandshakeResultResponder)); got != 1 {
		t.Fatalf("responder handshakes = %v, want 1", got)
	}
	if got := counterValue(t, o.relays, string(RelayResultOK)); got != 1 {
		t.Fatalf("ok relays = %v, want 1", got)
	}
	if got := counterValue(t, o.relays, string(RelayResultTimeout)); got != 1 {
		t.Fatalf("timeout relays = %v, want 1", got)
	}
	if got := counterValue(t, o.disconnects, CloseNormal.String()); got != 1 {
		t.Fatalf("normal disconnects = %v, want 1", got)
	}
}

func TestPrometheusObserverGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewPrometheusObserver(reg)
	o.PathCount(3)
	o.SlotsInUse(7)

	m := &dto.Metric{}
	if err := o.pathCount.Write(m); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m.GetGauge().GetValue() != 3 {
		t.Fatalf("pathCount = %v, want 3", m.GetGauge().GetValue())
	}
	m = &dto.Metric{}
	if err := o.slotsInUse.Write(m); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m.GetGauge().GetValue() != 7 {
		t.Fatalf("slotsInUse = %v, want 7", m.GetGauge().GetValue())
	}
}

func TestNoopObserverDoesNotPanic(t *testing.T) {
	NoopObserver.PathCount(1)
	NoopObserver.SlotsInUse(1)
	NoopObserver.Handshake(HandshakeResultError)
	NoopObserver.Relay(RelayResultNoTarget)
	NoopObserver.Disconnect(CloseGoingAway)
}
