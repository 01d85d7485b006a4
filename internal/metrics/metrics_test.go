package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	// Create a new registry for isolated testing
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	if m == nil {
		t.Fatal("NewMetricsWithRegistry returned nil")
	}
	if m.PacketsReceived == nil {
		t.Error("PacketsReceived metric is nil")
	}
	if m.ClientKnown == nil {
		t.Error("ClientKnown metric is nil")
	}
}

func TestRecordReceived(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordReceived(DirectionClientToServer, 100)
	m.RecordReceived(DirectionClientToServer, 50)
	m.RecordReceived(DirectionServerToClient, 10)

	if got := testutil.ToFloat64(m.PacketsReceived.WithLabelValues(DirectionClientToServer)); got != 2 {
		t.Errorf("client_to_server packets = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BytesReceived.WithLabelValues(DirectionClientToServer)); got != 150 {
		t.Errorf("client_to_server bytes = %v, want 150", got)
	}
	if got := testutil.ToFloat64(m.PacketsReceived.WithLabelValues(DirectionServerToClient)); got != 1 {
		t.Errorf("server_to_client packets = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.PayloadSize); got != 1 {
		t.Errorf("payload histogram series = %d, want 1", got)
	}
}

func TestRecordForwardedAndDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordForwarded(DirectionServerToClient, 4)
	m.RecordForwarded(DirectionServerToClient, 4)
	m.RecordDropped(DirectionServerToClient)
	m.RecordDropped(DirectionClientToServer)
	m.RecordSkipped()

	if got := testutil.ToFloat64(m.PacketsForwarded.WithLabelValues(DirectionServerToClient)); got != 2 {
		t.Errorf("forwarded = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BytesForwarded.WithLabelValues(DirectionServerToClient)); got != 8 {
		t.Errorf("bytes forwarded = %v, want 8", got)
	}
	if got := testutil.ToFloat64(m.PacketsDropped.WithLabelValues(DirectionClientToServer)); got != 1 {
		t.Errorf("dropped client_to_server = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PacketsSkipped); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
}

func TestSetClientKnown(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	if got := testutil.ToFloat64(m.ClientKnown); got != 0 {
		t.Errorf("initial client_known = %v, want 0", got)
	}
	m.SetClientKnown(true)
	if got := testutil.ToFloat64(m.ClientKnown); got != 1 {
		t.Errorf("client_known = %v, want 1", got)
	}
	m.SetClientKnown(false)
	if got := testutil.ToFloat64(m.ClientKnown); got != 0 {
		t.Errorf("client_known = %v, want 0", got)
	}
}

func TestMetricNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)
	m.RecordSkipped()

	expected := `
# HELP badnet_packets_skipped_total Total server datagrams discarded because no client was known yet
# TYPE badnet_packets_skipped_total counter
badnet_packets_skipped_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "badnet_packets_skipped_total"); err != nil {
		t.Error(err)
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetricsWithRegistry(reg)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewMetricsWithRegistry(reg)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.RecordReceived(DirectionClientToServer, 10)
	m.RecordForwarded(DirectionClientToServer, 10)
	m.RecordDropped(DirectionServerToClient)
	m.RecordSkipped()
	m.SetClientKnown(true)
}
