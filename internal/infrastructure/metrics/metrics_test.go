package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistryRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewWithRegistry(registry)

	if m.Transfers == nil || m.HTTPRequests == nil || m.ConnWait == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.RecordConflict()

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}
}

func TestRecordTransfer(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordTransfer("committed", 3*time.Millisecond, 2)
	m.RecordTransfer("committed", time.Millisecond, 1)
	m.RecordTransfer("insufficient_funds", time.Millisecond, 1)
	m.RecordTransfer("invalid_request", time.Microsecond, 0)
	m.RecordConflict()

	if got := testutil.ToFloat64(m.Transfers.WithLabelValues("committed")); got != 2 {
		t.Fatalf("expected 2 committed transfers, got %v", got)
	}
	if got := testutil.ToFloat64(m.Transfers.WithLabelValues("insufficient_funds")); got != 1 {
		t.Fatalf("expected 1 insufficient_funds transfer, got %v", got)
	}
	if got := testutil.ToFloat64(m.SerializationConflicts); got != 1 {
		t.Fatalf("expected 1 conflict, got %v", got)
	}
	if got := testutil.CollectAndCount(m.TransferAttempts); got != 1 {
		t.Fatalf("expected attempts histogram to be collected once, got %d", got)
	}
}

func TestObserveConnWait(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)

	m.ObserveConnWait(2 * time.Millisecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() == "occledger_connection_wait_seconds" {
			if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
				t.Fatalf("expected one wait sample, got %d", count)
			}
			return
		}
	}
	t.Fatal("connection wait histogram not registered")
}
