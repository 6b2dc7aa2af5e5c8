package metrics

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestDomainMetricsExportCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDomain(reg)

	m.OrderCreated("cod", "Created")
	m.Settlement("webhook", "Paid", OutcomeApplied)
	m.Settlement("webhook", "Paid", OutcomeNoop)
	m.WebhookEvent("payment.captured", OutcomeApplied)
	m.Reservation("reserve", OutcomeRejected)
	m.ObserveGatewayCall("create_order", "ok", 0.2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "orders_created_total", "payment_method", "cod"); err != nil || got != 1 {
		t.Fatalf("expected orders_created_total{cod}=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "payment_settlements_total", "outcome", OutcomeNoop); err != nil || got != 1 {
		t.Fatalf("expected noop settlement=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "stock_reservations_total", "outcome", OutcomeRejected); err != nil || got != 1 {
		t.Fatalf("expected rejected reservation=1, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "payment_gateway_request_duration_seconds", "operation", "create_order"); err != nil || got <= 0 {
		t.Fatalf("expected gateway latency sum > 0, got %f (%v)", got, err)
	}
}

func TestNilDomainIsSafe(t *testing.T) {
	var m *Domain
	m.OrderCreated("cod", "Created")
	m.WebhookEvent("payment.failed", OutcomeIgnored)
	NewDomain(nil).Settlement("verify", "Paid", OutcomeApplied)
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg)
	h.Observe(http.MethodPost, "/api/orders", http.StatusCreated, 30*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "http_requests_total", "status", "201"); err != nil || got != 1 {
		t.Fatalf("expected one 201 request, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "http_request_duration_seconds", "route", "/api/orders"); err != nil || got <= 0 {
		t.Fatalf("expected latency sum > 0, got %f (%v)", got, err)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
