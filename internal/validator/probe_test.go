package validator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/proxycatalog/catalog/internal/catalog"
)

func testParams(connectivity, anonymity string) Params {
	return Params{
		Timeout:          2 * time.Second,
		AnonymityTimeout: 2 * time.Second,
		TestURL:          connectivity,
		AnonymityURL:     anonymity,
		CheckAnonymity:   anonymity != "",
		UserAgent:        "catalogd-test",
	}
}

func TestProbeTransparentProxyMatchesRealIP(t *testing.T) {
	connectivity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"country":"US"}`))
	}))
	defer connectivity.Close()

	anonymity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"origin":"203.0.113.9","headers":{}}`))
	}))
	defer anonymity.Close()

	rec := catalog.Record{IP: "1.2.3.4", Port: 8080, Protocol: catalog.ProtocolHTTP}
	p := testParams(connectivity.URL, anonymity.URL)

	got := Probe(context.Background(), rec, connectivity.Client(), "203.0.113.9", p)
	if got.Anonymity != catalog.AnonymityTransparent {
		t.Errorf("expected Transparent when origin matches real IP, got %q", got.Anonymity)
	}
	if !got.IsValid {
		t.Error("expected IsValid true on 2xx connectivity response")
	}
	if got.Country != "UNITED STATES" {
		t.Errorf("expected resolved, upper-cased country name, got %q", got.Country)
	}
}

func TestProbeAnonymousProxyRevealsHeader(t *testing.T) {
	connectivity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer connectivity.Close()

	anonymity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"origin":"9.9.9.9","headers":{"X-Forwarded-For":"203.0.113.9"}}`))
	}))
	defer anonymity.Close()

	rec := catalog.Record{IP: "1.2.3.4", Port: 8080, Protocol: catalog.ProtocolHTTP}
	p := testParams(connectivity.URL, anonymity.URL)

	got := Probe(context.Background(), rec, connectivity.Client(), "203.0.113.9", p)
	if got.Anonymity != catalog.AnonymityAnonymous {
		t.Errorf("expected Anonymous when a revealing header is present, got %q", got.Anonymity)
	}
}

func TestProbeEliteProxyHidesOriginAndHeaders(t *testing.T) {
	connectivity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer connectivity.Close()

	anonymity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"origin":"9.9.9.9","headers":{"Accept-Language":"en-US"}}`))
	}))
	defer anonymity.Close()

	rec := catalog.Record{IP: "1.2.3.4", Port: 8080, Protocol: catalog.ProtocolHTTP}
	p := testParams(connectivity.URL, anonymity.URL)

	got := Probe(context.Background(), rec, connectivity.Client(), "203.0.113.9", p)
	if got.Anonymity != catalog.AnonymityElite {
		t.Errorf("expected Elite when origin differs and no revealing header present, got %q", got.Anonymity)
	}
}

func TestProbeConnectivityFailureLeavesAnonymityNA(t *testing.T) {
	connectivity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer connectivity.Close()

	rec := catalog.Record{IP: "1.2.3.4", Port: 8080, Protocol: catalog.ProtocolHTTP}
	p := testParams(connectivity.URL, "http://unused.invalid")

	got := Probe(context.Background(), rec, connectivity.Client(), "203.0.113.9", p)
	if got.IsValid {
		t.Error("expected IsValid false on non-2xx connectivity response")
	}
	if got.ResponseTimeMs != nil {
		t.Error("expected response_time_ms to stay absent when connectivity check fails")
	}
	if got.Anonymity != catalog.AnonymityNA {
		t.Errorf("expected anonymity to remain N/A on connectivity failure, got %q", got.Anonymity)
	}
}

func TestProbeAnonymityTimeoutReportsError(t *testing.T) {
	connectivity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer connectivity.Close()

	anonymity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer anonymity.Close()

	rec := catalog.Record{IP: "1.2.3.4", Port: 8080, Protocol: catalog.ProtocolHTTP}
	p := testParams(connectivity.URL, anonymity.URL)
	p.AnonymityTimeout = 1 * time.Millisecond

	got := Probe(context.Background(), rec, connectivity.Client(), "203.0.113.9", p)
	if got.Anonymity != "Error (Anonymity Timeout)" {
		t.Errorf("expected anonymity timeout error, got %q", got.Anonymity)
	}
	if !got.IsValid {
		t.Error("expected connectivity success to still mark the proxy valid despite anonymity timeout")
	}
}

func TestProbeAnonymityNonOKStatusReportsNetworkError(t *testing.T) {
	connectivity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer connectivity.Close()

	anonymity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"origin":"203.0.113.9"}`))
	}))
	defer anonymity.Close()

	rec := catalog.Record{IP: "1.2.3.4", Port: 8080, Protocol: catalog.ProtocolHTTP}
	p := testParams(connectivity.URL, anonymity.URL)

	got := Probe(context.Background(), rec, connectivity.Client(), "203.0.113.9", p)
	if got.Anonymity != "Error (Anonymity Network)" {
		t.Errorf("expected network error for a non-2xx anonymity response, got %q", got.Anonymity)
	}
	if !got.IsValid {
		t.Error("expected connectivity success to still mark the proxy valid despite anonymity failure")
	}
}

func TestProbeNoRealIPYieldsUnknown(t *testing.T) {
	connectivity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer connectivity.Close()

	rec := catalog.Record{IP: "1.2.3.4", Port: 8080, Protocol: catalog.ProtocolHTTP}
	p := testParams(connectivity.URL, "http://unused.invalid")

	got := Probe(context.Background(), rec, connectivity.Client(), "", p)
	if got.Anonymity != "Unknown (No Real IP)" {
		t.Errorf("expected Unknown (No Real IP) when no reference IP is available, got %q", got.Anonymity)
	}
}

func TestProbeCheckAnonymityDisabledYieldsNotChecked(t *testing.T) {
	connectivity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer connectivity.Close()

	rec := catalog.Record{IP: "1.2.3.4", Port: 8080, Protocol: catalog.ProtocolHTTP}
	p := testParams(connectivity.URL, "")
	p.CheckAnonymity = false

	got := Probe(context.Background(), rec, connectivity.Client(), "203.0.113.9", p)
	if got.Anonymity != catalog.AnonymityNotChecked {
		t.Errorf("expected Not Checked when anonymity checking is disabled, got %q", got.Anonymity)
	}
}

func TestProbeResponseTimeRounding(t *testing.T) {
	connectivity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer connectivity.Close()

	rec := catalog.Record{IP: "1.2.3.4", Port: 8080, Protocol: catalog.ProtocolHTTP}
	p := testParams(connectivity.URL, "")
	p.CheckAnonymity = false

	got := Probe(context.Background(), rec, connectivity.Client(), "", p)
	if got.ResponseTimeMs == nil {
		t.Fatal("expected response_time_ms to be set on a successful probe")
	}
	if *got.ResponseTimeMs < 0 {
		t.Errorf("expected non-negative response time, got %v", *got.ResponseTimeMs)
	}
}
