package validator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/proxycatalog/catalog/internal/catalog"
	"github.com/proxycatalog/catalog/internal/country"
)

// Params configures a single probe. Defaults mirror the control plane's
// published defaults: 12s request timeout, 10s anonymity timeout,
// ipinfo.io/httpbin.org as the reference echo endpoints.
type Params struct {
	Timeout          time.Duration
	AnonymityTimeout time.Duration
	TestURL          string
	AnonymityURL     string
	CheckAnonymity   bool
	UserAgent        string
}

// proxyRevealingHeaders is the closed set of header names (matched
// case-insensitively) that mark a proxy as Anonymous rather than Elite.
var proxyRevealingHeaders = map[string]struct{}{
	"x-forwarded-for":      {},
	"x-real-ip":            {},
	"via":                  {},
	"proxy-connection":     {},
	"xroxy-connection":     {},
	"forwarded-for":        {},
	"x-proxy-id":           {},
	"client-ip":            {},
	"x-client-ip":          {},
	"forwarded":            {},
	"from":                 {},
	"http-x-forwarded-for": {},
	"http-client-ip":       {},
	"http-via":             {},
	"xproxy-connection":    {},
}

// Probe performs the full per-proxy check: connectivity, then (if
// enabled) anonymity classification. client must already be configured
// to route through rec (see internal/transport.Pool.ClientFor). Probe
// never returns an error — every failure mode is encoded into the
// returned Record's Anonymity/IsValid fields, per the three-strata
// error model: per-probe failures stop at this boundary.
func Probe(ctx context.Context, rec catalog.Record, client *http.Client, realIP string, p Params) catalog.Record {
	now := time.Now().UTC()
	rec.IsValid = false
	rec.ResponseTimeMs = nil
	rec.Anonymity = catalog.AnonymityNA
	rec.LastChecked = &now

	start := time.Now()
	body, ok := doGet(ctx, client, p.TestURL, p.UserAgent)
	elapsed := time.Since(start)
	if !ok {
		return rec
	}

	ms := roundTo(elapsed.Seconds()*1000, 2)
	rec.ResponseTimeMs = &ms
	rec.IsValid = true

	var connectivity struct {
		Country string `json:"country"`
	}
	if json.Unmarshal(body, &connectivity) == nil && connectivity.Country != "" {
		rec.Country = country.Resolve(connectivity.Country)
	}

	if !p.CheckAnonymity {
		rec.Anonymity = catalog.AnonymityNotChecked
		return rec
	}

	if realIP == "" {
		rec.Anonymity = "Unknown (No Real IP)"
		return rec
	}

	rec.Anonymity = classifyAnonymity(ctx, client, p, realIP)
	return rec
}

func classifyAnonymity(ctx context.Context, client *http.Client, p Params, realIP string) string {
	anonCtx, cancel := context.WithTimeout(ctx, p.AnonymityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(anonCtx, http.MethodGet, p.AnonymityURL, nil)
	if err != nil {
		return "Error (Anonymity Unknown)"
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "Error (Anonymity Timeout)"
		}
		if errors.Is(anonCtx.Err(), context.DeadlineExceeded) {
			return "Error (Anonymity Timeout)"
		}
		return "Error (Anonymity Network)"
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "Error (Anonymity Network)"
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "Error (Anonymity Network)"
	}

	var payload struct {
		Origin  string            `json:"origin"`
		Headers map[string]string `json:"headers"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "Error (Anonymity Format)"
	}

	origin := strings.TrimSpace(strings.Split(payload.Origin, ",")[0])
	if origin == realIP {
		return catalog.AnonymityTransparent
	}

	for header := range payload.Headers {
		if _, revealing := proxyRevealingHeaders[strings.ToLower(header)]; revealing {
			return catalog.AnonymityAnonymous
		}
	}
	return catalog.AnonymityElite
}

func doGet(ctx context.Context, client *http.Client, url, userAgent string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, false
	}
	return body, true
}

func roundTo(v float64, places int) float64 {
	shift := 1.0
	for i := 0; i < places; i++ {
		shift *= 10
	}
	return float64(int64(v*shift+0.5)) / shift
}
