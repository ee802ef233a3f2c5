// Package realip resolves the validator's own origin IP once, so proxy
// probes can tell whether a proxy is leaking it (transparent) or not.
package realip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const probeTimeout = 7 * time.Second

// endpoint is one of the echo services tried in order, and the field
// its response carries the caller's IP under.
type endpoint struct {
	url   string
	field string
}

var endpoints = []endpoint{
	{url: "https://ipinfo.io/json", field: "ip"},
	{url: "https://httpbin.org/ip", field: "origin"},
	{url: "https://api.ipify.org?format=json", field: "ip"},
}

// Resolver holds the process's own public IP, resolved once at startup
// and reused by every probe for the life of the process. It is an
// explicit dependency rather than a package-level global so tests can
// construct one deterministically.
type Resolver struct {
	ip string
}

// Resolve tries each echo endpoint in order with a short timeout,
// returning the first successfully parsed IP. On total failure it
// returns a Resolver whose IP() is "", which callers treat as "unknown".
func Resolve(client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}

	for _, ep := range endpoints {
		ip, err := fetchIP(client, ep)
		if err == nil && ip != "" {
			return &Resolver{ip: ip}
		}
	}
	return &Resolver{ip: ""}
}

// IP returns the resolved origin IP, or "" if resolution never succeeded.
func (r *Resolver) IP() string {
	return r.ip
}

func fetchIP(client *http.Client, ep endpoint) (string, error) {
	req, err := http.NewRequest(http.MethodGet, ep.url, nil)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(req.Context(), probeTimeout)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("realip: %s returned status %d", ep.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", err
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}

	raw, ok := payload[ep.field].(string)
	if !ok || raw == "" {
		return "", fmt.Errorf("realip: %s response missing field %q", ep.url, ep.field)
	}

	// httpbin's "origin" can be a comma-separated list when the request
	// traversed more than one hop; the first entry is this process's IP.
	ip := strings.TrimSpace(strings.Split(raw, ",")[0])
	if ip == "" {
		return "", fmt.Errorf("realip: %s returned empty IP", ep.url)
	}
	return ip, nil
}
