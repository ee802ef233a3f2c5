// Package transport builds and caches HTTP clients for routing probe
// requests through a catalog proxy, including SOCKS4/5 dialing.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"h12.io/socks"

	"github.com/proxycatalog/catalog/internal/catalog"
)

// Pool caches one *http.Client per distinct proxy+timeout pair for the
// duration of a validation cycle. validator.RunBatch creates a fresh Pool
// per batch and closes it on return, so SOCKS and HTTP transports never
// outlive the cycle that opened them.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]*http.Client
}

// NewPool creates an empty client pool.
func NewPool() *Pool {
	return &Pool{clients: make(map[string]*http.Client)}
}

// ClientFor returns an HTTP client that routes through rec, creating and
// caching a new one on first use for this (ip, port, protocol, timeout)
// combination.
func (p *Pool) ClientFor(rec catalog.Record, timeout time.Duration) (*http.Client, error) {
	key := fmt.Sprintf("%s:%s", rec.Key(), timeout)

	p.mu.RLock()
	if c, ok := p.clients[key]; ok {
		p.mu.RUnlock()
		return c, nil
	}
	p.mu.RUnlock()

	client, err := newClient(rec, timeout)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.clients[key] = client
	p.mu.Unlock()

	return client, nil
}

// Close closes all idle connections held by clients in the pool. Called
// once at the end of a validation cycle.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, client := range p.clients {
		if t, ok := client.Transport.(*http.Transport); ok {
			t.CloseIdleConnections()
		}
	}
	p.clients = make(map[string]*http.Client)
}

func newClient(rec catalog.Record, timeout time.Duration) (*http.Client, error) {
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}

	transport := &http.Transport{
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
		ForceAttemptHTTP2:     true,
	}

	switch rec.Protocol {
	case catalog.ProtocolHTTP, catalog.ProtocolHTTPS:
		proxyURL, err := url.Parse(rec.ProxyURL())
		if err != nil {
			return nil, fmt.Errorf("transport: parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		transport.DialContext = dialer.DialContext

	case catalog.ProtocolSOCKS4, catalog.ProtocolSOCKS5:
		dialSocks := socks.Dial(fmt.Sprintf("%s://%s:%d?timeout=%s", rec.Protocol, rec.IP, rec.Port, timeout))
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialSocks(network, addr)
		}

	default:
		return nil, fmt.Errorf("transport: unsupported protocol %q", rec.Protocol)
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}
