package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/proxycatalog/catalog/internal/catalog"
)

const (
	proxyScrapeURL     = "https://api.proxyscrape.com/v4/free-proxy-list/get?request=display_proxies&proxy_format=protocolipport&format=json"
	proxyScrapeTimeout = 20 * time.Second
)

// ProxyScrape fetches the JSON listing from api.proxyscrape.com, where
// each entry's "proxy" field is a full "protocol://ip:port" URL.
type ProxyScrape struct {
	URL    string
	client *http.Client
}

// NewProxyScrape constructs a ProxyScrape adapter against the default endpoint.
func NewProxyScrape() *ProxyScrape {
	return &ProxyScrape{URL: proxyScrapeURL, client: &http.Client{Timeout: proxyScrapeTimeout}}
}

func (p *ProxyScrape) Name() string { return "proxyscrape" }

type proxyScrapeResponse struct {
	Proxies []proxyScrapeEntry `json:"proxies"`
}

type proxyScrapeEntry struct {
	Proxy string `json:"proxy"`
}

func (p *ProxyScrape) Fetch(ctx context.Context) ([]catalog.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload proxyScrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	var records []catalog.Record
	for _, e := range payload.Proxies {
		parsed, err := url.Parse(e.Proxy)
		if err != nil || parsed.Hostname() == "" {
			continue
		}
		port, err := strconv.Atoi(parsed.Port())
		if err != nil {
			continue
		}

		rec := catalog.Record{
			IP:       parsed.Hostname(),
			Port:     port,
			Protocol: catalog.NormalizeProtocol(parsed.Scheme),
			Source:   p.Name(),
		}
		if rec.Validate() == nil {
			records = append(records, rec)
		}
	}

	return records, nil
}
