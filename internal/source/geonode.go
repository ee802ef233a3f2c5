package source

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/proxycatalog/catalog/internal/catalog"
)

const (
	geoNodeURL     = "https://proxylist.geonode.com/api/proxy-list?limit=500&page=1&sort_by=lastChecked&sort_type=desc"
	geoNodeTimeout = 10 * time.Second
)

// GeoNode fetches the JSON proxy listing from proxylist.geonode.com. Each
// listed entry may support several protocols; one Record is emitted per
// supported protocol.
type GeoNode struct {
	URL    string
	client *http.Client
}

// NewGeoNode constructs a GeoNode adapter against the default endpoint.
func NewGeoNode() *GeoNode {
	return &GeoNode{URL: geoNodeURL, client: &http.Client{Timeout: geoNodeTimeout}}
}

func (g *GeoNode) Name() string { return "geonode" }

type geoNodeResponse struct {
	Data []geoNodeEntry `json:"data"`
}

type geoNodeEntry struct {
	IP           string   `json:"ip"`
	Port         string   `json:"port"`
	Protocols    []string `json:"protocols"`
	Country      string   `json:"country"`
	ResponseTime *float64 `json:"responseTime"`
	Latency      *float64 `json:"latency"`
	LastChecked  int64    `json:"lastChecked"`
	AnonLevel    string   `json:"anonymityLevel"`
}

var geoNodeProtocolSet = map[string]catalog.Protocol{
	"http":   catalog.ProtocolHTTP,
	"https":  catalog.ProtocolHTTPS,
	"socks4": catalog.ProtocolSOCKS4,
	"socks5": catalog.ProtocolSOCKS5,
}

func (g *GeoNode) Fetch(ctx context.Context) ([]catalog.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload geoNodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	var records []catalog.Record
	for _, e := range payload.Data {
		port, err := strconv.Atoi(e.Port)
		if err != nil {
			continue
		}

		responseTime := e.ResponseTime
		if responseTime == nil {
			responseTime = e.Latency
		}

		var lastChecked *time.Time
		if e.LastChecked > 0 {
			t := time.Unix(e.LastChecked, 0).UTC()
			lastChecked = &t
		}

		for _, p := range e.Protocols {
			protocol, ok := geoNodeProtocolSet[p]
			if !ok {
				continue
			}
			rec := catalog.Record{
				IP:             e.IP,
				Port:           port,
				Protocol:       protocol,
				Country:        e.Country,
				Anonymity:      e.AnonLevel,
				Source:         g.Name(),
				ResponseTimeMs: responseTime,
				LastChecked:    lastChecked,
			}
			if rec.Validate() == nil {
				records = append(records, rec)
			}
		}
	}

	return records, nil
}
