package source

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/proxycatalog/catalog/internal/catalog"
	"github.com/proxycatalog/catalog/internal/country"
)

const (
	freeProxyListURL     = "https://free-proxy-list.net/"
	freeProxyListTimeout = 10 * time.Second
)

// FreeProxyList scrapes the HTML proxy table at free-proxy-list.net.
// Columns are: IP, Port, Code, Country, Anonymity, Google, Https, Last Checked.
type FreeProxyList struct {
	UserAgent string
	client    *http.Client
}

// NewFreeProxyList constructs an adapter with the given User-Agent.
func NewFreeProxyList(userAgent string) *FreeProxyList {
	return &FreeProxyList{UserAgent: userAgent, client: &http.Client{Timeout: freeProxyListTimeout}}
}

func (f *FreeProxyList) Name() string { return "free-proxy-list" }

func (f *FreeProxyList) Fetch(ctx context.Context) ([]catalog.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, freeProxyListURL, nil)
	if err != nil {
		return nil, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	var records []catalog.Record
	for _, row := range tableRows(doc) {
		rec, ok := parseRow(row)
		if ok {
			rec.Source = f.Name()
			records = append(records, rec)
		}
	}
	return records, nil
}

// tableRows walks the parsed document for <tr> elements inside
// table.table-striped tbody, returning each row's <td> cell texts.
func tableRows(doc *html.Node) [][]string {
	var table *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if table != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "table" && hasClass(n, "table-striped") {
			table = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	if table == nil {
		return nil
	}

	var rows [][]string
	var walkRows func(*html.Node)
	walkRows = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.Data == "td" {
					cells = append(cells, strings.TrimSpace(textContent(c)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkRows(c)
		}
	}
	walkRows(table)
	return rows
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func parseRow(cells []string) (catalog.Record, bool) {
	if len(cells) < 7 {
		return catalog.Record{}, false
	}

	ip := strings.TrimSpace(cells[0])
	port, err := strconv.Atoi(strings.TrimSpace(cells[1]))
	if err != nil || ip == "" {
		return catalog.Record{}, false
	}

	code := strings.TrimSpace(cells[2])
	anonymity := strings.TrimSpace(cells[4])
	https := strings.EqualFold(strings.TrimSpace(cells[6]), "yes")

	protocol := catalog.ProtocolHTTP
	if https {
		protocol = catalog.ProtocolHTTPS
	}

	rec := catalog.Record{
		IP:        ip,
		Port:      port,
		Protocol:  protocol,
		Country:   country.Resolve(code),
		Anonymity: anonymity,
	}
	if rec.Validate() != nil {
		return catalog.Record{}, false
	}
	return rec, true
}
