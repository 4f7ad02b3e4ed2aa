// Package viaf queries VIAF cluster search for match candidates.
//
// The XML representation is used rather than JSON: the JSON rendering
// collapses single-element lists into bare objects, which makes every list
// access shape-dependent. A cluster whose main heading carries a BIBSYS
// source resolves to a registry-backed identity; any other personal cluster
// yields a cluster-only identity kept as a low-confidence fallback.
package viaf

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"seiso/internal/authority"
)

const defaultHTTPTimeout = 30 * time.Second

// viafNS is the namespace of cluster elements in search responses.
const viafNS = "http://viaf.org/viaf/terms#"

// registrySource is the VIAF source code of the national registry.
const registrySource = "BIBSYS"

// HTTPDoer describes the HTTP client used by the service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config captures the runtime settings for the VIAF API.
type Config struct {
	BaseURL        string
	UserAgent      string
	TimeoutSeconds int
}

// Client talks to the VIAF search endpoint.
type Client struct {
	cfg        Config
	httpClient HTTPDoer
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a VIAF client.
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	return client
}

type xmlSubfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

type xmlDatafield struct {
	Subfields []xmlSubfield `xml:"subfield"`
}

func (f *xmlDatafield) value(code string) string {
	for _, sf := range f.Subfields {
		if sf.Code == code {
			return strings.TrimSpace(sf.Value)
		}
	}
	return ""
}

type xmlHeading struct {
	ID        string       `xml:"id"`
	Datafield xmlDatafield `xml:"datafield"`
}

type xmlX400 struct {
	Sources   []string     `xml:"sources>s"`
	Datafield xmlDatafield `xml:"datafield"`
}

type xmlCluster struct {
	ViafID       string       `xml:"viafID"`
	NameType     string       `xml:"nameType"`
	MainHeadings []xmlHeading `xml:"mainHeadings>mainHeadingEl"`
	X400s        []xmlX400    `xml:"x400s>x400"`
	ISBNs        []string     `xml:"ISBNs>data>text"`
	WorkTitles   []string     `xml:"titles>work>title"`
}

// identity resolves a cluster to a registry-backed identity when any main
// heading is sourced from the registry, or to a cluster-only identity.
func (c *xmlCluster) identity() authority.Identity {
	for _, heading := range c.MainHeadings {
		source, id, ok := strings.Cut(strings.TrimSpace(heading.ID), "|")
		if !ok || source != registrySource {
			continue
		}
		identity := authority.Identity{
			Source: authority.SourceNoraf,
			ID:     id,
			Name:   heading.Datafield.value("a"),
			Dates:  heading.Datafield.value("d"),
		}
		for _, x400 := range c.X400s {
			if !x400.sourcedFromRegistry() {
				continue
			}
			if name := x400.Datafield.value("a"); name != "" {
				identity.AltNames = append(identity.AltNames, name)
			}
		}
		return identity
	}
	return authority.Identity{
		Source: authority.SourceViaf,
		ID:     strings.TrimSpace(c.ViafID),
	}
}

func (x *xmlX400) sourcedFromRegistry() bool {
	for _, source := range x.Sources {
		if strings.TrimSpace(source) == registrySource {
			return true
		}
	}
	return false
}

// Candidates runs a CQL query and returns a sequence with one candidate per
// work title per personal cluster. Clusters of other name types are skipped.
func (c *Client) Candidates(ctx context.Context, query string) (*authority.Candidates, error) {
	values := url.Values{}
	values.Set("query", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/search?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build viaf request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("viaf search %q: %w", query, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("viaf search %q: http %d: %s", query, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	clusters, err := parseClusters(resp.Body)
	if err != nil {
		return nil, &authority.MalformedResponseError{Provider: "viaf", Err: err}
	}
	c.logger.Debug("viaf search finished",
		slog.String("query", query),
		slog.Int("clusters", len(clusters)))

	var candidates []authority.Candidate
	for _, cluster := range clusters {
		if cluster.NameType != "Personal" {
			c.logger.Debug("skipping viaf cluster", slog.String("name_type", cluster.NameType))
			continue
		}
		person := cluster.identity()
		for _, title := range cluster.WorkTitles {
			candidates = append(candidates, authority.Candidate{
				Person: person,
				Title:  strings.TrimSpace(title),
				ISBNs:  cluster.ISBNs,
			})
		}
	}
	return authority.CandidatesOf(candidates...), nil
}

func parseClusters(r io.Reader) ([]*xmlCluster, error) {
	decoder := xml.NewDecoder(r)
	var out []*xmlCluster
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "VIAFCluster" || start.Name.Space != viafNS {
			continue
		}
		var cluster xmlCluster
		if err := decoder.DecodeElement(&cluster, &start); err != nil {
			return nil, err
		}
		out = append(out, &cluster)
	}
}
