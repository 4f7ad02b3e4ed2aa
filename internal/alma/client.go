// Package alma queries the union catalog search API for match candidates.
// Each hit is a bibliographic record; its creators that carry a registry
// authority id become candidates for the work's title and ISBNs.
package alma

import (
	"context"
	"encoding/json"
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

// registryPrefix marks creator ids minted by the national registry.
const registryPrefix = "(NO-TrBIB)"

// HTTPDoer describes the HTTP client used by the service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config captures the runtime settings for the union catalog API.
type Config struct {
	BaseURL        string
	UserAgent      string
	TimeoutSeconds int
}

// Client talks to the union catalog search endpoint.
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

// NewClient constructs a union catalog client.
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

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title    string          `json:"title"`
	ISBNs    []string        `json:"isbns"`
	Creators []searchCreator `json:"creators"`
}

type searchCreator struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Dates string `json:"dates"`
}

// Candidates runs a CQL query against the network zone and yields one
// candidate per registry-backed creator per hit. The API answers with a
// single bounded page, so the sequence is backed by one parsed response.
// An unparsable payload is a MalformedResponseError; the API contract
// changing is run-fatal, unlike an empty result.
func (c *Client) Candidates(ctx context.Context, query string) (*authority.Candidates, error) {
	values := url.Values{}
	values.Set("query", query)
	values.Set("nz", "true")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/search?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build alma request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alma search %q: %w", query, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("alma search %q: http %d: %s", query, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &authority.MalformedResponseError{Provider: "alma", Err: err}
	}

	var candidates []authority.Candidate
	for _, result := range decoded.Results {
		isbns := make([]string, 0, len(result.ISBNs))
		for _, isbn := range result.ISBNs {
			isbns = append(isbns, strings.ReplaceAll(isbn, "-", ""))
		}
		for _, creator := range result.Creators {
			if creator.ID == "" {
				continue
			}
			candidates = append(candidates, authority.Candidate{
				Person: authority.Identity{
					Source: authority.SourceNoraf,
					ID:     strings.TrimSpace(strings.ReplaceAll(creator.ID, registryPrefix, "")),
					Name:   creator.Name,
					Dates:  creator.Dates,
				},
				Title: result.Title,
				ISBNs: isbns,
			})
		}
	}
	c.logger.Debug("alma search finished",
		slog.String("query", query),
		slog.Int("hits", len(decoded.Results)),
		slog.Int("candidates", len(candidates)))
	return authority.CandidatesOf(candidates...), nil
}
