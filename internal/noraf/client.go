package noraf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"seiso/internal/authority"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	searchPageSize     = 50
)

// HTTPDoer describes the HTTP client used by the registry client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config captures the runtime settings required to talk to the registry.
type Config struct {
	BaseURL        string
	SRUURL         string
	APIKey         string
	UserAgent      string
	TimeoutSeconds int

	// UpdateLogPath, when set, receives one line per successful Put.
	UpdateLogPath string

	// ReadOnly logs mutations instead of sending them.
	ReadOnly bool

	// RunID tags update log lines with the run that made the change.
	RunID string
}

// Client talks to the registry's REST and SRU endpoints.
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

// NewClient constructs a registry client using the supplied configuration.
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.SRUURL = strings.TrimRight(strings.TrimSpace(cfg.SRUURL), "/")
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

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "apikey "+c.cfg.APIKey)
	}
	return req, nil
}

// Get fetches a record by control number. A missing record yields
// ErrRecordNotFound.
func (c *Client) Get(ctx context.Context, id string) (*Record, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.cfg.BaseURL+"/"+url.PathEscape(id)+"?format=json", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch noraf record %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("noraf record %s: %w", id, ErrRecordNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("failed to fetch noraf record %s: http %d: %s", id, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read noraf record %s: %w", id, err)
	}
	record, err := ParseRecord(data)
	if err != nil {
		return nil, fmt.Errorf("noraf record %s: %w", id, err)
	}
	return record, nil
}

// Put writes a mutated record back to the registry and appends the reason
// to the update audit log. In read-only mode the write is logged and
// skipped. A clean record is a no-op.
func (c *Client) Put(ctx context.Context, record *Record, reason string) error {
	if !record.Dirty() {
		return nil
	}
	if c.cfg.ReadOnly {
		c.logger.Info("dry run: skipping noraf update",
			slog.String("record_id", record.ID()),
			slog.String("reason", reason))
		record.markClean()
		return nil
	}
	payload, err := record.AsJSON()
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPut, c.cfg.BaseURL+"/"+url.PathEscape(record.ID()), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update noraf record %s: %w", record.ID(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpdateFailedError{
			RecordID:   record.ID(),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	record.markClean()
	c.logger.Info("updated noraf record",
		slog.String("record_id", record.ID()),
		slog.String("reason", reason))
	if err := c.appendUpdateLog(record.ID(), reason); err != nil {
		c.logger.Warn("failed to append update log", slog.String("error", err.Error()))
	}
	return nil
}

// Post creates a new registry record and returns the stored version, which
// carries the control number the registry assigned.
func (c *Client) Post(ctx context.Context, record *Record) (*Record, error) {
	if c.cfg.ReadOnly {
		return nil, fmt.Errorf("cannot create noraf record in read-only mode")
	}
	payload, err := record.AsJSON()
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create noraf record: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read noraf create response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to create noraf record: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	created, err := ParseRecord(body)
	if err != nil {
		return nil, err
	}
	c.logger.Info("created noraf record", slog.String("record_id", created.ID()))
	return created, nil
}

func (c *Client) appendUpdateLog(id, reason string) error {
	if c.cfg.UpdateLogPath == "" {
		return nil
	}
	f, err := os.OpenFile(c.cfg.UpdateLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	line := fmt.Sprintf("%s run=%s record=%s reason=%s\n",
		time.Now().Format(time.RFC3339), c.cfg.RunID, id, reason)
	_, err = f.WriteString(line)
	return err
}

type searchPage struct {
	NumFound int               `json:"numFound"`
	Results  []json.RawMessage `json:"results"`
}

// SearchResults pages lazily through a REST query.
type SearchResults struct {
	client *Client
	query  string

	total   int
	fetched int
	buffer  []json.RawMessage
	started bool
}

// Search prepares a paged REST query. No request is made until Next.
func (c *Client) Search(query string) *SearchResults {
	return &SearchResults{client: c, query: query}
}

// Total returns the registry's hit count. Valid after the first Next call.
func (s *SearchResults) Total() int { return s.total }

// Next returns the next matching record. The second return value is false
// when the result set is exhausted.
func (s *SearchResults) Next(ctx context.Context) (*Record, bool, error) {
	for len(s.buffer) == 0 {
		if s.started && s.fetched >= s.total {
			return nil, false, nil
		}
		if err := s.fetchPage(ctx); err != nil {
			return nil, false, err
		}
		if len(s.buffer) == 0 {
			return nil, false, nil
		}
	}
	raw := s.buffer[0]
	s.buffer = s.buffer[1:]
	record, err := ParseRecord(raw)
	if err != nil {
		return nil, false, fmt.Errorf("noraf search %q: %w", s.query, err)
	}
	return record, true, nil
}

func (s *SearchResults) fetchPage(ctx context.Context) error {
	values := url.Values{}
	values.Set("q", s.query)
	values.Set("format", "json")
	values.Set("start", strconv.Itoa(s.fetched))
	values.Set("max", strconv.Itoa(searchPageSize))
	req, err := s.client.newRequest(ctx, http.MethodGet, s.client.cfg.BaseURL+"/query?"+values.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("noraf search %q: %w", s.query, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("noraf search %q: http %d: %s", s.query, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var page searchPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return fmt.Errorf("noraf search %q: failed to decode response: %w", s.query, err)
	}
	s.started = true
	s.total = page.NumFound
	s.fetched += len(page.Results)
	s.buffer = page.Results
	if len(page.Results) == 0 && s.fetched < s.total {
		// Defend against a registry that reports more hits than it pages out.
		s.total = s.fetched
	}
	return nil
}

// SRUSearch runs a CQL query against the SRU endpoint and returns summaries
// of the matching authority records.
func (c *Client) SRUSearch(ctx context.Context, cql string) ([]*Summary, error) {
	values := url.Values{}
	values.Set("operation", "searchRetrieve")
	values.Set("version", "1.2")
	values.Set("recordSchema", "marcxchange")
	values.Set("query", cql)
	req, err := c.newRequest(ctx, http.MethodGet, c.cfg.SRUURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("noraf sru search %q: %w", cql, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("noraf sru search %q: http %d: %s", cql, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	summaries, err := ParseXML(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("noraf sru search %q: %w", cql, err)
	}
	return summaries, nil
}

// FindByLocalID searches the SRU index for records claiming a link to the
// catalog record, used when repairing dead forward links.
func (c *Client) FindByLocalID(ctx context.Context, localID string) ([]*Summary, error) {
	return c.SRUSearch(ctx, fmt.Sprintf("bib.identifierAuthority=%s", localID))
}

// FindByName searches the SRU heading index of the kind, used as the last
// rediscovery step when a linked record is gone without replacement.
func (c *Client) FindByName(ctx context.Context, kind authority.Kind, name string) ([]*Summary, error) {
	var index string
	switch kind {
	case authority.KindPerson:
		index = "bib.namePersonal"
	case authority.KindCorporation:
		index = "bib.nameCorporate"
	case authority.KindConference:
		index = "bib.nameConference"
	default:
		return nil, fmt.Errorf("the registry has no heading index for %s authorities", kind)
	}
	return c.SRUSearch(ctx, fmt.Sprintf("%s=%q", index, name))
}
