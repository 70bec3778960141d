// Package airtable implements recordstore.Base over the hosted tabular REST
// API (v0).  Tables are addressed by name or by table id; filters are
// rendered to the API's formula language.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/partner-portal/internal/recordstore"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.airtable.com/v0"

// maxCreateBatch is the server-side limit of records per create call.
const maxCreateBatch = 10

// Client talks to one base.
type Client struct {
	apiKey     string
	baseID     string
	baseURL    string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New returns a client for baseID.
func New(apiKey, baseID string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("airtable: api key is empty")
	}
	if baseID == "" {
		return nil, errors.New("airtable: base id is empty")
	}
	c := &Client{
		apiKey:  apiKey,
		baseID:  baseID,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Factory returns a recordstore.Factory creating one Client per base id.
func Factory(apiKey string, opts ...Option) recordstore.Factory {
	return func(baseID string) (recordstore.Base, error) { return New(apiKey, baseID, opts...) }
}

// Table implements recordstore.Base.
func (c *Client) Table(name string) recordstore.Table { return &table{c: c, name: name} }

type table struct {
	c    *Client
	name string
}

type apiRecord struct {
	ID          string             `json:"id"`
	CreatedTime string             `json:"createdTime,omitempty"`
	Fields      recordstore.Fields `json:"fields"`
}

func (r apiRecord) toRecord() recordstore.Record {
	rec := recordstore.Record{ID: r.ID, Fields: r.Fields}
	if rec.Fields == nil {
		rec.Fields = recordstore.Fields{}
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedTime); err == nil {
		rec.CreatedTime = t
	}
	return rec
}

type listResponse struct {
	Records []apiRecord `json:"records"`
	Offset  string      `json:"offset"`
}

func (t *table) tableURL() string {
	return fmt.Sprintf("%s/%s/%s", t.c.baseURL, url.PathEscape(t.c.baseID), url.PathEscape(t.name))
}

// Select follows the offset cursor until every page (or MaxRecords rows)
// has been read.
func (t *table) Select(ctx context.Context, q recordstore.Query) ([]recordstore.Record, error) {
	params := url.Values{}
	if q.Filter != nil {
		params.Set("filterByFormula", Formula(q.Filter))
	}
	if q.MaxRecords > 0 {
		params.Set("maxRecords", strconv.Itoa(q.MaxRecords))
	}
	for i, s := range q.Sort {
		params.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
		dir := "asc"
		if s.Desc {
			dir = "desc"
		}
		params.Set(fmt.Sprintf("sort[%d][direction]", i), dir)
	}
	params.Set("pageSize", "100")

	var out []recordstore.Record
	for {
		var page listResponse
		if err := t.c.do(ctx, http.MethodGet, t.tableURL()+"?"+params.Encode(), nil, &page); err != nil {
			return nil, fmt.Errorf("airtable select %s: %w", t.name, err)
		}
		for _, r := range page.Records {
			out = append(out, r.toRecord())
		}
		if page.Offset == "" || (q.MaxRecords > 0 && len(out) >= q.MaxRecords) {
			break
		}
		params.Set("offset", page.Offset)
	}
	if q.MaxRecords > 0 && len(out) > q.MaxRecords {
		out = out[:q.MaxRecords]
	}
	return out, nil
}

func (t *table) Find(ctx context.Context, id string) (recordstore.Record, error) {
	var r apiRecord
	if err := t.c.do(ctx, http.MethodGet, t.tableURL()+"/"+url.PathEscape(id), nil, &r); err != nil {
		return recordstore.Record{}, fmt.Errorf("airtable find %s/%s: %w", t.name, id, err)
	}
	return r.toRecord(), nil
}

// Create sends rows in batches of ten with typecast enabled so that select
// options and linked records are resolved from their text values.
func (t *table) Create(ctx context.Context, rows ...recordstore.Fields) ([]recordstore.Record, error) {
	out := make([]recordstore.Record, 0, len(rows))
	for start := 0; start < len(rows); start += maxCreateBatch {
		end := min(start+maxCreateBatch, len(rows))
		payload := struct {
			Records  []apiRecord `json:"records"`
			Typecast bool        `json:"typecast"`
		}{Typecast: true}
		for _, f := range rows[start:end] {
			payload.Records = append(payload.Records, apiRecord{Fields: f})
		}
		var resp listResponse
		if err := t.c.do(ctx, http.MethodPost, t.tableURL(), payload, &resp); err != nil {
			return out, fmt.Errorf("airtable create %s: %w", t.name, err)
		}
		for _, r := range resp.Records {
			out = append(out, r.toRecord())
		}
	}
	return out, nil
}

func (t *table) Update(ctx context.Context, id string, fields recordstore.Fields) (recordstore.Record, error) {
	payload := struct {
		Fields   recordstore.Fields `json:"fields"`
		Typecast bool               `json:"typecast"`
	}{Fields: fields, Typecast: true}
	var r apiRecord
	if err := t.c.do(ctx, http.MethodPatch, t.tableURL()+"/"+url.PathEscape(id), payload, &r); err != nil {
		return recordstore.Record{}, fmt.Errorf("airtable update %s/%s: %w", t.name, id, err)
	}
	return r.toRecord(), nil
}

func (c *Client) do(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
