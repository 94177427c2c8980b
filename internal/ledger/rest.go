package ledger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

// RESTClient implements Client against the ledger's HTTP API:
//
//	GET    /v0/{base}/{table}?filterByFormula=&pageSize=&offset=
//	POST   /v0/{base}/{table}   {"records":[{"fields":{}}],"typecast":true}
//	PATCH  /v0/{base}/{table}   {"records":[{"id":"","fields":{}}],"typecast":true}
//	DELETE /v0/{base}/{table}?records[]=id
type RESTClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Client = (*RESTClient)(nil)

// RESTConfig holds the connection settings for a RESTClient.
type RESTConfig struct {
	BaseURL string
	APIKey  string
	BaseID  string
	Table   string
	Timeout time.Duration
}

// NewRESTClient creates a client for one ledger table.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RESTClient{
		baseURL:    fmt.Sprintf("%s/v0/%s/%s", cfg.BaseURL, url.PathEscape(cfg.BaseID), url.PathEscape(cfg.Table)),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type recordsBody struct {
	Records  []Record `json:"records"`
	Typecast bool     `json:"typecast,omitempty"`
	Offset   string   `json:"offset,omitempty"`
}

// List fetches one page of records.
func (c *RESTClient) List(ctx context.Context, opts ListOptions) (*Page, error) {
	q := url.Values{}
	if opts.Formula != "" {
		q.Set("filterByFormula", opts.Formula)
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Offset != "" {
		q.Set("offset", opts.Offset)
	}

	var out recordsBody
	if err := c.do(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return &Page{Records: out.Records, Offset: out.Offset}, nil
}

// Create inserts new records and returns them with their assigned IDs.
func (c *RESTClient) Create(ctx context.Context, fields []Fields) ([]Record, error) {
	body := recordsBody{Typecast: true}
	for _, f := range fields {
		body.Records = append(body.Records, Record{Fields: f})
	}

	var out recordsBody
	if err := c.do(ctx, http.MethodPost, c.baseURL, body, &out); err != nil {
		return nil, fmt.Errorf("failed to create records: %w", err)
	}
	return out.Records, nil
}

// Update patches existing records. Fields absent from a record are left as is;
// nil values clear the field.
func (c *RESTClient) Update(ctx context.Context, records []Record) ([]Record, error) {
	body := recordsBody{Records: records, Typecast: true}

	var out recordsBody
	if err := c.do(ctx, http.MethodPatch, c.baseURL, body, &out); err != nil {
		return nil, fmt.Errorf("failed to update records: %w", err)
	}
	return out.Records, nil
}

// Delete removes records by ledger record ID.
func (c *RESTClient) Delete(ctx context.Context, recordIDs []string) error {
	q := url.Values{}
	for _, id := range recordIDs {
		q.Add("records[]", id)
	}
	if err := c.do(ctx, http.MethodDelete, c.baseURL+"?"+q.Encode(), nil, nil); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// APIError is a non-2xx response from the ledger.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger returned %d: %s", e.StatusCode, e.Body)
}

func (c *RESTClient) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
