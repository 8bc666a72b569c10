// Package fusion talks to the datasheet records API that holds the tickets.
package fusion

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

	"github.com/apex/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"issueboard/internal/config"
	"issueboard/internal/domain"
)

var ErrMissingToken = errors.New("missing FUSION_TOKEN, please set it in your environment")

const maxConcurrentPages = 4

// UpstreamError reports an error envelope returned in place of a payload.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("datasheet request failed with status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("datasheet request unsuccessful: %s", e.Body)
}

type Client struct {
	baseURL     string
	token       string
	datasheetID string
	viewID      string
	fieldKey    string
	pageSize    int
	httpClient  *http.Client
}

func NewClient(cfg config.Config, httpClient *http.Client) (*Client, error) {
	if cfg.FusionToken == "" {
		return nil, ErrMissingToken
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	pageSize := cfg.FusionPageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.FusionBaseURL, "/"),
		token:       cfg.FusionToken,
		datasheetID: cfg.FusionDatasheetID,
		viewID:      cfg.FusionViewID,
		fieldKey:    cfg.FusionFieldKey,
		pageSize:    pageSize,
		httpClient:  httpClient,
	}, nil
}

func (c *Client) recordsPath() string {
	return "datasheets/" + c.datasheetID + "/records"
}

// ListRecords returns the raw list payload for the configured view.
func (c *Client) ListRecords(ctx context.Context) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("viewId", c.viewID)
	params.Set("fieldKey", c.fieldKey)
	return c.request(ctx, http.MethodGet, c.recordsPath(), params, nil)
}

// FetchAllRecords pages through the whole view. Page one decides how many
// pages remain; those are fetched concurrently and returned in page order.
func (c *Client) FetchAllRecords(ctx context.Context) ([]domain.RawRecord, error) {
	first, err := c.fetchPage(ctx, 1)
	if err != nil {
		return nil, err
	}
	total := int(gjson.GetBytes(first, "data.total").Int())
	records := ExtractRecords(first)
	pages := 1
	if total > c.pageSize {
		pages = (total + c.pageSize - 1) / c.pageSize
	}
	if pages == 1 {
		log.WithField("records", len(records)).Debug("fusion fetched single page")
		return records, nil
	}

	rest := make([][]domain.RawRecord, pages-1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPages)
	for page := 2; page <= pages; page++ {
		g.Go(func() error {
			payload, err := c.fetchPage(gctx, page)
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			rest[page-2] = ExtractRecords(payload)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, batch := range rest {
		records = append(records, batch...)
	}
	log.WithFields(log.Fields{"records": len(records), "pages": pages, "total": total}).Debug("fusion fetched all pages")
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("viewId", c.viewID)
	params.Set("fieldKey", c.fieldKey)
	params.Set("pageNum", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	payload, err := c.request(ctx, http.MethodGet, c.recordsPath(), params, nil)
	if err != nil {
		return nil, err
	}
	if ok := gjson.GetBytes(payload, "success"); ok.Exists() && !ok.Bool() {
		return nil, &UpstreamError{
			Status: int(gjson.GetBytes(payload, "status").Int()),
			Body:   string(payload),
		}
	}
	return payload, nil
}

// CreateRecord adds one record. fields must be a JSON object.
func (c *Client) CreateRecord(ctx context.Context, fields json.RawMessage) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("fieldKey", c.fieldKey)
	body := map[string]any{
		"records": []map[string]any{{"fields": fields}},
	}
	return c.request(ctx, http.MethodPost, c.recordsPath(), params, body)
}

func (c *Client) UpdateRecord(ctx context.Context, recordID string, fields json.RawMessage) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("fieldKey", c.fieldKey)
	body := map[string]any{
		"records": []map[string]any{{"recordId": recordID, "fields": fields}},
	}
	return c.request(ctx, http.MethodPatch, c.recordsPath(), params, body)
}

func (c *Client) DeleteRecord(ctx context.Context, recordID string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("recordIds", recordID)
	return c.request(ctx, http.MethodDelete, c.recordsPath(), params, nil)
}

// request performs one call. Non-2xx answers are folded into an envelope
// {"success":false,"status":<code>,"error":<body>} rather than an error;
// only transport and decoding failures return err.
func (c *Client) request(ctx context.Context, method, path string, params url.Values, payload any) (json.RawMessage, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.WithFields(log.Fields{"method": method, "status": resp.StatusCode}).Warn("fusion upstream error")
		return errorEnvelope(resp.StatusCode, raw)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%s %s: response is not JSON", method, path)
	}
	return json.RawMessage(raw), nil
}

func errorEnvelope(status int, body []byte) (json.RawMessage, error) {
	var parsed json.RawMessage
	switch {
	case len(bytes.TrimSpace(body)) == 0:
		parsed = json.RawMessage("{}")
	case json.Valid(body):
		parsed = json.RawMessage(body)
	default:
		msg, err := json.Marshal(map[string]string{"message": string(body)})
		if err != nil {
			return nil, err
		}
		parsed = msg
	}
	return json.Marshal(map[string]any{
		"success": false,
		"status":  status,
		"error":   parsed,
	})
}
