// Package pbclient is a thin HTTP client for the PocketBase-compatible data
// service that backs the proxy: record CRUD, password auth, token refresh,
// collection metadata and file uploads. One Client is created per inbound
// request so that auth state never leaks across requests.
package pbclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
)

const fullListBatchSize = 500

type Client struct {
	baseURL string
	http    *http.Client
	Auth    *AuthStore
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		Auth:    &AuthStore{},
	}
}

// ListResult is the data service's paginated list payload.
type ListResult struct {
	Page       int              `json:"page"`
	PerPage    int              `json:"perPage"`
	TotalItems int              `json:"totalItems"`
	TotalPages int              `json:"totalPages"`
	Items      []map[string]any `json:"items"`
}

type ListOptions struct {
	Filter string
	Sort   string
	Expand string
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Filter != "" {
		q.Set("filter", o.Filter)
	}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	if o.Expand != "" {
		q.Set("expand", o.Expand)
	}
	return q
}

func (c *Client) GetList(ctx context.Context, collection string, page, perPage int, opts ListOptions) (ListResult, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 30
	}
	q := opts.query()
	q.Set("page", strconv.Itoa(page))
	q.Set("perPage", strconv.Itoa(perPage))

	var result ListResult
	err := c.send(ctx, http.MethodGet, recordsPath(collection), q, nil, &result)
	if err != nil {
		return ListResult{}, err
	}
	return result, nil
}

// GetFullList pages through the collection until exhausted and returns every
// matching record.
func (c *Client) GetFullList(ctx context.Context, collection string, opts ListOptions) ([]map[string]any, error) {
	items := []map[string]any{}
	for page := 1; ; page++ {
		result, err := c.GetList(ctx, collection, page, fullListBatchSize, opts)
		if err != nil {
			return nil, err
		}
		items = append(items, result.Items...)
		if len(result.Items) < fullListBatchSize || page >= result.TotalPages {
			return items, nil
		}
	}
}

func (c *Client) GetOne(ctx context.Context, collection, recordID, expand string) (map[string]any, error) {
	q := url.Values{}
	if expand != "" {
		q.Set("expand", expand)
	}
	var record map[string]any
	if err := c.send(ctx, http.MethodGet, recordsPath(collection)+"/"+url.PathEscape(recordID), q, nil, &record); err != nil {
		return nil, err
	}
	return record, nil
}

func (c *Client) Create(ctx context.Context, collection string, data map[string]any) (map[string]any, error) {
	var record map[string]any
	if err := c.send(ctx, http.MethodPost, recordsPath(collection), nil, data, &record); err != nil {
		return nil, err
	}
	return record, nil
}

func (c *Client) Update(ctx context.Context, collection, recordID string, data map[string]any) (map[string]any, error) {
	var record map[string]any
	if err := c.send(ctx, http.MethodPatch, recordsPath(collection)+"/"+url.PathEscape(recordID), nil, data, &record); err != nil {
		return nil, err
	}
	return record, nil
}

func (c *Client) Delete(ctx context.Context, collection, recordID string) error {
	return c.send(ctx, http.MethodDelete, recordsPath(collection)+"/"+url.PathEscape(recordID), nil, nil, nil)
}

// Health pings the data service's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.send(ctx, http.MethodGet, "/api/health", nil, nil, nil)
}

// FileUpload describes one multipart file part.
type FileUpload struct {
	Field       string
	Name        string
	ContentType string
	Reader      io.Reader
}

// CreateWithFile creates a record with a file attached plus any extra plain
// form fields.
func (c *Client) CreateWithFile(ctx context.Context, collection string, fields map[string]string, file FileUpload) (map[string]any, error) {
	return c.sendMultipart(ctx, http.MethodPost, recordsPath(collection), fields, file)
}

// UpdateWithFile replaces the file field on an existing record.
func (c *Client) UpdateWithFile(ctx context.Context, collection, recordID string, file FileUpload) (map[string]any, error) {
	return c.sendMultipart(ctx, http.MethodPatch, recordsPath(collection)+"/"+url.PathEscape(recordID), nil, file)
}

func (c *Client) sendMultipart(ctx context.Context, method, path string, fields map[string]string, file FileUpload) (map[string]any, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", key, err)
		}
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Name))
	if file.ContentType != "" {
		header.Set("Content-Type", file.ContentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file.Reader); err != nil {
		return nil, fmt.Errorf("copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.Auth.Token() != "" {
		req.Header.Set("Authorization", c.Auth.Token())
	}

	var record map[string]any
	if err := c.doJSON(req, &record); err != nil {
		return nil, err
	}
	return record, nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Auth.Token() != "" {
		req.Header.Set("Authorization", c.Auth.Token())
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Status: http.StatusServiceUnavailable, Message: fmt.Sprintf("data service unreachable: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Status: http.StatusServiceUnavailable, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}
	var payload struct {
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			apiErr.Message = payload.Message
		}
		apiErr.Data = payload.Data
	}
	return apiErr
}

func recordsPath(collection string) string {
	return "/api/collections/" + url.PathEscape(collection) + "/records"
}
