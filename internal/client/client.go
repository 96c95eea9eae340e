// Package client talks to the proxy the way the storefront does: every call
// is one logical operation POSTed to /api/data, with the session riding in
// the pb_auth cookie. It also keeps the short-lived session cache and the
// auth-change subscriptions the admin UI hangs off.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"winzone/api/internal/authbus"
)

// SessionTTL bounds how long a cached session snapshot is trusted.
const SessionTTL = 5 * time.Second

// Session is the caller-visible auth state. The zero value is anonymous.
type Session struct {
	IsValid bool           `json:"isValid"`
	Model   map[string]any `json:"model"`
	Token   string         `json:"token"`
}

// Error is a non-2xx response from the proxy.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("proxy: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
	bus     *authbus.Bus

	cacheMu  sync.Mutex
	cacheTTL time.Duration
	cached   *Session
	cachedAt time.Time
}

// New returns a client bound to the proxy at baseURL. The cookie jar is what
// carries the session across calls, mirroring a browser.
func New(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Jar: jar},
		bus:      authbus.New(),
		cacheTTL: SessionTTL,
	}
}

// Detached returns a client with no proxy behind it. Every session query
// reports anonymous without a round trip; data operations fail. This is the
// stance of code running outside a session-bearing context, where each
// request authenticates fresh from its own cookie instead.
func Detached() *Client {
	return &Client{
		http:     &http.Client{},
		bus:      authbus.New(),
		cacheTTL: SessionTTL,
	}
}

// OnChange subscribes to auth-state changes and returns the unsubscribe
// function.
func (c *Client) OnChange(fn authbus.Handler) func() {
	return c.bus.Subscribe(fn)
}

// AuthStore returns the current session, served from the cache while it is
// younger than the TTL. Every failure is swallowed into the anonymous
// session; callers never see an error from a session read.
func (c *Client) AuthStore(ctx context.Context) Session {
	if c.baseURL == "" {
		return Session{}
	}

	c.cacheMu.Lock()
	if c.cached != nil && time.Since(c.cachedAt) < c.cacheTTL {
		cached := *c.cached
		c.cacheMu.Unlock()
		return cached
	}
	c.cacheMu.Unlock()

	return c.revalidate(ctx)
}

// Invalidate drops the cached session and revalidates in the background,
// publishing on the bus when the model identity changed.
func (c *Client) Invalidate(ctx context.Context) {
	c.cacheMu.Lock()
	var oldModelID string
	if c.cached != nil {
		oldModelID = modelID(c.cached.Model)
	}
	c.cacheMu.Unlock()
	c.dropCache()

	go func() {
		session := c.revalidate(ctx)
		if modelID(session.Model) != oldModelID {
			c.bus.Publish(session.Token, session.Model)
		}
	}()
}

// dropCache forgets the cached snapshot so the next read revalidates.
func (c *Client) dropCache() {
	c.cacheMu.Lock()
	c.cached = nil
	c.cachedAt = time.Time{}
	c.cacheMu.Unlock()
}

func (c *Client) revalidate(ctx context.Context) Session {
	var session Session
	if err := c.do(ctx, "getAuthStore", nil, &session); err != nil {
		session = Session{}
	}
	c.cacheMu.Lock()
	cached := session
	c.cached = &cached
	c.cachedAt = time.Now()
	c.cacheMu.Unlock()
	return session
}

// GetFullList returns every record of a collection matching the options.
func (c *Client) GetFullList(ctx context.Context, collection, filter, sort, expand string) ([]map[string]any, error) {
	params := map[string]any{"collection": collection}
	putNonEmpty(params, "filter", filter)
	putNonEmpty(params, "sort", sort)
	putNonEmpty(params, "expand", expand)
	var records []map[string]any
	if err := c.do(ctx, "getFullList", params, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) GetOne(ctx context.Context, collection, recordID string) (map[string]any, error) {
	var record map[string]any
	err := c.do(ctx, "getOne", map[string]any{"collection": collection, "recordId": recordID}, &record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (c *Client) Create(ctx context.Context, collection string, data map[string]any) (map[string]any, error) {
	var record map[string]any
	err := c.do(ctx, "create", map[string]any{"collection": collection, "data": data}, &record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (c *Client) Update(ctx context.Context, collection, recordID string, data map[string]any) (map[string]any, error) {
	var record map[string]any
	err := c.do(ctx, "update", map[string]any{"collection": collection, "recordId": recordID, "data": data}, &record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (c *Client) Delete(ctx context.Context, collection, recordID string) error {
	return c.do(ctx, "delete", map[string]any{"collection": collection, "recordId": recordID}, nil)
}

// AuthWithPassword authenticates against a collection, refreshes the session
// cache and notifies subscribers of the new model.
func (c *Client) AuthWithPassword(ctx context.Context, collection, email, password string) (map[string]any, error) {
	c.dropCache()
	var result map[string]any
	err := c.do(ctx, "authWithPassword", map[string]any{
		"collection": collection,
		"email":      email,
		"password":   password,
	}, &result)
	if err != nil {
		return nil, err
	}
	session := c.revalidate(ctx)
	if session.Model != nil {
		c.bus.Publish(session.Token, session.Model)
	}
	return result, nil
}

// AuthRefresh re-validates the current admin token.
func (c *Client) AuthRefresh(ctx context.Context) (map[string]any, error) {
	c.dropCache()
	var result map[string]any
	err := c.do(ctx, "authRefresh", map[string]any{"collection": "_superusers"}, &result)
	if err != nil {
		return nil, err
	}
	c.revalidate(ctx)
	return result, nil
}

// ClearAuth logs out, drops the cache and notifies subscribers with the nil
// pair. Clearing an already anonymous session is a no-op server side.
func (c *Client) ClearAuth(ctx context.Context) error {
	c.cacheMu.Lock()
	hadModel := c.cached != nil && c.cached.Model != nil
	c.cacheMu.Unlock()

	if err := c.do(ctx, "clearAuth", nil, nil); err != nil {
		return err
	}
	c.dropCache()
	if hadModel {
		c.bus.Publish("", nil)
	}
	return nil
}

func (c *Client) do(ctx context.Context, operation string, params map[string]any, out any) error {
	if c.baseURL == "" {
		return &Error{Status: 0, Message: "client is detached"}
	}

	body := map[string]any{"operation": operation}
	for key, value := range params {
		if value == nil {
			continue
		}
		body[key] = value
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/data", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call proxy: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := "API request failed"
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
			message = payload.Error
		}
		return &Error{Status: resp.StatusCode, Message: message}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func putNonEmpty(params map[string]any, key, value string) {
	if value != "" {
		params[key] = value
	}
}

func modelID(model map[string]any) string {
	if model == nil {
		return ""
	}
	id, _ := model["id"].(string)
	return id
}
