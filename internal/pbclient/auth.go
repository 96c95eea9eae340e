package pbclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// SuperusersCollection is the collection the data service keeps its
// administrators in.
const SuperusersCollection = "_superusers"

// AuthResult is the payload of a successful authentication or refresh.
type AuthResult struct {
	Token  string
	Record map[string]any
}

// AuthWithPassword authenticates against a regular collection's password
// endpoint. On success the client's auth store is replaced.
func (c *Client) AuthWithPassword(ctx context.Context, collection, identity, password string) (AuthResult, error) {
	return c.authCall(ctx, "/api/collections/"+collection+"/auth-with-password", map[string]any{
		"identity": identity,
		"password": password,
	})
}

// AuthAdminWithPassword authenticates against the dedicated administrator
// endpoint that older data-service versions expose.
func (c *Client) AuthAdminWithPassword(ctx context.Context, identity, password string) (AuthResult, error) {
	return c.authCall(ctx, "/api/admins/auth-with-password", map[string]any{
		"identity": identity,
		"password": password,
	})
}

// AuthRefresh re-validates the current token against a collection's refresh
// endpoint and stores the refreshed pair.
func (c *Client) AuthRefresh(ctx context.Context, collection string) (AuthResult, error) {
	return c.authCall(ctx, "/api/collections/"+collection+"/auth-refresh", nil)
}

// AuthAdminRefresh re-validates the current token against the administrator
// refresh endpoint.
func (c *Client) AuthAdminRefresh(ctx context.Context) (AuthResult, error) {
	return c.authCall(ctx, "/api/admins/auth-refresh", nil)
}

// authStrategy is one entry in an ordered authentication chain.
type authStrategy struct {
	name string
	run  func(ctx context.Context) (AuthResult, error)
}

// AuthSuperuserWithPassword authenticates an administrator, trying the
// dedicated admin endpoint first and falling back to the superusers
// collection endpoint. Data-service versions differ on which one exists; the
// first success wins and all failures are joined so the chain is visible in
// the error, with the admin endpoint's error first so it is what callers
// unwrap.
func (c *Client) AuthSuperuserWithPassword(ctx context.Context, identity, password string) (AuthResult, error) {
	strategies := []authStrategy{
		{
			name: "admins endpoint",
			run: func(ctx context.Context) (AuthResult, error) {
				return c.AuthAdminWithPassword(ctx, identity, password)
			},
		},
		{
			name: "superusers collection",
			run: func(ctx context.Context) (AuthResult, error) {
				return c.AuthWithPassword(ctx, SuperusersCollection, identity, password)
			},
		},
	}
	return c.runAuthChain(ctx, strategies)
}

// AuthSuperuserRefresh refreshes an administrator token with the same
// endpoint fallback order as AuthSuperuserWithPassword.
func (c *Client) AuthSuperuserRefresh(ctx context.Context) (AuthResult, error) {
	strategies := []authStrategy{
		{
			name: "admins endpoint",
			run:  c.AuthAdminRefresh,
		},
		{
			name: "superusers collection",
			run: func(ctx context.Context) (AuthResult, error) {
				return c.AuthRefresh(ctx, SuperusersCollection)
			},
		},
	}
	return c.runAuthChain(ctx, strategies)
}

func (c *Client) runAuthChain(ctx context.Context, strategies []authStrategy) (AuthResult, error) {
	failures := make([]error, 0, len(strategies))
	for _, strategy := range strategies {
		result, err := strategy.run(ctx)
		if err == nil {
			return result, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", strategy.name, err))
	}
	return AuthResult{}, errors.Join(orderFailures(failures)...)
}

// orderFailures moves failures from endpoints that actually exist ahead of
// 404s, so the error callers unwrap is a real authentication outcome rather
// than a missing endpoint on this data-service version.
func orderFailures(failures []error) []error {
	ordered := make([]error, 0, len(failures))
	var missing []error
	for _, err := range failures {
		if IsStatus(err, http.StatusNotFound) {
			missing = append(missing, err)
			continue
		}
		ordered = append(ordered, err)
	}
	return append(ordered, missing...)
}

func (c *Client) authCall(ctx context.Context, path string, body map[string]any) (AuthResult, error) {
	var payload struct {
		Token  string         `json:"token"`
		Record map[string]any `json:"record"`
		Admin  map[string]any `json:"admin"`
	}
	if err := c.send(ctx, http.MethodPost, path, nil, body, &payload); err != nil {
		return AuthResult{}, err
	}
	record := payload.Record
	if record == nil {
		record = payload.Admin
	}
	result := AuthResult{Token: payload.Token, Record: record}
	c.Auth.Save(result.Token, result.Record)
	return result, nil
}
