package app

import (
	"context"
	"net/http"

	"winzone/api/internal/collcache"
	"winzone/api/internal/config"
	"winzone/api/internal/pbclient"
)

// The operation names are the wire contract the storefront speaks; they
// follow the data-service SDK's method names.
const (
	OpGetFullList      = "getFullList"
	OpGetOne           = "getOne"
	OpGetList          = "getList"
	OpCreate           = "create"
	OpUpdate           = "update"
	OpDelete           = "delete"
	OpAuthWithPassword = "authWithPassword"
	OpAuthRefresh      = "authRefresh"
	OpGetAuthStore     = "getAuthStore"
	OpClearAuth        = "clearAuth"
)

// Request is one logical operation against the data service.
type Request struct {
	Operation  string         `json:"operation"`
	Collection string         `json:"collection"`
	RecordID   string         `json:"recordId"`
	Data       map[string]any `json:"data"`
	Filter     string         `json:"filter"`
	Sort       string         `json:"sort"`
	Expand     string         `json:"expand"`
	Page       int            `json:"page"`
	PerPage    int            `json:"perPage"`
	Email      string         `json:"email"`
	Identity   string         `json:"identity"`
	Password   string         `json:"password"`
}

func (r Request) identity() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Identity
}

type Service struct {
	cfg   config.Config
	colls *collcache.Cache

	// newClient is swappable in tests.
	newClient func() *pbclient.Client
}

func New(cfg config.Config, colls *collcache.Cache) *Service {
	return &Service{
		cfg:   cfg,
		colls: colls,
		newClient: func() *pbclient.Client {
			return pbclient.New(cfg.DataServiceURL)
		},
	}
}

// NewClient returns a fresh data-service client for one inbound request.
func (s *Service) NewClient() *pbclient.Client {
	return s.newClient()
}

// Ping checks data-service reachability for the readiness endpoint.
func (s *Service) Ping(ctx context.Context) error {
	return s.newClient().Health(ctx)
}

// Dispatch performs one logical operation with the given per-request client.
// The client carries the caller's session; any auth mutation the operation
// causes is left on the client for the HTTP layer to serialize back into the
// response cookie.
func (s *Service) Dispatch(ctx context.Context, client *pbclient.Client, req Request) (any, error) {
	switch req.Operation {
	case OpGetFullList:
		if err := requireCollection(req); err != nil {
			return nil, err
		}
		return client.GetFullList(ctx, req.Collection, listOptions(req))

	case OpGetOne:
		if err := requireCollection(req); err != nil {
			return nil, err
		}
		if err := requireRecordID(req); err != nil {
			return nil, err
		}
		return client.GetOne(ctx, req.Collection, req.RecordID, req.Expand)

	case OpGetList:
		if err := requireCollection(req); err != nil {
			return nil, err
		}
		return client.GetList(ctx, req.Collection, req.Page, req.PerPage, listOptions(req))

	case OpCreate:
		if err := requireCollection(req); err != nil {
			return nil, err
		}
		return client.Create(ctx, req.Collection, req.Data)

	case OpUpdate:
		if err := requireCollection(req); err != nil {
			return nil, err
		}
		if err := requireRecordID(req); err != nil {
			return nil, err
		}
		return client.Update(ctx, req.Collection, req.RecordID, req.Data)

	case OpDelete:
		if err := requireCollection(req); err != nil {
			return nil, err
		}
		if err := requireRecordID(req); err != nil {
			return nil, err
		}
		if err := client.Delete(ctx, req.Collection, req.RecordID); err != nil {
			return nil, err
		}
		return map[string]any{"success": true}, nil

	case OpAuthWithPassword:
		var result pbclient.AuthResult
		var err error
		if isSuperuser(req.Collection) {
			result, err = client.AuthSuperuserWithPassword(ctx, req.identity(), req.Password)
		} else {
			result, err = client.AuthWithPassword(ctx, req.Collection, req.identity(), req.Password)
		}
		if err != nil {
			return nil, authFailure(err)
		}
		return authPayload(result), nil

	case OpAuthRefresh:
		var result pbclient.AuthResult
		var err error
		if isSuperuser(req.Collection) {
			result, err = client.AuthSuperuserRefresh(ctx)
		} else {
			result, err = client.AuthRefresh(ctx, req.Collection)
		}
		if err != nil {
			return nil, authFailure(err)
		}
		return authPayload(result), nil

	case OpGetAuthStore:
		return map[string]any{
			"isValid": client.Auth.IsValid(),
			"model":   client.Auth.Record(),
			"token":   client.Auth.Token(),
		}, nil

	case OpClearAuth:
		client.Auth.Clear()
		return map[string]any{"success": true}, nil

	default:
		return nil, domainError(http.StatusNotFound, "UNKNOWN_OPERATION", "Unknown operation: "+req.Operation, nil)
	}
}

// authFailure normalizes credential rejections to 401. The data service
// answers a failed password grant with 400, but callers distinguish the
// taxonomy by status code and invalid credentials are Unauthorized.
func authFailure(err error) error {
	apiErr, ok := pbclient.AsAPIError(err)
	if !ok {
		return err
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		var details any
		if len(apiErr.Data) > 0 {
			details = apiErr.Data
		}
		return domainError(http.StatusUnauthorized, "UNAUTHORIZED", apiErr.Message, details)
	default:
		return err
	}
}

func isSuperuser(collection string) bool {
	return collection == pbclient.SuperusersCollection || collection == ""
}

func listOptions(req Request) pbclient.ListOptions {
	return pbclient.ListOptions{Filter: req.Filter, Sort: req.Sort, Expand: req.Expand}
}

func authPayload(result pbclient.AuthResult) map[string]any {
	return map[string]any{
		"token":  result.Token,
		"record": result.Record,
	}
}

func requireCollection(req Request) error {
	if req.Collection == "" {
		return domainError(http.StatusBadRequest, "BAD_REQUEST", "Missing required field: collection", nil)
	}
	return nil
}

func requireRecordID(req Request) error {
	if req.RecordID == "" {
		return domainError(http.StatusBadRequest, "BAD_REQUEST", "Missing required field: recordId", nil)
	}
	return nil
}
