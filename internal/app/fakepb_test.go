package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"winzone/api/internal/collcache"
	"winzone/api/internal/config"
)

// testToken mints a signed JWT the way the data service does. The proxy only
// reads the exp claim, so the secret is irrelevant.
func testToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "admin-1",
		"exp": time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return signed
}

// fakePB is an in-memory stand-in for the data service.
type fakePB struct {
	t *testing.T

	adminEmail    string
	adminPassword string
	adminToken    string
	// adminsGone simulates a data-service version without the dedicated
	// admin endpoints; only the superusers collection authenticates.
	adminsGone bool

	mu          sync.Mutex
	calls       []string
	records     map[string]map[string]map[string]any
	nextID      int
	collections map[string]string
}

func newFakePB(t *testing.T) (*fakePB, *httptest.Server) {
	pb := &fakePB{
		t:             t,
		adminEmail:    "admin@winzone.test",
		adminPassword: "super-secret",
		adminToken:    testToken(t, time.Hour),
		records:       map[string]map[string]map[string]any{},
		collections: map[string]string{
			"draws":       "col_draws01",
			"products":    "col_products",
			"submissions": "col_subs0001",
			"ebooks":      "col_ebooks01",
			"uploads":     "col_uploads1",
			"_superusers": "col_superusr",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		pb.record(r)
		pb.writeJSON(w, http.StatusOK, map[string]any{"code": 200, "message": "API is healthy."})
	})
	mux.HandleFunc("POST /api/admins/auth-with-password", func(w http.ResponseWriter, r *http.Request) {
		pb.record(r)
		if pb.adminsGone {
			pb.writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not found."})
			return
		}
		pb.handleAdminAuth(w, r)
	})
	mux.HandleFunc("POST /api/admins/auth-refresh", func(w http.ResponseWriter, r *http.Request) {
		pb.record(r)
		if pb.adminsGone {
			pb.writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not found."})
			return
		}
		pb.handleRefresh(w, r)
	})
	mux.HandleFunc("POST /api/collections/{name}/auth-with-password", func(w http.ResponseWriter, r *http.Request) {
		pb.record(r)
		if r.PathValue("name") != "_superusers" {
			pb.writeJSON(w, http.StatusNotFound, map[string]any{"message": "Missing collection context."})
			return
		}
		pb.handleAdminAuth(w, r)
	})
	mux.HandleFunc("POST /api/collections/{name}/auth-refresh", func(w http.ResponseWriter, r *http.Request) {
		pb.record(r)
		pb.handleRefresh(w, r)
	})
	mux.HandleFunc("GET /api/collections/{name}/records", func(w http.ResponseWriter, r *http.Request) {
		pb.record(r)
		pb.handleList(w, r)
	})
	mux.HandleFunc("POST /api/collections/{name}/records", func(w http.ResponseWriter, r *http.Request) {
		pb.record(r)
		pb.handleCreate(w, r)
	})
	mux.HandleFunc("GET /api/collections/{name}/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		pb.record(r)
		pb.handleGetOne(w, r)
	})
	mux.HandleFunc("PATCH /api/collections/{name}/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		pb.record(r)
		pb.handleUpdate(w, r)
	})
	mux.HandleFunc("DELETE /api/collections/{name}/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		pb.record(r)
		pb.handleDelete(w, r)
	})
	mux.HandleFunc("GET /api/collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		pb.record(r)
		name := r.PathValue("name")
		if !pb.authorized(r) {
			pb.writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "The request requires valid admin authorization token."})
			return
		}
		id, ok := pb.collections[name]
		if !ok {
			pb.writeJSON(w, http.StatusNotFound, map[string]any{"message": "Missing collection context."})
			return
		}
		pb.writeJSON(w, http.StatusOK, map[string]any{"id": id, "name": name})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return pb, server
}

func (f *fakePB) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
}

func (f *fakePB) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakePB) callsMatching(fragment string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []string
	for _, call := range f.calls {
		if strings.Contains(call, fragment) {
			matched = append(matched, call)
		}
	}
	return matched
}

func (f *fakePB) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == f.adminToken
}

func (f *fakePB) seed(collection string, record map[string]any) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("rec%06d", f.nextID)
	record["id"] = id
	if f.records[collection] == nil {
		f.records[collection] = map[string]map[string]any{}
	}
	f.records[collection][id] = record
	return id
}

func (f *fakePB) handleAdminAuth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Identity != f.adminEmail || body.Password != f.adminPassword {
		f.writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Failed to authenticate.",
			"data":    map[string]any{},
		})
		return
	}
	f.writeJSON(w, http.StatusOK, map[string]any{
		"token": f.adminToken,
		"admin": map[string]any{"id": "admin-1", "email": f.adminEmail},
	})
}

func (f *fakePB) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		f.writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "The request requires valid authorization token."})
		return
	}
	f.writeJSON(w, http.StatusOK, map[string]any{
		"token":  f.adminToken,
		"record": map[string]any{"id": "admin-1", "email": f.adminEmail},
	})
}

func (f *fakePB) handleList(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("name")
	f.mu.Lock()
	items := make([]map[string]any, 0, len(f.records[collection]))
	for _, record := range f.records[collection] {
		items = append(items, record)
	}
	f.mu.Unlock()
	f.writeJSON(w, http.StatusOK, map[string]any{
		"page":       1,
		"perPage":    len(items),
		"totalItems": len(items),
		"totalPages": 1,
		"items":      items,
	})
}

func (f *fakePB) handleCreate(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("name")
	if _, ok := f.collections[collection]; !ok {
		f.writeJSON(w, http.StatusNotFound, map[string]any{"message": "Missing collection context."})
		return
	}

	record := map[string]any{}
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			f.writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid form."})
			return
		}
		for key, values := range r.MultipartForm.Value {
			record[key] = values[0]
		}
		for field, files := range r.MultipartForm.File {
			// The data service renames stored files with a random suffix.
			record[field] = storedFilename(files[0].Filename)
		}
	} else {
		_ = json.NewDecoder(r.Body).Decode(&record)
	}

	// Schema default mirrored from the draws collection.
	if collection == "draws" {
		if status, _ := record["status"].(string); status == "" {
			record["status"] = "draft"
		}
	}

	id := f.seed(collection, record)
	record["id"] = id
	f.writeJSON(w, http.StatusOK, record)
}

func (f *fakePB) handleGetOne(w http.ResponseWriter, r *http.Request) {
	collection, id := r.PathValue("name"), r.PathValue("id")
	f.mu.Lock()
	record, ok := f.records[collection][id]
	f.mu.Unlock()
	if !ok {
		f.writeJSON(w, http.StatusNotFound, map[string]any{"message": "The requested resource wasn't found."})
		return
	}
	f.writeJSON(w, http.StatusOK, record)
}

func (f *fakePB) handleUpdate(w http.ResponseWriter, r *http.Request) {
	collection, id := r.PathValue("name"), r.PathValue("id")
	f.mu.Lock()
	record, ok := f.records[collection][id]
	f.mu.Unlock()
	if !ok {
		f.writeJSON(w, http.StatusNotFound, map[string]any{"message": "The requested resource wasn't found."})
		return
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			f.writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid form."})
			return
		}
		f.mu.Lock()
		for field, files := range r.MultipartForm.File {
			record[field] = storedFilename(files[0].Filename)
		}
		f.mu.Unlock()
	} else {
		data := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&data)
		f.mu.Lock()
		for key, value := range data {
			record[key] = value
		}
		f.mu.Unlock()
	}
	f.writeJSON(w, http.StatusOK, record)
}

func (f *fakePB) handleDelete(w http.ResponseWriter, r *http.Request) {
	collection, id := r.PathValue("name"), r.PathValue("id")
	f.mu.Lock()
	_, ok := f.records[collection][id]
	if ok {
		delete(f.records[collection], id)
	}
	f.mu.Unlock()
	if !ok {
		f.writeJSON(w, http.StatusNotFound, map[string]any{"message": "The requested resource wasn't found."})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakePB) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func storedFilename(original string) string {
	base := original
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		return base[:i] + "_x7f3kq" + base[i:]
	}
	return base + "_x7f3kq"
}

func newTestService(t *testing.T, pb *fakePB, serverURL string) *Service {
	t.Helper()
	colls, err := collcache.New("")
	if err != nil {
		t.Fatalf("collcache: %v", err)
	}
	cfg := config.Config{
		DataServiceURL: serverURL,
		FileDomain:     "https://files.winzone.example",
		AdminEmail:     pb.adminEmail,
		AdminPassword:  pb.adminPassword,
		Env:            "development",
		MaxImageBytes:  10 << 20,
		MaxPDFBytes:    50 << 20,
	}
	return New(cfg, colls)
}
