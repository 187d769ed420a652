// Package testutil provides testing utilities for the Atlassian clients.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is what the mock server saw for one request.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	Header http.Header
	Body   string
}

// MockServer is a configurable mock Bamboo / Bitbucket server for testing.
type MockServer struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockServer creates a new mock server.
func NewMockServer() *MockServer {
	mock := &MockServer{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.record(r)

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

func (m *MockServer) record(r *http.Request) {
	rec := RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	}

	switch r.Header.Get("Content-Type") {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err == nil {
			rec.Form = r.PostForm
		}
	case "application/json":
		var raw json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err == nil {
			rec.Body = string(raw)
		}
	}

	m.mu.Lock()
	m.requests = append(m.requests, rec)
	m.mu.Unlock()
}

// URL returns the mock server URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockServer) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockServer) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			_, _ = w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockServer) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Requests returns a copy of every recorded request.
func (m *MockServer) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestsFor returns the recorded requests for one path.
func (m *MockServer) RequestsFor(path string) []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RecordedRequest
	for _, r := range m.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// LastRequest returns the most recent request, or the zero value.
func (m *MockServer) LastRequest() RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return RecordedRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// defaultHandler answers like Bamboo does for unknown resources.
func (m *MockServer) defaultHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]any{
		"message":     "Resource not found: " + r.URL.Path,
		"status-code": http.StatusNotFound,
	})
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// queryInt reads an integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}

func window(total, start, size int) (int, int) {
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return start, end
}

// BambooCollection serves items the way Bamboo pages a collection:
// {"<collectionKey>": {"size", "max-result", "start-index", "<itemKey>": [...]}}.
// An empty collectionKey puts the paging fields at the top level.
func BambooCollection(collectionKey, itemKey string, items []any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := queryInt(r, "start-index", 0)
		size := queryInt(r, "max-result", 25)
		from, to := window(len(items), start, size)

		page := map[string]any{
			"size":        len(items),
			"max-result":  to - from,
			"start-index": start,
			itemKey:       items[from:to],
		}
		if collectionKey == "" {
			WriteJSON(w, http.StatusOK, page)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{collectionKey: page})
	}
}

// BitbucketPaged serves items the way Bitbucket Server pages a listing.
func BitbucketPaged(items []any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := queryInt(r, "start", 0)
		limit := queryInt(r, "limit", 25)
		from, to := window(len(items), start, limit)

		page := map[string]any{
			"size":       to - from,
			"limit":      limit,
			"start":      start,
			"isLastPage": to >= len(items),
			"values":     items[from:to],
		}
		if to < len(items) {
			page["nextPageStart"] = to
		}
		WriteJSON(w, http.StatusOK, page)
	}
}

// NewJSONResponse creates a response carrying a JSON body.
func NewJSONResponse(status int, body string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json;charset=UTF-8"},
	}
}

// NewHTMLResponse creates a 200 OK response carrying an HTML page.
func NewHTMLResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "text/html;charset=UTF-8"},
	}
}

// NewNotFoundResponse creates a Bamboo-style 404.
func NewNotFoundResponse() MockResponse {
	return NewJSONResponse(http.StatusNotFound, `{"message":"not found","status-code":404}`)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return NewJSONResponse(http.StatusInternalServerError, `{"message":"Internal server error","status-code":500}`)
}

// NewRateLimitResponse creates a Bitbucket-style 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	resp := NewJSONResponse(http.StatusTooManyRequests, `{"errors":[{"message":"Rate limit exceeded"}]}`)
	resp.Headers["Retry-After"] = "30"
	return resp
}
