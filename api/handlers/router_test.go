package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Avexra-AI/SAS-Chatbot/api/handlers"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, srv http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestSchema(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeRunner{}, nil, nil)
	rec := get(t, srv, "/api/schema")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.SchemaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	metrics := map[string]string{}
	for _, m := range resp.Metrics {
		metrics[m.Name] = m.Model
	}
	require.Equal(t, "sales", metrics["total_sales_amount"])
	require.Contains(t, metrics, "net_stock_movement")

	dims := map[string]string{}
	for _, d := range resp.Dimensions {
		dims[d.Name] = d.Model
	}
	require.Equal(t, "customers", dims["customer"])
	require.NotEmpty(t, resp.Models)
	require.Len(t, resp.Relationships, 4)
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeRunner{}, nil, handlers.PingFunc(func(context.Context) error { return nil }))
	require.Equal(t, http.StatusOK, get(t, srv, "/healthz").Code)
	require.Equal(t, http.StatusOK, get(t, srv, "/readyz").Code)

	down, _ := newTestServer(t, &fakeRunner{}, nil, handlers.PingFunc(func(context.Context) error { return errors.New("connection refused") }))
	require.Equal(t, http.StatusOK, get(t, down, "/healthz").Code)
	rec := get(t, down, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "database unreachable")
}

func TestVersion(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeRunner{}, nil, nil)
	rec := get(t, srv, "/version")
	require.Equal(t, http.StatusOK, rec.Code)

	var v handlers.VersionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	require.Equal(t, handlers.VersionInfo{Version: "1.2.3", Commit: "abc123", Date: "2026-01-01"}, v)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeRunner{}, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/schema", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := handlers.New(handlers.Config{})
	require.ErrorContains(t, err, "logger is required")
}
