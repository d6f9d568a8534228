package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/coscribe/coscribe/server/internal/document/service"
)

func newTestRouter() (*gin.Engine, service.Service) {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	svc := service.NewMemoryService()
	RegisterDocumentRoutes(g, svc)
	return g, svc
}

func TestGetDocumentNotFound(t *testing.T) {
	g, _ := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents/missing", nil)
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveThenGet(t *testing.T) {
	g, _ := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/documents/d1",
		strings.NewReader(`{"content":{"text":"hello"},"editorId":"alice"}`))
	req.Header.Set("Content-Type", "application/json")
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var saved map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	require.Equal(t, "d1", saved["id"])
	// blind saves never bump the version
	require.EqualValues(t, 0, saved["version"])

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/documents/d1", nil)
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, map[string]interface{}{"text": "hello"}, got["content"])
	require.Equal(t, []interface{}{"alice"}, got["lastEditors"])
}

func TestSaveLastWriterWins(t *testing.T) {
	g, _ := newTestRouter()

	for _, body := range []string{
		`{"content":{"text":"first"}}`,
		`{"content":{"text":"second"}}`,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/documents/d1", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		g.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents/d1", nil)
	g.ServeHTTP(w, req)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, map[string]interface{}{"text": "second"}, got["content"])
}

func TestSaveRejectsMissingContent(t *testing.T) {
	g, _ := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/documents/d1", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
