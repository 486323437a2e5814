package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupStaticFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>chat</html>"), 0o644))

	router := gin.New()
	setupStaticFiles(router, dir, zerolog.Nop())

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{"index", "/", http.StatusOK, "chat"},
		{"client route falls back to index", "/listings/42", http.StatusOK, "chat"},
		{"unknown api path", "/api/v1/nope", http.StatusNotFound, "API endpoint not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestSetupStaticFilesWithoutFrontend(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	setupStaticFiles(router, filepath.Join(t.TempDir(), "missing"), zerolog.Nop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
