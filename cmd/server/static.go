package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// setupStaticFiles serves the chat page from dir. API paths never fall through to it.
func setupStaticFiles(router *gin.Engine, dir string, log zerolog.Logger) {
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		log.Warn().Str("dir", dir).Msg("No static frontend found, serving API only")
		router.NoRoute(notFound)
		return
	}

	log.Info().Str("dir", dir).Msg("Serving static frontend")
	router.Static("/static", dir)
	router.StaticFile("/", index)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") || c.Request.Method != http.MethodGet {
			notFound(c)
			return
		}
		c.File(index)
	})
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
}
