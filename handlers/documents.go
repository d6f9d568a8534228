package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coscribe/coscribe/server/internal/document"
	"github.com/coscribe/coscribe/server/internal/document/service"
)

// RegisterDocumentRoutes registers the REST surface next to the realtime
// endpoint: a read-only fetch and the fire-and-forget save path.
func RegisterDocumentRoutes(r *gin.Engine, svc service.Service) {
	r.GET("/api/documents/:id", GetDocument(svc))
	r.PATCH("/api/documents/:id", SaveDocument(svc))
}

// GetDocument returns the stored record including content, version and the
// recent editor list.
func GetDocument(svc service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		d, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, document.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load document"})
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// SaveDocument is the unconditional save: it upserts the full content with
// no version check. Concurrent saves through this endpoint are last-writer-
// wins; collaborative clients should rely on the socket's autosave instead.
func SaveDocument(svc service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var req struct {
			Content  interface{} `json:"content"`
			EditorID string      `json:"editorId,omitempty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Content == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "content required"})
			return
		}
		d, err := svc.Upsert(c.Request.Context(), id, req.Content, req.EditorID)
		if err != nil {
			if errors.Is(err, document.ErrInvalidID) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save document"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": d.ID, "version": d.Version, "updatedAt": d.UpdatedAt})
	}
}
