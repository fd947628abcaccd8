package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradestore/internal/service"
	"github.com/noah-isme/gradestore/pkg/response"
)

// CacheHandler lets admins rebuild the in-memory snapshot from the database.
type CacheHandler struct {
	data *service.DataService
}

// NewCacheHandler constructs handler.
func NewCacheHandler(data *service.DataService) *CacheHandler {
	return &CacheHandler{data: data}
}

// Refresh godoc
// @Summary Reload the snapshot from the database
// @Tags Cache
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cache/refresh [post]
func (h *CacheHandler) Refresh(c *gin.Context) {
	if err := h.data.Refresh(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"loaded_at":   h.data.LoadedAt(),
		"assignments": len(h.data.Assignments()),
		"students":    len(h.data.Students()),
		"tas":         len(h.data.TAs()),
	})
}
