package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prismbi/prism-backend/internal/data/aggregates"
	"github.com/prismbi/prism-backend/internal/http/response"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

type VersionHandler struct {
	agg *aggregates.DashboardAggregate
	log *logger.Logger
}

func NewVersionHandler(agg *aggregates.DashboardAggregate, log *logger.Logger) *VersionHandler {
	return &VersionHandler{agg: agg, log: log.With("Handler", "VersionHandler")}
}

type versionListItem struct {
	ID            int64                     `json:"id"`
	VersionNumber int                       `json:"version_number"`
	CreatedAt     time.Time                 `json:"created_at"`
	CreatedBy     *aggregates.VersionAuthor `json:"created_by"`
	Comment       *string                   `json:"comment"`
}

// GET /api/dashboard/:id/versions/
func (h *VersionHandler) List(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := h.agg.ListVersions(c.Request.Context(), id)
	if err != nil {
		h.log.Warn("ListVersions failed", "error", err, "dashboard_id", id)
		response.RespondPipelineError(c, err)
		return
	}
	out := make([]versionListItem, 0, len(items))
	for _, item := range items {
		out = append(out, versionListItem{
			ID:            item.Version.ID,
			VersionNumber: item.Version.VersionNumber,
			CreatedAt:     item.Version.CreatedAt,
			CreatedBy:     item.Author,
			Comment:       item.Version.Comment,
		})
	}
	response.RespondOK(c, gin.H{"result": out, "count": len(out)})
}

// GET /api/dashboard/:id/versions/:version_id
func (h *VersionHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	versionID, ok := pathID(c, "version_id")
	if !ok {
		return
	}
	v, err := h.agg.GetVersion(c.Request.Context(), id, versionID)
	if err != nil {
		h.log.Warn("GetVersion failed", "error", err, "dashboard_id", id, "version_id", versionID)
		response.RespondPipelineError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"result": v})
}

type versionCommentRequest struct {
	Description *string `json:"description"`
}

// PUT /api/dashboard/:id/versions/:version_id
func (h *VersionHandler) UpdateComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	versionID, ok := pathID(c, "version_id")
	if !ok {
		return
	}
	var req versionCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	v, err := h.agg.UpdateVersionComment(c.Request.Context(), id, versionID, req.Description)
	if err != nil {
		h.log.Warn("UpdateVersionComment failed", "error", err, "dashboard_id", id, "version_id", versionID)
		response.RespondPipelineError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"result": v})
}
