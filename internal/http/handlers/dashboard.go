package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/prismbi/prism-backend/internal/data/aggregates"
	repobi "github.com/prismbi/prism-backend/internal/data/repos/bi"
	"github.com/prismbi/prism-backend/internal/http/response"
	"github.com/prismbi/prism-backend/internal/observability"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
	"github.com/prismbi/prism-backend/internal/platform/ctxutil"
	"github.com/prismbi/prism-backend/internal/platform/logger"
	"github.com/prismbi/prism-backend/internal/services"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type DashboardHandler struct {
	agg        *aggregates.DashboardAggregate
	dashboards repobi.DashboardRepo
	localizer  services.ContentLocalizer
	metrics    *observability.Metrics
	log        *logger.Logger
}

func NewDashboardHandler(
	agg *aggregates.DashboardAggregate,
	dashboards repobi.DashboardRepo,
	localizer services.ContentLocalizer,
	metrics *observability.Metrics,
	log *logger.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		agg:        agg,
		dashboards: dashboards,
		localizer:  localizer,
		metrics:    metrics,
		log:        log.With("Handler", "DashboardHandler"),
	}
}

// GET /api/dashboard/
func (h *DashboardHandler) List(c *gin.Context) {
	page := intQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := intQuery(c, "page_size", defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	rows, err := h.dashboards.List(dbctx.From(c.Request.Context()), pageSize, (page-1)*pageSize)
	if err != nil {
		h.log.Error("List failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}

	locale := ctxutil.GetActor(c.Request.Context()).Locale
	items := make([]*services.DashboardContent, 0, len(rows))
	for _, d := range rows {
		items = append(items, h.localizer.Localize(d, locale))
	}
	response.RespondOK(c, gin.H{"dashboards": items, "page": page, "page_size": pageSize})
}

// GET /api/dashboard/:id
func (h *DashboardHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	d, err := h.dashboards.GetByID(dbctx.From(c.Request.Context()), id)
	if err != nil {
		h.log.Error("Get failed", "error", err, "dashboard_id", id)
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	if d == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	locale := ctxutil.GetActor(c.Request.Context()).Locale
	response.RespondOK(c, gin.H{"result": h.localizer.Localize(d, locale)})
}

// PUT /api/dashboard/:id
func (h *DashboardHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var upd aggregates.DashboardUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}

	actor := ctxutil.GetActor(c.Request.Context())
	res, err := h.agg.Update(c.Request.Context(), actor, id, upd)
	if err != nil {
		h.log.Warn("Update failed", "error", err, "dashboard_id", id)
		response.RespondPipelineError(c, err)
		return
	}
	h.metrics.IncVersionCreated()
	response.RespondOK(c, updateEnvelope(h.localizer, res))
}

// POST /api/dashboard/:id/versions/:version_id/restore
func (h *DashboardHandler) Restore(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	versionID, ok := pathID(c, "version_id")
	if !ok {
		return
	}

	actor := ctxutil.GetActor(c.Request.Context())
	res, err := h.agg.Restore(c.Request.Context(), actor, id, versionID)
	if err != nil {
		h.log.Warn("Restore failed", "error", err, "dashboard_id", id, "version_id", versionID)
		response.RespondPipelineError(c, err)
		return
	}
	h.metrics.IncVersionCreated()
	response.RespondOK(c, updateEnvelope(h.localizer, res))
}

func updateEnvelope(localizer services.ContentLocalizer, res *aggregates.UpdateResult) gin.H {
	return gin.H{
		"result":           localizer.Localize(res.Dashboard, ""),
		"version":          res.Version,
		"linked_slice_ids": res.LinkedSliceIDs,
	}
}

// pathID parses an integer path parameter. Non-numeric ids surface as
// not found, matching the resource-centric routes.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.RespondError(c, http.StatusNotFound, "not_found", nil)
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
