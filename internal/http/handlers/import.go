package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prismbi/prism-backend/internal/http/response"
	"github.com/prismbi/prism-backend/internal/importer"
	"github.com/prismbi/prism-backend/internal/observability"
	"github.com/prismbi/prism-backend/internal/platform/ctxutil"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

// maxBundleBytes caps uploaded bundle archives at 32 MiB.
const maxBundleBytes = 32 << 20

type ImportHandler struct {
	importer *importer.Importer
	metrics  *observability.Metrics
	log      *logger.Logger
}

func NewImportHandler(imp *importer.Importer, metrics *observability.Metrics, log *logger.Logger) *ImportHandler {
	return &ImportHandler{importer: imp, metrics: metrics, log: log.With("Handler", "ImportHandler")}
}

// POST /api/dashboard/import
// Accepts a zip bundle either as the multipart form file "bundle" or as
// the raw request body. Query flag: overwrite.
func (h *ImportHandler) Import(c *gin.Context) {
	data, err := h.readBundle(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}

	bundle, err := importer.ParseBundleZip(data)
	if err != nil {
		h.log.Warn("bundle parse failed", "error", err)
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}

	opts := importer.Options{Overwrite: boolQuery(c, "overwrite")}
	actor := ctxutil.GetActor(c.Request.Context())
	res, err := h.importer.Import(c.Request.Context(), actor, bundle, opts)
	if err != nil {
		h.log.Warn("bundle import failed", "error", err)
		h.metrics.IncImportDashboard("error")
		response.RespondPipelineError(c, err)
		return
	}

	for range res.DashboardIDs {
		h.metrics.IncImportDashboard("imported")
	}
	h.metrics.AddImportCharts(len(bundle.Charts))

	response.RespondOK(c, gin.H{
		"dashboard_ids":     res.DashboardIDs,
		"deleted_chart_ids": res.DeletedChartIDs,
	})
}

func (h *ImportHandler) readBundle(c *gin.Context) ([]byte, error) {
	if file, err := c.FormFile("bundle"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxBundleBytes))
	}
	return io.ReadAll(io.LimitReader(c.Request.Body, maxBundleBytes))
}

func boolQuery(c *gin.Context, name string) bool {
	switch strings.ToLower(strings.TrimSpace(c.Query(name))) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
