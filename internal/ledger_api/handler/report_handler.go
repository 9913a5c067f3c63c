package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/school-fee-ledger/internal/ledger_api/service"
)

const csvContentType = "text/csv; charset=utf-8"

// ReportHandler serves summaries and CSV exports
type ReportHandler struct {
	reportService service.ReportService
	logger        *slog.Logger
}

func NewReportHandler(logger *slog.Logger, reportService service.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		logger:        logger,
	}
}

func (h *ReportHandler) Summary(c *gin.Context) {
	caller, kind, err := requestScope(c)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	filter, err := params.toFilter()
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	summary, err := h.reportService.Summary(c.Request.Context(), caller, kind, filter)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, mapSummaryToResponse(summary))
}

func (h *ReportHandler) MonthlySummary(c *gin.Context) {
	caller, kind, err := requestScope(c)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	filter, err := params.toFilter()
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	report, err := h.reportService.MonthlySummary(c.Request.Context(), caller, kind, filter)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, mapMonthlyToResponse(report))
}

// Export streams the filtered entries, or the ids given in ?ids=, as a CSV attachment.
func (h *ReportHandler) Export(c *gin.Context) {
	caller, kind, err := requestScope(c)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	filter, err := params.toFilter()
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	ids, err := parseIDs(c.QueryArray("ids"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	export, err := h.reportService.ExportCSV(c.Request.Context(), caller, kind, service.ExportRequest{Filter: filter, IDs: ids})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename))
	c.Data(http.StatusOK, csvContentType, []byte(export.Content))
}
