package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/ledger_api/middleware"
	"github.com/school-fee-ledger/internal/ledger_api/service"
)

// GenerationHandler handles bulk fee challan generation
type GenerationHandler struct {
	generationService service.GenerationService
	logger            *slog.Logger
}

func NewGenerationHandler(logger *slog.Logger, generationService service.GenerationService) *GenerationHandler {
	return &GenerationHandler{
		generationService: generationService,
		logger:            logger,
	}
}

// GenerateChallans answers 201 when every class succeeded and 207 when some
// classes failed, so partial runs are visible to the caller.
func (h *GenerationHandler) GenerateChallans(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		RespondError(c, h.logger, ledger.NewValidationError("scope", "missing "+middleware.SchoolIDHeader+" header"))
		return
	}

	var req GenerateChallansRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	dueDate, err := parseDate("due_date", &req.DueDate)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	report, err := h.generationService.GenerateChallans(c.Request.Context(), caller, req.ClassIDs, ledger.ChallanTemplate{
		Amount:  req.Amount,
		DueDate: dueDate,
		Month:   req.Month,
		Remarks: req.Remarks,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	status := http.StatusCreated
	if report.Failed > 0 {
		status = http.StatusMultiStatus
	}
	RespondWithData(c, status, mapGenerationToResponse(report))
}
