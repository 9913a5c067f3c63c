package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/ledger_api/service"
)

// EntryHandler handles HTTP requests for single and bulk entry operations
type EntryHandler struct {
	entryService service.EntryService
	clock        ledger.Clock
	logger       *slog.Logger
}

// NewEntryHandler creates a new entry handler
func NewEntryHandler(logger *slog.Logger, entryService service.EntryService, clock ledger.Clock) *EntryHandler {
	return &EntryHandler{
		entryService: entryService,
		clock:        clock,
		logger:       logger,
	}
}

// List returns the filtered entries of one kind, one page at a time
func (h *EntryHandler) List(c *gin.Context) {
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

	entries, err := h.entryService.ListEntries(c.Request.Context(), caller, kind, filter)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	items := mapEntriesToResponse(paginate(entries, params.Page, params.PerPage), h.clock.Today())
	RespondWithPaginatedData(c, http.StatusOK, items, params.Page, params.PerPage, len(entries))
}

func (h *EntryHandler) Create(c *gin.Context) {
	caller, kind, err := requestScope(c)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	var req CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	dueDate, err := parseDate("due_date", &req.DueDate)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	entry, err := h.entryService.CreateEntry(c.Request.Context(), caller, kind, service.CreateEntryInput{
		Subject: ledger.Subject{
			ID:         req.SubjectID,
			Name:       req.SubjectName,
			ClassID:    req.ClassID,
			ClassName:  req.ClassName,
			RollNumber: req.RollNumber,
		},
		Amount:  req.Amount,
		Month:   req.Month,
		DueDate: dueDate,
		Remarks: req.Remarks,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondCreated(c, mapEntryToResponse(entry, h.clock.Today()))
}

func (h *EntryHandler) GetByID(c *gin.Context) {
	caller, kind, id, ok := h.entryTarget(c)
	if !ok {
		return
	}

	entry, err := h.entryService.GetEntry(c.Request.Context(), caller, kind, id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, mapEntryToResponse(entry, h.clock.Today()))
}

// Update changes status, payment date or remarks. Overdue cannot be requested.
func (h *EntryHandler) Update(c *gin.Context) {
	caller, kind, id, ok := h.entryTarget(c)
	if !ok {
		return
	}

	var req UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	paymentDate, err := parseDate("payment_date", req.PaymentDate)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	entry, err := h.entryService.UpdateEntry(c.Request.Context(), caller, kind, id, service.UpdateEntryInput{
		Status:      req.Status,
		PaymentDate: paymentDate,
		Remarks:     req.Remarks,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, mapEntryToResponse(entry, h.clock.Today()))
}

func (h *EntryHandler) Discount(c *gin.Context) {
	caller, kind, id, ok := h.entryTarget(c)
	if !ok {
		return
	}

	var req DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	entry, err := h.entryService.ApplyDiscount(c.Request.Context(), caller, kind, id, req.Amount)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, mapEntryToResponse(entry, h.clock.Today()))
}

func (h *EntryHandler) Delete(c *gin.Context) {
	caller, kind, id, ok := h.entryTarget(c)
	if !ok {
		return
	}

	if err := h.entryService.DeleteEntry(c.Request.Context(), caller, kind, id); err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondNoContent(c)
}

// BulkStatus applies one status to many entries. Per-entry failures do not
// fail the request; they are listed in the response.
func (h *EntryHandler) BulkStatus(c *gin.Context) {
	caller, kind, err := requestScope(c)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	var req BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	ids, err := parseIDs(req.IDs)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	paymentDate, err := parseDate("payment_date", req.PaymentDate)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	result, err := h.entryService.BulkUpdateStatus(c.Request.Context(), caller, kind, service.BulkStatusInput{
		IDs:         ids,
		Status:      req.Status,
		PaymentDate: paymentDate,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, mapBulkToResponse(result, h.clock.Today()))
}

func (h *EntryHandler) entryTarget(c *gin.Context) (ledger.Caller, ledger.Kind, uuid.UUID, bool) {
	caller, kind, err := requestScope(c)
	if err == nil {
		var id uuid.UUID
		if id, err = entryID(c); err == nil {
			return caller, kind, id, true
		}
	}
	RespondError(c, h.logger, err)
	return ledger.Caller{}, "", uuid.Nil, false
}
