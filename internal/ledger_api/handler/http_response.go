package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/ledger_api/middleware"
)

// Response represents a standard API response
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo represents error information in a response
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// MetaInfo represents metadata in a response
type MetaInfo struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalPages int `json:"total_pages"`
	TotalItems int `json:"total_items"`
}

// NewPaginatedResponse creates a new paginated response
func NewPaginatedResponse(data interface{}, page, perPage, totalItems int) *Response {
	totalPages := totalItems / perPage
	if totalItems%perPage > 0 {
		totalPages++
	}

	return &Response{
		Data: data,
		Meta: &MetaInfo{
			Page:       page,
			PerPage:    perPage,
			TotalPages: totalPages,
			TotalItems: totalItems,
		},
	}
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, &Response{
		Data:          data,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondWithError sends a JSON response with an error
func RespondWithError(c *gin.Context, statusCode int, info ErrorInfo) {
	c.JSON(statusCode, &Response{
		Error:         &info,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondWithPaginatedData sends a JSON response with paginated data
func RespondWithPaginatedData(c *gin.Context, statusCode int, data interface{}, page, perPage, totalItems int) {
	response := NewPaginatedResponse(data, page, perPage, totalItems)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, ErrorInfo{Code: "BAD_REQUEST", Message: message})
}

func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, ErrorInfo{
		Code:    "INTERNAL_SERVER_ERROR",
		Message: "An internal server error occurred",
	})
}

// RespondError maps a ledger error onto its HTTP status. Unknown errors are
// logged and hidden behind a generic 500.
func RespondError(c *gin.Context, logger *slog.Logger, err error) {
	var validationErr ledger.ValidationError
	var notFoundErr ledger.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		RespondWithError(c, http.StatusBadRequest, ErrorInfo{
			Code:    "BAD_REQUEST",
			Message: validationErr.Error(),
			Field:   validationErr.Field,
		})
	case errors.As(err, &notFoundErr):
		RespondWithError(c, http.StatusNotFound, ErrorInfo{Code: "NOT_FOUND", Message: notFoundErr.Error()})
	case errors.Is(err, ledger.TransientIOError{}):
		logger.Warn("Ledger storage unavailable", "correlation_id", middleware.GetCorrelationID(c), "error", err)
		RespondWithError(c, http.StatusServiceUnavailable, ErrorInfo{
			Code:    "SERVICE_UNAVAILABLE",
			Message: "The ledger is temporarily unavailable, please retry",
		})
	default:
		logger.Error("Unhandled ledger error", "correlation_id", middleware.GetCorrelationID(c), "error", err)
		RespondInternalError(c)
	}
}
