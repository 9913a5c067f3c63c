package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/school-fee-ledger/internal/domain/ledger"
)

const (
	// SchoolIDHeader names the tenant every ledger call is scoped to
	SchoolIDHeader = "X-School-ID"
	// UserIDHeader names the acting operator, recorded in logs only
	UserIDHeader = "X-User-ID"

	callerKey = "ledger_caller"
)

// Scope resolves the caller once per request. Requests without a school id
// are rejected before reaching a handler.
func Scope() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := ledger.Caller{
			Scope:  strings.TrimSpace(c.GetHeader(SchoolIDHeader)),
			UserID: strings.TrimSpace(c.GetHeader(UserIDHeader)),
		}
		if err := caller.Validate(); err != nil {
			response := gin.H{
				"error": gin.H{
					"code":    "BAD_REQUEST",
					"message": "missing " + SchoolIDHeader + " header",
				},
			}
			if id := GetCorrelationID(c); id != "" {
				response["correlation_id"] = id
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, response)
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

// GetCaller returns the caller resolved by Scope.
func GetCaller(c *gin.Context) (ledger.Caller, bool) {
	v, exists := c.Get(callerKey)
	if !exists {
		return ledger.Caller{}, false
	}
	caller, ok := v.(ledger.Caller)
	return caller, ok
}
