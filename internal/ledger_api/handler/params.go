package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/ledger_api/middleware"
)

// requestScope extracts the caller and the ledger kind shared by every route.
func requestScope(c *gin.Context) (ledger.Caller, ledger.Kind, error) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		return ledger.Caller{}, "", ledger.NewValidationError("scope", "missing "+middleware.SchoolIDHeader+" header")
	}
	kind, err := ledger.ParseKind(c.Param("kind"))
	if err != nil {
		return ledger.Caller{}, "", err
	}
	return caller, kind, nil
}

func entryID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, ledger.NewValidationError("id", "must be a valid UUID")
	}
	return id, nil
}

// toFilter converts query parameters into an engine filter.
func (p ListParams) toFilter() (ledger.Filter, error) {
	filter := ledger.Filter{Search: strings.TrimSpace(p.Search)}
	if p.Month != "" {
		key, err := ledger.ParseMonthKey(p.Month)
		if err != nil {
			return ledger.Filter{}, err
		}
		filter.Month = &key
	}
	if p.Status != "" && !strings.EqualFold(p.Status, "all") {
		status, err := ledger.ParseResolvedStatus(p.Status)
		if err != nil {
			return ledger.Filter{}, err
		}
		filter.Status = &status
	}
	return filter, nil
}

// parseIDs reads ids given either repeated (?ids=a&ids=b) or comma separated.
func parseIDs(raw []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, group := range raw {
		for _, part := range strings.Split(group, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, ledger.NewValidationError("ids", "invalid entry id "+part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// paginate slices the items of one page; out-of-range pages are empty.
func paginate[T any](items []T, page, perPage int) []T {
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
