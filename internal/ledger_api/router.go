package ledger_api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/school-fee-ledger/internal/ledger_api/handler"
	"github.com/school-fee-ledger/internal/ledger_api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	entryHandler *handler.EntryHandler,
	generationHandler *handler.GenerationHandler,
	reportHandler *handler.ReportHandler,
	probes map[string]HealthProbe,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	// Every ledger route is scoped to the school named in X-School-ID
	v1 := r.Group("/api/v1", middleware.Scope())
	{
		// Challan generation only exists for fees
		v1.POST("/ledger/fee/challans", generationHandler.GenerateChallans)

		kind := v1.Group("/ledger/:kind")
		{
			kind.GET("/entries", entryHandler.List)
			kind.POST("/entries", entryHandler.Create)
			kind.POST("/entries/bulk-status", entryHandler.BulkStatus)
			kind.GET("/entries/:id", entryHandler.GetByID)
			kind.PATCH("/entries/:id", entryHandler.Update)
			kind.DELETE("/entries/:id", entryHandler.Delete)
			kind.POST("/entries/:id/discount", entryHandler.Discount)

			kind.GET("/summary", reportHandler.Summary)
			kind.GET("/summary/monthly", reportHandler.MonthlySummary)
			kind.GET("/export", reportHandler.Export)
		}
	}

	// Health check endpoint for monitoring; 503 when any dependency is down
	r.GET("/health", healthHandler(logger, probes))
}

const probeTimeout = 2 * time.Second

func healthHandler(logger *slog.Logger, probes map[string]HealthProbe) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		defer cancel()

		var (
			mu     sync.Mutex
			g      errgroup.Group
			checks = make(map[string]string, len(probes))
		)
		for name, probe := range probes {
			g.Go(func() error {
				result := "ok"
				err := probe(ctx)
				if err != nil {
					logger.Warn("Health probe failed", "dependency", name, "error", err)
					result = err.Error()
				}
				mu.Lock()
				checks[name] = result
				mu.Unlock()
				return err
			})
		}

		status, code := "ok", http.StatusOK
		if err := g.Wait(); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "checks": checks, "timestamp": time.Now().UTC()})
	}
}
