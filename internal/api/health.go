package api

import (
	"net/http"
	"time"

	"points_bot/internal/service"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status          string     `json:"status"`
	Divergent       bool       `json:"divergent"`
	PersistFailures int64      `json:"persist_failures"`
	LastError       string     `json:"last_error,omitempty"`
	LastFailureAt   *time.Time `json:"last_failure_at,omitempty"`
}

func NewHealthRoutes(handler *gin.RouterGroup, svc *service.Service) {
	handler.GET("/healthz", func(c *gin.Context) {
		health := svc.Health()

		response := HealthResponse{
			Status:          "ok",
			Divergent:       health.Divergent,
			PersistFailures: health.PersistFailures,
			LastError:       health.LastError,
			LastFailureAt:   health.LastFailureAt,
		}

		// Memory is ahead of the persisted ledger until the next save succeeds.
		if health.Divergent {
			response.Status = "degraded"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}

		c.JSON(http.StatusOK, response)
	})
}
