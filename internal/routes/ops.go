package routes

import (
	"net/http"

	"github.com/thanksdoc/payrecon/internal/handler"
	"github.com/thanksdoc/payrecon/internal/router"
)

// RegisterOpsRoutes registers health, readiness and metrics endpoints, plus the
// JSON 404 for unmatched paths.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		handler.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(); err != nil {
				handler.JSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"error":  err.Error(),
				})
				return
			}
		}
		handler.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	// Metrics endpoint (no auth required, but should be protected in production via firewall)
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.ServeHTTP)
	}

	r.NotFound(handler.NotFoundResponse)
}
