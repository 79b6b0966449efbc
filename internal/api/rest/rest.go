package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/sunset-protocol/sunset-indexer/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Protocol-wide counters (public read access)
		v1.GET("/protocol", handler.GetProtocolStats)

		// Project endpoints (public read access)
		v1.GET("/projects", handler.ListProjects)
		v1.GET("/projects/:token", handler.GetProject)
		v1.GET("/projects/:token/score", handler.GetScore)
		v1.GET("/projects/:token/coverage", handler.GetCoverage)
		v1.GET("/projects/:token/claimable/:holder", handler.GetClaimable)

		// Backfill a token's history (requires authentication)
		v1.POST("/projects/:token/reindex", middleware.Auth(authCfg), handler.ReindexProject)
	}
}
