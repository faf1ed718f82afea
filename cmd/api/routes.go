package main

import (
	"github.com/gin-gonic/gin"

	"travel-platform/internal/audit"
	"travel-platform/internal/auth"
	"travel-platform/internal/httpapi"
	"travel-platform/internal/payment"
	"travel-platform/internal/rbac"
	"travel-platform/internal/reporting"
	"travel-platform/internal/scheduler"
	"travel-platform/internal/settlement"
)

type registerDeps struct {
	auth      *auth.Manager
	engine    *settlement.Engine
	gateway   *payment.Gateway
	audit     *audit.Service
	jobs      *scheduler.Scheduler
	reporting *reporting.Service
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps registerDeps) {
	h := httpapi.Handlers{
		Auth:      deps.auth,
		Engine:    deps.engine,
		Reporting: deps.reporting,
		Audit:     deps.audit,
		Jobs:      deps.jobs,
	}

	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Payment gateway callback (public, HMAC-authenticated).
	webhook := payment.WebhookHandler{Gateway: deps.gateway, Settler: deps.engine}
	r.POST("/webhooks/payment", webhook.HandleConfirmation)

	// Token issuance must stay outside the bearer-token group or no client
	// could ever obtain a first token.
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		// WALLET routes
		v1.GET("/users/:userID/wallet",
			rbac.RequireSelfOrRole("userID", rbac.RoleSupport, rbac.RoleFinance),
			h.GetWalletBalance)

		// BOOKING routes
		bookings := v1.Group("/bookings")
		{
			bookings.GET("/:id", h.GetBooking)
			bookings.GET("/:id/refund-quote", h.GetRefundQuote)
			bookings.POST("/:id/refund",
				rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleFinance),
				h.PostRefund)
		}

		// ADMIN routes
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleFinance))
		{
			admin.GET("/ping", func(c *gin.Context) {
				c.JSON(200, gin.H{"status": "ok"})
			})
			admin.POST("/bookings/:id/settlement", h.PostSettlementOverride)
			admin.PATCH("/bookings/:id/references", h.PatchReferences)
			admin.GET("/dashboard", h.GetDashboard)
			admin.GET("/jobs", h.GetJobs)
		}
	}
}
