package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"travel-platform/internal/audit"
	"travel-platform/internal/auth"
	"travel-platform/internal/booking"
	"travel-platform/internal/rbac"
	"travel-platform/internal/refund"
	"travel-platform/internal/reporting"
	"travel-platform/internal/scheduler"
	"travel-platform/internal/settlement"
	"travel-platform/internal/wallet"
	"travel-platform/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Engine    *settlement.Engine
	Reporting *reporting.Service
	Audit     *audit.Service
	Jobs      *scheduler.Scheduler
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Wallet ---

func (h Handlers) GetWalletBalance(c *gin.Context) {
	userID := c.Param("userID")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "userID required"})
		return
	}
	w, err := h.Engine.GetWallet(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":        w.UserID,
		"available":      w.Available,
		"total_cashback": w.TotalCashback,
		"total_earned":   w.TotalEarned,
		"is_frozen":      w.IsFrozen,
	})
}

// --- Bookings ---

func (h Handlers) GetBooking(c *gin.Context) {
	b, ok := h.loadBooking(c)
	if !ok {
		return
	}

	// Non-operator callers only see their own bookings.
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	if b.UserID != uid && !isOperator(role) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, b)
}

// GetRefundQuote previews what a cancellation right now would refund and
// deduct, without changing anything.
func (h Handlers) GetRefundQuote(c *gin.Context) {
	b, ok := h.loadBooking(c)
	if !ok {
		return
	}
	q := refund.Calculate(b, time.Now())
	c.JSON(http.StatusOK, gin.H{
		"booking_number":     b.BookingNumber,
		"refund_percentage":  q.RefundPercentage,
		"refund_amount":      q.RefundAmount,
		"cashback_deduction": q.CashbackDeduction,
	})
}

type refundRequest struct {
	Reason        string           `json:"reason"`
	PartialAmount *decimal.Decimal `json:"partial_amount,omitempty"`
}

// PostRefund applies a refund's cashback consequences.
// RBAC: operator/finance (enforced in routes).
func (h Handlers) PostRefund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Reason == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "reason required"})
		return
	}

	b, err := h.Engine.HandleRefund(c.Request.Context(), c.Param("id"), req.Reason, req.PartialAmount)
	if err != nil {
		if errors.Is(err, settlement.ErrBookingNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		if errors.Is(err, wallet.ErrInsufficientBalance) || errors.Is(err, wallet.ErrWalletFrozen) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("refund failed", "booking_id", c.Param("id"), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "refund failed"})
		return
	}
	c.JSON(http.StatusOK, b)
}

// --- Admin ---

type settlementOverrideRequest struct {
	Action string `json:"action" binding:"required"`
}

// PostSettlementOverride forces a cashback credit or clawback on one
// booking, bypassing the scheduled lifecycle. Every override is audited.
func (h Handlers) PostSettlementOverride(c *gin.Context) {
	var req settlementOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "action required"})
		return
	}

	actorID, _ := auth.UserID(c.Request.Context())
	actorRole, _ := auth.Role(c.Request.Context())

	b, err := h.Engine.ForceSettle(c.Request.Context(), c.Param("id"), settlement.ForceAction(req.Action), actorID)
	if err != nil {
		if errors.Is(err, settlement.ErrBookingNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		if errors.Is(err, settlement.ErrInvalidState) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("settlement override failed", "booking_id", c.Param("id"), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "override failed"})
		return
	}

	if h.Audit != nil {
		meta, _ := json.Marshal(gin.H{"cashback_status": b.CashbackStatus})
		if err := h.Audit.LogSettlementOverride(c.Request.Context(),
			actorID, actorRole, c.ClientIP(), b.ID, b.UserID, req.Action, string(meta)); err != nil {
			logger.FromGin(c).Warn("override audit write failed", "booking_id", b.ID, "err", err)
		}
	}
	c.JSON(http.StatusOK, b)
}

type referencesRequest struct {
	PNR         string `json:"pnr,omitempty"`
	ExternalRef string `json:"external_ref,omitempty"`
	Note        string `json:"note,omitempty"`
}

// PatchReferences corrects booking references after airline/GDS reissue.
func (h Handlers) PatchReferences(c *gin.Context) {
	var req referencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.PNR == "" && req.ExternalRef == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "pnr or external_ref required"})
		return
	}

	actorID, _ := auth.UserID(c.Request.Context())
	actorRole, _ := auth.Role(c.Request.Context())

	b, err := h.Engine.UpdateReferences(c.Request.Context(), c.Param("id"), req.PNR, req.ExternalRef, req.Note, actorID)
	if err != nil {
		if errors.Is(err, settlement.ErrBookingNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	if h.Audit != nil {
		meta, _ := json.Marshal(req)
		if err := h.Audit.LogReferenceCorrection(c.Request.Context(),
			actorID, actorRole, c.ClientIP(), b.ID, req.Note, string(meta)); err != nil {
			logger.FromGin(c).Warn("reference audit write failed", "booking_id", b.ID, "err", err)
		}
	}
	c.JSON(http.StatusOK, b)
}

// GetDashboard returns booking, cashback and wallet rollups for a window.
// Defaults to the last 30 days.
func (h Handlers) GetDashboard(c *gin.Context) {
	if h.Reporting == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -30)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		to = t
	}
	rng := reporting.TimeRange{From: from, To: to}
	slug := c.Query("category")

	bookings, err := h.Reporting.BookingsSummary(c.Request.Context(), reporting.BookingsSummaryRequest{Range: rng, CategorySlug: slug})
	if err != nil {
		h.reportingError(c, err)
		return
	}
	cashback, err := h.Reporting.CashbackSummary(c.Request.Context(), reporting.CashbackSummaryRequest{Range: rng, CategorySlug: slug})
	if err != nil {
		h.reportingError(c, err)
		return
	}
	activity, err := h.Reporting.WalletActivity(c.Request.Context(), reporting.WalletActivityRequest{Range: rng})
	if err != nil {
		h.reportingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"range":    rng,
		"bookings": bookings,
		"cashback": cashback,
		"wallet":   activity,
	})
}

// GetJobs exposes scheduled-job health for operators.
func (h Handlers) GetJobs(c *gin.Context) {
	if h.Jobs == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []scheduler.Health{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": h.Jobs.Snapshot()})
}

// --- helpers ---

func (h Handlers) loadBooking(c *gin.Context) (booking.Booking, bool) {
	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "booking id required"})
		return booking.Booking{}, false
	}
	b, err := h.Engine.GetBooking(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, settlement.ErrBookingNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return booking.Booking{}, false
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "booking lookup failed"})
		return booking.Booking{}, false
	}
	return b, true
}

func (h Handlers) reportingError(c *gin.Context, err error) {
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid reporting window"})
		return
	}
	logger.FromGin(c).Error("dashboard query failed", "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dashboard failed"})
}

func isOperator(role string) bool {
	return role == rbac.RoleSupport || rbac.IsOperatorRole(role)
}
