package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"travel-platform/internal/audit"
	"travel-platform/internal/auth"
	"travel-platform/internal/booking"
	"travel-platform/internal/category"
	"travel-platform/internal/rbac"
	"travel-platform/internal/settlement"
	"travel-platform/internal/wallet"
)

func testBooking(id, userID string) booking.Booking {
	completed := time.Now().Add(-5 * 24 * time.Hour)
	return booking.Booking{
		ID:            id,
		BookingNumber: "FLT-20260820-APIT1",
		UserID:        userID,
		CategorySlug:  category.SlugFlights,
		BookingDate:   time.Now().Add(100 * time.Hour),
		TimeSlot:      booking.TimeSlot{Start: "10:00", End: "12:00"},
		Pricing: booking.Pricing{
			Total:              decimal.NewFromInt(5000),
			CashbackPercentage: decimal.NewFromInt(15),
			CashbackEarned:     decimal.NewFromInt(750),
			Currency:           "INR",
		},
		PaymentStatus:    booking.PaymentPaid,
		Status:           booking.StatusCompleted,
		CashbackStatus:   booking.CashbackHeld,
		VerificationDays: 3,
		CompletedAt:      &completed,
		CreatedAt:        time.Now().Add(-6 * 24 * time.Hour),
	}
}

func setup(t *testing.T) (*settlement.MemoryStore, *audit.MemoryRepo, Handlers) {
	t.Helper()
	store := settlement.NewMemoryStore()
	repo := audit.NewMemoryRepo()
	h := Handlers{
		Engine: settlement.NewEngine(store, wallet.NopCacheSyncer{}),
		Audit:  audit.NewService(repo),
	}
	return store, repo, h
}

func identity(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func TestGetWalletBalance(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, _, h := setup(t)
	store.PutWallet(wallet.Wallet{ID: "w1", UserID: "u1", Available: decimal.NewFromInt(850), IsActive: true})

	r := gin.New()
	r.GET("/users/:userID/wallet", h.GetWalletBalance)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/u1/wallet", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got["available"] != "850" {
		t.Fatalf("unexpected balance: %v", got["available"])
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/nobody/wallet", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetBookingOwnership(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, _, h := setup(t)
	store.PutBooking(testBooking("b1", "u1"))

	r := gin.New()
	r.GET("/bookings/:id", identity("u2", rbac.RoleUser), h.GetBooking)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/b1", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign booking must be forbidden, got %d", w.Code)
	}

	owner := gin.New()
	owner.GET("/bookings/:id", identity("u1", rbac.RoleUser), h.GetBooking)
	w = httptest.NewRecorder()
	owner.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/b1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("owner must see booking, got %d", w.Code)
	}
}

func TestGetRefundQuote(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, _, h := setup(t)
	b := testBooking("b1", "u1")
	// 100h before departure -> top flight tier, full refund, no deduction
	b.BookingDate = time.Now().Add(100 * time.Hour)
	b.TimeSlot.Start = ""
	store.PutBooking(b)

	r := gin.New()
	r.GET("/bookings/:id/refund-quote", h.GetRefundQuote)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/b1/refund-quote", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got["refund_percentage"] != float64(100) {
		t.Fatalf("expected 100%% tier, got %v", got["refund_percentage"])
	}
}

func TestPostRefund(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, _, h := setup(t)
	store.PutBooking(testBooking("b1", "u1"))
	store.PutWallet(wallet.Wallet{ID: "w1", UserID: "u1", Available: decimal.NewFromInt(1000), IsActive: true})

	r := gin.New()
	r.POST("/bookings/:id/refund", identity("op", rbac.RoleOperator), h.PostRefund)

	body, _ := json.Marshal(gin.H{"reason": "trip cancelled"})
	req := httptest.NewRequest(http.MethodPost, "/bookings/b1/refund", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	got, _ := store.GetBooking(req.Context(), "b1")
	if got.CashbackStatus != booking.CashbackClawedBack {
		t.Fatalf("expected clawed_back, got %s", got.CashbackStatus)
	}
}

func TestPostRefundRequiresReason(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, _, h := setup(t)
	store.PutBooking(testBooking("b1", "u1"))

	r := gin.New()
	r.POST("/bookings/:id/refund", h.PostRefund)

	req := httptest.NewRequest(http.MethodPost, "/bookings/b1/refund", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPostSettlementOverrideAudited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, repo, h := setup(t)
	store.PutBooking(testBooking("b1", "u1"))
	store.PutWallet(wallet.Wallet{ID: "w1", UserID: "u1", IsActive: true})

	r := gin.New()
	r.POST("/admin/bookings/:id/settlement", identity("admin-1", rbac.RoleSuperAdmin), h.PostSettlementOverride)

	body, _ := json.Marshal(gin.H{"action": "credit"})
	req := httptest.NewRequest(http.MethodPost, "/admin/bookings/b1/settlement", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	evs := repo.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypeSettlementOverride {
		t.Fatalf("override not audited: %+v", evs)
	}
	if evs[0].ActorUserID != "admin-1" || evs[0].BookingID != "b1" {
		t.Fatalf("audit record incomplete: %+v", evs[0])
	}

	// repeating the credit is a conflict, not a double credit
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/admin/bookings/b1/settlement", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on repeat credit, got %d", w.Code)
	}
}

func TestPatchReferences(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, repo, h := setup(t)
	store.PutBooking(testBooking("b1", "u1"))

	r := gin.New()
	r.PATCH("/admin/bookings/:id/references", identity("op-1", rbac.RoleOperator), h.PatchReferences)

	body, _ := json.Marshal(gin.H{"pnr": "XYZ999", "note": "airline reissue"})
	req := httptest.NewRequest(http.MethodPatch, "/admin/bookings/b1/references", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	got, _ := store.GetBooking(req.Context(), "b1")
	if got.PNR != "XYZ999" {
		t.Fatalf("pnr not applied: %q", got.PNR)
	}
	if got.CashbackStatus != booking.CashbackHeld {
		t.Fatalf("reference patch must not touch cashback, got %s", got.CashbackStatus)
	}
	if evs := repo.Events(); len(evs) != 1 || evs[0].Type != audit.EventTypeReferenceCorrection {
		t.Fatalf("correction not audited: %+v", evs)
	}

	// empty patch is rejected
	req = httptest.NewRequest(http.MethodPatch, "/admin/bookings/b1/references", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty patch, got %d", w.Code)
	}
}
