package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"travel-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func identity(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", identity("u", RoleSuperAdmin), RequireAnyRole(RoleOperator), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireAnyRole_DeniesOtherRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", identity("u", RoleUser), RequireAnyRole(RoleOperator), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	if w.Code != 403 {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireAnyRole_RoleRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", RequireAnyRole(RoleOperator), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	if w.Code != 401 {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireSelfOrRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/users/:userID/wallet", identity("u1", RoleUser),
		RequireSelfOrRole("userID", RoleSupport), func(c *gin.Context) {
			c.Status(200)
		})

	// own resource
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/u1/wallet", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200 for own resource, got %d", w.Code)
	}

	// someone else's resource
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/u2/wallet", nil))
	if w.Code != 403 {
		t.Fatalf("expected 403 for foreign resource, got %d", w.Code)
	}
}

func TestRequireSelfOrRole_SupportRoleAllowed(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/users/:userID/wallet", identity("agent-1", RoleSupport),
		RequireSelfOrRole("userID", RoleSupport), func(c *gin.Context) {
			c.Status(200)
		})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/u2/wallet", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200 for support role, got %d", w.Code)
	}
}
