package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/utils"
)

func newSessionRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SessionMiddleware())
	r.Use(extra...)
	r.GET("/ping", func(c *gin.Context) {
		orgId, _ := utils.GetOrganizationIdFromContext(c.Request.Context())
		c.String(http.StatusOK, orgId)
	})
	return r
}

func TestSessionMiddlewarePassesWithoutToken(t *testing.T) {
	w := httptest.NewRecorder()
	newSessionRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSessionMiddlewareRejectsUnknownToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("token", "nope")
	w := httptest.NewRecorder()
	newSessionRouter().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireOrganization(t *testing.T) {
	w := httptest.NewRecorder()
	newSessionRouter(RequireOrganization()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without organization, got %d", w.Code)
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(utils.SetOrganizationIdInContext(c.Request.Context(), "org-1"))
		c.Next()
	}, RequireOrganization(), RequireAdmin())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", w.Code)
	}
}
