package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"device-manager-api-server/internal/auth"

	"github.com/gin-gonic/gin"
)

func protectedRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", Authenticate(), Authorize(roles...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userID": c.GetString("user_id"),
			"wardID": c.GetString("user_ward_id"),
		})
	})
	return r
}

func doRequest(t *testing.T, router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthenticateMissingHeader(t *testing.T) {
	w := doRequest(t, protectedRouter("center"), "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthenticateBadFormat(t *testing.T) {
	w := doRequest(t, protectedRouter("center"), "Token abc")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	token, err := auth.GenerateJWT("a@example.com", "center", "", "center-1", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	w := doRequest(t, protectedRouter("center"), "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthorizeAllowsMatchingRole(t *testing.T) {
	token, err := auth.GenerateJWT("w@example.com", "ward", "WARD-01", "ward-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	w := doRequest(t, protectedRouter("center", "ward"), "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuthorizeRejectsOtherRole(t *testing.T) {
	token, err := auth.GenerateJWT("u@example.com", "user", "", "user-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	w := doRequest(t, protectedRouter("center"), "Bearer "+token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
