package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/infra/security"
)

const (
	testCookie = "access_token"
	testSecret = "0123456789abcdef0123456789abcdef"
)

func newTestIssuer(t *testing.T, now func() time.Time) *security.JWTIssuer {
	t.Helper()

	issuer, err := security.NewJWTIssuer(security.JWTConfig{
		Secret:   testSecret,
		Issuer:   "storefront-iam",
		Audience: "storefront",
		TTL:      15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer.WithClock(now)
}

func issueFor(t *testing.T, issuer *security.JWTIssuer, role string) string {
	t.Helper()

	token, err := issuer.Issue(domain.User{
		ID:    "5c1f6a52-8e3e-4c4b-9a4b-0c0d7ad2c9a1",
		Name:  "Ann",
		Email: "ann@example.com",
		Role:  domain.Role{Name: role},
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func newAuthRouter(t *testing.T, issuer *security.JWTIssuer, guards ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(EnrichContext(), Authenticate(issuer, testCookie, zaptest.NewLogger(t)))
	handlers := append(guards, func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"authenticated": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"authenticated": true, "role": claims.Role})
	})
	router.GET("/", handlers...)
	return router
}

func doWithCookie(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestAuthenticateIsOptional(t *testing.T) {
	issuer := newTestIssuer(t, time.Now)
	router := newAuthRouter(t, issuer)

	rr := doWithCookie(router, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["authenticated"] != false {
		t.Fatalf("expected anonymous request, got %v", body)
	}
}

func TestRequireAuthAcceptsValidCookie(t *testing.T) {
	issuer := newTestIssuer(t, time.Now)
	router := newAuthRouter(t, issuer, RequireAuth())

	rr := doWithCookie(router, issueFor(t, issuer, "user"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRequireAuthRejectsMissingCookie(t *testing.T) {
	router := newAuthRouter(t, newTestIssuer(t, time.Now), RequireAuth())

	rr := doWithCookie(router, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequireAuthReportsExpiredToken(t *testing.T) {
	issuedAt := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	old := newTestIssuer(t, func() time.Time { return issuedAt })
	token := issueFor(t, old, "user")

	current := newTestIssuer(t, func() time.Time { return issuedAt.Add(time.Hour) })
	router := newAuthRouter(t, current, RequireAuth())

	rr := doWithCookie(router, token)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "access token expired" {
		t.Fatalf("unexpected error message %q", body.Error)
	}
}

func TestRequireAuthRejectsTamperedToken(t *testing.T) {
	issuer := newTestIssuer(t, time.Now)
	router := newAuthRouter(t, issuer, RequireAuth())

	rr := doWithCookie(router, issueFor(t, issuer, "user")+"x")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequireAnyRole(t *testing.T) {
	issuer := newTestIssuer(t, time.Now)
	router := newAuthRouter(t, issuer, RequireAuth(), RequireAnyRole([]string{"admin"}))

	if rr := doWithCookie(router, issueFor(t, issuer, "user")); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user role, got %d", rr.Code)
	}
	if rr := doWithCookie(router, issueFor(t, issuer, "admin")); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin role, got %d", rr.Code)
	}
}
