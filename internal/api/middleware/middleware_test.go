package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yoockh/yootherapy/internal/logger"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newAuthRouter(cfg JWTConfig, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWTAuth(cfg)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id")+"|"+c.GetString("role"))
	})
	r.GET("/me", handlers...)
	return r
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	cfg := JWTConfig{Secret: testSecret, Issuer: "yootherapy", Audience: "therapists"}

	valid := jwt.MapClaims{"sub": "th-1", "iss": "yootherapy", "aud": "therapists", "exp": exp}
	admin := jwt.MapClaims{"sub": "root", "iss": "yootherapy", "aud": []string{"x", "therapists"}, "exp": exp,
		"app_metadata": map[string]any{"role": "admin"}}

	tests := []struct {
		name   string
		token  string
		status int
		body   string
	}{
		{"valid", sign(t, jwt.SigningMethodHS256, []byte(testSecret), valid), http.StatusOK, "th-1|user"},
		{"admin role", sign(t, jwt.SigningMethodHS256, []byte(testSecret), admin), http.StatusOK, "root|admin"},
		{"missing token", "", http.StatusUnauthorized, "missing bearer token"},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), valid), http.StatusUnauthorized, "invalid token"},
		{"wrong method", sign(t, jwt.SigningMethodHS512, []byte(testSecret), valid), http.StatusUnauthorized, "invalid token"},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "th-1", "exp": time.Now().Add(-time.Minute).Unix()}), http.StatusUnauthorized, "invalid token"},
		{"wrong issuer", sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "th-1", "iss": "other", "aud": "therapists", "exp": exp}), http.StatusUnauthorized, "invalid token issuer"},
		{"wrong audience", sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "th-1", "iss": "yootherapy", "aud": "patients", "exp": exp}), http.StatusUnauthorized, "invalid token audience"},
		{"no subject", sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"iss": "yootherapy", "aud": "therapists", "exp": exp}), http.StatusUnauthorized, "missing subject"},
	}
	r := newAuthRouter(cfg)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.token)
			if w.Code != tt.status || !strings.Contains(w.Body.String(), tt.body) {
				t.Fatalf("got %d %s, want %d containing %q", w.Code, w.Body.String(), tt.status, tt.body)
			}
		})
	}
}

func TestJWTAuthWithoutSecret(t *testing.T) {
	w := do(newAuthRouter(JWTConfig{}), "anything")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	r := newAuthRouter(JWTConfig{Secret: testSecret}, RequireAdmin())
	exp := time.Now().Add(time.Hour).Unix()

	user := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "th-1", "exp": exp})
	if w := do(r, user); w.Code != http.StatusForbidden {
		t.Fatalf("user status = %d", w.Code)
	}
	admin := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "root", "exp": exp, "app_metadata": map[string]any{"role": "Admin"}})
	if w := do(r, admin); w.Code != http.StatusOK {
		t.Fatalf("admin status = %d", w.Code)
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(logger.NewWithOutput(&buf, "info")))
	r.GET("/games/:code", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/games/ja", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatal("missing generated request id")
	}
	if !strings.Contains(buf.String(), `"code":"ja"`) {
		t.Fatalf("log line = %s", buf.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/games/ja", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc" {
		t.Fatalf("request id = %q", got)
	}
}
