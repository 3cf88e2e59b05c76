package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harentsoaR/dentist-booking/internal/models"
	"github.com/harentsoaR/dentist-booking/internal/services"
)

// stubVerifier accepts tokens of the form "<role>" and assigns id 1.
type stubVerifier struct{}

func (stubVerifier) Verify(token string) (services.Principal, error) {
	role, ok := models.ParseRole(token)
	if !ok {
		return services.Principal{}, errors.New("bad token")
	}
	return services.Principal{UserID: 1, Role: role}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newGateEngine() *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(stubVerifier{}, GateConfig{Public: DefaultPublicRoutes, Rules: DefaultRules}))
	ok := func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": p.UserID})
	}
	r.GET("/", ok)
	r.POST("/appointments", ok)
	r.GET("/appointments", ok)
	r.PATCH("/appointments/:id", ok)
	r.GET("/users", ok)
	r.PATCH("/users/:id", ok)
	r.GET("/usersettings", ok)
	r.GET("/auth/me", ok)
	return r
}

func TestAuthMiddleware_Matrix(t *testing.T) {
	r := newGateEngine()

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"public root", http.MethodGet, "/", "", http.StatusOK},
		{"public booking", http.MethodPost, "/appointments", "", http.StatusOK},
		{"list needs token", http.MethodGet, "/appointments", "", http.StatusUnauthorized},
		{"patch needs token", http.MethodPatch, "/appointments/1", "", http.StatusUnauthorized},
		{"invalid token", http.MethodGet, "/appointments", "Bearer nonsense", http.StatusUnauthorized},
		{"wrong scheme", http.MethodGet, "/appointments", "Basic STAFF", http.StatusUnauthorized},
		{"bare token", http.MethodGet, "/appointments", "STAFF", http.StatusUnauthorized},
		{"lowercase scheme", http.MethodGet, "/appointments", "bearer STAFF", http.StatusOK},
		{"staff lists appointments", http.MethodGet, "/appointments", "Bearer STAFF", http.StatusOK},
		{"patient lists appointments", http.MethodGet, "/appointments", "Bearer PATIENT", http.StatusOK},
		{"staff on users", http.MethodGet, "/users", "Bearer STAFF", http.StatusForbidden},
		{"dentist patches user", http.MethodPatch, "/users/3", "Bearer DENTIST", http.StatusForbidden},
		{"admin on users", http.MethodGet, "/users", "Bearer ADMIN", http.StatusOK},
		{"prefix boundary", http.MethodGet, "/usersettings", "Bearer STAFF", http.StatusOK},
		{"me for any role", http.MethodGet, "/auth/me", "Bearer PATIENT", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"BEARER   abc  ", "abc", false},
		{"Bearer", "", true},
		{"Bearer ", "", true},
		{"Bearer a b", "", true},
		{"Token abc", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := bearerToken(tt.header)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("bearerToken(%q) = %q, %v", tt.header, got, err)
		}
	}
}

func TestSessionGate(t *testing.T) {
	r := gin.New()
	r.GET("/dashboard", SessionGate(stubVerifier{}, "/login"), func(c *gin.Context) {
		c.String(http.StatusOK, "dashboard")
	})

	tests := []struct {
		name        string
		cookie      string
		want        int
		wantCleared bool
	}{
		{"no cookie", "", http.StatusFound, false},
		{"invalid cookie", "garbage", http.StatusFound, true},
		{"valid cookie", "DENTIST", http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusFound && w.Header().Get("Location") != "/login" {
				t.Errorf("Location = %q", w.Header().Get("Location"))
			}
			cleared := false
			for _, ck := range w.Result().Cookies() {
				if ck.Name == SessionCookie && ck.MaxAge < 0 {
					cleared = true
				}
			}
			if cleared != tt.wantCleared {
				t.Errorf("cookie cleared = %v, want %v", cleared, tt.wantCleared)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	if generated == "" || w.Body.String() != generated {
		t.Fatalf("generated id %q, body %q", generated, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("incoming id not kept: %q", got)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()), Logger(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != `{"error":"Server error"}` {
		t.Errorf("body = %s", w.Body.String())
	}
}
