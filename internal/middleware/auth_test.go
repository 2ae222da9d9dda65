package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"estimator/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func sign(t *testing.T, claims jwt.MapClaims, secret []byte) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestParseToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	tests := []struct {
		name      string
		claims    jwt.MapClaims
		secret    []byte
		wantErr   bool
		wantRoles []string
	}{
		{"roles array", jwt.MapClaims{"sub": "u1", "roles": []string{"JE", "CLERK"}, "exp": exp}, testSecret, false, []string{"JE", "CLERK"}},
		{"single role", jwt.MapClaims{"sub": "u2", "role": "EE", "exp": exp}, testSecret, false, []string{"EE"}},
		{"no roles", jwt.MapClaims{"sub": "u3", "exp": exp}, testSecret, false, nil},
		{"missing subject", jwt.MapClaims{"role": "EE", "exp": exp}, testSecret, true, nil},
		{"expired", jwt.MapClaims{"sub": "u4", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret, true, nil},
		{"wrong secret", jwt.MapClaims{"sub": "u5", "exp": exp}, []byte("other"), true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseToken(sign(t, tt.claims, tt.secret), testSecret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(claims.Roles) != len(tt.wantRoles) {
				t.Fatalf("roles = %v, want %v", claims.Roles, tt.wantRoles)
			}
			for i := range tt.wantRoles {
				if claims.Roles[i] != tt.wantRoles[i] {
					t.Errorf("roles[%d] = %s, want %s", i, claims.Roles[i], tt.wantRoles[i])
				}
			}
		})
	}
}

func TestCapabilityChecker(t *testing.T) {
	caps := NewCapabilityChecker([]string{"EE", "admin"})
	if !caps.CanOverride([]string{"JE", "admin"}) {
		t.Error("admin should override")
	}
	if caps.CanOverride([]string{"JE", "SDE"}) {
		t.Error("JE/SDE should not override")
	}
	if NewCapabilityChecker(nil).CanOverride([]string{"EE"}) {
		t.Error("empty checker should never override")
	}
}

func newRouter(auth *Authenticator, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{auth.RequireAuth()}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "override": actor.Override, "user": UserID(c)})
	})
	r.GET("/me", handlers...)
	return r
}

func TestRequireAuth(t *testing.T) {
	auth := NewAuthenticator(testSecret, NewCapabilityChecker([]string{"EE"}))
	router := newRouter(auth)
	token := sign(t, jwt.MapClaims{"sub": "ee-1", "role": "EE", "exp": time.Now().Add(time.Hour).Unix()}, testSecret)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: token}) }, http.StatusOK},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"bad scheme", func(r *http.Request) { r.Header.Set("Authorization", "Token "+token) }, http.StatusUnauthorized},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	auth := NewAuthenticator(testSecret, NewCapabilityChecker(nil))
	router := newRouter(auth, RequireRole("admin", "EE"))
	exp := time.Now().Add(time.Hour).Unix()

	for role, want := range map[string]int{"EE": http.StatusOK, "JE": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+sign(t, jwt.MapClaims{"sub": "u", "role": role, "exp": exp}, testSecret))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("role %s: status = %d, want %d", role, w.Code, want)
		}
	}
}

func TestActorFromWithoutAuth(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, ok := ActorFrom(c); ok {
		t.Error("ActorFrom on anonymous context should report false")
	}
	c.Set(ctxActor, workflow.Actor{ID: "x"})
	if a, ok := ActorFrom(c); !ok || a.ID != "x" {
		t.Errorf("ActorFrom = %+v, %v", a, ok)
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/missing", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("logged %d entries, want 3", len(entries))
	}
	want := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d level = %s, want %s", i, e.Level, want[i])
		}
		if e.ContextMap()["path"] == "" {
			t.Errorf("entry %d missing path", i)
		}
	}
}
