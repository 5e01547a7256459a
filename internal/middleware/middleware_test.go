package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sensorhub/internal/auth"
	"sensorhub/internal/config"
	"sensorhub/internal/logging"
	"sensorhub/internal/model"
	"sensorhub/internal/repository/memory"
	"sensorhub/pkg/util"

	"github.com/gin-gonic/gin"
)

const secret = "0123456789abcdef0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	router *gin.Engine
	user   *model.User
	mp     *model.MeasurementPoint
	token  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	log := logging.Discard()
	cfg := config.AuthConfig{JWTSecret: secret, JWTIssuer: "sensorhub", TokenTTLMinutes: 5}
	resolver := auth.NewResolver(cfg, store.Orgs(), store.Users(), store.Points(), log)

	user, err := store.Users().Create(ctx, &model.User{Email: "u@x.io", Role: model.RoleMember})
	if err != nil {
		t.Fatal(err)
	}
	deviceToken, err := util.GenerateDeviceToken()
	if err != nil {
		t.Fatal(err)
	}
	mp, err := store.Points().Create(ctx, &model.MeasurementPoint{Name: "M", DeviceTokenHash: util.HashDeviceToken(deviceToken)})
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	r.Use(RequestID(), Recovery(log), Logger(log))
	r.GET("/me", UserAuth(resolver), func(c *gin.Context) {
		p, ok := User(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, p.ID.Hex())
	})
	r.GET("/device/:id", DeviceAuth(resolver), func(c *gin.Context) {
		p, ok := Device(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, p.MeasurementPointID.Hex())
	})
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	r.NoRoute(NoRoute)

	return &env{router: r, user: user, mp: mp, token: deviceToken}
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func errorKey(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body model.Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
	for k := range body.Errors {
		return k
	}
	return ""
}

func TestUserAuth(t *testing.T) {
	e := newEnv(t)
	valid, err := auth.NewAccessToken(e.user, nil, secret, "sensorhub", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	otherSecret, _ := auth.NewAccessToken(e.user, nil, "another-secret-another-secret-xx", "sensorhub", time.Minute)

	tests := []struct {
		name   string
		header string
		status int
		key    string
	}{
		{"valid", "Bearer " + valid, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, ""},
		{"missing", "", http.StatusUnauthorized, "401"},
		{"basic scheme", "Basic abc", http.StatusUnauthorized, "401"},
		{"bad signature", "Bearer " + otherSecret, http.StatusForbidden, "403"},
		{"garbage", "Bearer not-a-jwt", http.StatusForbidden, "403"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := e.do(req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.key == "" {
				if w.Body.String() != e.user.ID.Hex() {
					t.Errorf("body = %q", w.Body.String())
				}
				return
			}
			if k := errorKey(t, w); k != tt.key {
				t.Errorf("error key = %q, want %q", k, tt.key)
			}
		})
	}
}

func TestDeviceAuth(t *testing.T) {
	e := newEnv(t)
	other, _ := util.GenerateDeviceToken()

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"own point", "/device/" + e.mp.ID.Hex(), e.token, http.StatusOK},
		{"missing token", "/device/" + e.mp.ID.Hex(), "", http.StatusUnauthorized},
		{"wrong token", "/device/" + e.mp.ID.Hex(), other, http.StatusNotFound},
		{"unknown point", "/device/" + e.user.ID.Hex(), e.token, http.StatusNotFound},
		{"malformed id", "/device/xyz", e.token, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set(DeviceTokenHeader, tt.token)
			}
			w := e.do(req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.status == http.StatusOK && w.Body.String() != e.mp.ID.Hex() {
				t.Errorf("body = %q", w.Body.String())
			}
		})
	}
}

func TestRequestIDAndRecovery(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := e.do(req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get(RequestIDHeader); got != "req-1" {
		t.Errorf("request id = %q", got)
	}
	if k := errorKey(t, w); k != "500" {
		t.Errorf("error key = %q", k)
	}

	w = e.do(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if w.Code != http.StatusNotFound || w.Header().Get(RequestIDHeader) == "" {
		t.Errorf("no route: status %d, request id %q", w.Code, w.Header().Get(RequestIDHeader))
	}
}
