package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signTestToken(secret string, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte(secret))
	return signed
}

func TestAuthRequired(t *testing.T) {
	api, inmem := newTestAPI(t)
	seedUser(t, inmem, "user-a", "alice")

	now := time.Now()
	tests := []struct {
		name   string
		header string
		want   struct {
			statusCode int
		}
	}{
		{
			name:   "missing header",
			header: "",
			want:   struct{ statusCode int }{statusCode: 401},
		},
		{
			name:   "scheme without token",
			header: "Bearer",
			want:   struct{ statusCode int }{statusCode: 401},
		},
		{
			name:   "scheme with blank token",
			header: "Bearer   ",
			want:   struct{ statusCode int }{statusCode: 401},
		},
		{
			name:   "garbage token",
			header: "Bearer not-a-jwt",
			want:   struct{ statusCode int }{statusCode: 403},
		},
		{
			name: "expired token",
			header: "Bearer " + signTestToken(defaultJWTSecret, jwt.MapClaims{
				"user_id":  "user-a",
				"username": "alice",
				"name":     "Alice",
				"exp":      now.Add(-time.Hour).Unix(),
				"iat":      now.Add(-2 * time.Hour).Unix(),
			}),
			want: struct{ statusCode int }{statusCode: 403},
		},
		{
			name: "token signed with a different secret",
			header: "Bearer " + signTestToken("wrong-secret", jwt.MapClaims{
				"user_id":  "user-a",
				"username": "alice",
				"name":     "Alice",
				"exp":      now.Add(time.Hour).Unix(),
				"iat":      now.Unix(),
			}),
			want: struct{ statusCode int }{statusCode: 403},
		},
		{
			name:   "valid token",
			header: "Bearer " + generateTestToken("user-a"),
			want:   struct{ statusCode int }{statusCode: 200},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "/users", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			api.httpSrv.Handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want.statusCode, w.Code, w.Body.String())
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		frontendURL string
		origin      string
		method      string
		want        struct {
			statusCode  int
			allowOrigin string
		}
	}{
		{
			name:        "preflight with open config reflects origin",
			frontendURL: "",
			origin:      "http://localhost:3000",
			method:      "OPTIONS",
			want: struct {
				statusCode  int
				allowOrigin string
			}{statusCode: 204, allowOrigin: "http://localhost:3000"},
		},
		{
			name:        "preflight for the configured frontend",
			frontendURL: "http://frontend.local",
			origin:      "http://frontend.local",
			method:      "OPTIONS",
			want: struct {
				statusCode  int
				allowOrigin string
			}{statusCode: 204, allowOrigin: "http://frontend.local"},
		},
		{
			name:        "foreign origin gets no CORS headers",
			frontendURL: "http://frontend.local",
			origin:      "http://evil.local",
			method:      "OPTIONS",
			want: struct {
				statusCode  int
				allowOrigin string
			}{statusCode: 204, allowOrigin: ""},
		},
		{
			name:        "plain request without origin",
			frontendURL: "",
			origin:      "",
			method:      "GET",
			want: struct {
				statusCode  int
				allowOrigin string
			}{statusCode: 200, allowOrigin: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORSMiddleware(tt.frontendURL))
			router.GET("/ping", func(ctx *gin.Context) {
				ctx.JSON(http.StatusOK, gin.H{"message": "pong"})
			})

			req, _ := http.NewRequest(tt.method, "/ping", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want.statusCode, w.Code)
			assert.Equal(t, tt.want.allowOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.want.allowOrigin != "" {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	api, inmem := newTestAPI(t)
	seedUser(t, inmem, "user-a", "alice")
	token := generateTestToken("user-a")

	// пара обычных запросов, чтобы счётчики были ненулевыми
	w := doRequest(api, "GET", "/users", token, nil)
	require.Equal(t, 200, w.Code)
	w = doRequest(api, "GET", "/tasks", token, nil)
	require.Equal(t, 200, w.Code)

	w = doRequest(api, "GET", "/metrics", "", nil)
	require.Equal(t, 200, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, "http_request_duration_seconds")
}
