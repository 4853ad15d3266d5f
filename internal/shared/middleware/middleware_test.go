package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantshop-backend/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newProtectedRouter(manager *jwt.Manager, chain ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{RequestID()}, chain...)
	handlers = append(handlers, func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok, "user_id": userID.String()})
	})
	r.GET("/protected", handlers...)
	return r
}

func TestAuthMiddleware(t *testing.T) {
	manager := jwt.NewManager("secret")
	userID := uuid.New()
	valid, err := manager.GenerateAccessToken(userID.String(), "customer", time.Minute)
	require.NoError(t, err)
	notUUID, err := manager.GenerateAccessToken("not-a-uuid", "customer", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc", wantStatus: http.StatusUnauthorized},
		{name: "non uuid subject", header: "Bearer " + notUUID, wantStatus: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + valid, wantStatus: http.StatusOK},
	}

	router := newProtectedRouter(manager, AuthMiddleware(manager))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	manager := jwt.NewManager("secret")
	router := newProtectedRouter(manager, OptionalAuthMiddleware(manager))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["authenticated"])

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminMiddleware(t *testing.T) {
	manager := jwt.NewManager("secret")
	router := newProtectedRouter(manager, AuthMiddleware(manager), AdminMiddleware())

	for role, want := range map[string]int{"admin": http.StatusOK, "customer": http.StatusForbidden} {
		token, err := manager.GenerateAccessToken(uuid.NewString(), role, time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

func TestRecoveryRendersEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "SYS_001")
}

func TestRequestIDReusesIncoming(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextKeyRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Body.String())
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
