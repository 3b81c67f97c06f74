package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/pilotvoice-api/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAdminChecker struct {
	admins map[uuid.UUID]bool
	err    error
}

func (s stubAdminChecker) IsAdmin(_ context.Context, userID uuid.UUID) (bool, error) {
	return s.admins[userID], s.err
}

func newTestVerifier(t *testing.T) *auth.TokenVerifier {
	t.Helper()
	verifier, err := auth.NewTokenVerifier("test-secret", "", "")
	require.NoError(t, err)
	return verifier
}

func newAuthRouter(m *AuthMiddleware, chain ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	handlers := append(chain, func(c *gin.Context) {
		userID, _ := UserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "email": EmailFromContext(c)})
	})
	router.GET("/api/surveys/:surveyId/responses/me", handlers...)
	return router
}

func TestRequireAuth(t *testing.T) {
	verifier := newTestVerifier(t)
	userID := uuid.New()
	valid, err := verifier.Sign(userID, "pilot@example.com", time.Hour)
	require.NoError(t, err)
	expired, err := verifier.Sign(userID, "pilot@example.com", -time.Hour)
	require.NoError(t, err)

	m := NewAuthMiddleware(verifier, stubAdminChecker{}, "/login", zap.NewNop())
	router := newAuthRouter(m, m.RequireAuth())

	testCases := []struct {
		name       string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{"valid bearer", "Bearer " + valid, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "Authentication required"},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, "Authentication required"},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, "Token has expired"},
		{"garbage token", "Bearer abc.def", http.StatusUnauthorized, "Invalid or expired token"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/surveys/5/responses/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, userID.String(), body["user_id"])
				assert.Equal(t, "pilot@example.com", body["email"])
				return
			}
			assert.Equal(t, "Unauthorized", body["error"])
			assert.Equal(t, tc.wantMsg, body["message"])
			assert.Equal(t, "/login?redirect_to=/api/surveys/5/responses/me", body["redirect"])
		})
	}
}

func TestRequireAuthWS_AcceptsQueryToken(t *testing.T) {
	verifier := newTestVerifier(t)
	token, err := verifier.Sign(uuid.New(), "", time.Hour)
	require.NoError(t, err)
	m := NewAuthMiddleware(verifier, stubAdminChecker{}, "/login", zap.NewNop())

	wsRouter := newAuthRouter(m, m.RequireAuthWS())
	w := httptest.NewRecorder()
	wsRouter.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/surveys/5/responses/me?access_token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	httpRouter := newAuthRouter(m, m.RequireAuth())
	w = httptest.NewRecorder()
	httpRouter.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/surveys/5/responses/me?access_token="+token, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "обычные маршруты не принимают токен из query")
}

func TestOptionalAuth(t *testing.T) {
	verifier := newTestVerifier(t)
	userID := uuid.New()
	token, err := verifier.Sign(userID, "pilot@example.com", time.Hour)
	require.NoError(t, err)
	m := NewAuthMiddleware(verifier, stubAdminChecker{}, "/login", zap.NewNop())
	router := newAuthRouter(m, m.OptionalAuth())

	testCases := []struct {
		name     string
		header   string
		wantUser string
	}{
		{"anonymous", "", uuid.Nil.String()},
		{"valid token", "Bearer " + token, userID.String()},
		{"invalid token is ignored", "Bearer broken", uuid.Nil.String()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/surveys/5/responses/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code, "OptionalAuth не должен отклонять запрос")
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.wantUser, body["user_id"])
		})
	}
}

func TestAdminOnly(t *testing.T) {
	verifier := newTestVerifier(t)
	admin, pilot := uuid.New(), uuid.New()

	testCases := []struct {
		name       string
		userID     uuid.UUID
		checkerErr error
		wantStatus int
	}{
		{"admin passes", admin, nil, http.StatusOK},
		{"pilot forbidden", pilot, nil, http.StatusForbidden},
		{"role lookup failure", pilot, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewAuthMiddleware(verifier, stubAdminChecker{admins: map[uuid.UUID]bool{admin: true}, err: tc.checkerErr}, "/login", zap.NewNop())
			router := newAuthRouter(m, m.RequireAuth(), m.AdminOnly())
			token, err := verifier.Sign(tc.userID, "", time.Hour)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/api/surveys/5/responses/me", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestExtractIDParam(t *testing.T) {
	router := gin.New()
	router.GET("/surveys/:surveyId", ExtractIDParam("surveyId", "surveyID"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetInt64("surveyID")})
	})

	testCases := []struct {
		path       string
		wantStatus int
	}{
		{"/surveys/12", http.StatusOK},
		{"/surveys/0", http.StatusBadRequest},
		{"/surveys/-3", http.StatusBadRequest},
		{"/surveys/abc", http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/surveys/12", nil))
	assert.JSONEq(t, `{"id":12}`, w.Body.String())
}

func TestRateLimiter_FailsOpenWhenRedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	limiter := NewRateLimiter(client, zap.NewNop())
	router := gin.New()
	router.POST("/api/survey-responses/check-gdpr", limiter.Limit(GdprCheckRateLimitConfig(1, time.Minute)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/survey-responses/check-gdpr", nil))
		assert.Equal(t, http.StatusOK, w.Code, "при недоступном Redis запросы пропускаются")
	}
}

func TestRateLimitKey_SharedScope(t *testing.T) {
	userID := uuid.New()
	cfg := GdprCheckRateLimitConfig(10, time.Minute)

	httpKey := rateLimitKey(cfg, "user:"+userID.String(), "/api/survey-responses/check-gdpr")
	sessionKey := rateLimitKey(cfg, "user:"+userID.String(), "")

	assert.Equal(t, "rl:gdpr:user:"+userID.String()+":check-gdpr", httpKey)
	assert.Equal(t, httpKey, sessionKey, "HTTP-проверка и проверка из сессии должны расходовать один лимит")

	plain := RateLimitConfig{KeyPrefix: "rl:test"}
	assert.Equal(t, "rl:test:ip:10.0.0.1:/surveys/:id", rateLimitKey(plain, "ip:10.0.0.1", "/surveys/:id"))
}

func TestUserLimit_FailsOpenWhenRedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	limit := NewRateLimiter(client, zap.NewNop()).ForUser(GdprCheckRateLimitConfig(1, time.Minute))

	for i := 0; i < 3; i++ {
		assert.True(t, limit.Allow(context.Background(), uuid.New()), "при недоступном Redis проверка пропускается")
	}
}
