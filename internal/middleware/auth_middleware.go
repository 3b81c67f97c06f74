package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
	"github.com/yourusername/pilotvoice-api/pkg/auth"
)

// Ключи контекста Gin, заполняемые RequireAuth
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
)

// accessTokenQueryParam используется браузерным WebSocket, который не умеет передавать заголовки
const accessTokenQueryParam = "access_token"

// AdminChecker определяет роль пользователя
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	verifier  *auth.TokenVerifier
	admins    AdminChecker
	loginPath string
	logger    *zap.Logger
}

// NewAuthMiddleware создает middleware аутентификации.
// loginPath - страница входа, на которую клиент перенаправляет неаутентифицированного пользователя.
func NewAuthMiddleware(verifier *auth.TokenVerifier, admins AdminChecker, loginPath string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:  verifier,
		admins:    admins,
		loginPath: loginPath,
		logger:    logger,
	}
}

// RequireAuth проверяет access-токен из заголовка Authorization
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return m.requireAuth(false)
}

// RequireAuthWS дополнительно принимает токен из query-параметра access_token
func (m *AuthMiddleware) RequireAuthWS() gin.HandlerFunc {
	return m.requireAuth(true)
}

func (m *AuthMiddleware) requireAuth(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok && allowQuery {
			token = c.Query(accessTokenQueryParam)
			ok = token != ""
		}
		if !ok {
			m.unauthorized(c, "Authentication required")
			return
		}

		identity, err := m.verifier.Verify(token)
		if err != nil {
			m.logger.Debug("Access token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			message := "Invalid or expired token"
			if errors.Is(err, auth.ErrTokenExpired) {
				message = "Token has expired"
			}
			m.unauthorized(c, message)
			return
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextEmail, identity.Email)
		c.Next()
	}
}

// OptionalAuth заполняет контекст пользователя, если передан валидный токен, и пропускает запрос без него
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if identity, err := m.verifier.Verify(token); err == nil {
				c.Set(ContextUserID, identity.UserID)
				c.Set(ContextEmail, identity.Email)
			}
		}
		c.Next()
	}
}

// AdminOnly проверяет роль администратора. Должен применяться после RequireAuth.
func (m *AuthMiddleware) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)
		if !ok {
			m.unauthorized(c, "Authentication required")
			return
		}

		isAdmin, err := m.admins.IsAdmin(c.Request.Context(), userID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			m.logger.Error("Failed to resolve user role", zap.String("user_id", userID.String()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin rights required"})
			return
		}

		c.Next()
	}
}

// unauthorized отвечает 401 с адресом входа, сохраняющим исходный путь
func (m *AuthMiddleware) unauthorized(c *gin.Context, message string) {
	redirect := m.loginPath + "?redirect_to=" + strings.ReplaceAll(url.QueryEscape(c.Request.URL.Path), "%2F", "/")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":    "Unauthorized",
		"message":  message,
		"redirect": redirect,
	})
}

// UserIDFromContext возвращает ID пользователя, установленный RequireAuth
func UserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// EmailFromContext возвращает email пользователя из токена
func EmailFromContext(c *gin.Context) string {
	return c.GetString(ContextEmail)
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
