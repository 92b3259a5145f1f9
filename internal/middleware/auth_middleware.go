package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/pulse-api/internal/domain/entity"
	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
	"github.com/yourusername/pulse-api/internal/pkg/logger"
	"github.com/yourusername/pulse-api/pkg/auth"
)

// PrincipalKey - ключ gin-контекста, под которым хранится проверенный Principal
const PrincipalKey = "principal"

type principalCtxKey struct{}

// TokenVerifier проверяет bearer-токен и возвращает Principal
type TokenVerifier interface {
	Verify(token string) (*entity.Principal, error)
}

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware создает middleware поверх сервиса токенов
func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth проверяет, аутентифицирован ли пользователь или администратор
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := m.authenticate(c); !ok {
			return
		}
		c.Next()
	}
}

// RequireAdmin проверяет роль admin у Principal, установленного RequireAuth.
// Должен применяться ПОСЛЕ RequireAuth.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
			return
		}
		if !p.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin rights required", "error_type": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireAdminAuth объединяет проверку токена и роли admin в одном обработчике
func (m *AuthMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := m.authenticate(c)
		if !ok {
			return
		}
		if !p.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin rights required", "error_type": "forbidden"})
			return
		}
		c.Next()
	}
}

// authenticate извлекает и проверяет токен. При ошибке запрос уже прерван.
func (m *AuthMiddleware) authenticate(c *gin.Context) (*entity.Principal, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required", "error_type": "token_missing"})
		return nil, false
	}

	// Проверяем формат заголовка Bearer {token}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
		return nil, false
	}

	p, err := m.verifier.Verify(parts[1])
	if err != nil {
		if errors.Is(err, auth.ErrSigningSecretMissing) {
			logger.FromContext(c.Request.Context(), "AuthMiddleware").WithError(err).Error("[AuthMiddleware] Token verification is misconfigured")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
			return nil, false
		}
		errorType := "token_invalid"
		if errors.Is(err, apperrors.ErrExpiredToken) {
			errorType = "token_expired"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": errorType})
		return nil, false
	}

	c.Set(PrincipalKey, p)
	c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
	return p, true
}

// PrincipalFrom возвращает Principal, установленный RequireAuth
func PrincipalFrom(c *gin.Context) (*entity.Principal, bool) {
	v, exists := c.Get(PrincipalKey)
	if !exists {
		return nil, false
	}
	p, ok := v.(*entity.Principal)
	return p, ok && p != nil
}

// WithPrincipal сохраняет Principal в context.Context запроса
func WithPrincipal(ctx context.Context, p *entity.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext возвращает Principal из context.Context или nil
func PrincipalFromContext(ctx context.Context) *entity.Principal {
	p, _ := ctx.Value(principalCtxKey{}).(*entity.Principal)
	return p
}
