package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/pulse-api/internal/handler/dto"
	"github.com/yourusername/pulse-api/internal/middleware"
	"github.com/yourusername/pulse-api/internal/service"
)

// AdminSignupKeyHeader - заголовок с ключом регистрации администратора
const AdminSignupKeyHeader = "X-Admin-Signup-Key"

// AuthHandler обрабатывает запросы, связанные с аутентификацией
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler создает новый обработчик аутентификации
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Signup регистрирует пользователя
// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.Signup(c.Request.Context(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, "AuthHandler", err)
		return
	}

	c.JSON(http.StatusCreated, dto.AuthResponse{Token: result.Token, User: dto.NewPrincipalResponse(result.Principal)})
}

// Login аутентифицирует пользователя
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		respondError(c, "AuthHandler", err)
		return
	}

	c.JSON(http.StatusOK, dto.AuthResponse{Token: result.Token, User: dto.NewPrincipalResponse(result.Principal)})
}

// Me возвращает аутентифицированного принципала
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
		return
	}
	c.JSON(http.StatusOK, dto.NewPrincipalResponse(p))
}

// AdminSignup регистрирует администратора по ключу из заголовка
// POST /api/admin/signup
func (h *AuthHandler) AdminSignup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.SignupAdmin(c.Request.Context(), c.GetHeader(AdminSignupKeyHeader), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, "AuthHandler", err)
		return
	}

	c.JSON(http.StatusCreated, dto.AuthResponse{Token: result.Token, User: dto.NewPrincipalResponse(result.Principal)})
}

// AdminLogin аутентифицирует администратора
// POST /api/admin/login
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.LoginAdmin(c.Request.Context(), service.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		respondError(c, "AuthHandler", err)
		return
	}

	c.JSON(http.StatusOK, dto.AuthResponse{Token: result.Token, User: dto.NewPrincipalResponse(result.Principal)})
}
