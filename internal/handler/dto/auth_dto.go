package dto

import "github.com/yourusername/pulse-api/internal/domain/entity"

// SignupRequest представляет запрос на регистрацию
type SignupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// PrincipalResponse - публичное представление Principal
type PrincipalResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Role        string   `json:"role,omitempty"`
	SubjectType string   `json:"subjectType"`
}

// AuthResponse - токен и данные принципала
type AuthResponse struct {
	Token string             `json:"token"`
	User  *PrincipalResponse `json:"user"`
}

// NewPrincipalResponse создает DTO принципала
func NewPrincipalResponse(p *entity.Principal) *PrincipalResponse {
	if p == nil {
		return nil
	}
	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}
	return &PrincipalResponse{
		ID:          p.ID,
		Username:    p.Username,
		Email:       p.Email,
		Roles:       roles,
		Role:        p.Role,
		SubjectType: string(p.SubjectType),
	}
}
