package entity

import "strings"

// SubjectType различает пространство имен, из которого выдан токен
type SubjectType string

const (
	SubjectUser  SubjectType = "user"
	SubjectAdmin SubjectType = "admin"
)

// Principal - аутентифицированная личность (пользователь или администратор),
// извлеченная из проверенного токена. Роль является дискриминатором.
type Principal struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	Roles       []string    `json:"roles"`
	Role        string      `json:"role,omitempty"`
	SubjectType SubjectType `json:"subjectType"`
}

// IsAdmin возвращает true, если role или roles содержат admin
func (p *Principal) IsAdmin() bool {
	if p == nil {
		return false
	}
	if p.Role == RoleAdmin {
		return true
	}
	for _, r := range p.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// NormalizeRoles приводит роли к нижнему регистру, убирает дубликаты и
// неизвестные значения. Пустой результат заменяется на fallback, если он задан.
func NormalizeRoles(roles []string, fallback string) []string {
	seen := make(map[string]bool, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != RoleUser && r != RoleAdmin {
			continue
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	if len(out) == 0 && fallback != "" {
		out = append(out, fallback)
	}
	return out
}
