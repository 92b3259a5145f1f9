package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pulse-api/internal/domain/entity"
	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
)

// ErrSigningSecretMissing возвращается, если секрет подписи не настроен.
// Это ошибка конфигурации сервера, а не клиента.
var ErrSigningSecretMissing = errors.New("jwt signing secret is not configured")

// JWTCustomClaims содержит пользовательские поля для токена.
// Один формат для пользователей и администраторов, роль - дискриминатор.
type JWTCustomClaims struct {
	Username    string             `json:"username"`
	Email       string             `json:"email"`
	Roles       []string           `json:"roles"`
	Role        string             `json:"role,omitempty"`
	SubjectType entity.SubjectType `json:"subjectType"`
	jwt.RegisteredClaims
}

// JWTService выдает и проверяет токены доступа (HS256)
type JWTService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
	now        func() time.Time
}

// NewJWTService создает сервис JWT. Пустой secret допускается:
// Issue и Verify будут возвращать ErrSigningSecretMissing.
func NewJWTService(secret string, expiration time.Duration, issuer string) *JWTService {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &JWTService{
		secret:     []byte(secret),
		expiration: expiration,
		issuer:     issuer,
		now:        time.Now,
	}
}

// Issue подписывает токен для принципала
func (s *JWTService) Issue(p *entity.Principal) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrSigningSecretMissing
	}
	if p == nil || p.ID == "" {
		return "", fmt.Errorf("%w: principal id is required", apperrors.ErrValidation)
	}

	claims := claimsFor(p)
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   p.ID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		logrus.WithField("component", "JWT").WithError(err).Errorf("Ошибка подписи токена для subject=%s", p.ID)
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func claimsFor(p *entity.Principal) *JWTCustomClaims {
	claims := &JWTCustomClaims{
		Username:    p.Username,
		Email:       p.Email,
		SubjectType: entity.SubjectUser,
	}
	if p.SubjectType == entity.SubjectAdmin || p.Role == entity.RoleAdmin {
		claims.Roles = withAdmin(p.Roles)
		claims.Role = entity.RoleAdmin
		claims.SubjectType = entity.SubjectAdmin
	} else {
		claims.Roles = entity.NormalizeRoles(p.Roles, entity.RoleUser)
	}
	return claims
}

func withAdmin(roles []string) []string {
	all := make([]string, 0, len(roles)+1)
	all = append(all, entity.RoleAdmin)
	all = append(all, roles...)
	return entity.NormalizeRoles(all, entity.RoleAdmin)
}

// Verify проверяет подпись и срок действия, возвращает нормализованного принципала
func (s *JWTService) Verify(tokenString string) (*entity.Principal, error) {
	if len(s.secret) == 0 {
		return nil, ErrSigningSecretMissing
	}
	if tokenString == "" {
		return nil, fmt.Errorf("%w: token is empty", apperrors.ErrUnauthorized)
	}

	claims := &JWTCustomClaims{}
	parser := jwt.Parser{ValidMethods: []string{
		jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg(),
	}}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, fmt.Errorf("%w: token is malformed", apperrors.ErrUnauthorized)
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				return nil, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, apperrors.ErrExpiredToken)
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				return nil, fmt.Errorf("%w: signature is invalid", apperrors.ErrUnauthorized)
			}
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token", apperrors.ErrUnauthorized)
	}

	p := &entity.Principal{
		ID:          claims.Subject,
		Username:    claims.Username,
		Email:       claims.Email,
		SubjectType: claims.SubjectType,
	}
	if claims.Role == entity.RoleAdmin || claims.SubjectType == entity.SubjectAdmin {
		p.Role = entity.RoleAdmin
		p.Roles = withAdmin(claims.Roles)
	} else {
		p.Roles = entity.NormalizeRoles(claims.Roles, entity.RoleUser)
		p.SubjectType = entity.SubjectUser
	}
	return p, nil
}
