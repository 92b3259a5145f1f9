package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pulse-api/internal/domain/entity"
	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
)

const testSecret = "test-secret-key"

func TestJWTService_UserRoundTrip(t *testing.T) {
	// Arrange
	svc := NewJWTService(testSecret, time.Hour, "pulse-api")
	user := &entity.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com", Roles: entity.StringArray{"User"}}

	// Act
	token, err := svc.Issue(user.Principal())
	require.NoError(t, err)
	p, err := svc.Verify(token)

	// Assert
	require.NoError(t, err, "Только что выданный токен должен проходить проверку")
	assert.Equal(t, user.ID.String(), p.ID)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, []string{entity.RoleUser}, p.Roles)
	assert.Empty(t, p.Role)
	assert.Equal(t, entity.SubjectUser, p.SubjectType)
	assert.False(t, p.IsAdmin())
}

func TestJWTService_AdminRoundTrip(t *testing.T) {
	svc := NewJWTService(testSecret, time.Hour, "pulse-api")
	admin := &entity.Admin{ID: uuid.New(), Username: "root", Email: "root@example.com"}

	token, err := svc.Issue(admin.Principal())
	require.NoError(t, err)
	p, err := svc.Verify(token)

	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, p.Role)
	assert.Equal(t, entity.SubjectAdmin, p.SubjectType)
	assert.Contains(t, p.Roles, entity.RoleAdmin)
	assert.True(t, p.IsAdmin())
}

func TestJWTService_Verify_Errors(t *testing.T) {
	svc := NewJWTService(testSecret, time.Hour, "pulse-api")
	other := NewJWTService("another-secret", time.Hour, "pulse-api")
	principal := &entity.Principal{ID: uuid.NewString(), Username: "bob"}
	foreign, err := other.Issue(principal)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"malformed", "not-a-jwt"},
		{"bad signature", foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		})
	}
}

func TestJWTService_Verify_Expired(t *testing.T) {
	svc := NewJWTService(testSecret, time.Minute, "pulse-api")
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := svc.Issue(&entity.Principal{ID: uuid.NewString(), Username: "bob"})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(token)

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.ErrorIs(t, err, apperrors.ErrExpiredToken, "Истекший токен должен оборачивать ErrExpiredToken")
}

func TestJWTService_RejectsNonHMAC(t *testing.T) {
	svc := NewJWTService(testSecret, time.Hour, "pulse-api")
	claims := &JWTCustomClaims{Username: "mallory", RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(unsigned)

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestJWTService_MissingSecret(t *testing.T) {
	svc := NewJWTService("", time.Hour, "pulse-api")

	_, err := svc.Issue(&entity.Principal{ID: "1"})
	assert.True(t, errors.Is(err, ErrSigningSecretMissing))

	_, err = svc.Verify("anything")
	assert.True(t, errors.Is(err, ErrSigningSecretMissing))
}

func TestJWTService_NormalizesRolesFromClaims(t *testing.T) {
	svc := NewJWTService(testSecret, time.Hour, "pulse-api")

	token, err := svc.Issue(&entity.Principal{ID: "42", Roles: []string{"ADMIN", "user", "user", "root"}})
	require.NoError(t, err)
	p, err := svc.Verify(token)

	require.NoError(t, err)
	assert.Equal(t, []string{entity.RoleAdmin, entity.RoleUser}, p.Roles)
	assert.True(t, p.IsAdmin(), "Пользователь с ролью admin в roles является администратором")
	assert.Equal(t, entity.SubjectUser, p.SubjectType)
}

func TestNewJWTService_DefaultExpiration(t *testing.T) {
	svc := NewJWTService(testSecret, 0, "")

	assert.Equal(t, 24*time.Hour, svc.expiration)
}
