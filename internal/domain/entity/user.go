package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
)

// MaxPasswordBytes - предел bcrypt, более длинные пароли не хешируются
const MaxPasswordBytes = 72

// Роли принципалов
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User представляет пользователя в системе
type User struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string      `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email     string      `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password  string      `gorm:"size:100;not null" json:"-"`
	Roles     StringArray `gorm:"type:jsonb;not null" json:"roles"`
	CreatedAt time.Time   `gorm:"not null" json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "users"
}

// BeforeCreate назначает UUID, роль по умолчанию и время создания
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Roles = StringArray(NormalizeRoles(u.Roles, RoleUser))
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BeforeSave хеширует пароль перед сохранением, только если он не является bcrypt-хешем
func (u *User) BeforeSave(tx *gorm.DB) error {
	hashed, err := hashPassword(u.Password)
	if err != nil {
		logrus.WithField("component", "User.BeforeSave").Errorf("Ошибка при хешировании пароля для email=%s: %v", u.Email, err)
		return err
	}
	u.Password = hashed
	return nil
}

// CheckPassword проверяет, соответствует ли переданный пароль хешу
func (u *User) CheckPassword(password string) bool {
	return checkPassword(u.Password, password)
}

// Principal возвращает принципала пользователя
func (u *User) Principal() *Principal {
	return &Principal{
		ID:          u.ID.String(),
		Username:    u.Username,
		Email:       u.Email,
		Roles:       NormalizeRoles(u.Roles, RoleUser),
		SubjectType: SubjectUser,
	}
}

// Admin хранится в отдельной таблице и всегда имеет роль admin.
// Роль не хранится, а назначается при выдаче токена.
type Admin struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Admin) TableName() string {
	return "admins"
}

// BeforeCreate назначает UUID и время создания
func (a *Admin) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BeforeSave хеширует пароль администратора
func (a *Admin) BeforeSave(tx *gorm.DB) error {
	hashed, err := hashPassword(a.Password)
	if err != nil {
		logrus.WithField("component", "Admin.BeforeSave").Errorf("Ошибка при хешировании пароля для email=%s: %v", a.Email, err)
		return err
	}
	a.Password = hashed
	return nil
}

// CheckPassword проверяет пароль администратора
func (a *Admin) CheckPassword(password string) bool {
	return checkPassword(a.Password, password)
}

// Principal возвращает принципала администратора с явной ролью admin
func (a *Admin) Principal() *Principal {
	return &Principal{
		ID:          a.ID.String(),
		Username:    a.Username,
		Email:       a.Email,
		Roles:       []string{RoleAdmin},
		Role:        RoleAdmin,
		SubjectType: SubjectAdmin,
	}
}

// NormalizeEmail приводит email к нижнему регистру без пробелов по краям
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isBcryptHash проверяет, что строка является разбираемым bcrypt-хешем, а не только похожа на него
func isBcryptHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// hashPassword хеширует пароль. Пустой или уже хешированный возвращается без изменений
func hashPassword(password string) (string, error) {
	if password == "" || isBcryptHash(password) {
		return password, nil
	}
	if len(password) > MaxPasswordBytes {
		return "", fmt.Errorf("%w: password must be at most %d bytes", apperrors.ErrValidation, MaxPasswordBytes)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
