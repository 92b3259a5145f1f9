package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется, когда токен отсутствует, поврежден или недействителен.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у принципала нет требуемой роли.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrExpiredToken оборачивается вместе с ErrUnauthorized для истекших токенов.
	ErrExpiredToken = errors.New("token is expired")

	// ErrConflict используется при нарушении уникальности (username, email).
	ErrConflict = errors.New("already exists")

	// ErrUnavailable используется, пока хранилище недоступно.
	ErrUnavailable = errors.New("dependency unavailable")
)
