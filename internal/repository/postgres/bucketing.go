package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Стратегии поминутной группировки
const (
	BucketingAuto      = "auto"
	BucketingNative    = "native"
	BucketingFormatted = "formatted"
)

// formattedBucketLayout соответствует to_char(..., 'YYYY-MM-DD"T"HH24:MI:00')
const formattedBucketLayout = "2006-01-02T15:04:05"

// MinuteBucketer строит SQL выражение начала минуты для колонки timestamptz
// и приводит отсканированное значение к time.Time в UTC.
// Обе реализации обязаны давать одинаковый результат на одних и тех же данных.
type MinuteBucketer interface {
	Name() string
	Expr(column string) string
	Normalize(raw interface{}) (time.Time, error)
}

// NativeBucketer использует date_trunc
type NativeBucketer struct{}

// Name возвращает имя стратегии
func (NativeBucketer) Name() string { return BucketingNative }

// Expr возвращает выражение date_trunc в UTC
func (NativeBucketer) Expr(column string) string {
	return fmt.Sprintf("date_trunc('minute', %s AT TIME ZONE 'UTC')", column)
}

// Normalize принимает timestamp без часового пояса, который уже содержит UTC время
func (NativeBucketer) Normalize(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return time.Date(v.Year(), v.Month(), v.Day(), v.Hour(), v.Minute(), 0, 0, time.UTC), nil
	case string, []byte:
		return parseFormattedBucket(raw)
	default:
		return time.Time{}, fmt.Errorf("unexpected bucket value %T", raw)
	}
}

// FormattedBucketer группирует по строковому представлению минуты.
// Используется, если date_trunc недоступен.
type FormattedBucketer struct{}

// Name возвращает имя стратегии
func (FormattedBucketer) Name() string { return BucketingFormatted }

// Expr возвращает выражение to_char в UTC
func (FormattedBucketer) Expr(column string) string {
	return fmt.Sprintf(`to_char(%s AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:00')`, column)
}

// Normalize разбирает строку минуты как UTC
func (FormattedBucketer) Normalize(raw interface{}) (time.Time, error) {
	return parseFormattedBucket(raw)
}

func parseFormattedBucket(raw interface{}) (time.Time, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return time.Time{}, fmt.Errorf("unexpected bucket value %T", raw)
	}
	t, err := time.ParseInLocation(formattedBucketLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse bucket %q: %w", s, err)
	}
	return t, nil
}

// BucketerByName возвращает стратегию по имени из конфигурации
func BucketerByName(name string) (MinuteBucketer, bool) {
	switch name {
	case BucketingNative:
		return NativeBucketer{}, true
	case BucketingFormatted:
		return FormattedBucketer{}, true
	}
	return nil, false
}

// DetectBucketer выбирает стратегию. В режиме auto проверяет поддержку date_trunc.
func DetectBucketer(ctx context.Context, db *gorm.DB, mode string) MinuteBucketer {
	if b, ok := BucketerByName(mode); ok {
		return b
	}

	log := logrus.WithField("component", "Bucketing")
	var probe time.Time
	if err := db.WithContext(ctx).Raw("SELECT date_trunc('minute', now())").Scan(&probe).Error; err != nil {
		log.WithError(err).Warn("date_trunc недоступен, используется группировка по форматированной строке")
		return FormattedBucketer{}
	}
	log.Debug("Используется нативная группировка date_trunc")
	return NativeBucketer{}
}
