package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pulse-api/internal/domain/entity"
)

type answerFixture struct {
	userID string
	at     string
}

// storeBucket воспроизводит значение, которое вернет Postgres для выражения стратегии
func storeBucket(t *testing.T, b MinuteBucketer, ts time.Time) interface{} {
	t.Helper()
	utc := ts.UTC()
	switch b.(type) {
	case NativeBucketer:
		// timestamp without time zone драйвер возвращает в UTC
		return utc.Truncate(time.Minute)
	case FormattedBucketer:
		return []byte(utc.Format("2006-01-02T15:04") + ":00")
	}
	t.Fatalf("unknown bucketer %T", b)
	return nil
}

// groupDistinct воспроизводит GROUP BY bucket + COUNT(DISTINCT user_id)
func groupDistinct(t *testing.T, b MinuteBucketer, fixtures []answerFixture) []MinuteRow {
	t.Helper()
	users := map[string]map[string]struct{}{}
	raw := map[string]interface{}{}
	order := []string{}
	for _, f := range fixtures {
		ts, err := time.Parse(time.RFC3339Nano, f.at)
		require.NoError(t, err)
		v := storeBucket(t, b, ts)
		k := ""
		switch x := v.(type) {
		case time.Time:
			k = x.String()
		case []byte:
			k = string(x)
		}
		if _, ok := users[k]; !ok {
			users[k] = map[string]struct{}{}
			raw[k] = v
			order = append(order, k)
		}
		users[k][f.userID] = struct{}{}
	}
	// обратный порядок, чтобы проверить сортировку в BuildSeries
	rows := make([]MinuteRow, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		rows = append(rows, MinuteRow{Bucket: raw[order[i]], Value: int64(len(users[order[i]]))})
	}
	return rows
}

func TestBucketers_AgreeOnSameFixtures(t *testing.T) {
	fixtures := []answerFixture{
		{"u1", "2025-01-01T00:05:00Z"},
		{"u2", "2025-01-01T00:05:30Z"},
		{"u1", "2025-01-01T00:05:59.999Z"},
		{"u3", "2025-01-01T03:06:00+03:00"},
		{"u1", "2025-01-01T10:03:45.123Z"},
		{"u2", "2024-12-31T23:59:59Z"},
	}

	native, err := BuildSeries(groupDistinct(t, NativeBucketer{}, fixtures), NativeBucketer{})
	require.NoError(t, err)
	formatted, err := BuildSeries(groupDistinct(t, FormattedBucketer{}, fixtures), FormattedBucketer{})
	require.NoError(t, err)

	assert.Equal(t, native, formatted, "Обе стратегии должны давать одинаковый результат")
	assert.Equal(t, []entity.TimeBucket{
		{Time: "2024-12-31T23:59:00.000Z", Value: 1},
		{Time: "2025-01-01T00:05:00.000Z", Value: 2},
		{Time: "2025-01-01T00:06:00.000Z", Value: 1},
		{Time: "2025-01-01T10:03:00.000Z", Value: 1},
	}, native)
}

func TestBucketers_Normalize(t *testing.T) {
	want := time.Date(2025, 1, 1, 10, 3, 0, 0, time.UTC)

	tests := []struct {
		name     string
		bucketer MinuteBucketer
		raw      interface{}
	}{
		{"native time", NativeBucketer{}, time.Date(2025, 1, 1, 10, 3, 0, 0, time.UTC)},
		{"native drops seconds", NativeBucketer{}, time.Date(2025, 1, 1, 10, 3, 45, 123, time.UTC)},
		{"native string", NativeBucketer{}, "2025-01-01T10:03:00"},
		{"formatted string", FormattedBucketer{}, "2025-01-01T10:03:00"},
		{"formatted bytes", FormattedBucketer{}, []byte("2025-01-01T10:03:00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.bucketer.Normalize(tt.raw)
			require.NoError(t, err)
			assert.True(t, want.Equal(got))
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestBucketers_NormalizeRejectsGarbage(t *testing.T) {
	_, err := FormattedBucketer{}.Normalize(42)
	assert.Error(t, err)

	_, err = FormattedBucketer{}.Normalize("yesterday")
	assert.Error(t, err)

	_, err = NativeBucketer{}.Normalize(3.14)
	assert.Error(t, err)
}

func TestBucketers_Expr(t *testing.T) {
	assert.Equal(t, "date_trunc('minute', occurred_at AT TIME ZONE 'UTC')", NativeBucketer{}.Expr("occurred_at"))
	assert.Equal(t, `to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:00')`, FormattedBucketer{}.Expr("created_at"))
}

func TestBucketerByName(t *testing.T) {
	b, ok := BucketerByName("native")
	assert.True(t, ok)
	assert.Equal(t, BucketingNative, b.Name())

	b, ok = BucketerByName("formatted")
	assert.True(t, ok)
	assert.Equal(t, BucketingFormatted, b.Name())

	_, ok = BucketerByName("auto")
	assert.False(t, ok, "auto требует проверки хранилища")
}

func TestBuildSeries_Empty(t *testing.T) {
	series, err := BuildSeries(nil, NativeBucketer{})

	require.NoError(t, err)
	assert.NotNil(t, series, "Пустая серия должна быть [] а не null")
	assert.Empty(t, series)
}
