package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/pulse-api/internal/domain/entity"
)

func TestNormalizeDow(t *testing.T) {
	tests := []struct {
		name       string
		native     int
		convention DowConvention
		want       int
	}{
		{"iso sunday", 7, DowISO, 0},
		{"iso monday", 1, DowISO, 1},
		{"iso saturday", 6, DowISO, 6},
		{"sunday-one sunday", 1, DowSundayOne, 0},
		{"sunday-one saturday", 7, DowSundayOne, 6},
		{"sunday-zero", 3, DowSundayZero, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDow(tt.native, tt.convention))
		})
	}
}

func TestBuildHeatmap_SundayMidnight(t *testing.T) {
	// Воскресенье 00:00 UTC в ISODOW = 7
	cells := BuildHeatmap([]HeatmapRow{{Dow: 7, Hour: 0, Count: 1}}, DowISO)

	assert.Equal(t, []entity.HeatmapCell{{Hour: 0, Dow: 0, Count: 1}}, cells)
}

func TestBuildHeatmap_SortedByDowThenHour(t *testing.T) {
	rows := []HeatmapRow{
		{Dow: 2, Hour: 5, Count: 3},
		{Dow: 7, Hour: 23, Count: 1},
		{Dow: 1, Hour: 9, Count: 2},
		{Dow: 1, Hour: 1, Count: 4},
		{Dow: 7, Hour: 2, Count: 6},
	}

	cells := BuildHeatmap(rows, DowISO)

	assert.Equal(t, []entity.HeatmapCell{
		{Hour: 2, Dow: 0, Count: 6},
		{Hour: 23, Dow: 0, Count: 1},
		{Hour: 1, Dow: 1, Count: 4},
		{Hour: 9, Dow: 1, Count: 2},
		{Hour: 5, Dow: 2, Count: 3},
	}, cells)
}

func TestBuildHeatmap_SameResultAcrossConventions(t *testing.T) {
	iso := BuildHeatmap([]HeatmapRow{{Dow: 7, Hour: 4, Count: 2}, {Dow: 3, Hour: 4, Count: 1}}, DowISO)
	sundayOne := BuildHeatmap([]HeatmapRow{{Dow: 1, Hour: 4, Count: 2}, {Dow: 4, Hour: 4, Count: 1}}, DowSundayOne)

	assert.Equal(t, iso, sundayOne)
}

func TestBuildHeatmap_Empty(t *testing.T) {
	cells := BuildHeatmap(nil, DowISO)

	assert.NotNil(t, cells)
	assert.Empty(t, cells)
}
