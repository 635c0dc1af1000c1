// backend/models/series_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestYearPeriodOrdering(t *testing.T) {
	tests := []struct {
		name string
		a, b YearPeriod
		want int
	}{
		{"earlier year", YearPeriod{2023, "M12"}, YearPeriod{2024, "M01"}, -1},
		{"later year", YearPeriod{2024, "M01"}, YearPeriod{2023, "M12"}, 1},
		{"same year earlier period", YearPeriod{2024, "M01"}, YearPeriod{2024, "M02"}, -1},
		{"monthly vs annual average", YearPeriod{2024, "M12"}, YearPeriod{2024, "M13"}, -1},
		{"quarterly codes", YearPeriod{2024, "Q01"}, YearPeriod{2024, "Q04"}, -1},
		{"equal", YearPeriod{2024, "M05"}, YearPeriod{2024, "M05"}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Compare(tc.b))
			assert.Equal(t, tc.want < 0, tc.a.Before(tc.b))
		})
	}
}
