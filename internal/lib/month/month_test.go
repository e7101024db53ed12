package month

import (
	"testing"
	"time"
)

func TestAddClamped_TableTests(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{
			name:   "regular day mid month",
			start:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "january 31 into leap february",
			start:  time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "january 31 into non leap february",
			start:  time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "march 31 into april 30",
			start:  time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "year transition",
			start:  time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "several months forward",
			start:  time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC),
			months: 4,
			want:   time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "keeps time of day",
			start:  time.Date(2024, 5, 31, 13, 45, 30, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, 6, 30, 13, 45, 30, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddClamped(tt.start, tt.months)
			if !got.Equal(tt.want) {
				t.Errorf("AddClamped(%v, %d) = %v, want %v",
					tt.start, tt.months, got, tt.want)
			}
		})
	}
}

func TestAddClamped_DoesNotMutateInput(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	_ = AddClamped(start, 1)

	if start.Day() != 31 {
		t.Errorf("input date mutated: %v", start)
	}
}
