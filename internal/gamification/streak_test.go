package gamification_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/treevu/internal/gamification"
)

func TestUpdateStreak(t *testing.T) {
	lima, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	type args struct {
		last    time.Time
		current int
		now     time.Time
	}

	type testCase struct {
		name string
		args args
		want int
	}

	tests := []testCase{
		{
			name: "FirstActivity",
			args: args{now: time.Date(2024, 3, 1, 8, 0, 0, 0, lima)},
			want: 1,
		},
		{
			name: "SameDay",
			args: args{
				last:    time.Date(2024, 3, 1, 8, 0, 0, 0, lima),
				current: 5,
				now:     time.Date(2024, 3, 1, 23, 59, 0, 0, lima),
			},
			want: 5,
		},
		{
			name: "NextDayJustAfterMidnight",
			args: args{
				last:    time.Date(2024, 3, 1, 23, 59, 0, 0, lima),
				current: 5,
				now:     time.Date(2024, 3, 2, 0, 1, 0, 0, lima),
			},
			want: 6,
		},
		{
			name: "GapOfTwoDaysResets",
			args: args{
				last:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
				current: 5,
				now:     time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
			},
			want: 1,
		},
		{
			name: "LongStreakStillResets",
			args: args{
				last:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
				current: 365,
				now:     time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
			},
			want: 1,
		},
		{
			name: "MonthBoundaryLeapYear",
			args: args{
				last:    time.Date(2024, 2, 29, 20, 0, 0, 0, time.UTC),
				current: 2,
				now:     time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC),
			},
			want: 3,
		},
		{
			name: "MonthBoundaryNonLeapYearSkipsDay",
			args: args{
				last:    time.Date(2023, 2, 28, 20, 0, 0, 0, time.UTC),
				current: 2,
				now:     time.Date(2023, 3, 2, 7, 0, 0, 0, time.UTC),
			},
			want: 1,
		},
		{
			name: "YearBoundary",
			args: args{
				last:    time.Date(2023, 12, 31, 22, 0, 0, 0, time.UTC),
				current: 9,
				now:     time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
			},
			want: 10,
		},
		{
			name: "SpringForwardShortDay",
			args: args{
				// 2024-03-10 is 23h long in New York.
				last:    time.Date(2024, 3, 10, 0, 30, 0, 0, ny),
				current: 3,
				now:     time.Date(2024, 3, 11, 23, 30, 0, 0, ny),
			},
			want: 4,
		},
		{
			name: "FallBackLongDay",
			args: args{
				// 2024-11-03 is 25h long in New York.
				last:    time.Date(2024, 11, 3, 0, 10, 0, 0, ny),
				current: 3,
				now:     time.Date(2024, 11, 3, 23, 50, 0, 0, ny),
			},
			want: 3,
		},
		{
			name: "LastActivityInOtherZoneUsesNowLocation",
			args: args{
				// 02:00 UTC on the 2nd is still the 1st in Lima.
				last:    time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC),
				current: 4,
				now:     time.Date(2024, 3, 2, 9, 0, 0, 0, lima),
			},
			want: 5,
		},
		{
			name: "OutOfOrderEventLeavesStreak",
			args: args{
				last:    time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
				current: 4,
				now:     time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC),
			},
			want: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gamification.UpdateStreak(tt.args.last, tt.args.current, tt.args.now)
			assert.Equal(t, tt.want, got)

			again := gamification.UpdateStreak(tt.args.last, tt.args.current, tt.args.now)
			assert.Equal(t, got, again)
		})
	}
}
