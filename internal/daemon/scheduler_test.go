package daemon

import (
	"testing"
	"time"
)

func TestNextSweep(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2026, 8, 29, 1, 30, 0, 0, time.UTC),
			hour: 2,
			want: time.Date(2026, 8, 29, 2, 0, 0, 0, time.UTC),
		},
		{
			name: "already past, tomorrow",
			now:  time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC),
			hour: 2,
			want: time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly on the slot rolls over",
			now:  time.Date(2026, 8, 29, 2, 0, 0, 0, time.UTC),
			hour: 2,
			want: time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC),
		},
		{
			name: "midnight hour",
			now:  time.Date(2026, 8, 29, 23, 59, 0, 0, time.UTC),
			hour: 0,
			want: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextSweep(tc.now, tc.hour)
			if !got.Equal(tc.want) {
				t.Errorf("nextSweep(%v, %d) = %v, want %v", tc.now, tc.hour, got, tc.want)
			}
		})
	}
}

func TestNewSchedulerClampsInputs(t *testing.T) {
	s := NewScheduler(nil, nil, 0, 99, false)
	if s.interval != 5*time.Minute {
		t.Errorf("interval = %v", s.interval)
	}
	if s.sweepHour != 2 {
		t.Errorf("sweepHour = %d", s.sweepHour)
	}
}
