package interval_test

import (
	"errors"
	"testing"
	"time"

	"github.com/cloudmeter/cloudmeter/domain/interval"
)

var window = interval.Window{
	Start: time.Date(2016, 8, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2016, 9, 1, 0, 0, 0, 0, time.UTC),
}

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(s string) *time.Time {
	t := ts(s)
	return &t
}

func TestNewWindow(t *testing.T) {
	start := ts("2016-08-01 00:00:00")

	if _, err := interval.NewWindow(start, start.AddDate(0, 1, 0)); err != nil {
		t.Fatalf("NewWindow() error = %v", err)
	}

	if _, err := interval.NewWindow(start, start); !errors.Is(err, interval.ErrInvalidWindow) {
		t.Errorf("NewWindow(start == end) error = %v, want ErrInvalidWindow", err)
	}
	if _, err := interval.NewWindow(start.Add(time.Hour), start); !errors.Is(err, interval.ErrInvalidWindow) {
		t.Errorf("NewWindow(start > end) error = %v, want ErrInvalidWindow", err)
	}
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		name      string
		createdAt time.Time
		deletedAt *time.Time
		want      int64
	}{
		{"fully inside", ts("2016-08-03 00:00:00"), tsp("2016-08-20 00:00:00"), 17 * 24 * 3600},
		{"spans whole window", ts("2016-04-01 00:00:00"), tsp("2016-09-02 00:00:00"), 31 * 24 * 3600},
		{"open ended", ts("2016-08-16 00:00:00"), nil, 16 * 24 * 3600},
		{"open ended before window", ts("1990-01-01 00:00:00"), nil, 31 * 24 * 3600},
		{"clipped at start", ts("2016-07-30 00:00:00"), tsp("2016-08-01 12:00:00"), 12 * 3600},
		{"clipped at end", ts("2016-08-24 00:00:00"), tsp("2020-01-04 00:00:00"), 8 * 24 * 3600},
		{"deleted before window", ts("2016-07-09 00:00:00"), tsp("2016-07-20 00:00:00"), 0},
		{"created after window", ts("2016-09-05 00:00:00"), nil, 0},
		{"deleted exactly at window start", ts("2016-07-01 00:00:00"), tsp("2016-08-01 00:00:00"), 0},
		{"created exactly at window end", ts("2016-09-01 00:00:00"), nil, 0},
		{"one second lifetime", ts("2016-08-29 00:00:00"), tsp("2016-08-29 00:00:01"), 1},
		{"zero length lifetime", ts("2016-08-29 00:00:00"), tsp("2016-08-29 00:00:00"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := interval.Overlap(tt.createdAt, tt.deletedAt, window)
			if got != tt.want {
				t.Errorf("Overlap() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBilledHours(t *testing.T) {
	tests := []struct {
		name    string
		seconds int64
		want    int64
	}{
		{"zero", 0, 0},
		{"negative", -5, 0},
		{"one second rounds up", 1, 1},
		{"just under an hour", 3599, 1},
		{"exactly one hour", 3600, 1},
		{"one hour one second", 3601, 2},
		{"full window", window.Seconds(), 744},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := interval.BilledHours(tt.seconds)
			if got != tt.want {
				t.Errorf("BilledHours(%d) = %d, want %d", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestOverlap_FullContainmentBillsWholeWindow(t *testing.T) {
	secs := interval.Overlap(ts("1867-07-01 00:00:00"), tsp("2040-09-04 00:00:00"), window)
	if got := interval.BilledHours(secs); got != 744 {
		t.Errorf("BilledHours = %d, want 744", got)
	}
}
