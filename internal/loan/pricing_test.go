package loan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestBillableDays(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		due  time.Time
		want int64
	}{
		{"one minute", now.Add(time.Minute), 1},
		{"exactly one day", now.Add(24 * time.Hour), 1},
		{"one day and a second", now.Add(24*time.Hour + time.Second), 2},
		{"three days", now.Add(72 * time.Hour), 3},
		{"already due", now, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BillableDays(now, tt.due))
		})
	}
}

func TestLateDays(t *testing.T) {
	due := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(0), LateDays(due, due))
	assert.Equal(t, int64(0), LateDays(due, due.Add(-time.Hour)))
	assert.Equal(t, int64(0), LateDays(due, due.Add(23*time.Hour)))
	assert.Equal(t, int64(1), LateDays(due, due.Add(24*time.Hour)))
	assert.Equal(t, int64(2), LateDays(due, due.Add(71*time.Hour)))
}

func TestRentalCostProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		now := time.Unix(rapid.Int64Range(0, 4_000_000_000).Draw(t, "now"), 0).UTC()
		ahead := time.Duration(rapid.Int64Range(1, int64(400*day)).Draw(t, "ahead"))
		rate := rapid.Int64Range(0, 1_000_000).Draw(t, "rate")

		days := BillableDays(now, now.Add(ahead))
		if days < 1 {
			t.Fatalf("billable days %d < 1", days)
		}
		// ceil: the billed period covers the loan, and one day less would not
		if time.Duration(days)*day < ahead || time.Duration(days-1)*day >= ahead {
			t.Fatalf("days %d is not the ceiling of %s", days, ahead)
		}
		if got := RentalCost(rate, now, now.Add(ahead)); got != rate*days {
			t.Fatalf("cost %d, want %d", got, rate*days)
		}
	})
}

func TestFineProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		due := time.Unix(rapid.Int64Range(0, 4_000_000_000).Draw(t, "due"), 0).UTC()
		offset := time.Duration(rapid.Int64Range(-int64(30*day), int64(400*day)).Draw(t, "offset"))
		rate := rapid.Int64Range(0, 1_000_000).Draw(t, "rate")

		fine := Fine(rate, due, due.Add(offset))
		if offset <= 0 {
			if fine != 0 {
				t.Fatalf("on-time return fined %d", fine)
			}
			return
		}
		late := LateDays(due, due.Add(offset))
		// floor: the late days fit in the delay, one more would not
		if time.Duration(late)*day > offset || time.Duration(late+1)*day <= offset {
			t.Fatalf("late days %d is not the floor of %s", late, offset)
		}
		if fine != rate*late {
			t.Fatalf("fine %d, want %d", fine, rate*late)
		}
	})
}
