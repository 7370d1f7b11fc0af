package loan

import "time"

const day = 24 * time.Hour

// BillableDays is the whole days between from and due, rounded up, never less than one.
func BillableDays(from, due time.Time) int64 {
	d := due.Sub(from)
	if d <= 0 {
		return 1
	}
	n := int64(d / day)
	if d%day != 0 {
		n++
	}
	return n
}

// RentalCost is charged once, when the loan is registered.
func RentalCost(dailyRate int64, from, due time.Time) int64 {
	return dailyRate * BillableDays(from, due)
}

// LateDays is the whole days returned is past due, rounded down. On-time returns have none.
func LateDays(due, returned time.Time) int64 {
	if !returned.After(due) {
		return 0
	}
	return int64(returned.Sub(due) / day)
}

func Fine(dailyFineRate int64, due, returned time.Time) int64 {
	return dailyFineRate * LateDays(due, returned)
}
