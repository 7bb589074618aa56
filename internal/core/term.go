package core

import "time"

// ComputeEndDate advances start by termMonths whole months. Day-of-month is
// kept when the target month has it; otherwise time.AddDate normalisation
// rolls the overflow into the following month (Jan 31 + 1 = Mar 2 or 3).
func ComputeEndDate(start time.Time, termMonths int) time.Time {
	return start.AddDate(0, termMonths, 0)
}

