package core

import (
	"fmt"
	"sort"
)

// MonthlySeries is a chart-ready count of operations per start month.
type MonthlySeries struct {
	Labels []string `json:"labels"` // YYYY-MM, ascending
	Counts []int    `json:"counts"`
}

// AggregateByMonth groups operations by the year and month of their start
// date. Records without a start date are skipped.
func AggregateByMonth(ops []Operation) MonthlySeries {
	buckets := make(map[string]int)
	for _, op := range ops {
		if op.StartDate.IsZero() {
			continue
		}
		buckets[MonthKey(op.StartDate.Year(), int(op.StartDate.Month()))]++
	}

	series := MonthlySeries{
		Labels: make([]string, 0, len(buckets)),
		Counts: make([]int, 0, len(buckets)),
	}
	for k := range buckets {
		series.Labels = append(series.Labels, k)
	}
	sort.Strings(series.Labels)
	for _, k := range series.Labels {
		series.Counts = append(series.Counts, buckets[k])
	}
	return series
}

// MonthKey formats a year and month as YYYY-MM.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// Max returns the largest count, or 0 for an empty series.
func (s MonthlySeries) Max() int {
	m := 0
	for _, c := range s.Counts {
		if c > m {
			m = c
		}
	}
	return m
}

// Total returns the number of operations in the series.
func (s MonthlySeries) Total() int {
	t := 0
	for _, c := range s.Counts {
		t += c
	}
	return t
}
