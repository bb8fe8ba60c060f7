// Package sales buckets subscription start times into a calendar-month histogram.
//
// Months are derived in UTC so the same data always lands in the same bucket
// regardless of the server's local zone.
package sales

import "time"

// Months are the report buckets in calendar order.
var Months = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Report is a monthly histogram. ByMonth always holds all 12 month names;
// Counts holds the same values in calendar order for charting.
type Report struct {
	ByMonth map[string]int `json:"finalMonths"`
	Counts  [12]int        `json:"monthlySalesRecord"`
}

// Build counts each timestamp in the bucket of its UTC calendar month.
// Zero timestamps are ignored.
func Build(starts []time.Time) Report {
	var counts [12]int
	for _, ts := range starts {
		if ts.IsZero() {
			continue
		}
		counts[ts.UTC().Month()-1]++
	}

	byMonth := make(map[string]int, len(Months))
	for i, name := range Months {
		byMonth[name] = counts[i]
	}
	return Report{ByMonth: byMonth, Counts: counts}
}
