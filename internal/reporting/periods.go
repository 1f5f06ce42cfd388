// internal/reporting/periods.go
package reporting

import (
	"fmt"
	"time"
)

// yearSpan is how many trailing years the year-bucketed report covers.
const yearSpan = 5

// fillPeriods expands sparse bucket counts into a dense, ordered series so
// charts render empty buckets as zero. For PeriodYear the series covers the
// yearSpan years ending at year.
func fillPeriods(period Period, year int, counts map[int]int) []PeriodCount {
	switch period {
	case PeriodQuarter:
		out := make([]PeriodCount, 0, 4)
		for q := 1; q <= 4; q++ {
			out = append(out, PeriodCount{Period: q, Name: fmt.Sprintf("Q%d", q), Count: counts[q]})
		}
		return out
	case PeriodYear:
		out := make([]PeriodCount, 0, yearSpan)
		for y := year - yearSpan + 1; y <= year; y++ {
			out = append(out, PeriodCount{Period: y, Name: fmt.Sprintf("%d", y), Count: counts[y]})
		}
		return out
	default:
		out := make([]PeriodCount, 0, 12)
		for m := 1; m <= 12; m++ {
			out = append(out, PeriodCount{Period: m, Name: time.Month(m).String(), Count: counts[m]})
		}
		return out
	}
}

// rank assigns 1-based ranks in place, assuming rows arrive sorted by
// descending borrow count.
func rankBooks(rows []BookRank) []BookRank {
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

func rankUsers(rows []UserRank) []UserRank {
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// overdueRate is the percentage of overdue loans among all borrows,
// rounded to two decimals; zero when there were no borrows.
func overdueRate(totalOverdue, totalBorrows int) float64 {
	if totalBorrows == 0 {
		return 0
	}
	rate := float64(totalOverdue) / float64(totalBorrows) * 100
	return float64(int(rate*100+0.5)) / 100
}
