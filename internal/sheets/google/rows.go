package google

import (
	"fmt"
	"strconv"
	"strings"
)

// rowRun is a half-open range of 0-based row indexes.
type rowRun struct {
	start, end int
}

func firstColumn(values [][]any) []string {
	out := make([]string, len(values))
	for i, row := range values {
		if len(row) > 0 {
			out[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return out
}

// matchingRuns groups the rows whose id cell equals expenseID into
// contiguous runs, in ascending order.
func matchingRuns(ids []string, expenseID int64) []rowRun {
	var runs []rowRun
	for i, cell := range ids {
		id, err := strconv.ParseInt(cell, 10, 64)
		if err != nil || id != expenseID {
			continue
		}
		if n := len(runs); n > 0 && runs[n-1].end == i {
			runs[n-1].end = i + 1
			continue
		}
		runs = append(runs, rowRun{start: i, end: i + 1})
	}
	return runs
}

func rowsIn(runs []rowRun) int {
	n := 0
	for _, r := range runs {
		n += r.end - r.start
	}
	return n
}
