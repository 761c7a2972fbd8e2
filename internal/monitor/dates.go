package monitor

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DateCorrections maps known-bad report date literals to their intended value.
// Matching is exact; anything else is left for the date parser to reject.
type DateCorrections map[string]string

// DefaultFeedCorrections are applied to the raw feed before aggregation.
func DefaultFeedCorrections() DateCorrections {
	return DateCorrections{
		"2002-05-22": "2020-05-22",
		"2010-05-24": "2020-05-24",
	}
}

// DefaultAggregateCorrections are applied by Aggregate before parsing dates.
func DefaultAggregateCorrections() DateCorrections {
	return DateCorrections{
		"2002-05-21": "2020-05-21",
		"2002-05-22": "2020-05-22",
	}
}

// Correct returns the corrected literal for s, or s itself.
func (d DateCorrections) Correct(s string) string {
	if fixed, ok := d[s]; ok {
		return fixed
	}
	return s
}

// CorrectDates returns a copy of records with report dates rewritten by table.
func CorrectDates(records []CaseRecord, table DateCorrections) []CaseRecord {
	out := make([]CaseRecord, len(records))
	for i, r := range records {
		r.ReportDate = table.Correct(r.ReportDate)
		out[i] = r
	}
	return out
}

// ParseReportDate parses a YYYY-MM-DD report date.
func ParseReportDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "monitor: invalid report date %q", s)
	}
	return t, nil
}

// distinctDates returns every report date present in rows, ascending.
func distinctDates(rows []Row) []time.Time {
	seen := make(map[time.Time]struct{}, 64)
	var dates []time.Time
	for _, r := range rows {
		if _, ok := seen[r.Date]; ok {
			continue
		}
		seen[r.Date] = struct{}{}
		dates = append(dates, r.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// sortRows orders rows by date, then hospital key.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Key < rows[j].Key
	})
}
