package monitor

import (
	"sort"
	"time"
)

// InactiveOptions configures FillInactive.
type InactiveOptions struct {
	// Metrics summed into the activity value. Empty means DefaultMetrics.
	Metrics []Metric

	// FillThroughEnd extends zero rows past a hospital's last active date up to
	// the last report date of the table.
	FillThroughEnd bool
}

// FillInactive reconstructs the dense (date × hospital) grid.
//
// For every hospital key, each report date between its first and last
// appearance gets exactly one row. Missing dates become zero rows: counts are 0,
// distributions are empty, and metadata is copied from the most recent earlier
// row of that key. Present rows with zero activity lose their distributions;
// rows with activity pass through unchanged.
func FillInactive(rows []Row, opts InactiveOptions) []Row {
	if len(rows) == 0 {
		return nil
	}

	dates := distinctDates(rows)
	lastGlobal := dates[len(dates)-1]

	byKey := make(map[string][]Row)
	for _, r := range rows {
		byKey[r.Key] = append(byKey[r.Key], r)
	}
	keys := make([]string, 0, len(byKey))
	for k, krows := range byKey {
		keys = append(keys, k)
		sort.SliceStable(krows, func(i, j int) bool { return krows[i].Date.Before(krows[j].Date) })
	}
	sort.Strings(keys)

	out := make([]Row, 0, len(rows))
	for _, k := range keys {
		krows := byKey[k]
		first := krows[0].Date
		last := krows[len(krows)-1].Date
		if opts.FillThroughEnd {
			last = lastGlobal
		}

		next := 0
		var latest Row
		for _, d := range dates {
			if d.Before(first) || d.After(last) {
				continue
			}

			present := false
			for next < len(krows) && krows[next].Date.Equal(d) {
				r := krows[next]
				if r.Counts.Activity(opts.Metrics) == 0 {
					r.clearSummaries()
				}
				out = append(out, r)
				latest = krows[next]
				present = true
				next++
			}
			if !present {
				out = append(out, zeroRow(latest, d))
			}
		}
	}

	sortRows(out)
	return out
}

// zeroRow builds a synthetic no-activity row for date d carrying src's metadata.
func zeroRow(src Row, d time.Time) Row {
	return Row{
		Date:             d,
		Key:              src.Key,
		HospitalID:       src.HospitalID,
		RegistrationArea: src.RegistrationArea,
		TotalArea:        src.TotalArea,
		LegalName:        src.LegalName,
		Lat:              src.Lat,
		Lng:              src.Lng,
	}
}
