package monitor

import (
	"time"

	"github.com/rotisserie/eris"
)

// AggregateOptions configures Aggregate.
type AggregateOptions struct {
	// DateCorrections are applied to every report date before parsing.
	DateCorrections DateCorrections
}

type groupKey struct {
	date time.Time
	key  string
}

type group struct {
	row   Row
	dists [4]Distribution
}

// Aggregate collapses case records into one row per (report date, hospital key).
//
// Counts are summed. Region, name and coordinates come from the first record of
// the group. Each categorical label is weighted by the record's active_confirm
// count and rendered as a distribution string in first-seen label order.
func Aggregate(records []CaseRecord, opts AggregateOptions) ([]Row, error) {
	groups := make(map[groupKey]*group)
	var order []groupKey

	for i, rec := range records {
		date, err := ParseReportDate(opts.DateCorrections.Correct(rec.ReportDate))
		if err != nil {
			return nil, eris.Wrapf(err, "monitor: aggregate record %d", i)
		}
		if rec.ActiveConfirm < 0 {
			return nil, eris.Errorf("monitor: aggregate record %d: negative active_confirm %d for hospital %q",
				i, rec.ActiveConfirm, rec.HospitalID)
		}

		gk := groupKey{date: date, key: HospitalKeyFor(rec.HospitalID, rec.RegistrationArea)}
		g, ok := groups[gk]
		if !ok {
			g = &group{row: Row{
				Date:             date,
				Key:              gk.key,
				HospitalID:       rec.HospitalID,
				RegistrationArea: rec.RegistrationArea,
				TotalArea:        rec.PriorityArea,
				LegalName:        rec.LegalName,
				Lat:              rec.Lat,
				Lng:              rec.Lng,
			}}
			groups[gk] = g
			order = append(order, gk)
		}

		g.row.Counts = g.row.Counts.Add(rec.Counts)
		for _, c := range Categories() {
			g.dists[c].Add(rec.Label(c), rec.ActiveConfirm)
		}
	}

	rows := make([]Row, 0, len(order))
	for _, gk := range order {
		g := groups[gk]
		row := g.row
		for _, c := range Categories() {
			row.setSummary(c, g.dists[c].String())
		}
		rows = append(rows, row)
	}
	sortRows(rows)
	return rows, nil
}
