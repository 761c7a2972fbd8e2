package monitor

import (
	"sort"
	"time"
)

// UnlistedOptions configures FillUnlisted.
type UnlistedOptions struct {
	// Metrics summed into the activity value used for deduplication. Empty means DefaultMetrics.
	Metrics []Metric

	// Regions is applied to the priority region of every row.
	Regions RegionRewrites

	// DropCategories clears the four distribution columns of the result.
	DropCategories bool
}

type finalKey struct {
	date     time.Time
	region   string
	hospital string
}

// FillUnlisted guarantees every directory hospital a row on every report date.
//
// The product of report dates and directory hospitals is zero-filled with
// directory metadata and concatenated after the input rows. Rows sharing
// (date, region, hospital id) are reduced to the one with the highest activity;
// on a tie the earlier row wins, so an input row beats its back-filled twin.
// Every row of the result has a non-nil PendingSusp.
func FillUnlisted(rows []Row, hospitals []Hospital, opts UnlistedOptions) []Row {
	dates := distinctDates(rows)

	candidates := make([]Row, 0, len(rows)+len(dates)*len(hospitals))
	for _, r := range rows {
		if r.PendingSusp == nil {
			r.PendingSusp = int64Ptr(0)
		}
		candidates = append(candidates, r)
	}

	seen := make(map[string]struct{}, len(hospitals))
	var listed []Hospital
	for _, h := range hospitals {
		if _, ok := seen[h.ID]; ok {
			continue
		}
		seen[h.ID] = struct{}{}
		listed = append(listed, h)
	}

	for _, d := range dates {
		for _, h := range listed {
			candidates = append(candidates, Row{
				Date:             d,
				Key:              h.ID,
				HospitalID:       h.ID,
				RegistrationArea: h.Region,
				TotalArea:        h.Region,
				LegalName:        h.LegalName,
				Lat:              h.Lat,
				Lng:              h.Lng,
				PendingSusp:      int64Ptr(0),
			})
		}
	}

	best := make(map[finalKey]int)
	out := make([]Row, 0, len(candidates))
	for _, r := range candidates {
		r.TotalArea = opts.Regions.Apply(r.TotalArea)
		if opts.DropCategories {
			r.clearSummaries()
		}

		fk := finalKey{date: r.Date, region: r.TotalArea, hospital: r.HospitalID}
		idx, ok := best[fk]
		if !ok {
			best[fk] = len(out)
			out = append(out, r)
			continue
		}
		if r.Counts.Activity(opts.Metrics) > out[idx].Counts.Activity(opts.Metrics) {
			out[idx] = r
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.TotalArea != b.TotalArea {
			return a.TotalArea < b.TotalArea
		}
		if a.HospitalID != b.HospitalID {
			return a.HospitalID < b.HospitalID
		}
		return a.Key < b.Key
	})
	return out
}
