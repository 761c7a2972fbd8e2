package monitor

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultPendingOffsetDays is the look-back of the pending suspicion window.
const DefaultPendingOffsetDays = 2

// PendingEntry is the trailing new_susp sum of one hospital key at one report date.
type PendingEntry struct {
	Date        time.Time
	Key         string
	PendingSusp int64
}

// PendingSuspicion computes, for every report date D in rows and every hospital
// key with at least one row in [D-offsetDays, D], the sum of new_susp over that window.
func PendingSuspicion(rows []Row, offsetDays int) ([]PendingEntry, error) {
	if offsetDays < 0 {
		return nil, eris.Errorf("monitor: pending: negative offset %d", offsetDays)
	}

	var entries []PendingEntry
	for _, d := range distinctDates(rows) {
		from := d.AddDate(0, 0, -offsetDays)

		sums := make(map[string]int64)
		for _, r := range rows {
			if r.Date.Before(from) || r.Date.After(d) {
				continue
			}
			sums[r.Key] += r.NewSusp
		}

		keys := make([]string, 0, len(sums))
		for k := range sums {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			entries = append(entries, PendingEntry{Date: d, Key: k, PendingSusp: sums[k]})
		}
	}
	return entries, nil
}

// MergePending returns a copy of rows with PendingSusp set from PendingSuspicion.
// Rows without a window entry keep a nil PendingSusp.
func MergePending(rows []Row, offsetDays int) ([]Row, error) {
	entries, err := PendingSuspicion(rows, offsetDays)
	if err != nil {
		return nil, err
	}

	byKey := make(map[groupKey]int64, len(entries))
	for _, e := range entries {
		byKey[groupKey{date: e.Date, key: e.Key}] = e.PendingSusp
	}

	out := make([]Row, len(rows))
	for i, r := range rows {
		r.PendingSusp = nil
		if v, ok := byKey[groupKey{date: r.Date, key: r.Key}]; ok {
			r.PendingSusp = int64Ptr(v)
		}
		out[i] = r
	}
	return out, nil
}
