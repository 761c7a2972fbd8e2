// Package hospdir loads the reference directory of hospitals that must appear
// in the published table even on days they report nothing.
package hospdir

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/hospmon/internal/monitor"
)

// Directory is a deduplicated, ordered set of hospitals keyed by EDRPOU code.
type Directory struct {
	hospitals []monitor.Hospital
	byID      map[string]int
}

// New builds a Directory. Text fields are trimmed and NFC-normalized; entries
// without an id are dropped and the first entry of a repeated id wins.
func New(hospitals []monitor.Hospital) *Directory {
	d := &Directory{byID: make(map[string]int, len(hospitals))}
	for _, h := range hospitals {
		h = monitor.Hospital{
			ID:        clean(h.ID),
			LegalName: clean(h.LegalName),
			Region:    clean(h.Region),
			Lat:       clean(h.Lat),
			Lng:       clean(h.Lng),
		}
		if h.ID == "" {
			continue
		}
		if _, dup := d.byID[h.ID]; dup {
			continue
		}
		d.byID[h.ID] = len(d.hospitals)
		d.hospitals = append(d.hospitals, h)
	}
	return d
}

// Hospitals returns the entries in load order.
func (d *Directory) Hospitals() []monitor.Hospital {
	if d == nil {
		return nil
	}
	out := make([]monitor.Hospital, len(d.hospitals))
	copy(out, d.hospitals)
	return out
}

// Lookup returns the hospital with the given id.
func (d *Directory) Lookup(id string) (monitor.Hospital, bool) {
	if d == nil {
		return monitor.Hospital{}, false
	}
	i, ok := d.byID[clean(id)]
	if !ok {
		return monitor.Hospital{}, false
	}
	return d.hospitals[i], true
}

// Len returns the number of hospitals.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.hospitals)
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
