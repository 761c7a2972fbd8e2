package store

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/hospmon/internal/monitor"
)

// snapshotColumns is the column order of hospital_daily writes.
var snapshotColumns = []string{
	"report_date",
	"total_area",
	"hospital_id",
	"registration_area",
	"legal_name",
	"lat",
	"lng",
	"location",
	"person_gender",
	"person_age_group",
	"add_conditions",
	"is_medical_worker",
	"new_susp",
	"new_confirm",
	"active_confirm",
	"new_death",
	"new_recover",
	"pending_susp",
	"run_id",
}

var snapshotKeys = []string{"report_date", "total_area", "hospital_id"}

// selectSnapshot lists the columns read back into a FinalRow.
const selectSnapshot = `report_date, total_area, hospital_id, registration_area, legal_name, lat, lng,
	person_gender, person_age_group, add_conditions, is_medical_worker,
	new_susp, new_confirm, active_confirm, new_death, new_recover, pending_susp`

// encodeLocation returns the hospital point as EWKB with SRID 4326, or nil
// when the directory has no coordinates for it.
func encodeLocation(lat, lng float64) ([]byte, error) {
	if lat == 0 && lng == 0 {
		return nil, nil
	}
	g := geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(4326)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode location")
	}
	return data, nil
}

// snapshotValues flattens r in snapshotColumns order. reportDate is passed
// through so each backend can choose its date encoding.
func snapshotValues(runID string, reportDate any, r monitor.FinalRow) ([]any, error) {
	loc, err := encodeLocation(r.Lat, r.Lng)
	if err != nil {
		return nil, eris.Wrapf(err, "hospital %q", r.HospitalID)
	}
	return []any{
		reportDate,
		r.TotalArea,
		r.HospitalID,
		r.RegistrationArea,
		r.LegalName,
		r.Lat,
		r.Lng,
		loc,
		r.Gender,
		r.AgeGroup,
		r.Conditions,
		r.MedicalWorker,
		r.NewSusp,
		r.NewConfirm,
		r.ActiveConfirm,
		r.NewDeath,
		r.NewRecover,
		r.PendingSusp,
		runID,
	}, nil
}

// regionTotals rolls rows up by TotalArea, sorted by region.
func regionTotals(runID string, rows []monitor.FinalRow) []RegionTotal {
	byArea := make(map[string]*RegionTotal)
	hospitals := make(map[string]map[string]struct{})
	for _, r := range rows {
		t, ok := byArea[r.TotalArea]
		if !ok {
			t = &RegionTotal{RunID: runID, TotalArea: r.TotalArea}
			byArea[r.TotalArea] = t
			hospitals[r.TotalArea] = make(map[string]struct{})
		}
		t.NewConfirm += r.NewConfirm
		t.NewDeath += r.NewDeath
		t.NewRecover += r.NewRecover
		hospitals[r.TotalArea][r.HospitalID] = struct{}{}
	}

	out := make([]RegionTotal, 0, len(byArea))
	for area, t := range byArea {
		t.Hospitals = len(hospitals[area])
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalArea < out[j].TotalArea })
	return out
}
