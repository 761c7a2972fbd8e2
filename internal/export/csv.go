package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hospmon/internal/monitor"
)

// Delimiter separates artifact columns.
const Delimiter = ';'

// Columns returns the artifact header. The four distribution columns are
// included only when categories is true.
func Columns(categories bool) []string {
	cols := []string{
		"zvit_date", "registration_area", "total_area", "edrpou_hosp",
		"legal_entity_name_hosp", "lat", "lng",
	}
	if categories {
		for _, c := range monitor.Categories() {
			cols = append(cols, c.Column())
		}
	}
	for _, m := range monitor.DefaultMetrics() {
		cols = append(cols, string(m))
	}
	return append(cols, "pending_susp")
}

// WriteCSV writes res as ';'-separated text with a header row.
func WriteCSV(w io.Writer, res *monitor.Result) error {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter

	if err := cw.Write(Columns(res.Categories)); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}

	record := make([]string, 0, len(Columns(true)))
	for _, r := range res.Rows {
		record = append(record[:0],
			r.Date.Format(monitor.DateLayout),
			r.RegistrationArea,
			r.TotalArea,
			r.HospitalID,
			r.LegalName,
			formatFloat(r.Lat),
			formatFloat(r.Lng),
		)
		if res.Categories {
			record = append(record, r.Gender, r.AgeGroup, r.Conditions, r.MedicalWorker)
		}
		for _, m := range monitor.DefaultMetrics() {
			record = append(record, strconv.FormatInt(r.Get(m), 10))
		}
		record = append(record, strconv.FormatInt(r.PendingSusp, 10))

		if err := cw.Write(record); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
