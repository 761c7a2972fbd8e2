package export

import (
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hospmon/internal/monitor"
)

// ParquetRow is the Parquet schema of the artifact. Distribution columns are
// null when categories are dropped.
type ParquetRow struct {
	ZvitDate         string  `parquet:"zvit_date"`
	RegistrationArea string  `parquet:"registration_area"`
	TotalArea        string  `parquet:"total_area"`
	EdrpouHosp       string  `parquet:"edrpou_hosp"`
	LegalEntityName  string  `parquet:"legal_entity_name_hosp"`
	Lat              float64 `parquet:"lat"`
	Lng              float64 `parquet:"lng"`
	PersonGender     string  `parquet:"person_gender,optional"`
	PersonAgeGroup   string  `parquet:"person_age_group,optional"`
	AddConditions    string  `parquet:"add_conditions,optional"`
	IsMedicalWorker  string  `parquet:"is_medical_worker,optional"`
	NewSusp          int64   `parquet:"new_susp"`
	NewConfirm       int64   `parquet:"new_confirm"`
	ActiveConfirm    int64   `parquet:"active_confirm"`
	NewDeath         int64   `parquet:"new_death"`
	NewRecover       int64   `parquet:"new_recover"`
	PendingSusp      int64   `parquet:"pending_susp"`
}

const parquetBatch = 10_000

// WriteParquet writes res as a zstd-compressed Parquet file.
func WriteParquet(w io.Writer, res *monitor.Result) error {
	pw := parquet.NewGenericWriter[ParquetRow](w,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.DataPageStatistics(true),
		parquet.CreatedBy("hospmon", "1.0", ""),
	)

	batch := make([]ParquetRow, 0, min(parquetBatch, len(res.Rows)))
	for _, r := range res.Rows {
		batch = append(batch, toParquet(r, res.Categories))
		if len(batch) == parquetBatch {
			if _, err := pw.Write(batch); err != nil {
				return eris.Wrap(err, "export: write parquet rows")
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if _, err := pw.Write(batch); err != nil {
			return eris.Wrap(err, "export: write parquet rows")
		}
	}

	if err := pw.Close(); err != nil {
		return eris.Wrap(err, "export: close parquet writer")
	}
	return nil
}

func toParquet(r monitor.FinalRow, categories bool) ParquetRow {
	p := ParquetRow{
		ZvitDate:         r.Date.Format(monitor.DateLayout),
		RegistrationArea: r.RegistrationArea,
		TotalArea:        r.TotalArea,
		EdrpouHosp:       r.HospitalID,
		LegalEntityName:  r.LegalName,
		Lat:              r.Lat,
		Lng:              r.Lng,
		NewSusp:          r.NewSusp,
		NewConfirm:       r.NewConfirm,
		ActiveConfirm:    r.ActiveConfirm,
		NewDeath:         r.NewDeath,
		NewRecover:       r.NewRecover,
		PendingSusp:      r.PendingSusp,
	}
	if categories {
		p.PersonGender = r.Gender
		p.PersonAgeGroup = r.AgeGroup
		p.AddConditions = r.Conditions
		p.IsMedicalWorker = r.MedicalWorker
	}
	return p
}
