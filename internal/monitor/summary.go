package monitor

import "time"

// Summary holds the headline totals of a published table.
type Summary struct {
	Rows       int       `json:"rows"`
	Dates      int       `json:"dates"`
	Hospitals  int       `json:"hospitals"`
	FirstDate  time.Time `json:"first_date"`
	LastDate   time.Time `json:"last_date"`
	NewConfirm int64     `json:"new_confirm"`
	NewDeath   int64     `json:"new_death"`
	NewRecover int64     `json:"new_recover"`
}

// Summarize computes the totals of rows.
func Summarize(rows []FinalRow) Summary {
	s := Summary{Rows: len(rows)}
	dates := make(map[time.Time]struct{})
	hospitals := make(map[string]struct{})

	for _, r := range rows {
		s.NewConfirm += r.NewConfirm
		s.NewDeath += r.NewDeath
		s.NewRecover += r.NewRecover
		dates[r.Date] = struct{}{}
		hospitals[r.TotalArea+"\x00"+r.HospitalID] = struct{}{}

		if s.FirstDate.IsZero() || r.Date.Before(s.FirstDate) {
			s.FirstDate = r.Date
		}
		if r.Date.After(s.LastDate) {
			s.LastDate = r.Date
		}
	}

	s.Dates = len(dates)
	s.Hospitals = len(hospitals)
	return s
}
