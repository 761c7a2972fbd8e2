// Package monitor turns the per-case hospital line list into the hospital-level
// daily table published on the monitoring dashboard.
package monitor

import "time"

// SelfIsolation is the hospital identifier the feed uses for cases treated at home.
const SelfIsolation = "Самоізоляція"

// DateLayout is the layout of report dates in the feed and in the artifact.
const DateLayout = "2006-01-02"

// Metric names one numeric count column.
type Metric string

const (
	NewSusp       Metric = "new_susp"
	NewConfirm    Metric = "new_confirm"
	ActiveConfirm Metric = "active_confirm"
	NewDeath      Metric = "new_death"
	NewRecover    Metric = "new_recover"
)

// DefaultMetrics lists the count columns summed into a row's activity value.
func DefaultMetrics() []Metric {
	return []Metric{NewSusp, NewConfirm, ActiveConfirm, NewDeath, NewRecover}
}

// Counts holds the five numeric count columns of a row.
type Counts struct {
	NewSusp       int64 `json:"new_susp"`
	NewConfirm    int64 `json:"new_confirm"`
	ActiveConfirm int64 `json:"active_confirm"`
	NewDeath      int64 `json:"new_death"`
	NewRecover    int64 `json:"new_recover"`
}

// Get returns the value of metric m, or 0 for an unknown metric.
func (c Counts) Get(m Metric) int64 {
	switch m {
	case NewSusp:
		return c.NewSusp
	case NewConfirm:
		return c.NewConfirm
	case ActiveConfirm:
		return c.ActiveConfirm
	case NewDeath:
		return c.NewDeath
	case NewRecover:
		return c.NewRecover
	default:
		return 0
	}
}

// Add returns the column-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		NewSusp:       c.NewSusp + o.NewSusp,
		NewConfirm:    c.NewConfirm + o.NewConfirm,
		ActiveConfirm: c.ActiveConfirm + o.ActiveConfirm,
		NewDeath:      c.NewDeath + o.NewDeath,
		NewRecover:    c.NewRecover + o.NewRecover,
	}
}

// Activity sums the given metrics. An empty list means DefaultMetrics.
func (c Counts) Activity(metrics []Metric) int64 {
	if len(metrics) == 0 {
		metrics = DefaultMetrics()
	}
	var total int64
	for _, m := range metrics {
		total += c.Get(m)
	}
	return total
}

// Category is one of the categorical attributes collapsed into a distribution string.
type Category int

const (
	Gender Category = iota
	AgeGroup
	Conditions
	MedicalWorker
)

// Categories lists every categorical attribute in output column order.
func Categories() []Category {
	return []Category{Gender, AgeGroup, Conditions, MedicalWorker}
}

// Column returns the feed and artifact column name of the category.
func (c Category) Column() string {
	switch c {
	case Gender:
		return "person_gender"
	case AgeGroup:
		return "person_age_group"
	case Conditions:
		return "add_conditions"
	case MedicalWorker:
		return "is_medical_worker"
	default:
		return "unknown"
	}
}

// CaseRecord is one raw line-list row: a demographic slice of a hospital's daily figures.
type CaseRecord struct {
	ReportDate       string
	HospitalID       string
	RegistrationArea string
	PriorityArea     string
	LegalName        string
	Lat              string
	Lng              string
	Gender           string
	AgeGroup         string
	Conditions       string
	MedicalWorker    string
	Counts
}

// Label returns the record's value for category c.
func (r CaseRecord) Label(c Category) string {
	switch c {
	case Gender:
		return r.Gender
	case AgeGroup:
		return r.AgeGroup
	case Conditions:
		return r.Conditions
	case MedicalWorker:
		return r.MedicalWorker
	default:
		return ""
	}
}

// HospitalKeyFor returns the grouping identity of a hospital. Self-isolation rows
// are qualified by their registration region.
func HospitalKeyFor(hospitalID, region string) string {
	if hospitalID == SelfIsolation {
		return region + "_" + SelfIsolation
	}
	return hospitalID
}

// Row is one (report date, hospital) row. The same shape is carried through
// aggregation, grid filling, the pending merge and the directory back-fill.
type Row struct {
	Date             time.Time
	Key              string
	HospitalID       string
	RegistrationArea string
	TotalArea        string
	LegalName        string
	Lat              string
	Lng              string
	Gender           string
	AgeGroup         string
	Conditions       string
	MedicalWorker    string
	Counts

	// PendingSusp is nil until the pending calculator has a window value for the row.
	PendingSusp *int64
}

// Summary returns the distribution string stored for category c.
func (r Row) Summary(c Category) string {
	switch c {
	case Gender:
		return r.Gender
	case AgeGroup:
		return r.AgeGroup
	case Conditions:
		return r.Conditions
	case MedicalWorker:
		return r.MedicalWorker
	default:
		return ""
	}
}

func (r *Row) setSummary(c Category, s string) {
	switch c {
	case Gender:
		r.Gender = s
	case AgeGroup:
		r.AgeGroup = s
	case Conditions:
		r.Conditions = s
	case MedicalWorker:
		r.MedicalWorker = s
	}
}

func (r *Row) clearSummaries() {
	for _, c := range Categories() {
		r.setSummary(c, "")
	}
}

// Hospital is one entry of the reference hospital directory.
type Hospital struct {
	ID        string `json:"id"`
	LegalName string `json:"legal_name"`
	Region    string `json:"region"`
	Lat       string `json:"lat"`
	Lng       string `json:"lng"`
}

func int64Ptr(v int64) *int64 { return &v }
