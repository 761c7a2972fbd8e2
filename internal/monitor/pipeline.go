package monitor

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options configures a pipeline run. Use DefaultOptions as a starting point.
type Options struct {
	FeedDateCorrections      DateCorrections
	AggregateDateCorrections DateCorrections
	Metrics                  []Metric
	PendingOffsetDays        int
	FillThroughEnd           bool
	Regions                  RegionRewrites
	DropCategories           bool
}

// DefaultOptions returns the production pipeline settings.
func DefaultOptions() Options {
	return Options{
		FeedDateCorrections:      DefaultFeedCorrections(),
		AggregateDateCorrections: DefaultAggregateCorrections(),
		Metrics:                  DefaultMetrics(),
		PendingOffsetDays:        DefaultPendingOffsetDays,
		Regions:                  DefaultRegionRewrites(),
	}
}

// FinalRow is one row of the published table.
type FinalRow struct {
	Date             time.Time `json:"zvit_date"`
	RegistrationArea string    `json:"registration_area"`
	TotalArea        string    `json:"total_area"`
	HospitalID       string    `json:"edrpou_hosp"`
	LegalName        string    `json:"legal_entity_name_hosp"`
	Lat              float64   `json:"lat"`
	Lng              float64   `json:"lng"`
	Gender           string    `json:"person_gender,omitempty"`
	AgeGroup         string    `json:"person_age_group,omitempty"`
	Conditions       string    `json:"add_conditions,omitempty"`
	MedicalWorker    string    `json:"is_medical_worker,omitempty"`
	Counts
	PendingSusp int64 `json:"pending_susp"`
}

// Result is the output of Run.
type Result struct {
	Rows []FinalRow
	// Categories reports whether the distribution columns are part of the table.
	Categories bool
	Summary    Summary
}

// Run executes the whole pipeline: feed date fixes, aggregation, inactive fill,
// pending merge, directory back-fill and coordinate normalization.
func Run(records []CaseRecord, hospitals []Hospital, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "monitor.pipeline"))

	corrected := CorrectDates(records, opts.FeedDateCorrections)

	aggregated, err := Aggregate(corrected, AggregateOptions{DateCorrections: opts.AggregateDateCorrections})
	if err != nil {
		return nil, eris.Wrap(err, "monitor: run")
	}
	log.Debug("aggregated", zap.Int("records", len(records)), zap.Int("rows", len(aggregated)))

	dense := FillInactive(aggregated, InactiveOptions{
		Metrics:        opts.Metrics,
		FillThroughEnd: opts.FillThroughEnd,
	})
	log.Debug("filled inactive hospitals", zap.Int("rows", len(dense)))

	pending, err := MergePending(dense, opts.PendingOffsetDays)
	if err != nil {
		return nil, eris.Wrap(err, "monitor: run")
	}

	complete := FillUnlisted(pending, hospitals, UnlistedOptions{
		Metrics:        opts.Metrics,
		Regions:        opts.Regions,
		DropCategories: opts.DropCategories,
	})
	log.Debug("filled unlisted hospitals", zap.Int("hospitals", len(hospitals)), zap.Int("rows", len(complete)))

	final, err := finalize(complete)
	if err != nil {
		return nil, eris.Wrap(err, "monitor: run")
	}

	summary := Summarize(final)
	log.Info("total confirmed cases", zap.Int64("value", summary.NewConfirm))
	log.Info("total confirmed deaths", zap.Int64("value", summary.NewDeath))
	log.Info("total confirmed recoveries", zap.Int64("value", summary.NewRecover))

	return &Result{
		Rows:       final,
		Categories: !opts.DropCategories,
		Summary:    summary,
	}, nil
}

func finalize(rows []Row) ([]FinalRow, error) {
	out := make([]FinalRow, len(rows))
	for i, r := range rows {
		lat, err := ParseCoordinate(r.Lat)
		if err != nil {
			return nil, eris.Wrapf(err, "hospital %q on %s: lat", r.HospitalID, r.Date.Format(DateLayout))
		}
		lng, err := ParseCoordinate(r.Lng)
		if err != nil {
			return nil, eris.Wrapf(err, "hospital %q on %s: lng", r.HospitalID, r.Date.Format(DateLayout))
		}

		var pending int64
		if r.PendingSusp != nil {
			pending = *r.PendingSusp
		}

		out[i] = FinalRow{
			Date:             r.Date,
			RegistrationArea: r.RegistrationArea,
			TotalArea:        r.TotalArea,
			HospitalID:       r.HospitalID,
			LegalName:        r.LegalName,
			Lat:              lat,
			Lng:              lng,
			Gender:           r.Gender,
			AgeGroup:         r.AgeGroup,
			Conditions:       r.Conditions,
			MedicalWorker:    r.MedicalWorker,
			Counts:           r.Counts,
			PendingSusp:      pending,
		}
	}
	return out, nil
}
