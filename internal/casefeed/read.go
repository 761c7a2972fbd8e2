package casefeed

import (
	"context"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/hospmon/internal/fetcher"
	"github.com/sells-group/hospmon/internal/monitor"
)

// Options configures Read.
type Options struct {
	// Schema defaults to DefaultSchema.
	Schema Schema
	// Delimiter defaults to ','.
	Delimiter  rune
	LazyQuotes bool
}

type binding struct {
	field Field
	index int // -1 when an optional column is absent
}

// Read parses the feed in r. The first row is the header. Any malformed value
// fails the whole read with the offending line and column.
func Read(ctx context.Context, r io.Reader, opts Options) ([]monitor.CaseRecord, error) {
	log := zap.L().With(zap.String("component", "casefeed.read"))

	schema := opts.Schema
	if len(schema) == 0 {
		schema = DefaultSchema()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		Delimiter:  opts.Delimiter,
		LazyQuotes: opts.LazyQuotes,
	})

	var (
		bindings []binding
		width    int
		records  []monitor.CaseRecord
	)
	for row := range rowCh {
		if bindings == nil {
			idx, err := schema.ValidateHeader(row.Fields)
			if err != nil {
				return nil, err
			}
			bindings = bind(schema, idx)
			width = len(row.Fields)
			continue
		}

		if len(row.Fields) != width {
			return nil, eris.Errorf("casefeed: line %d: expected %d fields, got %d", row.Line, width, len(row.Fields))
		}
		rec, err := parseRow(row, bindings)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "casefeed: read")
	}
	if bindings == nil {
		return nil, eris.New("casefeed: empty feed")
	}

	log.Info("feed parsed", zap.Int("records", len(records)))
	return records, nil
}

func bind(schema Schema, idx map[string]int) []binding {
	out := make([]binding, len(schema))
	for i, f := range schema {
		pos, ok := idx[f.Column]
		if !ok {
			pos = -1
		}
		out[i] = binding{field: f, index: pos}
	}
	return out
}

func parseRow(row fetcher.Record, bindings []binding) (monitor.CaseRecord, error) {
	var rec monitor.CaseRecord
	for _, b := range bindings {
		raw := ""
		if b.index >= 0 {
			raw = cleanText(row.Fields[b.index])
		}
		if raw == "" {
			if b.field.NotEmpty {
				return rec, eris.Errorf("casefeed: line %d: column %s: empty value", row.Line, b.field.Column)
			}
			raw = b.field.Default
		}

		if err := assign(&rec, b.field, raw); err != nil {
			return rec, eris.Wrapf(err, "casefeed: line %d: column %s", row.Line, b.field.Column)
		}
	}
	return rec, nil
}

// cleanText trims s, replaces invalid UTF-8 and normalizes it to NFC.
func cleanText(s string) string {
	return norm.NFC.String(strings.ToValidUTF8(strings.TrimSpace(s), "\uFFFD"))
}

func assign(rec *monitor.CaseRecord, f Field, raw string) error {
	switch f.Kind {
	case KindDate:
		if _, err := monitor.ParseReportDate(raw); err != nil {
			return err
		}
	case KindCoordinate:
		if _, err := monitor.ParseCoordinate(raw); err != nil {
			return err
		}
	case KindInt, KindCount:
		n, err := parseCount(raw)
		if err != nil {
			return err
		}
		if f.Kind == KindCount && n < 0 {
			return eris.Errorf("negative value %d", n)
		}
		setCount(rec, f.Column, n)
		return nil
	}
	setText(rec, f.Column, raw)
	return nil
}

// parseCount accepts integers and integral decimals such as "3.0".
func parseCount(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("invalid integer %q", raw)
	}
	if math.Abs(f) >= math.MaxInt64 {
		return 0, eris.Errorf("integer %q out of range", raw)
	}
	return int64(f), nil
}

func setCount(rec *monitor.CaseRecord, column string, n int64) {
	switch column {
	case ColNewSusp:
		rec.NewSusp = n
	case ColNewConfirm:
		rec.NewConfirm = n
	case ColActiveConfirm:
		rec.ActiveConfirm = n
	case ColNewDeath:
		rec.NewDeath = n
	case ColNewRecover:
		rec.NewRecover = n
	}
}

func setText(rec *monitor.CaseRecord, column, v string) {
	switch column {
	case ColReportDate:
		rec.ReportDate = v
	case ColRegistrationArea:
		rec.RegistrationArea = v
	case ColPriorityArea:
		rec.PriorityArea = v
	case ColHospitalID:
		rec.HospitalID = v
	case ColLegalName:
		rec.LegalName = v
	case ColLat:
		rec.Lat = v
	case ColLng:
		rec.Lng = v
	case ColGender:
		rec.Gender = v
	case ColAgeGroup:
		rec.AgeGroup = v
	case ColConditions:
		rec.Conditions = v
	case ColMedicalWorker:
		rec.MedicalWorker = v
	}
}
