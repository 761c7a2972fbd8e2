package hospdir

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hospmon/internal/fetcher"
	"github.com/sells-group/hospmon/internal/monitor"
)

// Directory spreadsheet column headers.
const (
	ColID     = "Код ЄДРПОУ"
	ColName   = "Назва закладу"
	ColRegion = "Область"
	ColLat    = "Коорд. Х"
	ColLng    = "Коорд. Y"
)

// Load reads the directory from src, which is either a local path or an
// http(s) URL fetched with f. Files ending in .csv are parsed as CSV; anything
// else is treated as an XLSX workbook, reading sheet (or the first sheet when empty).
func Load(ctx context.Context, f fetcher.Fetcher, src, sheet string) (*Directory, error) {
	isCSV := strings.EqualFold(filepath.Ext(strings.SplitN(src, "?", 2)[0]), ".csv")

	if !fetcher.IsRemote(src) && !isCSV {
		return LoadXLSX(src, sheet)
	}

	rc, err := fetcher.Open(ctx, f, src)
	if err != nil {
		return nil, eris.Wrap(err, "hospdir: load")
	}
	defer rc.Close() //nolint:errcheck

	if isCSV {
		return LoadCSV(ctx, rc)
	}

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrap(err, "hospdir: read workbook")
	}
	rows, err := fetcher.ParseXLSX(data, fetcher.XLSXOptions{SheetName: sheet, SkipBlank: true})
	if err != nil {
		return nil, eris.Wrap(err, "hospdir: parse workbook")
	}
	return fromRows(rows)
}

// LoadXLSX reads the directory from an XLSX workbook.
func LoadXLSX(path, sheet string) (*Directory, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: sheet, SkipBlank: true})
	if err != nil {
		return nil, eris.Wrapf(err, "hospdir: read %s", path)
	}
	return fromRows(rows)
}

// LoadCSV reads the directory from comma-separated text with the same headers
// as the workbook.
func LoadCSV(ctx context.Context, r io.Reader) (*Directory, error) {
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{TrimSpace: true})
	var rows [][]string
	for rec := range rowCh {
		rows = append(rows, rec.Fields)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "hospdir: read csv")
	}
	return fromRows(rows)
}

// fromRows binds the header row by name and validates coordinates.
func fromRows(rows [][]string) (*Directory, error) {
	if len(rows) == 0 {
		return nil, eris.New("hospdir: empty directory")
	}

	idx := make(map[string]int)
	for i, h := range rows[0] {
		idx[clean(h)] = i
	}
	var missing []string
	for _, col := range []string{ColID, ColName, ColRegion, ColLat, ColLng} {
		if _, ok := idx[clean(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("hospdir: missing columns: %s", strings.Join(missing, ", "))
	}

	cell := func(row []string, col string) string {
		i := idx[clean(col)]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	hospitals := make([]monitor.Hospital, 0, len(rows)-1)
	for n, row := range rows[1:] {
		h := monitor.Hospital{
			ID:        cell(row, ColID),
			LegalName: cell(row, ColName),
			Region:    cell(row, ColRegion),
			Lat:       cell(row, ColLat),
			Lng:       cell(row, ColLng),
		}
		for _, c := range []string{h.Lat, h.Lng} {
			if _, err := monitor.ParseCoordinate(c); err != nil {
				return nil, eris.Wrapf(err, "hospdir: row %d (id %q)", n+2, strings.TrimSpace(h.ID))
			}
		}
		hospitals = append(hospitals, h)
	}

	d := New(hospitals)
	zap.L().With(zap.String("component", "hospdir.load")).Info("hospital directory loaded",
		zap.Int("rows", len(rows)-1),
		zap.Int("hospitals", d.Len()),
	)
	return d, nil
}
