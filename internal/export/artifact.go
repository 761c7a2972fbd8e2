// Package export writes the published hospital table to disk.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hospmon/internal/monitor"
)

// Format is an artifact encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// ArtifactPath returns <dir>/<prefix>_<YYYY-MM-DD>.<format> for day.
func ArtifactPath(dir, prefix string, day time.Time, format Format) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", prefix, day.Format(monitor.DateLayout), format))
}

// Exists reports whether an artifact is already present at path.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "export: stat %s", path)
	}
	if info.IsDir() {
		return false, eris.Errorf("export: %s is a directory", path)
	}
	return true, nil
}

// Write encodes res in format and stores it at path. The file is written to a
// temporary sibling and renamed into place; a failed write leaves no artifact.
func Write(path string, format Format, res *monitor.Result) error {
	if res == nil {
		return eris.New("export: nil result")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrap(err, "export: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	switch format {
	case FormatCSV:
		err = WriteCSV(tmp, res)
	case FormatParquet:
		err = WriteParquet(tmp, res)
	default:
		err = eris.Errorf("export: unknown format %q", format)
	}
	if err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "export: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "export: rename to %s", path)
	}

	zap.L().With(zap.String("component", "export")).Info("artifact written",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("rows", len(res.Rows)),
	)
	return nil
}
