package monitor

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ParseCoordinate parses a latitude or longitude that may use a decimal comma.
// An empty value is 0.
func ParseCoordinate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "monitor: invalid coordinate %q", s)
	}
	return v, nil
}
