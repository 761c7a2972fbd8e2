package monitor

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// RegionRewrite renames a region label. Exact rules match the whole label;
// prefix rules replace a leading From with To.
type RegionRewrite struct {
	From   string
	To     string
	Prefix bool
}

// RegionRewrites is an ordered table of known region naming inconsistencies.
// The first matching rule wins.
type RegionRewrites []RegionRewrite

// DefaultRegionRewrites returns the naming fixes known from the upstream feed
// and the hospital directory.
func DefaultRegionRewrites() RegionRewrites {
	return RegionRewrites{
		{From: "Київ", To: "м. Київ"},
		{From: "полтавська", To: "Полтавська", Prefix: true},
	}
}

// Apply returns the canonical form of region. Labels are compared in NFC so a
// decomposed "й" still matches.
func (rr RegionRewrites) Apply(region string) string {
	s := norm.NFC.String(region)
	for _, rule := range rr {
		from := norm.NFC.String(rule.From)
		if rule.Prefix {
			if strings.HasPrefix(s, from) {
				return rule.To + strings.TrimPrefix(s, from)
			}
			continue
		}
		if s == from {
			return rule.To
		}
	}
	return region
}
