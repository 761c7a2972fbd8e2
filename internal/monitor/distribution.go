package monitor

import (
	"strconv"
	"strings"
)

// Distribution tallies categorical labels, remembering the order each label was first seen.
type Distribution struct {
	labels []string
	counts map[string]int64
}

// Add counts label weight times. Empty labels and non-positive weights are ignored.
func (d *Distribution) Add(label string, weight int64) {
	if label == "" || weight <= 0 {
		return
	}
	if d.counts == nil {
		d.counts = make(map[string]int64)
	}
	if _, ok := d.counts[label]; !ok {
		d.labels = append(d.labels, label)
	}
	d.counts[label] += weight
}

// Total returns the sum of all tallies.
func (d *Distribution) Total() int64 {
	var total int64
	for _, n := range d.counts {
		total += n
	}
	return total
}

// String renders the tally as "label1: count1, label2: count2".
func (d *Distribution) String() string {
	var b strings.Builder
	for i, label := range d.labels {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(strconv.FormatInt(d.counts[label], 10))
	}
	return b.String()
}
