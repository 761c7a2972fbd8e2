package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/hospmon/internal/store"
)

func TestFormatRuns(t *testing.T) {
	started := time.Date(2020, 4, 27, 6, 30, 0, 0, time.UTC)
	done := started.Add(95 * time.Second)
	runs := []store.Run{
		{
			ID:          "abc12345-6789-0000-0000-000000000000",
			Status:      store.RunStatusComplete,
			StartedAt:   started,
			CompletedAt: &done,
			RowCount:    1520,
			NewConfirm:  9410,
			NewDeath:    239,
			NewRecover:  1021,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Status:    store.RunStatusFailed,
			StartedAt: started.Add(-24 * time.Hour),
			Error:     `casefeed: line 12, column "zvit_date": malformed date "2020-13-01"`,
		},
	}

	var buf bytes.Buffer
	formatRuns(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "2020-04-27 06:30")
	assert.Contains(t, out, "1m35s")
	assert.Contains(t, out, "9410")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "...")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
