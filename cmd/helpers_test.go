package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/hospmon/internal/monitor"
	"github.com/sells-group/hospmon/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "hospmon.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func day(s string) time.Time {
	d, err := time.Parse(monitor.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func tableFixture() []monitor.FinalRow {
	return []monitor.FinalRow{
		{
			Date: day("2020-04-25"), RegistrationArea: "Київська", TotalArea: "Київська",
			HospitalID: "123", LegalName: "Лікарня 123", Lat: 50.45, Lng: 30.52,
			Counts: monitor.Counts{NewConfirm: 2, ActiveConfirm: 2},
		},
		{
			Date: day("2020-04-26"), RegistrationArea: "Київська", TotalArea: "Київська",
			HospitalID: "123", LegalName: "Лікарня 123", Lat: 50.45, Lng: 30.52,
			Gender: "Жіноча: 3, Чоловіча: 2",
			Counts: monitor.Counts{NewConfirm: 5, ActiveConfirm: 5}, PendingSusp: 1,
		},
		{
			Date: day("2020-04-26"), RegistrationArea: "Київ", TotalArea: "м. Київ",
			HospitalID: "456", LegalName: "Міська лікарня",
		},
	}
}

// seedStore records one completed run holding tableFixture.
func seedStore(t *testing.T, st store.Store) *store.Run {
	t.Helper()
	ctx := context.Background()
	run, err := st.StartRun(ctx)
	require.NoError(t, err)
	rows := tableFixture()
	_, err = st.SaveSnapshot(ctx, run.ID, rows)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, run.ID, store.RunResult{
		ArtifactPath: "data/outputs/monitoring_v5_2020-04-26.csv",
		Summary:      monitor.Summarize(rows),
	}))
	return run
}
