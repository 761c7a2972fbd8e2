package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hospmon/internal/config"
	"github.com/sells-group/hospmon/internal/fetcher"
	"github.com/sells-group/hospmon/internal/monitoring"
	"github.com/sells-group/hospmon/internal/store"
)

const testFeed = "zvit_date,registration_area,priority_hosp_area,edrpou_hosp,legal_entity_name_hosp," +
	"legal_entity_lat,legal_entity_lng,person_gender,person_age_group,add_conditions,is_medical_worker," +
	"new_susp,new_confirm,active_confirm,new_death,new_recover\n" +
	`2020-04-26,Київська,Київська,123,Лікарня 123,"50,45","30,52",Жіноча,20-39,Ні,Ні,0,3,3,0,0` + "\n" +
	`2020-04-26,Київська,Київська,123,Лікарня 123,"50,45","30,52",Чоловіча,40-59,Так,Ні,1,2,2,0,0` + "\n"

const testDirectory = "№,Код ЄДРПОУ,Назва закладу,Область,Адреса,Коорд. Х,Коорд. Y\n" +
	`1,123,КНП Лікарня 123,Київська,вул. А,"50,45","30,52"` + "\n" +
	`2,456,Міська лікарня,Київ,вул. Б,"50,40","30,50"` + "\n"

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Feed:      config.FeedConfig{URL: writeFile(t, dir, "feed.csv", testFeed), TimeoutSecs: 5, MaxRetries: 1},
		Directory: config.DirectoryConfig{Path: writeFile(t, dir, "directory.csv", testDirectory)},
		Output:    config.OutputConfig{Dir: filepath.Join(dir, "outputs"), Prefix: "monitoring_v5", Format: "csv"},
		Pipeline:  config.PipelineConfig{PendingOffsetDays: 2},
	}
}

func testFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1})
}

func TestRunBuild_WritesArtifactAndRecordsRun(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	st := newTestStore(t)

	out, err := runBuild(ctx, c, st, testFetcher(), buildOptions{Today: day("2020-04-27")})
	require.NoError(t, err)

	assert.Empty(t, out.Skipped)
	assert.Equal(t, filepath.Join(c.Output.Dir, "monitoring_v5_2020-04-27.csv"), out.Artifact)
	assert.Equal(t, 2, out.Summary.Rows)
	assert.Equal(t, int64(5), out.Summary.NewConfirm)
	assert.Empty(t, out.Alerts)

	data, err := os.ReadFile(out.Artifact)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "zvit_date;registration_area;total_area;edrpou_hosp"))
	assert.Contains(t, string(data), "Жіноча: 3, Чоловіча: 2")

	runs, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, out.RunID, runs[0].ID)
	assert.Equal(t, store.RunStatusComplete, runs[0].Status)
	assert.Equal(t, 2, runs[0].RowCount)
	assert.Equal(t, int64(5), runs[0].NewConfirm)
	assert.Equal(t, out.Artifact, runs[0].ArtifactPath)

	rows, err := st.Hospitals(ctx, day("2020-04-26"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "м. Київ", rows[1].TotalArea)
	assert.Equal(t, int64(1), rows[0].PendingSusp)
}

func TestRunBuild_SkipsWhenArtifactExists(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	st := newTestStore(t)
	opts := buildOptions{Today: day("2020-04-27")}

	_, err := runBuild(ctx, c, st, testFetcher(), opts)
	require.NoError(t, err)

	out, err := runBuild(ctx, c, st, testFetcher(), opts)
	require.NoError(t, err)
	assert.Equal(t, "artifact exists", out.Skipped)

	runs, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	opts.Force = true
	out, err = runBuild(ctx, c, st, testFetcher(), opts)
	require.NoError(t, err)
	assert.Empty(t, out.Skipped)
}

func TestRunBuild_WithoutStore(t *testing.T) {
	c := testConfig(t)
	c.Output.Format = "parquet"
	c.Output.DropCategories = true

	out, err := runBuild(context.Background(), c, nil, testFetcher(), buildOptions{Today: day("2020-04-27")})
	require.NoError(t, err)

	assert.Empty(t, out.RunID)
	assert.True(t, strings.HasSuffix(out.Artifact, ".parquet"))
	_, err = os.Stat(out.Artifact)
	assert.NoError(t, err)
}

func TestRunBuild_FailureIsRecordedAndAlerted(t *testing.T) {
	var alerts atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		alerts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	ctx := context.Background()
	c := testConfig(t)
	c.Feed.URL = filepath.Join(t.TempDir(), "missing.csv")
	c.Monitoring.WebhookURL = hook.URL
	st := newTestStore(t)

	out, err := runBuild(ctx, c, st, testFetcher(), buildOptions{Today: day("2020-04-27")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.csv")

	require.Len(t, out.Alerts, 1)
	assert.Equal(t, monitoring.AlertRunFailed, out.Alerts[0].Type)
	assert.Equal(t, int32(1), alerts.Load())

	runs, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "missing.csv")

	_, statErr := os.Stat(out.Artifact)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunBuild_MalformedFeedFails(t *testing.T) {
	c := testConfig(t)
	c.Feed.URL = writeFile(t, t.TempDir(), "bad.csv", strings.Replace(testFeed, "2020-04-26", "2020-13-26", 1))

	_, err := runBuild(context.Background(), c, nil, testFetcher(), buildOptions{Today: day("2020-04-27")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2020-13-26")
}

func TestRunBuild_IfChangedSkipsUnchangedFeed(t *testing.T) {
	var gets atomic.Int32
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		if r.Method == http.MethodHead {
			return
		}
		gets.Add(1)
		_, _ = w.Write([]byte(testFeed))
	}))
	defer feed.Close()

	ctx := context.Background()
	c := testConfig(t)
	c.Feed.URL = feed.URL + "/feed.csv"
	st := newTestStore(t)

	out, err := runBuild(ctx, c, st, testFetcher(), buildOptions{Today: day("2020-04-27"), IfChanged: true})
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, out.FeedETag)

	last, err := st.LastSuccess(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, `"v1"`, last.FeedETag)

	out, err = runBuild(ctx, c, st, testFetcher(), buildOptions{Today: day("2020-04-28"), IfChanged: true})
	require.NoError(t, err)
	assert.Equal(t, "feed unchanged", out.Skipped)
	assert.Equal(t, int32(1), gets.Load())
}

func TestRunBuild_UnknownFormat(t *testing.T) {
	c := testConfig(t)
	c.Output.Format = "xlsx"

	_, err := runBuild(context.Background(), c, nil, testFetcher(), buildOptions{Today: day("2020-04-27")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
