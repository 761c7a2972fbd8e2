package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withPending(r Row, v int64) Row {
	r.PendingSusp = int64Ptr(v)
	return r
}

func TestFillUnlisted_BackFillsDirectory(t *testing.T) {
	in := withPending(aggRow(t, "2020-04-01", "1", Counts{NewConfirm: 2}), 3)
	in.TotalArea = "Київська"
	hospitals := []Hospital{
		{ID: "1", LegalName: "Directory name", Region: "Київська", Lat: "50,1", Lng: "30,1"},
		{ID: "2", LegalName: "Quiet hospital", Region: "Київ", Lat: "50,4", Lng: "30,5"},
	}

	out := FillUnlisted([]Row{in}, hospitals, UnlistedOptions{Regions: DefaultRegionRewrites()})
	require.Len(t, out, 2)

	assert.Equal(t, "1", out[0].HospitalID)
	assert.Equal(t, "Лікарня 1", out[0].LegalName)
	assert.Equal(t, int64(2), out[0].NewConfirm)
	assert.Equal(t, int64(3), *out[0].PendingSusp)
	assert.Equal(t, "Жіноча: 1", out[0].Gender)

	quiet := out[1]
	assert.Equal(t, "2", quiet.HospitalID)
	assert.Equal(t, "м. Київ", quiet.TotalArea)
	assert.Equal(t, "Київ", quiet.RegistrationArea)
	assert.Equal(t, "Quiet hospital", quiet.LegalName)
	assert.Equal(t, "50,4", quiet.Lat)
	assert.Equal(t, Counts{}, quiet.Counts)
	require.NotNil(t, quiet.PendingSusp)
	assert.Equal(t, int64(0), *quiet.PendingSusp)
	assert.Empty(t, quiet.Gender)
}

func TestFillUnlisted_TieKeepsInputRow(t *testing.T) {
	in := withPending(aggRow(t, "2020-04-02", "1", Counts{}), 5)
	in.TotalArea = "Одеська"
	hospitals := []Hospital{{ID: "1", LegalName: "Directory name", Region: "Одеська"}}

	out := FillUnlisted([]Row{in}, hospitals, UnlistedOptions{})
	require.Len(t, out, 1)
	assert.Equal(t, "Лікарня 1", out[0].LegalName)
	assert.Equal(t, int64(5), *out[0].PendingSusp)
}

func TestFillUnlisted_CollapsesAfterRegionRewrite(t *testing.T) {
	in := withPending(aggRow(t, "2020-04-01", "7", Counts{NewSusp: 1}), 1)
	in.TotalArea = "Київ"
	hospitals := []Hospital{{ID: "7", LegalName: "Directory", Region: "м. Київ"}}

	out := FillUnlisted([]Row{in}, hospitals, UnlistedOptions{Regions: DefaultRegionRewrites()})
	require.Len(t, out, 1)
	assert.Equal(t, "м. Київ", out[0].TotalArea)
	assert.Equal(t, int64(1), out[0].NewSusp)
}

func TestFillUnlisted_DifferentRegionKeepsBothRows(t *testing.T) {
	in := withPending(aggRow(t, "2020-04-01", "7", Counts{NewSusp: 1}), 1)
	in.TotalArea = "Львівська"
	hospitals := []Hospital{{ID: "7", LegalName: "Directory", Region: "Волинська"}}

	out := FillUnlisted([]Row{in}, hospitals, UnlistedOptions{})
	require.Len(t, out, 2)
	assert.Equal(t, "Волинська", out[0].TotalArea)
	assert.Equal(t, "Львівська", out[1].TotalArea)
}

func TestFillUnlisted_NilPendingBecomesZero(t *testing.T) {
	in := aggRow(t, "2020-04-01", "1", Counts{NewConfirm: 1})
	out := FillUnlisted([]Row{in}, nil, UnlistedOptions{})
	require.Len(t, out, 1)
	require.NotNil(t, out[0].PendingSusp)
	assert.Equal(t, int64(0), *out[0].PendingSusp)
	assert.Nil(t, in.PendingSusp)
}

func TestFillUnlisted_DropCategories(t *testing.T) {
	in := withPending(aggRow(t, "2020-04-01", "1", Counts{NewConfirm: 1}), 0)
	in.AgeGroup = "20-39: 1"

	out := FillUnlisted([]Row{in}, nil, UnlistedOptions{DropCategories: true})
	require.Len(t, out, 1)
	for _, c := range Categories() {
		assert.Empty(t, out[0].Summary(c), c.Column())
	}
	assert.Equal(t, int64(1), out[0].NewConfirm)
}

func TestFillUnlisted_DuplicateDirectoryEntries(t *testing.T) {
	in := aggRow(t, "2020-04-01", "x", Counts{NewConfirm: 1})
	hospitals := []Hospital{
		{ID: "9", LegalName: "first", Region: "Сумська"},
		{ID: "9", LegalName: "second", Region: "Сумська"},
	}

	out := FillUnlisted([]Row{in}, hospitals, UnlistedOptions{})
	var nines []Row
	for _, r := range out {
		if r.HospitalID == "9" {
			nines = append(nines, r)
		}
	}
	require.Len(t, nines, 1)
	assert.Equal(t, "first", nines[0].LegalName)
}

func TestFillUnlisted_EveryDirectoryHospitalOnEveryDate(t *testing.T) {
	rows := []Row{
		aggRow(t, "2020-04-01", "a", Counts{NewConfirm: 1}),
		aggRow(t, "2020-04-03", "b", Counts{NewConfirm: 1}),
		aggRow(t, "2020-04-04", "a", Counts{NewDeath: 1}),
	}
	hospitals := []Hospital{
		{ID: "a", Region: "Одеська"},
		{ID: "h1", Region: "Харківська"},
		{ID: "h2", Region: "Київ"},
	}

	out := FillUnlisted(rows, hospitals, UnlistedOptions{Regions: DefaultRegionRewrites()})

	seen := map[finalKey]int{}
	for _, r := range out {
		seen[finalKey{date: r.Date, region: r.TotalArea, hospital: r.HospitalID}]++
	}
	for fk, n := range seen {
		assert.Equal(t, 1, n, "duplicate %s/%s", fk.region, fk.hospital)
	}
	for _, d := range []string{"2020-04-01", "2020-04-03", "2020-04-04"} {
		for _, h := range hospitals {
			region := DefaultRegionRewrites().Apply(h.Region)
			_, ok := seen[finalKey{date: day(t, d), region: region, hospital: h.ID}]
			assert.True(t, ok, "missing %s/%s on %s", region, h.ID, d)
		}
	}
}

func TestFillUnlisted_SortedByDateRegionHospital(t *testing.T) {
	rows := []Row{
		aggRow(t, "2020-04-02", "b", Counts{NewConfirm: 1}),
		aggRow(t, "2020-04-01", "c", Counts{NewConfirm: 1}),
	}
	hospitals := []Hospital{{ID: "a", Region: "Волинська"}}

	out := FillUnlisted(rows, hospitals, UnlistedOptions{})
	require.Len(t, out, 4)
	var got []string
	for _, r := range out {
		got = append(got, r.Date.Format(DateLayout)+"/"+r.TotalArea+"/"+r.HospitalID)
	}
	assert.Equal(t, []string{
		"2020-04-01/Волинська/a",
		"2020-04-01/Одеська/c",
		"2020-04-02/Волинська/a",
		"2020-04-02/Одеська/b",
	}, got)
}

func TestFillUnlisted_SelfIsolationBucketsSharingRegionCollapse(t *testing.T) {
	a := withPending(aggRow(t, "2020-04-01", HospitalKeyFor(SelfIsolation, "Волинська"), Counts{NewConfirm: 3}), 0)
	a.HospitalID = SelfIsolation
	a.RegistrationArea = "Волинська"
	a.TotalArea = "Львівська"
	b := a
	b.Key = HospitalKeyFor(SelfIsolation, "Рівненська")
	b.RegistrationArea = "Рівненська"
	b.Counts = Counts{NewConfirm: 5}

	out := FillUnlisted([]Row{a, b}, nil, UnlistedOptions{})
	require.Len(t, out, 1)
	assert.Equal(t, "Рівненська", out[0].RegistrationArea)
	assert.Equal(t, int64(5), out[0].NewConfirm)
}

func TestFillUnlisted_PrefixRewriteMergesRegionLabels(t *testing.T) {
	lower := withPending(aggRow(t, "2020-04-01", "9", Counts{}), 0)
	lower.TotalArea = "полтавська"
	hospitals := []Hospital{{ID: "9", LegalName: "Directory", Region: "Полтавська"}}

	out := FillUnlisted([]Row{lower}, hospitals, UnlistedOptions{Regions: DefaultRegionRewrites()})
	require.Len(t, out, 1)
	assert.Equal(t, "Полтавська", out[0].TotalArea)
	assert.Equal(t, "Лікарня 9", out[0].LegalName)

	out = FillUnlisted([]Row{lower}, hospitals, UnlistedOptions{})
	assert.Len(t, out, 2)
}
