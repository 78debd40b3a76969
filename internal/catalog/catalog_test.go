package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want ProductType
	}{
		{"S1_wrapped_phase.tif", WrappedPhase},
		{"phase_wrapped.tif", WrappedPhase},
		{"S1_unw_phase.tif", UnwrappedPhase},
		{"unwrapped_phase.tif", UnwrappedPhase},
		{"UNWRAPPED.TIF", UnwrappedPhase},
		{"S1_corr.tif", Coherence},
		{"coherence.tif", Coherence},
		{"amp.tif", Amplitude},
		{"vert_disp.tif", VerticalDisplacement},
		{"los_disp.tif", Displacement},
		{"displacement.tif", Displacement},
		{"dem.tif", DEM},
		{"height_map.tif", DEM},
		{"dem_los.tif", DEM},
		{"elevation_disp.tif", DEM},
		{"lv_theta.tif", Incidence},
		{"lv_phi.tif", Azimuth},
		{"azimuth_angle.tif", Azimuth},
		{"random.tif", Unknown},
		{"/some/dem/dir/random.tif", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.name))
		})
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, Classify("s1_corr.tif"), Classify("S1_CORR.TIF"))
	assert.Equal(t, Classify("Wrapped_Phase.tif"), Classify("wrapped_phase.tif"))
}

func TestPatternsFollowEvaluationOrder(t *testing.T) {
	assert.Equal(t, []string{"unwrapped_phase", "phase_unwrapped", "unwrapped", "unw"}, Patterns(UnwrappedPhase))
	assert.Equal(t, []string{"vertical", "vert"}, Patterns(VerticalDisplacement))
	assert.Empty(t, Patterns(Unknown))
	for _, p := range AllProducts() {
		for _, substr := range Patterns(p) {
			assert.Equal(t, p, Classify("x_"+substr+".tif"), substr)
		}
	}
}

func TestProductMetadata(t *testing.T) {
	assert.Equal(t, "Wrapped Interferometric Phase", WrappedPhase.Title())
	assert.Equal(t, "Phase (rad)", UnwrappedPhase.Unit())
	assert.Equal(t, "Elevation (m)", DEM.Unit())
	assert.Equal(t, "Angle (deg)", Azimuth.Unit())
	assert.Equal(t, "Value", Unknown.Unit())
	assert.Equal(t, "unknown", ProductType(99).String())

	for _, p := range AllProducts() {
		got, err := ParseProductType(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestParseProductTypeUnsupported(t *testing.T) {
	_, err := ParseProductType("sparkles")
	var upe *UnsupportedProductError
	require.ErrorAs(t, err, &upe)
	assert.Equal(t, "sparkles", upe.Name)
}

func TestProductTypeJSON(t *testing.T) {
	b, err := json.Marshal(map[string]ProductType{"p": VerticalDisplacement})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"vertical_disp"}`, string(b))

	var out map[string]ProductType
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, VerticalDisplacement, out["p"])
}

func TestScanClassifiesAndSorts(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "unknownfile.tif", "coherence_1.tif", "amplitude_1.tif", "unwPhase_1.tif", "notes.txt")

	entries, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	got := map[string]ProductType{}
	var names []string
	for _, e := range entries {
		got[e.Name] = e.Product
		names = append(names, e.Name)
		assert.Equal(t, filepath.Join(dir, e.Name), e.Path)
	}
	assert.Equal(t, map[string]ProductType{
		"unwPhase_1.tif":  UnwrappedPhase,
		"coherence_1.tif": Coherence,
		"amplitude_1.tif": Amplitude,
		"unknownfile.tif": Unknown,
	}, got)
	assert.Equal(t, []string{"amplitude_1.tif", "coherence_1.tif", "unknownfile.tif", "unwPhase_1.tif"}, names)
}

func TestScanExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.TIF", "b.tiff", "c.TiFf", "d.tif.aux.xml", "e.png")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "f.tif"), 0755))

	entries, err := Scan(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a.TIF", "b.tiff", "c.TiFf"}, names)
}

func TestScanRecursive(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "top_corr.tif", "sub/dem.tif", ".hidden/amp.tif")

	flat, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, flat, 1)

	deep, err := ScanWithOptions(dir, ScanOptions{Recursive: true})
	require.NoError(t, err)
	require.Len(t, deep, 2)
	assert.Equal(t, "dem.tif", deep[0].Name)
	assert.Equal(t, filepath.Join(dir, "sub", "dem.tif"), deep[0].Path)
	assert.Equal(t, DEM, deep[0].Product)
}

func TestScanEmptyDirectory(t *testing.T) {
	entries, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestScanMissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	_, err := Scan(missing)
	var de *DirectoryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, missing, de.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScanFileIsNotDirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "dem.tif")
	_, err := Scan(filepath.Join(dir, "dem.tif"))
	var de *DirectoryError
	assert.ErrorAs(t, err, &de)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "[COHERENCE] S1_corr.tif", Label(Coherence, "S1_corr.tif"))

	long := Label(WrappedPhase, "S1AA_20200101T000000_20200113T000000_VVP012_INT80_G_ueF_ABCD_wrapped_phase.tif")
	assert.Len(t, long, 45)
	assert.Equal(t, "...", long[len(long)-3:])
	assert.Equal(t, "[WRAPPED_PHASE] S1AA_", long[:21])
}

func TestParseDatePair(t *testing.T) {
	ref, sec, ok := ParseDatePair("S1AA_20200101T015959_20200113T020000_VVP012_corr.tif")
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), ref)
	assert.Equal(t, time.Date(2020, 1, 13, 0, 0, 0, 0, time.UTC), sec)

	_, _, ok = ParseDatePair("dem.tif")
	assert.False(t, ok)

	_, _, ok = ParseDatePair("S1_20201399T000000_20210101T000000.tif")
	assert.False(t, ok)
}

func TestNewEntryCarriesDates(t *testing.T) {
	e := NewEntry("/x/S1AA_20200101T000000_20200113T000000_unw_phase.tif")
	assert.Equal(t, UnwrappedPhase, e.Product)
	require.NotNil(t, e.Reference)
	require.NotNil(t, e.Secondary)
	assert.Equal(t, 12*24*time.Hour, e.Secondary.Sub(*e.Reference))

	plain := NewEntry("dem.tif")
	assert.Nil(t, plain.Reference)
}
