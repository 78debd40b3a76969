package previewserver

import (
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insar-viewer/internal/catalog"
	"insar-viewer/internal/raster"
	"insar-viewer/internal/render"
	"insar-viewer/internal/session"
)

func newTestServer(t *testing.T) (*Server, *session.Session) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"S1_corr.tif", "S1_unw_phase.tif", "S1_vert_disp.tif"} {
		img := &raster.Image{
			Width: 6, Height: 3, Data: make([]float64, 18),
			Transform:    raster.GeoTransform{500000, 30, 0, 4200000, 0, -30},
			HasTransform: true, CRS: "EPSG:32611",
		}
		for i := range img.Data {
			img.Data[i] = float64(i) / 18
		}
		require.NoError(t, render.SaveFile(filepath.Join(dir, name), func(w io.Writer) error {
			return render.WriteGeoTIFF(w, img)
		}))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "S1_amp.tif"), []byte("corrupt"), 0644))

	sess := session.New(catalog.ScanOptions{})
	_, err := sess.Open(dir)
	require.NoError(t, err)
	return NewServer(sess, 300, 150), sess
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestHealthAndCORS(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRecorder()
	h.ServeHTTP(pre, httptest.NewRequest(http.MethodOptions, "/render/0", nil))
	assert.Equal(t, http.StatusOK, pre.Code)
	assert.Empty(t, pre.Body.String())

	post := httptest.NewRecorder()
	h.ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/catalog", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, post.Code)
}

func TestCatalog(t *testing.T) {
	srv, sess := newTestServer(t)
	rec := get(t, srv.Handler(), "/catalog")
	require.Equal(t, http.StatusOK, rec.Code)

	var body CatalogResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, sess.Folder(), body.Folder)
	require.Len(t, body.Entries, 4)
	assert.Equal(t, "S1_amp.tif", body.Entries[0].Name)
	assert.Equal(t, catalog.Amplitude, body.Entries[0].Product)
	assert.Equal(t, catalog.VerticalDisplacement, body.Entries[3].Product)
}

func TestRender(t *testing.T) {
	srv, sess := newTestServer(t)
	i, ok := sess.Find("S1_corr.tif")
	require.True(t, ok)

	rec := get(t, srv.Handler(), "/render/"+strconv.Itoa(i))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "gray", rec.Header().Get("X-Colormap"))
	assert.Equal(t, "0,1", rec.Header().Get("X-Range"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), 300)

	raw := get(t, srv.Handler(), "/render/"+strconv.Itoa(i)+"?raw=1")
	require.Equal(t, http.StatusOK, raw.Code)
	img, err = png.Decode(raw.Body)
	require.NoError(t, err)
	assert.Equal(t, 6, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
}

func TestRenderErrors(t *testing.T) {
	srv, sess := newTestServer(t)
	h := srv.Handler()
	bad, _ := sess.Find("S1_amp.tif")

	tests := []struct {
		name   string
		url    string
		status int
	}{
		{"out of range", "/render/42", http.StatusNotFound},
		{"negative", "/render/-1", http.StatusNotFound},
		{"not a number", "/render/abc", http.StatusBadRequest},
		{"bad size", "/render/0?size=5", http.StatusBadRequest},
		{"corrupt raster", "/render/" + strconv.Itoa(bad), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.url)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}
}

func TestCompare(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := get(t, h, "/compare?i=0,1&i=2&i=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Panels-Failed"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())

	rec = get(t, h, "/compare?i=1&i=2&size=100")
	require.Equal(t, http.StatusOK, rec.Code)
	img, err = png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/compare").Code, "no active panels")
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/compare?i=x").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/compare?i=0&i=9").Code)
}

func TestCompareActivePanels(t *testing.T) {
	srv, sess := newTestServer(t)
	require.NoError(t, sess.Activate(1))

	rec := get(t, srv.Handler(), "/compare")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-Panels-Failed"))
}

func TestReadout(t *testing.T) {
	srv, sess := newTestServer(t)
	i, _ := sess.Find("S1_unw_phase.tif")

	rec := get(t, srv.Handler(), "/readout/"+strconv.Itoa(i)+"?x=2&y=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.InDelta(t, 8.0/18, body["value"], 1e-6)
	assert.Equal(t, "Phase (rad)", body["unit"])
	assert.Equal(t, "EPSG:32611", body["crs"])
	assert.Equal(t, "500075.00 E, 4199955.00 N", body["coordinate"])

	assert.Equal(t, http.StatusBadRequest, get(t, srv.Handler(), "/readout/"+strconv.Itoa(i)+"?x=9&y=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv.Handler(), "/readout/"+strconv.Itoa(i)+"?x=a").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/readout/12?x=0&y=0").Code)
}

func TestReadoutByMapCoordinate(t *testing.T) {
	srv, sess := newTestServer(t)
	i, _ := sess.Find("S1_unw_phase.tif")
	base := "/readout/" + strconv.Itoa(i)

	rec := get(t, srv.Handler(), base+"?gx=500070&gy=4199950")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2.0, body["x"])
	assert.Equal(t, 1.0, body["y"])
	assert.InDelta(t, 8.0/18, body["value"], 1e-6)

	assert.Equal(t, http.StatusBadRequest, get(t, srv.Handler(), base+"?gx=0&gy=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv.Handler(), base+"?gx=abc&gy=1").Code)
}

func TestStartAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Empty(t, srv.GetURL())
	require.NoError(t, srv.Start())
	url := srv.GetURL()
	require.NotEmpty(t, url)

	resp, err := http.Get(url + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))
}
