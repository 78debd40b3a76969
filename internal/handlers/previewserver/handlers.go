package previewserver

import (
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"strconv"
	"strings"

	"insar-viewer/internal/catalog"
	"insar-viewer/internal/raster"
	"insar-viewer/internal/render"
	"insar-viewer/internal/session"
	"insar-viewer/internal/utils/naming"
)

// CatalogResponse is the body of GET /catalog
type CatalogResponse struct {
	Folder  string          `json:"folder"`
	Entries []catalog.Entry `json:"entries"`
}

// ReadoutResponse is the body of GET /readout/{index}
type ReadoutResponse struct {
	raster.Readout
	Value      *float64 `json:"value"`
	Display    string   `json:"display"`
	Coordinate string   `json:"coordinate,omitempty"`
	Unit       string   `json:"unit"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCatalog serves the open folder's entries
// URL format: /catalog
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, CatalogResponse{
		Folder:  s.session.Folder(),
		Entries: s.session.Entries(),
	})
}

// handleRender serves one product as a PNG figure
// URL format: /render/{index}[?size=N][&raw=1]
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	index, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/render/"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid URL format. Expected: /render/{index}")
		return
	}
	figureSize, _ := s.sizes()
	size, err := sizeParam(r, figureSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rendered, err := s.session.View(index)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var img image.Image = rendered.Image
	if r.URL.Query().Get("raw") != "1" {
		img = render.Figure(rendered, size)
	}
	w.Header().Set("X-Colormap", rendered.Settings.Colormap)
	w.Header().Set("X-Range", strconv.FormatFloat(rendered.Settings.Min, 'g', -1, 64)+","+strconv.FormatFloat(rendered.Settings.Max, 'g', -1, 64))
	s.writePNG(w, img)
}

// handleCompare serves a comparison grid as PNG
// URL format: /compare?i=0&i=2[&size=N], or /compare for the active panels
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	_, panelSize := s.sizes()
	size, err := sizeParam(r, panelSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var indices []int
	for _, raw := range r.URL.Query()["i"] {
		for _, part := range strings.Split(raw, ",") {
			i, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid panel index: "+part)
				return
			}
			indices = append(indices, i)
		}
	}

	var cmp *render.Comparison
	if len(indices) == 0 {
		cmp, err = s.session.CompareActive()
	} else {
		cmp, err = s.session.Compare(indices)
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.Header().Set("X-Panels-Failed", strconv.Itoa(len(cmp.Panels)-cmp.Succeeded()))
	s.writePNG(w, cmp.Compose(size))
}

// handleReadout describes one pixel, addressed by pixel or map coordinate
// URL format: /readout/{index}?x=N&y=N or /readout/{index}?gx=X&gy=Y
func (s *Server) handleReadout(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	index, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/readout/"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid URL format. Expected: /readout/{index}?x=N&y=N")
		return
	}

	var info session.PixelInfo
	q := r.URL.Query()
	if q.Has("gx") || q.Has("gy") {
		gx, errX := strconv.ParseFloat(q.Get("gx"), 64)
		gy, errY := strconv.ParseFloat(q.Get("gy"), 64)
		if errX != nil || errY != nil {
			writeError(w, http.StatusBadRequest, "Invalid map coordinates")
			return
		}
		info, err = s.session.ReadoutAt(index, gx, gy)
	} else {
		x, errX := strconv.Atoi(q.Get("x"))
		y, errY := strconv.Atoi(q.Get("y"))
		if errX != nil || errY != nil {
			writeError(w, http.StatusBadRequest, "Invalid pixel coordinates")
			return
		}
		info, err = s.session.Readout(index, x, y)
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewReadoutResponse(info.Entry.Product, info.Readout))
}

// NewReadoutResponse formats a pixel readout for display
func NewReadoutResponse(product catalog.ProductType, ro raster.Readout) ReadoutResponse {
	resp := ReadoutResponse{
		Readout: ro,
		Display: naming.FormatValue(ro.Value),
		Unit:    product.Unit(),
	}
	if ro.Valid {
		v := ro.Value
		resp.Value = &v
	}
	if ro.HasGeo {
		resp.Coordinate = naming.FormatCoordinate(ro.GeoX, ro.GeoY, ro.Geographic)
	}
	return resp
}

// writeDomainError maps session, catalog and raster errors to status codes.
// Anything unrecognised comes from user input such as a bad range or pixel.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var (
		indexErr *session.IndexError
		readErr  *raster.ReadError
		dirErr   *catalog.DirectoryError
	)
	status := http.StatusBadRequest
	switch {
	case errors.As(err, &indexErr), errors.Is(err, session.ErrNoFolder):
		status = http.StatusNotFound
	case errors.As(err, &readErr), errors.As(err, &dirErr):
		status = http.StatusUnprocessableEntity
	}
	s.logger.Debug().Err(err).Int("status", status).Msg("request rejected")
	writeError(w, status, err.Error())
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, OPTIONS")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func sizeParam(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("size")
	if raw == "" {
		return def, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 64 || size > maxImageSize {
		return 0, errors.New("size must be an integer between 64 and 4096")
	}
	return size, nil
}

func (s *Server) writePNG(w http.ResponseWriter, img image.Image) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.WritePNG(w, img); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write PNG")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
