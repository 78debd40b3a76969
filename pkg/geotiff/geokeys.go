package geotiff

import (
	"fmt"
	"strings"
)

// GeoInfo is the georeferencing carried by a GeoTIFF.
//
// Transform uses the GDAL affine form:
//
//	X = T[0] + col*T[1] + row*T[2]
//	Y = T[3] + col*T[4] + row*T[5]
//
// where (col, row) address the top-left corner of a pixel.
type GeoInfo struct {
	Transform    [6]float64
	HasTransform bool
	EPSG         int
	Geographic   bool
	Citation     string
}

// CRS returns "EPSG:<code>" when a registered code is present, the citation
// string otherwise, or "" when the file carries no CRS keys.
func (g GeoInfo) CRS() string {
	if g.EPSG > 0 && g.EPSG != userDefinedKey {
		return fmt.Sprintf("EPSG:%d", g.EPSG)
	}
	return g.Citation
}

type geoKey struct {
	location uint16
	count    uint16
	value    uint16
}

func (d *decoder) geoInfo() GeoInfo {
	var g GeoInfo

	if m := d.floats(TagType_ModelTransformationTag); len(m) >= 16 {
		g.Transform = [6]float64{m[3], m[0], m[1], m[7], m[4], m[5]}
		g.HasTransform = true
	} else {
		tie := d.floats(TagType_ModelTiepointTag)
		scale := d.floats(TagType_ModelPixelScaleTag)
		if len(tie) >= 6 && len(scale) >= 2 {
			i, j, x, y := tie[0], tie[1], tie[3], tie[4]
			sx, sy := scale[0], scale[1]
			g.Transform = [6]float64{x - i*sx, sx, 0, y + j*sy, 0, -sy}
			g.HasTransform = true
		}
	}

	keys := d.geoKeys()
	asciiParams := d.ascii(TagType_GeoAsciiParamsTag)
	keyASCII := func(id uint16) string {
		k, ok := keys[id]
		if !ok || k.location != TagType_GeoAsciiParamsTag {
			return ""
		}
		start, end := int(k.value), int(k.value)+int(k.count)
		if start > len(asciiParams) {
			return ""
		}
		if end > len(asciiParams) {
			end = len(asciiParams)
		}
		return strings.TrimRight(asciiParams[start:end], "|\x00 ")
	}
	keyShort := func(id uint16) int {
		k, ok := keys[id]
		if !ok || k.location != 0 {
			return 0
		}
		return int(k.value)
	}

	if code := keyShort(GeoKey_ProjectedCSType); code != 0 {
		g.EPSG = code
	} else if code := keyShort(GeoKey_GeographicType); code != 0 {
		g.EPSG = code
		g.Geographic = true
	}
	if keyShort(GeoKey_GTModelType) == ModelTypeGeographic {
		g.Geographic = true
	}
	for _, id := range []uint16{GeoKey_GTCitation, GeoKey_PCSCitation, GeoKey_GeogCitation} {
		if s := keyASCII(id); s != "" {
			g.Citation = s
			break
		}
	}

	// PixelIsPoint tiepoints reference pixel centres; shift to corner convention
	if g.HasTransform && keyShort(GeoKey_GTRasterType) == RasterPixelIsPoint {
		t := &g.Transform
		t[0] -= 0.5*t[1] + 0.5*t[2]
		t[3] -= 0.5*t[4] + 0.5*t[5]
	}
	return g
}

func (d *decoder) geoKeys() map[uint16]geoKey {
	dir := d.uints(TagType_GeoKeyDirectoryTag)
	keys := make(map[uint16]geoKey)
	if len(dir) < 4 {
		return keys
	}
	n := int(dir[3])
	for i := 0; i < n && 4+4*i+3 < len(dir); i++ {
		e := dir[4+4*i:]
		keys[uint16(e[0])] = geoKey{location: uint16(e[1]), count: uint16(e[2]), value: uint16(e[3])}
	}
	return keys
}
