package geotiff

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(w, h int) []float64 {
	data := make([]float64, w*h)
	for i := range data {
		data[i] = float64(i)*0.25 - 10
	}
	return data
}

func encodeBand(t *testing.T, w, h int, data []float64, opts Options) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, EncodeFloat32(&buf, w, h, data, opts))
	return bytes.NewReader(buf.Bytes())
}

func TestFloat32RoundTripLayouts(t *testing.T) {
	const w, h = 37, 21
	geo := GeoInfo{
		Transform:    [6]float64{500000, 30, 0, 4200000, 0, -30},
		HasTransform: true,
		EPSG:         32611,
	}

	tests := []struct {
		name string
		opts Options
	}{
		{name: "single strip uncompressed", opts: Options{Geo: geo}},
		{name: "multiple strips deflate", opts: Options{Geo: geo, Compression: CompressionDeflate, RowsPerStrip: 4}},
		{name: "tiled deflate", opts: Options{Geo: geo, Compression: CompressionDeflate, TileSize: 16}},
		{name: "tiled floating point predictor", opts: Options{Geo: geo, Compression: CompressionDeflate, Predictor: PredictorFloatingPoint, TileSize: 16}},
		{name: "strips floating point predictor", opts: Options{Geo: geo, Predictor: PredictorFloatingPoint, RowsPerStrip: 5}},
	}

	data := ramp(w, h)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := encodeBand(t, w, h, data, tt.opts)
			band, err := Read(r, r.Size())
			require.NoError(t, err)

			assert.Equal(t, w, band.Width)
			assert.Equal(t, h, band.Height)
			assert.Equal(t, 32, band.BitsPerSample)
			assert.Equal(t, SampleFormatFloat, band.SampleFormat)
			assert.Equal(t, tt.opts.TileSize > 0, band.Tiled)
			require.Len(t, band.Data, w*h)
			for i, v := range data {
				assert.InDelta(t, v, band.Data[i], 1e-6, "sample %d", i)
			}

			assert.True(t, band.Geo.HasTransform)
			assert.Equal(t, geo.Transform, band.Geo.Transform)
			assert.Equal(t, "EPSG:32611", band.Geo.CRS())
		})
	}
}

func TestNoDataBecomesNaN(t *testing.T) {
	nd := -9999.0
	data := []float64{1, -9999, 3, 4, -9999, 6}

	r := encodeBand(t, 3, 2, data, Options{NoData: &nd})
	band, err := Read(r, r.Size())
	require.NoError(t, err)

	require.NotNil(t, band.NoData)
	assert.Equal(t, nd, *band.NoData)
	assert.True(t, math.IsNaN(band.Data[1]))
	assert.True(t, math.IsNaN(band.Data[4]))
	assert.Equal(t, 6.0, band.Data[5])
}

func TestNaNNoDataTag(t *testing.T) {
	nd := math.NaN()
	data := []float64{math.NaN(), 2}

	r := encodeBand(t, 2, 1, data, Options{NoData: &nd})
	band, err := Read(r, r.Size())
	require.NoError(t, err)

	require.NotNil(t, band.NoData)
	assert.True(t, math.IsNaN(*band.NoData))
	assert.True(t, math.IsNaN(band.Data[0]))
	assert.Equal(t, 2.0, band.Data[1])
}

func TestRotatedTransformUsesModelTransformation(t *testing.T) {
	geo := GeoInfo{
		Transform:    [6]float64{100, 2, 0.5, 200, 0.25, -2},
		HasTransform: true,
		EPSG:         4326,
		Geographic:   true,
		Citation:     "WGS 84",
	}
	tags := GeoTags(geo)
	assert.Contains(t, tags, uint16(TagType_ModelTransformationTag))
	assert.NotContains(t, tags, uint16(TagType_ModelTiepointTag))

	r := encodeBand(t, 2, 2, []float64{1, 2, 3, 4}, Options{Geo: geo})
	info, err := ReadGeoInfo(r, r.Size())
	require.NoError(t, err)

	assert.Equal(t, geo.Transform, info.Transform)
	assert.True(t, info.Geographic)
	assert.Equal(t, 4326, info.EPSG)
	assert.Equal(t, "WGS 84", info.Citation)
}

func TestMissingGeoreferencing(t *testing.T) {
	r := encodeBand(t, 2, 2, []float64{1, 2, 3, 4}, Options{})
	band, err := Read(r, r.Size())
	require.NoError(t, err)

	assert.False(t, band.Geo.HasTransform)
	assert.Equal(t, "", band.Geo.CRS())
	assert.Empty(t, GeoTags(band.Geo))
}

func TestRGBAEncodeReadsFirstChannel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.Set(x, y, color.RGBA{R: uint8(10*x + 100*y), G: 7, B: 9, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, GeoTags(GeoInfo{
		Transform:    [6]float64{0, 1, 0, 0, 0, -1},
		HasTransform: true,
		EPSG:         3857,
	})))

	r := bytes.NewReader(buf.Bytes())
	band, err := Read(r, r.Size())
	require.NoError(t, err)

	assert.Equal(t, 4, band.SamplesPerPixel)
	assert.Equal(t, 8, band.BitsPerSample)
	assert.Equal(t, []float64{0, 10, 20, 100, 110, 120}, band.Data)
	assert.Equal(t, "EPSG:3857", band.Geo.CRS())
}

func TestReadRejectsCorruptInput(t *testing.T) {
	valid := func() []byte {
		var buf bytes.Buffer
		require.NoError(t, EncodeFloat32(&buf, 8, 8, ramp(8, 8), Options{}))
		return buf.Bytes()
	}()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "not a tiff", data: []byte("this is plainly not a tiff file at all")},
		{name: "bad magic", data: []byte{'I', 'I', 0x2B, 0x01, 8, 0, 0, 0}},
		{name: "ifd beyond end", data: []byte{'I', 'I', 0x2A, 0x00, 0xFF, 0xFF, 0, 0}},
		{name: "truncated pixel data", data: valid[:len(valid)-40]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.data)
			_, err := Read(r, r.Size())
			require.Error(t, err)
			var fe FormatError
			assert.ErrorAs(t, err, &fe)
		})
	}
}

// oversizedHeader is a small TIFF whose header claims a width x height
// float32 raster backed by a single 16-byte strip.
func oversizedHeader(width, height uint32, compression uint16) []byte {
	type entry struct {
		tag, datatype uint16
		value         uint32
	}
	entries := []entry{
		{TagType_ImageWidth, DataType_Long, width},
		{TagType_ImageLength, DataType_Long, height},
		{TagType_BitsPerSample, DataType_Short, 32},
		{TagType_Compression, DataType_Short, uint32(compression)},
		{TagType_StripOffsets, DataType_Long, 8 + 2 + 7*12 + 4},
		{TagType_StripByteCounts, DataType_Long, 16},
		{TagType_SampleFormat, DataType_Short, SampleFormatFloat},
	}
	le := binary.LittleEndian
	buf := []byte{'I', 'I', 42, 0, 8, 0, 0, 0}
	buf = le.AppendUint16(buf, uint16(len(entries)))
	for _, e := range entries {
		buf = le.AppendUint16(buf, e.tag)
		buf = le.AppendUint16(buf, e.datatype)
		buf = le.AppendUint32(buf, 1)
		buf = le.AppendUint32(buf, e.value)
	}
	buf = le.AppendUint32(buf, 0)
	return append(buf, make([]byte, 16)...)
}

func TestReadRejectsOversizedHeader(t *testing.T) {
	tests := []struct {
		name        string
		compression uint16
	}{
		{name: "uncompressed", compression: CompressionNone},
		{name: "deflate", compression: CompressionDeflate},
		{name: "lzw", compression: CompressionLZW},
		{name: "packbits", compression: CompressionPackBits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(oversizedHeader(46000, 46000, tt.compression))
			_, err := Read(r, r.Size())
			var fe FormatError
			require.ErrorAs(t, err, &fe)
			assert.Contains(t, err.Error(), "chunk 0")
		})
	}

	// 2x2 float32 fits in the 16 stored bytes
	r := bytes.NewReader(oversizedHeader(2, 2, CompressionNone))
	band, err := Read(r, r.Size())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, band.Data)
}

func TestReadRejectsBigTIFF(t *testing.T) {
	r := bytes.NewReader([]byte{'I', 'I', 0x2B, 0x00, 8, 0, 0, 0, 0, 0, 0, 0})
	_, err := Read(r, r.Size())
	var ue UnsupportedError
	assert.ErrorAs(t, err, &ue)
}

func TestEncodeFloat32Validation(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, EncodeFloat32(&buf, 0, 4, nil, Options{}))
	assert.Error(t, EncodeFloat32(&buf, 2, 2, []float64{1, 2, 3}, Options{}))
	assert.Error(t, EncodeFloat32(&buf, 2, 2, []float64{1, 2, 3, 4}, Options{TileSize: 10}))
	assert.Error(t, EncodeFloat32(&buf, 2, 2, []float64{1, 2, 3, 4}, Options{Compression: CompressionLZW}))
}

func TestUnpackBits(t *testing.T) {
	// Example from the TIFF 6.0 specification, section 9
	packed := []byte{0xFE, 0xAA, 0x02, 0x80, 0x00, 0x2A, 0xFD, 0xAA, 0x03, 0x80, 0x00, 0x2A, 0x22, 0xF7, 0xAA}
	want := []byte{
		0xAA, 0xAA, 0xAA, 0x80, 0x00, 0x2A, 0xAA, 0xAA, 0xAA, 0xAA,
		0x80, 0x00, 0x2A, 0x22, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA,
		0xAA, 0xAA, 0xAA, 0xAA,
	}

	got, err := unpackBits(packed, len(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = unpackBits(packed[:3], len(want))
	assert.Error(t, err)
}

func TestUndoHorizontalPredictor(t *testing.T) {
	buf := make([]byte, 8)
	for i, d := range []uint16{100, 5, 65535, 3} { // 100, 105, 104, 107
		binary.LittleEndian.PutUint16(buf[2*i:], d)
	}

	require.NoError(t, undoHorizontalPredictor(buf, 4, 2, 1, binary.LittleEndian))

	var got []uint16
	for i := 0; i < 4; i++ {
		got = append(got, binary.LittleEndian.Uint16(buf[2*i:]))
	}
	assert.Equal(t, []uint16{100, 105, 104, 107}, got)
}

func TestFloatPredictorInverse(t *testing.T) {
	orig := make([]byte, 4*6)
	for i, v := range []float32{1.5, -2.25, 3e7, 0, 42, -0.001} {
		binary.BigEndian.PutUint32(orig[4*i:], math.Float32bits(v))
	}
	buf := append([]byte(nil), orig...)

	applyFloatPredictor(buf, 3, 4, 1, binary.BigEndian)
	assert.NotEqual(t, orig, buf)
	undoFloatPredictor(buf, 3, 4, 1, binary.BigEndian)
	assert.Equal(t, orig, buf)
}
