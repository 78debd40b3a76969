package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"
	"sort"

	"github.com/klauspost/compress/zlib"
)

var enc = binary.LittleEndian

type ifdEntry struct {
	tag      uint16
	datatype uint16
	count    uint32
	data     []byte
}

type byTag []ifdEntry

func (d byTag) Len() int           { return len(d) }
func (d byTag) Less(i, j int) bool { return d[i].tag < d[j].tag }
func (d byTag) Swap(i, j int)      { d[i], d[j] = d[j], d[i] }

// Options controls how EncodeFloat32 lays out a single-band raster.
type Options struct {
	// Compression is CompressionNone (default) or CompressionDeflate.
	Compression int
	// Predictor is PredictorNone (default) or PredictorFloatingPoint.
	Predictor int
	// TileSize > 0 writes square tiles of that edge (must be a multiple of 16);
	// otherwise the band is written as one strip per RowsPerStrip rows.
	TileSize int
	// RowsPerStrip defaults to the full image height.
	RowsPerStrip int
	// NoData is written as a GDAL_NODATA tag when set.
	NoData *float64
	// Geo carries georeferencing; nothing is written when HasTransform is false.
	Geo GeoInfo
}

// Encode writes the image m to w as an uncompressed RGBA TIFF.
// extraTags is a map of TagID -> value.
// Supported value types: []uint16 (SHORT), []float64 (DOUBLE), string (ASCII).
func Encode(w io.Writer, m image.Image, extraTags map[uint16]interface{}) error {
	bounds := m.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Buffer for pixel data
	pixelData := new(bytes.Buffer)
	pixelData.Grow(width * height * 4)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := m.At(x, y).RGBA()
			// RGBA() returns 16-bit values. Convert to 8-bit.
			pixelData.WriteByte(uint8(r >> 8))
			pixelData.WriteByte(uint8(g >> 8))
			pixelData.WriteByte(uint8(b >> 8))
			pixelData.WriteByte(uint8(a >> 8))
		}
	}

	var entries []ifdEntry
	addEntry := func(tag uint16, datatype uint16, count uint32, data []byte) {
		entries = append(entries, ifdEntry{tag, datatype, count, data})
	}

	addEntry(TagType_ImageWidth, DataType_Long, 1, enc32(uint32(width)))
	addEntry(TagType_ImageLength, DataType_Long, 1, enc32(uint32(height)))
	addEntry(TagType_BitsPerSample, DataType_Short, 4, enc16s([]uint16{8, 8, 8, 8}))
	addEntry(TagType_Compression, DataType_Short, 1, enc16(CompressionNone))
	addEntry(TagType_PhotometricInterpretation, DataType_Short, 1, enc16(2)) // RGB
	addEntry(TagType_SamplesPerPixel, DataType_Short, 1, enc16(4))
	addEntry(TagType_RowsPerStrip, DataType_Long, 1, enc32(uint32(height)))
	addEntry(TagType_ExtraSamples, DataType_Short, 1, enc16(2)) // Unassociated alpha
	addEntry(TagType_XResolution, DataType_Rational, 1, encRational(72, 1))
	addEntry(TagType_YResolution, DataType_Rational, 1, encRational(72, 1))
	addEntry(TagType_ResolutionUnit, DataType_Short, 1, enc16(2)) // Inch

	extra, err := encodeExtraTags(extraTags)
	if err != nil {
		return err
	}
	entries = append(entries, extra...)

	return writeTIFF(w, entries, TagType_StripOffsets, TagType_StripByteCounts, [][]byte{pixelData.Bytes()})
}

// EncodeFloat32 writes a single-band float32 GeoTIFF. data is row-major,
// len(data) must equal width*height. NaN samples are written as NaN.
func EncodeFloat32(w io.Writer, width, height int, data []float64, opts Options) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	if len(data) != width*height {
		return fmt.Errorf("data length %d does not match %dx%d", len(data), width, height)
	}
	if opts.Compression == 0 {
		opts.Compression = CompressionNone
	}
	if opts.Predictor == 0 {
		opts.Predictor = PredictorNone
	}
	switch opts.Compression {
	case CompressionNone, CompressionDeflate:
	default:
		return UnsupportedError(fmt.Sprintf("encoding with compression %d", opts.Compression))
	}
	if opts.Predictor != PredictorNone && opts.Predictor != PredictorFloatingPoint {
		return UnsupportedError(fmt.Sprintf("encoding with predictor %d", opts.Predictor))
	}
	if opts.TileSize > 0 && opts.TileSize%16 != 0 {
		return fmt.Errorf("tile size %d is not a multiple of 16", opts.TileSize)
	}

	var entries []ifdEntry
	addEntry := func(tag uint16, datatype uint16, count uint32, data []byte) {
		entries = append(entries, ifdEntry{tag, datatype, count, data})
	}

	addEntry(TagType_ImageWidth, DataType_Long, 1, enc32(uint32(width)))
	addEntry(TagType_ImageLength, DataType_Long, 1, enc32(uint32(height)))
	addEntry(TagType_BitsPerSample, DataType_Short, 1, enc16(32))
	addEntry(TagType_Compression, DataType_Short, 1, enc16(uint16(opts.Compression)))
	addEntry(TagType_PhotometricInterpretation, DataType_Short, 1, enc16(1)) // BlackIsZero
	addEntry(TagType_SamplesPerPixel, DataType_Short, 1, enc16(1))
	addEntry(TagType_PlanarConfiguration, DataType_Short, 1, enc16(1))
	addEntry(TagType_SampleFormat, DataType_Short, 1, enc16(SampleFormatFloat))
	if opts.Predictor != PredictorNone {
		addEntry(TagType_Predictor, DataType_Short, 1, enc16(uint16(opts.Predictor)))
	}
	if opts.NoData != nil {
		b := append([]byte(formatNoData(*opts.NoData)), 0)
		addEntry(TagType_GDALNoData, DataType_ASCII, uint32(len(b)), b)
	}

	extra, err := encodeExtraTags(GeoTags(opts.Geo))
	if err != nil {
		return err
	}
	entries = append(entries, extra...)

	// Cut the band into chunks
	type chunk struct{ x0, y0, w, h int }
	var layout []chunk
	offsetsTag, countsTag := uint16(TagType_StripOffsets), uint16(TagType_StripByteCounts)
	if opts.TileSize > 0 {
		ts := opts.TileSize
		addEntry(TagType_TileWidth, DataType_Long, 1, enc32(uint32(ts)))
		addEntry(TagType_TileLength, DataType_Long, 1, enc32(uint32(ts)))
		for y := 0; y < height; y += ts {
			for x := 0; x < width; x += ts {
				layout = append(layout, chunk{x, y, ts, ts})
			}
		}
		offsetsTag, countsTag = TagType_TileOffsets, TagType_TileByteCounts
	} else {
		rps := opts.RowsPerStrip
		if rps <= 0 || rps > height {
			rps = height
		}
		addEntry(TagType_RowsPerStrip, DataType_Long, 1, enc32(uint32(rps)))
		for y := 0; y < height; y += rps {
			h := rps
			if y+h > height {
				h = height - y
			}
			layout = append(layout, chunk{0, y, width, h})
		}
	}

	chunks := make([][]byte, len(layout))
	for i, c := range layout {
		buf := make([]byte, 4*c.w*c.h)
		for cy := 0; cy < c.h; cy++ {
			for cx := 0; cx < c.w; cx++ {
				x, y := c.x0+cx, c.y0+cy
				v := float32(0)
				if x < width && y < height {
					v = float32(data[y*width+x])
				}
				enc.PutUint32(buf[4*(cy*c.w+cx):], math.Float32bits(v))
			}
		}
		if opts.Predictor == PredictorFloatingPoint {
			applyFloatPredictor(buf, c.w, 4, 1, enc)
		}
		if opts.Compression == CompressionDeflate {
			if buf, err = deflate(buf); err != nil {
				return fmt.Errorf("failed to compress chunk %d: %w", i, err)
			}
		}
		chunks[i] = buf
	}

	return writeTIFF(w, entries, offsetsTag, countsTag, chunks)
}

// GeoTags builds the GeoTIFF tag set for g, ready to pass to Encode.
// Returns an empty map when g carries no transform.
func GeoTags(g GeoInfo) map[uint16]interface{} {
	tags := make(map[uint16]interface{})
	if !g.HasTransform {
		return tags
	}
	gt := g.Transform

	if gt[2] == 0 && gt[4] == 0 {
		// Tag 33550: ModelPixelScaleTag (ScaleX, ScaleY, ScaleZ)
		scaleY := gt[5]
		if scaleY < 0 {
			scaleY = -scaleY
		}
		tags[TagType_ModelPixelScaleTag] = []float64{gt[1], scaleY, 0.0}
		// Tag 33922: ModelTiepointTag maps pixel (0,0,0) to the origin
		tags[TagType_ModelTiepointTag] = []float64{0.0, 0.0, 0.0, gt[0], gt[3], 0.0}
	} else {
		tags[TagType_ModelTransformationTag] = []float64{
			gt[1], gt[2], 0, gt[0],
			gt[4], gt[5], 0, gt[3],
			0, 0, 0, 0,
			0, 0, 0, 1,
		}
	}

	modelType := uint16(ModelTypeProjected)
	crsKey := uint16(GeoKey_ProjectedCSType)
	if g.Geographic {
		modelType = ModelTypeGeographic
		crsKey = GeoKey_GeographicType
	}
	keys := [][4]uint16{
		{GeoKey_GTModelType, 0, 1, modelType},
		{GeoKey_GTRasterType, 0, 1, RasterPixelIsArea},
	}
	if g.Citation != "" {
		keys = append(keys, [4]uint16{GeoKey_GTCitation, TagType_GeoAsciiParamsTag, uint16(len(g.Citation) + 1), 0})
		tags[TagType_GeoAsciiParamsTag] = g.Citation + "|"
	}
	if g.EPSG > 0 && g.EPSG < 65535 {
		keys = append(keys, [4]uint16{crsKey, 0, 1, uint16(g.EPSG)})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i][0] < keys[j][0] })

	// Tag 34735: GeoKeyDirectoryTag, Version=1, Revision=1, Minor=0
	dir := []uint16{1, 1, 0, uint16(len(keys))}
	for _, k := range keys {
		dir = append(dir, k[:]...)
	}
	tags[TagType_GeoKeyDirectoryTag] = dir
	return tags
}

func encodeExtraTags(extraTags map[uint16]interface{}) ([]ifdEntry, error) {
	var entries []ifdEntry
	for tag, val := range extraTags {
		switch v := val.(type) {
		case []uint16:
			entries = append(entries, ifdEntry{tag, DataType_Short, uint32(len(v)), enc16s(v)})
		case []float64:
			entries = append(entries, ifdEntry{tag, DataType_Double, uint32(len(v)), encDoubles(v)})
		case string:
			// ASCII needs null terminator
			b := append([]byte(v), 0)
			entries = append(entries, ifdEntry{tag, DataType_ASCII, uint32(len(b)), b})
		default:
			return nil, fmt.Errorf("unsupported tag value type for tag %d", tag)
		}
	}
	return entries, nil
}

// writeTIFF lays out header, IFD, out-of-line values and pixel chunks.
// The offsets/byte-count entries for chunks are generated here.
func writeTIFF(w io.Writer, entries []ifdEntry, offsetsTag, countsTag uint16, chunks [][]byte) error {
	counts := make([]uint32, len(chunks))
	for i, c := range chunks {
		counts[i] = uint32(len(c))
	}
	entries = append(entries,
		ifdEntry{offsetsTag, DataType_Long, uint32(len(chunks)), make([]byte, 4*len(chunks))},
		ifdEntry{countsTag, DataType_Long, uint32(len(chunks)), enc32s(counts)},
	)
	sort.Sort(byTag(entries))

	// Header: 8 bytes, IFD starts at 8: 2 + 12*N + 4
	ifdSize := 2 + 12*len(entries) + 4
	valueDataOffset := 8 + ifdSize

	// Values that do not fit the 4-byte field go after the IFD, word aligned
	largeSize := 0
	for _, e := range entries {
		if len(e.data) > 4 {
			largeSize += len(e.data) + len(e.data)%2
		}
	}
	pixelsOffset := uint32(valueDataOffset + largeSize)

	offsets := make([]uint32, len(chunks))
	next := pixelsOffset
	for i, c := range chunks {
		offsets[i] = next
		next += uint32(len(c))
	}
	for i := range entries {
		if entries[i].tag == offsetsTag {
			entries[i].data = enc32s(offsets)
		}
	}

	// LittleEndian (II), Version 42 (0x2A), First IFD Offset (8)
	header := []byte{'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00}
	if _, err := w.Write(header); err != nil {
		return err
	}

	var largeDataBuf bytes.Buffer
	if err := binary.Write(w, enc, uint16(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := binary.Write(w, enc, e.tag); err != nil {
			return err
		}
		if err := binary.Write(w, enc, e.datatype); err != nil {
			return err
		}
		if err := binary.Write(w, enc, e.count); err != nil {
			return err
		}

		// Offset/Value field (4 bytes)
		var val [4]byte
		if len(e.data) <= 4 {
			copy(val[:], e.data)
		} else {
			enc.PutUint32(val[:], uint32(valueDataOffset+largeDataBuf.Len()))
			largeDataBuf.Write(e.data)
			if len(e.data)%2 == 1 {
				largeDataBuf.WriteByte(0)
			}
		}
		if _, err := w.Write(val[:]); err != nil {
			return err
		}
	}

	// Next IFD Offset (0)
	if err := binary.Write(w, enc, uint32(0)); err != nil {
		return err
	}
	if _, err := largeDataBuf.WriteTo(w); err != nil {
		return err
	}
	for _, c := range chunks {
		if _, err := w.Write(c); err != nil {
			return err
		}
	}
	return nil
}

func deflate(b []byte) ([]byte, error) {
	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// applyFloatPredictor is the inverse of undoFloatPredictor: byte planes are
// stored most significant first, then differenced horizontally.
func applyFloatPredictor(buf []byte, width, bytesPerSample, samples int, order binary.ByteOrder) {
	rowLen := width * samples * bytesPerSample
	wc := width * samples
	tmp := make([]byte, rowLen)
	for row := 0; row+rowLen <= len(buf); row += rowLen {
		b := buf[row : row+rowLen]
		for k := 0; k < wc; k++ {
			for j := 0; j < bytesPerSample; j++ {
				src := j
				if order == binary.LittleEndian {
					src = bytesPerSample - 1 - j
				}
				tmp[j*wc+k] = b[k*bytesPerSample+src]
			}
		}
		for i := rowLen - 1; i >= samples; i-- {
			tmp[i] -= tmp[i-samples]
		}
		copy(b, tmp)
	}
}

// Helpers

func enc16(v uint16) []byte {
	b := make([]byte, 2)
	enc.PutUint16(b, v)
	return b
}

func enc32(v uint32) []byte {
	b := make([]byte, 4)
	enc.PutUint32(b, v)
	return b
}

func enc16s(vs []uint16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		enc.PutUint16(b[i*2:], v)
	}
	return b
}

func enc32s(vs []uint32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		enc.PutUint32(b[i*4:], v)
	}
	return b
}

func encDoubles(vs []float64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		enc.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

func encRational(num, den uint32) []byte {
	b := make([]byte, 8)
	enc.PutUint32(b[:4], num)
	enc.PutUint32(b[4:], den)
	return b
}
