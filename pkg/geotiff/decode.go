package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/image/tiff/lzw"
)

// A FormatError reports that the input is not a valid TIFF.
type FormatError string

func (e FormatError) Error() string { return "geotiff: invalid format: " + string(e) }

// An UnsupportedError reports that the input uses a valid but unimplemented feature.
type UnsupportedError string

func (e UnsupportedError) Error() string { return "geotiff: unsupported feature: " + string(e) }

const maxIFDEntries = 4096

// Band is the first sample plane of a GeoTIFF decoded to float64.
type Band struct {
	Width, Height int
	// Data is row-major. Samples equal to NoData are replaced by NaN.
	Data   []float64
	NoData *float64
	Geo    GeoInfo

	BitsPerSample   int
	SampleFormat    int
	SamplesPerPixel int
	Compression     int
	Tiled           bool
}

type field struct {
	datatype uint16
	count    uint32
	raw      []byte
}

type decoder struct {
	r      io.ReaderAt
	size   int64
	bo     binary.ByteOrder
	fields map[uint16]field
}

// Read decodes band 1 of the first image in a (Geo)TIFF of the given size.
func Read(r io.ReaderAt, size int64) (*Band, error) {
	d := &decoder{r: r, size: size, fields: make(map[uint16]field)}
	if err := d.readHeader(); err != nil {
		return nil, err
	}
	return d.decodeBand()
}

// ReadGeoInfo decodes only the georeferencing tags.
func ReadGeoInfo(r io.ReaderAt, size int64) (GeoInfo, error) {
	d := &decoder{r: r, size: size, fields: make(map[uint16]field)}
	if err := d.readHeader(); err != nil {
		return GeoInfo{}, err
	}
	return d.geoInfo(), nil
}

func (d *decoder) readAt(off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+int64(n) > d.size {
		return nil, FormatError(fmt.Sprintf("offset %d+%d beyond end of file", off, n))
	}
	buf := make([]byte, n)
	if _, err := d.r.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func (d *decoder) readHeader() error {
	hdr, err := d.readAt(0, 8)
	if err != nil {
		return FormatError("file too short for a TIFF header")
	}
	switch string(hdr[0:2]) {
	case "II":
		d.bo = binary.LittleEndian
	case "MM":
		d.bo = binary.BigEndian
	default:
		return FormatError("missing byte order mark")
	}
	switch d.bo.Uint16(hdr[2:4]) {
	case 42:
	case 43:
		return UnsupportedError("BigTIFF")
	default:
		return FormatError("bad magic number")
	}

	ifdOffset := int64(d.bo.Uint32(hdr[4:8]))
	cb, err := d.readAt(ifdOffset, 2)
	if err != nil {
		return err
	}
	n := int(d.bo.Uint16(cb))
	if n == 0 || n > maxIFDEntries {
		return FormatError(fmt.Sprintf("IFD entry count %d", n))
	}
	table, err := d.readAt(ifdOffset+2, 12*n)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		e := table[12*i : 12*i+12]
		tag := d.bo.Uint16(e[0:2])
		datatype := d.bo.Uint16(e[2:4])
		count := d.bo.Uint32(e[4:8])
		sz := typeSize(datatype)
		if sz == 0 {
			continue // Unknown field type, skip per TIFF 6.0
		}
		total := int64(count) * int64(sz)
		if total > d.size {
			return FormatError(fmt.Sprintf("tag %d claims %d bytes", tag, total))
		}
		var raw []byte
		if total <= 4 {
			raw = append([]byte(nil), e[8:8+total]...)
		} else {
			raw, err = d.readAt(int64(d.bo.Uint32(e[8:12])), int(total))
			if err != nil {
				return err
			}
		}
		d.fields[tag] = field{datatype: datatype, count: count, raw: raw}
	}
	return nil
}

// uints returns an integer-typed field as uint64 values.
func (d *decoder) uints(tag uint16) []uint64 {
	f, ok := d.fields[tag]
	if !ok {
		return nil
	}
	out := make([]uint64, f.count)
	for i := range out {
		switch f.datatype {
		case DataType_Byte, DataType_Undefined:
			out[i] = uint64(f.raw[i])
		case DataType_Short:
			out[i] = uint64(d.bo.Uint16(f.raw[2*i:]))
		case DataType_Long, DataType_IFD:
			out[i] = uint64(d.bo.Uint32(f.raw[4*i:]))
		case DataType_Long8:
			out[i] = d.bo.Uint64(f.raw[8*i:])
		default:
			return nil
		}
	}
	return out
}

func (d *decoder) firstUint(tag uint16, def uint64) uint64 {
	v := d.uints(tag)
	if len(v) == 0 {
		return def
	}
	return v[0]
}

// floats returns a real-typed field as float64 values.
func (d *decoder) floats(tag uint16) []float64 {
	f, ok := d.fields[tag]
	if !ok {
		return nil
	}
	out := make([]float64, f.count)
	for i := range out {
		switch f.datatype {
		case DataType_Double:
			out[i] = math.Float64frombits(d.bo.Uint64(f.raw[8*i:]))
		case DataType_Float:
			out[i] = float64(math.Float32frombits(d.bo.Uint32(f.raw[4*i:])))
		case DataType_Rational:
			num, den := d.bo.Uint32(f.raw[8*i:]), d.bo.Uint32(f.raw[8*i+4:])
			if den == 0 {
				return nil
			}
			out[i] = float64(num) / float64(den)
		default:
			return nil
		}
	}
	return out
}

func (d *decoder) ascii(tag uint16) string {
	f, ok := d.fields[tag]
	if !ok || f.datatype != DataType_ASCII {
		return ""
	}
	return strings.TrimRight(string(f.raw), "\x00")
}

type sampleLayout struct {
	format      int
	bits        int
	bytes       int
	samples     int // samples per pixel
	pixelStride int // bytes between consecutive pixels of band 1 inside a chunk
	planar      int
}

func (d *decoder) decodeBand() (*Band, error) {
	width := int(d.firstUint(TagType_ImageWidth, 0))
	height := int(d.firstUint(TagType_ImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, FormatError(fmt.Sprintf("zero-size raster %dx%d", width, height))
	}
	if int64(width)*int64(height) > 1<<31 {
		return nil, UnsupportedError(fmt.Sprintf("raster of %dx%d pixels", width, height))
	}

	l := sampleLayout{
		format:  int(d.firstUint(TagType_SampleFormat, SampleFormatUint)),
		bits:    int(d.firstUint(TagType_BitsPerSample, 1)),
		samples: int(d.firstUint(TagType_SamplesPerPixel, 1)),
		planar:  int(d.firstUint(TagType_PlanarConfiguration, 1)),
	}
	if l.samples < 1 {
		return nil, FormatError("samples per pixel is zero")
	}
	if l.bits%8 != 0 || l.bits == 0 || l.bits > 128 {
		return nil, UnsupportedError(fmt.Sprintf("%d bits per sample", l.bits))
	}
	l.bytes = l.bits / 8
	if _, err := sampleValue(make([]byte, l.bytes), l, d.bo); err != nil {
		return nil, err
	}
	l.pixelStride = l.bytes
	if l.planar == 1 {
		l.pixelStride = l.bytes * l.samples
	}

	compression := int(d.firstUint(TagType_Compression, CompressionNone))
	predictor := int(d.firstUint(TagType_Predictor, PredictorNone))

	var (
		offsets, counts []uint64
		chunkW, chunkH  int
		across, down    int
	)
	_, tiled := d.fields[TagType_TileWidth]
	if tiled {
		chunkW = int(d.firstUint(TagType_TileWidth, 0))
		chunkH = int(d.firstUint(TagType_TileLength, 0))
		if chunkW <= 0 || chunkH <= 0 {
			return nil, FormatError("zero tile size")
		}
		if int64(chunkW)*int64(chunkH) > 1<<31 {
			return nil, FormatError(fmt.Sprintf("tile of %dx%d pixels", chunkW, chunkH))
		}
		offsets, counts = d.uints(TagType_TileOffsets), d.uints(TagType_TileByteCounts)
		across = (width + chunkW - 1) / chunkW
		down = (height + chunkH - 1) / chunkH
	} else {
		chunkW = width
		chunkH = int(d.firstUint(TagType_RowsPerStrip, uint64(height)))
		if chunkH <= 0 || chunkH > height {
			chunkH = height
		}
		offsets, counts = d.uints(TagType_StripOffsets), d.uints(TagType_StripByteCounts)
		across = 1
		down = (height + chunkH - 1) / chunkH
	}

	// Band 1 chunks come first when planes are separate
	need := across * down
	if len(offsets) < need {
		return nil, FormatError(fmt.Sprintf("no readable band: %d of %d chunk offsets", len(offsets), need))
	}
	if len(counts) < need {
		return nil, FormatError("missing chunk byte counts")
	}
	chunkBytes := func(i int) int64 {
		rows := chunkH
		if y0 := (i / across) * chunkH; !tiled && y0+rows > height {
			rows = height - y0
		}
		return int64(chunkW) * int64(rows) * int64(l.pixelStride)
	}
	if err := checkChunkSizes(counts[:need], chunkBytes, compression, d.size); err != nil {
		return nil, err
	}

	band := &Band{
		Width:           width,
		Height:          height,
		Data:            make([]float64, width*height),
		Geo:             d.geoInfo(),
		BitsPerSample:   l.bits,
		SampleFormat:    l.format,
		SamplesPerPixel: l.samples,
		Compression:     compression,
		Tiled:           tiled,
	}
	if s := strings.TrimSpace(d.ascii(TagType_GDALNoData)); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			band.NoData = &v
		}
	}

	for i := 0; i < need; i++ {
		x0 := (i % across) * chunkW
		y0 := (i / across) * chunkH
		rows := chunkH
		if !tiled && y0+rows > height {
			rows = height - y0
		}
		expected := int(chunkBytes(i))

		raw, err := d.readAt(int64(offsets[i]), int(counts[i]))
		if err != nil {
			return nil, err
		}
		buf, err := decompress(raw, compression, expected)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}

		samplesPerRow := l.samples
		if l.planar != 1 {
			samplesPerRow = 1
		}
		switch predictor {
		case PredictorNone:
		case PredictorHorizontal:
			if err := undoHorizontalPredictor(buf, chunkW, l.bytes, samplesPerRow, d.bo); err != nil {
				return nil, err
			}
		case PredictorFloatingPoint:
			undoFloatPredictor(buf, chunkW, l.bytes, samplesPerRow, d.bo)
		default:
			return nil, UnsupportedError(fmt.Sprintf("predictor %d", predictor))
		}

		for cy := 0; cy < rows; cy++ {
			y := y0 + cy
			if y >= height {
				break
			}
			for cx := 0; cx < chunkW; cx++ {
				x := x0 + cx
				if x >= width {
					break
				}
				off := (cy*chunkW + cx) * l.pixelStride
				v, _ := sampleValue(buf[off:off+l.bytes], l, d.bo)
				band.Data[y*width+x] = v
			}
		}
	}

	if band.NoData != nil && !math.IsNaN(*band.NoData) {
		nd := *band.NoData
		nd32 := float32(nd)
		for i, v := range band.Data {
			if v == nd || (l.format == SampleFormatFloat && l.bits == 32 && float32(v) == nd32) {
				band.Data[i] = math.NaN()
			}
		}
	}
	return band, nil
}

// maxCompressionRatio bounds how many decoded bytes one stored byte may
// claim for each compression scheme.
func maxCompressionRatio(compression int) int64 {
	switch compression {
	case CompressionNone:
		return 1
	case CompressionPackBits:
		return 64
	case CompressionDeflate, CompressionAdobeDeflate:
		return 1032
	default:
		// 12-bit LZW codes expand to at most 4096 bytes
		return 4096 * 8 / 12
	}
}

// checkChunkSizes rejects headers whose decoded size cannot come from the
// stored bytes, before any band buffer is allocated.
func checkChunkSizes(counts []uint64, chunkBytes func(int) int64, compression int, fileSize int64) error {
	ratio := maxCompressionRatio(compression)
	var decoded int64
	for i, c := range counts {
		if int64(c) > fileSize {
			return FormatError(fmt.Sprintf("chunk %d claims %d bytes in a %d byte file", i, c, fileSize))
		}
		want := chunkBytes(i)
		if compression == CompressionNone && int64(c) < want {
			return FormatError(fmt.Sprintf("chunk %d holds %d of %d bytes", i, c, want))
		}
		if want > int64(c)*ratio {
			return FormatError(fmt.Sprintf("chunk %d of %d bytes cannot decode to %d bytes", i, c, want))
		}
		decoded += want
	}
	if decoded > fileSize*ratio {
		return FormatError(fmt.Sprintf("%d decoded bytes from a %d byte file", decoded, fileSize))
	}
	return nil
}

func decompress(raw []byte, compression, expected int) ([]byte, error) {
	var r io.Reader
	switch compression {
	case CompressionNone:
		if len(raw) < expected {
			return nil, FormatError("short uncompressed chunk")
		}
		return raw[:expected], nil
	case CompressionLZW:
		lr := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		defer lr.Close()
		r = lr
	case CompressionDeflate, CompressionAdobeDeflate:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, FormatError("bad deflate stream: " + err.Error())
		}
		defer zr.Close()
		r = zr
	case CompressionPackBits:
		return unpackBits(raw, expected)
	default:
		return nil, UnsupportedError(fmt.Sprintf("compression %d", compression))
	}
	out := make([]byte, expected)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, FormatError("truncated compressed chunk: " + err.Error())
	}
	return out, nil
}

func unpackBits(raw []byte, expected int) ([]byte, error) {
	out := make([]byte, 0, expected)
	for i := 0; i < len(raw) && len(out) < expected; {
		n := int(int8(raw[i]))
		i++
		switch {
		case n >= 0:
			if i+n+1 > len(raw) {
				return nil, FormatError("truncated PackBits literal run")
			}
			out = append(out, raw[i:i+n+1]...)
			i += n + 1
		case n != -128:
			if i >= len(raw) {
				return nil, FormatError("truncated PackBits repeat run")
			}
			for k := 0; k < 1-n; k++ {
				out = append(out, raw[i])
			}
			i++
		}
	}
	if len(out) < expected {
		return nil, FormatError("short PackBits chunk")
	}
	return out[:expected], nil
}

func undoHorizontalPredictor(buf []byte, width, bytesPerSample, samples int, bo binary.ByteOrder) error {
	rowLen := width * samples * bytesPerSample
	for row := 0; row+rowLen <= len(buf); row += rowLen {
		b := buf[row : row+rowLen]
		for i := samples; i < width*samples; i++ {
			cur, prev := i*bytesPerSample, (i-samples)*bytesPerSample
			switch bytesPerSample {
			case 1:
				b[cur] += b[prev]
			case 2:
				bo.PutUint16(b[cur:], bo.Uint16(b[cur:])+bo.Uint16(b[prev:]))
			case 4:
				bo.PutUint32(b[cur:], bo.Uint32(b[cur:])+bo.Uint32(b[prev:]))
			case 8:
				bo.PutUint64(b[cur:], bo.Uint64(b[cur:])+bo.Uint64(b[prev:]))
			default:
				return UnsupportedError(fmt.Sprintf("horizontal predictor on %d-byte samples", bytesPerSample))
			}
		}
	}
	return nil
}

// undoFloatPredictor reverses PREDICTOR_FLOATINGPOINT and leaves samples in bo order.
func undoFloatPredictor(buf []byte, width, bytesPerSample, samples int, bo binary.ByteOrder) {
	rowLen := width * samples * bytesPerSample
	wc := width * samples
	tmp := make([]byte, rowLen)
	for row := 0; row+rowLen <= len(buf); row += rowLen {
		b := buf[row : row+rowLen]
		for i := samples; i < rowLen; i++ {
			b[i] += b[i-samples]
		}
		copy(tmp, b)
		for k := 0; k < wc; k++ {
			for j := 0; j < bytesPerSample; j++ {
				dst := j
				if bo == binary.LittleEndian {
					dst = bytesPerSample - 1 - j
				}
				b[k*bytesPerSample+dst] = tmp[j*wc+k]
			}
		}
	}
}

func sampleValue(b []byte, l sampleLayout, bo binary.ByteOrder) (float64, error) {
	switch l.format {
	case SampleFormatUint, SampleFormatVoid:
		switch l.bits {
		case 8:
			return float64(b[0]), nil
		case 16:
			return float64(bo.Uint16(b)), nil
		case 32:
			return float64(bo.Uint32(b)), nil
		case 64:
			return float64(bo.Uint64(b)), nil
		}
	case SampleFormatInt:
		switch l.bits {
		case 8:
			return float64(int8(b[0])), nil
		case 16:
			return float64(int16(bo.Uint16(b))), nil
		case 32:
			return float64(int32(bo.Uint32(b))), nil
		case 64:
			return float64(int64(bo.Uint64(b))), nil
		}
	case SampleFormatFloat:
		switch l.bits {
		case 32:
			return float64(math.Float32frombits(bo.Uint32(b))), nil
		case 64:
			return math.Float64frombits(bo.Uint64(b)), nil
		}
	case SampleFormatComplexFloat:
		// Complex samples are reduced to their phase angle
		switch l.bits {
		case 64:
			re := math.Float32frombits(bo.Uint32(b))
			im := math.Float32frombits(bo.Uint32(b[4:]))
			return math.Atan2(float64(im), float64(re)), nil
		case 128:
			re := math.Float64frombits(bo.Uint64(b))
			im := math.Float64frombits(bo.Uint64(b[8:]))
			return math.Atan2(im, re), nil
		}
	case SampleFormatComplexInt:
		switch l.bits {
		case 32:
			return math.Atan2(float64(int16(bo.Uint16(b[2:]))), float64(int16(bo.Uint16(b)))), nil
		case 64:
			return math.Atan2(float64(int32(bo.Uint32(b[4:]))), float64(int32(bo.Uint32(b)))), nil
		}
	}
	return 0, UnsupportedError(fmt.Sprintf("sample format %d with %d bits", l.format, l.bits))
}

func formatNoData(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
