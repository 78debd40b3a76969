package geotiff

const (
	DataType_Byte      = 1
	DataType_ASCII     = 2
	DataType_Short     = 3
	DataType_Long      = 4
	DataType_Rational  = 5
	DataType_SByte     = 6
	DataType_Undefined = 7
	DataType_SShort    = 8
	DataType_SLong     = 9
	DataType_SRational = 10
	DataType_Float     = 11
	DataType_Double    = 12
	DataType_IFD       = 13
	DataType_Long8     = 16

	TagType_ImageWidth                = 256
	TagType_ImageLength               = 257
	TagType_BitsPerSample             = 258
	TagType_Compression               = 259
	TagType_PhotometricInterpretation = 262
	TagType_StripOffsets              = 273
	TagType_SamplesPerPixel           = 277
	TagType_RowsPerStrip              = 278
	TagType_StripByteCounts           = 279
	TagType_XResolution               = 282
	TagType_YResolution               = 283
	TagType_PlanarConfiguration       = 284
	TagType_ResolutionUnit            = 296
	TagType_Predictor                 = 317
	TagType_TileWidth                 = 322
	TagType_TileLength                = 323
	TagType_TileOffsets               = 324
	TagType_TileByteCounts            = 325
	TagType_ExtraSamples              = 338
	TagType_SampleFormat              = 339

	// GeoTIFF Tags
	TagType_ModelPixelScaleTag     = 33550
	TagType_ModelTiepointTag       = 33922
	TagType_ModelTransformationTag = 34264
	TagType_GeoKeyDirectoryTag     = 34735
	TagType_GeoDoubleParamsTag     = 34736
	TagType_GeoAsciiParamsTag      = 34737

	// GDAL private tags
	TagType_GDALMetadata = 42112
	TagType_GDALNoData   = 42113
)

// Compression schemes
const (
	CompressionNone     = 1
	CompressionLZW      = 5
	CompressionDeflate  = 8
	CompressionPackBits = 32773
	// Pre-standard code some writers still emit for Deflate
	CompressionAdobeDeflate = 32946
)

// Predictor values
const (
	PredictorNone          = 1
	PredictorHorizontal    = 2
	PredictorFloatingPoint = 3
)

// SampleFormat values
const (
	SampleFormatUint         = 1
	SampleFormatInt          = 2
	SampleFormatFloat        = 3
	SampleFormatVoid         = 4
	SampleFormatComplexInt   = 5
	SampleFormatComplexFloat = 6
)

// GeoKey IDs
const (
	GeoKey_GTModelType     = 1024
	GeoKey_GTRasterType    = 1025
	GeoKey_GTCitation      = 1026
	GeoKey_GeographicType  = 2048
	GeoKey_GeogCitation    = 2049
	GeoKey_ProjectedCSType = 3072
	GeoKey_PCSCitation     = 3073

	ModelTypeProjected  = 1
	ModelTypeGeographic = 2

	RasterPixelIsArea  = 1
	RasterPixelIsPoint = 2

	userDefinedKey = 32767
)

// typeSize returns the byte width of one value of a TIFF field type.
func typeSize(datatype uint16) int {
	switch datatype {
	case DataType_Byte, DataType_ASCII, DataType_SByte, DataType_Undefined:
		return 1
	case DataType_Short, DataType_SShort:
		return 2
	case DataType_Long, DataType_SLong, DataType_Float, DataType_IFD:
		return 4
	case DataType_Rational, DataType_SRational, DataType_Double, DataType_Long8:
		return 8
	}
	return 0
}
