// Package photo prepares user-supplied photos for embedding in a report: it
// corrects camera orientation, bounds the longest side and re-encodes the
// result as JPEG together with a data URI preview.
package photo

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
	"strings"

	// Decoders registered for image.Decode.
	_ "image/gif"
	_ "image/png"

	"github.com/apex/log"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension = 800
	DefaultQuality      = 80
	DefaultMaxInputSize = 20 * 1024 * 1024 // 20MB
	DefaultMaxPixels    = 50_000_000

	// MIMEType is the encoding of every prepared photo.
	MIMEType = "image/jpeg"
)

var (
	ErrEmptyImage        = errors.New("image data is empty")
	ErrTooLarge          = errors.New("image exceeds maximum input size")
	ErrTooManyPixels     = errors.New("image exceeds maximum pixel count")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidDataURI    = errors.New("invalid data URI")
)

// Options controls how a photo is prepared.
type Options struct {
	MaxDimension int
	Quality      int
	MaxInputSize int64
	// MaxPixels bounds width*height before the image is decoded.
	MaxPixels int64
}

// DefaultOptions returns the options used by the capture form.
func DefaultOptions() Options {
	return Options{
		MaxDimension: DefaultMaxDimension,
		Quality:      DefaultQuality,
		MaxInputSize: DefaultMaxInputSize,
		MaxPixels:    DefaultMaxPixels,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.MaxInputSize <= 0 {
		o.MaxInputSize = DefaultMaxInputSize
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	return o
}

// Photo is a prepared, embeddable image.
type Photo struct {
	Data    []byte `json:"-"`
	DataURI string `json:"-"`

	Width          int    `json:"width"`
	Height         int    `json:"height"`
	OriginalWidth  int    `json:"original_width"`
	OriginalHeight int    `json:"original_height"`
	OriginalFormat string `json:"original_format"`
	OriginalSize   int64  `json:"original_size"`
	Orientation    int    `json:"orientation"`
}

// Size returns the encoded size in bytes.
func (p *Photo) Size() int {
	if p == nil {
		return 0
	}
	return len(p.Data)
}

// PrepareFile reads path and prepares its contents.
func PrepareFile(path string, opts Options) (*Photo, error) {
	opts = opts.withDefaults()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access photo: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("photo path is a directory: %s", path)
	}
	if info.Size() > opts.MaxInputSize {
		return nil, fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrTooLarge, info.Size(), opts.MaxInputSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}
	return Prepare(data, opts)
}

// Prepare decodes data, rejecting images whose header declares more than
// opts.MaxPixels pixels, applies the EXIF orientation, scales it so neither
// side exceeds opts.MaxDimension and encodes it as JPEG.
func Prepare(data []byte, opts Options) (*Photo, error) {
	opts = opts.withDefaults()

	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if int64(len(data)) > opts.MaxInputSize {
		return nil, fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrTooLarge, len(data), opts.MaxInputSize)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > opts.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d (max: %d pixels)", ErrTooManyPixels, cfg.Width, cfg.Height, opts.MaxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	orientation := Orientation(data)
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	// Dimensions as displayed, after orientation.
	dispW, dispH := srcW, srcH
	if swapsAxes(orientation) {
		dispW, dispH = srcH, srcW
	}
	outW, outH := Resize(dispW, dispH, opts.MaxDimension)

	scaleW, scaleH := outW, outH
	if swapsAxes(orientation) {
		scaleW, scaleH = outH, outW
	}

	// JPEG has no alpha; transparent pixels end up white.
	scaled := image.NewRGBA(image.Rect(0, 0, scaleW, scaleH))
	draw.Draw(scaled, scaled.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, draw.Over, nil)

	oriented := Orient(scaled, orientation)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, oriented, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode photo: %w", err)
	}

	p := &Photo{
		Data:           buf.Bytes(),
		Width:          outW,
		Height:         outH,
		OriginalWidth:  dispW,
		OriginalHeight: dispH,
		OriginalFormat: format,
		OriginalSize:   int64(len(data)),
		Orientation:    orientation,
	}
	p.DataURI = DataURI(MIMEType, p.Data)

	log.WithFields(log.Fields{
		"format":      format,
		"orientation": orientation,
		"original":    fmt.Sprintf("%dx%d", dispW, dispH),
		"prepared":    fmt.Sprintf("%dx%d", outW, outH),
		"bytes_in":    len(data),
		"bytes_out":   len(p.Data),
	}).Debug("photo prepared")

	return p, nil
}

// Resize returns the dimensions of a width x height image scaled so that
// neither side exceeds limit. The longer side is pinned to limit and the other
// side is rounded half up; square images pin the height. Images already
// within the bound are returned unchanged.
func Resize(width, height, limit int) (int, int) {
	if limit <= 0 || width <= 0 || height <= 0 {
		return width, height
	}

	if width > height {
		if width > limit {
			height = roundRatio(height, limit, width)
			width = limit
		}
	} else if height > limit {
		width = roundRatio(width, limit, height)
		height = limit
	}

	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}

func roundRatio(v, num, den int) int {
	return int(math.Floor(float64(v)*float64(num)/float64(den) + 0.5))
}

// DataURI encodes data as a base64 data URI.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI returns the media type and payload of a base64 data URI. A
// bare base64 string is accepted and reported with an empty media type.
func DecodeDataURI(s string) (string, []byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, ErrInvalidDataURI
	}

	if !strings.HasPrefix(s, "data:") {
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
		}
		return "", data, nil
	}

	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	mime, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: payload is not base64", ErrInvalidDataURI)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return mime, data, nil
}
