package photo

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestResize(t *testing.T) {
	tests := []struct {
		name         string
		width        int
		height       int
		limit        int
		wantW, wantH int
	}{
		{"landscape above bound", 1600, 1200, 800, 800, 600},
		{"portrait above bound", 1200, 1600, 800, 600, 800},
		{"square above bound", 1000, 1000, 800, 800, 800},
		{"within bound", 640, 480, 800, 640, 480},
		{"exactly at bound", 800, 300, 800, 800, 300},
		{"rounds half up", 1600, 1001, 800, 800, 501},
		{"rounding", 4032, 3024, 800, 800, 600},
		{"odd rounding", 3000, 1001, 800, 800, 267},
		{"extreme strip keeps one pixel", 100000, 10, 800, 800, 1},
		{"zero limit is a no-op", 1600, 1200, 0, 1600, 1200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Resize(tt.width, tt.height, tt.limit)
			assert.Equal(t, tt.wantW, w, "width")
			assert.Equal(t, tt.wantH, h, "height")
		})
	}
}

func TestResize_Properties(t *testing.T) {
	const limit = 800
	sizes := []int{1, 2, 3, 7, 99, 640, 799, 800, 801, 1023, 1920, 3024, 4032, 6000}

	for _, w := range sizes {
		for _, h := range sizes {
			gotW, gotH := Resize(w, h, limit)

			assert.LessOrEqual(t, gotW, limit, "%dx%d width bound", w, h)
			assert.LessOrEqual(t, gotH, limit, "%dx%d height bound", w, h)
			assert.LessOrEqual(t, gotW, w, "%dx%d never upscales width", w, h)
			assert.LessOrEqual(t, gotH, h, "%dx%d never upscales height", w, h)

			// The free side is within rounding of the exact proportional value.
			if w > h && w > limit {
				exact := float64(h) * float64(gotW) / float64(w)
				assert.LessOrEqual(t, math.Abs(float64(gotH)-math.Max(exact, 1)), 0.5+1e-9, "%dx%d aspect", w, h)
			}
			if h >= w && h > limit {
				exact := float64(w) * float64(gotH) / float64(h)
				assert.LessOrEqual(t, math.Abs(float64(gotW)-math.Max(exact, 1)), 0.5+1e-9, "%dx%d aspect", w, h)
			}
		}
	}
}

func TestPrepare_DownscalesAndEncodesJPEG(t *testing.T) {
	data := encodePNG(t, 1600, 900)

	p, err := Prepare(data, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 800, p.Width)
	assert.Equal(t, 450, p.Height)
	assert.Equal(t, 1600, p.OriginalWidth)
	assert.Equal(t, 900, p.OriginalHeight)
	assert.Equal(t, "png", p.OriginalFormat)
	assert.Equal(t, 1, p.Orientation)
	assert.True(t, strings.HasPrefix(p.DataURI, "data:image/jpeg;base64,"))

	cfg, format, err := image.DecodeConfig(bytes.NewReader(p.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 450, cfg.Height)
}

func TestPrepare_SmallImageIsReencodedAtSameSize(t *testing.T) {
	p, err := Prepare(encodePNG(t, 120, 80), Options{MaxDimension: 800, Quality: 50})
	require.NoError(t, err)

	assert.Equal(t, 120, p.Width)
	assert.Equal(t, 80, p.Height)

	_, format, err := image.DecodeConfig(bytes.NewReader(p.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestPrepare_Errors(t *testing.T) {
	_, err := Prepare(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Prepare([]byte("definitely not an image"), DefaultOptions())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Prepare(encodePNG(t, 10, 10), Options{MaxInputSize: 8})
	assert.ErrorIs(t, err, ErrTooLarge)
}

// withDimensions rewrites the IHDR chunk of a PNG so its header declares w x h.
func withDimensions(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	require.Equal(t, "IHDR", string(data[12:16]))
	out := bytes.Clone(data)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestPrepare_PixelBudget(t *testing.T) {
	_, err := Prepare(encodePNG(t, 10, 10), Options{MaxPixels: 99})
	assert.ErrorIs(t, err, ErrTooManyPixels)

	_, err = Prepare(encodePNG(t, 10, 10), Options{MaxPixels: 100})
	assert.NoError(t, err)

	forged := withDimensions(t, encodePNG(t, 1, 1), 100_000, 100_000)
	_, err = Prepare(forged, DefaultOptions())
	assert.ErrorIs(t, err, ErrTooManyPixels)
	assert.Contains(t, err.Error(), "100000x100000")
}

func TestPrepareFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "before.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, 300, 1200), 0o600))

	p, err := PrepareFile(path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 200, p.Width)
	assert.Equal(t, 800, p.Height)

	_, err = PrepareFile(filepath.Join(dir, "missing.png"), DefaultOptions())
	assert.Error(t, err)

	_, err = PrepareFile(dir, DefaultOptions())
	assert.Error(t, err)
}

func TestOrient(t *testing.T) {
	// 3x2 image with a marker in the top-left corner.
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	marker := color.RGBA{R: 255, A: 255}
	src.Set(0, 0, marker)

	tests := []struct {
		orientation  int
		wantW, wantH int
		markerX      int
		markerY      int
	}{
		{1, 3, 2, 0, 0},
		{2, 3, 2, 2, 0},
		{3, 3, 2, 2, 1},
		{4, 3, 2, 0, 1},
		{5, 2, 3, 0, 0},
		{6, 2, 3, 1, 0},
		{7, 2, 3, 1, 2},
		{8, 2, 3, 0, 2},
	}

	for _, tt := range tests {
		out := Orient(src, tt.orientation)
		b := out.Bounds()
		assert.Equal(t, tt.wantW, b.Dx(), "orientation %d width", tt.orientation)
		assert.Equal(t, tt.wantH, b.Dy(), "orientation %d height", tt.orientation)

		r, _, _, _ := out.At(tt.markerX, tt.markerY).RGBA()
		assert.Equal(t, uint32(0xffff), r, "orientation %d marker position", tt.orientation)
	}
}

func TestOrientation_NoExif(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4)), nil))
	assert.Equal(t, 1, Orientation(buf.Bytes()))
	assert.Equal(t, 1, Orientation(nil))
}

func TestDataURIRoundTrip(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff, 0x00, 0x10}
	uri := DataURI(MIMEType, payload)

	mime, data, err := DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, MIMEType, mime)
	assert.Equal(t, payload, data)

	// bare base64 without the data: prefix
	_, data, err = DecodeDataURI(uri[strings.Index(uri, ",")+1:])
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	for _, bad := range []string{"", "data:image/png,plain", "data:image/png;base64", "data:image/png;base64,%%%"} {
		_, _, err := DecodeDataURI(bad)
		assert.ErrorIs(t, err, ErrInvalidDataURI, bad)
	}
}
