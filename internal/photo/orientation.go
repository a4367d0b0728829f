package photo

import (
	"bytes"
	"image"

	"github.com/rwcarlsen/goexif/exif"
)

// Orientation returns the EXIF orientation tag of data, or 1 when the image
// carries no usable EXIF data.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// swapsAxes reports whether orientation o exchanges width and height.
func swapsAxes(o int) bool {
	return o >= 5 && o <= 8
}

// Orient returns img transformed so that it displays upright for EXIF
// orientation o.
func Orient(img image.Image, o int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst func(x, y int) (int, int)
	switch o {
	case 2: // mirror horizontal
		dst = func(x, y int) (int, int) { return w - 1 - x, y }
	case 3: // rotate 180
		dst = func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }
	case 4: // mirror vertical
		dst = func(x, y int) (int, int) { return x, h - 1 - y }
	case 5: // transpose
		dst = func(x, y int) (int, int) { return y, x }
	case 6: // rotate 90 clockwise
		dst = func(x, y int) (int, int) { return h - 1 - y, x }
	case 7: // transverse
		dst = func(x, y int) (int, int) { return h - 1 - y, w - 1 - x }
	case 8: // rotate 90 counter-clockwise
		dst = func(x, y int) (int, int) { return y, w - 1 - x }
	default:
		return img
	}

	outW, outH := w, h
	if swapsAxes(o) {
		outW, outH = h, w
	}

	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := dst(x, y)
			out.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}
