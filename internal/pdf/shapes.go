package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"golang.org/x/image/vector"
)

// bezierCircle is the control point distance approximating a quarter circle
// with a cubic Bézier curve.
const bezierCircle = 0.5522847498

// EllipseSpec describes an ellipse filling a w x h box, all in millimetres.
type EllipseSpec struct {
	Width       float64
	Height      float64
	BorderWidth float64
	BorderColor color.Color
	FillColor   color.Color // nil for no fill
}

// RasterizeEllipse draws spec as a transparent PNG at pxPerMM resolution.
func RasterizeEllipse(spec EllipseSpec, pxPerMM float64) ([]byte, int, int, error) {
	w := int(spec.Width*pxPerMM + 0.5)
	h := int(spec.Height*pxPerMM + 0.5)
	if w < 1 || h < 1 {
		return nil, 0, 0, fmt.Errorf("ellipse too small: %.2fx%.2fmm", spec.Width, spec.Height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	cx, cy := float32(w)/2, float32(h)/2
	rx, ry := cx, cy
	border := float32(spec.BorderWidth * pxPerMM)

	if spec.FillColor != nil {
		z := vector.NewRasterizer(w, h)
		z.DrawOp = draw.Over
		ellipsePath(z, cx, cy, rx-border, ry-border, false)
		z.Draw(dst, dst.Bounds(), image.NewUniform(spec.FillColor), image.Point{})
	}

	if border > 0 && spec.BorderColor != nil {
		z := vector.NewRasterizer(w, h)
		z.DrawOp = draw.Over
		ellipsePath(z, cx, cy, rx, ry, false)
		if border < rx && border < ry {
			// Opposite winding cancels the inner area, leaving a ring.
			ellipsePath(z, cx, cy, rx-border, ry-border, true)
		}
		z.Draw(dst, dst.Bounds(), image.NewUniform(spec.BorderColor), image.Point{})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode ellipse: %w", err)
	}
	return buf.Bytes(), w, h, nil
}

func ellipsePath(z *vector.Rasterizer, cx, cy, rx, ry float32, reverse bool) {
	if rx <= 0 || ry <= 0 {
		return
	}
	kx, ky := float32(bezierCircle)*rx, float32(bezierCircle)*ry

	z.MoveTo(cx+rx, cy)
	if !reverse {
		z.CubeTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
		z.CubeTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
		z.CubeTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
		z.CubeTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	} else {
		z.CubeTo(cx+rx, cy-ky, cx+kx, cy-ry, cx, cy-ry)
		z.CubeTo(cx-kx, cy-ry, cx-rx, cy-ky, cx-rx, cy)
		z.CubeTo(cx-rx, cy+ky, cx-kx, cy+ry, cx, cy+ry)
		z.CubeTo(cx+kx, cy+ry, cx+rx, cy+ky, cx+rx, cy)
	}
	z.ClosePath()
}

// ParseHexColor parses #RRGGBB or #RGB. An empty string yields nil.
func ParseHexColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return nil, fmt.Errorf("invalid color %q: missing #", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// hexColor formats c as #RRGGBB.
func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02X%02X%02X", r>>8, g>>8, b>>8)
}
