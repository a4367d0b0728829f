// Package pdf renders report templates onto their base PDF with pdfcpu and
// verifies the produced documents.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/apex/log"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"

	"github.com/a3tai/capture-report/internal/photo"
	"github.com/a3tai/capture-report/internal/template"
)

const (
	DefaultFontName = "Helvetica"
	DefaultFontSize = 13

	// DefaultShapeResolution is the raster resolution of shapes in pixels
	// per millimetre (about 300 dpi).
	DefaultShapeResolution = 12.0

	pointsPerMM = 72 / 25.4
)

var (
	ErrPageMismatch    = errors.New("template has more pages than the base PDF")
	ErrUnsupportedText = errors.New("text cannot be encoded with the selected font")
	ErrFontUnavailable = errors.New("font is not available")
)

// RendererOptions configures a Renderer.
type RendererOptions struct {
	// FontName is used for text schemas that do not name an installed font.
	FontName string
	// FontScript enables CJK text layout in pdfcpu (e.g. "JA").
	FontScript string
	// ShapeResolution is the ellipse raster resolution in pixels per mm.
	ShapeResolution float64
}

// Renderer stamps template schemas onto a base PDF.
type Renderer struct {
	opts RendererOptions
}

// NewRenderer creates a renderer, filling unset options with defaults.
func NewRenderer(opts RendererOptions) *Renderer {
	if opts.FontName == "" {
		opts.FontName = DefaultFontName
	}
	if opts.ShapeResolution <= 0 {
		opts.ShapeResolution = DefaultShapeResolution
	}
	return &Renderer{opts: opts}
}

// FontName returns the default font of the renderer.
func (r *Renderer) FontName() string {
	return r.opts.FontName
}

// InstallFont registers a TrueType font file with pdfcpu and returns nil if
// name is usable afterwards.
func InstallFont(path, name string) error {
	if err := api.InstallFonts([]string{path}); err != nil {
		return fmt.Errorf("failed to install font %s: %w", path, err)
	}
	if !font.SupportedFont(name) {
		return fmt.Errorf("%w: %q after installing %s", ErrFontUnavailable, name, path)
	}
	return nil
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// Render draws every schema of tmpl onto its base PDF. Read-only schemas use
// their own content, the others take inputs[name]; empty values are skipped.
func (r *Renderer) Render(ctx context.Context, tmpl *template.Template, inputs map[string]string) ([]byte, error) {
	base, err := r.baseDocument(tmpl)
	if err != nil {
		return nil, err
	}

	conf := newConfiguration()
	dims, err := api.PageDims(bytes.NewReader(base), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read base PDF pages: %w", err)
	}
	if len(dims) < tmpl.PageCount() {
		return nil, fmt.Errorf("%w: %d schema pages, %d PDF pages", ErrPageMismatch, tmpl.PageCount(), len(dims))
	}

	stamps := make(map[int][]*model.Watermark)
	count := 0
	for i, page := range tmpl.Schemas {
		for _, s := range page {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			value := inputs[s.Name]
			if s.ReadOnly {
				value = s.Content
			}

			wm, err := r.watermark(s, value, dims[i])
			if err != nil {
				return nil, fmt.Errorf("schema %q on page %d: %w", s.Name, i+1, err)
			}
			if wm == nil {
				continue
			}
			stamps[i+1] = append(stamps[i+1], wm)
			count++
		}
	}

	log.WithFields(log.Fields{
		"pages":    len(dims),
		"overlays": count,
	}).Debug("rendering template")

	if count == 0 {
		return base, nil
	}

	var out bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(base), &out, stamps, conf); err != nil {
		return nil, fmt.Errorf("failed to stamp overlays: %w", err)
	}
	return out.Bytes(), nil
}

func (r *Renderer) baseDocument(tmpl *template.Template) ([]byte, error) {
	if blank := tmpl.BasePDF.Blank; blank != nil {
		return BlankDocument(tmpl.PageCount(), blank.Width*pointsPerMM, blank.Height*pointsPerMM)
	}
	data, err := tmpl.BaseBytes()
	if err != nil {
		return nil, err
	}
	return data, nil
}

// box is a schema rectangle in PDF user space (origin bottom-left, points).
type box struct {
	x, y, w, h float64
}

func schemaBox(s template.Schema, page types.Dim) box {
	w := s.Width * pointsPerMM
	h := s.Height * pointsPerMM
	return box{
		x: s.Position.X * pointsPerMM,
		y: page.Height - s.Position.Y*pointsPerMM - h,
		w: w,
		h: h,
	}
}

func (r *Renderer) watermark(s template.Schema, value string, page types.Dim) (*model.Watermark, error) {
	switch s.Type {
	case template.TypeText:
		if value == "" {
			return nil, nil
		}
		return r.textStamp(s, value, schemaBox(s, page))
	case template.TypeImage:
		if value == "" {
			return nil, nil
		}
		return r.imageStamp(s, value, schemaBox(s, page))
	case template.TypeEllipse:
		return r.ellipseStamp(s, schemaBox(s, page))
	default:
		return nil, fmt.Errorf("unsupported schema type %q", s.Type)
	}
}

func (r *Renderer) fontFor(s template.Schema) string {
	if s.FontName != "" && font.SupportedFont(s.FontName) {
		return s.FontName
	}
	return r.opts.FontName
}

// checkEncodable rejects text a core font cannot draw. Core fonts are limited
// to WinAnsi; TrueType fonts are not checked.
func checkEncodable(fontName, text string) error {
	if !font.IsCoreFont(fontName) {
		return nil
	}
	if _, err := charmap.Windows1252.NewEncoder().String(text); err != nil {
		return fmt.Errorf("%w: %q with %s, install a TrueType font", ErrUnsupportedText, text, fontName)
	}
	return nil
}

// CheckText verifies up front that every text schema of tmpl can be drawn
// with its font. Read-only schemas are checked with their content, the others
// with samples[name] when present.
func (r *Renderer) CheckText(tmpl *template.Template, samples map[string]string) error {
	for i, page := range tmpl.Schemas {
		for _, s := range page {
			if s.Type != template.TypeText {
				continue
			}
			value := samples[s.Name]
			if s.ReadOnly {
				value = s.Content
			}
			if value == "" {
				continue
			}
			if err := checkEncodable(r.fontFor(s), value); err != nil {
				return fmt.Errorf("schema %q on page %d: %w", s.Name, i+1, err)
			}
		}
	}
	return nil
}

func (r *Renderer) textStamp(s template.Schema, text string, b box) (*model.Watermark, error) {
	fontName := r.fontFor(s)
	if err := checkEncodable(fontName, text); err != nil {
		return nil, err
	}

	size := s.FontSize
	if size <= 0 {
		size = DefaultFontSize
	}
	points := int(math.Round(size))
	lineHeight := s.LineHeight
	if lineHeight <= 0 {
		lineHeight = 1
	}

	lines := strings.Split(text, "\n")
	textWidth := 0.0
	for _, line := range lines {
		textWidth = math.Max(textWidth, font.TextWidth(line, fontName, points))
	}
	textHeight := float64(len(lines)) * float64(points) * lineHeight

	dx := b.x
	switch s.Alignment {
	case "center":
		dx = b.x + (b.w-textWidth)/2
	case "right":
		dx = b.x + b.w - textWidth
	}

	dy := b.y + b.h - textHeight
	switch s.VerticalAlignment {
	case "middle":
		dy = b.y + (b.h-textHeight)/2
	case "bottom":
		dy = b.y
	}

	desc := []string{
		"fontname:" + fontName,
		fmt.Sprintf("points:%d", points),
		"scalefactor:1 abs",
		"position:bl",
		fmt.Sprintf("offset:%.2f %.2f", dx, dy),
		fmt.Sprintf("rotation:%.2f", -s.Rotate),
		fmt.Sprintf("opacity:%.2f", s.EffectiveOpacity()),
	}
	if s.FontColor != "" {
		c, err := ParseHexColor(s.FontColor)
		if err != nil {
			return nil, err
		}
		desc = append(desc, "fillcolor:"+hexColor(c))
	}
	if len(lines) > 1 {
		desc = append(desc, "aligntext:"+alignCode(s.Alignment))
	}
	if r.opts.FontScript != "" && !font.IsCoreFont(fontName) {
		desc = append(desc, "script:"+r.opts.FontScript)
	}

	wm, err := api.TextWatermark(text, strings.Join(desc, ", "), true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("failed to build text stamp: %w", err)
	}
	return wm, nil
}

func alignCode(alignment string) string {
	switch alignment {
	case "center":
		return "c"
	case "right":
		return "r"
	default:
		return "l"
	}
}

func (r *Renderer) imageStamp(s template.Schema, value string, b box) (*model.Watermark, error) {
	_, data, err := photo.DecodeDataURI(value)
	if err != nil {
		return nil, err
	}

	data, width, height, err := embeddableImage(data)
	if err != nil {
		return nil, err
	}

	// Fit inside the box, keeping the aspect ratio, centred.
	scale := math.Min(b.w/float64(width), b.h/float64(height))
	dx := b.x + (b.w-float64(width)*scale)/2
	dy := b.y + (b.h-float64(height)*scale)/2

	return imageWatermark(data, dx, dy, scale, s)
}

func (r *Renderer) ellipseStamp(s template.Schema, b box) (*model.Watermark, error) {
	border, err := ParseHexColor(s.BorderColor)
	if err != nil {
		return nil, err
	}
	fill, err := ParseHexColor(s.Color)
	if err != nil {
		return nil, err
	}
	if border == nil && fill == nil {
		return nil, nil
	}

	res := r.opts.ShapeResolution
	data, width, _, err := RasterizeEllipse(EllipseSpec{
		Width:       s.Width,
		Height:      s.Height,
		BorderWidth: s.BorderWidth,
		BorderColor: border,
		FillColor:   fill,
	}, res)
	if err != nil {
		return nil, err
	}

	scale := b.w / float64(width)
	return imageWatermark(data, b.x, b.y, scale, s)
}

func imageWatermark(data []byte, dx, dy, scale float64, s template.Schema) (*model.Watermark, error) {
	desc := strings.Join([]string{
		"position:bl",
		fmt.Sprintf("offset:%.2f %.2f", dx, dy),
		fmt.Sprintf("scalefactor:%.6f abs", scale),
		fmt.Sprintf("rotation:%.2f", -s.Rotate),
		fmt.Sprintf("opacity:%.2f", s.EffectiveOpacity()),
	}, ", ")

	wm, err := api.ImageWatermarkForReader(bytes.NewReader(data), desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("failed to build image stamp: %w", err)
	}
	return wm, nil
}

// embeddableImage returns data as JPEG or PNG together with its pixel size,
// converting other formats to PNG.
func embeddableImage(data []byte) ([]byte, int, int, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read image: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, 0, 0, photo.ErrEmptyImage
	}
	if format == "jpeg" || format == "png" {
		return data, cfg.Width, cfg.Height, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode %s image: %w", format, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to convert %s image: %w", format, err)
	}
	return buf.Bytes(), cfg.Width, cfg.Height, nil
}
