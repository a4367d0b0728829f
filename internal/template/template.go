// Package template reads report templates in the pdfme JSON format: a base
// PDF plus, per page, a list of named overlay schemas positioned in
// millimetres from the top-left corner of the page.
package template

import (
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Schema types understood by the renderer.
const (
	TypeText    = "text"
	TypeImage   = "image"
	TypeEllipse = "ellipse"
)

var (
	ErrNoPages       = errors.New("template has no schema pages")
	ErrInvalidSchema = errors.New("invalid schema")
	ErrInvalidBase   = errors.New("invalid base PDF")
)

//go:embed default_template.json
var defaultTemplate []byte

// Position is the top-left corner of a schema in millimetres.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Schema is one overlay placeholder on a page.
type Schema struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Content  string   `json:"content,omitempty"`
	Position Position `json:"position"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Rotate   float64  `json:"rotate,omitempty"`
	Opacity  *float64 `json:"opacity,omitempty"`
	ReadOnly bool     `json:"readOnly,omitempty"`
	Required bool     `json:"required,omitempty"`

	// text
	FontSize          float64 `json:"fontSize,omitempty"`
	FontName          string  `json:"fontName,omitempty"`
	FontColor         string  `json:"fontColor,omitempty"`
	Alignment         string  `json:"alignment,omitempty"`
	VerticalAlignment string  `json:"verticalAlignment,omitempty"`
	LineHeight        float64 `json:"lineHeight,omitempty"`
	CharacterSpacing  float64 `json:"characterSpacing,omitempty"`
	BackgroundColor   string  `json:"backgroundColor,omitempty"`

	// ellipse
	BorderWidth float64 `json:"borderWidth,omitempty"`
	BorderColor string  `json:"borderColor,omitempty"`
	Color       string  `json:"color,omitempty"`
}

// EffectiveOpacity returns the schema opacity, defaulting to fully opaque.
func (s Schema) EffectiveOpacity() float64 {
	if s.Opacity == nil {
		return 1
	}
	return *s.Opacity
}

// BlankPage describes a generated blank base page in millimetres.
type BlankPage struct {
	Width   float64    `json:"width"`
	Height  float64    `json:"height"`
	Padding [4]float64 `json:"padding"`
}

// BasePDF is the document the overlays are drawn on. Exactly one of Blank,
// Data or Path is set.
type BasePDF struct {
	Blank *BlankPage
	Data  []byte
	Path  string
}

func (b *BasePDF) UnmarshalJSON(data []byte) error {
	*b = BasePDF{}

	var blank BlankPage
	if err := json.Unmarshal(data, &blank); err == nil {
		b.Blank = &blank
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: expected a page size object or a string", ErrInvalidBase)
	}
	s = strings.TrimSpace(s)

	switch {
	case s == "":
		return fmt.Errorf("%w: empty value", ErrInvalidBase)
	case strings.HasPrefix(s, "data:"):
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return fmt.Errorf("%w: malformed data URI", ErrInvalidBase)
		}
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidBase, err)
		}
		b.Data = decoded
	case strings.HasSuffix(strings.ToLower(s), ".pdf"):
		b.Path = s
	default:
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("%w: not a data URI, base64 payload or .pdf path", ErrInvalidBase)
		}
		b.Data = decoded
	}
	return nil
}

func (b BasePDF) MarshalJSON() ([]byte, error) {
	switch {
	case b.Blank != nil:
		return json.Marshal(b.Blank)
	case len(b.Data) > 0:
		return json.Marshal("data:application/pdf;base64," + base64.StdEncoding.EncodeToString(b.Data))
	default:
		return json.Marshal(b.Path)
	}
}

// Template is a parsed pdfme template.
type Template struct {
	BasePDF      BasePDF    `json:"basePdf"`
	Schemas      [][]Schema `json:"schemas"`
	PdfmeVersion string     `json:"pdfmeVersion,omitempty"`

	// dir resolves a relative BasePDF.Path.
	dir string
}

// Default returns the embedded capture report layout.
func Default() (*Template, error) {
	return Parse(defaultTemplate, "")
}

// Load reads and validates the template at path.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	t, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a template. dir is used to resolve a relative
// base PDF path.
func Parse(data []byte, dir string) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	t.dir = dir

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks page count, schema types, names and sizes.
func (t *Template) Validate() error {
	if len(t.Schemas) == 0 {
		return ErrNoPages
	}
	if t.BasePDF.Blank != nil && (t.BasePDF.Blank.Width <= 0 || t.BasePDF.Blank.Height <= 0) {
		return fmt.Errorf("%w: blank page size must be positive", ErrInvalidBase)
	}

	for page, schemas := range t.Schemas {
		seen := make(map[string]bool, len(schemas))
		for _, s := range schemas {
			if s.Name == "" {
				return fmt.Errorf("%w: page %d has a schema without a name", ErrInvalidSchema, page+1)
			}
			if seen[s.Name] {
				return fmt.Errorf("%w: duplicate schema %q on page %d", ErrInvalidSchema, s.Name, page+1)
			}
			seen[s.Name] = true

			switch s.Type {
			case TypeText, TypeImage, TypeEllipse:
			default:
				return fmt.Errorf("%w: %q has unsupported type %q", ErrInvalidSchema, s.Name, s.Type)
			}
			if s.Width <= 0 || s.Height <= 0 {
				return fmt.Errorf("%w: %q must have a positive size", ErrInvalidSchema, s.Name)
			}
		}
	}
	return nil
}

// PageCount returns the number of schema pages.
func (t *Template) PageCount() int {
	return len(t.Schemas)
}

// Names returns every schema name, page by page.
func (t *Template) Names() []string {
	var names []string
	for _, page := range t.Schemas {
		for _, s := range page {
			names = append(names, s.Name)
		}
	}
	return names
}

// BaseBytes returns the base PDF content for data or path based templates.
// It returns nil for a blank base.
func (t *Template) BaseBytes() ([]byte, error) {
	switch {
	case t.BasePDF.Blank != nil:
		return nil, nil
	case len(t.BasePDF.Data) > 0:
		return t.BasePDF.Data, nil
	case t.BasePDF.Path != "":
		path := t.BasePDF.Path
		if !filepath.IsAbs(path) && t.dir != "" {
			path = filepath.Join(t.dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read base PDF: %w", err)
		}
		return data, nil
	default:
		return nil, ErrInvalidBase
	}
}

// Clone returns a deep copy of the schema pages sharing the base PDF.
func (t *Template) Clone() *Template {
	c := *t
	c.Schemas = make([][]Schema, len(t.Schemas))
	for i, page := range t.Schemas {
		c.Schemas[i] = append([]Schema(nil), page...)
	}
	return &c
}
