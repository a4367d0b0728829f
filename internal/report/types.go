package report

import (
	"time"

	"github.com/a3tai/capture-report/internal/capture"
	"github.com/a3tai/capture-report/internal/pdf"
)

// PhotoSource is a photo given either as a file path below the working
// directory or as raw bytes. Path wins when both are set.
type PhotoSource struct {
	Path string
	Data []byte
}

// IsZero reports whether no photo was supplied.
func (p PhotoSource) IsZero() bool {
	return p.Path == "" && len(p.Data) == 0
}

// GenerateRequest describes one report to render.
type GenerateRequest struct {
	Report capture.Report

	// Photos are prepared unless the report already carries them.
	FirstPhoto  PhotoSource
	SecondPhoto PhotoSource

	// Save writes the document to the output directory. OutputPath may name
	// the file, relative to the output directory; by default the dated
	// report file name is used.
	Save       bool
	OutputPath string
}

// GenerateResult is a rendered report.
type GenerateResult struct {
	PDF      []byte        `json:"-"`
	FileName string        `json:"file_name"`
	Path     string        `json:"path,omitempty"`
	Size     int           `json:"size"`
	Pages    int           `json:"pages"`
	Overlays []string      `json:"overlays"`
	Excluded []string      `json:"excluded"`
	Duration time.Duration `json:"-"`
}

// OverlaysResult lists the schema names rendered for a selection.
type OverlaysResult struct {
	Pages    [][]string `json:"pages"`
	Excluded []string   `json:"excluded"`
}

// DraftResult is the stored draft together with its save time.
type DraftResult struct {
	Draft     capture.Draft `json:"draft"`
	Found     bool          `json:"found"`
	UpdatedAt time.Time     `json:"updated_at,omitempty"`
}

// ReportFile is a previously generated report in the output directory.
type ReportFile struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// Info describes the running service.
type Info struct {
	ServerName      string       `json:"server_name"`
	Version         string       `json:"version"`
	Directory       string       `json:"directory"`
	OutputDirectory string       `json:"output_directory"`
	Template        string       `json:"template"`
	TemplatePages   int          `json:"template_pages"`
	Schemas         []string     `json:"schemas"`
	FontName        string       `json:"font_name"`
	Timezone        string       `json:"timezone"`
	MaxDimension    int          `json:"max_image_dimension"`
	JPEGQuality     int          `json:"jpeg_quality"`
	DraftsEnabled   bool         `json:"drafts_enabled"`
	Genders         []string     `json:"genders"`
	DisposalMethods []string     `json:"disposal_methods"`
	RecentReports   []ReportFile `json:"recent_reports"`
}

// Verification is re-exported for callers that only import report.
type Verification = pdf.Verification
