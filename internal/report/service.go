// Package report ties the capture form, photo preparation, template variant
// selection, rendering and draft storage together.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/microcosm-cc/bluemonday"

	"github.com/a3tai/capture-report/internal/capture"
	"github.com/a3tai/capture-report/internal/draft"
	"github.com/a3tai/capture-report/internal/pdf"
	"github.com/a3tai/capture-report/internal/pdf/security"
	"github.com/a3tai/capture-report/internal/photo"
	"github.com/a3tai/capture-report/internal/template"
)

// ErrDraftsDisabled is returned by draft operations without a store.
var ErrDraftsDisabled = errors.New("draft storage is not configured")

// PhotoExtensions are the file types accepted as photo paths.
var PhotoExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"}

const maxRecentReports = 20

// Options configures a Service. Template, Renderer and Directory are
// required.
type Options struct {
	ServerName string
	Version    string

	// Directory bounds photo paths; OutputDirectory bounds written reports
	// and defaults to Directory.
	Directory       string
	OutputDirectory string

	Template     *template.Template
	TemplateName string
	Renderer     *pdf.Renderer
	Drafts       *draft.Store

	Location    *time.Location
	Photo       photo.Options
	MaxFileSize int64

	Logger log.Interface
	Now    func() time.Time
}

// Service implements the report operations shared by every front end.
type Service struct {
	opts     Options
	inputs   *security.PathValidator
	outputs  *security.PathValidator
	verifier *pdf.Verifier
	policy   *bluemonday.Policy
	log      log.Interface
	now      func() time.Time
}

// NewService validates opts and creates a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Template == nil {
		return nil, fmt.Errorf("template is required")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}

	inputs, err := security.NewPathValidator(opts.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}
	if opts.OutputDirectory == "" {
		opts.OutputDirectory = opts.Directory
	}
	outputs, err := security.NewPathValidator(opts.OutputDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create output path validator: %w", err)
	}

	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = log.Log
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TemplateName == "" {
		opts.TemplateName = "default"
	}

	return &Service{
		opts:     opts,
		inputs:   inputs,
		outputs:  outputs,
		verifier: pdf.NewVerifier(opts.MaxFileSize),
		policy:   bluemonday.StrictPolicy(),
		log:      opts.Logger,
		now:      opts.Now,
	}, nil
}

// Location returns the time zone used for dates on the form.
func (s *Service) Location() *time.Location {
	return s.opts.Location
}

// Now returns the current time of the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// Generate prepares the photos, validates the report, renders the selected
// template variant and optionally saves the document.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	const op = "report.Generate"
	start := s.now()
	r := req.Report

	s.log.WithFields(eventFields(r.Params())).Info(EventGenerationStart)

	result, err := s.generate(ctx, &r, req)
	if err != nil {
		err = &Error{Op: op, Kind: KindOf(err), Err: err}
		s.logFailure(&r, err)
		return nil, err
	}

	result.Duration = s.now().Sub(start)
	fields := eventFields(r.Params())
	fields["generation_time_ms"] = result.Duration.Milliseconds()
	fields["size"] = result.Size
	if result.Path != "" {
		fields["path"] = result.Path
	}
	s.log.WithFields(fields).Info(EventGenerationSuccess)

	return result, nil
}

func (s *Service) generate(ctx context.Context, r *capture.Report, req GenerateRequest) (*GenerateResult, error) {
	if r.FirstPhoto == nil && !req.FirstPhoto.IsZero() {
		p, err := s.preparePhoto(ctx, req.FirstPhoto)
		if err != nil {
			return nil, &Error{Op: "prepare first photo", Kind: KindOf(err), Err: err}
		}
		r.FirstPhoto = p
	}
	if r.SecondPhoto == nil && !req.SecondPhoto.IsZero() {
		p, err := s.preparePhoto(ctx, req.SecondPhoto)
		if err != nil {
			return nil, &Error{Op: "prepare second photo", Kind: KindOf(err), Err: err}
		}
		r.SecondPhoto = p
	}

	r.Normalize(s.policy)
	if err := r.Validate(); err != nil {
		return nil, &Error{Op: "validate", Kind: KindValidation, Err: err}
	}

	sel := template.SelectionFor(r)
	tmpl := template.Select(s.opts.Template, sel)

	out, err := s.opts.Renderer.Render(ctx, tmpl, r.Inputs(s.opts.Location))
	if err != nil {
		return nil, &Error{Op: "render", Kind: KindRender, Err: err}
	}

	result := &GenerateResult{
		PDF:      out,
		FileName: r.FileName(s.opts.Location, s.now()),
		Size:     len(out),
		Pages:    tmpl.PageCount(),
		Overlays: variantOverlays(tmpl),
		Excluded: template.Excluded(s.opts.Template, sel),
	}

	if req.Save {
		name := req.OutputPath
		if name == "" {
			name = result.FileName
		}
		path, err := s.outputs.ResolveOutput(name, ".pdf")
		if err != nil {
			return nil, &Error{Op: "resolve output", Kind: KindSecurity, Err: err}
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return nil, &Error{Op: "write output", Kind: KindStorage, Err: err}
		}
		result.Path = path
		result.FileName = filepath.Base(path)
	}

	return result, nil
}

func (s *Service) logFailure(r *capture.Report, err error) {
	fields := eventFields(r.Params())
	fields["error_type"] = string(KindOf(err))
	fields["error_message"] = err.Error()
	fields["error_location"] = errorLocation(err)
	s.log.WithFields(fields).Error(EventGenerationError)
}

// PreparePhoto loads and prepares one photo.
func (s *Service) PreparePhoto(ctx context.Context, src PhotoSource) (*photo.Photo, error) {
	p, err := s.preparePhoto(ctx, src)
	if err != nil {
		return nil, newError("report.PreparePhoto", KindOf(err), err)
	}
	return p, nil
}

func (s *Service) preparePhoto(ctx context.Context, src PhotoSource) (*photo.Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src.IsZero() {
		return nil, &Error{Op: "photo", Kind: KindValidation, Err: capture.ErrPhotoRequired}
	}

	if src.Path != "" {
		path, err := s.inputs.ResolveFile(src.Path, PhotoExtensions...)
		if err != nil {
			return nil, &Error{Op: "resolve photo", Kind: KindSecurity, Err: err}
		}
		p, err := photo.PrepareFile(path, s.opts.Photo)
		if err != nil {
			return nil, &Error{Op: "prepare photo", Kind: KindPhoto, Err: err}
		}
		return p, nil
	}

	p, err := photo.Prepare(src.Data, s.opts.Photo)
	if err != nil {
		return nil, &Error{Op: "prepare photo", Kind: KindPhoto, Err: err}
	}
	return p, nil
}

// Overlays reports which schemas would be rendered for sel.
func (s *Service) Overlays(sel template.Selection) *OverlaysResult {
	tmpl := template.Select(s.opts.Template, sel)
	result := &OverlaysResult{
		Pages:    make([][]string, len(tmpl.Schemas)),
		Excluded: template.Excluded(s.opts.Template, sel),
	}
	for i, page := range tmpl.Schemas {
		names := make([]string, 0, len(page))
		for _, schema := range page {
			names = append(names, schema.Name)
		}
		result.Pages[i] = names
	}
	return result
}

// SaveDraft normalises and stores the non-photo form values.
func (s *Service) SaveDraft(ctx context.Context, d capture.Draft) (capture.Draft, error) {
	const op = "report.SaveDraft"
	if s.opts.Drafts == nil {
		return capture.Draft{}, &Error{Op: op, Kind: KindStorage, Err: ErrDraftsDisabled}
	}

	r := capture.Report{}
	d.Apply(&r)
	r.Normalize(s.policy)
	d = r.Draft()

	if err := d.Validate(); err != nil {
		return capture.Draft{}, &Error{Op: op, Kind: KindValidation, Err: err}
	}
	if err := s.opts.Drafts.Save(ctx, d); err != nil {
		return capture.Draft{}, &Error{Op: op, Kind: KindStorage, Err: err}
	}

	s.log.WithField("key", draft.Key).Debug("draft saved")
	return d, nil
}

// LoadDraft returns the stored draft, or the form defaults when none exists.
func (s *Service) LoadDraft(ctx context.Context) (*DraftResult, error) {
	const op = "report.LoadDraft"
	if s.opts.Drafts == nil {
		return &DraftResult{Draft: capture.Defaults(s.now())}, nil
	}

	d, ok, err := s.opts.Drafts.Load(ctx)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindStorage, Err: err}
	}
	if !ok {
		return &DraftResult{Draft: capture.Defaults(s.now())}, nil
	}

	result := &DraftResult{Draft: d, Found: true}
	if at, ok, err := s.opts.Drafts.UpdatedAt(ctx); err == nil && ok {
		result.UpdatedAt = at
	}
	return result, nil
}

// ClearDraft removes the stored draft.
func (s *Service) ClearDraft(ctx context.Context) error {
	const op = "report.ClearDraft"
	if s.opts.Drafts == nil {
		return &Error{Op: op, Kind: KindStorage, Err: ErrDraftsDisabled}
	}
	if err := s.opts.Drafts.Clear(ctx); err != nil {
		return &Error{Op: op, Kind: KindStorage, Err: err}
	}
	s.log.WithField("key", draft.Key).Debug("draft cleared")
	return nil
}

// Verify checks a generated document below the output directory.
func (s *Service) Verify(path string) (*Verification, error) {
	const op = "report.Verify"
	abs, err := s.outputs.Resolve(path)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindSecurity, Err: err}
	}
	v, err := s.verifier.VerifyFile(abs)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindStorage, Err: err}
	}
	return v, nil
}

// VerifyBytes checks an in-memory document.
func (s *Service) VerifyBytes(data []byte) *Verification {
	return s.verifier.VerifyBytes(data)
}

// Info describes the service configuration and recent output.
func (s *Service) Info(ctx context.Context) (*Info, error) {
	recent, err := s.RecentReports(ctx)
	if err != nil {
		return nil, newError("report.Info", KindStorage, err)
	}

	opts := s.opts.Photo
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = photo.DefaultMaxDimension
	}
	if opts.Quality <= 0 {
		opts.Quality = photo.DefaultQuality
	}

	info := &Info{
		ServerName:      s.opts.ServerName,
		Version:         s.opts.Version,
		Directory:       s.inputs.Root(),
		OutputDirectory: s.outputs.Root(),
		Template:        s.opts.TemplateName,
		TemplatePages:   s.opts.Template.PageCount(),
		Schemas:         s.opts.Template.Names(),
		FontName:        s.opts.Renderer.FontName(),
		Timezone:        s.opts.Location.String(),
		MaxDimension:    opts.MaxDimension,
		JPEGQuality:     opts.Quality,
		DraftsEnabled:   s.opts.Drafts != nil,
		RecentReports:   recent,
	}
	for _, g := range capture.Genders() {
		info.Genders = append(info.Genders, string(g))
	}
	for _, m := range capture.DisposalMethods() {
		info.DisposalMethods = append(info.DisposalMethods, string(m))
	}
	return info, nil
}

// RecentReports lists PDFs in the output directory, newest first.
func (s *Service) RecentReports(ctx context.Context) ([]ReportFile, error) {
	root := s.outputs.Root()
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return []ReportFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	type dated struct {
		ReportFile
		mod time.Time
	}
	var files []dated
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, dated{
			ReportFile: ReportFile{
				Name:         entry.Name(),
				Path:         filepath.Join(root, entry.Name()),
				Size:         info.Size(),
				ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
			},
			mod: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].mod.Equal(files[j].mod) {
			return files[i].Name < files[j].Name
		}
		return files[i].mod.After(files[j].mod)
	})
	if len(files) > maxRecentReports {
		files = files[:maxRecentReports]
	}

	result := make([]ReportFile, len(files))
	for i, f := range files {
		result[i] = f.ReportFile
	}
	return result, nil
}

func variantOverlays(t *template.Template) []string {
	var names []string
	for _, name := range t.Names() {
		if strings.HasPrefix(name, template.GenderPrefix) || strings.HasPrefix(name, template.DisposalPrefix) {
			names = append(names, name)
		}
	}
	return names
}
