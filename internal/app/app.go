// Package app wires a loaded configuration into the logging setup and the
// report service shared by the binaries.
package app

import (
	"fmt"
	"io"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"

	"github.com/a3tai/capture-report/internal/capture"
	"github.com/a3tai/capture-report/internal/config"
	"github.com/a3tai/capture-report/internal/draft"
	"github.com/a3tai/capture-report/internal/pdf"
	"github.com/a3tai/capture-report/internal/photo"
	"github.com/a3tai/capture-report/internal/report"
	"github.com/a3tai/capture-report/internal/template"
)

// SetupLogging configures the global logger for the run mode. In stdio mode
// the protocol owns stdout, so entries go to w (stderr) and only in debug.
func SetupLogging(cfg *config.Config, w io.Writer) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.IsStdioMode() && !cfg.IsDebug() {
		log.SetHandler(discard.New())
		return
	}

	if cfg.LogFormat == config.LogFormatJSON {
		log.SetHandler(jsonhandler.New(w))
	} else {
		log.SetHandler(text.New(w))
	}
}

// LoadTemplate reads the configured template, or the built-in layout when
// none is configured.
func LoadTemplate(cfg *config.Config) (*template.Template, string, error) {
	if cfg.TemplatePath == "" {
		tmpl, err := template.Default()
		return tmpl, "default", err
	}
	tmpl, err := template.Load(cfg.TemplatePath)
	if err != nil {
		return nil, "", err
	}
	return tmpl, cfg.TemplatePath, nil
}

// NewService builds the report service described by cfg. The returned close
// function releases the draft store.
func NewService(cfg *config.Config) (*report.Service, func() error, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	tmpl, name, err := LoadTemplate(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load template: %w", err)
	}

	fontName := cfg.FontName
	if cfg.FontPath != "" {
		if err := pdf.InstallFont(cfg.FontPath, fontName); err != nil {
			return nil, nil, err
		}
		log.WithFields(log.Fields{"font": fontName, "path": cfg.FontPath}).Debug("font installed")
	}
	renderer := pdf.NewRenderer(pdf.RendererOptions{
		FontName:   fontName,
		FontScript: cfg.FontScript,
	})
	if err := renderer.CheckText(tmpl, capture.InputSamples()); err != nil {
		return nil, nil, fmt.Errorf("template %s needs a font covering its text (set --font): %w", name, err)
	}

	var store *draft.Store
	if cfg.DraftsEnabled() {
		store, err = draft.Open(cfg.DraftDB)
		if err != nil {
			return nil, nil, err
		}
	}
	closeFn := func() error {
		if store == nil {
			return nil
		}
		return store.Close()
	}

	service, err := report.NewService(report.Options{
		ServerName:      cfg.ServerName,
		Version:         cfg.Version,
		Directory:       cfg.Directory,
		OutputDirectory: cfg.OutputDirectory,
		Template:        tmpl,
		TemplateName:    name,
		Renderer:        renderer,
		Drafts:          store,
		Location:        loc,
		Photo: photo.Options{
			MaxDimension: cfg.MaxImageDimension,
			Quality:      cfg.JPEGQuality,
			MaxInputSize: cfg.MaxPhotoSize,
		},
		MaxFileSize: cfg.MaxFileSize,
		Logger:      log.Log,
	})
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return service, closeFn, nil
}
