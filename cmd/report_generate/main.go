// Command report_generate renders a single capture report from flags and
// writes it to the output directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/spf13/pflag"

	"github.com/a3tai/capture-report/internal/app"
	"github.com/a3tai/capture-report/internal/capture"
	"github.com/a3tai/capture-report/internal/config"
	"github.com/a3tai/capture-report/internal/report"
)

var version = "dev" // This will be set by build flags

type options struct {
	form        capture.Form
	firstPhoto  string
	secondPhoto string
	output      string
	useDraft    bool
	saveDraft   bool
}

func defineFlags(opts *options) func(*pflag.FlagSet) {
	return func(fs *pflag.FlagSet) {
		fs.StringVar(&opts.form.SubmissionDate, "submission-date", "", "Submission date (YYYY-MM-DD, default today)")
		fs.StringVar(&opts.form.CapturerName, "capturer-name", "", "Name of the hunter")
		fs.StringVar(&opts.form.AnimalGender, "animal-gender", "", "Male or Female (オス/メス)")
		fs.StringVar(&opts.form.CaptureDate, "capture-date", "", "Capture date (YYYY-MM-DD, default today)")
		fs.StringVar(&opts.form.CaptureLocation, "capture-location", "", "Where the animal was captured")
		fs.StringVar(&opts.form.DiagramNumber, "diagram-number", "", "Location number on the municipal diagram")
		fs.StringVar(&opts.form.DisposalMethod, "disposal-method", "", "Burial, Incineration, Personal consumption or Transport to a wild meat processing facility")
		fs.StringVar(&opts.firstPhoto, "first-photo", "", "Photo taken before disposal, relative to --dir (required)")
		fs.StringVar(&opts.secondPhoto, "second-photo", "", "Photo taken after disposal, relative to --dir (required)")
		fs.StringVar(&opts.output, "output", "", "Output file name in --output-dir (default capture-report-YYYY-MM-DD.pdf)")
		fs.BoolVar(&opts.useDraft, "use-draft", false, "Start from the saved draft; flags override it")
		fs.BoolVar(&opts.saveDraft, "save-draft", false, "Store the form values as the draft after generating")
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	cfg, _, err := config.LoadWithFlags("report_generate", args, stderr, defineFlags(&opts))
	if errors.Is(err, config.ErrVersionRequested) {
		fmt.Fprintf(stdout, "report_generate %s\n", version)
		return 0
	}
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if version != "dev" {
		cfg.Version = version
	}

	app.SetupLogging(cfg, stderr)

	if opts.firstPhoto == "" || opts.secondPhoto == "" {
		fmt.Fprintf(stderr, "Error: --first-photo and --second-photo are required\n")
		return 2
	}

	if err := generate(ctx, cfg, opts, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func generate(ctx context.Context, cfg *config.Config, opts options, stdout io.Writer) error {
	service, closeService, err := app.NewService(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeService(); err != nil {
			log.WithError(err).Warn("failed to close draft store")
		}
	}()

	r, err := buildReport(ctx, service, opts)
	if err != nil {
		return err
	}

	result, err := service.Generate(ctx, report.GenerateRequest{
		Report:      r,
		FirstPhoto:  report.PhotoSource{Path: opts.firstPhoto},
		SecondPhoto: report.PhotoSource{Path: opts.secondPhoto},
		Save:        true,
		OutputPath:  opts.output,
	})
	if err != nil {
		return err
	}

	if opts.saveDraft {
		if _, err := service.SaveDraft(ctx, r.Draft()); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "%s (%d pages, %d bytes)\n", result.Path, result.Pages, result.Size)
	return nil
}

// buildReport starts from the form defaults (both dates today), or the saved
// draft with --use-draft, and applies the flag values on top.
func buildReport(ctx context.Context, service *report.Service, opts options) (capture.Report, error) {
	d := capture.Defaults(service.Now())
	if opts.useDraft {
		loaded, err := service.LoadDraft(ctx)
		if err != nil {
			return capture.Report{}, err
		}
		d = loaded.Draft
	}

	var r capture.Report
	d.Apply(&r)
	if err := opts.form.Apply(&r, service.Location()); err != nil {
		return capture.Report{}, err
	}
	return r, nil
}
