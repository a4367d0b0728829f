package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/capture-report/internal/capture"
	"github.com/a3tai/capture-report/internal/config"
	"github.com/a3tai/capture-report/internal/descriptions"
	"github.com/a3tai/capture-report/internal/report"
	"github.com/a3tai/capture-report/internal/template"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *report.Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *report.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("report service cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		service:   service,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

func formOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("submission_date",
			mcp.Description("Submission date, YYYY-MM-DD or ISO 8601"),
		),
		mcp.WithString("capturer_name",
			mcp.Description("Name of the hunter who captured the animal"),
		),
		mcp.WithString("animal_gender",
			mcp.Description("Male or Female (オス/メス)"),
		),
		mcp.WithString("capture_date",
			mcp.Description("Capture date, YYYY-MM-DD or ISO 8601"),
		),
		mcp.WithString("capture_location",
			mcp.Description("Where the animal was captured"),
		),
		mcp.WithString("diagram_number",
			mcp.Description("Location number on the municipal diagram (numeric)"),
		),
		mcp.WithString("disposal_method",
			mcp.Description("Burial, Incineration, Personal consumption or Transport to a wild meat processing facility"),
		),
	}
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	generateOpts := append([]mcp.ToolOption{
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ReportGenerate)),
		mcp.WithString("first_photo",
			mcp.Required(),
			mcp.Description("Path of the photo taken before disposal, relative to the working directory"),
		),
		mcp.WithString("second_photo",
			mcp.Required(),
			mcp.Description("Path of the photo taken after disposal, relative to the working directory"),
		),
		mcp.WithString("output",
			mcp.Description("Output file name in the output directory (default capture-report-YYYY-MM-DD.pdf)"),
		),
		mcp.WithBoolean("use_draft",
			mcp.Description("Start from the saved draft; given values override it"),
		),
		mcp.WithBoolean("embed",
			mcp.Description("Return the PDF in the result instead of writing it to the output directory"),
		),
	}, formOptions()...)
	s.mcpServer.AddTool(mcp.NewTool(descriptions.ReportGenerate, generateOpts...), s.handleReportGenerate)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ReportOverlays,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ReportOverlays)),
		mcp.WithString("animal_gender", mcp.Description("Male or Female")),
		mcp.WithString("disposal_method", mcp.Description("Disposal method")),
	), s.handleReportOverlays)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ReportVerify,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ReportVerify)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Report file, relative to the output directory"),
		),
	), s.handleReportVerify)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.ReportServerInfo,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ReportServerInfo)),
	), s.handleReportServerInfo)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.PhotoPrepare,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.PhotoPrepare)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Photo path, relative to the working directory"),
		),
	), s.handlePhotoPrepare)

	draftOpts := append([]mcp.ToolOption{
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.DraftSave)),
	}, formOptions()...)
	s.mcpServer.AddTool(mcp.NewTool(descriptions.DraftSave, draftOpts...), s.handleDraftSave)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.DraftLoad,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.DraftLoad)),
	), s.handleDraftLoad)

	s.mcpServer.AddTool(mcp.NewTool(descriptions.DraftClear,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.DraftClear)),
	), s.handleDraftClear)
}

func formFromRequest(request mcp.CallToolRequest) capture.Form {
	return capture.Form{
		SubmissionDate:  request.GetString("submission_date", ""),
		CapturerName:    request.GetString("capturer_name", ""),
		AnimalGender:    request.GetString("animal_gender", ""),
		CaptureDate:     request.GetString("capture_date", ""),
		CaptureLocation: request.GetString("capture_location", ""),
		DiagramNumber:   request.GetString("diagram_number", ""),
		DisposalMethod:  request.GetString("disposal_method", ""),
	}
}

// reportFromRequest starts from the form defaults (both dates today), or the
// saved draft with use_draft, and applies the given values on top.
func (s *Server) reportFromRequest(ctx context.Context, request mcp.CallToolRequest) (capture.Report, error) {
	d := capture.Defaults(s.service.Now())
	if request.GetBool("use_draft", false) {
		loaded, err := s.service.LoadDraft(ctx)
		if err != nil {
			return capture.Report{}, err
		}
		d = loaded.Draft
	}

	var r capture.Report
	d.Apply(&r)
	if err := formFromRequest(request).Apply(&r, s.service.Location()); err != nil {
		return capture.Report{}, err
	}
	return r, nil
}

// Handler functions
func (s *Server) handleReportGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	first, err := request.RequireString("first_photo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	second, err := request.RequireString("second_photo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, err := s.reportFromRequest(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	embed := request.GetBool("embed", false)
	result, err := s.service.Generate(ctx, report.GenerateRequest{
		Report:      r,
		FirstPhoto:  report.PhotoSource{Path: first},
		SecondPhoto: report.PhotoSource{Path: second},
		Save:        !embed,
		OutputPath:  request.GetString("output", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := s.formatGenerateResult(result)
	if !embed {
		return mcp.NewToolResultText(text), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
			mcp.NewEmbeddedResource(mcp.BlobResourceContents{
				URI:      "file:///" + result.FileName,
				MIMEType: "application/pdf",
				Blob:     base64.StdEncoding.EncodeToString(result.PDF),
			}),
		},
	}, nil
}

func (s *Server) handleReportOverlays(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gender, err := capture.ParseGender(request.GetString("animal_gender", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	method, err := capture.ParseDisposalMethod(request.GetString("disposal_method", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := s.service.Overlays(template.Selection{Gender: gender, DisposalMethod: method})
	return mcp.NewToolResultText(s.formatOverlaysResult(gender, method, result)), nil
}

func (s *Server) handleReportVerify(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.Verify(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if result.Valid {
		responseText = fmt.Sprintf("Report %s is a valid PDF with %d page(s), %d bytes", result.Path, result.Pages, result.Size)
	} else {
		responseText = fmt.Sprintf("Report verification failed for %s: %s", result.Path, result.Message)
	}
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleReportServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.service.Info(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatServerInfoResult(result)), nil
}

func (s *Server) handlePhotoPrepare(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, err := s.service.PreparePhoto(ctx, report.PhotoSource{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Prepared photo: %s\n", path)
	text += fmt.Sprintf("Original: %dx%d %s, %d bytes\n", p.OriginalWidth, p.OriginalHeight, p.OriginalFormat, p.OriginalSize)
	text += fmt.Sprintf("Embedded: %dx%d JPEG, %d bytes\n", p.Width, p.Height, p.Size())
	if p.Orientation > 1 {
		text += fmt.Sprintf("EXIF orientation %d corrected\n", p.Orientation)
	}

	return mcp.NewToolResultImage(text, base64.StdEncoding.EncodeToString(p.Data), "image/jpeg"), nil
}

func (s *Server) handleDraftSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var r capture.Report
	if err := formFromRequest(request).Apply(&r, s.service.Location()); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	saved, err := s.service.SaveDraft(ctx, r.Draft())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Draft saved\n" + s.formatDraft(saved)), nil
}

func (s *Server) handleDraftLoad(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.service.LoadDraft(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var text string
	if result.Found {
		text = fmt.Sprintf("Saved draft (updated %s)\n", result.UpdatedAt.In(s.service.Location()).Format("2006-01-02 15:04:05"))
	} else {
		text = "No saved draft, showing defaults\n"
	}
	return mcp.NewToolResultText(text + s.formatDraft(result.Draft)), nil
}

func (s *Server) handleDraftClear(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.service.ClearDraft(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Draft cleared"), nil
}

// Formatting methods
func (s *Server) formatGenerateResult(result *report.GenerateResult) string {
	text := "Capture report generated\n"
	if result.Path != "" {
		text += fmt.Sprintf("File: %s\n", result.Path)
	} else {
		text += fmt.Sprintf("File name: %s (embedded)\n", result.FileName)
	}
	text += fmt.Sprintf("Pages: %d\n", result.Pages)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	text += fmt.Sprintf("Generation time: %d ms\n", result.Duration.Milliseconds())
	if len(result.Overlays) > 0 {
		text += fmt.Sprintf("Marked: %s\n", strings.Join(result.Overlays, ", "))
	} else {
		text += "Marked: none\n"
	}
	return text
}

func (s *Server) formatOverlaysResult(gender capture.Gender, method capture.DisposalMethod, result *report.OverlaysResult) string {
	text := fmt.Sprintf("Gender: %s\n", valueOrUnset(string(gender)))
	text += fmt.Sprintf("Disposal method: %s\n", valueOrUnset(string(method)))
	for i, page := range result.Pages {
		text += fmt.Sprintf("Page %d: %s\n", i+1, strings.Join(page, ", "))
	}
	if len(result.Excluded) > 0 {
		text += fmt.Sprintf("Excluded: %s\n", strings.Join(result.Excluded, ", "))
	}
	return text
}

func (s *Server) formatDraft(d capture.Draft) string {
	data, err := json.MarshalIndent(capture.FormOf(d, s.service.Location()), "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

func (s *Server) formatServerInfoResult(result *report.Info) string {
	text := fmt.Sprintf("%s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("Working directory: %s\n", result.Directory)
	text += fmt.Sprintf("Output directory: %s\n", result.OutputDirectory)
	text += fmt.Sprintf("Template: %s (%d pages)\n", result.Template, result.TemplatePages)
	text += fmt.Sprintf("Font: %s\n", result.FontName)
	text += fmt.Sprintf("Time zone: %s\n", result.Timezone)
	text += fmt.Sprintf("Photos: longest side %dpx, JPEG quality %d\n", result.MaxDimension, result.JPEGQuality)
	text += fmt.Sprintf("Drafts: %t\n", result.DraftsEnabled)
	text += fmt.Sprintf("Genders: %s\n", strings.Join(result.Genders, ", "))
	text += fmt.Sprintf("Disposal methods: %s\n\n", strings.Join(result.DisposalMethods, ", "))

	if len(result.RecentReports) > 0 {
		text += fmt.Sprintf("Recent reports (%d):\n", len(result.RecentReports))
		for i, file := range result.RecentReports {
			text += fmt.Sprintf("   %d. %s (%d bytes, %s)\n", i+1, file.Name, file.Size, file.ModifiedTime)
		}
	} else {
		text += "Recent reports: none\n"
	}

	text += "\nAvailable tools:\n"
	for _, name := range descriptions.GetAllToolNames() {
		text += fmt.Sprintf("  • %s\n", name)
	}
	return text
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	switch {
	case s.config.IsServerMode():
		return s.runServerMode(ctx)
	case s.config.IsStdioMode():
		return s.runStdioMode(ctx)
	default:
		return fmt.Errorf("mode %q is not served over MCP", s.config.Mode)
	}
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	log.WithField("dir", s.config.Directory).Debug("starting MCP server on stdio")

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over HTTP with server-sent events until ctx ends
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	srv := &http.Server{
		Addr:              addr,
		Handler:           sse,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("serving MCP over SSE")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve SSE: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sse.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("SSE sessions did not close cleanly")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down SSE server: %w", err)
	}
	return nil
}
