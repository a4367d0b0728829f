package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/a3tai/capture-report/internal/capture"
	"github.com/a3tai/capture-report/internal/report"
)

type option struct {
	Value    string
	Label    string
	Selected bool
}

type formPage struct {
	Title           string
	Form            capture.Form
	Genders         []option
	DisposalMethods []option
	DraftsEnabled   bool
	DraftFound      bool
	DraftUpdatedAt  string
}

type photoPreview struct {
	DataURI        string `json:"dataUri"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Size           int    `json:"size"`
	OriginalWidth  int    `json:"originalWidth"`
	OriginalHeight int    `json:"originalHeight"`
	OriginalFormat string `json:"originalFormat"`
	OriginalSize   int64  `json:"originalSize"`
	Orientation    int    `json:"orientation"`
}

type draftResponse struct {
	Form      capture.Form `json:"form"`
	Found     bool         `json:"found"`
	UpdatedAt string       `json:"updatedAt,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	loaded, err := s.service.LoadDraft(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	loc := s.service.Location()
	form := capture.FormOf(loaded.Draft, loc)
	page := formPage{
		Title:         "捕獲報告書",
		Form:          form,
		DraftsEnabled: s.config.DraftsEnabled(),
		DraftFound:    loaded.Found,
	}
	if loaded.Found && !loaded.UpdatedAt.IsZero() {
		page.DraftUpdatedAt = loaded.UpdatedAt.In(loc).Format("2006-01-02 15:04")
	}
	for _, g := range capture.Genders() {
		page.Genders = append(page.Genders, option{
			Value:    string(g),
			Label:    g.Label(),
			Selected: form.AnimalGender == string(g),
		})
	}
	for _, m := range capture.DisposalMethods() {
		page.DisposalMethods = append(page.DisposalMethods, option{
			Value:    string(m),
			Label:    m.Label(),
			Selected: form.DisposalMethod == string(m),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, "form.html", page); err != nil {
		s.log.WithError(err).Error("failed to render form")
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize())
	if err := r.ParseMultipartForm(s.maxUploadSize()); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid form: %v", err)})
		return
	}

	var rep capture.Report
	if err := formFromRequest(r).Apply(&rep, s.service.Location()); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: string(report.KindValidation)})
		return
	}

	first, err := readUpload(r, "first_photo")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	second, err := readUpload(r, "second_photo")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.service.Generate(r.Context(), report.GenerateRequest{
		Report:      rep,
		FirstPhoto:  report.PhotoSource{Data: first},
		SecondPhoto: report.PhotoSource{Data: second},
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	disposition := "inline"
	if r.FormValue("download") == "1" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": result.FileName}))
	w.Header().Set("Content-Length", fmt.Sprint(len(result.PDF)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.PDF); err != nil {
		s.log.WithError(err).Warn("failed to write report")
	}
}

func (s *Server) handlePhotoPreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize())
	if err := r.ParseMultipartForm(s.maxUploadSize()); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid form: %v", err)})
		return
	}

	data, err := readUpload(r, "photo")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	p, err := s.service.PreparePhoto(r.Context(), report.PhotoSource{Data: data})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, photoPreview{
		DataURI:        p.DataURI,
		Width:          p.Width,
		Height:         p.Height,
		Size:           p.Size(),
		OriginalWidth:  p.OriginalWidth,
		OriginalHeight: p.OriginalHeight,
		OriginalFormat: p.OriginalFormat,
		OriginalSize:   p.OriginalSize,
		Orientation:    p.Orientation,
	})
}

func (s *Server) handleDraftLoad(w http.ResponseWriter, r *http.Request) {
	loaded, err := s.service.LoadDraft(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.draftResponse(loaded.Draft, loaded.Found, loaded.UpdatedAt))
}

func (s *Server) handleDraftSave(w http.ResponseWriter, r *http.Request) {
	var form capture.Form
	dec := json.NewDecoder(io.LimitReader(r.Body, multipartOverhead))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&form); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid draft: %v", err)})
		return
	}

	var rep capture.Report
	if err := form.Apply(&rep, s.service.Location()); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: string(report.KindValidation)})
		return
	}

	saved, err := s.service.SaveDraft(r.Context(), rep.Draft())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.draftResponse(saved, true, s.service.Now()))
}

func (s *Server) handleDraftClear(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearDraft(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.config.Version,
	})
}

func (s *Server) draftResponse(d capture.Draft, found bool, updated time.Time) draftResponse {
	resp := draftResponse{
		Form:  capture.FormOf(d, s.service.Location()),
		Found: found,
	}
	if found && !updated.IsZero() {
		resp.UpdatedAt = capture.FormatISO(updated)
	}
	return resp
}

func formFromRequest(r *http.Request) capture.Form {
	return capture.Form{
		SubmissionDate:  r.FormValue("submission_date"),
		CapturerName:    r.FormValue("capturer_name"),
		AnimalGender:    r.FormValue("animal_gender"),
		CaptureDate:     r.FormValue("capture_date"),
		CaptureLocation: r.FormValue("capture_location"),
		DiagramNumber:   r.FormValue("diagram_number"),
		DisposalMethod:  r.FormValue("disposal_method"),
	}
}

// readUpload returns the contents of a multipart file field, or nil when the
// field is absent.
func readUpload(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", field, err)
	}
	return data, nil
}

func statusFor(err error) int {
	if errors.Is(err, report.ErrDraftsDisabled) {
		return http.StatusNotFound
	}
	switch report.KindOf(err) {
	case report.KindValidation, report.KindPhoto:
		return http.StatusUnprocessableEntity
	case report.KindSecurity:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Kind: string(report.KindOf(err))})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}
