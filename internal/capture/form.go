package capture

import (
	"strings"
	"time"
)

// Form holds report values as entered by a user, before parsing.
type Form struct {
	SubmissionDate  string `json:"submissionDate,omitempty"`
	CapturerName    string `json:"capturerName,omitempty"`
	AnimalGender    string `json:"animalGender,omitempty"`
	CaptureDate     string `json:"captureDate,omitempty"`
	CaptureLocation string `json:"captureLocation,omitempty"`
	DiagramNumber   string `json:"diagramNumber,omitempty"`
	DisposalMethod  string `json:"disposalMethod,omitempty"`
}

// Apply parses every non-empty value of f into r; empty values leave r
// unchanged. All parse failures are reported together.
func (f Form) Apply(r *Report, loc *time.Location) error {
	fields := map[string]error{}

	if s := strings.TrimSpace(f.SubmissionDate); s != "" {
		t, err := ParseDate(s, loc)
		if err != nil {
			fields["submissionDate"] = err
		} else {
			r.SubmissionDate = t
		}
	}
	if s := strings.TrimSpace(f.CaptureDate); s != "" {
		t, err := ParseDate(s, loc)
		if err != nil {
			fields["captureDate"] = err
		} else {
			r.CaptureDate = t
		}
	}
	if s := strings.TrimSpace(f.AnimalGender); s != "" {
		g, err := ParseGender(s)
		if err != nil {
			fields["animalGender"] = err
		} else {
			r.AnimalGender = g
		}
	}
	if s := strings.TrimSpace(f.DisposalMethod); s != "" {
		m, err := ParseDisposalMethod(s)
		if err != nil {
			fields["disposalMethod"] = err
		} else {
			r.DisposalMethod = m
		}
	}
	if f.CapturerName != "" {
		r.CapturerName = f.CapturerName
	}
	if f.CaptureLocation != "" {
		r.CaptureLocation = f.CaptureLocation
	}
	if f.DiagramNumber != "" {
		r.DiagramNumber = f.DiagramNumber
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// FormOf renders d back into form values, dates as YYYY-MM-DD in loc.
func FormOf(d Draft, loc *time.Location) Form {
	if loc == nil {
		loc = time.Local
	}
	date := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.In(loc).Format("2006-01-02")
	}
	return Form{
		SubmissionDate:  date(d.SubmissionDate),
		CapturerName:    d.CapturerName,
		AnimalGender:    string(d.AnimalGender),
		CaptureDate:     date(d.CaptureDate),
		CaptureLocation: d.CaptureLocation,
		DiagramNumber:   d.DiagramNumber,
		DisposalMethod:  string(d.DisposalMethod),
	}
}
