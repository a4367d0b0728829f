package capture

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ISOLayout matches JavaScript's Date.prototype.toISOString.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// Draft is the persisted, photo-less subset of a report.
type Draft struct {
	SubmissionDate  time.Time
	CapturerName    string
	AnimalGender    Gender
	CaptureDate     time.Time
	CaptureLocation string
	DiagramNumber   string
	DisposalMethod  DisposalMethod
}

type draftJSON struct {
	SubmissionDate  string `json:"submissionDate,omitempty"`
	CapturerName    string `json:"capturerName,omitempty"`
	AnimalGender    string `json:"animalGender,omitempty"`
	CaptureDate     string `json:"captureDate,omitempty"`
	CaptureLocation string `json:"captureLocation,omitempty"`
	DiagramNumber   string `json:"diagramNumber,omitempty"`
	DisposalMethod  string `json:"disposalMethod,omitempty"`
}

// MarshalJSON writes dates as UTC ISO strings with millisecond precision.
func (d Draft) MarshalJSON() ([]byte, error) {
	out := draftJSON{
		CapturerName:    d.CapturerName,
		AnimalGender:    string(d.AnimalGender),
		CaptureLocation: d.CaptureLocation,
		DiagramNumber:   d.DiagramNumber,
		DisposalMethod:  string(d.DisposalMethod),
	}
	if !d.SubmissionDate.IsZero() {
		out.SubmissionDate = FormatISO(d.SubmissionDate)
	}
	if !d.CaptureDate.IsZero() {
		out.CaptureDate = FormatISO(d.CaptureDate)
	}
	return json.Marshal(out)
}

func (d *Draft) UnmarshalJSON(data []byte) error {
	var in draftJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	var err error
	if d.SubmissionDate, err = parseOptionalISO(in.SubmissionDate); err != nil {
		return fmt.Errorf("submissionDate: %w", err)
	}
	if d.CaptureDate, err = parseOptionalISO(in.CaptureDate); err != nil {
		return fmt.Errorf("captureDate: %w", err)
	}
	if d.AnimalGender, err = ParseGender(in.AnimalGender); err != nil {
		return fmt.Errorf("animalGender: %w", err)
	}
	if d.DisposalMethod, err = ParseDisposalMethod(in.DisposalMethod); err != nil {
		return fmt.Errorf("disposalMethod: %w", err)
	}
	d.CapturerName = in.CapturerName
	d.CaptureLocation = in.CaptureLocation
	d.DiagramNumber = in.DiagramNumber
	return nil
}

func parseOptionalISO(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// FormatISO formats t like JavaScript's toISOString.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// Draft returns the persisted subset of r.
func (r *Report) Draft() Draft {
	return Draft{
		SubmissionDate:  r.SubmissionDate,
		CapturerName:    r.CapturerName,
		AnimalGender:    r.AnimalGender,
		CaptureDate:     r.CaptureDate,
		CaptureLocation: r.CaptureLocation,
		DiagramNumber:   r.DiagramNumber,
		DisposalMethod:  r.DisposalMethod,
	}
}

// Apply copies the draft values into r, leaving the photos untouched.
func (d Draft) Apply(r *Report) {
	r.SubmissionDate = d.SubmissionDate
	r.CapturerName = d.CapturerName
	r.AnimalGender = d.AnimalGender
	r.CaptureDate = d.CaptureDate
	r.CaptureLocation = d.CaptureLocation
	r.DiagramNumber = d.DiagramNumber
	r.DisposalMethod = d.DisposalMethod
}

// Validate checks the enum and numeric fields of the draft.
func (d Draft) Validate() error {
	r := Report{}
	d.Apply(&r)
	if fields := r.validateFields(); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Defaults returns the values a fresh form starts with: both dates set to now.
func Defaults(now time.Time) Draft {
	now = truncateDate(now)
	return Draft{SubmissionDate: now, CaptureDate: now}
}

// ParseDate accepts a calendar date (2006-01-02, interpreted as midnight in
// loc), RFC 3339 or an ISO string as produced by toISOString. An empty string
// yields the zero time.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.Local
	}

	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006/01/02", s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or an ISO 8601 timestamp", s)
	}
	return t, nil
}
