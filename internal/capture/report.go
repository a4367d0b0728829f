// Package capture models a wildlife capture report: the values collected by
// the form and their mapping onto the inputs of the report template.
package capture

import (
	"errors"
	"fmt"
	"html"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/a3tai/capture-report/internal/photo"
)

var ErrPhotoRequired = errors.New("photo is required")

// Template input names.
const (
	InputSubmissionYear   = "submission_year"
	InputSubmissionMonth  = "submission_month"
	InputSubmissionDay    = "submission_day"
	InputName             = "name"
	InputCaptureYear      = "capture_year"
	InputCaptureMonth     = "capture_month"
	InputCaptureDay       = "capture_day"
	InputCaptureDayOfWeek = "capture_day_of_week"
	InputLocation         = "location"
	InputLocationNumber   = "location_number"
	InputPictureBefore    = "picture_before"
	InputPictureAfter     = "picture_after"
)

var japaneseWeekdays = [7]string{"日", "月", "火", "水", "木", "金", "土"}

// Report is a single in-flight capture report. Zero values mean "not
// provided".
type Report struct {
	SubmissionDate  time.Time
	CapturerName    string
	AnimalGender    Gender
	CaptureDate     time.Time
	CaptureLocation string
	DiagramNumber   string
	DisposalMethod  DisposalMethod

	FirstPhoto  *photo.Photo
	SecondPhoto *photo.Photo
}

// ValidationError lists every invalid field of a report.
type ValidationError struct {
	Fields map[string]error
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Fields[name]))
	}
	return "invalid report: " + strings.Join(parts, "; ")
}

// Unwrap exposes the field errors to errors.Is.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Fields))
	for _, err := range e.Fields {
		errs = append(errs, err)
	}
	return errs
}

// Validate checks the values required to render a report.
func (r *Report) Validate() error {
	fields := r.validateFields()

	if r.FirstPhoto == nil || len(r.FirstPhoto.Data) == 0 {
		fields["firstPhoto"] = ErrPhotoRequired
	}
	if r.SecondPhoto == nil || len(r.SecondPhoto.Data) == 0 {
		fields["secondPhoto"] = ErrPhotoRequired
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (r *Report) validateFields() map[string]error {
	fields := map[string]error{}

	if r.AnimalGender != "" && !r.AnimalGender.Valid() {
		fields["animalGender"] = fmt.Errorf("%w: %q", ErrInvalidGender, r.AnimalGender)
	}
	if r.DisposalMethod != "" && !r.DisposalMethod.Valid() {
		fields["disposalMethod"] = fmt.Errorf("%w: %q", ErrInvalidDisposalMethod, r.DisposalMethod)
	}
	if err := validateDiagramNumber(r.DiagramNumber); err != nil {
		fields["diagramNumber"] = err
	}
	return fields
}

// validateDiagramNumber accepts an empty value or any finite or infinite
// decimal number.
func validateDiagramNumber(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return errors.New("diagram number must be a valid number")
	}
	return nil
}

// Normalize trims free text, strips any markup from it and truncates dates to
// millisecond precision, the resolution kept by drafts.
func (r *Report) Normalize(policy *bluemonday.Policy) {
	if policy == nil {
		policy = bluemonday.StrictPolicy()
	}

	r.CapturerName = sanitize(policy, r.CapturerName)
	r.CaptureLocation = sanitize(policy, r.CaptureLocation)
	r.DiagramNumber = strings.TrimSpace(r.DiagramNumber)
	r.SubmissionDate = truncateDate(r.SubmissionDate)
	r.CaptureDate = truncateDate(r.CaptureDate)
}

func sanitize(policy *bluemonday.Policy, s string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(s)))
}

func truncateDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Truncate(time.Millisecond).UTC()
}

// HasPhotos reports whether both photos are present.
func (r *Report) HasPhotos() bool {
	return r.FirstPhoto != nil && r.SecondPhoto != nil
}

// Inputs maps the report onto the template inputs. Dates are split in loc;
// missing values become empty strings.
func (r *Report) Inputs(loc *time.Location) map[string]string {
	if loc == nil {
		loc = time.Local
	}

	inputs := map[string]string{
		InputName:           r.CapturerName,
		InputLocation:       r.CaptureLocation,
		InputLocationNumber: r.DiagramNumber,
	}

	year, month, day := splitDate(r.SubmissionDate, loc)
	inputs[InputSubmissionYear] = year
	inputs[InputSubmissionMonth] = month
	inputs[InputSubmissionDay] = day

	year, month, day = splitDate(r.CaptureDate, loc)
	inputs[InputCaptureYear] = year
	inputs[InputCaptureMonth] = month
	inputs[InputCaptureDay] = day
	inputs[InputCaptureDayOfWeek] = JapaneseWeekday(r.CaptureDate, loc)

	inputs[InputPictureBefore] = ""
	if r.FirstPhoto != nil {
		inputs[InputPictureBefore] = r.FirstPhoto.DataURI
	}
	inputs[InputPictureAfter] = ""
	if r.SecondPhoto != nil {
		inputs[InputPictureAfter] = r.SecondPhoto.DataURI
	}

	return inputs
}

func splitDate(t time.Time, loc *time.Location) (string, string, string) {
	if t.IsZero() {
		return "", "", ""
	}
	t = t.In(loc)
	return strconv.Itoa(t.Year()), strconv.Itoa(int(t.Month())), strconv.Itoa(t.Day())
}

// JapaneseWeekday returns the one-character Japanese day of week of t in loc,
// or "" for a zero time.
func JapaneseWeekday(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return japaneseWeekdays[t.In(loc).Weekday()]
}

// InputSamples returns, for inputs drawn from a fixed vocabulary, all the
// values they can take joined into one string. Fonts can be checked against
// it before any report is rendered.
func InputSamples() map[string]string {
	return map[string]string{
		InputCaptureDayOfWeek: strings.Join(japaneseWeekdays[:], ""),
	}
}

// FileName returns the download name of the rendered report, dated by the
// submission date or now when none was given.
func (r *Report) FileName(loc *time.Location, now time.Time) string {
	if loc == nil {
		loc = time.Local
	}
	date := r.SubmissionDate
	if date.IsZero() {
		date = now
	}
	return "capture-report-" + date.In(loc).Format("2006-01-02") + ".pdf"
}

// Params returns the report as flat event fields. Photos are reduced to a
// presence flag.
func (r *Report) Params() map[string]any {
	params := map[string]any{
		"capturer_name":    r.CapturerName,
		"animal_gender":    string(r.AnimalGender),
		"capture_location": r.CaptureLocation,
		"diagram_number":   r.DiagramNumber,
		"disposal_method":  string(r.DisposalMethod),
		"has_photos":       r.HasPhotos(),
	}
	if !r.SubmissionDate.IsZero() {
		params["submission_date"] = FormatISO(r.SubmissionDate)
	}
	if !r.CaptureDate.IsZero() {
		params["capture_date"] = FormatISO(r.CaptureDate)
	}
	return params
}
