package capture

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/capture-report/internal/photo"
)

var tokyo = time.FixedZone("JST", 9*60*60)

func TestParseGender(t *testing.T) {
	tests := []struct {
		in      string
		want    Gender
		wantErr bool
	}{
		{"", "", false},
		{"Male", GenderMale, false},
		{"female", GenderFemale, false},
		{" オス ", GenderMale, false},
		{"メス", GenderFemale, false},
		{"unknown", "", true},
	}

	for _, tt := range tests {
		got, err := ParseGender(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidGender, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseDisposalMethod(t *testing.T) {
	tests := []struct {
		in   string
		want DisposalMethod
	}{
		{"Burial", DisposalBurial},
		{"incineration", DisposalIncineration},
		{"Personal consumption", DisposalPersonalConsumption},
		{"personal", DisposalPersonalConsumption},
		{"Transport to a wild meat processing facility", DisposalProcessingFacility},
		{"facility", DisposalProcessingFacility},
		{"埋設", DisposalBurial},
		{"獣肉処理施設", DisposalProcessingFacility},
	}

	for _, tt := range tests {
		got, err := ParseDisposalMethod(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseDisposalMethod("compost")
	assert.ErrorIs(t, err, ErrInvalidDisposalMethod)
}

func TestTemplateNames(t *testing.T) {
	assert.Equal(t, "gender-male", GenderMale.TemplateName())
	assert.Equal(t, "gender-female", GenderFemale.TemplateName())
	assert.Equal(t, "", Gender("").TemplateName())

	want := map[DisposalMethod]string{
		DisposalBurial:              "disposal-burial",
		DisposalIncineration:        "disposal-incineration",
		DisposalPersonalConsumption: "disposal-personal",
		DisposalProcessingFacility:  "disposal-facility",
	}
	for d, name := range want {
		assert.Equal(t, name, d.TemplateName())
	}
	assert.Len(t, DisposalMethods(), len(want))
}

func TestReport_Validate(t *testing.T) {
	p := &photo.Photo{Data: []byte{1}}

	valid := Report{DiagramNumber: "12", FirstPhoto: p, SecondPhoto: p}
	assert.NoError(t, valid.Validate())

	empty := Report{}
	err := empty.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "firstPhoto")
	assert.Contains(t, verr.Fields, "secondPhoto")
	assert.True(t, errors.Is(err, ErrPhotoRequired))

	bad := Report{
		AnimalGender:   "Unknown",
		DisposalMethod: "Compost",
		DiagramNumber:  "12a",
		FirstPhoto:     p,
		SecondPhoto:    p,
	}
	err = bad.Validate()
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
	assert.ErrorIs(t, err, ErrInvalidGender)
	assert.ErrorIs(t, err, ErrInvalidDisposalMethod)
	assert.Contains(t, err.Error(), "diagramNumber")
}

func TestValidateDiagramNumber(t *testing.T) {
	for _, ok := range []string{"", " ", "0", "42", "-3", "1.5", "1e3"} {
		assert.NoError(t, validateDiagramNumber(ok), ok)
	}
	for _, bad := range []string{"abc", "12a", "NaN", "1,000"} {
		assert.Error(t, validateDiagramNumber(bad), bad)
	}
}

func TestReport_Normalize(t *testing.T) {
	r := Report{
		CapturerName:    "  山田 <b>太郎</b> ",
		CaptureLocation: "<script>alert(1)</script>北区 & 南区",
		DiagramNumber:   " 7 ",
		SubmissionDate:  time.Date(2025, 4, 1, 10, 0, 0, 123456789, tokyo),
	}
	r.Normalize(nil)

	assert.Equal(t, "山田 太郎", r.CapturerName)
	assert.Equal(t, "北区 & 南区", r.CaptureLocation)
	assert.Equal(t, "7", r.DiagramNumber)
	assert.Equal(t, 123000000, r.SubmissionDate.Nanosecond())
	assert.Equal(t, time.UTC, r.SubmissionDate.Location())
	assert.True(t, r.CaptureDate.IsZero())
}

func TestReport_Inputs(t *testing.T) {
	first := &photo.Photo{DataURI: "data:image/jpeg;base64,AAAA"}
	r := Report{
		SubmissionDate:  time.Date(2025, 4, 1, 0, 0, 0, 0, tokyo),
		CapturerName:    "山田太郎",
		CaptureDate:     time.Date(2025, 3, 30, 23, 30, 0, 0, time.UTC), // 2025-03-31 (Mon) in JST
		CaptureLocation: "北区",
		DiagramNumber:   "7",
		FirstPhoto:      first,
	}

	want := map[string]string{
		InputSubmissionYear:   "2025",
		InputSubmissionMonth:  "4",
		InputSubmissionDay:    "1",
		InputName:             "山田太郎",
		InputCaptureYear:      "2025",
		InputCaptureMonth:     "3",
		InputCaptureDay:       "31",
		InputCaptureDayOfWeek: "月",
		InputLocation:         "北区",
		InputLocationNumber:   "7",
		InputPictureBefore:    first.DataURI,
		InputPictureAfter:     "",
	}

	if diff := cmp.Diff(want, r.Inputs(tokyo)); diff != "" {
		t.Errorf("Inputs() mismatch (-want +got):\n%s", diff)
	}
}

func TestReport_Inputs_Empty(t *testing.T) {
	var r Report
	for name, v := range r.Inputs(tokyo) {
		assert.Empty(t, v, name)
	}
}

func TestJapaneseWeekday(t *testing.T) {
	start := time.Date(2025, 4, 6, 12, 0, 0, 0, tokyo) // Sunday
	want := []string{"日", "月", "火", "水", "木", "金", "土"}
	for i, w := range want {
		assert.Equal(t, w, JapaneseWeekday(start.AddDate(0, 0, i), tokyo))
	}
	assert.Equal(t, "", JapaneseWeekday(time.Time{}, tokyo))
}

func TestReport_FileName(t *testing.T) {
	now := time.Date(2025, 5, 2, 8, 0, 0, 0, tokyo)

	r := Report{SubmissionDate: time.Date(2025, 4, 1, 0, 0, 0, 0, tokyo)}
	assert.Equal(t, "capture-report-2025-04-01.pdf", r.FileName(tokyo, now))

	var empty Report
	assert.Equal(t, "capture-report-2025-05-02.pdf", empty.FileName(tokyo, now))
}

func TestDraft_JSONRoundTrip(t *testing.T) {
	d := Draft{
		SubmissionDate:  time.Date(2025, 4, 1, 1, 2, 3, 456000000, time.UTC),
		CapturerName:    "山田太郎",
		AnimalGender:    GenderFemale,
		CaptureDate:     time.Date(2025, 3, 31, 15, 0, 0, 0, time.UTC),
		CaptureLocation: "北区",
		DiagramNumber:   "12",
		DisposalMethod:  DisposalProcessingFacility,
	}

	data, err := json.Marshal(d)
	require.NoError(t, err)

	var raw map[string]string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "2025-04-01T01:02:03.456Z", raw["submissionDate"])
	assert.Equal(t, "2025-03-31T15:00:00.000Z", raw["captureDate"])
	assert.Equal(t, "Transport to a wild meat processing facility", raw["disposalMethod"])

	var got Draft
	require.NoError(t, json.Unmarshal(data, &got))
	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("draft round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDraft_UnmarshalRejectsBadValues(t *testing.T) {
	var d Draft
	assert.Error(t, json.Unmarshal([]byte(`{"submissionDate":"yesterday"}`), &d))
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"animalGender":"?"}`), &d), ErrInvalidGender)
}

func TestDraft_ApplyKeepsPhotos(t *testing.T) {
	p := &photo.Photo{Data: []byte{1}}
	r := Report{FirstPhoto: p, CapturerName: "old"}
	Draft{CapturerName: "new", AnimalGender: GenderMale}.Apply(&r)

	assert.Equal(t, "new", r.CapturerName)
	assert.Equal(t, GenderMale, r.AnimalGender)
	assert.Same(t, p, r.FirstPhoto)
	assert.Equal(t, r.Draft().CapturerName, "new")
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-04-01", tokyo)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, tokyo)))

	got, err = ParseDate("2025/04/01", tokyo)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Day())

	got, err = ParseDate("2025-03-31T15:00:00.000Z", tokyo)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, tokyo)))

	got, err = ParseDate("", tokyo)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = ParseDate("April 1st", tokyo)
	assert.Error(t, err)
}

func TestReport_Params(t *testing.T) {
	r := Report{
		CapturerName:   "山田",
		SubmissionDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		FirstPhoto:     &photo.Photo{},
	}
	params := r.Params()
	assert.Equal(t, "2025-04-01T00:00:00.000Z", params["submission_date"])
	assert.Equal(t, false, params["has_photos"])
	assert.NotContains(t, params, "capture_date")
}
