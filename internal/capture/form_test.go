package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormApply(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	r := Report{CapturerName: "kept", CaptureLocation: "kept"}

	err := Form{
		SubmissionDate: "2025-04-01",
		CaptureDate:    "2025-03-30T15:00:00.000Z",
		CapturerName:   "Taro",
		AnimalGender:   "メス",
		DisposalMethod: "burial",
		DiagramNumber:  "3",
	}.Apply(&r, tokyo)
	require.NoError(t, err)

	assert.True(t, r.SubmissionDate.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, tokyo)))
	assert.True(t, r.CaptureDate.Equal(time.Date(2025, 3, 31, 0, 0, 0, 0, tokyo)))
	assert.Equal(t, "Taro", r.CapturerName)
	assert.Equal(t, "kept", r.CaptureLocation)
	assert.Equal(t, GenderFemale, r.AnimalGender)
	assert.Equal(t, DisposalBurial, r.DisposalMethod)
	assert.Equal(t, "3", r.DiagramNumber)
}

func TestFormApply_CollectsErrors(t *testing.T) {
	r := Report{}
	err := Form{
		SubmissionDate: "yesterday",
		AnimalGender:   "unknown",
		DisposalMethod: "river",
		CapturerName:   "Taro",
	}.Apply(&r, time.UTC)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 3)
	assert.ErrorIs(t, err, ErrInvalidGender)
	assert.ErrorIs(t, err, ErrInvalidDisposalMethod)
	assert.Equal(t, "Taro", r.CapturerName)
}

func TestFormOf(t *testing.T) {
	d := Draft{
		SubmissionDate: time.Date(2025, 4, 1, 20, 0, 0, 0, time.UTC),
		CapturerName:   "Hanako",
		AnimalGender:   GenderMale,
		DisposalMethod: DisposalProcessingFacility,
	}

	got := FormOf(d, time.FixedZone("JST", 9*60*60))
	want := Form{
		SubmissionDate: "2025-04-02",
		CapturerName:   "Hanako",
		AnimalGender:   "Male",
		DisposalMethod: "Transport to a wild meat processing facility",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FormOf mismatch (-want +got):\n%s", diff)
	}
}
