package capture

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGender         = errors.New("invalid animal gender")
	ErrInvalidDisposalMethod = errors.New("invalid disposal method")
)

// Gender is the sex of the captured animal.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

var genderTemplates = map[Gender]string{
	GenderMale:   "gender-male",
	GenderFemale: "gender-female",
}

var genderLabels = map[Gender]string{
	GenderMale:   "オス",
	GenderFemale: "メス",
}

// Genders returns every gender in form order.
func Genders() []Gender {
	return []Gender{GenderMale, GenderFemale}
}

// Valid reports whether g is a known gender.
func (g Gender) Valid() bool {
	_, ok := genderTemplates[g]
	return ok
}

// TemplateName returns the overlay that marks g on the paper form, or "" for
// an unset or unknown gender.
func (g Gender) TemplateName() string {
	return genderTemplates[g]
}

// Label returns the label printed on the paper form.
func (g Gender) Label() string {
	return genderLabels[g]
}

// ParseGender accepts the enum value (case-insensitive) or the form label.
// An empty string yields an unset gender.
func ParseGender(s string) (Gender, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, g := range Genders() {
		if strings.EqualFold(s, string(g)) || s == g.Label() {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGender, s)
}

// DisposalMethod is how the carcass was disposed of.
type DisposalMethod string

const (
	DisposalBurial              DisposalMethod = "Burial"
	DisposalIncineration        DisposalMethod = "Incineration"
	DisposalPersonalConsumption DisposalMethod = "Personal consumption"
	DisposalProcessingFacility  DisposalMethod = "Transport to a wild meat processing facility"
)

var disposalTemplates = map[DisposalMethod]string{
	DisposalBurial:              "disposal-burial",
	DisposalIncineration:        "disposal-incineration",
	DisposalPersonalConsumption: "disposal-personal",
	DisposalProcessingFacility:  "disposal-facility",
}

var disposalLabels = map[DisposalMethod]string{
	DisposalBurial:              "埋設",
	DisposalIncineration:        "焼却",
	DisposalPersonalConsumption: "自家消費",
	DisposalProcessingFacility:  "獣肉処理施設",
}

// DisposalMethods returns every disposal method in form order.
func DisposalMethods() []DisposalMethod {
	return []DisposalMethod{
		DisposalBurial,
		DisposalIncineration,
		DisposalPersonalConsumption,
		DisposalProcessingFacility,
	}
}

func (d DisposalMethod) Valid() bool {
	_, ok := disposalTemplates[d]
	return ok
}

// TemplateName returns the overlay that marks d on the paper form, or "" for
// an unset or unknown method.
func (d DisposalMethod) TemplateName() string {
	return disposalTemplates[d]
}

func (d DisposalMethod) Label() string {
	return disposalLabels[d]
}

// ParseDisposalMethod accepts the enum value (case-insensitive), the overlay
// suffix (e.g. "personal") or the form label.
func ParseDisposalMethod(s string) (DisposalMethod, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, d := range DisposalMethods() {
		if strings.EqualFold(s, string(d)) || s == d.Label() ||
			strings.EqualFold(s, strings.TrimPrefix(d.TemplateName(), "disposal-")) {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDisposalMethod, s)
}
