package template

import (
	"slices"
	"strings"

	"github.com/a3tai/capture-report/internal/capture"
)

// Overlay name prefixes of the mutually exclusive variant groups.
const (
	GenderPrefix   = "gender-"
	DisposalPrefix = "disposal-"
)

// Variant is a group of mutually exclusive overlays sharing Prefix. Only the
// overlay named Selected is rendered; when Selected is empty the whole group
// is dropped.
type Variant struct {
	Prefix   string
	Selected string
}

// Selection holds the form values that pick template variants.
type Selection struct {
	Gender         capture.Gender
	DisposalMethod capture.DisposalMethod
}

// SelectionFor returns the selection made by r.
func SelectionFor(r *capture.Report) Selection {
	return Selection{Gender: r.AnimalGender, DisposalMethod: r.DisposalMethod}
}

// Variants returns the variant groups for s.
func (s Selection) Variants() []Variant {
	return []Variant{
		{Prefix: GenderPrefix, Selected: s.Gender.TemplateName()},
		{Prefix: DisposalPrefix, Selected: s.DisposalMethod.TemplateName()},
	}
}

// Select returns a copy of t keeping, for each variant group, only the
// overlay chosen by sel. Overlays outside every group are kept. t is not
// modified.
func Select(t *Template, sel Selection) *Template {
	return SelectVariants(t, sel.Variants())
}

// SelectVariants applies variant filtering on every page of a clone of t.
func SelectVariants(t *Template, variants []Variant) *Template {
	out := t.Clone()
	for i, page := range out.Schemas {
		out.Schemas[i] = slices.DeleteFunc(page, func(s Schema) bool {
			return !keep(s.Name, variants)
		})
	}
	return out
}

// Excluded returns the names Select would drop from t, in page order.
func Excluded(t *Template, sel Selection) []string {
	variants := sel.Variants()
	var names []string
	for _, page := range t.Schemas {
		for _, s := range page {
			if !keep(s.Name, variants) {
				names = append(names, s.Name)
			}
		}
	}
	return names
}

func keep(name string, variants []Variant) bool {
	for _, v := range variants {
		if strings.HasPrefix(name, v.Prefix) {
			return v.Selected != "" && name == v.Selected
		}
	}
	return true
}
