package form

import (
	"net/url"
	"strings"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
)

// Input names that carry form bookkeeping next to the field values.
const (
	InputFormID  = "form_id"
	InputTouched = "touched"
)

// State is the server-side form state controller. It holds the values, the
// touched flags and the errors of one form instance. Errors are recomputed
// after every change and only ever hold entries for touched fields, so an
// untouched field never shows an error.
type State struct {
	FormID  string
	Values  domain.SignupFormData
	Touched domain.FieldTouched
	Errors  domain.FieldErrors
}

// NewState returns an empty, untouched form.
func NewState(formID string) *State {
	return &State{
		FormID:  formID,
		Touched: domain.FieldTouched{},
		Errors:  domain.FieldErrors{},
	}
}

// Decode rebuilds a form state from a submitted HTML form. The touched flags
// travel as repeated "touched" inputs so live validation survives round
// trips.
func Decode(values url.Values) *State {
	s := NewState(strings.TrimSpace(values.Get(InputFormID)))
	s.Values = domain.SignupFormData{
		Name:                  values.Get(domain.FieldName.String()),
		WhatsApp:              values.Get(domain.FieldWhatsApp.String()),
		FamilySize:            strings.TrimSpace(values.Get(domain.FieldFamilySize.String())),
		DietaryRestrictions:   strings.TrimSpace(values.Get(domain.FieldDietaryRestrictions.String())),
		AcceptedTerms:         isChecked(values.Get(domain.FieldAcceptedTerms.String())),
		AcceptedPrivacyPolicy: isChecked(values.Get(domain.FieldAcceptedPrivacyPolicy.String())),
	}
	for _, name := range values[InputTouched] {
		if f := domain.Field(name); f.IsValid() {
			s.Touched[f] = true
		}
	}
	s.revalidate()
	return s
}

// Change records a new value for a field. The first change marks the field
// touched. WhatsApp input is reformatted as it is typed.
func (s *State) Change(field domain.Field, value string) {
	switch field {
	case domain.FieldName:
		s.Values.Name = value
	case domain.FieldWhatsApp:
		s.Values.WhatsApp = FormatWhatsAppNumber(value)
	case domain.FieldFamilySize:
		s.Values.FamilySize = value
	case domain.FieldDietaryRestrictions:
		s.Values.DietaryRestrictions = value
	case domain.FieldAcceptedTerms:
		s.Values.AcceptedTerms = isChecked(value)
	case domain.FieldAcceptedPrivacyPolicy:
		s.Values.AcceptedPrivacyPolicy = isChecked(value)
	default:
		return
	}
	s.Touched[field] = true
	s.revalidate()
}

// Blur marks a field touched so its error, if any, becomes visible.
func (s *State) Blur(field domain.Field) {
	if !field.IsValid() {
		return
	}
	s.Touched[field] = true
	s.revalidate()
}

// TouchAll marks every field touched and runs the full-form validation, as
// happens on submit. It reports whether the form is valid.
func (s *State) TouchAll() bool {
	s.Touched = domain.TouchAll()
	s.revalidate()
	_, valid := ValidateForm(s.Values)
	return valid
}

// Error returns the visible error of a field.
func (s *State) Error(field domain.Field) string {
	return s.Errors[field]
}

// IsTouched reports whether the user interacted with the field.
func (s *State) IsTouched(field domain.Field) bool {
	return s.Touched[field]
}

// HasTouched reports whether any field was touched. The first interaction
// with a form is what starts it for funnel purposes.
func (s *State) HasTouched() bool {
	for _, touched := range s.Touched {
		if touched {
			return true
		}
	}
	return false
}

// TouchedFields returns the touched field names in display order.
func (s *State) TouchedFields() []string {
	var out []string
	for _, f := range domain.Fields {
		if s.Touched[f] {
			out = append(out, f.String())
		}
	}
	return out
}

func (s *State) revalidate() {
	errs := make(domain.FieldErrors)
	for _, f := range domain.Fields {
		if !s.Touched[f] {
			continue
		}
		if msg := ValidateField(s.Values, f); msg != "" {
			errs[f] = msg
		}
	}
	s.Errors = errs
}

func isChecked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
