// Package domain contains core business types and interfaces.
//
// This file defines the landing-page signup form, its field bookkeeping, and
// the result handed to the confirmation view.
package domain

// SourceLandingPage tags every record created from the landing page form.
const SourceLandingPage = "landing_page"

// =============================================================================
// Form Fields
// =============================================================================

// Field names the inputs of the signup form. The values double as the HTML
// input names and the keys of FieldErrors/FieldTouched.
type Field string

const (
	FieldName                  Field = "name"
	FieldWhatsApp              Field = "whatsapp"
	FieldFamilySize            Field = "familySize"
	FieldDietaryRestrictions   Field = "dietaryRestrictions"
	FieldAcceptedTerms         Field = "acceptedTerms"
	FieldAcceptedPrivacyPolicy Field = "acceptedPrivacyPolicy"
)

// Fields lists every form field in display order.
var Fields = []Field{
	FieldName,
	FieldWhatsApp,
	FieldFamilySize,
	FieldDietaryRestrictions,
	FieldAcceptedTerms,
	FieldAcceptedPrivacyPolicy,
}

// String returns the string representation of the field.
func (f Field) String() string {
	return string(f)
}

// IsValid returns true if the field is part of the signup form.
func (f Field) IsValid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// =============================================================================
// Family Size
// =============================================================================

// FamilySize is the household profile chosen on the form.
type FamilySize string

const (
	FamilySizeSingle   FamilySize = "single"
	FamilySizeCouple   FamilySize = "couple"
	FamilySizeBaby     FamilySize = "baby"
	FamilySizeChildren FamilySize = "children"
	FamilySizeTeens    FamilySize = "teens"
	FamilySizeMixed    FamilySize = "mixed"
)

// FamilySizes lists the selectable household profiles in display order.
var FamilySizes = []FamilySize{
	FamilySizeSingle,
	FamilySizeCouple,
	FamilySizeBaby,
	FamilySizeChildren,
	FamilySizeTeens,
	FamilySizeMixed,
}

// IsValid returns true if the family size is a recognized value.
func (s FamilySize) IsValid() bool {
	switch s {
	case FamilySizeSingle, FamilySizeCouple, FamilySizeBaby,
		FamilySizeChildren, FamilySizeTeens, FamilySizeMixed:
		return true
	}
	return false
}

// =============================================================================
// Dietary Restrictions
// =============================================================================

// DietaryRestriction is the optional dietary category chosen on the form.
// The empty value means no restriction.
type DietaryRestriction string

const (
	DietaryNone       DietaryRestriction = "none"
	DietaryVegetarian DietaryRestriction = "vegetarian"
	DietaryLactose    DietaryRestriction = "lactose"
	DietaryGluten     DietaryRestriction = "gluten"
	DietaryDiabetic   DietaryRestriction = "diabetic"
	DietaryMultiple   DietaryRestriction = "multiple"
)

// DietaryRestrictions lists the selectable dietary options in display order.
var DietaryRestrictions = []DietaryRestriction{
	DietaryNone,
	DietaryVegetarian,
	DietaryLactose,
	DietaryGluten,
	DietaryDiabetic,
	DietaryMultiple,
}

// =============================================================================
// Form Data
// =============================================================================

// SignupFormData holds the values of the landing page signup form.
//
// WhatsApp is kept in display format, e.g. "(11) 99999-8888"; it is converted
// to the dial format only when calling the backends.
type SignupFormData struct {
	Name                  string `json:"name"`
	WhatsApp              string `json:"whatsapp"`
	FamilySize            string `json:"familySize"`
	DietaryRestrictions   string `json:"dietaryRestrictions,omitempty"`
	AcceptedTerms         bool   `json:"acceptedTerms"`
	AcceptedPrivacyPolicy bool   `json:"acceptedPrivacyPolicy"`
}

// FieldErrors maps a field to its error message. A missing key or an empty
// message both mean the field is valid.
type FieldErrors map[Field]string

// Has reports whether the field has an error.
func (e FieldErrors) Has(f Field) bool {
	return e[f] != ""
}

// Fields returns the names of the failing fields in display order.
func (e FieldErrors) Fields() []string {
	var out []string
	for _, f := range Fields {
		if e.Has(f) {
			out = append(out, f.String())
		}
	}
	return out
}

// StringMap converts the errors to a plain map for JSON encoding, dropping
// empty entries.
func (e FieldErrors) StringMap() map[string]string {
	out := make(map[string]string, len(e))
	for f, msg := range e {
		if msg != "" {
			out[f.String()] = msg
		}
	}
	return out
}

// FieldTouched records which fields the user has interacted with.
type FieldTouched map[Field]bool

// TouchAll returns a touched map with every form field set.
func TouchAll() FieldTouched {
	touched := make(FieldTouched, len(Fields))
	for _, f := range Fields {
		touched[f] = true
	}
	return touched
}

// =============================================================================
// Submission Result
// =============================================================================

// SubmissionResult is what the confirmation view receives after a profile
// was created. WhatsAppNotified is always set, even when the onboarding
// message could not be sent.
type SubmissionResult struct {
	ProfileID        string         `json:"profileId"`
	WhatsAppNotified bool           `json:"whatsappNotified"`
	ReturningUser    bool           `json:"returningUser"`
	FormData         SignupFormData `json:"formData"`
}
