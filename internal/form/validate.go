// Package form implements the landing page signup form: field validation,
// Brazilian phone formatting, and the per-request form state that drives
// live validation.
//
// Every validator returns the message to show, or "" when the value is valid.
// They are pure and safe for concurrent use.
package form

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
)

// MinNameLength is the minimum number of characters of a trimmed name.
const MinNameLength = 3

// ValidateName checks that the name is present and long enough.
// Length is counted in characters after NFC normalisation so "Zoë" typed with
// a combining diaeresis counts the same as the precomposed form.
func ValidateName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return domain.MsgNameRequired
	}
	if utf8.RuneCountInString(norm.NFC.String(trimmed)) < MinNameLength {
		return domain.MsgNameTooShort
	}
	return ""
}

// ValidateWhatsApp checks that the phone has a Brazilian area code and
// number, i.e. 10 or 11 digits once punctuation is removed.
func ValidateWhatsApp(phone string) string {
	if phone == "" {
		return domain.MsgWhatsAppRequired
	}
	n := len(Digits(phone))
	if n < 10 || n > 11 {
		return domain.MsgWhatsAppInvalid
	}
	return ""
}

// ValidateSelect checks that a required selection was made.
func ValidateSelect(value string) string {
	if value == "" {
		return domain.MsgSelectRequired
	}
	return ""
}

// ValidateTerms checks that the terms of use were accepted.
func ValidateTerms(accepted bool) string {
	if !accepted {
		return domain.MsgTermsRequired
	}
	return ""
}

// ValidatePrivacy checks that the privacy policy was accepted.
func ValidatePrivacy(accepted bool) string {
	if !accepted {
		return domain.MsgPrivacyRequired
	}
	return ""
}

// ValidateField runs the validator of a single field. Dietary restrictions
// are optional and never fail.
func ValidateField(data domain.SignupFormData, field domain.Field) string {
	switch field {
	case domain.FieldName:
		return ValidateName(data.Name)
	case domain.FieldWhatsApp:
		return ValidateWhatsApp(data.WhatsApp)
	case domain.FieldFamilySize:
		return ValidateSelect(data.FamilySize)
	case domain.FieldAcceptedTerms:
		return ValidateTerms(data.AcceptedTerms)
	case domain.FieldAcceptedPrivacyPolicy:
		return ValidatePrivacy(data.AcceptedPrivacyPolicy)
	}
	return ""
}

// ValidateForm runs every field validator. The returned map holds an entry
// for each field (empty when valid); valid is true only if all are empty.
func ValidateForm(data domain.SignupFormData) (domain.FieldErrors, bool) {
	errs := make(domain.FieldErrors, len(domain.Fields))
	valid := true
	for _, f := range domain.Fields {
		msg := ValidateField(data, f)
		errs[f] = msg
		if msg != "" {
			valid = false
		}
	}
	return errs, valid
}
