package form

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
)

func TestState_UntouchedFieldsShowNoErrors(t *testing.T) {
	s := NewState("form-1")

	assert.Empty(t, s.Errors)
	assert.False(t, s.HasTouched())
	assert.Equal(t, "", s.Error(domain.FieldName))
}

func TestState_ChangeTouchesAndValidates(t *testing.T) {
	s := NewState("form-1")

	s.Change(domain.FieldName, "Al")

	assert.True(t, s.IsTouched(domain.FieldName))
	assert.Equal(t, domain.MsgNameTooShort, s.Error(domain.FieldName))
	// Other fields are still untouched, so their errors stay hidden.
	assert.Equal(t, "", s.Error(domain.FieldWhatsApp))

	s.Change(domain.FieldName, "Ana")
	assert.Equal(t, "", s.Error(domain.FieldName))
}

func TestState_ChangeFormatsWhatsApp(t *testing.T) {
	s := NewState("form-1")

	s.Change(domain.FieldWhatsApp, "11999998888")

	assert.Equal(t, "(11) 99999-8888", s.Values.WhatsApp)
	assert.Equal(t, "", s.Error(domain.FieldWhatsApp))
}

func TestState_BlurRevealsError(t *testing.T) {
	s := NewState("form-1")

	s.Blur(domain.FieldFamilySize)

	assert.Equal(t, domain.MsgSelectRequired, s.Error(domain.FieldFamilySize))
}

func TestState_BlurIgnoresUnknownField(t *testing.T) {
	s := NewState("form-1")

	s.Blur(domain.Field("email"))

	assert.False(t, s.HasTouched())
}

func TestState_TouchAll(t *testing.T) {
	s := NewState("form-1")
	s.Change(domain.FieldName, "Maria Silva")

	valid := s.TouchAll()

	assert.False(t, valid)
	assert.Equal(t, "", s.Error(domain.FieldName))
	assert.Equal(t, domain.MsgWhatsAppRequired, s.Error(domain.FieldWhatsApp))
	assert.Equal(t, domain.MsgSelectRequired, s.Error(domain.FieldFamilySize))
	assert.Equal(t, domain.MsgTermsRequired, s.Error(domain.FieldAcceptedTerms))
	assert.Equal(t, domain.MsgPrivacyRequired, s.Error(domain.FieldAcceptedPrivacyPolicy))
	assert.Len(t, s.TouchedFields(), len(domain.Fields))
}

func TestDecode(t *testing.T) {
	values := url.Values{
		"form_id":               {"abc"},
		"name":                  {"Maria Silva"},
		"whatsapp":              {"(11) 9999"},
		"familySize":            {"couple"},
		"dietaryRestrictions":   {"vegetarian"},
		"acceptedTerms":         {"on"},
		"acceptedPrivacyPolicy": {""},
		"touched":               {"name", "whatsapp", "bogus"},
	}

	s := Decode(values)

	require.NotNil(t, s)
	assert.Equal(t, "abc", s.FormID)
	assert.Equal(t, domain.SignupFormData{
		Name:                "Maria Silva",
		WhatsApp:            "(11) 9999",
		FamilySize:          "couple",
		DietaryRestrictions: "vegetarian",
		AcceptedTerms:       true,
	}, s.Values)
	assert.Equal(t, []string{"name", "whatsapp"}, s.TouchedFields())
	assert.Equal(t, domain.MsgWhatsAppInvalid, s.Error(domain.FieldWhatsApp))
	// Privacy is unchecked but untouched.
	assert.Equal(t, "", s.Error(domain.FieldAcceptedPrivacyPolicy))
}
