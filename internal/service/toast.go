package service

import (
	"errors"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
)

// Toast variants.
const (
	ToastError   = "destructive"
	ToastWarning = "warning"
)

// Toast is the transient notification shown next to the form.
type Toast struct {
	Title       string
	Description string
	Variant     string
}

// ToastForError maps a Submit error to the toast the visitor sees. It
// returns nil for a nil error.
func ToastForError(err error) *Toast {
	if err == nil {
		return nil
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return &Toast{
			Title:       domain.MsgValidationTitle,
			Description: domain.MsgValidationDetail,
			Variant:     ToastError,
		}
	}

	switch domain.ErrorCode(err) {
	case domain.EINVALID:
		return &Toast{
			Title:       domain.MsgProfileErrorTitle,
			Description: domain.ErrorMessage(err),
			Variant:     ToastError,
		}
	case domain.ECONFLICT:
		return &Toast{
			Title:       domain.MsgInProgressTitle,
			Description: domain.MsgInProgressBody,
			Variant:     ToastWarning,
		}
	case domain.ERATELIMIT:
		return &Toast{
			Title:       domain.MsgGenericErrorTitle,
			Description: domain.ErrorMessage(err),
			Variant:     ToastWarning,
		}
	}

	return &Toast{
		Title:       domain.MsgGenericErrorTitle,
		Description: domain.MsgGenericErrorDescription,
		Variant:     ToastError,
	}
}
