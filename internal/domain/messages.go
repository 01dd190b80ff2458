package domain

// User-facing messages shown by the signup form.
const (
	MsgNameRequired      = "Nome é obrigatório"
	MsgNameTooShort      = "Nome deve ter pelo menos 3 caracteres"
	MsgWhatsAppRequired  = "Número de WhatsApp é obrigatório"
	MsgWhatsAppInvalid   = "Número de WhatsApp inválido"
	MsgSelectRequired    = "Este campo é obrigatório"
	MsgTermsRequired     = "Você precisa aceitar os termos de uso"
	MsgPrivacyRequired   = "Você precisa aceitar a política de privacidade"
	MsgValidationTitle   = "Por favor, corrija os erros no formulário"
	MsgValidationDetail  = "Alguns campos precisam ser preenchidos corretamente."
	MsgProfileErrorTitle = "Erro ao criar perfil"
	MsgProfileErrorBody  = "Não foi possível criar seu perfil. Verifique os dados e tente novamente."

	MsgGenericErrorTitle       = "Erro ao processar seu cadastro"
	MsgGenericErrorDescription = "Por favor, tente novamente em alguns instantes."

	MsgInProgressTitle = "Seu cadastro já está sendo processado"
	MsgInProgressBody  = "Aguarde alguns instantes."
)
