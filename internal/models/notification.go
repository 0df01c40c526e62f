package models

// EmailMessage письмо, поставленное в очередь для воркера sender.
type EmailMessage struct {
	TemplateID string            `json:"template_id" validate:"required"`
	Params     map[string]string `json:"params"`
}
