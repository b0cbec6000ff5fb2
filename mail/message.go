package mail

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Message is a single email. Text is the body, HTML an optional alternative.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
}

// Validate checks the message can be delivered.
func (m Message) Validate() error {
	err := validation.ValidateStruct(&m,
		validation.Field(&m.From, validation.Required, is.Email),
		validation.Field(&m.To, validation.Required, validation.Each(validation.Required, is.Email)),
		validation.Field(&m.Subject, validation.Required),
	)
	if err != nil {
		return mailError(CodeInvalidMessage).Wrap(err)
	}

	if m.Text == "" && m.HTML == "" {
		return mailError(CodeInvalidMessage).Errorf("message %q has no body", m.Subject)
	}

	return nil
}
