package mail

import (
	"errors"

	"github.com/samber/oops"
)

const errorDomain = "mail"

const (
	CodeInvalidMessage = "MAIL_INVALID_MESSAGE"
	CodeSendFailed     = "MAIL_SEND_FAILED"
	CodeTemplate       = "MAIL_TEMPLATE"
	CodeQueueFull      = "MAIL_QUEUE_FULL"
	CodeClosed         = "MAIL_CLOSED"
	CodeConfig         = "MAIL_CONFIG"
)

var (
	// ErrQueueFull is returned by Enqueue when the dispatcher can not take
	// more messages.
	ErrQueueFull = errors.New("mail queue is full")
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("mail dispatcher is closed")
	// ErrUnknownProvider is returned by NewSender for unsupported providers.
	ErrUnknownProvider = errors.New("unknown mail provider")
)

func mailError(code string) oops.OopsErrorBuilder {
	return oops.In(errorDomain).Code(code)
}
