package mail

import (
	"net/smtp"
	"time"
)

// SetSendMail replaces the smtp transport used by s.
func (s *SMTPSender) SetSendMail(fn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) {
	s.sendMail = fn
}

var BuildMIME = func(msg *Message, now time.Time) ([]byte, error) {
	return buildMIME(msg, now)
}
