package mail

import (
	"context"
	"sync"

	"github.com/goliatone/go-print"
)

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg *Message) error

func (f SenderFunc) Send(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// LogSender writes messages to the logger instead of delivering them.
type LogSender struct {
	logger Logger
}

func NewLogSender(logger Logger) *LogSender {
	return &LogSender{logger: normalizeLogger(logger)}
}

func (s *LogSender) Send(_ context.Context, msg *Message) error {
	s.logger.Info("mail to %v: %s\n%s", msg.To, msg.Subject, print.MaybePrettyJSON(msg))
	return nil
}

// MemorySender keeps every message it receives. It is meant for tests and
// local development.
type MemorySender struct {
	mu       sync.Mutex
	messages []Message
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Send(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *msg)
	return nil
}

// Messages returns a copy of the received messages in arrival order.
func (s *MemorySender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Reset drops all received messages.
func (s *MemorySender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
