package mail

import "fmt"

// Logger is satisfied by accounts.Logger.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type defLogger struct{}

func (defLogger) Debug(format string, args ...any) { fmt.Printf("[DBG] MAIL "+newline(format), args...) }
func (defLogger) Info(format string, args ...any)  { fmt.Printf("[INF] MAIL "+newline(format), args...) }
func (defLogger) Warn(format string, args ...any)  { fmt.Printf("[WRN] MAIL "+newline(format), args...) }
func (defLogger) Error(format string, args ...any) { fmt.Printf("[ERR] MAIL "+newline(format), args...) }

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
