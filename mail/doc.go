// Package mail renders and delivers account emails.
//
// Messages are rendered from pongo2 templates (a text body plus an optional
// HTML alternative) and handed to a Sender. The Dispatcher queues messages
// and delivers them from worker goroutines, retrying transient failures
// behind a circuit breaker.
package mail
