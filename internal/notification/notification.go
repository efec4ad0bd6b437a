package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindOTP carries a one-time verification code to a phone.
	KindOTP = "otp"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier stands in for an SMS provider by writing messages to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("sms dispatched", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// Recorder keeps the last message per destination. Useful for tests and for
// reading codes back in local runs.
type Recorder struct {
	mu   sync.Mutex
	last map[string]Message
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{last: make(map[string]Message)}
}

// Send records message.
func (r *Recorder) Send(_ context.Context, message Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[message.Destination] = message
	return nil
}

// Last returns the most recent message for destination.
func (r *Recorder) Last(destination string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.last[destination]
	return msg, ok
}
