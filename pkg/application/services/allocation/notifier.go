package allocation

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

// Severity grades a notification
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String method for Severity enum
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity by name
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Notification is a message for the operator, outside the command's return value
type Notification struct {
	OrderLineID entities.OrderLineID `json:"order_line_id"`
	Severity    Severity             `json:"severity"`
	Message     string               `json:"message"`
	Err         error                `json:"-"`
}

// Notifier is the side channel for clamp warnings and persistence failures
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to a Notifier
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// LogNotifier writes notifications to a zerolog logger
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, note Notification) {
	var evt *zerolog.Event
	switch note.Severity {
	case SeverityError:
		evt = n.logger.Error()
	case SeverityWarning:
		evt = n.logger.Warn()
	default:
		evt = n.logger.Info()
	}
	if note.Err != nil {
		evt = evt.Err(note.Err)
	}
	evt.Str("order_line", string(note.OrderLineID)).Msg(note.Message)
}
