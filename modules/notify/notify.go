// Package notify is the user-visible message surface of the client.
package notify

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// SessionExpiredMessage is shown before a forced sign-out.
const SessionExpiredMessage = "Phiên đăng nhập hết hạn. Xin vui lòng đăng nhập lại."

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier shows a short message to the user, toast style.
type Notifier interface {
	Notify(ctx context.Context, level Level, message string)
}

// NotifierFunc adapts an ordinary function to Notifier.
type NotifierFunc func(ctx context.Context, level Level, message string)

func (f NotifierFunc) Notify(ctx context.Context, level Level, message string) {
	f(ctx, level, message)
}

// LogNotifier forwards messages to logrus.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, level Level, message string) {
	entry := log.WithField("notification", string(level))
	switch level {
	case LevelError:
		entry.Error(message)
	case LevelWarning:
		entry.Warn(message)
	default:
		entry.Info(message)
	}
}

// WriterNotifier prints messages as plain lines, e.g. to a terminal.
type WriterNotifier struct {
	W io.Writer
}

func (n WriterNotifier) Notify(_ context.Context, level Level, message string) {
	_, _ = fmt.Fprintf(n.W, "[%s] %s\n", level, message)
}

// Multi fans a message out to several notifiers in order.
func Multi(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, level Level, message string) {
		for _, n := range notifiers {
			if n != nil {
				n.Notify(ctx, level, message)
			}
		}
	})
}
