package syncclient

import (
	"go.uber.org/zap"
)

// Level is the severity of a user notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notifier surfaces the outcome of user-initiated actions, the way a toast
// would. Poll failures never reach it.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, message string)

// Notify calls f.
func (f NotifierFunc) Notify(level Level, message string) {
	f(level, message)
}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify logs message at a level matching the notification.
func (n LogNotifier) Notify(level Level, message string) {
	if n.Logger == nil {
		return
	}
	if level == LevelError {
		n.Logger.Warn(message, zap.String("notification", string(level)))
		return
	}
	n.Logger.Info(message, zap.String("notification", string(level)))
}

type nopNotifier struct{}

func (nopNotifier) Notify(Level, string) {}
