// Package notify defines the notification collaborator: the fire-and-forget
// surface through which the engine reports transient success and error
// messages to the user. No response is ever expected.
package notify

import "log/slog"

// Notifier receives short human-readable messages. Implementations must not
// block; the engine calls them inline from mutation paths.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Slog is a Notifier that writes notifications as structured log lines.
// It is the default collaborator for headless runs and tests that do not
// assert on notifications.
type Slog struct {
	Log *slog.Logger
}

func (n Slog) Success(message string) {
	n.logger().Info("notification", "level", "success", "message", message)
}

func (n Slog) Error(message string) {
	n.logger().Warn("notification", "level", "error", "message", message)
}

func (n Slog) logger() *slog.Logger {
	if n.Log != nil {
		return n.Log
	}
	return slog.Default()
}
