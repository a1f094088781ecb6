package command

import "github.com/rs/zerolog"

// Notifier shows user-facing messages. The command layer only supplies text.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to a logger, for headless front ends.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Success(msg string) {
	n.logger.Info().Msg(msg)
}

func (n *LogNotifier) Error(msg string) {
	n.logger.Warn().Msg(msg)
}
