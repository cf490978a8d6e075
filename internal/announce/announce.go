// Package announce speaks classification labels out loud through the
// platform text-to-speech tool so the operator can keep their eyes off
// the screen while driving a survey route.
package announce

import (
	"io"
	"log/slog"
)

// Speaker voices a short piece of text. Implementations must not block
// the caller waiting for playback and must swallow backend failures;
// announcements carry no acknowledgment.
type Speaker interface {
	Speak(text string)
}

// Noop is a Speaker that stays silent. Used when announcements are
// disabled or no speech backend exists for the platform.
type Noop struct{}

func (Noop) Speak(string) {}

// WithLogger sets the logger for the platform speaker.
func WithLogger(logger *slog.Logger) func(*execSpeaker) {
	return func(s *execSpeaker) {
		s.logger = logger
	}
}

// New returns the text-to-speech Speaker for the current platform, or
// Noop when the platform has none.
func New(options ...func(*execSpeaker)) Speaker {
	if speechCommand("") == nil {
		return Noop{}
	}

	s := execSpeaker{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// execSpeaker shells out to the platform speech tool, fire and forget.
type execSpeaker struct {
	logger *slog.Logger
}

func (s *execSpeaker) Speak(text string) {
	cmd := speechCommand(text)
	if cmd == nil {
		return
	}

	if err := cmd.Start(); err != nil {
		s.logger.Debug("speech backend unavailable", slog.String("error", err.Error()))
		return
	}

	// Reap the process without ever blocking the acquisition loop.
	go func() {
		_ = cmd.Wait()
	}()
}
