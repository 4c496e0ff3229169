package dca

import (
	"errors"
	"log/slog"
	"time"
)

var ErrVoiceConnClosed = errors.New("voice connection closed")

// OpusReader is satisfied by *dca.EncodeSession from github.com/jonas747/dca.
type OpusReader interface {
	OpusFrame() (frame []byte, err error)
	FrameDuration() time.Duration
}

// Logger is used by stream sessions. Defaults to slog.Default().
var Logger *slog.Logger

func logger() *slog.Logger {
	if Logger != nil {
		return Logger
	}
	return slog.Default()
}
