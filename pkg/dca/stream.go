package dca

import (
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// Status is the playback status of a StreamingSession.
type Status int

const (
	StatusIdle Status = iota
	StatusBuffering
	StatusPlaying
	StatusAutoPaused
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusBuffering:
		return "buffering"
	case StatusPlaying:
		return "playing"
	case StatusAutoPaused:
		return "autopaused"
	}
	return "unknown"
}

const (
	sendTimeout = time.Second
	readyPoll   = 50 * time.Millisecond
)

// AutoPauseTimeout is how long a stream waits for a voice connection that
// is not ready before it gives up with ErrVoiceConnClosed.
var AutoPauseTimeout = 10 * time.Second

// voiceSink is the part of a voice connection a stream writes to.
type voiceSink interface {
	Ready() bool
	Speaking(bool) error
	Send(frame []byte, timeout time.Duration) error
}

type discordSink struct {
	vc *discordgo.VoiceConnection
}

func (d discordSink) Ready() bool {
	d.vc.RLock()
	defer d.vc.RUnlock()
	return d.vc.Ready && d.vc.OpusSend != nil
}

func (d discordSink) Speaking(b bool) error {
	return d.vc.Speaking(b)
}

func (d discordSink) Send(frame []byte, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case d.vc.OpusSend <- frame:
		return nil
	case <-t.C:
		return ErrVoiceConnClosed
	}
}

// StreamOption configures a StreamingSession.
type StreamOption func(*StreamingSession)

// WithStatusHandler registers f for every status transition. f is called
// from the streaming goroutine and must not block.
func WithStatusHandler(f func(from, to Status)) StreamOption {
	return func(s *StreamingSession) { s.onStatus = f }
}

// StreamingSession sends the frames of an OpusReader to a voice connection,
// reporting status transitions and waiting out a connection that is not
// ready yet.
type StreamingSession struct {
	sync.Mutex

	source   OpusReader
	sink     voiceSink
	done     chan error
	onStatus func(from, to Status)
	status   Status

	stop     chan struct{}
	stopOnce sync.Once
}

// NewStream starts streaming source to vc. done, if not nil, receives the
// stream's result once it finished; nil means the source ran out or the
// stream was stopped.
func NewStream(source OpusReader, vc *discordgo.VoiceConnection, done chan error, opts ...StreamOption) *StreamingSession {
	return newStream(source, discordSink{vc: vc}, done, opts...)
}

func newStream(source OpusReader, sink voiceSink, done chan error, opts ...StreamOption) *StreamingSession {
	s := &StreamingSession{
		source: source,
		sink:   sink,
		done:   done,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setStatus(StatusBuffering)
	go s.stream()
	return s
}

func (s *StreamingSession) stream() {
	err := s.send()
	s.finish(err)
}

func (s *StreamingSession) send() error {
	speaking := false
	defer func() {
		if speaking {
			if err := s.sink.Speaking(false); err != nil {
				logger().Warn("couldn't stop speaking", tint.Err(err))
			}
		}
	}()

	for {
		select {
		case <-s.stop:
			return nil
		default:
		}

		frame, err := s.source.OpusFrame()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if stopped, err := s.waitReady(); stopped || err != nil {
			return err
		}

		if !speaking {
			if err := s.sink.Speaking(true); err != nil {
				logger().Warn("couldn't set speaking", tint.Err(err))
			}
			speaking = true
		}
		s.setStatus(StatusPlaying)

		if err := s.sink.Send(frame, sendTimeout); err != nil {
			return err
		}
	}
}

// waitReady blocks while the voice connection is not ready, reporting
// StatusAutoPaused in the meantime.
func (s *StreamingSession) waitReady() (stopped bool, err error) {
	if s.sink.Ready() {
		return false, nil
	}

	s.setStatus(StatusAutoPaused)
	deadline := time.NewTimer(AutoPauseTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(readyPoll)
	defer tick.Stop()

	for {
		select {
		case <-s.stop:
			return true, nil
		case <-deadline.C:
			return false, ErrVoiceConnClosed
		case <-tick.C:
			if s.sink.Ready() {
				return false, nil
			}
		}
	}
}

func (s *StreamingSession) finish(err error) {
	if err != nil {
		logger().Error("stream ended", tint.Err(err))
	}
	s.setStatus(StatusIdle)

	if s.done != nil {
		go func() { s.done <- err }()
	}
}

func (s *StreamingSession) setStatus(to Status) {
	s.Lock()
	from := s.status
	if from == to {
		s.Unlock()
		return
	}
	s.status = to
	f := s.onStatus
	s.Unlock()

	if f != nil {
		f(from, to)
	}
}

// Stop ends the stream. It does not wait for the streaming goroutine.
func (s *StreamingSession) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
