package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jonas747/dca"
	"github.com/kkdai/youtube/v2"
	"github.com/nklsgod/Discord-bot/internal/session"
)

var errNoAudioFormat = errors.New("no audio format found")

// Source opens YouTube videos as Opus resources.
type Source struct {
	client  *youtube.Client
	timeout time.Duration
	log     *slog.Logger
}

func NewSource(client *youtube.Client, timeout time.Duration, log *slog.Logger) *Source {
	if client == nil {
		client = &youtube.Client{}
	}
	return &Source{client: client, timeout: timeout, log: log.With("component", "source")}
}

// Open fetches the video, picks its best audio-only format and starts
// encoding it. ctx bounds the lifetime of the stream; acquiring it is subject
// to the source's timeout as well.
func (s *Source) Open(ctx context.Context, url string, volume float64) (session.Resource, error) {
	video, err := s.video(ctx, url)
	if err != nil {
		return nil, err
	}

	format := findBestAudioFormat(video.Formats)
	if format == nil {
		return nil, errNoAudioFormat
	}

	stream, err := acquire(ctx, s.timeout, func(ctx context.Context) (io.ReadCloser, error) {
		stream, _, err := s.client.GetStreamContext(ctx, video, format)
		return stream, err
	})
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}

	options := *dca.StdEncodeOptions
	options.RawOutput = true
	options.Volume = encodeVolume(volume)
	options.Bitrate = encodeBitrate(format.Bitrate)

	enc, err := dca.EncodeMem(stream, &options)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("encode: %w", err)
	}

	s.log.Debug("opened stream", "video", video.ID, "itag", format.ItagNo, "mime", format.MimeType, "kbps", options.Bitrate)
	return &Resource{stream: stream, enc: enc}, nil
}

var errAcquireTimeout = errors.New("stream acquisition timed out")

// acquire calls open with a context that is cancelled when open has not
// returned within d. Once open returned, the stream lives until ctx is done
// or the stream is closed.
func acquire(ctx context.Context, d time.Duration, open func(context.Context) (io.ReadCloser, error)) (io.ReadCloser, error) {
	streamCtx, cancel := context.WithCancelCause(ctx)
	var timer *time.Timer
	if d > 0 {
		timer = time.AfterFunc(d, func() { cancel(errAcquireTimeout) })
	}

	rc, err := open(streamCtx)
	if timer != nil && !timer.Stop() {
		if err == nil {
			rc.Close()
		}
		err = context.Cause(streamCtx)
	}
	if err != nil {
		cancel(nil)
		return nil, err
	}
	return &cancelOnClose{ReadCloser: rc, cancel: cancel}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelCauseFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel(nil)
	return err
}

// Title returns the video's title.
func (s *Source) Title(ctx context.Context, url string) (string, error) {
	video, err := s.video(ctx, url)
	if err != nil {
		return "", err
	}
	return video.Title, nil
}

func (s *Source) video(ctx context.Context, url string) (*youtube.Video, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	video, err := s.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// findBestAudioFormat prefers audio-only Opus formats, then the highest bitrate.
func findBestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || betterAudio(f, best) {
			best = f
		}
	}
	return best
}

func betterAudio(a, b *youtube.Format) bool {
	aOpus, bOpus := strings.Contains(a.MimeType, "opus"), strings.Contains(b.MimeType, "opus")
	if aOpus != bOpus {
		return aOpus
	}
	return a.Bitrate > b.Bitrate
}

// encodeVolume maps 0..1 to ffmpeg's volume scale, where 256 is unchanged.
func encodeVolume(v float64) int {
	return int(math.Round(v * 256))
}

// encodeBitrate maps a source bitrate in bit/s to an Opus bitrate in kbit/s.
func encodeBitrate(bps int) int {
	kbps := bps / 1000
	switch {
	case kbps <= 0:
		return dca.StdEncodeOptions.Bitrate
	case kbps < 32:
		return 32
	case kbps > 128:
		return 128
	}
	return kbps
}

// Resource is an encoding audio stream.
type Resource struct {
	stream io.ReadCloser
	enc    *dca.EncodeSession
	once   sync.Once
}

func (r *Resource) OpusFrame() ([]byte, error) { return r.enc.OpusFrame() }

func (r *Resource) FrameDuration() time.Duration { return r.enc.FrameDuration() }

// Close stops the download and ffmpeg.
func (r *Resource) Close() error {
	var err error
	r.once.Do(func() {
		err = r.stream.Close()
		r.enc.Cleanup()
	})
	return err
}
