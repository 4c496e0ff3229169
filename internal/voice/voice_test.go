package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	jdca "github.com/jonas747/dca"
	"github.com/kkdai/youtube/v2"
	"github.com/nklsgod/Discord-bot/internal/session"
	"github.com/nklsgod/Discord-bot/pkg/dca"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFindBestAudioFormat(t *testing.T) {
	formats := youtube.FormatList{
		{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Bitrate: 500000, AudioChannels: 2},
		{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 130000, AudioChannels: 2},
		{ItagNo: 249, MimeType: `audio/webm; codecs="opus"`, Bitrate: 50000, AudioChannels: 2},
		{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 140000, AudioChannels: 2},
		{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Bitrate: 4000000},
	}

	best := findBestAudioFormat(formats)
	if best == nil {
		t.Fatal("expected a format")
	}
	if best.ItagNo != 251 {
		t.Errorf("best itag = %d, want 251", best.ItagNo)
	}
}

func TestFindBestAudioFormat_NoAudio(t *testing.T) {
	formats := youtube.FormatList{
		{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Bitrate: 4000000},
	}
	if best := findBestAudioFormat(formats); best != nil {
		t.Errorf("expected nil, got itag %d", best.ItagNo)
	}
}

func TestEncodeBitrate(t *testing.T) {
	tests := []struct {
		bps  int
		want int
	}{
		{0, jdca.StdEncodeOptions.Bitrate},
		{16000, 32},
		{96000, 96},
		{160000, 128},
	}
	for _, tt := range tests {
		if got := encodeBitrate(tt.bps); got != tt.want {
			t.Errorf("encodeBitrate(%d) = %d, want %d", tt.bps, got, tt.want)
		}
	}
}

func TestEncodeVolume(t *testing.T) {
	tests := map[float64]int{0: 0, 0.5: 128, 1: 256}
	for in, want := range tests {
		if got := encodeVolume(in); got != want {
			t.Errorf("encodeVolume(%v) = %d, want %d", in, got, want)
		}
	}
}

func httpOpen(url string) func(context.Context) (io.ReadCloser, error) {
	return func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	}
}

func TestAcquire_TimesOutOnStalledServer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := acquire(context.Background(), 50*time.Millisecond, httpOpen(srv.URL))
	if !errors.Is(err, errAcquireTimeout) {
		t.Fatalf("acquire = %v, want errAcquireTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("acquire took %v", elapsed)
	}
}

func TestAcquire_BodyOutlivesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first "))
		w.(http.Flusher).Flush()
		time.Sleep(150 * time.Millisecond)
		w.Write([]byte("second"))
	}))
	defer srv.Close()

	body, err := acquire(context.Background(), 50*time.Millisecond, httpOpen(srv.URL))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "first second" {
		t.Errorf("body = %q", data)
	}
}

func TestAcquire_ParentCancelEndsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	body, err := acquire(ctx, time.Second, httpOpen(srv.URL))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer body.Close()

	cancel()
	if _, err := io.ReadAll(body); err == nil {
		t.Error("expected read error after the session context was cancelled")
	}
}

func TestPlayerState(t *testing.T) {
	tests := map[dca.Status]session.PlayerState{
		dca.StatusIdle:       session.Idle,
		dca.StatusBuffering:  session.Buffering,
		dca.StatusPlaying:    session.Playing,
		dca.StatusAutoPaused: session.AutoPaused,
	}
	for in, want := range tests {
		if got := playerState(in); got != want {
			t.Errorf("playerState(%v) = %v, want %v", in, got, want)
		}
	}
}

type otherConn struct{}

func (otherConn) Status() string    { return "ready" }
func (otherConn) Disconnect() error { return nil }

type closeOnly struct{}

func (closeOnly) Close() error { return nil }

func TestPlayer_RejectsForeignTypes(t *testing.T) {
	p := NewPlayer(discardLogger())

	if err := p.Play(otherConn{}, closeOnly{}); err != errUnsupportedConnection {
		t.Errorf("Play(foreign conn) = %v, want errUnsupportedConnection", err)
	}
	conn := &Connection{vc: &discordgo.VoiceConnection{}}
	if err := p.Play(conn, closeOnly{}); err != errUnsupportedResource {
		t.Errorf("Play(foreign resource) = %v, want errUnsupportedResource", err)
	}
	if p.State() != session.Idle {
		t.Errorf("state = %v, want idle", p.State())
	}
}

func TestPlayer_StopNotifiesIdleOnce(t *testing.T) {
	p := NewPlayer(discardLogger())
	var transitions []session.PlayerState
	p.OnStateChange(func(_, to session.PlayerState) { transitions = append(transitions, to) })

	p.Stop()
	if len(transitions) != 0 {
		t.Errorf("stopping an idle player must not notify, got %v", transitions)
	}

	p.set(session.Playing)
	p.Stop()
	if len(transitions) != 2 || transitions[1] != session.Idle {
		t.Errorf("transitions = %v, want [playing idle]", transitions)
	}
}

func TestConnection_Status(t *testing.T) {
	vc := &discordgo.VoiceConnection{}
	c := &Connection{vc: vc}
	if got := c.Status(); got != "connecting" {
		t.Errorf("Status = %q, want connecting", got)
	}
	vc.Ready = true
	if got := c.Status(); got != "ready" {
		t.Errorf("Status = %q, want ready", got)
	}
	c.destroyed = true
	if got := c.Status(); got != "destroyed" {
		t.Errorf("Status = %q, want destroyed", got)
	}
}
