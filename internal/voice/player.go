package voice

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/lmittmann/tint"
	"github.com/nklsgod/Discord-bot/internal/session"
	"github.com/nklsgod/Discord-bot/pkg/dca"
)

var (
	errUnsupportedConnection = errors.New("voice: unsupported connection type")
	errUnsupportedResource   = errors.New("voice: resource is not an opus reader")
)

// Player streams one resource at a time and reports its state as
// session.PlayerState.
type Player struct {
	log *slog.Logger

	mu        sync.Mutex
	gen       uint64
	stream    *dca.StreamingSession
	res       session.Resource
	state     session.PlayerState
	listeners []session.StateListener
}

func NewPlayer(log *slog.Logger) *Player {
	return &Player{log: log.With("component", "player")}
}

func (p *Player) Play(conn session.Connection, res session.Resource) error {
	c, ok := conn.(*Connection)
	if !ok {
		return errUnsupportedConnection
	}
	src, ok := res.(dca.OpusReader)
	if !ok {
		return errUnsupportedResource
	}

	p.Stop()

	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.res = res
	p.mu.Unlock()

	done := make(chan error, 1)
	stream := dca.NewStream(src, c.vc, done, dca.WithStatusHandler(func(_, to dca.Status) {
		p.transition(gen, playerState(to))
	}))

	p.mu.Lock()
	p.stream = stream
	p.mu.Unlock()

	go p.wait(gen, done)
	return nil
}

func (p *Player) wait(gen uint64, done chan error) {
	err := <-done
	if err != nil {
		p.log.Error("player error", tint.Err(err))
	}

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return
	}
	res := p.res
	p.res = nil
	p.stream = nil
	p.mu.Unlock()

	if res != nil {
		res.Close()
	}
}

// Stop ends the current stream, if any, and releases its resource.
func (p *Player) Stop() {
	p.mu.Lock()
	stream, res := p.stream, p.res
	p.stream, p.res = nil, nil
	p.gen++
	p.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	if res != nil {
		res.Close()
	}
	p.set(session.Idle)
}

func (p *Player) State() session.PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) OnStateChange(l session.StateListener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
}

func (p *Player) transition(gen uint64, to session.PlayerState) {
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return
	}
	p.notifyLocked(to)
}

func (p *Player) set(to session.PlayerState) {
	p.mu.Lock()
	p.notifyLocked(to)
}

// notifyLocked must be called with p.mu held and releases it.
func (p *Player) notifyLocked(to session.PlayerState) {
	from := p.state
	if from == to {
		p.mu.Unlock()
		return
	}
	p.state = to
	listeners := append([]session.StateListener(nil), p.listeners...)
	p.mu.Unlock()

	p.log.Debug("player status", "from", from, "to", to)
	for _, l := range listeners {
		l(from, to)
	}
}

func playerState(s dca.Status) session.PlayerState {
	switch s {
	case dca.StatusBuffering:
		return session.Buffering
	case dca.StatusPlaying:
		return session.Playing
	case dca.StatusAutoPaused:
		return session.AutoPaused
	}
	return session.Idle
}
