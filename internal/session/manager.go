package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

const (
	ReplyPlaying      = "Spiele jetzt: **%s**"
	ReplyPlayingNoTag = "Spiele jetzt ab"
	ReplyLeft         = "Bot hat den Voice-Channel verlassen 👋"
	ReplyNotConnected = "Bot ist in keinem Voice-Channel!"
)

var (
	ErrConnect    = errors.New("voice connect failed")
	ErrStream     = errors.New("stream acquisition failed")
	ErrTeardown   = errors.New("voice teardown failed")
	ErrSuperseded = errors.New("superseded by a newer request")
)

// Connection is a live voice connection.
type Connection interface {
	Status() string
	Disconnect() error
}

// Connector joins voice channels.
type Connector interface {
	Join(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Resource is a decoded audio stream ready for a player.
type Resource interface {
	Close() error
}

// Source builds audio resources and looks up display titles for URLs. The
// context passed to Open bounds the lifetime of the returned resource.
type Source interface {
	Open(ctx context.Context, url string, volume float64) (Resource, error)
	Title(ctx context.Context, url string) (string, error)
}

// Player plays one resource over one connection at a time.
type Player interface {
	Play(conn Connection, res Resource) error
	Stop()
	State() PlayerState
	OnStateChange(StateListener)
}

// Settings is the process-wide playback configuration new sessions start with.
type Settings struct {
	Muted  bool
	Volume float64
}

// Session is the playback state of one guild.
type Session struct {
	GuildID   string
	ChannelID string
	Muted     bool
	Volume    float64

	conn   Connection
	player Player
	cancel context.CancelFunc
}

func (s *Session) effectiveVolume() float64 {
	if s.Muted {
		return 0
	}
	return s.Volume
}

// Snapshot is a read-only view of a guild's session for diagnostics.
type Snapshot struct {
	Connected        bool
	ChannelID        string
	ConnectionStatus string
	PlayerState      PlayerState
	HasResource      bool
	Muted            bool
	Volume           float64
}

type guild struct {
	// lock serialises teardown and creation of the guild's connection.
	lock sync.Mutex

	// guarded by Manager.mu
	session   *Session
	requestID uint64
	cancelReq context.CancelCauseFunc
}

// Manager owns at most one session per guild.
type Manager struct {
	connector Connector
	source    Source
	newPlayer func() Player
	settings  Settings
	timeout   time.Duration
	log       *slog.Logger

	mu     sync.Mutex
	guilds map[string]*guild
	seq    uint64
}

func NewManager(connector Connector, source Source, newPlayer func() Player, settings Settings, timeout time.Duration, log *slog.Logger) *Manager {
	return &Manager{
		connector: connector,
		source:    source,
		newPlayer: newPlayer,
		settings:  settings,
		timeout:   timeout,
		log:       log.With("component", "session"),
		guilds:    make(map[string]*guild),
	}
}

func (m *Manager) guild(guildID string) *guild {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guildLocked(guildID)
}

func (m *Manager) guildLocked(guildID string) *guild {
	g, ok := m.guilds[guildID]
	if !ok {
		g = &guild{}
		m.guilds[guildID] = g
	}
	return g
}

// Begin starts a new play request for guildID. The returned context is
// cancelled with ErrSuperseded as soon as another request for the same guild
// begins. done must be called once the request has been answered.
func (m *Manager) Begin(ctx context.Context, guildID string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)

	m.mu.Lock()
	g := m.guildLocked(guildID)
	if g.cancelReq != nil {
		g.cancelReq(ErrSuperseded)
	}
	m.seq++
	id := m.seq
	g.requestID = id
	g.cancelReq = cancel
	m.mu.Unlock()

	return ctx, func() {
		m.mu.Lock()
		if g.requestID == id {
			g.cancelReq = nil
		}
		m.mu.Unlock()
		cancel(nil)
	}
}

// Superseded reports whether ctx was cancelled by a newer request.
func Superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrSuperseded)
}

// JoinAndPlay tears down any existing connection of the guild, joins
// channelID and starts playing url. The reply names the track when its title
// can be fetched; a failed title lookup does not affect playback.
func (m *Manager) JoinAndPlay(ctx context.Context, guildID, channelID, url string) (string, error) {
	g := m.guild(guildID)

	if err := m.start(ctx, g, guildID, channelID, url); err != nil {
		return "", err
	}

	titleCtx, cancel := m.withTimeout(ctx)
	title, err := m.source.Title(titleCtx, url)
	cancel()
	if Superseded(ctx) {
		return "", ErrSuperseded
	}
	if err != nil {
		m.log.Warn("title lookup failed", "guild", guildID, "url", url, tint.Err(err))
		return ReplyPlayingNoTag, nil
	}

	m.log.Info("now playing", "guild", guildID, "title", title)
	return fmt.Sprintf(ReplyPlaying, title), nil
}

func (m *Manager) start(ctx context.Context, g *guild, guildID, channelID, url string) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	if err := m.teardown(g); err != nil {
		return err
	}
	if Superseded(ctx) {
		return ErrSuperseded
	}

	joinCtx, cancel := m.withTimeout(ctx)
	conn, err := m.connector.Join(joinCtx, guildID, channelID)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}

	s := &Session{
		GuildID:   guildID,
		ChannelID: channelID,
		Muted:     m.settings.Muted,
		Volume:    m.settings.Volume,
		conn:      conn,
	}

	// The resource outlives the request, but a request that is cancelled
	// while the stream is still being acquired must abort it.
	sessCtx, sessCancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, sessCancel)
	res, err := m.source.Open(sessCtx, url, s.effectiveVolume())
	if !stop() && err == nil {
		res.Close()
		err = context.Cause(ctx)
	}
	if err != nil {
		sessCancel()
		m.disconnect(guildID, conn)
		if Superseded(ctx) {
			return ErrSuperseded
		}
		return fmt.Errorf("%w: %w", ErrStream, err)
	}

	player := m.newPlayer()
	player.OnStateChange(m.observer(guildID))
	if err := player.Play(conn, res); err != nil {
		res.Close()
		sessCancel()
		m.disconnect(guildID, conn)
		return fmt.Errorf("%w: %w", ErrStream, err)
	}

	s.player = player
	s.cancel = sessCancel

	m.mu.Lock()
	g.session = s
	m.mu.Unlock()

	m.log.Info("session started", "guild", guildID, "channel", channelID, "volume", s.effectiveVolume())
	return nil
}

// Leave destroys the guild's connection if there is one.
func (m *Manager) Leave(guildID string) (string, error) {
	g := m.guild(guildID)
	g.lock.Lock()
	defer g.lock.Unlock()

	m.mu.Lock()
	connected := g.session != nil
	m.mu.Unlock()
	if !connected {
		return ReplyNotConnected, nil
	}

	if err := m.teardown(g); err != nil {
		return "", err
	}
	return ReplyLeft, nil
}

// Release drops the guild's session after the voice connection went away on
// its own, e.g. when the bot was disconnected by a moderator.
func (m *Manager) Release(guildID string) {
	m.ReleaseIf(guildID, nil)
}

// ReleaseIf is Release, but only when gone reports true. gone is evaluated
// under the guild lock, after any running join has finished.
func (m *Manager) ReleaseIf(guildID string, gone func() bool) {
	g := m.guild(guildID)
	g.lock.Lock()
	defer g.lock.Unlock()

	if gone != nil && !gone() {
		return
	}
	if err := m.teardown(g); err != nil {
		m.log.Warn("release", "guild", guildID, tint.Err(err))
	}
}

// Status returns a snapshot of the guild's session without side effects.
func (m *Manager) Status(guildID string) Snapshot {
	m.mu.Lock()
	var s *Session
	if g, ok := m.guilds[guildID]; ok {
		s = g.session
	}
	m.mu.Unlock()

	if s == nil {
		return Snapshot{
			PlayerState: Idle,
			Muted:       m.settings.Muted,
			Volume:      m.settings.Volume,
		}
	}

	state := s.player.State()
	return Snapshot{
		Connected:        true,
		ChannelID:        s.ChannelID,
		ConnectionStatus: s.conn.Status(),
		PlayerState:      state,
		HasResource:      state != Idle,
		Muted:            s.Muted,
		Volume:           s.Volume,
	}
}

// teardown must be called with g.lock held.
func (m *Manager) teardown(g *guild) error {
	m.mu.Lock()
	s := g.session
	g.session = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}

	s.cancel()
	s.player.Stop()
	if err := s.conn.Disconnect(); err != nil {
		m.log.Error("disconnect failed", "guild", s.GuildID, tint.Err(err))
		return fmt.Errorf("%w: %w", ErrTeardown, err)
	}
	m.log.Info("session destroyed", "guild", s.GuildID)
	return nil
}

func (m *Manager) disconnect(guildID string, conn Connection) {
	if err := conn.Disconnect(); err != nil {
		m.log.Error("disconnect after failed start", "guild", guildID, tint.Err(err))
	}
}

func (m *Manager) observer(guildID string) StateListener {
	return func(from, to PlayerState) {
		m.log.Debug("player state", "guild", guildID, "from", from, "to", to)
		if to == Idle {
			m.log.Info("track ended", "guild", guildID)
		}
	}
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}
