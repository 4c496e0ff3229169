package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/nklsgod/Discord-bot/internal/resolver"
	"github.com/nklsgod/Discord-bot/internal/session"
)

const (
	ReplyNoVoiceChannel = "Du musst in einem Voice-Channel sein!"
	ReplyNoQuery        = "Bitte gib einen Link oder Suchbegriff an!"
	ReplyDirectLinkOnly = "Bitte gib einen direkten YouTube-Link ein."
	ReplyNoToken        = "Konnte keinen Spotify-Token abrufen."
	ReplySpotifyFailed  = "Fehler beim Abrufen der Song-Informationen von Spotify!"
	ReplyPlayFailed     = "Es gab einen Fehler beim Abspielen des Tracks."
	ReplyLeaveFailed    = "Fehler beim Verlassen des Voice-Channels."
	ReplyDebug          = "Debug-Informationen wurden in der Konsole ausgegeben."

	noticeSpotifyTrack = "Spotify-Track gefunden: **%s** von **%s**. Suche auf YouTube..."
)

// Message is an inbound chat message.
type Message struct {
	GuildID   string
	ChannelID string
	AuthorID  string
	AuthorBot bool
	Content   string
	// VoiceChannelID is the author's current voice channel, "" if none.
	VoiceChannelID string
}

type Resolver interface {
	Resolve(ctx context.Context, raw string) (resolver.Query, error)
}

type Sessions interface {
	Begin(ctx context.Context, guildID string) (context.Context, func())
	JoinAndPlay(ctx context.Context, guildID, channelID, url string) (string, error)
	Leave(guildID string) (string, error)
	Status(guildID string) session.Snapshot
}

// Notifier sends an intermediate message to the channel a command came from.
type Notifier func(ctx context.Context, m Message, text string)

type Router struct {
	prefix   string
	selfID   string
	resolver Resolver
	sessions Sessions
	notify   Notifier
	log      *slog.Logger
}

type Option func(*Router)

func WithNotifier(n Notifier) Option {
	return func(r *Router) { r.notify = n }
}

// WithSelfID makes the router ignore messages authored by id.
func WithSelfID(id string) Option {
	return func(r *Router) { r.selfID = id }
}

func New(prefix string, res Resolver, sessions Sessions, log *slog.Logger, opts ...Option) *Router {
	r := &Router{
		prefix:   prefix,
		resolver: res,
		sessions: sessions,
		log:      log.With("component", "router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Parse splits content into a lower-cased command and its argument text.
// ok is false when content does not start with prefix.
func Parse(prefix, content string) (command, args string, ok bool) {
	if !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return "", "", true
	}
	return strings.ToLower(fields[0]), strings.Join(fields[1:], " "), true
}

// Handle runs the command in m. ok is false when there is nothing to reply,
// which is the case for foreign messages, unknown commands and superseded
// play requests.
func (r *Router) Handle(ctx context.Context, m Message) (reply string, ok bool) {
	if m.AuthorBot || (r.selfID != "" && m.AuthorID == r.selfID) {
		return "", false
	}
	command, args, ok := Parse(r.prefix, m.Content)
	if !ok {
		return "", false
	}

	switch command {
	case "play":
		return r.play(ctx, m, args)
	case "leave":
		return r.leave(m)
	case "debug":
		return r.debug(m), true
	}
	return "", false
}

func (r *Router) play(ctx context.Context, m Message, query string) (string, bool) {
	log := r.log.With("guild", m.GuildID, "author", m.AuthorID)
	log.Info("play command")

	if m.VoiceChannelID == "" {
		log.Info("author is not in a voice channel")
		return ReplyNoVoiceChannel, true
	}
	if query == "" {
		log.Info("no query given")
		return ReplyNoQuery, true
	}

	ctx, done := r.sessions.Begin(ctx, m.GuildID)
	defer done()

	q, err := r.resolver.Resolve(ctx, query)
	if session.Superseded(ctx) {
		log.Info("play superseded during resolution")
		return "", false
	}
	if err != nil {
		return r.failure(log, err), true
	}

	if q.Track != nil && r.notify != nil {
		r.notify(ctx, m, fmt.Sprintf(noticeSpotifyTrack, q.Track.Title, q.Track.PrimaryArtist()))
	}

	if q.Kind != resolver.DirectLink {
		log.Info("rejected query", "query", query)
		return ReplyDirectLinkOnly, true
	}

	reply, err := r.sessions.JoinAndPlay(ctx, m.GuildID, m.VoiceChannelID, q.URL)
	if errors.Is(err, session.ErrSuperseded) {
		log.Info("play superseded", "url", q.URL)
		return "", false
	}
	if err != nil {
		return r.failure(log, err), true
	}
	return reply, true
}

func (r *Router) failure(log *slog.Logger, err error) string {
	log.Error("play failed", tint.Err(err))
	switch {
	case errors.Is(err, resolver.ErrNoToken):
		return ReplyNoToken
	case errors.Is(err, resolver.ErrMetadataLookup):
		return ReplySpotifyFailed
	}
	return ReplyPlayFailed
}

func (r *Router) leave(m Message) (string, bool) {
	reply, err := r.sessions.Leave(m.GuildID)
	if err != nil {
		r.log.Error("leave failed", "guild", m.GuildID, tint.Err(err))
		return ReplyLeaveFailed, true
	}
	return reply, true
}

func (r *Router) debug(m Message) string {
	info := DebugInfo(r.sessions.Status(m.GuildID), m.VoiceChannelID)

	attrs := make([]any, 0, len(info)*2)
	for _, k := range debugKeys {
		attrs = append(attrs, k, info[k])
	}
	r.log.Info("debug info", append(attrs, "guild", m.GuildID)...)
	return ReplyDebug
}

var debugKeys = []string{
	"Bot Voice Status",
	"Player Status",
	"Muted",
	"Volume",
	"Current Resource",
	"Voice Channel",
}

// DebugInfo renders a snapshot as the mapping written by the debug command.
func DebugInfo(s session.Snapshot, authorVoiceChannel string) map[string]any {
	connection := "Keine Verbindung"
	if s.Connected {
		connection = s.ConnectionStatus
	}
	resource := "Keine"
	if s.HasResource {
		resource = "Vorhanden"
	}
	voice := "Nicht im Channel"
	if authorVoiceChannel != "" {
		voice = authorVoiceChannel
	}
	return map[string]any{
		"Bot Voice Status": connection,
		"Player Status":    s.PlayerState.String(),
		"Muted":            s.Muted,
		"Volume":           s.Volume,
		"Current Resource": resource,
		"Voice Channel":    voice,
	}
}
