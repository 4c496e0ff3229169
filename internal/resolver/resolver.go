package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/nklsgod/Discord-bot/internal/spotify"
)

var (
	ErrNoToken        = errors.New("no token")
	ErrMetadataLookup = errors.New("metadata lookup failed")
	ErrSearch         = errors.New("search failed")
)

var spTrackRegex = regexp.MustCompile(`https?://(?:open\.)?spotify\.com/(?:intl-[a-z]{2}/)?track/([A-Za-z0-9]+)`)

// directPrefixes are the video links that are played without resolution.
var directPrefixes = []string{
	"https://www.youtube.com",
	"https://youtube.com",
	"https://music.youtube.com",
	"https://youtu.be",
}

// Kind classifies a resolved query.
type Kind int

const (
	Rejected Kind = iota
	DirectLink
)

func (k Kind) String() string {
	if k == DirectLink {
		return "direct-link"
	}
	return "rejected"
}

// Query is the outcome of resolving one user request.
type Query struct {
	Kind Kind
	URL  string
	// SearchTarget is "<artist> - <title>" when the input was a track-link.
	SearchTarget string
	// DisplayTitle is set when a metadata lookup named the track.
	DisplayTitle string
	Track        *spotify.Track
}

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type TrackLookup interface {
	Track(ctx context.Context, token, id string) (spotify.Track, error)
}

// Searcher turns a search target into a direct video link.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Resolver normalises raw play arguments into something the session manager can play.
type Resolver struct {
	tokens   TokenSource
	tracks   TrackLookup
	searcher Searcher
	timeout  time.Duration
	log      *slog.Logger
}

// New creates a resolver. searcher may be nil, in which case track-links
// resolve to their search target but are not playable.
func New(tokens TokenSource, tracks TrackLookup, searcher Searcher, timeout time.Duration, log *slog.Logger) *Resolver {
	return &Resolver{
		tokens:   tokens,
		tracks:   tracks,
		searcher: searcher,
		timeout:  timeout,
		log:      log.With("component", "resolver"),
	}
}

func (r *Resolver) Resolve(ctx context.Context, raw string) (Query, error) {
	raw = strings.TrimSpace(raw)
	target := raw

	var q Query
	if id, ok := SpotifyTrackID(raw); ok {
		track, err := r.lookup(ctx, id)
		if err != nil {
			return Query{}, err
		}
		target = fmt.Sprintf("%s - %s", track.PrimaryArtist(), track.Title)
		q.SearchTarget = target
		q.DisplayTitle = target
		q.Track = &track
		r.log.Info("spotify track found", "title", track.Title, "artist", track.PrimaryArtist())

		if r.searcher != nil {
			url, err := r.search(ctx, target)
			if err != nil {
				return q, err
			}
			target = url
		}
	}

	if IsDirectLink(target) {
		q.Kind = DirectLink
		q.URL = target
		return q, nil
	}

	q.Kind = Rejected
	return q, nil
}

func (r *Resolver) lookup(ctx context.Context, id string) (spotify.Track, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	token, err := r.tokens.Token(ctx)
	if err != nil {
		return spotify.Track{}, fmt.Errorf("%w: %w", ErrNoToken, err)
	}

	track, err := r.tracks.Track(ctx, token, id)
	if err != nil {
		r.log.Error("spotify lookup failed", "id", id, tint.Err(err))
		return spotify.Track{}, fmt.Errorf("%w: %w", ErrMetadataLookup, err)
	}
	return track, nil
}

func (r *Resolver) search(ctx context.Context, target string) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	url, err := r.searcher.Search(ctx, target)
	if err != nil {
		r.log.Error("youtube search failed", "query", target, tint.Err(err))
		return "", fmt.Errorf("%w: %w", ErrSearch, err)
	}
	return url, nil
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// SpotifyTrackID extracts the track id from a Spotify track-link.
func SpotifyTrackID(s string) (string, bool) {
	m := spTrackRegex.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsDirectLink reports whether s starts with a known video-link prefix.
func IsDirectLink(s string) bool {
	for _, p := range directPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
