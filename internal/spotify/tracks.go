package spotify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// Track is the part of a Spotify track the bot cares about.
type Track struct {
	ID      string
	Title   string
	Artists []string
}

// PrimaryArtist is the first listed artist, or "" when there is none.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Tracks looks up tracks by id with a caller-supplied bearer token.
type Tracks struct {
	baseURL    string
	httpClient *http.Client
}

// NewTracks talks to the public Web API unless baseURL is set.
func NewTracks(baseURL string, httpClient *http.Client) *Tracks {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Tracks{baseURL: baseURL, httpClient: httpClient}
}

func (t *Tracks) Track(ctx context.Context, token, id string) (Track, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, t.httpClient)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})

	var opts []spotify.ClientOption
	if t.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(t.baseURL))
	}
	client := spotify.New(oauth2.NewClient(ctx, src), opts...)

	full, err := client.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return Track{}, fmt.Errorf("get track %s: %w", id, err)
	}

	track := Track{ID: id, Title: full.Name}
	for _, a := range full.Artists {
		track.Artists = append(track.Artists, a.Name)
	}
	return track, nil
}
