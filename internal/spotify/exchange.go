package spotify

import (
	"context"
	"errors"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials exchanges a client id/secret pair for an app token.
type ClientCredentials struct {
	config *clientcredentials.Config
	now    func() time.Time
}

// NewClientCredentials uses Spotify's token endpoint unless tokenURL is set.
func NewClientCredentials(clientID, clientSecret, tokenURL string) *ClientCredentials {
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}
	return &ClientCredentials{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		},
		now: time.Now,
	}
}

func (c *ClientCredentials) Exchange(ctx context.Context) (string, time.Duration, error) {
	tok, err := c.config.Token(ctx)
	if err != nil {
		return "", 0, err
	}
	if tok.AccessToken == "" {
		return "", 0, errors.New("empty access token")
	}

	var lifetime time.Duration
	if !tok.Expiry.IsZero() {
		lifetime = tok.Expiry.Sub(c.now())
	}
	return tok.AccessToken, lifetime, nil
}
