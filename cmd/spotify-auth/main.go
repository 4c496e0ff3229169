// Command spotify-auth runs the authorization-code flow against Spotify once
// and logs the resulting refresh token.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/nklsgod/Discord-bot/internal/config"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	replyTokenReceived = "Token erhalten! Du kannst diese Seite jetzt schließen."
	replyAuthFailed    = "Fehler beim Authentifizieren"
)

var scopes = []string{
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopeStreaming,
}

// tokenExchanger is implemented by *spotifyauth.Authenticator.
type tokenExchanger interface {
	AuthURL(state string, opts ...oauth2.AuthCodeOption) string
	Token(ctx context.Context, state string, r *http.Request, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

type server struct {
	auth  tokenExchanger
	state string
	log   *slog.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", s.login)
	mux.HandleFunc("/callback", s.callback)
	return mux
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.auth.AuthURL(s.state), http.StatusFound)
}

func (s *server) callback(w http.ResponseWriter, r *http.Request) {
	tok, err := s.auth.Token(r.Context(), s.state, r)
	if err != nil {
		s.log.Error("token exchange failed", tint.Err(err))
		http.Error(w, replyAuthFailed, http.StatusBadRequest)
		return
	}

	s.log.Info("token received",
		"access_token", tok.AccessToken,
		"refresh_token", tok.RefreshToken,
		"expiry", tok.Expiry.Format(time.RFC3339),
	)
	fmt.Fprint(w, replyTokenReceived)
}

func main() {
	log := slog.New(tint.NewHandler(os.Stdout, &tint.Options{TimeFormat: time.DateTime}))

	cfg, err := config.LoadAuth()
	if err != nil {
		log.Error("config", tint.Err(err))
		os.Exit(1)
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.SpotifyClientID),
		spotifyauth.WithClientSecret(cfg.SpotifyClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithScopes(scopes...),
	)
	s := &server{auth: auth, state: uuid.NewString(), log: log}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening, open /login in a browser to authorize", "addr", cfg.Addr, "redirect", cfg.RedirectURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", tint.Err(err))
		os.Exit(1)
	}
}
