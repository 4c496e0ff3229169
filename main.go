package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/nklsgod/Discord-bot/internal/config"
	"github.com/nklsgod/Discord-bot/internal/resolver"
	"github.com/nklsgod/Discord-bot/internal/router"
	"github.com/nklsgod/Discord-bot/internal/session"
	"github.com/nklsgod/Discord-bot/internal/spotify"
	"github.com/nklsgod/Discord-bot/internal/voice"
	"github.com/nklsgod/Discord-bot/pkg/dca"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, logFile, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logFile.Close()
	slog.SetDefault(log)
	dca.Logger = log.With("component", "dca")

	if err := run(cfg, log); err != nil {
		log.Error("bot stopped", tint.Err(err))
		logFile.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := newResolver(ctx, cfg, log)
	if err != nil {
		return err
	}

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	sessions := session.NewManager(
		voice.NewConnector(dg, log),
		voice.NewSource(nil, cfg.Timeout, log),
		func() session.Player { return voice.NewPlayer(log) },
		session.Settings{Muted: cfg.Muted, Volume: cfg.Volume},
		cfg.Timeout,
		log,
	)

	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Info("logged in", "user", s.State.User.Username, "guilds", len(r.Guilds))
	})

	if err := dg.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	defer func() {
		if err := dg.Close(); err != nil {
			log.Warn("close discord session", tint.Err(err))
		}
	}()

	b := &bot{
		dg:       dg,
		sessions: sessions,
		log:      log.With("component", "discord"),
	}
	b.router = router.New(cfg.Prefix, res, sessions, log,
		router.WithSelfID(dg.State.User.ID),
		router.WithNotifier(b.notify),
	)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onVoiceStateUpdate)

	log.Info("bot is now running, press CTRL+C to exit", "prefix", cfg.Prefix, "spotify", cfg.SpotifyEnabled())
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func newResolver(ctx context.Context, cfg *config.Config, log *slog.Logger) (*resolver.Resolver, error) {
	var exchanger spotify.Exchanger
	if cfg.SpotifyEnabled() {
		exchanger = spotify.NewClientCredentials(cfg.SpotifyClientID, cfg.SpotifyClientSecret, "")
	} else {
		log.Warn("spotify credentials missing, spotify links will not resolve")
	}
	tokens := spotify.NewTokenCache(exchanger, log, spotify.WithTimeout(cfg.Timeout))

	var searcher resolver.Searcher
	if cfg.YouTubeAPIKey != "" {
		yt, err := resolver.NewYouTubeSearch(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			return nil, err
		}
		searcher = yt
	}

	return resolver.New(tokens, spotify.NewTracks("", nil), searcher, cfg.Timeout, log), nil
}
