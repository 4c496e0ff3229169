package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/nklsgod/Discord-bot/internal/router"
	"github.com/nklsgod/Discord-bot/internal/session"
)

type bot struct {
	dg       *discordgo.Session
	router   *router.Router
	sessions *session.Manager
	log      *slog.Logger
}

func (b *bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID == "" {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("command panicked", "guild", m.GuildID, "content", m.Content, tint.Err(fmt.Errorf("%v", r)))
		}
	}()

	msg := router.Message{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		AuthorBot: m.Author.Bot,
		Content:   m.Content,
	}
	if vs, err := s.State.VoiceState(m.GuildID, m.Author.ID); err == nil {
		msg.VoiceChannelID = vs.ChannelID
	}

	reply, ok := b.router.Handle(context.Background(), msg)
	if !ok {
		return
	}
	if _, err := s.ChannelMessageSendReply(m.ChannelID, reply, m.Reference()); err != nil {
		b.log.Error("send reply", "guild", m.GuildID, "channel", m.ChannelID, tint.Err(err))
	}
}

// notify posts an intermediate message to the command's channel.
func (b *bot) notify(_ context.Context, m router.Message, text string) {
	if _, err := b.dg.ChannelMessageSend(m.ChannelID, text); err != nil {
		b.log.Error("send notice", "guild", m.GuildID, "channel", m.ChannelID, tint.Err(err))
	}
}

// onVoiceStateUpdate releases the guild's session when the bot was
// disconnected from voice by someone else. Our own teardown produces the same
// event, so the state is checked again once any join in progress is done.
func (b *bot) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if s.State.User == nil || vs.UserID != s.State.User.ID || vs.ChannelID != "" {
		return
	}
	b.sessions.ReleaseIf(vs.GuildID, func() bool {
		current, err := s.State.VoiceState(vs.GuildID, vs.UserID)
		if err == nil && current.ChannelID != "" {
			return false
		}
		b.log.Info("disconnected from voice", "guild", vs.GuildID)
		return true
	})
}
