package voice

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/nklsgod/Discord-bot/internal/session"
)

// Joiner is implemented by *discordgo.Session.
type Joiner interface {
	ChannelVoiceJoin(guildID, channelID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
}

// Connector joins voice channels through the bot's gateway session.
type Connector struct {
	joiner     Joiner
	disconnect func(*discordgo.VoiceConnection) error
	log        *slog.Logger
}

func NewConnector(joiner Joiner, log *slog.Logger) *Connector {
	return &Connector{
		joiner:     joiner,
		disconnect: (*discordgo.VoiceConnection).Disconnect,
		log:        log.With("component", "voice"),
	}
}

// Join connects to channelID. discordgo's join cannot be cancelled and hands
// out the guild's existing connection to the next join, so a join that
// completes after ctx is done is disconnected before Join returns. The wait is
// bounded by discordgo's own join timeout.
func (c *Connector) Join(ctx context.Context, guildID, channelID string) (session.Connection, error) {
	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}

	vc, err := c.joiner.ChannelVoiceJoin(guildID, channelID, false, false)
	if err == nil && ctx.Err() != nil {
		err = context.Cause(ctx)
	}
	if err != nil {
		if vc != nil {
			if derr := c.disconnect(vc); derr != nil {
				c.log.Warn("disconnect abandoned join", "guild", guildID, tint.Err(derr))
			}
		}
		return nil, err
	}

	c.log.Info("joined voice channel", "guild", guildID, "channel", channelID)
	return &Connection{vc: vc, disconnect: c.disconnect}, nil
}

// Connection wraps a discordgo voice connection.
type Connection struct {
	vc         *discordgo.VoiceConnection
	disconnect func(*discordgo.VoiceConnection) error

	mu        sync.Mutex
	destroyed bool
}

func (c *Connection) Status() string {
	c.mu.Lock()
	destroyed := c.destroyed
	c.mu.Unlock()
	if destroyed {
		return "destroyed"
	}

	c.vc.RLock()
	defer c.vc.RUnlock()
	if c.vc.Ready {
		return "ready"
	}
	return "connecting"
}

// Disconnect leaves the channel. Calling it more than once is a no-op.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	c.mu.Unlock()

	if c.disconnect == nil {
		return c.vc.Disconnect()
	}
	return c.disconnect(c.vc)
}
