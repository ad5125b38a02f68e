package notifier

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordMaxLen is the Discord message length limit.
const discordMaxLen = 2000

// discordSender is the part of *discordgo.Session used here.
type discordSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts reports to a Discord channel as a bot.
type DiscordNotifier struct {
	ChannelID string
	session   discordSender
}

// NewDiscordNotifier creates a bot session for token. No gateway connection is opened;
// messages go through the REST API.
func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordNotifier{ChannelID: channelID, session: s}, nil
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) Notify(ctx context.Context, msg Message) error {
	header := fmt.Sprintf("**%s**\n", msg.Subject)
	if msg.Summary != "" {
		header += msg.Summary + "\n"
	}
	for i, part := range splitLines(msg.Text, discordMaxLen-len(header)-16) {
		content := "```\n" + part + "\n```"
		if i == 0 {
			content = header + content
		}
		if _, err := d.session.ChannelMessageSend(d.ChannelID, content, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
	}
	return nil
}
