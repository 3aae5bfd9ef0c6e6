package bot

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/commands"
)

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("connected", zap.String("user", event.User.Username))

	for _, guild := range event.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			b.logger.Error("failed to register commands", zap.String("guild_id", guild.ID), zap.Error(err))
		}
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	b.logger.Info("guild available, ensuring commands", zap.String("guild", event.Name), zap.String("guild_id", event.ID))
	if err := b.registerGuildCommands(event.ID); err != nil {
		b.logger.Error("failed to register commands", zap.String("guild_id", event.ID), zap.Error(err))
	}
}

// registerGuildCommands replaces the guild's application commands.
func (b *Bot) registerGuildCommands(guildID string) error {
	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, guildID, commands.GetCommands())
	if err != nil {
		return err
	}
	b.logger.Debug("registered application commands", zap.String("guild_id", guildID))
	return nil
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.ApplicationCommandData().Name == commands.CommandName {
		b.warikan.Handle(s, i)
	}
}
