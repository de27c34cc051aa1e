package client

import (
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"tanjun/pkg/command"
)

// DeclareCommands builds the application command declarations from
// every registered component and bulk-overwrites them with Discord.
// guildID scopes the declarations to one guild; empty means global.
func (c *Client) DeclareCommands(guildID string) error {
	if c.session == nil {
		return fmt.Errorf("no gateway session bound")
	}
	appID := c.botUserID
	if c.session.State != nil && c.session.State.User != nil {
		appID = c.session.State.User.ID
	}
	if appID == "" {
		return fmt.Errorf("application ID unknown, gateway not ready")
	}

	defs := c.BuildCommandDefs()
	if _, err := c.session.ApplicationCommandBulkOverwrite(appID, guildID, defs); err != nil {
		return fmt.Errorf("declaring application commands: %w", err)
	}
	c.log.Info("Application commands declared",
		zap.Int("count", len(defs)),
		zap.String("guild_id", guildID))
	return nil
}

// BuildCommandDefs builds the slash and context-menu declarations for
// every registered component, sorted by name for stable output.
func (c *Client) BuildCommandDefs() []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, comp := range c.Components() {
		for _, entry := range comp.SlashEntries() {
			defs = append(defs, c.buildSlashDef(entry))
		}
		for _, menu := range comp.MenuCommands() {
			defs = append(defs, c.buildMenuDef(menu))
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (c *Client) buildSlashDef(entry command.SlashEntry) *discordgo.ApplicationCommand {
	switch e := entry.(type) {
	case *command.SlashCommand:
		return &discordgo.ApplicationCommand{
			Name:                     e.Name(),
			Description:              e.Description(),
			Options:                  c.buildOptionDefs(e.Options()),
			NameLocalizations:        localeMap(c.localized(e.NameLocalizations(), e.Name()+".name")),
			DescriptionLocalizations: localeMap(c.localized(e.DescriptionLocalizations(), e.Name()+".description")),
		}
	case *command.SlashGroup:
		return &discordgo.ApplicationCommand{
			Name:        e.Name(),
			Description: e.Description(),
			Options:     c.buildGroupOptions(e),
		}
	}
	return nil
}

// buildGroupOptions renders a group's commands and sub-groups as
// sub-command options, sorted by name.
func (c *Client) buildGroupOptions(g *command.SlashGroup) []*discordgo.ApplicationCommandOption {
	var opts []*discordgo.ApplicationCommandOption

	for _, sub := range g.Groups() {
		opts = append(opts, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
			Name:        sub.Name(),
			Description: sub.Description(),
			Options:     c.buildGroupOptions(sub),
		})
	}
	for _, cmd := range g.Commands() {
		opts = append(opts, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        cmd.Name(),
			Description: cmd.Description(),
			Options:     c.buildOptionDefs(cmd.Options()),
		})
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].Name < opts[j].Name })
	return opts
}

func (c *Client) buildMenuDef(menu *command.MenuCommand) *discordgo.ApplicationCommand {
	cmdType := discordgo.UserApplicationCommand
	if menu.Kind() == command.MenuMessage {
		cmdType = discordgo.MessageApplicationCommand
	}
	return &discordgo.ApplicationCommand{
		Name:              menu.Name(),
		Type:              cmdType,
		NameLocalizations: localeMap(c.localized(menu.NameLocalizations(), menu.Name()+".name")),
	}
}

func (c *Client) buildOptionDefs(opts []command.Option) []*discordgo.ApplicationCommandOption {
	out := make([]*discordgo.ApplicationCommandOption, 0, len(opts))
	for _, opt := range opts {
		def := &discordgo.ApplicationCommandOption{
			Type:              optionTypeFor(opt.Type),
			Name:              opt.Name,
			Description:       opt.Description,
			Required:          opt.Required,
			MinValue:          opt.MinValue,
			NameLocalizations: optionLocaleMap(opt.NameLocalizations),
		}
		if opt.MaxValue != nil {
			def.MaxValue = *opt.MaxValue
		}
		for _, choice := range opt.Choices {
			def.Choices = append(def.Choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  choice.Name,
				Value: choice.Value,
			})
		}
		out = append(out, def)
	}
	return out
}

func optionTypeFor(t command.OptionType) discordgo.ApplicationCommandOptionType {
	switch t {
	case command.OptionString:
		return discordgo.ApplicationCommandOptionString
	case command.OptionInteger:
		return discordgo.ApplicationCommandOptionInteger
	case command.OptionBoolean:
		return discordgo.ApplicationCommandOptionBoolean
	case command.OptionFloat:
		return discordgo.ApplicationCommandOptionNumber
	case command.OptionUser:
		return discordgo.ApplicationCommandOptionUser
	case command.OptionChannel:
		return discordgo.ApplicationCommandOptionChannel
	case command.OptionRole:
		return discordgo.ApplicationCommandOptionRole
	}
	return discordgo.ApplicationCommandOptionString
}

// localized merges explicit per-command localisations with the locale
// store's translations for the given key.
func (c *Client) localized(explicit map[string]string, key string) map[string]string {
	merged := make(map[string]string, len(explicit))
	if c.locales != nil && key != "" {
		for locale, value := range c.locales.All(key) {
			merged[locale] = value
		}
	}
	for locale, value := range explicit {
		merged[locale] = value
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

// optionLocaleMap converts option-level localisations, which the API
// model keeps as a plain map.
func optionLocaleMap(translations map[string]string) map[discordgo.Locale]string {
	if len(translations) == 0 {
		return nil
	}
	out := make(map[discordgo.Locale]string, len(translations))
	for locale, value := range translations {
		out[discordgo.Locale(locale)] = value
	}
	return out
}

func localeMap(translations map[string]string) *map[discordgo.Locale]string {
	if len(translations) == 0 {
		return nil
	}
	out := make(map[discordgo.Locale]string, len(translations))
	for locale, value := range translations {
		out[discordgo.Locale(locale)] = value
	}
	return &out
}
