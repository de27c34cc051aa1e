package client

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"tanjun/pkg/command"
)

var (
	_ command.Context             = (*MessageContext)(nil)
	_ command.TopRoleProvider     = (*MessageContext)(nil)
	_ command.Context             = (*InteractionContext)(nil)
	_ command.TopRoleProvider     = (*InteractionContext)(nil)
	_ command.PermissionsProvider = (*InteractionContext)(nil)
)

// topRoleID resolves the highest-positioned of the member's roles from
// session state. Member role slices carry no hierarchy order, so the
// positions have to come from the guild's role list; when no role can
// be resolved the empty result makes limiter keys fall back to the
// guild.
func topRoleID(s *discordgo.Session, guildID string, roleIDs []string) string {
	if s == nil || s.State == nil || guildID == "" {
		return ""
	}
	top := ""
	best := 0
	for _, id := range roleIDs {
		role, err := s.State.Role(guildID, id)
		if err != nil {
			continue
		}
		if top == "" || role.Position > best {
			top = role.ID
			best = role.Position
		}
	}
	return top
}

// MessageContext wraps a gateway message event. Responses are plain
// channel messages; the ephemeral flag has no effect and deferral shows
// a typing indicator.
type MessageContext struct {
	session *discordgo.Session
	message *discordgo.Message

	mu             sync.Mutex
	invocationID   string
	triggeringName string
	responded      bool
	responseID     string
}

// NewMessageContext creates the invocation context for a message event.
func NewMessageContext(session *discordgo.Session, message *discordgo.Message) *MessageContext {
	return &MessageContext{
		session:      session,
		message:      message,
		invocationID: uuid.NewString(),
	}
}

// Message returns the triggering message.
func (c *MessageContext) Message() *discordgo.Message { return c.message }

func (c *MessageContext) InvocationID() string { return c.invocationID }

func (c *MessageContext) SetTriggeringName(name string) {
	c.mu.Lock()
	c.triggeringName = name
	c.mu.Unlock()
}

func (c *MessageContext) TriggeringName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggeringName
}

func (c *MessageContext) UserID() string {
	if c.message.Author == nil {
		return ""
	}
	return c.message.Author.ID
}

func (c *MessageContext) ChannelID() string { return c.message.ChannelID }
func (c *MessageContext) GuildID() string   { return c.message.GuildID }

// TopRoleID returns the invoking member's highest role when the gateway
// provided member data.
func (c *MessageContext) TopRoleID() string {
	if c.message.Member == nil {
		return ""
	}
	return topRoleID(c.session, c.message.GuildID, c.message.Member.Roles)
}

func (c *MessageContext) Respond(_ context.Context, content string, _ bool) error {
	msg, err := c.session.ChannelMessageSend(c.message.ChannelID, content)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if !c.responded {
		c.responded = true
		c.responseID = msg.ID
	}
	c.mu.Unlock()
	return nil
}

func (c *MessageContext) Defer(_ context.Context, _ bool) error {
	return c.session.ChannelTyping(c.message.ChannelID)
}

func (c *MessageContext) Followup(ctx context.Context, content string, ephemeral bool) error {
	return c.Respond(ctx, content, ephemeral)
}

func (c *MessageContext) Edit(_ context.Context, content string) error {
	c.mu.Lock()
	id := c.responseID
	c.mu.Unlock()
	if id == "" {
		return c.Respond(context.Background(), content, false)
	}
	_, err := c.session.ChannelMessageEdit(c.message.ChannelID, id, content)
	return err
}

func (c *MessageContext) HasResponded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responded
}

// HasDeferred is always false for messages; typing indicators don't
// gate the response flow.
func (c *MessageContext) HasDeferred() bool { return false }

// InteractionContext wraps a slash or context-menu interaction. The
// first Respond creates the interaction response; later calls and
// Followup become follow-up messages. Defer before any response sends a
// deferred acknowledgement.
type InteractionContext struct {
	session     *discordgo.Session
	interaction *discordgo.InteractionCreate

	mu             sync.Mutex
	invocationID   string
	triggeringName string
	responded      bool
	deferred       bool
}

// NewInteractionContext creates the invocation context for an
// interaction event.
func NewInteractionContext(session *discordgo.Session, interaction *discordgo.InteractionCreate) *InteractionContext {
	return &InteractionContext{
		session:      session,
		interaction:  interaction,
		invocationID: uuid.NewString(),
	}
}

// Interaction returns the triggering interaction.
func (c *InteractionContext) Interaction() *discordgo.InteractionCreate { return c.interaction }

func (c *InteractionContext) InvocationID() string { return c.invocationID }

func (c *InteractionContext) SetTriggeringName(name string) {
	c.mu.Lock()
	c.triggeringName = name
	c.mu.Unlock()
}

func (c *InteractionContext) TriggeringName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggeringName
}

func (c *InteractionContext) UserID() string {
	if c.interaction.Member != nil && c.interaction.Member.User != nil {
		return c.interaction.Member.User.ID
	}
	if c.interaction.User != nil {
		return c.interaction.User.ID
	}
	return ""
}

func (c *InteractionContext) ChannelID() string { return c.interaction.ChannelID }
func (c *InteractionContext) GuildID() string   { return c.interaction.GuildID }

func (c *InteractionContext) TopRoleID() string {
	if c.interaction.Member == nil {
		return ""
	}
	return topRoleID(c.session, c.interaction.GuildID, c.interaction.Member.Roles)
}

// Locale returns the invoker's locale for response localisation.
func (c *InteractionContext) Locale() string {
	return string(c.interaction.Locale)
}

// Permissions returns the member's permission bits in the invoking
// channel, or 0 outside of guilds.
func (c *InteractionContext) Permissions() int64 {
	if c.interaction.Member == nil {
		return 0
	}
	return c.interaction.Member.Permissions
}

func (c *InteractionContext) Respond(ctx context.Context, content string, ephemeral bool) error {
	c.mu.Lock()
	initial := !c.responded && !c.deferred
	if initial {
		c.responded = true
	}
	c.mu.Unlock()

	if initial {
		var flags discordgo.MessageFlags
		if ephemeral {
			flags = discordgo.MessageFlagsEphemeral
		}
		return c.session.InteractionRespond(c.interaction.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: content, Flags: flags},
		}, discordgo.WithContext(ctx))
	}

	c.mu.Lock()
	wasDeferred := c.deferred && !c.responded
	c.mu.Unlock()
	if wasDeferred {
		// First real response after a deferral fills the placeholder.
		_, err := c.session.InteractionResponseEdit(c.interaction.Interaction, &discordgo.WebhookEdit{
			Content: &content,
		}, discordgo.WithContext(ctx))
		if err == nil {
			c.mu.Lock()
			c.responded = true
			c.mu.Unlock()
		}
		return err
	}
	return c.Followup(ctx, content, ephemeral)
}

func (c *InteractionContext) Defer(ctx context.Context, ephemeral bool) error {
	c.mu.Lock()
	if c.responded || c.deferred {
		c.mu.Unlock()
		return nil
	}
	c.deferred = true
	c.mu.Unlock()

	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return c.session.InteractionRespond(c.interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	}, discordgo.WithContext(ctx))
}

func (c *InteractionContext) Followup(ctx context.Context, content string, ephemeral bool) error {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_, err := c.session.FollowupMessageCreate(c.interaction.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   flags,
	}, discordgo.WithContext(ctx))
	return err
}

func (c *InteractionContext) Edit(ctx context.Context, content string) error {
	_, err := c.session.InteractionResponseEdit(c.interaction.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}, discordgo.WithContext(ctx))
	return err
}

func (c *InteractionContext) HasResponded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responded
}

func (c *InteractionContext) HasDeferred() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deferred
}
