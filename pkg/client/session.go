package client

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"tanjun/pkg/command"
)

// Connect builds the gateway session from the bot token and attaches
// the event handlers. It does not open the connection; Start does.
func (c *Client) Connect(token string) error {
	if token == "" {
		return fmt.Errorf("discord token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("creating discord session: %w", err)
	}
	c.BindSession(session)
	return nil
}

// BindSession attaches the dispatch handlers to an existing session.
func (c *Client) BindSession(session *discordgo.Session) {
	c.session = session
	session.Identify.Intents |= discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	session.AddHandler(c.onReady)
	session.AddHandler(c.onMessageCreate)
	session.AddHandler(c.onInteractionCreate)
}

// Session returns the bound gateway session, or nil.
func (c *Client) Session() *discordgo.Session { return c.session }

// Start opens the gateway connection and runs the lifecycle: starting
// callbacks, connect, schedules, started callbacks.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("client is already started")
	}
	c.started = true
	c.mu.Unlock()

	c.runCallbacks(ctx, EventStarting)

	if c.session != nil {
		if err := c.session.Open(); err != nil {
			return fmt.Errorf("opening gateway connection: %w", err)
		}
		if c.session.State != nil && c.session.State.User != nil {
			c.botUserID = c.session.State.User.ID
		}
		if err := c.DeclareCommands(c.declareGuildID); err != nil {
			c.log.Error("Failed to declare application commands", zap.Error(err))
		}
	}

	c.runner.Start()
	c.runCallbacks(ctx, EventStarted)
	c.log.Info("Client started")
	return nil
}

// Close shuts the client down: closing callbacks, schedule stop,
// component drain, gateway close, closed callbacks.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	c.runCallbacks(ctx, EventClosing)
	c.runner.Stop()

	for _, comp := range c.Components() {
		if err := comp.Unbind(ctx); err != nil {
			c.log.Error("Component teardown failed",
				zap.String("component", comp.Name()),
				zap.Error(err))
		}
	}

	var closeErr error
	if c.session != nil {
		closeErr = c.session.Close()
	}

	c.runCallbacks(ctx, EventClosed)
	c.log.Info("Client closed")
	return closeErr
}

func (c *Client) onReady(_ *discordgo.Session, event *discordgo.Ready) {
	if event.User != nil {
		c.botUserID = event.User.ID
	}
	c.log.Info("Gateway ready", zap.String("user_id", c.botUserID))
	c.EmitEvent(context.Background(), "ready", event)
}

func (c *Client) onMessageCreate(_ *discordgo.Session, event *discordgo.MessageCreate) {
	if event.Author == nil || event.Author.Bot {
		return
	}

	ctx := context.Background()
	c.EmitEvent(ctx, "message_create", event)

	cctx := NewMessageContext(c.session, event.Message)
	if _, err := c.DispatchMessage(ctx, cctx, event.Content); err != nil {
		c.log.Error("Message dispatch failed",
			zap.String("invocation_id", cctx.InvocationID()),
			zap.String("command", cctx.TriggeringName()),
			zap.Error(err))
	}
}

func (c *Client) onInteractionCreate(_ *discordgo.Session, event *discordgo.InteractionCreate) {
	if event.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx := context.Background()
	c.EmitEvent(ctx, "interaction_create", event)

	data := event.ApplicationCommandData()
	cctx := NewInteractionContext(c.session, event)

	var err error
	switch data.CommandType {
	case discordgo.UserApplicationCommand:
		err = c.DispatchMenu(ctx, cctx, command.MenuUser, data.Name, data.TargetID)
	case discordgo.MessageApplicationCommand:
		err = c.DispatchMenu(ctx, cctx, command.MenuMessage, data.Name, data.TargetID)
	default:
		path, values := flattenInteraction(&data)
		err = c.DispatchSlash(ctx, cctx, path, values)
	}
	if err != nil {
		c.log.Error("Interaction dispatch failed",
			zap.String("invocation_id", cctx.InvocationID()),
			zap.String("command", cctx.TriggeringName()),
			zap.Error(err))
	}
}

// flattenInteraction walks the interaction option tree into the name
// path and the leaf option values.
func flattenInteraction(data *discordgo.ApplicationCommandInteractionData) ([]string, map[string]any) {
	path := []string{data.Name}
	options := data.Options

	for len(options) == 1 {
		opt := options[0]
		if opt.Type != discordgo.ApplicationCommandOptionSubCommand &&
			opt.Type != discordgo.ApplicationCommandOptionSubCommandGroup {
			break
		}
		path = append(path, opt.Name)
		options = opt.Options
	}

	values := make(map[string]any, len(options))
	for _, opt := range options {
		values[opt.Name] = optionValue(opt)
	}
	return path, values
}

func optionValue(opt *discordgo.ApplicationCommandInteractionDataOption) any {
	switch opt.Type {
	case discordgo.ApplicationCommandOptionString:
		return opt.StringValue()
	case discordgo.ApplicationCommandOptionInteger:
		return opt.IntValue()
	case discordgo.ApplicationCommandOptionNumber:
		return opt.FloatValue()
	case discordgo.ApplicationCommandOptionBoolean:
		return opt.BoolValue()
	default:
		// User, channel, role and mentionable options carry snowflakes.
		return fmt.Sprint(opt.Value)
	}
}
