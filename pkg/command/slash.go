package command

import (
	"context"
	"strings"

	"tanjun/pkg/injector"
)

// SlashEntry is a top-level slash declaration on a component: either a
// *SlashCommand or a *SlashGroup.
type SlashEntry interface {
	Name() string
	slashEntry()
}

// SlashCommand is a slash command declaration.
type SlashCommand struct {
	base
	name        string
	description string
	options     []Option
	exec        ExecFunc
	parent      *SlashGroup

	nameLocalizations        map[string]string
	descriptionLocalizations map[string]string
}

// NewSlashCommand declares a slash command.
func NewSlashCommand(name, description string, exec ExecFunc) *SlashCommand {
	return &SlashCommand{name: name, description: description, exec: exec}
}

func (c *SlashCommand) slashEntry() {}

// Name returns the command name.
func (c *SlashCommand) Name() string { return c.name }

// Description returns the command description.
func (c *SlashCommand) Description() string { return c.description }

// Options returns the declared options.
func (c *SlashCommand) Options() []Option { return c.options }

// Parent returns the owning group, or nil for a top-level command.
func (c *SlashCommand) Parent() *SlashGroup { return c.parent }

// FullName returns the space-joined name path.
func (c *SlashCommand) FullName() string {
	parts := []string{c.name}
	for g := c.parent; g != nil; g = g.parent {
		parts = append([]string{g.name}, parts...)
	}
	return strings.Join(parts, " ")
}

// AddOption appends an option declaration.
func (c *SlashCommand) AddOption(opt Option) *SlashCommand {
	c.options = append(c.options, opt)
	return c
}

// AddCheck appends a command-level check.
func (c *SlashCommand) AddCheck(fn Check) *SlashCommand {
	c.addCheck(fn)
	return c
}

// SetHooks attaches the command-level hook set.
func (c *SlashCommand) SetHooks(h *Hooks) *SlashCommand {
	c.setHooks(h)
	return c
}

// AddParam declares an injected parameter for the callback.
func (c *SlashCommand) AddParam(p injector.Param) *SlashCommand {
	c.addParam(p)
	return c
}

// SetMetadata stores an arbitrary metadata entry.
func (c *SlashCommand) SetMetadata(key string, value any) *SlashCommand {
	c.setMetadata(key, value)
	return c
}

// SetEphemeralDefault sets the command-level ephemeral default.
func (c *SlashCommand) SetEphemeralDefault(v bool) *SlashCommand {
	c.setEphemeralDefault(v)
	return c
}

// SetAlwaysDefer makes the pipeline defer before executing.
func (c *SlashCommand) SetAlwaysDefer(v bool) *SlashCommand {
	c.setAlwaysDefer(v)
	return c
}

// SetCooldownBucket guards the command with a cooldown bucket.
func (c *SlashCommand) SetCooldownBucket(name string) *SlashCommand {
	c.setCooldownBucket(name)
	return c
}

// SetConcurrencyBucket guards the command with a concurrency bucket.
func (c *SlashCommand) SetConcurrencyBucket(name string) *SlashCommand {
	c.setConcurrencyBucket(name)
	return c
}

// LocalizeName adds a localised command name.
func (c *SlashCommand) LocalizeName(locale, name string) *SlashCommand {
	if c.nameLocalizations == nil {
		c.nameLocalizations = make(map[string]string)
	}
	c.nameLocalizations[locale] = name
	return c
}

// LocalizeDescription adds a localised command description.
func (c *SlashCommand) LocalizeDescription(locale, description string) *SlashCommand {
	if c.descriptionLocalizations == nil {
		c.descriptionLocalizations = make(map[string]string)
	}
	c.descriptionLocalizations[locale] = description
	return c
}

// NameLocalizations returns the localised names.
func (c *SlashCommand) NameLocalizations() map[string]string { return c.nameLocalizations }

// DescriptionLocalizations returns the localised descriptions.
func (c *SlashCommand) DescriptionLocalizations() map[string]string {
	return c.descriptionLocalizations
}

// Execute runs the callback.
func (c *SlashCommand) Execute(ctx context.Context, cctx Context, args injector.Args) error {
	return c.exec(ctx, cctx, args)
}

// BindOptions validates and converts pre-resolved option values from an
// interaction payload.
func (c *SlashCommand) BindOptions(ctx context.Context, cctx Context, values map[string]any) (injector.Args, error) {
	return bindOptionValues(ctx, cctx, c.options, values)
}

// SlashGroup is a named group of slash commands. Groups may contain one
// level of sub-groups; deeper nesting fails at declaration time.
type SlashGroup struct {
	name        string
	description string
	commands    map[string]*SlashCommand
	groups      map[string]*SlashGroup
	checks      []Check
	hooks       *Hooks
	parent      *SlashGroup
}

// NewSlashGroup declares a slash command group.
func NewSlashGroup(name, description string) *SlashGroup {
	return &SlashGroup{
		name:        name,
		description: description,
		commands:    make(map[string]*SlashCommand),
		groups:      make(map[string]*SlashGroup),
	}
}

func (g *SlashGroup) slashEntry() {}

// Name returns the group name.
func (g *SlashGroup) Name() string { return g.name }

// Description returns the group description.
func (g *SlashGroup) Description() string { return g.description }

// Checks returns the group-level checks.
func (g *SlashGroup) Checks() []Check { return g.checks }

// Hooks returns the group-level hook set.
func (g *SlashGroup) Hooks() *Hooks { return g.hooks }

// Commands returns the group's direct sub-commands.
func (g *SlashGroup) Commands() map[string]*SlashCommand { return g.commands }

// Groups returns the group's sub-groups.
func (g *SlashGroup) Groups() map[string]*SlashGroup { return g.groups }

// AddCheck appends a group-level check, applied to every command below
// the group.
func (g *SlashGroup) AddCheck(fn Check) *SlashGroup {
	g.checks = append(g.checks, fn)
	return g
}

// SetHooks attaches the group-level hook set.
func (g *SlashGroup) SetHooks(h *Hooks) *SlashGroup {
	g.hooks = h
	return g
}

// AddCommand registers a sub-command under the group.
func (g *SlashGroup) AddCommand(cmd *SlashCommand) error {
	if _, exists := g.commands[cmd.name]; exists {
		return registrationErrorf("slash command %q already exists in group %q", cmd.name, g.name)
	}
	if _, exists := g.groups[cmd.name]; exists {
		return registrationErrorf("name %q already used by a sub-group of %q", cmd.name, g.name)
	}
	cmd.parent = g
	g.commands[cmd.name] = cmd
	return nil
}

// AddGroup registers a sub-group. Only one level of nesting is allowed:
// adding a group to a group that is itself nested fails.
func (g *SlashGroup) AddGroup(sub *SlashGroup) error {
	if g.parent != nil {
		return registrationErrorf("cannot nest group %q under sub-group %q: only one level of sub-groups is allowed", sub.name, g.name)
	}
	if len(sub.groups) > 0 {
		return registrationErrorf("cannot nest group %q: it already contains sub-groups", sub.name)
	}
	if _, exists := g.groups[sub.name]; exists {
		return registrationErrorf("sub-group %q already exists in group %q", sub.name, g.name)
	}
	if _, exists := g.commands[sub.name]; exists {
		return registrationErrorf("name %q already used by a command of %q", sub.name, g.name)
	}
	sub.parent = g
	g.groups[sub.name] = sub
	return nil
}

// find resolves a name path below this group.
func (g *SlashGroup) find(path []string) (*SlashCommand, error) {
	if len(path) == 0 {
		return nil, &NotFoundError{Path: path}
	}
	if cmd, ok := g.commands[path[0]]; ok && len(path) == 1 {
		return cmd, nil
	}
	if sub, ok := g.groups[path[0]]; ok {
		return sub.find(path[1:])
	}
	return nil, &NotFoundError{Path: path}
}

// GroupChain returns the group ancestry of cmd, outermost first.
func (c *SlashCommand) GroupChain() []*SlashGroup {
	var chain []*SlashGroup
	for g := c.parent; g != nil; g = g.parent {
		chain = append([]*SlashGroup{g}, chain...)
	}
	return chain
}
