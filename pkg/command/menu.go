package command

import (
	"context"

	"tanjun/pkg/injector"
)

// MenuKind distinguishes user and message context menus.
type MenuKind int

const (
	// MenuUser is a context menu shown on a user.
	MenuUser MenuKind = iota + 1
	// MenuMessage is a context menu shown on a message.
	MenuMessage
)

// MenuCommand is a context-menu command. The targeted user or message
// ID is supplied in the args under "target".
type MenuCommand struct {
	base
	kind MenuKind
	name string
	exec ExecFunc

	nameLocalizations map[string]string
}

// NewMenuCommand declares a context-menu command.
func NewMenuCommand(kind MenuKind, name string, exec ExecFunc) *MenuCommand {
	return &MenuCommand{kind: kind, name: name, exec: exec}
}

// Name returns the menu entry name.
func (c *MenuCommand) Name() string { return c.name }

// Kind returns the menu kind.
func (c *MenuCommand) Kind() MenuKind { return c.kind }

// AddCheck appends a command-level check.
func (c *MenuCommand) AddCheck(fn Check) *MenuCommand {
	c.addCheck(fn)
	return c
}

// SetHooks attaches the command-level hook set.
func (c *MenuCommand) SetHooks(h *Hooks) *MenuCommand {
	c.setHooks(h)
	return c
}

// AddParam declares an injected parameter for the callback.
func (c *MenuCommand) AddParam(p injector.Param) *MenuCommand {
	c.addParam(p)
	return c
}

// SetEphemeralDefault sets the command-level ephemeral default.
func (c *MenuCommand) SetEphemeralDefault(v bool) *MenuCommand {
	c.setEphemeralDefault(v)
	return c
}

// SetAlwaysDefer makes the pipeline defer before executing.
func (c *MenuCommand) SetAlwaysDefer(v bool) *MenuCommand {
	c.setAlwaysDefer(v)
	return c
}

// SetCooldownBucket guards the command with a cooldown bucket.
func (c *MenuCommand) SetCooldownBucket(name string) *MenuCommand {
	c.setCooldownBucket(name)
	return c
}

// SetConcurrencyBucket guards the command with a concurrency bucket.
func (c *MenuCommand) SetConcurrencyBucket(name string) *MenuCommand {
	c.setConcurrencyBucket(name)
	return c
}

// LocalizeName adds a localised menu entry name.
func (c *MenuCommand) LocalizeName(locale, name string) *MenuCommand {
	if c.nameLocalizations == nil {
		c.nameLocalizations = make(map[string]string)
	}
	c.nameLocalizations[locale] = name
	return c
}

// NameLocalizations returns the localised names.
func (c *MenuCommand) NameLocalizations() map[string]string { return c.nameLocalizations }

// Execute runs the callback.
func (c *MenuCommand) Execute(ctx context.Context, cctx Context, args injector.Args) error {
	return c.exec(ctx, cctx, args)
}
