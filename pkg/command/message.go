package command

import (
	"context"
	"sort"
	"strings"

	"tanjun/pkg/injector"
)

// MessageCommand is a prefix-triggered text command. It may carry
// aliases; the first name is the primary one.
type MessageCommand struct {
	base
	names   []string
	options []Option
	exec    ExecFunc
	parent  *MessageGroup
}

// NewMessageCommand declares a message command with one or more names.
func NewMessageCommand(exec ExecFunc, names ...string) *MessageCommand {
	if len(names) == 0 {
		panic("command: message command needs at least one name")
	}
	return &MessageCommand{names: names, exec: exec}
}

// Name returns the primary name.
func (c *MessageCommand) Name() string { return c.names[0] }

// Names returns the primary name and all aliases.
func (c *MessageCommand) Names() []string { return c.names }

// Parent returns the owning group, or nil.
func (c *MessageCommand) Parent() *MessageGroup { return c.parent }

// AddOption appends a positional option declaration.
func (c *MessageCommand) AddOption(opt Option) *MessageCommand {
	c.options = append(c.options, opt)
	return c
}

// Options returns the declared options.
func (c *MessageCommand) Options() []Option { return c.options }

// AddCheck appends a command-level check.
func (c *MessageCommand) AddCheck(fn Check) *MessageCommand {
	c.addCheck(fn)
	return c
}

// SetHooks attaches the command-level hook set.
func (c *MessageCommand) SetHooks(h *Hooks) *MessageCommand {
	c.setHooks(h)
	return c
}

// AddParam declares an injected parameter for the callback.
func (c *MessageCommand) AddParam(p injector.Param) *MessageCommand {
	c.addParam(p)
	return c
}

// SetMetadata stores an arbitrary metadata entry.
func (c *MessageCommand) SetMetadata(key string, value any) *MessageCommand {
	c.setMetadata(key, value)
	return c
}

// SetEphemeralDefault sets the command-level ephemeral default.
func (c *MessageCommand) SetEphemeralDefault(v bool) *MessageCommand {
	c.setEphemeralDefault(v)
	return c
}

// SetCooldownBucket guards the command with a cooldown bucket.
func (c *MessageCommand) SetCooldownBucket(name string) *MessageCommand {
	c.setCooldownBucket(name)
	return c
}

// SetConcurrencyBucket guards the command with a concurrency bucket.
func (c *MessageCommand) SetConcurrencyBucket(name string) *MessageCommand {
	c.setConcurrencyBucket(name)
	return c
}

// Execute runs the callback.
func (c *MessageCommand) Execute(ctx context.Context, cctx Context, args injector.Args) error {
	return c.exec(ctx, cctx, args)
}

// ParseArgs parses the residual text against the declared options.
func (c *MessageCommand) ParseArgs(ctx context.Context, cctx Context, residual string) (injector.Args, error) {
	return parseMessageArgs(ctx, cctx, c.options, residual)
}

// MessageGroup is a message command that owns sub-commands. The group
// itself stays invocable when no sub-command name matches.
type MessageGroup struct {
	MessageCommand
	children []*MessageCommand
	groups   []*MessageGroup
}

// NewMessageGroup declares a message command group. exec is the body
// run when the group is invoked directly.
func NewMessageGroup(exec ExecFunc, names ...string) *MessageGroup {
	return &MessageGroup{MessageCommand: *NewMessageCommand(exec, names...)}
}

// AddCommand registers a sub-command.
func (g *MessageGroup) AddCommand(cmd *MessageCommand) error {
	for _, name := range cmd.names {
		if g.hasChildName(name) {
			return registrationErrorf("message command %q already exists in group %q", name, g.Name())
		}
	}
	cmd.parent = g
	g.children = append(g.children, cmd)
	return nil
}

// AddGroup registers a nested sub-group.
func (g *MessageGroup) AddGroup(sub *MessageGroup) error {
	for _, name := range sub.names {
		if g.hasChildName(name) {
			return registrationErrorf("message command %q already exists in group %q", name, g.Name())
		}
	}
	sub.parent = g
	g.groups = append(g.groups, sub)
	return nil
}

func (g *MessageGroup) hasChildName(name string) bool {
	for _, c := range g.children {
		for _, n := range c.names {
			if n == name {
				return true
			}
		}
	}
	for _, c := range g.groups {
		for _, n := range c.names {
			if n == name {
				return true
			}
		}
	}
	return false
}

// MessageMatch is the result of matching message content against the
// tree: the matched command and the residual argument text.
type MessageMatch struct {
	Command  *MessageCommand
	Group    *MessageGroup // set when the match is a group invoked directly
	Residual string
	// FullName is the space-joined matched name path.
	FullName string
}

// Executable returns the matched command as an Executable.
func (m *MessageMatch) Executable() Executable {
	if m.Group != nil {
		return m.Group
	}
	return m.Command
}

// matchName tries each name as a literal prefix of content, longest
// first so "tour de france" wins over "tour". A name only matches on a
// word boundary.
func matchName(content string, names []string) (string, string, bool) {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	for _, name := range sorted {
		if !strings.HasPrefix(content, name) {
			continue
		}
		rest := content[len(name):]
		if rest == "" {
			return name, "", true
		}
		if strings.HasPrefix(rest, " ") {
			return name, strings.TrimLeft(rest, " "), true
		}
	}
	return "", "", false
}

// match resolves content against the group's children, falling back to
// the group itself.
func (g *MessageGroup) match(content, pathSoFar string) *MessageMatch {
	// Longest child name first across sub-groups and sub-commands.
	type candidate struct {
		names []string
		cmd   *MessageCommand
		grp   *MessageGroup
	}
	var candidates []candidate
	for _, sub := range g.groups {
		candidates = append(candidates, candidate{names: sub.names, grp: sub})
	}
	for _, cmd := range g.children {
		candidates = append(candidates, candidate{names: cmd.names, cmd: cmd})
	}

	best := (*MessageMatch)(nil)
	bestLen := -1
	for _, cand := range candidates {
		name, residual, ok := matchName(content, cand.names)
		if !ok || len(name) <= bestLen {
			continue
		}
		full := pathSoFar + " " + name
		if cand.grp != nil {
			best, bestLen = cand.grp.match(residual, full), len(name)
			continue
		}
		best = &MessageMatch{Command: cand.cmd, Residual: residual, FullName: full}
		bestLen = len(name)
	}
	if best != nil {
		return best
	}

	// No sub-command matched: the group itself is invocable.
	return &MessageMatch{Command: &g.MessageCommand, Group: g, Residual: content, FullName: pathSoFar}
}
