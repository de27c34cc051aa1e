package command

import (
	"context"
	"sync"

	"tanjun/pkg/schedule"
)

// Listener receives raw gateway events the component subscribed to.
type Listener func(ctx context.Context, event any) error

type menuKey struct {
	kind MenuKind
	name string
}

// Component is a named bundle of commands, listeners and schedules. A
// component is owned by at most one client at a time; its checks and
// hooks apply to every command it holds.
type Component struct {
	name string

	mu        sync.RWMutex
	slash     map[string]SlashEntry
	message   []*MessageCommand
	msgGroups []*MessageGroup
	msgNames  map[string]struct{}
	menus     map[menuKey]*MenuCommand
	listeners map[string][]Listener
	schedules []*schedule.Schedule

	checks []Check
	hooks  *Hooks

	ephemeral    bool
	ephemeralSet bool

	bound   bool
	onClose func(ctx context.Context) error

	// inflight tracks running invocations so removal can drain them
	// before the close callback runs.
	inflight sync.WaitGroup
}

// NewComponent creates an empty component.
func NewComponent(name string) *Component {
	return &Component{
		name:      name,
		slash:     make(map[string]SlashEntry),
		msgNames:  make(map[string]struct{}),
		menus:     make(map[menuKey]*MenuCommand),
		listeners: make(map[string][]Listener),
	}
}

// Name returns the component name.
func (c *Component) Name() string { return c.name }

// Checks returns the component-level checks.
func (c *Component) Checks() []Check { return c.checks }

// Hooks returns the component-level hook set.
func (c *Component) Hooks() *Hooks { return c.hooks }

// AddCheck appends a component-level check applied to every command.
func (c *Component) AddCheck(fn Check) *Component {
	c.checks = append(c.checks, fn)
	return c
}

// SetHooks attaches the component-level hook set.
func (c *Component) SetHooks(h *Hooks) *Component {
	c.hooks = h
	return c
}

// SetEphemeralDefault sets the component-level ephemeral default,
// inherited by commands that don't set their own.
func (c *Component) SetEphemeralDefault(v bool) *Component {
	c.ephemeral, c.ephemeralSet = v, true
	return c
}

// EphemeralDefault reports the component-level ephemeral default and
// whether it was set.
func (c *Component) EphemeralDefault() (bool, bool) { return c.ephemeral, c.ephemeralSet }

// SetOnClose registers a teardown callback run after in-flight
// invocations drain when the component is removed from a client.
func (c *Component) SetOnClose(fn func(ctx context.Context) error) *Component {
	c.onClose = fn
	return c
}

// AddSlashCommand registers a top-level slash command or group. The
// command's identity is fixed on registration: a command already owned
// by another component is rejected.
func (c *Component) AddSlashCommand(entry SlashEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.slash[entry.Name()]; exists {
		return registrationErrorf("slash command %q already exists in component %q", entry.Name(), c.name)
	}
	if cmd, ok := entry.(*SlashCommand); ok {
		if cmd.component != nil && cmd.component != c {
			return registrationErrorf("slash command %q is already owned by component %q", cmd.name, cmd.component.name)
		}
		cmd.component = c
	}
	if group, ok := entry.(*SlashGroup); ok {
		group.adopt(c)
	}
	c.slash[entry.Name()] = entry
	return nil
}

func (g *SlashGroup) adopt(c *Component) {
	for _, cmd := range g.commands {
		cmd.component = c
	}
	for _, sub := range g.groups {
		sub.adopt(c)
	}
}

// AddMessageCommand registers a top-level message command.
func (c *Component) AddMessageCommand(cmd *MessageCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addMessageLocked(cmd, nil)
}

// AddMessageGroup registers a top-level message command group.
func (c *Component) AddMessageGroup(group *MessageGroup) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addMessageLocked(&group.MessageCommand, group)
}

func (c *Component) addMessageLocked(cmd *MessageCommand, group *MessageGroup) error {
	for _, name := range cmd.names {
		if _, exists := c.msgNames[name]; exists {
			return registrationErrorf("message command %q already exists in component %q", name, c.name)
		}
	}
	if cmd.component != nil && cmd.component != c {
		return registrationErrorf("message command %q is already owned by component %q", cmd.Name(), cmd.component.name)
	}
	cmd.component = c
	if group != nil {
		group.adoptMessage(c)
		c.msgGroups = append(c.msgGroups, group)
	} else {
		c.message = append(c.message, cmd)
	}
	for _, name := range cmd.names {
		c.msgNames[name] = struct{}{}
	}
	return nil
}

func (g *MessageGroup) adoptMessage(c *Component) {
	g.component = c
	for _, cmd := range g.children {
		cmd.component = c
	}
	for _, sub := range g.groups {
		sub.adoptMessage(c)
	}
}

// AddMenuCommand registers a context-menu command.
func (c *Component) AddMenuCommand(cmd *MenuCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := menuKey{kind: cmd.kind, name: cmd.name}
	if _, exists := c.menus[key]; exists {
		return registrationErrorf("menu command %q already exists in component %q", cmd.name, c.name)
	}
	if cmd.component != nil && cmd.component != c {
		return registrationErrorf("menu command %q is already owned by component %q", cmd.name, cmd.component.name)
	}
	cmd.component = c
	c.menus[key] = cmd
	return nil
}

// AddListener subscribes a listener to a named gateway event.
func (c *Component) AddListener(event string, fn Listener) *Component {
	c.mu.Lock()
	c.listeners[event] = append(c.listeners[event], fn)
	c.mu.Unlock()
	return c
}

// Listeners returns the listeners for a named event.
func (c *Component) Listeners(event string) []Listener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listeners[event]
}

// AddSchedule attaches a periodic callback to the component.
func (c *Component) AddSchedule(s *schedule.Schedule) *Component {
	c.mu.Lock()
	c.schedules = append(c.schedules, s)
	c.mu.Unlock()
	return c
}

// Schedules returns the attached schedules.
func (c *Component) Schedules() []*schedule.Schedule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.schedules
}

// SlashEntries returns the top-level slash declarations.
func (c *Component) SlashEntries() []SlashEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := make([]SlashEntry, 0, len(c.slash))
	for _, e := range c.slash {
		entries = append(entries, e)
	}
	return entries
}

// MenuCommands returns the registered menu commands.
func (c *Component) MenuCommands() []*MenuCommand {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cmds := make([]*MenuCommand, 0, len(c.menus))
	for _, m := range c.menus {
		cmds = append(cmds, m)
	}
	return cmds
}

// FindSlash resolves an interaction name path to a slash command.
func (c *Component) FindSlash(path []string) (*SlashCommand, error) {
	if len(path) == 0 {
		return nil, &NotFoundError{Path: path}
	}
	c.mu.RLock()
	entry, ok := c.slash[path[0]]
	c.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Path: path}
	}
	switch e := entry.(type) {
	case *SlashCommand:
		if len(path) == 1 {
			return e, nil
		}
	case *SlashGroup:
		return e.find(path[1:])
	}
	return nil, &NotFoundError{Path: path}
}

// FindMenu resolves a context-menu invocation.
func (c *Component) FindMenu(kind MenuKind, name string) (*MenuCommand, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cmd, ok := c.menus[menuKey{kind: kind, name: name}]
	return cmd, ok
}

// MatchMessage matches prefix-stripped message content against the
// component's message commands, longest name first.
func (c *Component) MatchMessage(content string) *MessageMatch {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := (*MessageMatch)(nil)
	bestLen := -1

	for _, group := range c.msgGroups {
		name, residual, ok := matchName(content, group.names)
		if !ok || len(name) <= bestLen {
			continue
		}
		best, bestLen = group.match(residual, name), len(name)
	}
	for _, cmd := range c.message {
		name, residual, ok := matchName(content, cmd.names)
		if !ok || len(name) <= bestLen {
			continue
		}
		best = &MessageMatch{Command: cmd, Residual: residual, FullName: name}
		bestLen = len(name)
	}
	return best
}

// Bind marks the component as owned by a client. Binding an already
// bound component fails.
func (c *Component) Bind() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		return registrationErrorf("component %q is already bound to a client", c.name)
	}
	c.bound = true
	return nil
}

// Unbind releases the component after draining in-flight invocations
// and running the close callback.
func (c *Component) Unbind(ctx context.Context) error {
	c.inflight.Wait()

	c.mu.Lock()
	c.bound = false
	fn := c.onClose
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nil
}

// TrackInvocation registers an in-flight invocation; the returned func
// must be called when it finishes.
func (c *Component) TrackInvocation() func() {
	c.inflight.Add(1)
	return c.inflight.Done
}
