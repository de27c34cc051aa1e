// Package client owns the dispatch side of the framework: it routes
// gateway events to registered components, runs the execution pipeline
// (checks, injection, hooks, limiters) and manages client lifecycle.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"tanjun/pkg/command"
	"tanjun/pkg/config"
	"tanjun/pkg/injector"
	"tanjun/pkg/limiter"
	"tanjun/pkg/locales"
	"tanjun/pkg/logger"
	"tanjun/pkg/schedule"
)

// LifecycleEvent identifies a point in the client lifecycle that named
// callbacks can attach to.
type LifecycleEvent string

const (
	EventStarting LifecycleEvent = "starting"
	EventStarted  LifecycleEvent = "started"
	EventClosing  LifecycleEvent = "closing"
	EventClosed   LifecycleEvent = "closed"
)

// LifecycleCallback runs at a lifecycle event.
type LifecycleCallback func(ctx context.Context) error

// Client owns components, global checks and hooks, the dependency
// registry and the limiter bindings. One client serves one gateway
// session.
type Client struct {
	log       *logger.Logger
	session   *discordgo.Session
	botUserID string

	mu         sync.RWMutex
	components map[string]*command.Component
	order      []string

	checks []command.Check
	hooks  *command.Hooks

	registry    *injector.Registry
	cooldowns   *limiter.CooldownManager
	concurrency *limiter.ConcurrencyLimiter
	runner      *schedule.Runner
	locales     *locales.Store

	prefixes         []string
	mentionPrefix    bool
	autoDefer        time.Duration
	defaultEphemeral bool
	declareGuildID   string

	callbacks map[LifecycleEvent]map[string]LifecycleCallback

	started bool
}

// New creates a client. The dependency registry is created eagerly so
// setup code can register providers before any component is added.
func New(log *logger.Logger) *Client {
	reg := injector.NewRegistry()
	c := &Client{
		log:        log,
		components: make(map[string]*command.Component),
		registry:   reg,
		runner:     schedule.NewRunner(log, reg),
		callbacks:  make(map[LifecycleEvent]map[string]LifecycleCallback),
		prefixes:   []string{"!"},
		autoDefer:  2500 * time.Millisecond,
	}
	// The client itself is injectable.
	injector.RegisterValueOf(reg, c)
	return c
}

// FromConfig creates a client configured from the loaded configuration.
func FromConfig(log *logger.Logger, cfg *config.Config, cooldowns *limiter.CooldownManager, concurrency *limiter.ConcurrencyLimiter) *Client {
	c := New(log)
	c.SetPrefixes(cfg.Client.Prefixes...)
	c.SetMentionPrefix(cfg.Client.MentionPrefix)
	c.SetAutoDefer(cfg.Client.AutoDefer())
	c.SetDefaultEphemeral(cfg.Client.DefaultEphemeral)
	c.declareGuildID = cfg.Client.DeclareGuildID
	c.SetCooldowns(cooldowns)
	c.SetConcurrency(concurrency)

	store := locales.NewStore(cfg.Locales.Default)
	if cfg.Locales.Dir != "" {
		if err := store.LoadDir(cfg.Locales.Dir); err != nil {
			log.Warn("Failed to load locales", zap.Error(err))
		}
	}
	c.SetLocales(store)
	return c
}

// Injector returns the dependency registry.
func (c *Client) Injector() *injector.Registry { return c.registry }

// Locales returns the localisation store, or nil.
func (c *Client) Locales() *locales.Store { return c.locales }

// SetLocales attaches the localisation store.
func (c *Client) SetLocales(s *locales.Store) *Client {
	c.locales = s
	injector.RegisterValueOf(c.registry, s)
	return c
}

// SetPrefixes sets the message command prefixes.
func (c *Client) SetPrefixes(prefixes ...string) *Client {
	c.prefixes = prefixes
	return c
}

// SetMentionPrefix also accepts a leading bot mention as prefix.
func (c *Client) SetMentionPrefix(v bool) *Client {
	c.mentionPrefix = v
	return c
}

// SetAutoDefer sets the auto-deferral timeout; 0 disables it.
func (c *Client) SetAutoDefer(d time.Duration) *Client {
	c.autoDefer = d
	return c
}

// SetDefaultEphemeral sets the client-level ephemeral default.
func (c *Client) SetDefaultEphemeral(v bool) *Client {
	c.defaultEphemeral = v
	return c
}

// SetCooldowns binds the cooldown manager; a client has at most one.
func (c *Client) SetCooldowns(m *limiter.CooldownManager) *Client {
	c.cooldowns = m
	if m != nil {
		injector.RegisterValueOf(c.registry, m)
	}
	return c
}

// SetConcurrency binds the concurrency limiter; a client has at most
// one.
func (c *Client) SetConcurrency(l *limiter.ConcurrencyLimiter) *Client {
	c.concurrency = l
	if l != nil {
		injector.RegisterValueOf(c.registry, l)
	}
	return c
}

// AddCheck appends a client-level check applied to every command.
func (c *Client) AddCheck(fn command.Check) *Client {
	c.checks = append(c.checks, fn)
	return c
}

// SetHooks attaches the client-level hook set.
func (c *Client) SetHooks(h *command.Hooks) *Client {
	c.hooks = h
	return c
}

// AddComponent registers a component. Component names are unique per
// client and a component can only be owned by one client.
func (c *Client) AddComponent(comp *command.Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.components[comp.Name()]; exists {
		return fmt.Errorf("component %q already added", comp.Name())
	}
	if err := comp.Bind(); err != nil {
		return err
	}

	for _, s := range comp.Schedules() {
		if err := c.runner.Add(s); err != nil {
			comp.Unbind(context.Background())
			return err
		}
	}

	c.components[comp.Name()] = comp
	c.order = append(c.order, comp.Name())
	c.log.Info("Component added", zap.String("component", comp.Name()))
	return nil
}

// RemoveComponent detaches a component, waiting for its in-flight
// invocations to finish before its close callback runs.
func (c *Client) RemoveComponent(ctx context.Context, name string) error {
	c.mu.Lock()
	comp, ok := c.components[name]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("component %q is not registered", name)
	}
	delete(c.components, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	for _, s := range comp.Schedules() {
		c.runner.Remove(s.Name())
	}

	// Unbind drains in-flight invocations before teardown.
	if err := comp.Unbind(ctx); err != nil {
		return err
	}
	c.log.Info("Component removed", zap.String("component", name))
	return nil
}

// Component returns a registered component by name.
func (c *Client) Component(name string) (*command.Component, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.components[name]
	return comp, ok
}

// Components returns the registered components in insertion order.
func (c *Client) Components() []*command.Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*command.Component, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.components[name])
	}
	return out
}

// AddClientCallback registers a named lifecycle callback. Re-using a
// name at the same event replaces the previous callback.
func (c *Client) AddClientCallback(event LifecycleEvent, name string, fn LifecycleCallback) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.callbacks[event] == nil {
		c.callbacks[event] = make(map[string]LifecycleCallback)
	}
	c.callbacks[event][name] = fn
	return c
}

// RemoveClientCallback drops a named lifecycle callback.
func (c *Client) RemoveClientCallback(event LifecycleEvent, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.callbacks[event], name)
}

func (c *Client) runCallbacks(ctx context.Context, event LifecycleEvent) {
	c.mu.RLock()
	callbacks := make(map[string]LifecycleCallback, len(c.callbacks[event]))
	for name, fn := range c.callbacks[event] {
		callbacks[name] = fn
	}
	c.mu.RUnlock()

	for name, fn := range callbacks {
		if err := fn(ctx); err != nil {
			c.log.Error("Lifecycle callback failed",
				zap.String("event", string(event)),
				zap.String("callback", name),
				zap.Error(err))
		}
	}
}

// EmitEvent dispatches a named gateway event to component listeners.
func (c *Client) EmitEvent(ctx context.Context, name string, event any) {
	for _, comp := range c.Components() {
		for _, listener := range comp.Listeners(name) {
			if err := listener(ctx, event); err != nil {
				c.log.Error("Listener failed",
					zap.String("event", name),
					zap.String("component", comp.Name()),
					zap.Error(err))
			}
		}
	}
}
