package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"tanjun/pkg/command"
	"tanjun/pkg/injector"
	"tanjun/pkg/limiter"
	"tanjun/pkg/logger"
)

// fakeContext is an in-memory invocation context for pipeline tests.
type fakeContext struct {
	mu        sync.Mutex
	user      string
	channel   string
	guild     string
	name      string
	responses []string
	responded bool
	deferred  bool
}

func newFakeContext() *fakeContext {
	return &fakeContext{user: "user-1", channel: "channel-1", guild: "guild-1"}
}

func (f *fakeContext) InvocationID() string { return "test-invocation" }

func (f *fakeContext) SetTriggeringName(name string) {
	f.mu.Lock()
	f.name = name
	f.mu.Unlock()
}

func (f *fakeContext) TriggeringName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

func (f *fakeContext) UserID() string    { return f.user }
func (f *fakeContext) ChannelID() string { return f.channel }
func (f *fakeContext) GuildID() string   { return f.guild }

func (f *fakeContext) Respond(_ context.Context, content string, _ bool) error {
	f.mu.Lock()
	f.responses = append(f.responses, content)
	f.responded = true
	f.mu.Unlock()
	return nil
}

func (f *fakeContext) Defer(_ context.Context, _ bool) error {
	f.mu.Lock()
	f.deferred = true
	f.mu.Unlock()
	return nil
}

func (f *fakeContext) Followup(ctx context.Context, content string, ephemeral bool) error {
	return f.Respond(ctx, content, ephemeral)
}

func (f *fakeContext) Edit(_ context.Context, content string) error {
	f.mu.Lock()
	if n := len(f.responses); n > 0 {
		f.responses[n-1] = content
	} else {
		f.responses = append(f.responses, content)
	}
	f.mu.Unlock()
	return nil
}

func (f *fakeContext) HasResponded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.responded
}

func (f *fakeContext) HasDeferred() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deferred
}

func (f *fakeContext) lastResponse() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return ""
	}
	return f.responses[len(f.responses)-1]
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := New(logger.Nop())
	c.SetAutoDefer(0)
	return c
}

func addComponent(t *testing.T, c *Client, comp *command.Component) {
	t.Helper()
	if err := c.AddComponent(comp); err != nil {
		t.Fatalf("Failed to add component: %v", err)
	}
}

func TestDispatchSlashBindsOptions(t *testing.T) {
	c := newTestClient(t)

	var got injector.Args
	cmd := command.NewSlashCommand("ping", "Ping the bot", func(_ context.Context, cctx command.Context, args injector.Args) error {
		got = args
		return cctx.Respond(context.Background(), "pong", false)
	})
	cmd.AddOption(command.StringOption("name", "Who to greet").AsRequired())

	comp := command.NewComponent("core")
	if err := comp.AddSlashCommand(cmd); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, comp)

	cctx := newFakeContext()
	err := c.DispatchSlash(context.Background(), cctx, []string{"ping"}, map[string]any{"name": "world"})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if got.String("name") != "world" {
		t.Errorf("Expected bound option, got %v", got)
	}
	if cctx.TriggeringName() != "ping" {
		t.Errorf("Unexpected triggering name %q", cctx.TriggeringName())
	}
	if cctx.lastResponse() != "pong" {
		t.Errorf("Unexpected response %q", cctx.lastResponse())
	}
}

func TestDispatchSlashUnknownPath(t *testing.T) {
	c := newTestClient(t)
	addComponent(t, c, command.NewComponent("core"))

	err := c.DispatchSlash(context.Background(), newFakeContext(), []string{"nope"}, nil)
	var notFound *command.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
}

func TestDispatchMessageGroupPath(t *testing.T) {
	c := newTestClient(t)

	executed := ""
	newExec := func(name string) command.ExecFunc {
		return func(context.Context, command.Context, injector.Args) error {
			executed = name
			return nil
		}
	}

	group := command.NewMessageGroup(newExec("groupy"), "groupy")
	tour := command.NewMessageGroup(newExec("tour"), "tour", "tour de france")
	if err := group.AddGroup(tour); err != nil {
		t.Fatal(err)
	}

	comp := command.NewComponent("core")
	if err := comp.AddMessageGroup(group); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, comp)

	cctx := newFakeContext()
	consumed, err := c.DispatchMessage(context.Background(), cctx, "!groupy tour de france")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !consumed {
		t.Fatal("Expected the message to be consumed")
	}
	if executed != "tour" {
		t.Errorf("Expected the aliased sub-group to run, got %q", executed)
	}
	if cctx.TriggeringName() != "groupy tour de france" {
		t.Errorf("Unexpected triggering name %q", cctx.TriggeringName())
	}
}

func TestDispatchMessageWithoutPrefix(t *testing.T) {
	c := newTestClient(t)
	addComponent(t, c, command.NewComponent("core"))

	consumed, err := c.DispatchMessage(context.Background(), newFakeContext(), "hello there")
	if err != nil || consumed {
		t.Fatalf("Expected no dispatch, got consumed=%v err=%v", consumed, err)
	}
}

func TestSoftCheckFailureKeepsSearching(t *testing.T) {
	c := newTestClient(t)

	executed := ""
	gated := command.NewMessageCommand(func(context.Context, command.Context, injector.Args) error {
		executed = "gated"
		return nil
	}, "run")
	gated.AddCheck(func(context.Context, command.Context) (bool, error) { return false, nil })

	open := command.NewMessageCommand(func(context.Context, command.Context, injector.Args) error {
		executed = "open"
		return nil
	}, "run")

	first := command.NewComponent("first")
	if err := first.AddMessageCommand(gated); err != nil {
		t.Fatal(err)
	}
	second := command.NewComponent("second")
	if err := second.AddMessageCommand(open); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, first)
	addComponent(t, c, second)

	consumed, err := c.DispatchMessage(context.Background(), newFakeContext(), "!run")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !consumed || executed != "open" {
		t.Errorf("Expected the later component to run, got consumed=%v executed=%q", consumed, executed)
	}
}

func TestCommandErrorProducesResponse(t *testing.T) {
	c := newTestClient(t)

	cmd := command.NewMessageCommand(func(context.Context, command.Context, injector.Args) error {
		return command.NewCommandError("you cannot do that")
	}, "deny")
	comp := command.NewComponent("core")
	if err := comp.AddMessageCommand(cmd); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, comp)

	cctx := newFakeContext()
	if _, err := c.DispatchMessage(context.Background(), cctx, "!deny"); err != nil {
		t.Fatalf("CommandError must not propagate: %v", err)
	}
	if cctx.lastResponse() != "you cannot do that" {
		t.Errorf("Unexpected response %q", cctx.lastResponse())
	}
}

func TestHaltIsSilent(t *testing.T) {
	c := newTestClient(t)

	cmd := command.NewMessageCommand(func(context.Context, command.Context, injector.Args) error {
		return command.ErrHalt
	}, "halt")
	comp := command.NewComponent("core")
	if err := comp.AddMessageCommand(cmd); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, comp)

	cctx := newFakeContext()
	if _, err := c.DispatchMessage(context.Background(), cctx, "!halt"); err != nil {
		t.Fatalf("Halt must not propagate: %v", err)
	}
	if len(cctx.responses) != 0 {
		t.Errorf("Halt must not respond, got %v", cctx.responses)
	}
}

func TestParserErrorRoutedToParserHooks(t *testing.T) {
	c := newTestClient(t)

	var seen *command.ParserError
	c.SetHooks(command.NewHooks().
		AddParserError(func(_ context.Context, _ command.Context, perr *command.ParserError) error {
			seen = perr
			return nil
		}).
		AddError(func(context.Context, command.Context, error) command.Vote {
			t.Error("Parser errors must not reach error hooks")
			return command.VoteAbstain
		}))

	cmd := command.NewMessageCommand(func(context.Context, command.Context, injector.Args) error {
		t.Error("Callback must not run on parse failure")
		return nil
	}, "greet")
	cmd.AddOption(command.StringOption("who", "Target").AsRequired())

	comp := command.NewComponent("core")
	if err := comp.AddMessageCommand(cmd); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, comp)

	if _, err := c.DispatchMessage(context.Background(), newFakeContext(), "!greet"); err != nil {
		t.Fatalf("Parser errors must never propagate: %v", err)
	}
	if seen == nil || seen.Parameter != "who" {
		t.Errorf("Expected parser hook to see the failure, got %+v", seen)
	}
}

func TestParserErrorWithoutHooksResponds(t *testing.T) {
	c := newTestClient(t)

	cmd := command.NewMessageCommand(func(context.Context, command.Context, injector.Args) error {
		return nil
	}, "greet")
	cmd.AddOption(command.StringOption("who", "Target").AsRequired())

	comp := command.NewComponent("core")
	if err := comp.AddMessageCommand(cmd); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, comp)

	cctx := newFakeContext()
	if _, err := c.DispatchMessage(context.Background(), cctx, "!greet"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(cctx.lastResponse(), "who") {
		t.Errorf("Expected a usage response, got %q", cctx.lastResponse())
	}
}

func TestErrorHookVoting(t *testing.T) {
	boom := errors.New("boom")
	newClient := func(votes ...command.Vote) *Client {
		c := New(logger.Nop())
		c.SetAutoDefer(0)
		hooks := command.NewHooks()
		for _, v := range votes {
			vote := v
			hooks.AddError(func(context.Context, command.Context, error) command.Vote { return vote })
		}
		c.SetHooks(hooks)

		cmd := command.NewMessageCommand(func(context.Context, command.Context, injector.Args) error {
			return boom
		}, "explode")
		comp := command.NewComponent("core")
		if err := comp.AddMessageCommand(cmd); err != nil {
			t.Fatal(err)
		}
		if err := c.AddComponent(comp); err != nil {
			t.Fatal(err)
		}
		return c
	}

	// A positive net suppress vote swallows the error.
	c := newClient(command.VoteSuppress, command.VoteAbstain)
	if _, err := c.DispatchMessage(context.Background(), newFakeContext(), "!explode"); err != nil {
		t.Errorf("Expected suppression, got %v", err)
	}

	// A tie re-raises.
	c = newClient(command.VoteSuppress, command.VoteReraise)
	if _, err := c.DispatchMessage(context.Background(), newFakeContext(), "!explode"); !errors.Is(err, boom) {
		t.Errorf("Expected the error to propagate on a tie, got %v", err)
	}

	// No hooks at all re-raises.
	c = newClient()
	if _, err := c.DispatchMessage(context.Background(), newFakeContext(), "!explode"); !errors.Is(err, boom) {
		t.Errorf("Expected the error to propagate without hooks, got %v", err)
	}
}

type greeting struct{ text string }

func TestInjectedParams(t *testing.T) {
	c := newTestClient(t)
	injector.RegisterValueOf(c.Injector(), &greeting{text: "hello"})

	var gotGreeting *greeting
	var gotCtx command.Context
	cmd := command.NewMessageCommand(func(_ context.Context, _ command.Context, args injector.Args) error {
		gotGreeting, _ = args["greeting"].(*greeting)
		gotCtx, _ = args["cctx"].(command.Context)
		return nil
	}, "hello")
	cmd.AddParam(injector.Type[*greeting]("greeting"))
	cmd.AddParam(injector.Type[command.Context]("cctx"))

	comp := command.NewComponent("core")
	if err := comp.AddMessageCommand(cmd); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, comp)

	cctx := newFakeContext()
	if _, err := c.DispatchMessage(context.Background(), cctx, "!hello"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if gotGreeting == nil || gotGreeting.text != "hello" {
		t.Errorf("Expected injected value, got %+v", gotGreeting)
	}
	if gotCtx != command.Context(cctx) {
		t.Error("Expected the invocation context to be injected as a special")
	}
}

func TestAutoDeferFiresForSlowCallbacks(t *testing.T) {
	c := New(logger.Nop())
	c.SetAutoDefer(10 * time.Millisecond)

	release := make(chan struct{})
	cmd := command.NewMessageCommand(func(context.Context, command.Context, injector.Args) error {
		<-release
		return nil
	}, "slow")
	comp := command.NewComponent("core")
	if err := comp.AddMessageCommand(cmd); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, comp)

	cctx := newFakeContext()
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.DispatchMessage(context.Background(), cctx, "!slow")
	}()

	deadline := time.After(time.Second)
	for !cctx.HasDeferred() {
		select {
		case <-deadline:
			t.Fatal("Expected auto-defer to fire")
		case <-time.After(time.Millisecond):
		}
	}
	close(release)
	<-done
}

func TestAutoDeferCancelledByFastResponse(t *testing.T) {
	c := New(logger.Nop())
	c.SetAutoDefer(50 * time.Millisecond)

	cmd := command.NewMessageCommand(func(ctx context.Context, cctx command.Context, _ injector.Args) error {
		return cctx.Respond(ctx, "done", false)
	}, "fast")
	comp := command.NewComponent("core")
	if err := comp.AddMessageCommand(cmd); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, comp)

	cctx := newFakeContext()
	if _, err := c.DispatchMessage(context.Background(), cctx, "!fast"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)
	if cctx.HasDeferred() {
		t.Error("Responding must cancel the auto-defer timer")
	}
}

func TestCooldownProducesResponse(t *testing.T) {
	c := newTestClient(t)
	cooldowns := limiter.NewCooldownManager(limiter.NewLocalCooldownStore())
	cooldowns.SetBucket("ping", limiter.ResourceUser, 1, time.Minute)
	c.SetCooldowns(cooldowns)

	calls := 0
	cmd := command.NewMessageCommand(func(context.Context, command.Context, injector.Args) error {
		calls++
		return nil
	}, "ping")
	cmd.SetCooldownBucket("ping")

	comp := command.NewComponent("core")
	if err := comp.AddMessageCommand(cmd); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, comp)

	if _, err := c.DispatchMessage(context.Background(), newFakeContext(), "!ping"); err != nil {
		t.Fatal(err)
	}
	cctx := newFakeContext()
	if _, err := c.DispatchMessage(context.Background(), cctx, "!ping"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("Expected the second call to be limited, got %d calls", calls)
	}
	if !strings.Contains(cctx.lastResponse(), "cooldown") {
		t.Errorf("Expected a cooldown response, got %q", cctx.lastResponse())
	}
}

func TestConcurrencyProducesResponse(t *testing.T) {
	c := newTestClient(t)
	concurrency := limiter.NewConcurrencyLimiter(limiter.NewLocalConcurrencyStore())
	concurrency.SetBucket("work", limiter.ResourceUser, 1)
	c.SetConcurrency(concurrency)

	release := make(chan struct{})
	started := make(chan struct{})
	cmd := command.NewMessageCommand(func(context.Context, command.Context, injector.Args) error {
		close(started)
		<-release
		return nil
	}, "work")
	cmd.SetConcurrencyBucket("work")

	comp := command.NewComponent("core")
	if err := comp.AddMessageCommand(cmd); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, comp)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.DispatchMessage(context.Background(), newFakeContext(), "!work")
	}()
	<-started

	cctx := newFakeContext()
	if _, err := c.DispatchMessage(context.Background(), cctx, "!work"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(cctx.lastResponse(), "already running") {
		t.Errorf("Expected a concurrency response, got %q", cctx.lastResponse())
	}

	close(release)
	<-done
}

func TestRemoveComponentDrainsInFlight(t *testing.T) {
	c := newTestClient(t)

	release := make(chan struct{})
	started := make(chan struct{})
	cmd := command.NewMessageCommand(func(context.Context, command.Context, injector.Args) error {
		close(started)
		<-release
		return nil
	}, "slow")

	closed := false
	comp := command.NewComponent("core")
	comp.SetOnClose(func(context.Context) error {
		closed = true
		return nil
	})
	if err := comp.AddMessageCommand(cmd); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, comp)

	go c.DispatchMessage(context.Background(), newFakeContext(), "!slow")
	<-started

	removed := make(chan struct{})
	go func() {
		defer close(removed)
		if err := c.RemoveComponent(context.Background(), "core"); err != nil {
			t.Errorf("Remove failed: %v", err)
		}
	}()

	select {
	case <-removed:
		t.Fatal("Removal must wait for in-flight invocations")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-removed:
	case <-time.After(time.Second):
		t.Fatal("Removal did not finish after the invocation drained")
	}
	if !closed {
		t.Error("Expected the close callback to run")
	}

	if consumed, _ := c.DispatchMessage(context.Background(), newFakeContext(), "!slow"); consumed {
		t.Error("Removed component must not receive dispatches")
	}
}

func TestDispatchMenu(t *testing.T) {
	c := newTestClient(t)

	var target string
	menu := command.NewMenuCommand(command.MenuUser, "Report User", func(_ context.Context, _ command.Context, args injector.Args) error {
		target = args.String("target")
		return nil
	})
	comp := command.NewComponent("core")
	if err := comp.AddMenuCommand(menu); err != nil {
		t.Fatal(err)
	}
	addComponent(t, c, comp)

	if err := c.DispatchMenu(context.Background(), newFakeContext(), command.MenuUser, "Report User", "42"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if target != "42" {
		t.Errorf("Expected target binding, got %q", target)
	}
}

func TestLifecycleCallbacks(t *testing.T) {
	c := newTestClient(t)

	var events []LifecycleEvent
	for _, ev := range []LifecycleEvent{EventStarting, EventStarted, EventClosing, EventClosed} {
		event := ev
		c.AddClientCallback(event, "record", func(context.Context) error {
			events = append(events, event)
			return nil
		})
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	want := []LifecycleEvent{EventStarting, EventStarted, EventClosing, EventClosed}
	if len(events) != len(want) {
		t.Fatalf("Expected %d events, got %v", len(want), events)
	}
	for i, ev := range want {
		if events[i] != ev {
			t.Errorf("Event %d: expected %q, got %q", i, ev, events[i])
		}
	}
}

func TestStripPrefix(t *testing.T) {
	c := newTestClient(t)
	c.SetPrefixes("!", "?")
	c.SetMentionPrefix(true)
	c.botUserID = "99"

	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"!ping", "ping", true},
		{"?ping", "ping", true},
		{"<@99> ping", "ping", true},
		{"<@!99> ping", "ping", true},
		{"ping", "", false},
		{"<@100> ping", "", false},
	}
	for _, tc := range cases {
		out, ok := c.StripPrefix(tc.in)
		if out != tc.out || ok != tc.ok {
			t.Errorf("StripPrefix(%q) = %q,%v; expected %q,%v", tc.in, out, ok, tc.out, tc.ok)
		}
	}
}

func TestTopRoleIDUsesRolePositions(t *testing.T) {
	session := &discordgo.Session{State: discordgo.NewState()}
	err := session.State.GuildAdd(&discordgo.Guild{
		ID: "g1",
		Roles: []*discordgo.Role{
			{ID: "everyone", Position: 0},
			{ID: "mods", Position: 7},
			{ID: "members", Position: 2},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Member role slices carry no hierarchy order; the highest position
	// wins regardless of slice order.
	cctx := NewMessageContext(session, &discordgo.Message{
		GuildID: "g1",
		Member:  &discordgo.Member{Roles: []string{"members", "mods", "everyone"}},
	})
	if got := cctx.TopRoleID(); got != "mods" {
		t.Errorf("Expected highest-positioned role, got %q", got)
	}

	// Unresolvable roles yield an empty top role, so limiter keys fall
	// back to the guild.
	unknown := NewMessageContext(session, &discordgo.Message{
		GuildID: "g1",
		Member:  &discordgo.Member{Roles: []string{"deleted-role"}},
	})
	if got := unknown.TopRoleID(); got != "" {
		t.Errorf("Expected empty top role for unresolvable roles, got %q", got)
	}

	dm := NewMessageContext(session, &discordgo.Message{
		Member: &discordgo.Member{Roles: []string{"members"}},
	})
	if got := dm.TopRoleID(); got != "" {
		t.Errorf("Expected empty top role outside a guild, got %q", got)
	}
}
