package client

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"tanjun/pkg/command"
	"tanjun/pkg/injector"
	"tanjun/pkg/limiter"
)

// triggerNamer is implemented by contexts whose triggering name is only
// known once dispatch resolves the command.
type triggerNamer interface {
	SetTriggeringName(name string)
}

// StripPrefix removes a recognised command prefix from message content.
// It reports false when no configured prefix (or bot mention, when
// enabled) matches.
func (c *Client) StripPrefix(content string) (string, bool) {
	for _, prefix := range c.prefixes {
		if strings.HasPrefix(content, prefix) {
			return strings.TrimLeft(content[len(prefix):], " "), true
		}
	}
	if c.mentionPrefix && c.botUserID != "" {
		for _, mention := range []string{"<@" + c.botUserID + ">", "<@!" + c.botUserID + ">"} {
			if strings.HasPrefix(content, mention) {
				return strings.TrimLeft(content[len(mention):], " "), true
			}
		}
	}
	return "", false
}

// DispatchMessage routes raw message content to the matching message
// command. It reports whether any command consumed the event.
func (c *Client) DispatchMessage(ctx context.Context, cctx command.Context, content string) (bool, error) {
	stripped, ok := c.StripPrefix(content)
	if !ok || stripped == "" {
		return false, nil
	}

	for _, comp := range c.Components() {
		match := comp.MatchMessage(stripped)
		if match == nil {
			continue
		}

		exec := match.Executable()
		if named, ok := cctx.(triggerNamer); ok {
			named.SetTriggeringName(match.FullName)
		}

		passed, err := c.runChecks(ctx, cctx, c.checks, comp.Checks(), messageParentChecks(match.Command), exec.Checks())
		if err != nil {
			return true, c.handleError(ctx, cctx, exec, err)
		}
		if !passed {
			// Soft check failure: this command is treated as not
			// matched and the search continues.
			continue
		}

		return true, c.invoke(ctx, cctx, comp, exec, func(ctx context.Context) (injector.Args, error) {
			return match.Command.ParseArgs(ctx, cctx, match.Residual)
		})
	}
	return false, nil
}

// DispatchSlash routes an interaction name path to the matching slash
// command.
func (c *Client) DispatchSlash(ctx context.Context, cctx command.Context, path []string, values map[string]any) error {
	for _, comp := range c.Components() {
		cmd, err := comp.FindSlash(path)
		if err != nil {
			continue
		}

		if named, ok := cctx.(triggerNamer); ok {
			named.SetTriggeringName(cmd.FullName())
		}

		chains := [][]command.Check{c.checks, comp.Checks()}
		for _, group := range cmd.GroupChain() {
			chains = append(chains, group.Checks())
		}
		chains = append(chains, cmd.Checks())

		passed, err := c.runChecks(ctx, cctx, chains...)
		if err != nil {
			return c.handleError(ctx, cctx, cmd, err)
		}
		if !passed {
			continue
		}

		return c.invoke(ctx, cctx, comp, cmd, func(ctx context.Context) (injector.Args, error) {
			return cmd.BindOptions(ctx, cctx, values)
		})
	}
	return &command.NotFoundError{Path: path}
}

// DispatchMenu routes a context-menu invocation. The target ID is bound
// into the args under "target".
func (c *Client) DispatchMenu(ctx context.Context, cctx command.Context, kind command.MenuKind, name, targetID string) error {
	for _, comp := range c.Components() {
		cmd, ok := comp.FindMenu(kind, name)
		if !ok {
			continue
		}

		if named, ok := cctx.(triggerNamer); ok {
			named.SetTriggeringName(cmd.Name())
		}

		passed, err := c.runChecks(ctx, cctx, c.checks, comp.Checks(), cmd.Checks())
		if err != nil {
			return c.handleError(ctx, cctx, cmd, err)
		}
		if !passed {
			continue
		}

		return c.invoke(ctx, cctx, comp, cmd, func(context.Context) (injector.Args, error) {
			return injector.Args{"target": targetID}, nil
		})
	}
	return &command.NotFoundError{Path: []string{name}}
}

// messageParentChecks collects the checks of a message command's group
// ancestry, outermost first.
func messageParentChecks(cmd *command.MessageCommand) []command.Check {
	var checks []command.Check
	for g := cmd.Parent(); g != nil; g = g.Parent() {
		checks = append(g.Checks(), checks...)
	}
	return checks
}

// runChecks runs the check chains in order. A false result without an
// error is a soft failure; an error aborts the invocation.
func (c *Client) runChecks(ctx context.Context, cctx command.Context, chains ...[]command.Check) (bool, error) {
	for _, chain := range chains {
		for _, check := range chain {
			ok, err := check(ctx, cctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

// invoke runs the matched command through the execution pipeline:
// limiters, argument resolution, deferral, hooks, the callback and
// error classification. Limiter slots are released on every path.
func (c *Client) invoke(ctx context.Context, cctx command.Context, comp *command.Component, exec command.Executable, buildArgs func(context.Context) (injector.Args, error)) error {
	done := comp.TrackInvocation()
	defer done()

	log := c.log.With(
		zap.String("invocation_id", cctx.InvocationID()),
		zap.String("command", cctx.TriggeringName()))

	ephemeral := c.effectiveEphemeral(exec, comp)

	// Concurrency first so a blocked invocation never burns a cooldown
	// slot.
	if bucket := exec.ConcurrencyBucket(); c.concurrency != nil && bucket != "" {
		release, err := c.concurrency.TryAcquire(ctx, cctx, bucket)
		if err != nil {
			return c.respondLimited(ctx, cctx, log, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Error("Failed to release concurrency slot", zap.Error(err))
			}
		}()
	}
	if bucket := exec.CooldownBucket(); c.cooldowns != nil && bucket != "" {
		release, err := c.cooldowns.TryAcquire(ctx, cctx, bucket)
		if err != nil {
			return c.respondLimited(ctx, cctx, log, err)
		}
		defer func() {
			// The cooldown window only starts once the call finishes.
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Error("Failed to release cooldown slot", zap.Error(err))
			}
		}()
	}

	args, err := buildArgs(ctx)
	if err != nil {
		return c.handleError(ctx, cctx, exec, err)
	}

	res := injector.NewResolver(c.registry)
	injector.SetSpecialOf[command.Context](res, cctx)
	injector.SetSpecialOf[command.Executable](res, exec)
	injected, err := res.ResolveParams(ctx, exec.Name(), exec.Params())
	if err != nil {
		return c.handleError(ctx, cctx, exec, err)
	}
	for name, value := range injected {
		if _, taken := args[name]; !taken {
			args[name] = value
		}
	}

	if exec.AlwaysDefer() {
		if err := cctx.Defer(ctx, ephemeral); err != nil {
			log.Warn("Failed to defer", zap.Error(err))
		}
	} else if c.autoDefer > 0 {
		// The timer races the first response; completing the callback
		// cancels it.
		timer := time.AfterFunc(c.autoDefer, func() {
			if cctx.HasResponded() || cctx.HasDeferred() {
				return
			}
			if err := cctx.Defer(context.WithoutCancel(ctx), ephemeral); err != nil {
				log.Warn("Auto-defer failed", zap.Error(err))
			}
		})
		defer timer.Stop()
	}

	for _, hooks := range []*command.Hooks{c.hooks, comp.Hooks(), exec.Hooks()} {
		if err := hooks.RunPre(ctx, cctx, args); err != nil {
			return c.handleError(ctx, cctx, exec, err)
		}
	}

	execErr := exec.Execute(ctx, cctx, args)
	if execErr == nil {
		for _, hooks := range []*command.Hooks{exec.Hooks(), comp.Hooks(), c.hooks} {
			if err := hooks.RunSuccess(ctx, cctx); err != nil {
				log.Error("Success hook failed", zap.Error(err))
			}
		}
		return nil
	}
	return c.handleError(ctx, cctx, exec, execErr)
}

// respondLimited answers a limiter rejection with a user-facing message.
func (c *Client) respondLimited(ctx context.Context, cctx command.Context, log *zap.Logger, err error) error {
	var cooldownErr *limiter.CooldownError
	if errors.As(err, &cooldownErr) {
		msg := "This command is on cooldown, try again later."
		if !cooldownErr.WaitUntil.IsZero() {
			if wait := time.Until(cooldownErr.WaitUntil).Round(time.Second); wait > 0 {
				msg = "This command is on cooldown, try again in " + wait.String() + "."
			}
		}
		if respErr := cctx.Respond(ctx, msg, true); respErr != nil {
			log.Warn("Failed to send cooldown response", zap.Error(respErr))
		}
		return nil
	}

	var concurrencyErr *limiter.ConcurrencyError
	if errors.As(err, &concurrencyErr) {
		if respErr := cctx.Respond(ctx, "This command is already running, wait for it to finish.", true); respErr != nil {
			log.Warn("Failed to send concurrency response", zap.Error(respErr))
		}
		return nil
	}

	// Backend failure rather than a limiter rejection.
	return err
}

// handleError classifies an execution error.
//
//   - ErrHalt ends the invocation silently.
//   - *CommandError always produces its user-facing response.
//   - *ParserError is routed to parser hooks only; without a hook a
//     plain usage response is sent. It is never re-raised.
//   - Anything else is put to the error hooks of command, component and
//     client; a positive net suppress vote swallows it, otherwise it
//     propagates to the dispatch boundary.
func (c *Client) handleError(ctx context.Context, cctx command.Context, exec command.Executable, execErr error) error {
	log := c.log.With(
		zap.String("invocation_id", cctx.InvocationID()),
		zap.String("command", cctx.TriggeringName()))

	if errors.Is(execErr, command.ErrHalt) {
		log.Debug("Execution halted")
		return nil
	}

	var cmdErr *command.CommandError
	if errors.As(execErr, &cmdErr) {
		if err := cctx.Respond(ctx, cmdErr.Message, cmdErr.Ephemeral); err != nil {
			log.Warn("Failed to send error response", zap.Error(err))
		}
		return nil
	}

	var comp *command.Component
	if exec != nil {
		comp = exec.Component()
	}
	hookSets := make([]*command.Hooks, 0, 3)
	if exec != nil {
		hookSets = append(hookSets, exec.Hooks())
	}
	if comp != nil {
		hookSets = append(hookSets, comp.Hooks())
	}
	hookSets = append(hookSets, c.hooks)

	var parserErr *command.ParserError
	if errors.As(execErr, &parserErr) {
		handled := false
		for _, hooks := range hookSets {
			if !hooks.HasParserError() {
				continue
			}
			handled = true
			if hookErr := hooks.RunParserError(ctx, cctx, parserErr); hookErr != nil {
				log.Error("Parser-error hook failed", zap.Error(hookErr))
			}
		}
		if !handled {
			if err := cctx.Respond(ctx, parserErr.Message, true); err != nil {
				log.Warn("Failed to send parser-error response", zap.Error(err))
			}
		}
		return nil
	}

	level := 0
	for _, hooks := range hookSets {
		level += hooks.ErrorLevel(ctx, cctx, execErr)
	}
	if level > 0 {
		log.Debug("Execution error suppressed by hooks", zap.Error(execErr))
		return nil
	}
	return execErr
}

// effectiveEphemeral resolves the ephemeral default for an invocation:
// command, then component, then client.
func (c *Client) effectiveEphemeral(exec command.Executable, comp *command.Component) bool {
	if v, set := exec.EphemeralDefault(); set {
		return v
	}
	if comp != nil {
		if v, set := comp.EphemeralDefault(); set {
			return v
		}
	}
	return c.defaultEphemeral
}
