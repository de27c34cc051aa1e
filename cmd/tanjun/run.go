package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"tanjun/pkg/client"
	"tanjun/pkg/command"
	"tanjun/pkg/config"
	"tanjun/pkg/injector"
	"tanjun/pkg/limiter"
	"tanjun/pkg/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot in the foreground",
	Long: `Run the bot: connect to the Discord gateway, declare the registered
application commands and dispatch events until interrupted.

Examples:
  # Run with the default config search paths
  tanjun run

  # Run with an explicit config file
  tanjun run -c /etc/tanjun/config.yaml`,
	Run: runBot,
}

func runBot(cmd *cobra.Command, args []string) {
	if path, err := config.EnsureDefaultFile(); err == nil && path != "" {
		fmt.Printf("Created default config at %s\n", path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	app := fx.New(
		config.Module,
		limiter.Module,
		client.Module,

		fx.Invoke(registerBuiltins),
		fx.Invoke(watchConfig),
		fx.NopLogger,
	)

	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting bot: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()

	if err := app.Stop(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping bot: %v\n", err)
	}
}

// registerBuiltins adds the built-in diagnostics component.
func registerBuiltins(c *client.Client) error {
	comp := command.NewComponent("builtin")

	ping := command.NewSlashCommand("ping", "Check that the bot is responsive",
		func(ctx context.Context, cctx command.Context, _ injector.Args) error {
			return cctx.Respond(ctx, "Pong!", false)
		})
	ping.SetCooldownBucket(limiter.DefaultBucket)
	if err := comp.AddSlashCommand(ping); err != nil {
		return err
	}

	pingMsg := command.NewMessageCommand(
		func(ctx context.Context, cctx command.Context, _ injector.Args) error {
			return cctx.Respond(ctx, "Pong!", false)
		}, "ping")
	pingMsg.SetCooldownBucket(limiter.DefaultBucket)
	if err := comp.AddMessageCommand(pingMsg); err != nil {
		return err
	}

	return c.AddComponent(comp)
}

// watchConfig re-applies limiter buckets when the config file changes.
func watchConfig(log *logger.Logger, loader *config.Loader, cfg *config.Config, cooldowns *limiter.CooldownManager, concurrency *limiter.ConcurrencyLimiter) error {
	watcher := config.NewWatcher(loader, cfg)
	watcher.AddHandler(func(updated *config.Config) error {
		limiter.ApplyBuckets(cooldowns, concurrency, &updated.Limiter)
		log.Info("Limiter buckets reloaded")
		return nil
	})
	if err := watcher.Start(); err != nil {
		log.Warn("Config watcher unavailable", zap.Error(err))
	}
	return nil
}
