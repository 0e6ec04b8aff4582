package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/slipway/internal/hookbridge"
)

// serveCmd runs the hook intake server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the push-hook intake and run pipelines on demand",
	Long: `Starts an HTTP server accepting forge push notifications on /hooks.
Each accepted hook starts a pipeline run for its trigger. The bind address
comes from SLIPWAY_HOOK_HOST and SLIPWAY_HOOK_PORT.`,
	RunE: serveHooks,
}

func serveHooks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	processor := hookbridge.ProcessorFunc(func(hook hookbridge.Hook) error {
		trig, err := hook.Trigger()
		if err != nil {
			return err
		}
		logger.Info("hook accepted",
			zap.String("delivery", hook.DeliveryID),
			zap.String("ref", trig.Ref))
		go func() {
			if err := executePipeline(ctx, cfg, trig, false); err != nil {
				logger.Error("pipeline run failed",
					zap.String("delivery", hook.DeliveryID), zap.Error(err))
			}
		}()
		return nil
	})

	srv := hookbridge.NewServer(hookbridge.DefaultSettings(),
		hookbridge.WithProcessor(processor),
		hookbridge.WithLogger(logger))
	if err := srv.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return srv.Shutdown(context.Background())
}
