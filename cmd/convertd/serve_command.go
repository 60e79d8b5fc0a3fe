package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"convertd/internal/admission"
	"convertd/internal/artifacts"
	"convertd/internal/jobs"
	"convertd/internal/logging"
	"convertd/internal/monitor"
	"convertd/internal/orchestrator"
	"convertd/internal/status"
)

func newServeCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion job daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			lockPath := filepath.Join(cfg.Paths.LogDir, "convertd.lock")
			lock := flock.New(lockPath)
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return errors.New("another convertd instance is already running")
			}
			defer lock.Unlock() //nolint:errcheck

			if err := artifacts.CheckDir(cfg.Paths.IncomingDir); err != nil {
				return fmt.Errorf("incoming directory: %w", err)
			}
			if err := artifacts.CheckDir(cfg.Paths.OutputDir); err != nil {
				return fmt.Errorf("output directory: %w", err)
			}

			store, err := jobs.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer store.Close()

			queue := admission.New(logger)
			manager := status.NewManager(store, logger)
			orch := orchestrator.New(store, queue, manager, artifacts.NewStorage(logger), logger)

			restored, err := orch.RestoreQueue(ctx)
			if err != nil {
				return fmt.Errorf("restore queue: %w", err)
			}

			mon := monitor.New(cfg.Monitor, store, manager, logger)
			mon.Start(ctx)
			defer mon.Stop()

			logger.Info("convertd started",
				logging.String("lock", lockPath),
				logging.Int("restored_jobs", restored))

			<-ctx.Done()
			logger.Info("convertd shutting down")
			return nil
		},
	}
}
