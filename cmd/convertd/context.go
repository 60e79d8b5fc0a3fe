package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"convertd/internal/admission"
	"convertd/internal/artifacts"
	"convertd/internal/config"
	"convertd/internal/jobs"
	"convertd/internal/logging"
	"convertd/internal/orchestrator"
	"convertd/internal/status"
)

type commandContext struct {
	configFlag *string
	ownerFlag  *int64

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, ownerFlag *int64) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		ownerFlag:  ownerFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ownerID() int64 {
	if c.ownerFlag == nil {
		return 1
	}
	return *c.ownerFlag
}

// withOrchestrator builds the service stack against the local store and runs
// fn. CLI invocations talk to the database directly; queue membership is only
// meaningful inside the serve process.
func (c *commandContext) withOrchestrator(fn func(*orchestrator.Orchestrator) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger := logging.NewNop()
	store, err := jobs.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	orch := orchestrator.New(
		store,
		admission.New(logger),
		status.NewManager(store, logger),
		artifacts.NewStorage(logger),
		logger,
	)
	return fn(orch)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
