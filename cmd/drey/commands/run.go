package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/drey/internal/advisor"
	"github.com/dyluth/drey/internal/agent"
	"github.com/dyluth/drey/internal/arbitrator"
	"github.com/dyluth/drey/internal/config"
	"github.com/dyluth/drey/internal/hiring"
	"github.com/dyluth/drey/internal/payment"
	"github.com/dyluth/drey/internal/printer"
	"github.com/dyluth/drey/internal/worker"
	"github.com/dyluth/drey/pkg/midden"
	"github.com/spf13/cobra"
)

var (
	runConfigPath string
	runScripts    []string
)

var runCmd = &cobra.Command{
	Use:   "run ROLE",
	Short: "Run one agent process",
	Long: `Run a single agent process bound to one role from drey.yml.

The process polls the shared event directory until interrupted. Each of the
three roles (hiring, worker, arbitrator) should run as its own process; they
coordinate purely through event files.

The agent's decisions come from a scripted producer: pass one --script per
response, replayed in order (the last repeats). A hiring agent parses a
SCORE from its responses, an arbitrator parses a RULING, and a worker's
responses become its submissions.

Examples:
  drey run worker
  drey run hiring --script "Solid work. SCORE: 85"
  drey run arbitrator --script "RULING: split REFUND: 40"`,
	Args: cobra.ExactArgs(1),
	RunE: runAgent,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", config.DefaultPath, "Path to drey.yml")
	runCmd.Flags().StringArrayVar(&runScripts, "script", nil, "Scripted producer response (repeatable)")
	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	role := midden.AgentKind(args[0])
	if err := role.Validate(); err != nil || role == midden.AgentUser {
		return printer.Error(
			"invalid role",
			fmt.Sprintf("Unknown agent role: %s", args[0]),
			[]string{"Valid roles: hiring, worker, arbitrator"},
		)
	}

	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return printer.Error(
			"failed to load configuration",
			err.Error(),
			[]string{"Run 'drey init' to create a project", "Pass --config to point at an existing drey.yml"},
		)
	}

	agentName, agentCfg, err := cfg.AgentByRole(role)
	if err != nil {
		return printer.Error(
			"role not configured",
			err.Error(),
			[]string{fmt.Sprintf("Add an agent with role '%s' to %s", role, runConfigPath)},
		)
	}

	store, err := midden.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	if err := store.EnsureLayout(); err != nil {
		return fmt.Errorf("failed to prepare event directories: %w", err)
	}

	rt, err := agent.New(role, store,
		midden.WithPollInterval(cfg.PollInterval()),
		midden.WithExpectedConsumers(cfg.Bus.ExpectedConsumers),
	)
	if err != nil {
		return fmt.Errorf("failed to create agent runtime: %w", err)
	}

	producer := advisor.NewScripted(runScripts...)

	switch role {
	case midden.AgentHiring:
		var opts []hiring.Option
		if agentCfg.ApproveThreshold != nil {
			opts = append(opts, hiring.WithApproveThreshold(*agentCfg.ApproveThreshold))
		}
		hiring.New(rt, producer, &payment.Simulated{}, opts...).Register()
	case midden.AgentWorker:
		worker.New(rt, producer).Register()
	case midden.AgentArbitrator:
		arbitrator.New(rt, producer).Register()
	}

	printer.Success("Agent '%s' (%s) started, watching %s\n", agentName, rt.ID(), cfg.DataDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	rt.StartListening(ctx)

	sig := <-sigCh
	printer.Info("Received signal %v, shutting down gracefully...\n", sig)
	rt.StopListening()
	cancel()

	printer.Success("Agent '%s' stopped\n", agentName)
	return nil
}
