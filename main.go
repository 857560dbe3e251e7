package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"maestro-go-agents/agent"
	"maestro-go-agents/config"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// cliFlags are the command-line overrides shared by every command.
type cliFlags struct {
	configPath     string
	logLevel       string
	workerTier     string
	maxIterations  int
	outputDir      string
	noSave         bool
	saveUsage      bool
	completionMode string
	textFile       string
	imageFile      string
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "maestro",
		Short: "Break an objective into sub-tasks and let agents work through them",
		Long: `Maestro hands an objective to a controller model that splits it into one
sub-task at a time. A worker model executes each sub-task, the controller
judges whether the objective is met, and a refiner merges every result into
the final output.

Set OPENAI_API_KEY (or OPENAI_API_KEYS for several keys) in the environment
or a .env file. Settings can also come from maestro.yaml.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML config file (default maestro.yaml if present)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVarP(&flags.workerTier, "worker-tier", "t", "", "worker model tier: fast, balanced or high")
	pf.IntVar(&flags.maxIterations, "max-iterations", 0, "stop delegating after this many sub-tasks (0 = no limit)")
	pf.StringVarP(&flags.outputDir, "output-dir", "o", "", "directory for run logs")
	pf.BoolVar(&flags.noSave, "no-save", false, "do not write the exchange log")
	pf.BoolVar(&flags.saveUsage, "save-usage", false, "write token usage next to the exchange log")
	pf.StringVar(&flags.completionMode, "completion-mode", "", "marker or structured")

	root.AddCommand(newRunCmd(flags), newTUICmd(flags), newValidateCmd(flags))
	return root
}

func newRunCmd(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [objective]",
		Short: "Run one objective and print the result",
		Example: `  maestro run "Plan a trip: Paris & Rome"
  maestro run -f brief.md "Summarize this document"
  echo "Write a haiku about the sea" | maestro run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, cfg.LogLevel)

			objective := strings.Join(args, " ")
			if strings.TrimSpace(objective) == "" && !isatty.IsTerminal(os.Stdin.Fd()) {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read objective from stdin: %w", err)
				}
				objective = string(data)
			}

			objective, bundle, err := prepareObjective(objective, flags.textFile, flags.imageFile)
			if err != nil {
				return err
			}
			if objective == "" {
				return errors.New("please enter an objective to start the task execution")
			}

			tier, err := agent.ParseTier(cfg.WorkerTier)
			if err != nil {
				return err
			}

			ctx, stop := interruptContext(cmd.Context())
			defer stop()

			return runConsole(ctx, consoleRun{
				cfg:       cfg,
				logger:    logger,
				tier:      tier,
				objective: objective,
				bundle:    bundle,
				out:       cmd.OutOrStdout(),
				markdown:  isatty.IsTerminal(os.Stdout.Fd()),
			})
		},
	}
	cmd.Flags().StringVarP(&flags.textFile, "file", "f", "", "text document appended to the objective")
	cmd.Flags().StringVarP(&flags.imageFile, "image", "i", "", "image sent along with the objective")
	return cmd
}

func newTUICmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive terminal interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			// The terminal belongs to the UI, so logs go to a file.
			logPath := filepath.Join(cfg.OutputDir, "maestro.log")
			if cfg.OutputDir != "" {
				if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer logFile.Close()

			model, err := newTUIModel(cfg, newLogger(logFile, cfg.LogLevel))
			if err != nil {
				return err
			}
			final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
			if m, ok := final.(tuiModel); ok {
				m.shutdown()
			}
			return err
		},
	}
}

func newValidateCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the configured API keys are accepted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, cfg.LogLevel)

			_, closeGateway, err := connect(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			closeGateway()

			ok := lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render("✓")
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d API key(s) accepted\n", ok, len(cfg.APIKeys))
			return nil
		},
	}
}

// interruptContext is cancelled by the first SIGINT or SIGTERM. Default signal
// handling is restored right after, so a second interrupt kills the process
// even while a model call is still in flight.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

// loadConfig reads the configuration and applies flags the user set.
func loadConfig(cmd *cobra.Command, flags *cliFlags) (*config.Config, error) {
	return config.Load(flags.configPath, func(cfg *config.Config) {
		applyFlags(cmd, flags, cfg)
	})
}

// applyFlags copies the flags the user set onto cfg.
func applyFlags(cmd *cobra.Command, flags *cliFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if changed("worker-tier") {
		cfg.WorkerTier = strings.ToLower(flags.workerTier)
	}
	if changed("max-iterations") {
		cfg.MaxIterations = flags.maxIterations
	}
	if changed("output-dir") {
		cfg.OutputDir = flags.outputDir
	}
	if changed("no-save") {
		cfg.SaveLog = !flags.noSave
	}
	if changed("save-usage") {
		cfg.SaveUsage = flags.saveUsage
	}
	if changed("completion-mode") {
		cfg.CompletionMode = flags.completionMode
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
