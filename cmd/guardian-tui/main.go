package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"guardian/internal/config"
	"guardian/internal/engine"
	"guardian/internal/logger"
	"guardian/internal/transport"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// app carries the resolved configuration from the root pre-run to the
// command that runs.
type app struct {
	configFile string
	envFile    string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:          "guardian-tui",
		Short:        "PSPD Guardian support chat client",
		Long:         "Terminal client for the PSPD Guardian support assistant: ask questions, rate answers and browse past conversations.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI()
		},
	}
	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		if c.Name() == "version" {
			return nil
		}
		return a.load(c, c == cmd)
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "path to a guardian.yaml config file")
	pf.StringVar(&a.envFile, "env-file", ".env", "optional dotenv file loaded before configuration")
	pf.String("api-url", "", "support API base URL (default http://localhost:8001/api)")
	pf.Duration("request-timeout", 0, "per-request timeout (default 2m0s)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-file", "", "write logs to this file")
	pf.String("help-host", "", "help portal host linked from answers")
	pf.String("status-dependency", "", "service whose health drives the connectivity label (default qdrant)")
	pf.String("status-label", "", "display name of the status dependency (default Vector Search)")

	f := cmd.Flags()
	f.Duration("poll-interval", 0, "service status poll interval (default 30s)")
	f.String("session-id", "", "resume this session at startup")
	f.Bool("resume-latest", false, "resume the most recent session at startup")
	f.Bool("alt-screen", true, "run in the terminal's alternate screen")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newMockBackendCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newIngestCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	return cmd
}

// load resolves configuration and configures logging. The TUI owns the
// terminal, so its logs are dropped unless a log file is set.
func (a *app) load(cmd *cobra.Command, tui bool) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	v := config.New(a.configFile)
	if err := config.BindFlags(v, cmd); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile, tui); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	logger.Debug("configuration loaded", "api_url", cfg.APIURL, "config", v.ConfigFileUsed())
	return nil
}

func (a *app) runTUI() error {
	cfg := a.cfg
	client := transport.NewClient(cfg.APIURL, cfg.RequestTimeout)
	poller := engine.NewPoller(
		client,
		engine.WithInterval(cfg.PollInterval),
		engine.WithPollTimeout(cfg.RequestTimeout),
		engine.WithDependency(cfg.StatusDependency, cfg.StatusLabel),
		engine.WithScheduler(engine.CronScheduler{Logger: logger.NewComponentLogger("cron")}),
	)
	eng := engine.New(
		client,
		engine.WithHelpHost(cfg.HelpHost),
		engine.WithPoller(poller),
	)
	defer eng.Stop()

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	logger.Info("starting", "api_url", cfg.APIURL, "version", Version)
	if _, err := tea.NewProgram(newModel(cfg, eng, client), opts...).Run(); err != nil {
		return fmt.Errorf("guardian-tui: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "guardian-tui %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	defer logger.Close()
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
