package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alchemmist/lazy-rec/internal/app"
	"github.com/alchemmist/lazy-rec/internal/config"
	"github.com/alchemmist/lazy-rec/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errUsage marks command-line mistakes; run maps it to exit code 2.
var errUsage = errors.New("usage error")

type cli struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	logLevel   string
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{stdout: stdout, stderr: stderr}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "lazy-rec: %s\n", formatError(err))
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lazy-rec",
		Short: "Terminal screen recorder for X11",
		Long: `lazy-rec - record a screen or window to WebM from the terminal

Without a command it opens the interactive recorder.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runUI(cmd.Context())
		},
	}
	root.Version = version.Version
	root.SetVersionTemplate(version.String() + "\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/lazy-rec/config.toml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		c.uiCmd(),
		c.recordCmd(),
		c.sourcesCmd(),
		c.ctlCmd(),
		c.versionsCmd(),
		c.doctorCmd(),
	)
	return root
}

func (c *cli) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	return cfg, nil
}

// newApp builds the application with logs on stderr, for commands that do not
// take over the terminal.
func (c *cli) newApp() (*app.App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	level, err := app.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, app.NewLogger(c.stderr, level)), nil
}

func (c *cli) uiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive recorder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runUI(cmd.Context())
		},
	}
}

func (c *cli) runUI(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	level, err := app.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	var logger *slog.Logger
	if f, err := app.OpenLogFile(cfg.LogFile); err == nil {
		defer f.Close()
		logger = app.NewLogger(f, level)
	} else {
		logger = app.NewLogger(io.Discard, level)
	}
	return app.New(cfg, logger).RunUI(ctx)
}

func formatError(err error) string {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Sprintf("not found: %v", err)
	}
	return err.Error()
}
