package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stencil3/editor/internal/app"
	"github.com/stencil3/editor/internal/config"
	"github.com/stencil3/editor/internal/persist"
	"github.com/stencil3/editor/internal/scripting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgPath      string
	undoSteps    int
	journalLimit int
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	defaultCfg := "config/editor.toml"
	if p := os.Getenv("STENCIL_CONFIG"); p != "" {
		defaultCfg = p
	}

	root := &cobra.Command{
		Use:           "stencil",
		Short:         "Map editor history tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", defaultCfg, "path to the editor TOML config")

	scriptCmd := &cobra.Command{
		Use:   "script <file.lua>",
		Short: "Run a bulk-edit script as one history step",
		Long:  scriptHelp(),
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}
	scriptCmd.Flags().IntVar(&undoSteps, "undo", 0, "undo this many steps after the script")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Print the namespaces and the history viewer",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Print recent journal entries",
		Args:  cobra.NoArgs,
		RunE:  runJournal,
	}
	journalCmd.Flags().IntVar(&journalLimit, "limit", 20, "number of entries to print")

	nsCmd := &cobra.Command{
		Use:   "ns <create|delete> <namespace>",
		Short: "Create or delete a namespace",
		Args:  cobra.ExactArgs(2),
		RunE:  runNamespace,
	}

	root.AddCommand(scriptCmd, historyCmd, journalCmd, nsCmd)
	return root
}

func scriptHelp() string {
	return "Run a bulk-edit Lua script. Every change it makes becomes one history step.\n\n" +
		"Script globals: " + strings.Join(scripting.Globals(), ", ")
}

// setup loads the config and logger and builds the editor.
func setup(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}

func runScript(cmd *cobra.Command, args []string) (err error) {
	a, log, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer log.Sync()
	defer func() {
		if cerr := a.Close(); err == nil {
			err = cerr
		}
	}()

	n, err := a.Scripts.RunFile(args[0])
	if err != nil {
		return err
	}
	a.Settle()
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d changes\n", n)

	for i := 0; i < undoSteps; i++ {
		a.Undo()
		fmt.Fprintln(cmd.OutOrStdout(), a.Status.Line())
	}
	printHistory(cmd, a)
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	a, log, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Namespaces:")
	for _, ns := range a.Namespaces.List() {
		state := "hidden"
		if ns.Visible {
			state = "visible"
		}
		fmt.Fprintf(out, "  %-24s %-8s %d\n", ns.Name, state, ns.Components)
	}
	printHistory(cmd, a)
	return nil
}

func printHistory(cmd *cobra.Command, a *app.App) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "History:")
	h := a.History.Engine().History()
	for _, line := range h.Lines() {
		fmt.Fprintf(out, "  %s\n", line)
	}
	if next, ok := h.RedoTop(); ok {
		fmt.Fprintf(out, "Next redo: %s\n", next)
	}
}

func runJournal(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	db, repo, err := persist.OpenJournal(cmd.Context(), cfg.Journal, log)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := repo.Recent(cmd.Context(), journalLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %-6s  %s  %s\n", e.At.Format("2006-01-02 15:04:05"), e.Action, shortID(e.Session), e.Description)
	}
	return nil
}

func runNamespace(cmd *cobra.Command, args []string) (err error) {
	a, log, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer log.Sync()
	defer func() {
		if cerr := a.Close(); err == nil {
			err = cerr
		}
	}()

	switch strings.ToLower(args[0]) {
	case "create":
		err = a.Namespaces.Create(args[1])
	case "delete":
		err = a.Namespaces.Delete(args[1])
	default:
		return fmt.Errorf("unknown namespace action %q", args[0])
	}
	if err != nil {
		return err
	}
	a.Settle()
	if notes := a.Status.Notifications(); len(notes) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), notes[len(notes)-1].Message)
	}
	return nil
}

func shortID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}

	return zapCfg.Build()
}
