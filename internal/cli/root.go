package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/app"
	"github.com/chainpkg/chainpkg/internal/branding"
	"github.com/chainpkg/chainpkg/internal/config"
	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/ledger"
	"github.com/chainpkg/chainpkg/internal/logging"
)

type buildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// globals is the state shared by every command of one invocation.
type globals struct {
	build  buildInfo
	v      *viper.Viper
	in     io.Reader
	log    *zap.Logger
	ledger ledger.Options
}

func newGlobals(build buildInfo) *globals {
	return &globals{build: build, v: config.NewViper(), in: os.Stdin, log: zap.NewNop()}
}

func (g *globals) settings() config.Settings { return config.ReadSettings(g.v) }

// open resolves the configuration and the selected network.
func (g *globals) open() (*app.App, error) { return g.openNetwork("") }

// openNetwork is open with a network override; "" keeps --network or the
// document's selection.
func (g *globals) openNetwork(network string) (*app.App, error) {
	s := g.settings()
	if network == "" {
		network = s.Network
	}
	return app.Open(app.Options{
		ConfigPath:   s.ConfigPath,
		Network:      network,
		Logger:       g.log,
		Ledger:       g.ledger,
		CatalogCache: true,
	})
}

func (g *globals) initLogger() error {
	s := g.settings()
	cfg := logging.DefaultConfig(config.Dir())
	cfg.Level = s.LogLevel
	cfg.Verbose = s.Verbose
	log, err := logging.New(cfg)
	if err != nil {
		return errs.Wrap(errs.KindConfig, err, "configuring logging").With("level", s.LogLevel)
	}
	g.log = log
	return nil
}

func newRootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:   branding.CLIName(),
		Short: branding.Description(),
		Long: branding.DisplayName() + ` publishes, discovers and installs smart-contract packages.
Package archives live in content-addressed storage; names, versions,
endorsements and tips live in an on-chain registry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.initLogger()
		},
	}
	root.SetIn(g.in)

	pf := root.PersistentFlags()
	pf.StringP(config.KeyNetwork, "n", "", "Network profile to use for this invocation")
	pf.BoolP(config.KeyVerbose, "v", false, "Verbose output and debug logging")
	pf.String(config.KeyLogLevel, "warn", "Console log level (debug, info, warn, error)")
	pf.String(config.KeyConfig, "", "Path to the configuration file")
	for _, key := range []string{config.KeyNetwork, config.KeyVerbose, config.KeyLogLevel, config.KeyConfig} {
		_ = g.v.BindPFlag(key, pf.Lookup(key))
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errs.Wrap(errs.KindValidation, err, "invalid flags")
	})

	root.AddCommand(
		newInitCmd(g),
		newPublishCmd(g),
		newInstallCmd(g),
		newSearchCmd(g),
		newEndorseCmd(g),
		newTipCmd(g),
		newWalletCmd(g),
		newIPFSCmd(g),
		newNetworkCmd(g),
		newStatsCmd(g),
		newServeCmd(g),
		newVersionCmd(g),
	)
	return root
}

// Execute runs the root command with build info injected via ldflags and
// returns the process exit code.
func Execute(version, commit, date string) int {
	g := newGlobals(buildInfo{Version: version, Commit: commit, Date: date})
	root := newRootCmd(g)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return g.finish(root, root.ExecuteContext(ctx))
}

// finish is the error boundary: it logs err, prints the user-facing message
// and maps it to an exit code.
func (g *globals) finish(root *cobra.Command, err error) int {
	defer func() { _ = g.log.Sync() }()
	if err == nil {
		return errs.ExitOK
	}
	var e *errs.Error
	if !errors.As(err, &e) {
		// Everything the commands return is classified; what is left came
		// from argument parsing.
		err = errs.Wrap(errs.KindValidation, err, "usage")
		defer fmt.Fprintf(root.ErrOrStderr(), "Run '%s --help' for usage.\n", branding.CLIName())
	}
	report := errs.NewHandler(g.log).Handle(err)
	newPrinter(root).fail(report.UserMessage(g.settings().Verbose))
	return report.ExitCode
}

// exactArgs is cobra.ExactArgs with a usage message naming the arguments.
func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return errs.New(errs.KindValidation, "%s expects %s", cmd.CommandPath(), usage)
		}
		return nil
	}
}
