// Package cli implements the tpctl command tree.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/threatprotection/internal/tpctl/app"
	"github.com/aussiebroadwan/threatprotection/pkg/slogx"
	"github.com/aussiebroadwan/threatprotection/pkg/tpsdk"
)

// Env is what the command tree needs from the outside world. Zero fields
// fall back to the real filesystem, clock and environment.
type Env struct {
	Fs         afero.Fs
	Now        func() time.Time
	LoadConfig func(envFile string) (app.Config, error)

	// ClientOptions are appended to the options the application builds.
	ClientOptions []tpsdk.Option
}

// cliContext is shared by every command once the root pre-run has built the
// application.
type cliContext struct {
	env Env
	app *app.Application

	envFile  string
	logLevel string
	out      string

	prepare map[*cobra.Command]func() error
}

// onPrepare registers fn to parse the flags of cmd before the application is
// built, so malformed flags are rejected without a token exchange.
func (c *cliContext) onPrepare(cmd *cobra.Command, fn func() error) {
	c.prepare[cmd] = fn
}

func (c *cliContext) client() *tpsdk.Client {
	return c.app.Client()
}

// NewRootCommand creates the root cobra command.
func NewRootCommand(env Env) *cobra.Command {
	if env.Fs == nil {
		env.Fs = afero.NewOsFs()
	}
	if env.Now == nil {
		env.Now = time.Now
	}
	if env.LoadConfig == nil {
		env.LoadConfig = app.LoadConfig
	}

	ctx := &cliContext{env: env, prepare: make(map[*cobra.Command]func() error)}

	rootCmd := &cobra.Command{
		Use:   "tpctl",
		Short: "Command line client for the Proofpoint Threat Protection API",
		Long: `tpctl searches and inspects Threat Protection incidents and messages and
runs manual workflows. Credentials are read from PROOFPOINT_CLIENT_ID and
PROOFPOINT_CLIENT_SECRET, or from a .env file.

Results are printed as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if fn, ok := ctx.prepare[cmd]; ok {
				if err := fn(); err != nil {
					return err
				}
			}

			cfg, err := ctx.env.LoadConfig(ctx.envFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if ctx.logLevel != "" {
				cfg.LogLevel = ctx.logLevel
			}

			application, err := app.New(cmd.Context(), cfg, cmd.ErrOrStderr(), ctx.env.ClientOptions...)
			if err != nil {
				return err
			}
			ctx.app = application

			logger := application.Logger().With("command", cmd.CommandPath())
			cmd.SetContext(slogx.WithContext(cmd.Context(), logger))

			logger.Debug("command started")
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env-file", "",
		"Path to a .env file (default: ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "",
		"Log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVarP(&ctx.out, "out", "o", "",
		"Write the result to this file instead of stdout")

	rootCmd.AddCommand(newWorkflowsCommand(ctx))
	rootCmd.AddCommand(newIncidentsCommand(ctx))
	rootCmd.AddCommand(newMessagesCommand(ctx))

	return rootCmd
}

// ExitCode maps an error returned by the command tree to a process exit
// status.
func ExitCode(err error) int {
	switch tpsdk.KindOf(err) {
	case 0:
		if err == nil {
			return 0
		}
		return 1
	case tpsdk.KindValidation:
		return 2
	case tpsdk.KindAuth:
		return 3
	case tpsdk.KindRateLimit:
		return 4
	default:
		return 1
	}
}
